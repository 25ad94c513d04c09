package httpsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"timed-quiz-service/internal/domain"
)

const videogameDoc = `[
  {"question": "Which company made the NES?", "options": ["Sega", "Nintendo", "Sony"], "correctOption": 1, "points": 10},
  {"question": "Who is Mario's brother?", "options": ["Luigi", "Wario"], "correctOption": 0, "points": 20}
]`

func TestLoadQuestionsDecodesDocument(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(videogameDoc))
	}))
	defer server.Close()

	loader := NewLoader(map[string]string{"videogames": server.URL}, time.Second)
	qs, err := loader.LoadQuestions(context.Background(), "videogames")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(qs) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(qs))
	}
	if qs[0].Prompt != "Which company made the NES?" || qs[0].CorrectOption != 1 || qs[0].Points != 10 {
		t.Fatalf("unexpected first question %+v", qs[0])
	}
	if len(qs[1].Options) != 2 || qs[1].Options[0] != "Luigi" {
		t.Fatalf("unexpected options %+v", qs[1].Options)
	}
}

func TestLoadQuestionsRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	loader := NewLoader(map[string]string{"videogames": server.URL}, time.Second)
	_, err := loader.LoadQuestions(context.Background(), "videogames")
	if !errors.Is(err, domain.ErrSourceStatus) {
		t.Fatalf("expected ErrSourceStatus, got %v", err)
	}
}

func TestLoadQuestionsRejectsMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(`{"not": "an array"}`))
	}))
	defer server.Close()

	loader := NewLoader(map[string]string{"videogames": server.URL}, time.Second)
	if _, err := loader.LoadQuestions(context.Background(), "videogames"); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestLoadQuestionsUnknownSet(t *testing.T) {
	loader := NewLoader(nil, time.Second)
	_, err := loader.LoadQuestions(context.Background(), "nope")
	if !errors.Is(err, domain.ErrQuestionSetNotFound) {
		t.Fatalf("expected ErrQuestionSetNotFound, got %v", err)
	}
}

func TestLoadQuestionsDecodesDespiteContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(videogameDoc))
	}))
	defer server.Close()

	loader := NewLoader(map[string]string{"videogames": server.URL}, time.Second)
	qs, err := loader.LoadQuestions(context.Background(), "videogames")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(qs) != 2 || qs[1].Points != 20 {
		t.Fatalf("unexpected questions %+v", qs)
	}
}
