// Package httpsource loads question sets from JSON documents served over HTTP.
package httpsource

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"timed-quiz-service/internal/domain"
)

// Loader fetches the JSON document registered for a set ID.
type Loader struct {
	client *resty.Client
	urls   map[string]string
}

// NewLoader builds a loader for the given set-ID to URL mapping.
func NewLoader(urls map[string]string, timeout time.Duration) *Loader {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Loader{client: client, urls: urls}
}

func (l *Loader) LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	url, ok := l.urls[setID]
	if !ok {
		return nil, domain.ErrQuestionSetNotFound
	}

	var questions []domain.Question
	resp, err := l.client.R().
		SetContext(ctx).
		SetResult(&questions).
		ForceContentType("application/json").
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch question set %s: %w", setID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch question set %s: %w: %s", setID, domain.ErrSourceStatus, resp.Status())
	}
	return questions, nil
}
