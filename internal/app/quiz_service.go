package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"timed-quiz-service/internal/countdown"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/events"
	"timed-quiz-service/internal/metrics"
	"timed-quiz-service/internal/quiz"
)

// SessionRepository abstracts where open games are kept (in-memory, Redis, etc).
type SessionRepository interface {
	Put(game *Game)
	Get(sessionID string) (*Game, bool)
	Delete(sessionID string)
}

// QuestionRepository loads question sets (from cache/backing store).
type QuestionRepository interface {
	GetQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuizService contains the play-session use cases.
type QuizService struct {
	sessions  SessionRepository
	questions QuestionRepository
	timer     *countdown.Controller
	reporter  events.Reporter
	recorder  metrics.Recorder
	logger    *slog.Logger

	loads   sync.WaitGroup
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Option customises a QuizService.
type Option func(*QuizService)

func WithLogger(logger *slog.Logger) Option {
	return func(s *QuizService) { s.logger = logger }
}

func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *QuizService) { s.recorder = recorder }
}

func NewQuizService(sessions SessionRepository, questions QuestionRepository, timer *countdown.Controller, reporter events.Reporter, opts ...Option) *QuizService {
	s := &QuizService{
		sessions:  sessions,
		questions: questions,
		timer:     timer,
		reporter:  reporter,
		recorder:  metrics.Nop{},
		logger:    slog.Default(),
		cancels:   make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSessionID returns a fresh play-session ID.
func NewSessionID() string {
	return uuid.NewString()
}

// Open creates a play session and starts loading its question set in the
// background. The load runs once: success delivers a single DataLoaded event,
// failure is published to the reporter and the game stays not_started with no
// questions. Callers that need the failure report should subscribe to it
// before calling Open.
func (s *QuizService) Open(_ context.Context, sessionID, setID string) (*Game, error) {
	if sessionID == "" {
		sessionID = NewSessionID()
	}
	game := NewGame(sessionID, s.timer, s.recorder, s.logger)
	s.sessions.Put(game)
	s.recorder.SessionOpened()

	loadCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[sessionID] = cancel
	s.mu.Unlock()

	s.loads.Add(1)
	go func() {
		defer s.loads.Done()
		defer s.forgetLoad(sessionID)
		s.load(loadCtx, game, setID)
	}()

	s.logger.Info("play session opened", "session_id", sessionID, "set_id", setID)
	return game, nil
}

func (s *QuizService) load(ctx context.Context, game *Game, setID string) {
	questions, err := s.questions.GetQuestions(ctx, setID)
	if err == nil {
		err = domain.ValidateQuestions(questions)
	}
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.recorder.LoadFailed()
		s.logger.Error("question set load failed", "session_id", game.ID(), "set_id", setID, "error", err)
		report := events.Report{SessionID: game.ID(), Kind: events.KindLoadFailed, Message: err.Error()}
		if rerr := s.reporter.Report(context.Background(), report); rerr != nil {
			s.logger.Error("report load failure", "session_id", game.ID(), "error", rerr)
		}
		return
	}
	game.Dispatch(quiz.LoadData(questions))
}

func (s *QuizService) forgetLoad(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[sessionID]; ok {
		cancel()
		delete(s.cancels, sessionID)
	}
}

// WaitForLoads blocks until every background load has finished.
func (s *QuizService) WaitForLoads() {
	s.loads.Wait()
}

// Dispatch applies an event to a session.
func (s *QuizService) Dispatch(_ context.Context, sessionID string, e quiz.Event) (Snapshot, error) {
	game, ok := s.sessions.Get(sessionID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return game.Dispatch(e), nil
}

// Start begins the quiz run.
func (s *QuizService) Start(ctx context.Context, sessionID string) (Snapshot, error) {
	return s.Dispatch(ctx, sessionID, quiz.StartQuiz())
}

// Answer selects an option for the current question. The index is checked
// against the current question before it reaches the state machine.
func (s *QuizService) Answer(ctx context.Context, sessionID string, index int) (Snapshot, error) {
	game, ok := s.sessions.Get(sessionID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	current := game.Snapshot()
	if current.Question != nil && (index < 0 || index >= len(current.Question.Options)) {
		return current, domain.ErrOptionOutOfRange
	}
	return game.Dispatch(quiz.SelectAnswer(index)), nil
}

// Advance moves to the next question, or finishes after the last one.
func (s *QuizService) Advance(ctx context.Context, sessionID string) (Snapshot, error) {
	return s.Dispatch(ctx, sessionID, quiz.Next())
}

// Restart returns the session to not_started, keeping its questions.
func (s *QuizService) Restart(ctx context.Context, sessionID string) (Snapshot, error) {
	return s.Dispatch(ctx, sessionID, quiz.RestartQuiz())
}

// Snapshot returns the session's current snapshot.
func (s *QuizService) Snapshot(_ context.Context, sessionID string) (Snapshot, error) {
	game, ok := s.sessions.Get(sessionID)
	if !ok {
		return Snapshot{}, domain.ErrSessionNotFound
	}
	return game.Snapshot(), nil
}

// Subscribe returns a channel that receives a snapshot after every change.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(_ context.Context, sessionID string) (<-chan Snapshot, func(), error) {
	game, ok := s.sessions.Get(sessionID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := game.subscribe()
	return ch, cancel, nil
}

// Close tears a session down: any pending load is abandoned, the countdown is
// cancelled and subscriptions are closed.
func (s *QuizService) Close(_ context.Context, sessionID string) {
	s.forgetLoad(sessionID)
	game, ok := s.sessions.Get(sessionID)
	if !ok {
		return
	}
	game.Close()
	s.sessions.Delete(sessionID)
	s.logger.Info("play session closed", "session_id", sessionID)
}
