package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/app"
	"timed-quiz-service/internal/config"
	"timed-quiz-service/internal/countdown"
	"timed-quiz-service/internal/domain"
	"timed-quiz-service/internal/events"
	"timed-quiz-service/internal/infra/httpsource"
	"timed-quiz-service/internal/infra/memory"
	pgloader "timed-quiz-service/internal/infra/postgres"
	redisinfra "timed-quiz-service/internal/infra/redis"
	"timed-quiz-service/internal/logging"
	"timed-quiz-service/internal/metrics"
)

// stack is everything a front end needs to run play sessions.
type stack struct {
	service *app.QuizService
	bus     *events.Bus
	closers []func()
}

func (s *stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	return logging.New(w, cfg.Log.Level, cfg.Log.Format)
}

// buildStack wires loaders, caches and stores from cfg. Redis sessions are only
// used when sharedSessions is set; the terminal front end keeps them local.
func buildStack(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer, sharedSessions bool) (*stack, error) {
	st := &stack{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st.closers = append(st.closers, func() { _ = redisClient.Close() })
	}

	loaders := fallbackLoader{}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.closers = append(st.closers, pool.Close)
		loaders = append(loaders, pgloader.NewQuestionLoader(pool))
	}
	if len(cfg.Sources) > 0 {
		timeout := config.Duration(cfg.Source.Timeout, 10*time.Second)
		loaders = append(loaders, httpsource.NewLoader(cfg.Sources, timeout))
	}
	loaders = append(loaders, memory.NewStaticQuestionLoader(sampleQuestionSets()))

	cacheTTL := config.Duration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loaders, cacheTTL, logger)
	} else {
		questions = memory.NewQuestionRepository(loaders, cacheTTL)
	}

	var sessions app.SessionRepository
	if redisClient != nil && sharedSessions {
		sessions = redisinfra.NewSessionStore(redisClient, config.Duration(cfg.Redis.TTL, time.Hour), logger)
	} else {
		sessions = memory.NewSessionStore()
	}

	var recorder metrics.Recorder = metrics.Nop{}
	if reg != nil {
		recorder = metrics.NewPrometheus(reg)
	}

	st.bus = events.NewBus(logger)
	st.closers = append(st.closers, func() { _ = st.bus.Close() })

	timer := countdown.New(cfg.Quiz.SecondsPerQuestion, countdown.NewCronScheduler())
	st.service = app.NewQuizService(sessions, questions, timer, st.bus,
		app.WithLogger(logger),
		app.WithRecorder(recorder),
	)
	return st, nil
}

// fallbackLoader asks each loader in turn, moving on only when a loader does
// not know the set.
type fallbackLoader []memory.QuestionLoader

func (f fallbackLoader) LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	for _, l := range f {
		qs, err := l.LoadQuestions(ctx, setID)
		if errors.Is(err, domain.ErrQuestionSetNotFound) {
			continue
		}
		return qs, err
	}
	return nil, domain.ErrQuestionSetNotFound
}

// sampleQuestionSets provides a built-in set so the service is playable without any source configured.
func sampleQuestionSets() map[string][]domain.Question {
	return map[string][]domain.Question{
		"sample": {
			{
				Prompt:        "Which company released the Game Boy?",
				Options:       []string{"Sega", "Nintendo", "Atari", "Sony"},
				CorrectOption: 1,
				Points:        10,
			},
			{
				Prompt:        "In which year was the original PlayStation released in Japan?",
				Options:       []string{"1992", "1994", "1996", "1998"},
				CorrectOption: 1,
				Points:        20,
			},
			{
				Prompt:        "What is the name of the princess in The Legend of Zelda?",
				Options:       []string{"Peach", "Daisy", "Zelda", "Rosalina"},
				CorrectOption: 2,
				Points:        10,
			},
		},
	}
}
