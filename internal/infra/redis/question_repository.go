package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/domain"
)

// QuestionLoader fetches a question set from its source (HTTP document, database, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionRepository caches question sets in Redis and falls back to a loader on cache miss.
// Each set is stored as its JSON document: SET quiz:set:{setID} <json> EX ttl
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	logger *slog.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration, logger *slog.Logger) *QuestionRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		logger: logger,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	if qs, ok := r.cached(ctx, setID); ok {
		return qs, nil
	}

	fetch := r.sf.DoChan(setID, func() (interface{}, error) {
		return r.fetch(context.WithoutCancel(ctx), setID)
	})
	select {
	case res := <-fetch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]domain.Question), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch runs once per set for all waiting sessions, on a context detached from
// any single caller.
func (r *QuestionRepository) fetch(ctx context.Context, setID string) ([]domain.Question, error) {
	// Re-check cache in case another goroutine filled it.
	if qs, ok := r.cached(ctx, setID); ok {
		return qs, nil
	}

	qs, err := r.loader.LoadQuestions(ctx, setID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(qs)
	if err != nil {
		return nil, err
	}
	if err := r.client.Set(ctx, r.key(setID), data, r.ttlWithJitter()).Err(); err != nil {
		r.logger.Warn("cache question set failed", "set_id", setID, "error", err)
	}
	return qs, nil
}

func (r *QuestionRepository) cached(ctx context.Context, setID string) ([]domain.Question, bool) {
	data, err := r.client.Get(ctx, r.key(setID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("read cached question set failed", "set_id", setID, "error", err)
		}
		return nil, false
	}
	var qs []domain.Question
	if err := json.Unmarshal(data, &qs); err != nil {
		r.logger.Warn("discarding corrupt cached question set", "set_id", setID, "error", err)
		return nil, false
	}
	return qs, true
}

func (r *QuestionRepository) key(setID string) string {
	return "quiz:set:" + setID
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
