package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"timed-quiz-service/internal/domain"
)

// QuestionLoader fetches a question set from its source (HTTP document, database, ...).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, setID string) ([]domain.Question, error)
}

// QuestionRepository caches question sets with TTL so concurrent sessions on the
// same set hit the source once.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedSet
}

type cachedSet struct {
	questions []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedSet),
	}
}

func (r *QuestionRepository) GetQuestions(ctx context.Context, setID string) ([]domain.Question, error) {
	if qs, ok := r.lookup(setID); ok {
		return qs, nil
	}

	// The fetch is shared by every session waiting on this set, so it runs
	// detached from the caller; a caller that gives up only stops waiting.
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

func (r *QuestionRepository) fetch(ctx context.Context, setID string) ([]domain.Question, error) {
	if qs, ok := r.lookup(setID); ok {
		return qs, nil
	}

	qs, err := r.loader.LoadQuestions(ctx, setID)
	if err != nil {
		return nil, err
	}
	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[setID] = cachedSet{
			questions: qs,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
	}
	return qs, nil
}

func (r *QuestionRepository) lookup(setID string) ([]domain.Question, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.cache[setID]
	if !ok || !entry.expiresAt.After(r.clock()) {
		return nil, false
	}
	return entry.questions, true
}

func (r *QuestionRepository) ttlWithJitter() time.Duration {
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticQuestionLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuestionLoader struct {
	sets map[string][]domain.Question
}

func NewStaticQuestionLoader(sets map[string][]domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{sets: sets}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, setID string) ([]domain.Question, error) {
	if qs, ok := l.sets[setID]; ok {
		return qs, nil
	}
	return nil, domain.ErrQuestionSetNotFound
}
