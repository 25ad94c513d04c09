package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"timed-quiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Games live in a local map because their countdown runs in this process;
// Redis only carries a liveness marker per open session so operators can see
// how many sessions are open across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	logger   *slog.Logger
	mu       sync.RWMutex
	sessions map[string]*app.Game
}

func NewSessionStore(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SessionStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		logger:   logger,
		sessions: make(map[string]*app.Game),
	}
}

func (s *SessionStore) Put(game *app.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[game.ID()] = game
	// best-effort liveness marker
	if err := s.client.Set(context.Background(), s.key(game.ID()), "1", s.ttl).Err(); err != nil {
		s.logger.Warn("set session marker failed", "session_id", game.ID(), "error", err)
	}
}

func (s *SessionStore) Get(sessionID string) (*app.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.sessions[sessionID]
	return game, ok
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return
	}
	delete(s.sessions, sessionID)
	if err := s.client.Del(context.Background(), s.key(sessionID)).Err(); err != nil {
		s.logger.Warn("clear session marker failed", "session_id", sessionID, "error", err)
	}
}

func (s *SessionStore) key(sessionID string) string {
	return "quiz:session:" + sessionID
}
