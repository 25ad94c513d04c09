package memory

import (
	"sync"

	"timed-quiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Game
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Game),
	}
}

func (s *SessionStore) Put(game *app.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[game.ID()] = game
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
	delete(s.sessions, sessionID)
}
