package store

import (
	"sync"
	"time"

	"donateabook/internal/domain"
	"donateabook/internal/util"
)

// MemorySessionStore keeps sessions in-process, for tests and local runs.
type MemorySessionStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]memorySession
	now      func() time.Time
}

type memorySession struct {
	session   domain.Session
	expiresAt time.Time
}

// NewMemorySessionStore builds an in-memory session store with TTL.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl:      ttl,
		sessions: make(map[string]memorySession),
		now:      time.Now,
	}
}

func (s *MemorySessionStore) Establish(session domain.Session) (string, error) {
	token := util.NewID()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = memorySession{
		session:   session,
		expiresAt: s.now().Add(s.ttl),
	}
	return token, nil
}

func (s *MemorySessionStore) Get(token string) (domain.Session, bool, error) {
	s.mu.RLock()
	entry, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return domain.Session{}, false, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return domain.Session{}, false, nil
	}
	return entry.session, true, nil
}

func (s *MemorySessionStore) Delete(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
