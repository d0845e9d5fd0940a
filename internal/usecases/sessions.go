package usecases

import (
	"fmt"
	"sync"
	"time"

	"unreplied/internal/domain"
	"unreplied/pkg/log"
)

// DefaultSessionTTL is how long an idle session is kept.
const DefaultSessionTTL = 30 * time.Minute

// SessionStore keeps sessions in memory and evicts idle ones.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
	done     chan struct{}
	once     sync.Once
}

// NewSessionStore creates a store and starts its cleanup loop.
func NewSessionStore(ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	go s.cleanup()
	return s
}

// Put stores a session.
func (s *SessionStore) Put(sess *Session) {
	sess.touch(s.now())
	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
}

// Get returns a live session and marks it used.
func (s *SessionStore) Get(id string) (*Session, error) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	now := s.now()
	if now.Sub(sess.idleSince()) > s.ttl {
		s.Delete(id)
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, id)
	}
	sess.touch(now)
	return sess, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// EvictExpired drops sessions idle for longer than the TTL and returns how
// many were removed.
func (s *SessionStore) EvictExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.idleSince()) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// Close stops the cleanup loop.
func (s *SessionStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *SessionStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.EvictExpired(); n > 0 {
				log.GlobalDebug("evicted idle sessions", "count", n)
			}
		}
	}
}
