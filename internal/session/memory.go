package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/xKrishnaSaxena/WhatsBill/internal/models"
)

// DefaultSweepInterval is how often the in-memory store scans for expired sessions.
const DefaultSweepInterval = time.Minute

// InMemoryStore keeps sessions in a process-local map, optionally evicting
// sessions that have been idle longer than the configured TTL.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]models.Session
	ttl      time.Duration
	done     chan struct{}
	once     sync.Once
}

// NewInMemoryStore creates an in-memory session store. When a TTL option is
// provided, a background sweeper evicts idle sessions.
func NewInMemoryStore(opts ...Option) *InMemoryStore {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	s := &InMemoryStore{
		sessions: make(map[string]models.Session),
		ttl:      cfg.TTL,
		done:     make(chan struct{}),
	}
	if s.ttl > 0 {
		go s.sweep()
	}
	slog.Debug("InMemoryStore created", "ttl", s.ttl)
	return s
}

// Get returns the session for an identity, or nil if none exists.
func (s *InMemoryStore) Get(identity string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[identity]
	if !ok {
		return nil, nil
	}
	// Copy so callers cannot mutate stored state without Save.
	out := sess
	out.Messages = append([]models.Message(nil), sess.Messages...)
	return &out, nil
}

// Save stores or replaces the session for its identity.
func (s *InMemoryStore) Save(session models.Session) error {
	if session.Identity == "" {
		return models.ErrEmptyIdentity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session.UpdatedAt = time.Now()
	if existing, ok := s.sessions[session.Identity]; ok {
		session.CreatedAt = existing.CreatedAt
	} else if session.CreatedAt.IsZero() {
		session.CreatedAt = session.UpdatedAt
	}
	s.sessions[session.Identity] = session
	return nil
}

// Delete removes the session for an identity.
func (s *InMemoryStore) Delete(identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, identity)
	return nil
}

// Close stops the eviction sweeper.
func (s *InMemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Len returns the number of live sessions (for tests and health reporting).
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) sweep() {
	ticker := time.NewTicker(DefaultSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-s.ttl)
			s.mu.Lock()
			for identity, sess := range s.sessions {
				if sess.UpdatedAt.Before(cutoff) {
					delete(s.sessions, identity)
					slog.Debug("InMemoryStore evicted idle session", "identity", identity, "idle_since", sess.UpdatedAt)
				}
			}
			s.mu.Unlock()
		case <-s.done:
			return
		}
	}
}
