package session

import (
	"context"
	"sync"
	"time"
)

// InMemoryStore keeps sessions in a process-local map. It is the
// default backend for development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *InMemoryStore) Load(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if s.now().After(sess.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	return sess.Clone(), nil
}

func (s *InMemoryStore) CreateIfAbsent(ctx context.Context, id, persona string) (*Session, bool, error) {
	if sess, err := s.Load(ctx, id); err == nil {
		return sess, false, nil
	}
	now := s.now()
	fresh := &Session{
		ID:            id,
		Persona:       persona,
		Stage:         StageActive,
		CreatedAt:     now,
		LastUpdatedAt: now,
		ExpiresAt:     now.Add(s.ttl),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok && s.now().Before(existing.ExpiresAt) {
		return existing.Clone(), false, nil
	}
	s.sessions[id] = fresh.Clone()
	return fresh, true, nil
}

func (s *InMemoryStore) Save(_ context.Context, sess *Session) error {
	now := s.now()
	sess.LastUpdatedAt = now
	sess.ExpiresAt = now.Add(s.ttl)
	s.mu.Lock()
	s.sessions[sess.ID] = sess.Clone()
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *InMemoryStore) Mode() string { return "inmemory" }

func (s *InMemoryStore) Healthy(context.Context) bool { return true }

func (s *InMemoryStore) Close() {}

// StartJanitor sweeps expired sessions until ctx is cancelled.
func (s *InMemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep()
			}
		}
	}()
}

func (s *InMemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, id)
		}
	}
}
