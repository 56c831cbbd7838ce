package callsession

import (
	"context"
	"sync"
	"time"
)

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is the in-memory Store used when no Redis URL is configured.
// It holds defensive copies: Set stores a clone and Get/GetAll return
// clones, so callers can never race each other through a shared Session
// pointer. Mutate your copy, then Set it back.
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemStore returns an initialised MemStore.
func NewMemStore() *MemStore {
	return &MemStore{sessions: make(map[string]*Session)}
}

// Get implements [Store.Get].
func (s *MemStore) Get(_ context.Context, callID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[callID].Clone(), nil
}

// Set implements [Store.Set].
func (s *MemStore) Set(_ context.Context, session *Session) error {
	if session == nil || session.CallID == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		s.sessions = make(map[string]*Session)
	}
	s.sessions[session.CallID] = session.Clone()
	return nil
}

// Delete implements [Store.Delete].
func (s *MemStore) Delete(_ context.Context, callID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
	return nil
}

// GetAll implements [Store.GetAll]. The returned map and its sessions are
// copies; subsequent writes to the store do not show up in them.
func (s *MemStore) GetAll(_ context.Context) (map[string]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := make(map[string]*Session, len(s.sessions))
	for id, session := range s.sessions {
		snapshot[id] = session.Clone()
	}
	return snapshot, nil
}

// Ping implements [Store.Ping]; an in-memory store is always reachable.
func (s *MemStore) Ping(context.Context) error { return nil }

// Close implements [Store.Close].
func (s *MemStore) Close() error { return nil }

// Len returns the number of stored sessions.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// SweepExpired removes sessions that ended more than ttl ago and returns
// how many were evicted. Sessions still in flight (no EndedAt) are never
// touched, regardless of age.
func (s *MemStore) SweepExpired(ttl time.Duration) int {
	cutoff := time.Now().UTC().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.EndedAt != nil && session.EndedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
