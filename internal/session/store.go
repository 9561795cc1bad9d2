// Package session binds browser sessions to the dataset they uploaded.
package session

import (
	"context"
	"sync"
	"time"

	"epistat/domain/core"
	"epistat/ports"
)

// CookieName is the cookie carrying the session ID
const CookieName = "epistat_session"

type binding struct {
	datasetID core.DatasetID
	touched   time.Time
}

// Store is an in-memory SessionRepository. Bindings idle for longer than ttl
// are dropped lazily on lookup and by Sweep.
type Store struct {
	mu       sync.RWMutex
	bindings map[core.SessionID]binding
	ttl      time.Duration
	now      func() time.Time
}

var _ ports.SessionRepository = (*Store)(nil)

// NewStore creates a store; ttl <= 0 keeps bindings forever
func NewStore(ttl time.Duration) *Store {
	return &Store{
		bindings: make(map[core.SessionID]binding),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Bind associates the session with a dataset, replacing any earlier binding
func (s *Store) Bind(ctx context.Context, sessionID core.SessionID, datasetID core.DatasetID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings[sessionID] = binding{datasetID: datasetID, touched: s.now()}
	return nil
}

// DatasetFor returns the dataset bound to the session
func (s *Store) DatasetFor(ctx context.Context, sessionID core.SessionID) (core.DatasetID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bindings[sessionID]
	if !ok {
		return "", core.ErrSessionNotFound
	}
	if s.expired(b) {
		delete(s.bindings, sessionID)
		return "", core.ErrSessionNotFound
	}
	b.touched = s.now()
	s.bindings[sessionID] = b
	return b.datasetID, nil
}

// Clear removes the session's binding
func (s *Store) Clear(ctx context.Context, sessionID core.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bindings, sessionID)
	return nil
}

// Sweep drops expired bindings and returns how many were removed
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, b := range s.bindings {
		if s.expired(b) {
			delete(s.bindings, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live bindings
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bindings)
}

func (s *Store) expired(b binding) bool {
	return s.ttl > 0 && s.now().Sub(b.touched) > s.ttl
}
