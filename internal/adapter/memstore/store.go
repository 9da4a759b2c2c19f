// Package memstore implements the session store port in memory. It backs
// tests and single-node deployments with storage.driver=memory.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/domain"
	"github.com/parleyhq/parley/internal/domain/session"
)

// Store holds sessions keyed by id, guarded for concurrent access across
// distinct keys. Values are stored as deep copies so callers can never
// mutate persisted state without going through Save.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	now      func() time.Time // for testing
}

// New creates an empty in-memory session store.
func New() *Store {
	return &Store{
		sessions: make(map[string]*session.Session),
		now:      time.Now,
	}
}

// Load returns a copy of the stored session, or a fresh session at the
// greeting stage with version 0 for an unseen id.
func (s *Store) Load(_ context.Context, id string) (*session.Session, error) {
	s.mu.RLock()
	stored, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return session.New(id, s.now().UTC()), nil
	}
	return clone(stored)
}

// Save persists the session with an optimistic version check. The caller's
// Version must equal the stored version (0 for a first save); on success
// the caller's Version is incremented in place.
func (s *Store) Save(_ context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[sess.ID]
	switch {
	case !exists && sess.Version != 0:
		return fmt.Errorf("save session %s: base version %d but nothing stored: %w",
			sess.ID, sess.Version, domain.ErrConflict)
	case exists && stored.Version != sess.Version:
		return fmt.Errorf("save session %s: base version %d, stored %d: %w",
			sess.ID, sess.Version, stored.Version, domain.ErrConflict)
	}

	sess.Version++
	cp, err := clone(sess)
	if err != nil {
		sess.Version--
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	s.sessions[sess.ID] = cp
	return nil
}

// Len returns the number of stored sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// clone deep-copies a session through JSON. Sessions are small (bounded
// turn history) so the cost is negligible next to a tool call.
func clone(sess *session.Session) (*session.Session, error) {
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("clone session: %w", err)
	}
	var cp session.Session
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("clone session: %w", err)
	}
	if cp.Slots == nil {
		cp.Slots = make(map[string]string)
	}
	return &cp, nil
}
