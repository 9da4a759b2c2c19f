// Package sessionstore defines the session state store port (interface).
package sessionstore

import (
	"context"

	"github.com/parleyhq/parley/internal/domain/session"
)

// Store is the port interface for session persistence.
//
// Load returns the stored session for id, or a fresh unsaved session at the
// greeting stage with version 0 when the id has never been seen.
//
// Save persists the session using optimistic versioning: the caller's
// Version must match the stored one (or be 0 for a first save). On success
// the session's Version is incremented in place; on a stale base version
// Save returns domain.ErrConflict and the caller must reload and retry.
type Store interface {
	Load(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
}
