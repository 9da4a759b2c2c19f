// Package domain provides shared domain-level sentinel errors.
package domain

import "errors"

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict indicates a concurrent modification conflict (optimistic locking).
var ErrConflict = errors.New("conflict: session was modified by another request")

// ErrValidation indicates the request payload failed validation.
var ErrValidation = errors.New("validation failed")

// ErrTerminalSession indicates a turn was submitted for a session whose
// current stage accepts no further transitions.
var ErrTerminalSession = errors.New("session is in a terminal stage")

// ErrUndeclaredTool indicates a stage handler requested a capability outside
// its declared tool set. Recorded on the turn's audit event; never user-facing.
var ErrUndeclaredTool = errors.New("handler requested undeclared tool")

// ErrFatal indicates the orchestrator exhausted its persist-conflict retries.
// Under the single-in-flight-turn invariant this cannot happen; seeing it
// means the invariant is broken.
var ErrFatal = errors.New("fatal: persist conflict retries exhausted")
