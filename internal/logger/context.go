package logger

import "context"

// ctxKey keeps the stored values private to this package.
type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeySessionID
)

// WithRequestID stores the request ID so it can travel from the HTTP
// layer into orchestrator audit events.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestID returns the stored request ID, or "" when none is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// WithSessionID stores the session ID for log correlation across a turn.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeySessionID, id)
}

// SessionID returns the stored session ID, or "" when none is set.
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeySessionID).(string)
	return id
}
