// Package audit defines the one-way sink receiving a structured event for
// every stage transition.
package audit

import (
	"context"
	"log/slog"

	"github.com/parleyhq/parley/internal/domain/event"
)

// Sink receives turn events. Delivery is best-effort: implementations must
// absorb their own failures and must never block turn processing.
type Sink interface {
	Emit(ctx context.Context, ev *event.TurnEvent)
}

// Multi fans an event out to several sinks.
type Multi []Sink

// Emit delivers ev to every sink in order.
func (m Multi) Emit(ctx context.Context, ev *event.TurnEvent) {
	for _, s := range m {
		s.Emit(ctx, ev)
	}
}

// Logger is a Sink writing events to structured logs. Useful on its own in
// development and as the fallback when no event transport is configured.
type Logger struct{}

// Emit logs the event at debug level.
func (Logger) Emit(_ context.Context, ev *event.TurnEvent) {
	slog.Debug("turn event",
		"type", ev.Type,
		"session_id", ev.SessionID,
		"turn_id", ev.TurnID,
		"stage_at_entry", ev.StageAtEntry,
		"stage_at_exit", ev.StageAtExit,
		"confidence", ev.Confidence,
		"gate_decision", ev.GateDecision,
		"tool_calls", len(ev.ToolCalls),
	)
}
