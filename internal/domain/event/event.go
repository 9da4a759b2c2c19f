// Package event defines the TurnEvent emitted to the audit sink for every
// stage transition.
package event

import (
	"time"

	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/domain/tool"
)

// Type identifies the kind of audit event.
type Type string

const (
	TypeSessionCreated Type = "session.created"
	TypeTurnProcessed  Type = "turn.processed"
	TypeTurnEscalated  Type = "turn.escalated"
	TypeTurnRejected   Type = "turn.rejected"
)

// TurnEvent describes one processed turn for observability consumers.
// Delivery is best-effort; emitting must never fail or block a turn.
type TurnEvent struct {
	ID           string               `json:"id"`
	Type         Type                 `json:"type"`
	SessionID    string               `json:"session_id"`
	TurnID       string               `json:"turn_id,omitempty"`
	StageAtEntry session.Stage        `json:"stage_at_entry"`
	StageAtExit  session.Stage        `json:"stage_at_exit"`
	Confidence   float64              `json:"confidence"`
	GateDecision session.GateDecision `json:"gate_decision,omitempty"`
	ToolCalls    []tool.CallResult    `json:"tool_calls,omitempty"`
	Detail       string               `json:"detail,omitempty"`
	RequestID    string               `json:"request_id,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}
