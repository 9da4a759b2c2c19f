// Package session defines the conversation session model and its stage machine.
package session

import (
	"time"

	"github.com/parleyhq/parley/internal/domain/tool"
)

// Stage is one named step in the conversation state machine.
type Stage string

const (
	StageGreeting        Stage = "greeting"
	StageIntentDetection Stage = "intent_detection"
	StageSlotFilling     Stage = "slot_filling"
	StageToolExecution   Stage = "tool_execution"
	StageConfirmation    Stage = "confirmation"
	StageEscalation      Stage = "escalation"
	StageCompleted       Stage = "completed"
	StageEscalated       Stage = "escalated"
)

// GateDecision is the outcome of the confidence gate for one turn.
type GateDecision string

const (
	DecisionProceed  GateDecision = "proceed"
	DecisionEscalate GateDecision = "escalate"
)

// transitions is the fixed success edge for each non-terminal stage.
// Gate failures always route to StageEscalation; no other edges exist.
var transitions = map[Stage]Stage{
	StageGreeting:        StageIntentDetection,
	StageIntentDetection: StageSlotFilling,
	StageSlotFilling:     StageToolExecution,
	StageToolExecution:   StageConfirmation,
	StageConfirmation:    StageCompleted,
	StageEscalation:      StageEscalated,
}

// Next returns the stage reached from s on a successful, gate-passed turn.
// ok is false for terminal or unknown stages.
func Next(s Stage) (Stage, bool) {
	n, ok := transitions[s]
	return n, ok
}

// Valid reports whether s is one of the defined stages.
func Valid(s Stage) bool {
	switch s {
	case StageGreeting, StageIntentDetection, StageSlotFilling,
		StageToolExecution, StageConfirmation, StageEscalation,
		StageCompleted, StageEscalated:
		return true
	}
	return false
}

// Terminal reports whether s accepts no further transitions.
func Terminal(s Stage) bool {
	return s == StageCompleted || s == StageEscalated
}

// Turn records one inbound utterance and the transition it produced.
// Immutable once appended to a session's history.
type Turn struct {
	ID           string            `json:"id"`
	Input        string            `json:"input"`
	StageAtEntry Stage             `json:"stage_at_entry"`
	StageAtExit  Stage             `json:"stage_at_exit"`
	Confidence   float64           `json:"confidence"`
	GateDecision GateDecision      `json:"gate_decision"`
	Reply        string            `json:"reply,omitempty"`
	ToolCalls    []tool.CallResult `json:"tool_calls,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Session is one ongoing conversation. It is mutated exclusively by the
// orchestrator; Version backs the store's optimistic concurrency check.
type Session struct {
	ID           string            `json:"id"`
	CurrentStage Stage             `json:"current_stage"`
	Turns        []Turn            `json:"turns"`
	Slots        map[string]string `json:"slots"`
	Language     string            `json:"language,omitempty"`
	Version      int64             `json:"version"`
	CreatedAt    time.Time         `json:"created_at"`
	LastUpdated  time.Time         `json:"last_updated"`
}

// New returns a fresh session at the greeting stage with version 0.
// Version 0 marks a session the store has never persisted.
func New(id string, now time.Time) *Session {
	return &Session{
		ID:           id,
		CurrentStage: StageGreeting,
		Slots:        make(map[string]string),
		CreatedAt:    now,
		LastUpdated:  now,
	}
}

// LastTurn returns the most recent turn, or nil for a virgin session.
func (s *Session) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}
