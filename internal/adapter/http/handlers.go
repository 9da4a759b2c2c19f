package http

import (
	"context"
	"net/http"

	"github.com/parleyhq/parley/internal/domain/event"
	"github.com/parleyhq/parley/internal/domain/session"
	"github.com/parleyhq/parley/internal/gate"
	"github.com/parleyhq/parley/internal/service"
)

// EventLister reads back persisted audit events. Nil when the deployment
// has no queryable audit backend (memory storage without Postgres).
type EventLister interface {
	ListBySession(ctx context.Context, sessionID string) ([]event.TurnEvent, error)
}

// Handlers bundles the dependencies for all HTTP endpoints.
type Handlers struct {
	orch       *service.Orchestrator
	thresholds *service.ThresholdService
	events     EventLister
	version    string
}

// NewHandlers creates the HTTP handler set. events may be nil.
func NewHandlers(orch *service.Orchestrator, thresholds *service.ThresholdService, events EventLister, version string) *Handlers {
	return &Handlers{
		orch:       orch,
		thresholds: thresholds,
		events:     events,
		version:    version,
	}
}

// Health responds to liveness probes.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.version,
	})
}

type turnRequest struct {
	Input    string `json:"input"`
	Language string `json:"language,omitempty"`
}

type turnResponse struct {
	SessionID string        `json:"session_id"`
	Turn      *session.Turn `json:"turn"`
}

// ProcessTurn submits one utterance to a session, creating the session on
// first contact.
func (h *Handlers) ProcessTurn(w http.ResponseWriter, r *http.Request) {
	id := urlParam(r, "id")

	req, ok := readJSON[turnRequest](w, r)
	if !ok {
		return
	}
	if req.Input == "" {
		writeError(w, http.StatusBadRequest, "input is required")
		return
	}

	turn, err := h.orch.ProcessTurnLang(r.Context(), id, req.Input, req.Language)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{SessionID: id, Turn: turn})
}

// GetSession returns the full session state including turn history.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.orch.GetSession(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// ListTurns returns just the turn history of a session.
func (h *Handlers) ListTurns(w http.ResponseWriter, r *http.Request) {
	sess, err := h.orch.GetSession(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"turns":      sess.Turns,
	})
}

// ListEvents returns the audit trail of a session, oldest first.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		writeError(w, http.StatusNotImplemented, "audit event storage is not configured")
		return
	}
	events, err := h.events.ListBySession(r.Context(), urlParam(r, "id"))
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

// GetThresholds returns the active confidence thresholds.
func (h *Handlers) GetThresholds(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.thresholds.Current())
}

// UpdateThresholds atomically replaces the confidence thresholds.
// In-flight turns finish against the snapshot they started with.
func (h *Handlers) UpdateThresholds(w http.ResponseWriter, r *http.Request) {
	th, ok := readJSON[gate.Thresholds](w, r)
	if !ok {
		return
	}
	if err := h.thresholds.Swap(&th); err != nil {
		writeDomainError(w, err, "invalid thresholds")
		return
	}
	writeJSON(w, http.StatusOK, h.thresholds.Current())
}
