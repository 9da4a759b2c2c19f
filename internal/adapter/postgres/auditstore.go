package postgres

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parleyhq/parley/internal/domain/event"
)

// AuditStore persists turn events for later inspection. It implements the
// audit sink port: failures are logged and swallowed, never surfaced,
// because audit delivery must not fail a turn.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Emit writes the event to the audit_events table, best-effort.
func (a *AuditStore) Emit(ctx context.Context, ev *event.TurnEvent) {
	callsJSON, err := json.Marshal(ev.ToolCalls)
	if err != nil {
		slog.Error("audit store: encode tool calls", "error", err, "event_id", ev.ID)
		return
	}

	_, err = a.pool.Exec(ctx,
		`INSERT INTO audit_events (id, type, session_id, turn_id, stage_at_entry, stage_at_exit,
		                           confidence, gate_decision, tool_calls, detail, request_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ev.ID, ev.Type, ev.SessionID, ev.TurnID, ev.StageAtEntry, ev.StageAtExit,
		ev.Confidence, ev.GateDecision, callsJSON, ev.Detail, ev.RequestID, ev.CreatedAt)
	if err != nil {
		slog.Error("audit store: insert failed", "error", err, "event_id", ev.ID)
	}
}

// ListBySession returns the stored events for a session, oldest first.
func (a *AuditStore) ListBySession(ctx context.Context, sessionID string) ([]event.TurnEvent, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT id, type, session_id, turn_id, stage_at_entry, stage_at_exit,
		        confidence, gate_decision, tool_calls, detail, request_id, created_at
		 FROM audit_events WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []event.TurnEvent
	for rows.Next() {
		var (
			ev        event.TurnEvent
			callsJSON []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.SessionID, &ev.TurnID,
			&ev.StageAtEntry, &ev.StageAtExit, &ev.Confidence, &ev.GateDecision,
			&callsJSON, &ev.Detail, &ev.RequestID, &ev.CreatedAt); err != nil {
			return nil, err
		}
		if len(callsJSON) > 0 {
			_ = json.Unmarshal(callsJSON, &ev.ToolCalls)
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
