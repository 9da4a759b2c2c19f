package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/parleyhq/parley/internal/domain/event"
)

// Sink feeds audit events into the hub so connected clients see turns as
// they happen. Delivery is best-effort like every other sink.
type Sink struct {
	hub *Hub
}

// NewSink wraps a hub as an audit sink.
func NewSink(hub *Hub) *Sink {
	return &Sink{hub: hub}
}

// Emit broadcasts the event to subscribed connections.
func (s *Sink) Emit(ctx context.Context, evt *event.TurnEvent) {
	payload, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal ws turn event", "type", evt.Type, "error", err)
		return
	}
	s.hub.Broadcast(ctx, evt.SessionID, Message{
		Type:    string(evt.Type),
		Payload: payload,
	})
}
