// Package nats implements the audit event sink on NATS JetStream and
// provides the JetStream KV bucket used as the L2 tool-result cache.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/parleyhq/parley/internal/domain/event"
)

const streamName = "PARLEY"

// Conn wraps the NATS connection and JetStream context.
type Conn struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// Connect establishes a connection to NATS and ensures the audit stream exists.
func Connect(ctx context.Context, url string) (*Conn, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{"turns.>"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream stream create: %w", err)
	}

	slog.Info("nats connected", "url", url, "stream", streamName)
	return &Conn{nc: nc, js: js}, nil
}

// KeyValue returns the named KV bucket, creating it with the given TTL if absent.
func (c *Conn) KeyValue(ctx context.Context, bucket string, ttl time.Duration) (jetstream.KeyValue, error) {
	kv, err := c.js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("jetstream kv %s: %w", bucket, err)
	}
	return kv, nil
}

// Close shuts down the NATS connection.
func (c *Conn) Close() error {
	c.nc.Close()
	return nil
}

// Sink publishes turn events to the audit stream. It implements the audit
// sink port: publish failures are logged, never surfaced.
type Sink struct {
	js jetstream.JetStream
}

// NewSink creates a Sink on the given connection.
func NewSink(c *Conn) *Sink {
	return &Sink{js: c.js}
}

// Emit publishes the event on turns.<session_id>, best-effort.
func (s *Sink) Emit(ctx context.Context, ev *event.TurnEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("nats sink: encode event", "error", err, "event_id", ev.ID)
		return
	}

	subject := "turns." + ev.SessionID
	if _, err := s.js.Publish(ctx, subject, data); err != nil {
		slog.Error("nats sink: publish failed", "error", err, "subject", subject)
	}
}
