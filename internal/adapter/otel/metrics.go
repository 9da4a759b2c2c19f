package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "parley"

// Metrics holds all Parley metric instruments.
type Metrics struct {
	TurnsProcessed metric.Int64Counter
	TurnsEscalated metric.Int64Counter
	TurnsRejected  metric.Int64Counter
	ToolCalls      metric.Int64Counter
	SaveConflicts  metric.Int64Counter
	TurnDuration   metric.Float64Histogram
	ToolDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsProcessed, err = meter.Int64Counter("parley.turns.processed",
		metric.WithDescription("Number of turns processed"))
	if err != nil {
		return nil, err
	}

	m.TurnsEscalated, err = meter.Int64Counter("parley.turns.escalated",
		metric.WithDescription("Number of turns routed to escalation"))
	if err != nil {
		return nil, err
	}

	m.TurnsRejected, err = meter.Int64Counter("parley.turns.rejected",
		metric.WithDescription("Number of turns rejected on terminal sessions"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("parley.toolcalls",
		metric.WithDescription("Number of capability calls"))
	if err != nil {
		return nil, err
	}

	m.SaveConflicts, err = meter.Int64Counter("parley.save.conflicts",
		metric.WithDescription("Number of optimistic save conflicts"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("parley.turn.duration_seconds",
		metric.WithDescription("Turn processing duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.ToolDuration, err = meter.Float64Histogram("parley.toolcall.duration_seconds",
		metric.WithDescription("Capability call duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
