package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "parley"

// StartTurnSpan starts a span covering one processed turn.
func StartTurnSpan(ctx context.Context, sessionID string, stage string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("session.stage", stage),
		),
	)
}

// StartToolCallSpan starts a span for one capability call within a turn.
func StartToolCallSpan(ctx context.Context, sessionID, tool string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "toolcall",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("toolcall.tool", tool),
		),
	)
}
