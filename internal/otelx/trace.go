// Package otelx provides small helpers for pulling trace context out of a
// context.Context, used by the audit log.
package otelx

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// GetTraceID returns the hex-encoded trace ID of the span in ctx, or "" if
// ctx carries no recording span.
func GetTraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// GetSpanID returns the hex-encoded span ID of the span in ctx, or "" if ctx
// carries no recording span.
func GetSpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}
