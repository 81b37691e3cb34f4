package reconcile

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var reconcileTracer = otel.Tracer("foosball-ledger/internal/reconcile")
var reconcileNoopSpan = trace.SpanFromContext(context.Background())

func startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if strings.TrimSpace(name) == "" {
		return ctx, reconcileNoopSpan
	}
	parent := trace.SpanFromContext(ctx)
	if !parent.SpanContext().IsValid() {
		return ctx, reconcileNoopSpan
	}
	return reconcileTracer.Start(ctx, name)
}
