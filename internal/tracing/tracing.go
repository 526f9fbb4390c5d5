// Package tracing wraps the OpenTelemetry trace API for the dispatcher.
// It deliberately wires no exporter: spec Non-goals exclude networking, so
// this package only ever talks to whatever TracerProvider the embedding
// application has installed via otel.SetTracerProvider. With no provider
// installed, otel's default is a no-op tracer, so tracing here never costs
// anything unless the caller opts in.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/oriys/dispatch")

// StartDispatch opens a span for one Dispatch/DispatchSeq call.
func StartDispatch(ctx context.Context, runID string, taskCount int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dispatch.Dispatch",
		trace.WithAttributes(
			attribute.String("dispatch.run_id", runID),
			attribute.Int("dispatch.task_count", taskCount),
		),
	)
}

// StartTask opens a span for a single task run.
func StartTask(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "dispatch.task",
		trace.WithAttributes(attribute.String("dispatch.task_name", name)),
	)
}
