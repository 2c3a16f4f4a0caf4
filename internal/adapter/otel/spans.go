package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "dartbridge"

// StartAnalysisSpan starts a span for a project analysis run.
func StartAnalysisSpan(ctx context.Context, runID, root string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "analysis",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("workspace.root", root),
		),
	)
}

// StartQuerySpan starts a span for a positional intelligence query.
func StartQuerySpan(ctx context.Context, method, file string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "query",
		trace.WithAttributes(
			attribute.String("query.method", method),
			attribute.String("query.file", file),
		),
	)
}
