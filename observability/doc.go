// Package observability wires OpenTelemetry tracing and metrics for sttkit.
//
// Setup installs OTLP/HTTP exporters for both signals when enabled and
// returns a single shutdown function:
//
//	shutdown, err := observability.Setup(ctx, cfg)
//	defer shutdown(context.Background())
//
// Spans and instruments are always created through the global providers, so
// library code works unchanged (as no-ops) when Setup was never called:
//
//	ctx, span := observability.Tracer(observability.InstrumentationName).Start(ctx, observability.SpanJob)
//	defer span.End()
//
//	metrics, err := observability.NewMetrics(observability.Meter(observability.InstrumentationName))
//	metrics.RecordAttempt(ctx, "whisper", observability.StatusError, elapsed)
//
// ServiceHealth aggregates component health for the HTTP health endpoint.
package observability
