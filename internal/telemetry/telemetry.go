// Package telemetry wires OpenTelemetry tracing and metrics around the
// crdt package's merge and extraction operations, the way
// internal/storage/dolt instruments SQL operations in the teacher
// project: the core stays dependency-free and I/O-free (spec.md §5),
// and a thin wrapper layer adds observability around calls into it.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Shutdown flushes and releases the telemetry providers installed by Init.
type Shutdown func(context.Context) error

// Init installs a stdout-exporting tracer and meter provider as the
// global OTel providers, for local inspection (e.g. `driftline sync
// --trace`). Until Init runs, the package-level tracer/meter vars in
// this package are no-ops, matching the teacher's "delegating
// provider" comment on doltTracer/doltMetrics.
func Init(serviceName string) (Shutdown, error) {
	traceExporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: new trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	otel.SetTracerProvider(tp)

	metricExporter, err := stdoutmetric.New()
	if err != nil {
		return nil, fmt.Errorf("telemetry: new metric exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetMeterProvider(mp)

	_ = serviceName // reserved for a resource.WithAttributes() call once span naming needs it

	return func(ctx context.Context) error {
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown tracer provider: %w", err)
		}
		if err := mp.Shutdown(ctx); err != nil {
			return fmt.Errorf("telemetry: shutdown meter provider: %w", err)
		}
		return nil
	}, nil
}
