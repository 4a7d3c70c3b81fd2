// Package telemetry wires up the OpenTelemetry tracer provider used by
// cmd/sondeo to wrap build and query operations in spans, following the
// standard otel.Tracer(...).Start(...) span convention.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName identifies sondeo's spans in exported traces.
const TracerName = "sondeo"

// Setup installs a global tracer provider. When traceEnabled is false the
// provider exports to io.Discard, so Start/End calls remain cheap no-ops
// rather than requiring call sites to branch on whether tracing is on.
func Setup(traceEnabled bool) (shutdown func(context.Context) error, err error) {
	var out io.Writer = io.Discard
	if traceEnabled {
		out = os.Stderr
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(out), stdouttrace.WithoutTimestamps())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Tracer returns sondeo's tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}
