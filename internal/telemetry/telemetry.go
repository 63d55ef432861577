// Package telemetry sets up OpenTelemetry tracing for the simulation.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName names the tracer used by the simulation packages.
const InstrumentationName = "github.com/udisondev/castcore"

// Config mirrors config.TelemetryConfig.
type Config struct {
	Endpoint    string
	ServiceName string
}

// Setup initialises tracing for the service.
//
// Tracing is opt-in: with an empty endpoint Setup returns a no-op tracer and
// a no-op shutdown, and no global provider is registered.
//
// The returned shutdown function flushes pending spans and should be deferred.
func Setup(ctx context.Context, cfg Config) (trace.Tracer, func(context.Context) error, error) {
	noopShutdown := func(context.Context) error { return nil }

	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return noop.NewTracerProvider().Tracer(InstrumentationName), noopShutdown, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("creating otlp exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = "castcore"
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		return nil, noopShutdown, fmt.Errorf("building otel resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Tracer(InstrumentationName), tp.Shutdown, nil
}
