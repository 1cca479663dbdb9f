// Package otel wires an opt-in OTLP/HTTP trace provider for the
// progression service.
package otel

import (
	"context"
	"os"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const (
	envEndpoint = "EVERGRIND_OTEL_ENDPOINT"
	envEnabled  = "EVERGRIND_OTEL_ENABLED"
)

// Setup registers a global tracer provider exporting to the endpoint named
// by EVERGRIND_OTEL_ENDPOINT. Tracing is opt-in: with no endpoint, or with
// EVERGRIND_OTEL_ENABLED set to "false", Setup registers nothing and
// returns a no-op shutdown. The returned shutdown flushes pending spans
// and should be deferred by the caller.
func Setup(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	endpoint, ok := tracingEndpoint()
	if !ok {
		return noop, nil
	}

	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return noop, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(serviceName)))
	if err != nil {
		return noop, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return provider.Shutdown, nil
}

func tracingEndpoint() (string, bool) {
	if strings.EqualFold(os.Getenv(envEnabled), "false") {
		return "", false
	}
	endpoint := strings.TrimSpace(os.Getenv(envEndpoint))
	if endpoint == "" {
		return "", false
	}
	return endpoint, true
}
