// Package observability sets up logging, Prometheus metrics and OpenTelemetry
// tracing for the scoring service, plus the small runtime guards (circuit
// breaker, trait drift monitor) that report through them.
package observability

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/fairyhunter13/psychometric-engine/internal/config"
)

// SetupTracing configures OTEL tracing if an endpoint is provided and returns
// the provider's shutdown func. Trace context is always propagated so spans
// started by the HTTP layer continue through queued scoring.
func SetupTracing(cfg config.Config) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{},
	))
	if cfg.OTLPEndpoint == "" {
		slog.Info("OTLP endpoint not set; tracing disabled")
		return nil, nil
	}

	exporter, err := otlptracegrpc.New(context.Background(), otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint), otlptracegrpc.WithInsecure())
	if err != nil {
		return nil, fmt.Errorf("op=observability.SetupTracing: %w", err)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(cfg.OTELServiceName),
		semconv.DeploymentEnvironmentKey.String(cfg.AppEnv),
	))
	if err != nil {
		return nil, fmt.Errorf("op=observability.SetupTracing: %w", err)
	}

	ratio := samplingRatio(cfg)
	slog.Info("tracing configured",
		slog.String("endpoint", cfg.OTLPEndpoint),
		slog.Float64("sampling_ratio", ratio))

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.ParentBased(trace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// samplingRatio returns OTEL_SAMPLING_RATIO when set. Otherwise prod keeps
// 10% of traces and every other environment keeps all of them.
func samplingRatio(cfg config.Config) float64 {
	switch {
	case cfg.OTELSamplingRatio > 0:
		return cfg.OTELSamplingRatio
	case cfg.IsProd():
		return 0.1
	default:
		return 1.0
	}
}
