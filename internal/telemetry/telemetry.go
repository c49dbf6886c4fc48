package telemetry

import (
	"context"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

type shutdownFunc = func(context.Context) error

func noop(context.Context) error { return nil }

// Setup installs a global tracer provider exporting over OTLP gRPC when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. W3C trace context propagation is
// installed either way so console and issuer requests join server traces.
func Setup(serviceName string, logger *logrus.Logger) shutdownFunc {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return noop
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(endpoint)}
	if insecure, _ := strconv.ParseBool(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(context.Background(), opts...)
	if err != nil {
		logger.WithFields(logrus.Fields{"endpoint": endpoint, "error": err.Error()}).Warn("tracing disabled")
		return noop
	}

	attrs := resource.WithAttributes(semconv.ServiceName(serviceName))
	res, err := resource.New(context.Background(), attrs, resource.WithFromEnv(), resource.WithHost())
	if err != nil {
		logger.WithField("error", err.Error()).Warn("trace resource incomplete")
	}

	ratio := SampleRatio(os.Getenv("OTEL_TRACES_SAMPLER_ARG"))
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	)
	otel.SetTracerProvider(provider)
	logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"service":  serviceName,
		"ratio":    ratio,
	}).Info("tracing enabled")

	return provider.Shutdown
}

// SampleRatio parses a sampling ratio in [0,1], defaulting to 1.
func SampleRatio(raw string) float64 {
	ratio, err := strconv.ParseFloat(raw, 64)
	if err != nil || ratio < 0 || ratio > 1 {
		return 1
	}
	return ratio
}
