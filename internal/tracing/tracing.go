// Package tracing sets up the OpenTelemetry tracer provider used to trace task executions.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/slok/cmdpool/internal/log"
	"github.com/slok/cmdpool/internal/model"
)

// Supported exporters.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPHTTP = "otlphttp"
)

// Exporters are the accepted exporter names.
var Exporters = []string{ExporterNone, ExporterStdout, ExporterOTLPHTTP}

// Config is the tracing configuration.
type Config struct {
	Exporter string
	// Endpoint is the OTLP HTTP collector URL, "http://localhost:4318" by default.
	Endpoint string
	Insecure bool
	// SampleRatio is the ratio of root spans sampled, from 0 to 1.
	SampleRatio    float64
	ServiceName    string
	ServiceVersion string
	// Out is where the stdout exporter writes, os.Stderr by default.
	Out    io.Writer
	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Exporter == "" {
		c.Exporter = ExporterNone
	}
	if c.Endpoint == "" {
		c.Endpoint = "http://localhost:4318"
	}
	if c.SampleRatio < 0 || c.SampleRatio > 1 {
		return fmt.Errorf("sample ratio must be between 0 and 1: %w", model.ErrNotValid)
	}
	if c.ServiceName == "" {
		c.ServiceName = "cmdpool"
	}
	if c.Out == nil {
		c.Out = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "tracing"})
	return nil
}

// Setup creates the tracer provider for the exporter and sets it as the global
// one. The returned shutdown func flushes the pending spans.
func Setup(ctx context.Context, cfg Config) (tp trace.TracerProvider, shutdown func(context.Context) error, err error) {
	if err := cfg.defaults(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Exporter == ExporterNone {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, func(context.Context) error { return nil }, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	))
	if err != nil {
		return nil, nil, fmt.Errorf("could not create tracing resource: %w", err)
	}

	sdktp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(sdktp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	cfg.Logger.Debugf("Tracing enabled with %s exporter", cfg.Exporter)

	return sdktp, sdktp.Shutdown, nil
}

func newExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.Out))
		if err != nil {
			return nil, fmt.Errorf("could not create stdout exporter: %w", err)
		}
		return exp, nil
	case ExporterOTLPHTTP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("could not create OTLP exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q: %w", cfg.Exporter, model.ErrNotValid)
	}
}
