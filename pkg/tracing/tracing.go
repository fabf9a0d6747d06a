package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Exporter types
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
	ExporterJaeger = "jaeger"
)

const instrumentationName = "github.com/therealutkarshpriyadarshi/ccfraud"

// Config holds tracing configuration
type Config struct {
	Enabled          bool
	ServiceName      string
	ServiceVersion   string
	Environment      string
	SamplingRate     float64
	ExporterType     string // stdout, otlp, jaeger
	ExporterEndpoint string
}

// DefaultConfig returns default tracing configuration
func DefaultConfig() *Config {
	return &Config{
		Enabled:        false,
		ServiceName:    "ccfraud-feature-pipeline",
		ServiceVersion: "1.0.0",
		Environment:    "development",
		SamplingRate:   1.0,
		ExporterType:   ExporterStdout,
	}
}

// TracerProvider owns the OpenTelemetry SDK provider. A disabled provider
// hands out no-op spans.
type TracerProvider struct {
	sdk     *sdktrace.TracerProvider
	tracer  trace.Tracer
	logger  *zap.Logger
	enabled bool
}

// NewProvider creates a tracing provider with the configured exporter
func NewProvider(ctx context.Context, config *Config, logger *zap.Logger) (*TracerProvider, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if !config.Enabled {
		logger.Info("Distributed tracing is disabled")
		return &TracerProvider{
			tracer: noop.NewTracerProvider().Tracer(instrumentationName),
			logger: logger,
		}, nil
	}

	exporter, err := newExporter(ctx, config)
	if err != nil {
		return nil, err
	}

	logger.Info("Distributed tracing initialized",
		zap.String("service", config.ServiceName),
		zap.String("exporter", config.ExporterType),
		zap.String("endpoint", config.ExporterEndpoint),
		zap.Float64("sampling_rate", config.SamplingRate))

	return NewProviderWithExporter(config, exporter, logger), nil
}

// NewProviderWithExporter creates an enabled provider exporting to exporter
func NewProviderWithExporter(config *Config, exporter sdktrace.SpanExporter, logger *zap.Logger) *TracerProvider {
	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(config.ServiceName),
		semconv.ServiceVersion(config.ServiceVersion),
		attribute.String("deployment.environment", config.Environment),
	)

	sdk := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.SamplingRate))),
	)

	return &TracerProvider{
		sdk:     sdk,
		tracer:  sdk.Tracer(instrumentationName),
		logger:  logger,
		enabled: true,
	}
}

func newExporter(ctx context.Context, config *Config) (sdktrace.SpanExporter, error) {
	switch config.ExporterType {
	case ExporterStdout, "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(config.ExporterEndpoint),
			otlptracehttp.WithInsecure(),
		)
	case ExporterJaeger:
		return jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(config.ExporterEndpoint)))
	}
	return nil, fmt.Errorf("unsupported trace exporter: %s", config.ExporterType)
}

// Enabled reports whether spans are exported
func (tp *TracerProvider) Enabled() bool {
	return tp.enabled
}

// Tracer returns the pipeline tracer
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// StartSpan starts a new span as a child of the span in ctx
func (tp *TracerProvider) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tp.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// ForceFlush exports all ended spans
func (tp *TracerProvider) ForceFlush(ctx context.Context) error {
	if !tp.enabled {
		return nil
	}
	return tp.sdk.ForceFlush(ctx)
}

// Shutdown flushes and stops the provider
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if !tp.enabled {
		return nil
	}

	tp.logger.Info("Shutting down tracing provider")
	return tp.sdk.Shutdown(ctx)
}

// EndSpan records the outcome of the traced operation and ends the span
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// TraceID returns the trace id of the span in ctx, or "" without one
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// SpanID returns the span id of the span in ctx, or "" without one
func SpanID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasSpanID() {
		return ""
	}
	return sc.SpanID().String()
}

var propagator = propagation.TraceContext{}

// InjectTraceContext writes W3C trace context headers for the span in ctx
func InjectTraceContext(ctx context.Context, headers map[string]string) {
	propagator.Inject(ctx, propagation.MapCarrier(headers))
}

// ExtractTraceContext returns ctx carrying the remote span found in headers
func ExtractTraceContext(ctx context.Context, headers map[string]string) context.Context {
	return propagator.Extract(ctx, propagation.MapCarrier(headers))
}
