package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ContextLogger returns a logger with the trace context of ctx, if any
func ContextLogger(ctx context.Context, logger *zap.Logger) *zap.Logger {
	traceID := TraceID(ctx)
	if traceID == "" {
		return logger
	}
	return logger.With(
		zap.String("trace_id", traceID),
		zap.String("span_id", SpanID(ctx)),
	)
}

// InstrumentationHelper names and annotates the spans of a pipeline run
type InstrumentationHelper struct {
	provider *TracerProvider
}

// NewInstrumentationHelper creates a new instrumentation helper
func NewInstrumentationHelper(provider *TracerProvider) *InstrumentationHelper {
	return &InstrumentationHelper{provider: provider}
}

// TraceRun starts the root span of one pipeline run
func (ih *InstrumentationHelper) TraceRun(ctx context.Context, runID, mode string) (context.Context, trace.Span) {
	return ih.provider.StartSpan(ctx, "pipeline.run",
		attribute.String("run.id", runID),
		attribute.String("run.mode", mode),
	)
}

// TraceStage traces one compute stage of a run
func (ih *InstrumentationHelper) TraceStage(ctx context.Context, stage string) (context.Context, trace.Span) {
	return ih.provider.StartSpan(ctx, fmt.Sprintf("pipeline.%s", stage),
		attribute.String("pipeline.stage", stage),
	)
}

// TraceStoreWrite traces the write of one feature table
func (ih *InstrumentationHelper) TraceStoreWrite(ctx context.Context, group string, rows int) (context.Context, trace.Span) {
	return ih.provider.StartSpan(ctx, "store.write",
		attribute.String("feature_group", group),
		attribute.Int("rows", rows),
	)
}

// StructuredLogConfig holds configuration for structured logging
type StructuredLogConfig struct {
	Level            zapcore.Level
	Encoding         string // json, console
	EnableStacktrace bool
	EnableCaller     bool
	OutputPaths      []string
	ErrorOutputPaths []string
	InitialFields    map[string]interface{}
}

// DefaultStructuredLogConfig returns default structured logging configuration
func DefaultStructuredLogConfig() *StructuredLogConfig {
	return &StructuredLogConfig{
		Level:            zapcore.InfoLevel,
		Encoding:         "json",
		EnableStacktrace: false,
		EnableCaller:     true,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		InitialFields:    make(map[string]interface{}),
	}
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(config *StructuredLogConfig) (*zap.Logger, error) {
	if config == nil {
		config = DefaultStructuredLogConfig()
	}

	encodeLevel := zapcore.LowercaseLevelEncoder
	if config.Encoding == "console" {
		encodeLevel = zapcore.CapitalLevelEncoder
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(config.Level),
		Encoding:          config.Encoding,
		DisableCaller:     !config.EnableCaller,
		DisableStacktrace: !config.EnableStacktrace,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    encodeLevel,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      config.OutputPaths,
		ErrorOutputPaths: config.ErrorOutputPaths,
	}

	if len(config.InitialFields) > 0 {
		zapConfig.InitialFields = make(map[string]interface{}, len(config.InitialFields))
		for k, v := range config.InitialFields {
			zapConfig.InitialFields[k] = v
		}
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
