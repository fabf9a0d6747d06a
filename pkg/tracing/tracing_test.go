package tracing

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func enabledProvider(t *testing.T) (*TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	cfg := DefaultConfig()
	cfg.Enabled = true
	tp := NewProviderWithExporter(cfg, exporter, zap.NewNop())
	t.Cleanup(func() { tp.Shutdown(context.Background()) })
	return tp, exporter
}

func TestDisabledProvider(t *testing.T) {
	tp, err := NewProvider(context.Background(), DefaultConfig(), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tp.Enabled())

	ctx, span := tp.StartSpan(context.Background(), "noop")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
	assert.NoError(t, tp.Shutdown(context.Background()))
}

func TestUnsupportedExporter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = true
	cfg.ExporterType = "zipkin"
	_, err := NewProvider(context.Background(), cfg, zap.NewNop())
	assert.EqualError(t, err, "unsupported trace exporter: zipkin")
}

func TestStageSpans(t *testing.T) {
	tp, exporter := enabledProvider(t)
	ih := NewInstrumentationHelper(tp)

	ctx, run := ih.TraceRun(context.Background(), "run-1", "synthetic")
	_, stage := ih.TraceStage(ctx, "enrich")
	EndSpan(stage, nil)
	_, write := ih.TraceStoreWrite(ctx, "cc_trans_fraud_2", 3)
	EndSpan(write, errors.New("broker down"))
	EndSpan(run, nil)

	require.NoError(t, tp.ForceFlush(context.Background()))
	spans := exporter.GetSpans()
	require.Len(t, spans, 3)

	byName := map[string]tracetest.SpanStub{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	root := byName["pipeline.run"]
	assert.Contains(t, root.Attributes, attribute.String("run.id", "run-1"))
	assert.Equal(t, codes.Ok, root.Status.Code)

	enrich := byName["pipeline.enrich"]
	assert.Equal(t, root.SpanContext.SpanID(), enrich.Parent.SpanID())
	assert.Equal(t, root.SpanContext.TraceID(), enrich.SpanContext.TraceID())

	w := byName["store.write"]
	assert.Equal(t, codes.Error, w.Status.Code)
	assert.Equal(t, "broker down", w.Status.Description)
	assert.Contains(t, w.Attributes, attribute.Int("rows", 3))
	require.Len(t, w.Events, 1)
	assert.Equal(t, "exception", w.Events[0].Name)
}

func TestTraceContextPropagation(t *testing.T) {
	tp, _ := enabledProvider(t)
	ctx, span := tp.StartSpan(context.Background(), "producer")
	defer span.End()

	headers := map[string]string{}
	InjectTraceContext(ctx, headers)
	require.Contains(t, headers, "traceparent")
	assert.True(t, strings.Contains(headers["traceparent"], TraceID(ctx)))

	remote := ExtractTraceContext(context.Background(), headers)
	assert.Equal(t, TraceID(ctx), TraceID(remote))
	assert.Equal(t, SpanID(ctx), SpanID(remote))
}

func TestContextLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	ContextLogger(context.Background(), logger).Info("no trace")

	tp, _ := enabledProvider(t)
	ctx, span := tp.StartSpan(context.Background(), "stage")
	defer span.End()
	ContextLogger(ctx, logger).Info("traced")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())
	assert.Equal(t, TraceID(ctx), entries[1].ContextMap()["trace_id"])
	assert.Equal(t, SpanID(ctx), entries[1].ContextMap()["span_id"])
}

func TestNewStructuredLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.log")
	cfg := DefaultStructuredLogConfig()
	cfg.Level = zapcore.WarnLevel
	cfg.OutputPaths = []string{path}
	cfg.InitialFields = map[string]interface{}{"service": "ccfraud"}

	logger, err := NewStructuredLogger(cfg)
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept", zap.Int("rows", 2))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "kept", entry["message"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "ccfraud", entry["service"])
	assert.Equal(t, 2.0, entry["rows"])
}

func TestNewStructuredLoggerRejectsUnknownEncoding(t *testing.T) {
	cfg := DefaultStructuredLogConfig()
	cfg.Encoding = "xml"
	_, err := NewStructuredLogger(cfg)
	assert.Error(t, err)
}
