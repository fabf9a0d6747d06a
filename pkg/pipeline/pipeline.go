// Package pipeline drives feature pipeline runs: load a dataset, derive the
// feature tables and write them to the feature store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/config"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/features"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/metrics"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/store"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/tracing"
	"go.uber.org/zap"
)

// Stage names used for spans, latency and error metrics
const (
	StageLoad    = "load"
	StageEnrich  = "enrich"
	StageCompute = "compute"
	StageBuild   = "build"
	StageWrite   = "write"
)

// Config wires a pipeline
type Config struct {
	Settings *config.Config
	Source   Source
	Store    store.FeatureStore
	Logger   *zap.Logger

	// Optional
	Collector *metrics.Collector
	Tracer    *tracing.TracerProvider
	Pusher    *metrics.Pusher
	Clock     clockwork.Clock
}

// Validate checks the required dependencies
func (c *Config) Validate() error {
	switch {
	case c.Settings == nil:
		return errors.New("settings are required")
	case c.Source == nil:
		return errors.New("source is required")
	case c.Store == nil:
		return errors.New("store is required")
	case c.Logger == nil:
		return errors.New("logger is required")
	}
	return nil
}

// RunReport summarizes one run
type RunReport struct {
	RunID             string         `json:"run_id"`
	Mode              string         `json:"mode"`
	StartedAt         time.Time      `json:"started_at"`
	Duration          time.Duration  `json:"duration"`
	Transactions      int            `json:"transactions"`
	FraudTransactions int            `json:"fraud_transactions"`
	FraudRatio        float64        `json:"fraud_ratio"`
	Rows              map[string]int `json:"rows"`
	Error             string         `json:"error,omitempty"`
}

// TotalRows returns the number of rows written over all groups
func (r *RunReport) TotalRows() int {
	total := 0
	for _, n := range r.Rows {
		total += n
	}
	return total
}

// Pipeline runs the feature pipeline against one store
type Pipeline struct {
	settings  *config.Config
	source    Source
	store     store.FeatureStore
	collector *metrics.Collector
	tracer    *tracing.InstrumentationHelper
	pusher    *metrics.Pusher
	retry     *ferrors.RetryPolicy
	clock     clockwork.Clock
	logger    *zap.Logger

	mu   sync.RWMutex
	last *RunReport
}

// New creates a pipeline
func New(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}

	collector := cfg.Collector
	if collector == nil {
		collector = metrics.NewCollector(cfg.Settings.Metrics.Namespace, cfg.Logger)
	}
	tracer := cfg.Tracer
	if tracer == nil {
		var err error
		if tracer, err = tracing.NewProvider(context.Background(), nil, zap.NewNop()); err != nil {
			return nil, err
		}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Pipeline{
		settings:  cfg.Settings,
		source:    cfg.Source,
		store:     cfg.Store,
		collector: collector,
		tracer:    tracing.NewInstrumentationHelper(tracer),
		pusher:    cfg.Pusher,
		retry:     cfg.Settings.RetryPolicy(),
		clock:     clock,
		logger:    cfg.Logger,
	}, nil
}

// LastReport returns the report of the last finished run, or nil
func (p *Pipeline) LastReport() *RunReport {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run derives and writes the feature tables once. Nothing is written when a
// stage before the write fails.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	if timeout := p.settings.Pipeline.RunTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	report := &RunReport{
		RunID:     uuid.NewString(),
		Mode:      p.settings.Pipeline.Mode,
		StartedAt: p.clock.Now(),
		Rows:      make(map[string]int, 3),
	}

	ctx, span := p.tracer.TraceRun(ctx, report.RunID, report.Mode)
	logger := tracing.ContextLogger(ctx, p.logger).With(zap.String("run_id", report.RunID))

	err := p.run(ctx, report, logger)

	report.Duration = p.clock.Since(report.StartedAt)
	tracing.EndSpan(span, err)
	p.collector.ObserveRun(report.Mode, err, report.Duration, p.clock.Now())

	if err != nil {
		report.Error = err.Error()
		logger.Error("Feature pipeline run failed",
			zap.String("mode", report.Mode),
			zap.String("category", ferrors.ClassifyError(err).String()),
			zap.Error(err))
	} else {
		logger.Info("Feature pipeline run completed",
			zap.String("mode", report.Mode),
			zap.Int("transactions", report.Transactions),
			zap.Float64("fraud_ratio", report.FraudRatio),
			zap.Int("rows", report.TotalRows()),
			zap.Duration("duration", report.Duration))
	}

	p.mu.Lock()
	p.last = report
	p.mu.Unlock()

	p.push(ctx, logger)
	return report, err
}

func (p *Pipeline) run(ctx context.Context, report *RunReport, logger *zap.Logger) error {
	f := p.settings.Features
	windowLen := time.Duration(f.WindowHours) * time.Hour

	var (
		ds       *model.Dataset
		enriched []model.EnrichedTransaction
		labels   []model.FraudLabel
		result   *features.Result
		tables   *Tables
	)

	if err := p.stage(ctx, StageLoad, func(ctx context.Context) (err error) {
		ds, err = p.source.Load(ctx)
		return err
	}); err != nil {
		return err
	}
	p.recordDataset(report, ds)

	if err := p.stage(ctx, StageEnrich, func(ctx context.Context) (err error) {
		enriched, labels, err = features.Enrich(ds, features.EnrichOptions{
			Lookback: f.ActivityLookback,
			Thresholds: features.ActivityThresholds{
				Medium: f.ActivityMedium,
				High:   f.ActivityHigh,
			},
		})
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, StageCompute, func(ctx context.Context) (err error) {
		result, err = features.Compute(ctx, enriched, features.ComputeOptions{
			WindowLen:   windowLen,
			Parallelism: f.Parallelism,
		})
		return err
	}); err != nil {
		return err
	}

	if err := p.stage(ctx, StageBuild, func(ctx context.Context) (err error) {
		tables, err = BuildTables(result, labels, windowLen)
		return err
	}); err != nil {
		return err
	}

	return p.stage(ctx, StageWrite, func(ctx context.Context) error {
		for _, table := range tables.All() {
			if err := p.write(ctx, table, logger); err != nil {
				return err
			}
			report.Rows[table.Group.ID()] = table.Len()
		}
		return nil
	})
}

func (p *Pipeline) recordDataset(report *RunReport, ds *model.Dataset) {
	report.Transactions = len(ds.Transactions)
	for _, tx := range ds.Transactions {
		if tx.FraudLabel {
			report.FraudTransactions++
		}
	}
	if report.Transactions > 0 {
		report.FraudRatio = float64(report.FraudTransactions) / float64(report.Transactions)
	}

	p.collector.TransactionsGenerated.WithLabelValues(report.Mode).Add(float64(report.Transactions))
	p.collector.FraudTransactions.WithLabelValues(report.Mode).Add(float64(report.FraudTransactions))
	p.collector.FraudRatio.Set(report.FraudRatio)
}

func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := p.clock.Now()
	ctx, span := p.tracer.TraceStage(ctx, name)

	err := fn(ctx)

	tracing.EndSpan(span, err)
	p.collector.ObserveStage(name, p.clock.Since(start))
	if err != nil {
		p.collector.ErrorMetrics.RecordError(name, err)
		return fmt.Errorf("%s stage failed: %w", name, err)
	}
	return nil
}

// write stores one table, retrying retriable store errors
func (p *Pipeline) write(ctx context.Context, table *store.Table, logger *zap.Logger) error {
	group := table.Group.ID()
	ctx, span := p.tracer.TraceStoreWrite(ctx, group, table.Len())
	start := p.clock.Now()

	result := p.retry.ExecuteWithCallback(ctx,
		func(ctx context.Context) error {
			return p.store.Write(ctx, table)
		},
		func(attempt int, err error, nextBackoff time.Duration) {
			if nextBackoff == 0 {
				return
			}
			p.collector.ErrorMetrics.RecordRetry(group, err)
			logger.Warn("Feature store write failed, retrying",
				zap.String("feature_group", group),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", nextBackoff),
				zap.Error(err))
		},
	)

	p.collector.ErrorMetrics.RecordResult(group, result)
	p.collector.StoreWriteLatency.WithLabelValues(group).Observe(p.clock.Since(start).Seconds())

	err := result.Err()
	tracing.EndSpan(span, err)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", group, err)
	}

	p.collector.RowsWritten.WithLabelValues(group).Add(float64(table.Len()))
	logger.Debug("Feature table written",
		zap.String("feature_group", group),
		zap.Int("rows", table.Len()),
		zap.Int("attempts", result.Attempts))
	return nil
}

func (p *Pipeline) push(ctx context.Context, logger *zap.Logger) {
	if p.pusher == nil {
		return
	}
	// The run context may already be done; pushing the outcome still matters
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := p.pusher.Push(ctx); err != nil {
		logger.Warn("Failed to push run metrics", zap.Error(err))
	}
}

// Schedule runs the pipeline immediately and then on every tick until ctx
// ends. A failed run is logged and the schedule continues; every run re-derives
// its tables and writes are idempotent.
func (p *Pipeline) Schedule(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ferrors.NewConfigurationError("schedule", "must be positive, got %s", interval)
	}

	p.logger.Info("Starting scheduled feature pipeline", zap.Duration("interval", interval))

	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()

	_, _ = p.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Scheduled feature pipeline stopped", zap.NamedError("reason", ctx.Err()))
			return nil
		case <-ticker.Chan():
			_, _ = p.Run(ctx)
		}
	}
}
