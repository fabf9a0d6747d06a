package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/config"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/metrics"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/pipeline"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/store"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/tracing"
	"go.uber.org/zap"
)

var (
	configFile  = flag.String("config", "config.yaml", "Path to configuration file (defaults are used when it does not exist)")
	logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	mode        = flag.String("mode", "", "Pipeline mode (synthetic, backfill); overrides the config file")
	backfillDir = flag.String("backfill-dir", "", "Directory holding credit_cards.csv, profiles.csv and transactions.csv")
	schedule    = flag.Duration("schedule", 0, "Run repeatedly at this interval; 0 runs once")
	dumpConfig  = flag.Bool("dump-config", false, "Print the effective configuration as YAML and exit")
)

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ccfraud: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefaultWithEnv(*configFile)
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "mode":
			cfg.Pipeline.Mode = *mode
		case "backfill-dir":
			cfg.Pipeline.BackfillDir = *backfillDir
		case "schedule":
			cfg.Pipeline.Schedule = *schedule
		}
	})

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if *dumpConfig {
		out, err := config.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	logOpts, err := cfg.LoggerOptions()
	if err != nil {
		return err
	}
	logger, err := tracing.NewStructuredLogger(logOpts)
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("Starting credit card fraud feature pipeline",
		zap.String("version", cfg.Tracing.ServiceVersion),
		zap.String("config", *configFile),
		zap.String("mode", cfg.Pipeline.Mode),
		zap.Strings("backends", cfg.Store.Backends))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracer, err := tracing.NewProvider(ctx, cfg.TracingOptions(), logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Failed to shut down tracing", zap.Error(err))
		}
	}()

	fs, err := store.Open(ctx, cfg.StoreOptions(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := fs.Close(); err != nil {
			logger.Warn("Failed to close feature store", zap.Error(err))
		}
	}()

	clock := clockwork.NewRealClock()
	source, err := pipeline.NewSource(cfg, clock, logger)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector(cfg.Metrics.Namespace, logger)
	var pusher *metrics.Pusher
	if cfg.Metrics.PushGateway != "" {
		pusher = metrics.NewPusher(cfg.Metrics.PushGateway, cfg.Metrics.PushJob, collector, logger).
			Grouping("mode", cfg.Pipeline.Mode)
	}

	p, err := pipeline.New(pipeline.Config{
		Settings:  cfg,
		Source:    source,
		Store:     fs,
		Logger:    logger,
		Collector: collector,
		Tracer:    tracer,
		Pusher:    pusher,
		Clock:     clock,
	})
	if err != nil {
		return err
	}

	if cfg.Pipeline.Schedule <= 0 {
		_, err := p.Run(ctx)
		return err
	}

	if cfg.Metrics.Enabled {
		server := metrics.NewServer(cfg.Metrics.Address, cfg.Metrics.Path, collector, logger)
		server.SetStatus(func() interface{} {
			if r := p.LastReport(); r != nil {
				return r
			}
			return nil
		})
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Stop(shutdownCtx)
		}()
	}

	logger.Info("Feature pipeline is scheduled. Press Ctrl+C to stop.",
		zap.Duration("interval", cfg.Pipeline.Schedule))
	return p.Schedule(ctx, cfg.Pipeline.Schedule)
}
