package config

import (
	"fmt"
	"time"

	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/store"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/tracing"
	"go.uber.org/zap/zapcore"
)

// Version represents the configuration file version
const (
	CurrentConfigVersion = "v1"
)

// Pipeline modes
const (
	ModeSynthetic = "synthetic"
	ModeBackfill  = "backfill"
)

// Config represents the complete ccfraud configuration
type Config struct {
	// Version of the configuration schema
	Version string `yaml:"version" json:"version"`

	// Application metadata
	Application ApplicationConfig `yaml:"application" json:"application"`

	// Synthetic transaction generator
	Generator GeneratorConfig `yaml:"generator" json:"generator"`

	// Feature engineering
	Features FeaturesConfig `yaml:"features" json:"features"`

	// Pipeline driver
	Pipeline PipelineConfig `yaml:"pipeline" json:"pipeline"`

	// Feature store backends
	Store StoreConfig `yaml:"store" json:"store"`

	// Error handling configuration
	ErrorHandling ErrorHandlingConfig `yaml:"error_handling" json:"error_handling"`

	// Metrics and monitoring configuration
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// Distributed tracing configuration
	Tracing TracingConfig `yaml:"tracing" json:"tracing"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// ApplicationConfig holds application-level metadata
type ApplicationConfig struct {
	Name        string            `yaml:"name" json:"name"`
	Environment string            `yaml:"environment" json:"environment"` // development, staging, production
	Tags        map[string]string `yaml:"tags" json:"tags"`
}

// GeneratorConfig sizes a synthetic run. When FraudRatioMax is set, every
// run draws its fraud ratio uniformly from [FraudRatioMin, FraudRatioMax].
type GeneratorConfig struct {
	Cards               int           `yaml:"cards" json:"cards"`
	Transactions        int           `yaml:"transactions" json:"transactions"`
	CashWithdrawalCards int           `yaml:"cash_withdrawal_cards" json:"cash_withdrawal_cards"`
	CashWithdrawals     int           `yaml:"cash_withdrawals" json:"cash_withdrawals"`
	FraudRatio          float64       `yaml:"fraud_ratio" json:"fraud_ratio"`
	FraudRatioMin       float64       `yaml:"fraud_ratio_min" json:"fraud_ratio_min"`
	FraudRatioMax       float64       `yaml:"fraud_ratio_max" json:"fraud_ratio_max"`
	Lookback            time.Duration `yaml:"lookback" json:"lookback"`
	Seed                int64         `yaml:"seed" json:"seed"`
}

// FeaturesConfig holds feature engineering parameters
type FeaturesConfig struct {
	ActivityLookback time.Duration `yaml:"activity_lookback" json:"activity_lookback"`
	ActivityMedium   int           `yaml:"activity_medium" json:"activity_medium"`
	ActivityHigh     int           `yaml:"activity_high" json:"activity_high"`
	WindowHours      int           `yaml:"window_hours" json:"window_hours"`
	Parallelism      int           `yaml:"parallelism" json:"parallelism"`
}

// PipelineConfig holds driver configuration
type PipelineConfig struct {
	Mode        string        `yaml:"mode" json:"mode"` // synthetic, backfill
	BackfillDir string        `yaml:"backfill_dir" json:"backfill_dir"`
	Schedule    time.Duration `yaml:"schedule" json:"schedule"` // 0 runs once
	RunTimeout  time.Duration `yaml:"run_timeout" json:"run_timeout"`
}

// StoreConfig holds feature store configuration
type StoreConfig struct {
	Backends []string       `yaml:"backends" json:"backends"` // memory, postgres, redis, kafka, rocksdb
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka" json:"kafka"`
	RocksDB  RocksDBConfig  `yaml:"rocksdb" json:"rocksdb"`
}

// PostgresConfig holds offline store configuration
type PostgresConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Database  string `yaml:"database" json:"database"`
	User      string `yaml:"user" json:"user"`
	Password  string `yaml:"password" json:"password"`
	SSLMode   string `yaml:"ssl_mode" json:"ssl_mode"`
	BatchSize int    `yaml:"batch_size" json:"batch_size"`
}

// RedisConfig holds online store configuration
type RedisConfig struct {
	Addrs     []string      `yaml:"addrs" json:"addrs"`
	Password  string        `yaml:"password" json:"password"`
	DB        int           `yaml:"db" json:"db"`
	KeyPrefix string        `yaml:"key_prefix" json:"key_prefix"`
	TTL       time.Duration `yaml:"ttl" json:"ttl"`
}

// KafkaConfig holds streaming store configuration
type KafkaConfig struct {
	Brokers     []string      `yaml:"brokers" json:"brokers"`
	TopicPrefix string        `yaml:"topic_prefix" json:"topic_prefix"`
	Registry    schema.Config `yaml:"schema_registry" json:"schema_registry"`
}

// RocksDBConfig holds RocksDB-specific configuration
type RocksDBConfig struct {
	Path                 string `yaml:"path" json:"path"`
	WriteBufferSize      int    `yaml:"write_buffer_size" json:"write_buffer_size"`
	MaxWriteBufferNumber int    `yaml:"max_write_buffer_number" json:"max_write_buffer_number"`
	BlockCacheSize       int64  `yaml:"block_cache_size" json:"block_cache_size"`
	SyncWrites           bool   `yaml:"sync_writes" json:"sync_writes"`
}

// ErrorHandlingConfig holds error handling configuration
type ErrorHandlingConfig struct {
	EnableRetry       bool          `yaml:"enable_retry" json:"enable_retry"`
	MaxRetryAttempts  int           `yaml:"max_retry_attempts" json:"max_retry_attempts"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
	BackoffJitter     float64       `yaml:"backoff_jitter" json:"backoff_jitter"`
}

// MetricsConfig holds metrics and monitoring configuration
type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Address     string `yaml:"address" json:"address"`
	Path        string `yaml:"path" json:"path"`
	Namespace   string `yaml:"namespace" json:"namespace"`
	PushGateway string `yaml:"push_gateway" json:"push_gateway"` // pushed after each run when set
	PushJob     string `yaml:"push_job" json:"push_job"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled"`
	ServiceName    string  `yaml:"service_name" json:"service_name"`
	ServiceVersion string  `yaml:"service_version" json:"service_version"`
	SamplingRate   float64 `yaml:"sampling_rate" json:"sampling_rate"`
	Exporter       string  `yaml:"exporter" json:"exporter"` // stdout, otlp, jaeger
	Endpoint       string  `yaml:"endpoint" json:"endpoint"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format     string `yaml:"format" json:"format"` // json, console
	Output     string `yaml:"output" json:"output"` // stdout, stderr, file
	OutputPath string `yaml:"output_path" json:"output_path"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Application: ApplicationConfig{
			Name:        "ccfraud-feature-pipeline",
			Environment: "development",
			Tags:        make(map[string]string),
		},
		Generator: GeneratorConfig{
			Cards:               1000,
			Transactions:        54000,
			CashWithdrawalCards: 200,
			CashWithdrawals:     200,
			FraudRatio:          0.0025,
			FraudRatioMin:       0.001,
			FraudRatioMax:       0.005,
			Lookback:            24 * time.Hour,
		},
		Features: FeaturesConfig{
			ActivityLookback: time.Hour,
			ActivityMedium:   2,
			ActivityHigh:     5,
			WindowHours:      4,
			Parallelism:      1,
		},
		Pipeline: PipelineConfig{
			Mode:        ModeSynthetic,
			BackfillDir: "./data",
			RunTimeout:  10 * time.Minute,
		},
		Store: StoreConfig{
			Backends: []string{store.BackendMemory},
			Postgres: PostgresConfig{
				Host:      "localhost",
				Port:      5432,
				Database:  "features",
				User:      "ccfraud",
				SSLMode:   "disable",
				BatchSize: 500,
			},
			Redis: RedisConfig{
				Addrs:     []string{"localhost:6379"},
				KeyPrefix: "ccfraud",
				TTL:       48 * time.Hour,
			},
			Kafka: KafkaConfig{
				Brokers: []string{"localhost:9092"},
				Registry: schema.Config{
					RegistryURL:  "http://localhost:8081",
					Timeout:      10 * time.Second,
					CacheEnabled: true,
					CacheSize:    100,
					CacheTTL:     time.Hour,
				},
			},
			RocksDB: RocksDBConfig{
				Path:                 "./data/rocksdb",
				WriteBufferSize:      64 * 1024 * 1024,
				MaxWriteBufferNumber: 3,
				BlockCacheSize:       512 * 1024 * 1024,
			},
		},
		ErrorHandling: ErrorHandlingConfig{
			EnableRetry:       true,
			MaxRetryAttempts:  3,
			InitialBackoff:    100 * time.Millisecond,
			MaxBackoff:        30 * time.Second,
			BackoffMultiplier: 2.0,
			BackoffJitter:     0.1,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Address:   ":9091",
			Path:      "/metrics",
			Namespace: "ccfraud",
			PushJob:   "ccfraud_feature_pipeline",
		},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "ccfraud",
			ServiceVersion: "1.0.0",
			SamplingRate:   1.0,
			Exporter:       "stdout",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// ProductionConfig returns a production-ready configuration
func ProductionConfig() *Config {
	config := DefaultConfig()
	config.Application.Environment = "production"
	config.Features.Parallelism = 8
	config.Store.Backends = []string{store.BackendPostgres, store.BackendRedis}
	config.Store.RocksDB.SyncWrites = true
	config.ErrorHandling.MaxRetryAttempts = 5
	config.ErrorHandling.MaxBackoff = 60 * time.Second
	config.Tracing.Enabled = true
	config.Tracing.Exporter = "otlp"
	config.Tracing.Endpoint = "localhost:4318"
	config.Tracing.SamplingRate = 0.1
	config.Logging.Level = "warn"
	return config
}

// DevelopmentConfig returns a development-friendly configuration
func DevelopmentConfig() *Config {
	config := DefaultConfig()
	config.Application.Environment = "development"
	config.Generator.Cards = 100
	config.Generator.Transactions = 5000
	config.Generator.CashWithdrawalCards = 20
	config.Generator.CashWithdrawals = 20
	config.ErrorHandling.EnableRetry = false
	config.Logging.Level = "debug"
	config.Logging.Format = "console"
	return config
}

// StoreOptions converts the store section to the store package configuration
func (c *Config) StoreOptions() store.Config {
	s := c.Store
	return store.Config{
		Backends: append([]string(nil), s.Backends...),
		Postgres: store.PostgresConfig{
			Host:      s.Postgres.Host,
			Port:      s.Postgres.Port,
			Database:  s.Postgres.Database,
			User:      s.Postgres.User,
			Password:  s.Postgres.Password,
			SSLMode:   s.Postgres.SSLMode,
			BatchSize: s.Postgres.BatchSize,
		},
		Redis: store.RedisConfig{
			Addrs:     s.Redis.Addrs,
			Password:  s.Redis.Password,
			DB:        s.Redis.DB,
			KeyPrefix: s.Redis.KeyPrefix,
			TTL:       s.Redis.TTL,
		},
		Kafka: store.KafkaConfig{
			Brokers:     s.Kafka.Brokers,
			TopicPrefix: s.Kafka.TopicPrefix,
			Registry:    s.Kafka.Registry,
		},
		RocksDB: func() store.RocksDBConfig {
			rc := *store.DefaultRocksDBConfig(s.RocksDB.Path)
			rc.WriteBufferSize = s.RocksDB.WriteBufferSize
			rc.MaxWriteBufferNum = s.RocksDB.MaxWriteBufferNumber
			rc.BlockCacheSize = uint64(s.RocksDB.BlockCacheSize)
			rc.SyncWrites = s.RocksDB.SyncWrites
			return rc
		}(),
	}
}

// RetryPolicy converts the error handling section to a store write policy
func (c *Config) RetryPolicy() *ferrors.RetryPolicy {
	if !c.ErrorHandling.EnableRetry {
		return ferrors.NoRetryPolicy()
	}
	return &ferrors.RetryPolicy{
		MaxAttempts:       c.ErrorHandling.MaxRetryAttempts,
		InitialBackoff:    c.ErrorHandling.InitialBackoff,
		MaxBackoff:        c.ErrorHandling.MaxBackoff,
		BackoffMultiplier: c.ErrorHandling.BackoffMultiplier,
		Jitter:            c.ErrorHandling.BackoffJitter,
		RetriableFunc:     ferrors.IsRetriable,
	}
}

// TracingOptions converts the tracing section to the tracing package configuration
func (c *Config) TracingOptions() *tracing.Config {
	return &tracing.Config{
		Enabled:          c.Tracing.Enabled,
		ServiceName:      c.Tracing.ServiceName,
		ServiceVersion:   c.Tracing.ServiceVersion,
		Environment:      c.Application.Environment,
		SamplingRate:     c.Tracing.SamplingRate,
		ExporterType:     c.Tracing.Exporter,
		ExporterEndpoint: c.Tracing.Endpoint,
	}
}

// LoggerOptions converts the logging section to a structured logger configuration
func (c *Config) LoggerOptions() (*tracing.StructuredLogConfig, error) {
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	opts := tracing.DefaultStructuredLogConfig()
	opts.Level = level
	opts.Encoding = c.Logging.Format
	opts.EnableStacktrace = c.Application.Environment == "development"
	switch c.Logging.Output {
	case "stderr":
		opts.OutputPaths = []string{"stderr"}
	case "file":
		opts.OutputPaths = []string{c.Logging.OutputPath}
	default:
		opts.OutputPaths = []string{"stdout"}
	}
	opts.InitialFields["service"] = c.Application.Name
	return opts, nil
}
