package config

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/store"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/tracing"
	"go.uber.org/zap/zapcore"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Equal(t, "ccfraud-feature-pipeline", cfg.Application.Name)
	assert.Equal(t, 1000, cfg.Generator.Cards)
	assert.Equal(t, 54000, cfg.Generator.Transactions)
	assert.Equal(t, 24*time.Hour, cfg.Generator.Lookback)
	assert.Equal(t, 4, cfg.Features.WindowHours)
	assert.Equal(t, []string{store.BackendMemory}, cfg.Store.Backends)
	assert.NoError(t, Validate(cfg))
}

func TestProductionConfig(t *testing.T) {
	cfg := ProductionConfig()

	assert.Equal(t, "production", cfg.Application.Environment)
	assert.Equal(t, []string{store.BackendPostgres, store.BackendRedis}, cfg.Store.Backends)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.NoError(t, Validate(cfg))
}

func TestDevelopmentConfig(t *testing.T) {
	cfg := DevelopmentConfig()

	assert.Equal(t, "development", cfg.Application.Environment)
	assert.False(t, cfg.ErrorHandling.EnableRetry)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.NoError(t, Validate(cfg))
}

func TestLoadYAMLConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", `
version: v1
application:
  name: test-app
  environment: test
generator:
  cards: 50
  transactions: 500
  lookback: 6h
features:
  window_hours: 2
store:
  backends: [postgres, redis]
  redis:
    ttl: 1h
logging:
  level: info
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "v1", cfg.Version)
	assert.Equal(t, "test-app", cfg.Application.Name)
	assert.Equal(t, 50, cfg.Generator.Cards)
	assert.Equal(t, 6*time.Hour, cfg.Generator.Lookback)
	assert.Equal(t, 2, cfg.Features.WindowHours)
	assert.Equal(t, []string{"postgres", "redis"}, cfg.Store.Backends)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL)
}

func TestLoadJSONConfig(t *testing.T) {
	path := writeFile(t, "config.json", `{
  "version": "v1",
  "application": {"name": "test-app", "environment": "test"},
  "generator": {"cards": 50, "transactions": 500},
  "logging": {"level": "info"}
}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-app", cfg.Application.Name)
	assert.Equal(t, 500, cfg.Generator.Transactions)
}

func TestLoadConfigRejectsUnknownFormat(t *testing.T) {
	path := writeFile(t, "config.toml", "version = 'v1'")

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigWithDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
version: v1
application:
  name: minimal-app
generator:
  fraud_ratio_max: 0
`)

	cfg, err := LoadConfigWithDefaults(path)
	require.NoError(t, err)

	assert.Equal(t, "minimal-app", cfg.Application.Name)
	assert.Equal(t, 1000, cfg.Generator.Cards)
	assert.Equal(t, time.Hour, cfg.Features.ActivityLookback)
	assert.Equal(t, ModeSynthetic, cfg.Pipeline.Mode)
	assert.Equal(t, []string{store.BackendMemory}, cfg.Store.Backends)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Zero(t, cfg.Generator.FraudRatioMax, "zero ratio bounds are kept")
}

func TestLoadOrDefaultMissingFile(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()

	t.Setenv("CCFRAUD_APPLICATION_NAME", "env-app")
	t.Setenv("CCFRAUD_GENERATOR_TRANSACTIONS", "20000")
	t.Setenv("CCFRAUD_GENERATOR_FRAUD_RATIO", "0.01")
	t.Setenv("CCFRAUD_PIPELINE_SCHEDULE", "1h")
	t.Setenv("CCFRAUD_STORE_BACKENDS", "postgres, kafka")
	t.Setenv("CCFRAUD_METRICS_ENABLED", "false")
	t.Setenv("CCFRAUD_LOGGING_LEVEL", "debug")

	require.NoError(t, ApplyEnvOverrides(cfg))

	assert.Equal(t, "env-app", cfg.Application.Name)
	assert.Equal(t, 20000, cfg.Generator.Transactions)
	assert.Equal(t, 0.01, cfg.Generator.FraudRatio)
	assert.Equal(t, time.Hour, cfg.Pipeline.Schedule)
	assert.Equal(t, []string{"postgres", "kafka"}, cfg.Store.Backends)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestApplyEnvOverridesInvalidValue(t *testing.T) {
	t.Setenv("CCFRAUD_GENERATOR_CARDS", "many")

	err := ApplyEnvOverrides(DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CCFRAUD_GENERATOR_CARDS")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing version", func(c *Config) { c.Version = "" }, "version"},
		{"newer major version", func(c *Config) { c.Version = "v2" }, "version"},
		{"invalid environment", func(c *Config) { c.Application.Environment = "invalid-env" }, "application.environment"},
		{"no cards", func(c *Config) { c.Generator.Cards = 0 }, "generator.cards"},
		{"cash subset too large", func(c *Config) { c.Generator.CashWithdrawalCards = 5000 }, "generator.cash_withdrawal_cards"},
		{"fraud ratio", func(c *Config) { c.Generator.FraudRatio = 1.5 }, "generator.fraud_ratio"},
		{"NaN fraud ratio", func(c *Config) { c.Generator.FraudRatio = math.NaN() }, "generator.fraud_ratio"},
		{"NaN fraud range", func(c *Config) { c.Generator.FraudRatioMin = math.NaN(); c.Generator.FraudRatioMax = 0.1 }, "generator.fraud_ratio_max"},
		{"inverted fraud range", func(c *Config) { c.Generator.FraudRatioMin = 0.2; c.Generator.FraudRatioMax = 0.1 }, "generator.fraud_ratio_max"},
		{"thresholds", func(c *Config) { c.Features.ActivityHigh = 2 }, "features.activity_high"},
		{"window", func(c *Config) { c.Features.WindowHours = -1 }, "features.window_hours"},
		{"mode", func(c *Config) { c.Pipeline.Mode = "stream" }, "pipeline.mode"},
		{"missing backfill dir", func(c *Config) {
			c.Pipeline.Mode = ModeBackfill
			c.Pipeline.BackfillDir = "/does/not/exist"
		}, "pipeline.backfill_dir"},
		{"unknown backend", func(c *Config) { c.Store.Backends = []string{"hive"} }, "store.backends[0]"},
		{"kafka primary", func(c *Config) { c.Store.Backends = []string{"kafka", "postgres"} }, "store.backends[0]"},
		{"duplicate backend", func(c *Config) { c.Store.Backends = []string{"memory", "memory"} }, "store.backends[1]"},
		{"postgres port", func(c *Config) {
			c.Store.Backends = []string{"postgres"}
			c.Store.Postgres.Port = 0
		}, "store.postgres.port"},
		{"retry backoff", func(c *Config) { c.ErrorHandling.MaxBackoff = time.Millisecond }, "error_handling.max_backoff"},
		{"tracing exporter", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "zipkin"
		}, "tracing.exporter"},
		{"tracing endpoint", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, "tracing.endpoint"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log file", func(c *Config) { c.Logging.Output = "file" }, "logging.output_path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verrs *ValidationErrors
			require.True(t, errors.As(err, &verrs))
			assert.True(t, verrs.Has(tt.field), verrs.Error())
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Generator.Cards = 0
	cfg.Logging.Format = "xml"

	err := Validate(cfg)
	var verrs *ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.True(t, verrs.Has("generator.cards"))
	assert.True(t, verrs.Has("logging.format"))
}

func TestSaveConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Application.Name = "save-test"
	dir := t.TempDir()

	for _, name := range []string{"config.yaml", "config.json"} {
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, SaveConfig(cfg, path))

		loaded, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, loaded, name)
	}

	assert.Error(t, SaveConfig(cfg, filepath.Join(dir, "config.ini")))
}

func TestStoreOptions(t *testing.T) {
	cfg := ProductionConfig()
	cfg.Store.Postgres.Password = "secret"

	opts := cfg.StoreOptions()
	assert.Equal(t, []string{store.BackendPostgres, store.BackendRedis}, opts.Backends)
	assert.Equal(t, "secret", opts.Postgres.Password)
	assert.Equal(t, 48*time.Hour, opts.Redis.TTL)
	assert.Equal(t, "./data/rocksdb", opts.RocksDB.Path)
	assert.True(t, opts.RocksDB.SyncWrites)
	assert.Equal(t, uint64(512*1024*1024), opts.RocksDB.BlockCacheSize)
}

func TestRetryPolicy(t *testing.T) {
	cfg := DefaultConfig()

	policy := cfg.RetryPolicy()
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, policy.InitialBackoff)
	assert.NotNil(t, policy.RetriableFunc)

	cfg.ErrorHandling.EnableRetry = false
	assert.Equal(t, 0, cfg.RetryPolicy().MaxAttempts)
}

func TestTracingOptions(t *testing.T) {
	opts := ProductionConfig().TracingOptions()
	assert.True(t, opts.Enabled)
	assert.Equal(t, tracing.ExporterOTLP, opts.ExporterType)
	assert.Equal(t, "localhost:4318", opts.ExporterEndpoint)
	assert.Equal(t, "production", opts.Environment)
	assert.Equal(t, 0.1, opts.SamplingRate)
}

func TestLoggerOptions(t *testing.T) {
	cfg := DevelopmentConfig()
	opts, err := cfg.LoggerOptions()
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, opts.Level)
	assert.Equal(t, "console", opts.Encoding)
	assert.Equal(t, []string{"stdout"}, opts.OutputPaths)
	assert.True(t, opts.EnableStacktrace)
	assert.Equal(t, cfg.Application.Name, opts.InitialFields["service"])

	cfg.Logging.Output = "file"
	cfg.Logging.OutputPath = "/var/log/ccfraud.log"
	opts, err = cfg.LoggerOptions()
	require.NoError(t, err)
	assert.Equal(t, []string{"/var/log/ccfraud.log"}, opts.OutputPaths)

	cfg.Logging.Level = "loud"
	_, err = cfg.LoggerOptions()
	assert.Error(t, err)
}

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("v1.2")
	require.NoError(t, err)
	assert.Equal(t, ConfigVersion{Major: 1, Minor: 2}, v)
	assert.Equal(t, "v1.2", v.String())
	assert.True(t, v.IsNewerThan(GetCurrentVersion()))
	assert.Equal(t, 0, v.Compare(ConfigVersion{Major: 1, Minor: 2}))
	assert.Equal(t, -1, GetCurrentVersion().Compare(v))

	v, err = ParseVersion("3")
	require.NoError(t, err)
	assert.Equal(t, "v3", v.String())

	for _, bad := range []string{"vX", "v1.x", "v-1", "", "v1.2.3"} {
		_, err = ParseVersion(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateVersion(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateVersion(cfg))

	cfg.Version = ""
	assert.EqualError(t, ValidateVersion(cfg), "configuration version is missing")

	cfg.Version = "v2"
	assert.EqualError(t, ValidateVersion(cfg), "incompatible configuration version v2, this build reads v1")

	cfg.Version = "v1.1"
	assert.EqualError(t, ValidateVersion(cfg), "configuration version v1.1 is newer than v1, upgrade ccfraud")
}
