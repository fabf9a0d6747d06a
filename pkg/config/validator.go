package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/store"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}

// ValidationErrors represents multiple validation errors
type ValidationErrors struct {
	Errors []ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d validation error(s):\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// Add adds a validation error
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// Has reports whether a field has an error
func (e *ValidationErrors) Has(field string) bool {
	for _, err := range e.Errors {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration
func Validate(config *Config) error {
	errs := &ValidationErrors{}

	if err := ValidateVersion(config); err != nil {
		errs.Add("version", err.Error())
	}

	validateApplication(config, errs)
	validateGenerator(config, errs)
	validateFeatures(config, errs)
	validatePipeline(config, errs)
	validateStore(config, errs)
	validateErrorHandling(config, errs)
	validateMetrics(config, errs)
	validateTracing(config, errs)
	validateLogging(config, errs)

	if errs.HasErrors() {
		return errs
	}

	return nil
}

func oneOf(value string, valid []string) bool {
	for _, v := range valid {
		if value == v {
			return true
		}
	}
	return false
}

func validateApplication(config *Config, errs *ValidationErrors) {
	if config.Application.Name == "" {
		errs.Add("application.name", "application name is required")
	}

	if config.Application.Environment != "" {
		validEnvs := []string{"development", "staging", "production", "test"}
		if !oneOf(config.Application.Environment, validEnvs) {
			errs.Add("application.environment", fmt.Sprintf("invalid environment %s (valid: %s)",
				config.Application.Environment, strings.Join(validEnvs, ", ")))
		}
	}
}

func validateGenerator(config *Config, errs *ValidationErrors) {
	g := config.Generator

	if g.Cards <= 0 {
		errs.Add("generator.cards", "number of cards must be positive")
	}
	if g.Transactions <= 0 {
		errs.Add("generator.transactions", "number of transactions must be positive")
	}
	if g.CashWithdrawalCards < 0 || g.CashWithdrawalCards > g.Cards {
		errs.Add("generator.cash_withdrawal_cards", "cash withdrawal cards must be between 0 and the number of cards")
	}
	if g.CashWithdrawals < 0 || g.CashWithdrawals > g.Transactions {
		errs.Add("generator.cash_withdrawals", "cash withdrawals must be between 0 and the number of transactions")
	}
	if g.CashWithdrawals > 0 && g.CashWithdrawalCards == 0 {
		errs.Add("generator.cash_withdrawals", "cash withdrawals require cash withdrawal cards")
	}
	if !(g.FraudRatio >= 0 && g.FraudRatio <= 1) {
		errs.Add("generator.fraud_ratio", "fraud ratio must be between 0 and 1")
	}
	if g.FraudRatioMax != 0 {
		if !(g.FraudRatioMin >= 0 && g.FraudRatioMin <= g.FraudRatioMax && g.FraudRatioMax <= 1) {
			errs.Add("generator.fraud_ratio_max", "fraud ratio range must satisfy 0 <= min <= max <= 1")
		}
	}
	if g.Lookback <= 0 {
		errs.Add("generator.lookback", "lookback must be positive")
	}
}

func validateFeatures(config *Config, errs *ValidationErrors) {
	f := config.Features

	if f.ActivityLookback <= 0 {
		errs.Add("features.activity_lookback", "activity lookback must be positive")
	}
	if f.ActivityMedium <= 0 {
		errs.Add("features.activity_medium", "medium activity threshold must be positive")
	}
	if f.ActivityHigh <= f.ActivityMedium {
		errs.Add("features.activity_high", "high activity threshold must exceed the medium threshold")
	}
	if f.WindowHours <= 0 {
		errs.Add("features.window_hours", "window length must be positive")
	}
	if f.Parallelism <= 0 {
		errs.Add("features.parallelism", "parallelism must be positive")
	}
}

func validatePipeline(config *Config, errs *ValidationErrors) {
	p := config.Pipeline

	validModes := []string{ModeSynthetic, ModeBackfill}
	if !oneOf(p.Mode, validModes) {
		errs.Add("pipeline.mode", fmt.Sprintf("invalid mode %s (valid: %s)", p.Mode, strings.Join(validModes, ", ")))
	}
	if p.Mode == ModeBackfill {
		if p.BackfillDir == "" {
			errs.Add("pipeline.backfill_dir", "backfill directory is required in backfill mode")
		} else if !fileExists(p.BackfillDir) {
			errs.Add("pipeline.backfill_dir", fmt.Sprintf("backfill directory does not exist: %s", p.BackfillDir))
		}
	}
	if p.Schedule < 0 {
		errs.Add("pipeline.schedule", "schedule interval must not be negative")
	}
	if p.RunTimeout < 0 {
		errs.Add("pipeline.run_timeout", "run timeout must not be negative")
	}
}

func validateStore(config *Config, errs *ValidationErrors) {
	s := config.Store

	if len(s.Backends) == 0 {
		errs.Add("store.backends", "at least one backend is required")
	}

	seen := make(map[string]bool)
	for i, backend := range s.Backends {
		field := fmt.Sprintf("store.backends[%d]", i)
		if !oneOf(backend, store.Backends()) {
			errs.Add(field, fmt.Sprintf("invalid backend %s (valid: %s)", backend, strings.Join(store.Backends(), ", ")))
			continue
		}
		if seen[backend] {
			errs.Add(field, fmt.Sprintf("backend %s listed twice", backend))
		}
		seen[backend] = true
	}

	if len(s.Backends) > 0 && s.Backends[0] == store.BackendKafka {
		errs.Add("store.backends[0]", "kafka is write-only and cannot be the primary backend")
	}

	if seen[store.BackendPostgres] {
		if s.Postgres.Host == "" {
			errs.Add("store.postgres.host", "PostgreSQL host is required")
		}
		if s.Postgres.Port <= 0 || s.Postgres.Port > 65535 {
			errs.Add("store.postgres.port", "PostgreSQL port must be between 1 and 65535")
		}
		if s.Postgres.Database == "" {
			errs.Add("store.postgres.database", "PostgreSQL database is required")
		}
		if s.Postgres.BatchSize <= 0 {
			errs.Add("store.postgres.batch_size", "batch size must be positive")
		}
	}

	if seen[store.BackendRedis] {
		if len(s.Redis.Addrs) == 0 {
			errs.Add("store.redis.addrs", "at least one Redis address is required")
		}
		if s.Redis.TTL < 0 {
			errs.Add("store.redis.ttl", "TTL must not be negative")
		}
	}

	if seen[store.BackendKafka] {
		if len(s.Kafka.Brokers) == 0 {
			errs.Add("store.kafka.brokers", "at least one broker is required")
		}
		if s.Kafka.Registry.RegistryURL == "" {
			errs.Add("store.kafka.schema_registry.registry_url", "schema registry URL is required")
		}
		if s.Kafka.Registry.TLSEnabled && s.Kafka.Registry.TLSCAPath != "" && !fileExists(s.Kafka.Registry.TLSCAPath) {
			errs.Add("store.kafka.schema_registry.tls_ca_path",
				fmt.Sprintf("CA file does not exist: %s", s.Kafka.Registry.TLSCAPath))
		}
	}

	if seen[store.BackendRocksDB] {
		if s.RocksDB.Path == "" {
			errs.Add("store.rocksdb.path", "RocksDB path is required")
		}
		if s.RocksDB.WriteBufferSize <= 0 {
			errs.Add("store.rocksdb.write_buffer_size", "write buffer size must be positive")
		}
		if s.RocksDB.MaxWriteBufferNumber <= 0 {
			errs.Add("store.rocksdb.max_write_buffer_number", "max write buffer number must be positive")
		}
		if s.RocksDB.BlockCacheSize <= 0 {
			errs.Add("store.rocksdb.block_cache_size", "block cache size must be positive")
		}
	}
}

func validateErrorHandling(config *Config, errs *ValidationErrors) {
	e := config.ErrorHandling
	if !e.EnableRetry {
		return
	}

	if e.MaxRetryAttempts <= 0 {
		errs.Add("error_handling.max_retry_attempts", "max retry attempts must be positive when retry is enabled")
	}
	if e.InitialBackoff <= 0 {
		errs.Add("error_handling.initial_backoff", "initial backoff must be positive when retry is enabled")
	}
	if e.MaxBackoff <= 0 {
		errs.Add("error_handling.max_backoff", "max backoff must be positive when retry is enabled")
	}
	if e.MaxBackoff < e.InitialBackoff {
		errs.Add("error_handling.max_backoff", "max backoff must be >= initial backoff")
	}
	if e.BackoffMultiplier <= 1 {
		errs.Add("error_handling.backoff_multiplier", "backoff multiplier must be > 1")
	}
	if e.BackoffJitter < 0 || e.BackoffJitter > 1 {
		errs.Add("error_handling.backoff_jitter", "backoff jitter must be between 0 and 1")
	}
}

func validateMetrics(config *Config, errs *ValidationErrors) {
	if !config.Metrics.Enabled {
		return
	}

	if config.Metrics.Address == "" {
		errs.Add("metrics.address", "metrics address is required when metrics are enabled")
	}
	if config.Metrics.Path == "" || !strings.HasPrefix(config.Metrics.Path, "/") {
		errs.Add("metrics.path", "metrics path must start with /")
	}
	if config.Metrics.Namespace == "" {
		errs.Add("metrics.namespace", "metrics namespace is required")
	}
	if config.Metrics.PushGateway != "" && config.Metrics.PushJob == "" {
		errs.Add("metrics.push_job", "push job is required when a push gateway is set")
	}
}

func validateTracing(config *Config, errs *ValidationErrors) {
	t := config.Tracing
	if !t.Enabled {
		return
	}

	validExporters := []string{"stdout", "otlp", "jaeger"}
	if !oneOf(t.Exporter, validExporters) {
		errs.Add("tracing.exporter", fmt.Sprintf("invalid exporter %s (valid: %s)", t.Exporter, strings.Join(validExporters, ", ")))
	}
	if t.Exporter != "stdout" && t.Endpoint == "" {
		errs.Add("tracing.endpoint", "endpoint is required for remote exporters")
	}
	if t.SamplingRate < 0 || t.SamplingRate > 1 {
		errs.Add("tracing.sampling_rate", "sampling rate must be between 0 and 1")
	}
	if t.ServiceName == "" {
		errs.Add("tracing.service_name", "service name is required")
	}
}

func validateLogging(config *Config, errs *ValidationErrors) {
	validLevels := []string{"debug", "info", "warn", "error"}
	if !oneOf(config.Logging.Level, validLevels) {
		errs.Add("logging.level", fmt.Sprintf("invalid log level %s (valid: %s)",
			config.Logging.Level, strings.Join(validLevels, ", ")))
	}

	validFormats := []string{"json", "console"}
	if !oneOf(config.Logging.Format, validFormats) {
		errs.Add("logging.format", fmt.Sprintf("invalid log format %s (valid: %s)",
			config.Logging.Format, strings.Join(validFormats, ", ")))
	}

	validOutputs := []string{"stdout", "stderr", "file"}
	if !oneOf(config.Logging.Output, validOutputs) {
		errs.Add("logging.output", fmt.Sprintf("invalid log output %s (valid: %s)",
			config.Logging.Output, strings.Join(validOutputs, ", ")))
	}

	if config.Logging.Output == "file" && config.Logging.OutputPath == "" {
		errs.Add("logging.output_path", "output path is required when output is 'file'")
	}
}

// ValidateAndLoad loads a configuration file (defaults when it is missing),
// applies environment overrides and validates the result
func ValidateAndLoad(path string) (*Config, error) {
	config, err := LoadOrDefaultWithEnv(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// fileExists checks if a file exists
func fileExists(path string) bool {
	// Expand home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	_, err := os.Stat(path)
	return err == nil
}
