package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "CCFRAUD_"

// ApplyEnvOverrides applies environment variable overrides to the configuration
// Environment variables follow the pattern: CCFRAUD_<SECTION>_<KEY>
// Example: CCFRAUD_GENERATOR_TRANSACTIONS=20000
func ApplyEnvOverrides(config *Config) error {
	o := &envOverrides{}

	// Application overrides
	o.str("APPLICATION_NAME", &config.Application.Name)
	o.str("APPLICATION_ENVIRONMENT", &config.Application.Environment)

	// Generator overrides
	o.integer("GENERATOR_CARDS", &config.Generator.Cards)
	o.integer("GENERATOR_TRANSACTIONS", &config.Generator.Transactions)
	o.integer("GENERATOR_CASH_WITHDRAWAL_CARDS", &config.Generator.CashWithdrawalCards)
	o.integer("GENERATOR_CASH_WITHDRAWALS", &config.Generator.CashWithdrawals)
	o.float("GENERATOR_FRAUD_RATIO", &config.Generator.FraudRatio)
	o.float("GENERATOR_FRAUD_RATIO_MIN", &config.Generator.FraudRatioMin)
	o.float("GENERATOR_FRAUD_RATIO_MAX", &config.Generator.FraudRatioMax)
	o.duration("GENERATOR_LOOKBACK", &config.Generator.Lookback)
	o.int64("GENERATOR_SEED", &config.Generator.Seed)

	// Features overrides
	o.duration("FEATURES_ACTIVITY_LOOKBACK", &config.Features.ActivityLookback)
	o.integer("FEATURES_ACTIVITY_MEDIUM", &config.Features.ActivityMedium)
	o.integer("FEATURES_ACTIVITY_HIGH", &config.Features.ActivityHigh)
	o.integer("FEATURES_WINDOW_HOURS", &config.Features.WindowHours)
	o.integer("FEATURES_PARALLELISM", &config.Features.Parallelism)

	// Pipeline overrides
	o.str("PIPELINE_MODE", &config.Pipeline.Mode)
	o.str("PIPELINE_BACKFILL_DIR", &config.Pipeline.BackfillDir)
	o.duration("PIPELINE_SCHEDULE", &config.Pipeline.Schedule)
	o.duration("PIPELINE_RUN_TIMEOUT", &config.Pipeline.RunTimeout)

	// Store overrides
	o.list("STORE_BACKENDS", &config.Store.Backends)
	o.str("STORE_POSTGRES_HOST", &config.Store.Postgres.Host)
	o.integer("STORE_POSTGRES_PORT", &config.Store.Postgres.Port)
	o.str("STORE_POSTGRES_DATABASE", &config.Store.Postgres.Database)
	o.str("STORE_POSTGRES_USER", &config.Store.Postgres.User)
	o.str("STORE_POSTGRES_PASSWORD", &config.Store.Postgres.Password)
	o.str("STORE_POSTGRES_SSL_MODE", &config.Store.Postgres.SSLMode)
	o.list("STORE_REDIS_ADDRS", &config.Store.Redis.Addrs)
	o.str("STORE_REDIS_PASSWORD", &config.Store.Redis.Password)
	o.duration("STORE_REDIS_TTL", &config.Store.Redis.TTL)
	o.list("STORE_KAFKA_BROKERS", &config.Store.Kafka.Brokers)
	o.str("STORE_KAFKA_TOPIC_PREFIX", &config.Store.Kafka.TopicPrefix)
	o.str("STORE_KAFKA_SCHEMA_REGISTRY_URL", &config.Store.Kafka.Registry.RegistryURL)
	o.str("STORE_KAFKA_SCHEMA_REGISTRY_USERNAME", &config.Store.Kafka.Registry.Username)
	o.str("STORE_KAFKA_SCHEMA_REGISTRY_PASSWORD", &config.Store.Kafka.Registry.Password)
	o.str("STORE_ROCKSDB_PATH", &config.Store.RocksDB.Path)

	// Error handling overrides
	o.boolean("ERROR_HANDLING_ENABLE_RETRY", &config.ErrorHandling.EnableRetry)
	o.integer("ERROR_HANDLING_MAX_RETRY_ATTEMPTS", &config.ErrorHandling.MaxRetryAttempts)
	o.duration("ERROR_HANDLING_INITIAL_BACKOFF", &config.ErrorHandling.InitialBackoff)
	o.duration("ERROR_HANDLING_MAX_BACKOFF", &config.ErrorHandling.MaxBackoff)

	// Metrics overrides
	o.boolean("METRICS_ENABLED", &config.Metrics.Enabled)
	o.str("METRICS_ADDRESS", &config.Metrics.Address)
	o.str("METRICS_PATH", &config.Metrics.Path)
	o.str("METRICS_NAMESPACE", &config.Metrics.Namespace)
	o.str("METRICS_PUSH_GATEWAY", &config.Metrics.PushGateway)

	// Tracing overrides
	o.boolean("TRACING_ENABLED", &config.Tracing.Enabled)
	o.str("TRACING_EXPORTER", &config.Tracing.Exporter)
	o.str("TRACING_ENDPOINT", &config.Tracing.Endpoint)
	o.float("TRACING_SAMPLING_RATE", &config.Tracing.SamplingRate)

	// Logging overrides
	o.str("LOGGING_LEVEL", &config.Logging.Level)
	o.str("LOGGING_FORMAT", &config.Logging.Format)
	o.str("LOGGING_OUTPUT", &config.Logging.Output)
	o.str("LOGGING_OUTPUT_PATH", &config.Logging.OutputPath)

	return o.err
}

// envOverrides keeps the first parse error so every setter stays one line
type envOverrides struct {
	err error
}

func (o *envOverrides) lookup(key string) (string, bool) {
	if o.err != nil {
		return "", false
	}
	val := os.Getenv(envPrefix + key)
	return val, val != ""
}

func (o *envOverrides) fail(key string, err error) {
	o.err = fmt.Errorf("invalid %s%s: %w", envPrefix, key, err)
}

func (o *envOverrides) str(key string, dst *string) {
	if val, ok := o.lookup(key); ok {
		*dst = val
	}
}

func (o *envOverrides) list(key string, dst *[]string) {
	if val, ok := o.lookup(key); ok {
		parts := strings.Split(val, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func (o *envOverrides) integer(key string, dst *int) {
	if val, ok := o.lookup(key); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = n
	}
}

func (o *envOverrides) int64(key string, dst *int64) {
	if val, ok := o.lookup(key); ok {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = n
	}
}

func (o *envOverrides) float(key string, dst *float64) {
	if val, ok := o.lookup(key); ok {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = f
	}
}

func (o *envOverrides) boolean(key string, dst *bool) {
	if val, ok := o.lookup(key); ok {
		b, err := strconv.ParseBool(val)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = b
	}
}

func (o *envOverrides) duration(key string, dst *time.Duration) {
	if val, ok := o.lookup(key); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			o.fail(key, err)
			return
		}
		*dst = d
	}
}

// LoadOrDefaultWithEnv loads configuration from file (or uses default) and applies environment overrides
func LoadOrDefaultWithEnv(path string) (*Config, error) {
	config, err := LoadOrDefault(path)
	if err != nil {
		return nil, err
	}

	if err := ApplyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return config, nil
}
