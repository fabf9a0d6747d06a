package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a file
// Supports both YAML and JSON formats
func LoadConfig(path string) (*Config, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Determine format based on file extension
	ext := strings.ToLower(filepath.Ext(path))

	var config Config

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	return &config, nil
}

// LoadConfigWithDefaults loads configuration from a file and applies defaults for missing values
func LoadConfigWithDefaults(path string) (*Config, error) {
	config, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyDefaults(config)

	return config, nil
}

// LoadOrDefault attempts to load configuration from path, returns default config if file doesn't exist
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	return LoadConfigWithDefaults(path)
}

// Marshal renders the configuration as YAML
func Marshal(config *Config) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to YAML: %w", err)
	}
	return data, nil
}

// SaveConfig saves configuration to a file
// Format is determined by file extension
func SaveConfig(config *Config, path string) error {
	ext := strings.ToLower(filepath.Ext(path))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = Marshal(config)
		if err != nil {
			return err
		}
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal config to JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyDefaults fills in missing values with defaults. Booleans and the
// fraud ratio bounds are taken as written, since zero is meaningful for them.
func applyDefaults(config *Config) {
	defaults := DefaultConfig()

	if config.Version == "" {
		config.Version = defaults.Version
	}

	// Apply application defaults
	if config.Application.Name == "" {
		config.Application.Name = defaults.Application.Name
	}
	if config.Application.Environment == "" {
		config.Application.Environment = defaults.Application.Environment
	}
	if config.Application.Tags == nil {
		config.Application.Tags = make(map[string]string)
	}

	// Apply generator defaults
	g, dg := &config.Generator, defaults.Generator
	if g.Cards == 0 {
		g.Cards = dg.Cards
	}
	if g.Transactions == 0 {
		g.Transactions = dg.Transactions
	}
	if g.Lookback == 0 {
		g.Lookback = dg.Lookback
	}

	// Apply features defaults
	f, df := &config.Features, defaults.Features
	if f.ActivityLookback == 0 {
		f.ActivityLookback = df.ActivityLookback
	}
	if f.ActivityMedium == 0 {
		f.ActivityMedium = df.ActivityMedium
	}
	if f.ActivityHigh == 0 {
		f.ActivityHigh = df.ActivityHigh
	}
	if f.WindowHours == 0 {
		f.WindowHours = df.WindowHours
	}
	if f.Parallelism == 0 {
		f.Parallelism = df.Parallelism
	}

	// Apply pipeline defaults
	if config.Pipeline.Mode == "" {
		config.Pipeline.Mode = defaults.Pipeline.Mode
	}
	if config.Pipeline.BackfillDir == "" {
		config.Pipeline.BackfillDir = defaults.Pipeline.BackfillDir
	}
	if config.Pipeline.RunTimeout == 0 {
		config.Pipeline.RunTimeout = defaults.Pipeline.RunTimeout
	}

	// Apply store defaults
	s, ds := &config.Store, defaults.Store
	if len(s.Backends) == 0 {
		s.Backends = ds.Backends
	}
	if s.Postgres.Host == "" {
		s.Postgres.Host = ds.Postgres.Host
	}
	if s.Postgres.Port == 0 {
		s.Postgres.Port = ds.Postgres.Port
	}
	if s.Postgres.Database == "" {
		s.Postgres.Database = ds.Postgres.Database
	}
	if s.Postgres.SSLMode == "" {
		s.Postgres.SSLMode = ds.Postgres.SSLMode
	}
	if s.Postgres.BatchSize == 0 {
		s.Postgres.BatchSize = ds.Postgres.BatchSize
	}
	if len(s.Redis.Addrs) == 0 {
		s.Redis.Addrs = ds.Redis.Addrs
	}
	if s.Redis.KeyPrefix == "" {
		s.Redis.KeyPrefix = ds.Redis.KeyPrefix
	}
	if len(s.Kafka.Brokers) == 0 {
		s.Kafka.Brokers = ds.Kafka.Brokers
	}
	if s.Kafka.Registry.RegistryURL == "" {
		s.Kafka.Registry.RegistryURL = ds.Kafka.Registry.RegistryURL
	}
	if s.Kafka.Registry.Timeout == 0 {
		s.Kafka.Registry.Timeout = ds.Kafka.Registry.Timeout
	}
	if s.Kafka.Registry.CacheSize == 0 {
		s.Kafka.Registry.CacheSize = ds.Kafka.Registry.CacheSize
	}
	if s.Kafka.Registry.CacheTTL == 0 {
		s.Kafka.Registry.CacheTTL = ds.Kafka.Registry.CacheTTL
	}
	if s.RocksDB.Path == "" {
		s.RocksDB.Path = ds.RocksDB.Path
	}
	if s.RocksDB.WriteBufferSize == 0 {
		s.RocksDB.WriteBufferSize = ds.RocksDB.WriteBufferSize
	}
	if s.RocksDB.MaxWriteBufferNumber == 0 {
		s.RocksDB.MaxWriteBufferNumber = ds.RocksDB.MaxWriteBufferNumber
	}
	if s.RocksDB.BlockCacheSize == 0 {
		s.RocksDB.BlockCacheSize = ds.RocksDB.BlockCacheSize
	}

	// Apply error handling defaults
	e, de := &config.ErrorHandling, defaults.ErrorHandling
	if e.MaxRetryAttempts == 0 {
		e.MaxRetryAttempts = de.MaxRetryAttempts
	}
	if e.InitialBackoff == 0 {
		e.InitialBackoff = de.InitialBackoff
	}
	if e.MaxBackoff == 0 {
		e.MaxBackoff = de.MaxBackoff
	}
	if e.BackoffMultiplier == 0 {
		e.BackoffMultiplier = de.BackoffMultiplier
	}
	if e.BackoffJitter == 0 {
		e.BackoffJitter = de.BackoffJitter
	}

	// Apply metrics defaults
	if config.Metrics.Address == "" {
		config.Metrics.Address = defaults.Metrics.Address
	}
	if config.Metrics.Path == "" {
		config.Metrics.Path = defaults.Metrics.Path
	}
	if config.Metrics.Namespace == "" {
		config.Metrics.Namespace = defaults.Metrics.Namespace
	}
	if config.Metrics.PushJob == "" {
		config.Metrics.PushJob = defaults.Metrics.PushJob
	}

	// Apply tracing defaults
	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if config.Tracing.ServiceVersion == "" {
		config.Tracing.ServiceVersion = defaults.Tracing.ServiceVersion
	}
	if config.Tracing.SamplingRate == 0 {
		config.Tracing.SamplingRate = defaults.Tracing.SamplingRate
	}
	if config.Tracing.Exporter == "" {
		config.Tracing.Exporter = defaults.Tracing.Exporter
	}

	// Apply logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = defaults.Logging.Level
	}
	if config.Logging.Format == "" {
		config.Logging.Format = defaults.Logging.Format
	}
	if config.Logging.Output == "" {
		config.Logging.Output = defaults.Logging.Output
	}
}
