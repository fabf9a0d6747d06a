package store

import (
	"context"
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.uber.org/zap"
)

// Backend names accepted by Open
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendKafka    = "kafka"
	BackendRocksDB  = "rocksdb"
)

// Backends lists the supported backend names
func Backends() []string {
	return []string{BackendMemory, BackendPostgres, BackendRedis, BackendKafka, BackendRocksDB}
}

// Config selects and configures the feature store backends
type Config struct {
	// Backends are written in order; the first one serves reads
	Backends []string
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	RocksDB  RocksDBConfig
}

// Open builds the configured backends. Several backends are combined into a
// MultiStore.
func Open(ctx context.Context, config Config, logger *zap.Logger) (FeatureStore, error) {
	if len(config.Backends) == 0 {
		return nil, fmt.Errorf("no feature store backend configured")
	}

	stores := make([]FeatureStore, 0, len(config.Backends))
	closeAll := func() {
		for _, s := range stores {
			s.Close()
		}
	}

	for _, name := range config.Backends {
		s, err := openBackend(ctx, name, config, logger)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to open %s feature store: %w", name, err)
		}
		stores = append(stores, s)
	}

	if len(stores) == 1 {
		return stores[0], nil
	}
	return NewMultiStore(logger, stores...), nil
}

func openBackend(ctx context.Context, name string, config Config, logger *zap.Logger) (FeatureStore, error) {
	switch name {
	case BackendMemory:
		return NewMemoryStore(logger), nil
	case BackendPostgres:
		return NewPostgresStore(ctx, config.Postgres, logger)
	case BackendRedis:
		return NewRedisStore(ctx, config.Redis, logger)
	case BackendKafka:
		return NewKafkaStore(config.Kafka, logger)
	case BackendRocksDB:
		rc := config.RocksDB
		return NewRocksDBStore(&rc, logger)
	default:
		return nil, fmt.Errorf("unsupported feature store backend: %s", name)
	}
}

// MultiStore writes every table to all of its stores in order and reads from
// the first. A failed write stops the fan-out; since every backend skips rows
// it already holds, retrying the whole write is safe.
type MultiStore struct {
	stores []FeatureStore
	logger *zap.Logger
}

// NewMultiStore combines stores; the first one serves reads
func NewMultiStore(logger *zap.Logger, stores ...FeatureStore) *MultiStore {
	return &MultiStore{stores: stores, logger: logger}
}

// Read reads from the primary store
func (m *MultiStore) Read(ctx context.Context, group *schema.FeatureGroup) (*Table, error) {
	if len(m.stores) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group.ID())
	}
	return m.stores[0].Read(ctx, group)
}

// Write writes the table to every store
func (m *MultiStore) Write(ctx context.Context, table *Table) error {
	for i, s := range m.stores {
		start := time.Now()
		if err := s.Write(ctx, table); err != nil {
			return fmt.Errorf("store %d: %w", i, err)
		}
		m.logger.Debug("Table written",
			zap.Int("store", i),
			zap.String("group", table.Group.ID()),
			zap.Duration("took", time.Since(start)),
		)
	}
	return nil
}

// Close closes every store and returns the first error
func (m *MultiStore) Close() error {
	var firstErr error
	for _, s := range m.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
