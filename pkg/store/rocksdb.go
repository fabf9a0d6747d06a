package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/tecbot/gorocksdb"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.uber.org/zap"
)

// RocksDBStore is an embedded offline store. Rows are JSON values under
// RowKey, so a prefix scan of a group ID yields its rows ordered by primary
// key and event time.
type RocksDBStore struct {
	db        *gorocksdb.DB
	opts      *gorocksdb.Options
	writeOpts *gorocksdb.WriteOptions
	readOpts  *gorocksdb.ReadOptions
	logger    *zap.Logger
	mu        sync.RWMutex
	path      string

	// Metrics
	putCount     int64
	skippedCount int64
}

// RocksDBConfig holds configuration for the RocksDB store
type RocksDBConfig struct {
	Path              string
	CreateIfMissing   bool
	WriteBufferSize   int
	MaxWriteBufferNum int
	MaxOpenFiles      int
	BlockSize         int
	BlockCacheSize    uint64
	BloomFilterBits   int
	SyncWrites        bool
}

// DefaultRocksDBConfig returns sensible defaults for RocksDB
func DefaultRocksDBConfig(path string) *RocksDBConfig {
	return &RocksDBConfig{
		Path:              path,
		CreateIfMissing:   true,
		WriteBufferSize:   64 * 1024 * 1024, // 64MB
		MaxWriteBufferNum: 3,
		MaxOpenFiles:      1000,
		BlockSize:         4 * 1024,          // 4KB
		BlockCacheSize:    128 * 1024 * 1024, // 128MB
		BloomFilterBits:   10,
	}
}

// NewRocksDBStore opens or creates the database
func NewRocksDBStore(config *RocksDBConfig, logger *zap.Logger) (*RocksDBStore, error) {
	if config == nil {
		config = DefaultRocksDBConfig("./features")
	}

	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(config.CreateIfMissing)
	opts.SetWriteBufferSize(config.WriteBufferSize)
	opts.SetMaxWriteBufferNumber(config.MaxWriteBufferNum)
	opts.SetMaxOpenFiles(config.MaxOpenFiles)
	opts.SetCompression(gorocksdb.SnappyCompression)

	blockOpts := gorocksdb.NewDefaultBlockBasedTableOptions()
	blockOpts.SetBlockSize(config.BlockSize)
	blockOpts.SetBlockCache(gorocksdb.NewLRUCache(config.BlockCacheSize))
	blockOpts.SetFilterPolicy(gorocksdb.NewBloomFilter(config.BloomFilterBits))
	opts.SetBlockBasedTableFactory(blockOpts)

	db, err := gorocksdb.OpenDb(opts, config.Path)
	if err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("failed to open RocksDB: %w", err)
	}

	writeOpts := gorocksdb.NewDefaultWriteOptions()
	writeOpts.SetSync(config.SyncWrites)

	readOpts := gorocksdb.NewDefaultReadOptions()
	readOpts.SetFillCache(true)

	logger.Info("RocksDB feature store initialized", zap.String("path", config.Path))

	return &RocksDBStore{
		db:        db,
		opts:      opts,
		writeOpts: writeOpts,
		readOpts:  readOpts,
		logger:    logger,
		path:      config.Path,
	}, nil
}

// groupPrefix is the key prefix shared by all rows of a group
func groupPrefix(group *schema.FeatureGroup) []byte {
	return []byte(group.ID() + "/")
}

// Write stores the rows whose key is not present yet in one write batch
func (r *RocksDBStore) Write(ctx context.Context, table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return fmt.Errorf("RocksDB is not initialized")
	}

	batch := gorocksdb.NewWriteBatch()
	defer batch.Destroy()

	pending := make(map[string]struct{}, table.Len())
	for _, row := range table.Rows {
		key, err := RowKey(table.Group, row)
		if err != nil {
			return err
		}
		if _, dup := pending[key]; dup {
			r.skippedCount++
			continue
		}

		existing, err := r.db.Get(r.readOpts, []byte(key))
		if err != nil {
			return fmt.Errorf("failed to get key %s: %w", key, err)
		}
		exists := existing.Exists()
		existing.Free()
		if exists {
			r.skippedCount++
			continue
		}

		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal row of %s: %w", table.Group.ID(), err)
		}
		batch.Put([]byte(key), data)
		pending[key] = struct{}{}
	}

	if err := r.db.Write(r.writeOpts, batch); err != nil {
		return fmt.Errorf("failed to write %s: %w", table.Group.ID(), err)
	}
	r.putCount += int64(len(pending))

	r.logger.Debug("Rows written to RocksDB",
		zap.String("group", table.Group.ID()),
		zap.Int("written", len(pending)),
		zap.Int("skipped", table.Len()-len(pending)),
	)
	return nil
}

// Read scans all rows of a group
func (r *RocksDBStore) Read(ctx context.Context, group *schema.FeatureGroup) (*Table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.db == nil {
		return nil, fmt.Errorf("RocksDB is not initialized")
	}

	prefix := groupPrefix(group)
	it := r.db.NewIterator(r.readOpts)
	defer it.Close()

	table := NewTable(group)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		value := it.Value()
		row, err := decodeRow(group, value.Data())
		value.Free()
		if err != nil {
			return nil, err
		}
		table.Rows = append(table.Rows, row)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("iterator error reading %s: %w", group.ID(), err)
	}
	if table.Len() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group.ID())
	}
	return table, nil
}

// GetMetrics returns current operation metrics
func (r *RocksDBStore) GetMetrics() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return map[string]int64{
		"puts":    r.putCount,
		"skipped": r.skippedCount,
	}
}

// Close closes the database
func (r *RocksDBStore) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}

	r.readOpts.Destroy()
	r.writeOpts.Destroy()
	r.db.Close()
	r.db = nil
	r.opts.Destroy()

	r.logger.Info("Closed RocksDB feature store",
		zap.String("path", r.path),
		zap.Int64("total_puts", r.putCount),
	)
	return nil
}
