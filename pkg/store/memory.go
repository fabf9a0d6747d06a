package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.uber.org/zap"
)

// MemoryStore keeps feature tables in memory for tests and local runs
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[string]*memoryGroup
	logger *zap.Logger

	// Metrics
	writeCount   int64
	skippedCount int64
}

type memoryGroup struct {
	group *schema.FeatureGroup
	keys  map[string]struct{}
	rows  []Row
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	logger.Info("Memory feature store initialized")
	return &MemoryStore{
		groups: make(map[string]*memoryGroup),
		logger: logger,
	}
}

// Read returns a copy of the stored rows in insertion order
func (m *MemoryStore) Read(ctx context.Context, group *schema.FeatureGroup) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.groups[group.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrGroupNotFound, group.ID())
	}

	t := &Table{Group: g.group, Rows: make([]Row, len(g.rows))}
	for i, r := range g.rows {
		t.Rows[i] = copyRow(r)
	}
	return t, nil
}

// Write appends the rows not yet present
func (m *MemoryStore) Write(ctx context.Context, table *Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	keys := make([]string, len(table.Rows))
	for i, r := range table.Rows {
		k, err := RowKey(table.Group, r)
		if err != nil {
			return err
		}
		keys[i] = k
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.groups[table.Group.ID()]
	if !ok {
		g = &memoryGroup{group: table.Group, keys: make(map[string]struct{})}
		m.groups[table.Group.ID()] = g
	}

	written := 0
	for i, r := range table.Rows {
		if _, dup := g.keys[keys[i]]; dup {
			m.skippedCount++
			continue
		}
		g.keys[keys[i]] = struct{}{}
		g.rows = append(g.rows, copyRow(r))
		written++
	}
	m.writeCount += int64(written)

	m.logger.Debug("Rows written to memory store",
		zap.String("group", table.Group.ID()),
		zap.Int("written", written),
		zap.Int("skipped", len(table.Rows)-written),
	)
	return nil
}

// Groups returns the IDs of the stored groups
func (m *MemoryStore) Groups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.groups))
	for id := range m.groups {
		ids = append(ids, id)
	}
	return ids
}

// GetStats returns store statistics
func (m *MemoryStore) GetStats() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]int64{
		"groups":  int64(len(m.groups)),
		"writes":  m.writeCount,
		"skipped": m.skippedCount,
	}
}

// Close releases the stored tables
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = make(map[string]*memoryGroup)
	m.logger.Info("Memory feature store closed")
	return nil
}
