package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"go.uber.org/zap"
)

func TestRocksDBStoreWriteRead(t *testing.T) {
	ctx := context.Background()
	s, err := NewRocksDBStore(DefaultRocksDBConfig(filepath.Join(t.TempDir(), "features")), zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Read(ctx, schema.FraudLabelsGroup())
	assert.ErrorIs(t, err, ErrGroupNotFound)

	table := labelTable(labelRow("t2", "5500", 2, 1), labelRow("t1", "4111", 1, 0), labelRow("t1", "4111", 1, 0))
	require.NoError(t, s.Write(ctx, table))
	require.NoError(t, s.Write(ctx, table))

	got, err := s.Read(ctx, schema.FraudLabelsGroup())
	require.NoError(t, err)
	assert.Equal(t, []Row{labelRow("t1", "4111", 1, 0), labelRow("t2", "5500", 2, 1)}, got.Rows)

	metrics := s.GetMetrics()
	assert.Equal(t, int64(2), metrics["puts"])
	assert.Equal(t, int64(4), metrics["skipped"])

	// other groups do not leak into the scan
	_, err = s.Read(ctx, schema.TransactionsGroup())
	assert.ErrorIs(t, err, ErrGroupNotFound)
}
