package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/config"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/ingestion"
	"go.uber.org/zap"
)

func TestNewSource(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	cfg := testSettings()

	src, err := NewSource(cfg, clock, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &SyntheticSource{}, src)

	cfg.Pipeline.Mode = config.ModeBackfill
	src, err = NewSource(cfg, clock, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &ingestion.CSVSource{}, src)

	cfg.Pipeline.Mode = "streaming"
	_, err = NewSource(cfg, clock, zap.NewNop())
	assert.EqualError(t, err, "unsupported pipeline mode: streaming")
}

func TestSyntheticSourceWindowFollowsClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now.Add(500 * time.Millisecond))
	src := NewSyntheticSource(testSettings().Generator, clock, zap.NewNop())

	cfg := src.Config()
	assert.Equal(t, now, cfg.End)
	assert.Equal(t, now.Add(-24*time.Hour), cfg.Start)

	clock.Advance(time.Hour)
	cfg = src.Config()
	assert.Equal(t, now.Add(time.Hour), cfg.End)
}

func TestSyntheticSourceDrawsFraudRatioFromRange(t *testing.T) {
	gen := testSettings().Generator
	src := NewSyntheticSource(gen, clockwork.NewFakeClockAt(now), zap.NewNop())

	seen := map[float64]struct{}{}
	for i := 0; i < 50; i++ {
		ratio := src.Config().FraudRatio
		assert.GreaterOrEqual(t, ratio, gen.FraudRatioMin)
		assert.Less(t, ratio, gen.FraudRatioMax)
		seen[ratio] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)

	gen.FraudRatioMin, gen.FraudRatioMax = 0, 0
	fixed := NewSyntheticSource(gen, clockwork.NewFakeClockAt(now), zap.NewNop())
	assert.Equal(t, gen.FraudRatio, fixed.Config().FraudRatio)
}

func TestSyntheticSourceIsReproducibleWithSeed(t *testing.T) {
	gen := testSettings().Generator
	a := NewSyntheticSource(gen, clockwork.NewFakeClockAt(now), zap.NewNop())
	b := NewSyntheticSource(gen, clockwork.NewFakeClockAt(now), zap.NewNop())

	for i := 0; i < 3; i++ {
		assert.Equal(t, a.Config(), b.Config())
	}

	dsA, err := a.Load(context.Background())
	require.NoError(t, err)
	dsB, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dsA, dsB)
}

func TestSyntheticSourceLoad(t *testing.T) {
	gen := testSettings().Generator
	src := NewSyntheticSource(gen, clockwork.NewFakeClockAt(now), zap.NewNop())

	ds, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, ds.Transactions, gen.Transactions)
	for _, tx := range ds.Transactions {
		assert.False(t, tx.Datetime.Before(now.Add(-gen.Lookback)))
		assert.True(t, tx.Datetime.Before(now))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
