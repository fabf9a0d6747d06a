package pipeline

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/config"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/ingestion"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/synthetic"
	"go.uber.org/zap"
)

// Source provides the raw dataset of one run
type Source interface {
	Load(ctx context.Context) (*model.Dataset, error)
}

// NewSource returns the source of the configured pipeline mode
func NewSource(cfg *config.Config, clock clockwork.Clock, logger *zap.Logger) (Source, error) {
	switch cfg.Pipeline.Mode {
	case config.ModeSynthetic:
		return NewSyntheticSource(cfg.Generator, clock, logger), nil
	case config.ModeBackfill:
		return ingestion.NewCSVSource(cfg.Pipeline.BackfillDir, logger), nil
	}
	return nil, fmt.Errorf("unsupported pipeline mode: %s", cfg.Pipeline.Mode)
}

// SyntheticSource generates a fresh dataset covering [now - lookback, now)
// on every Load. When a fraud ratio range is configured, every run draws its
// ratio uniformly from it.
type SyntheticSource struct {
	cfg    config.GeneratorConfig
	clock  clockwork.Clock
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSyntheticSource creates a synthetic source. A non-zero seed makes the
// sequence of generated datasets reproducible.
func NewSyntheticSource(cfg config.GeneratorConfig, clock clockwork.Clock, logger *zap.Logger) *SyntheticSource {
	seed := cfg.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &SyntheticSource{
		cfg:    cfg,
		clock:  clock,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

func (s *SyntheticSource) next() (ratio float64, seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ratio = s.cfg.FraudRatio
	if s.cfg.FraudRatioMax > 0 {
		ratio = s.cfg.FraudRatioMin + s.rng.Float64()*(s.cfg.FraudRatioMax-s.cfg.FraudRatioMin)
	}
	// The generator treats 0 as "seed from the clock"
	for seed == 0 {
		seed = s.rng.Int63()
	}
	return ratio, seed
}

// Config returns the generator configuration of the next run
func (s *SyntheticSource) Config() synthetic.Config {
	ratio, seed := s.next()
	end := s.clock.Now().UTC().Truncate(time.Second)
	return synthetic.Config{
		Cards:               s.cfg.Cards,
		Transactions:        s.cfg.Transactions,
		CashWithdrawalCards: s.cfg.CashWithdrawalCards,
		CashWithdrawals:     s.cfg.CashWithdrawals,
		FraudRatio:          ratio,
		Start:               end.Add(-s.cfg.Lookback),
		End:                 end,
		Seed:                seed,
	}
}

// Load generates the dataset of one run
func (s *SyntheticSource) Load(ctx context.Context) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := s.Config()
	gen, err := synthetic.New(cfg)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Generating synthetic dataset",
		zap.Int("cards", cfg.Cards),
		zap.Int("transactions", cfg.Transactions),
		zap.Float64("fraud_ratio", cfg.FraudRatio),
		zap.Time("start", cfg.Start),
		zap.Time("end", cfg.End))

	return gen.Generate()
}
