package synthetic

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
)

func testConfig() Config {
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	return Config{
		Cards:               50,
		Transactions:        2000,
		CashWithdrawalCards: 10,
		CashWithdrawals:     100,
		FraudRatio:          0.05,
		Start:               start,
		End:                 start.Add(72 * time.Hour),
		Seed:                42,
	}
}

func TestGenerateTimestampsInRange(t *testing.T) {
	cfg := testConfig()
	g, err := New(cfg)
	require.NoError(t, err)

	ds, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, ds.Transactions, cfg.Transactions)

	for _, tx := range ds.Transactions {
		assert.False(t, tx.Datetime.Before(cfg.Start), "tx %s before start", tx.TID)
		assert.True(t, tx.Datetime.Before(cfg.End), "tx %s not before end", tx.TID)
		assert.Zero(t, tx.Datetime.Sub(cfg.Start)%time.Second)
	}
	for i := 1; i < len(ds.Transactions); i++ {
		assert.False(t, ds.Transactions[i].Datetime.Before(ds.Transactions[i-1].Datetime))
	}
}

func TestGenerateReferentialIntegrity(t *testing.T) {
	cfg := testConfig()
	g, err := New(cfg)
	require.NoError(t, err)

	ds, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, ds.Cards, cfg.Cards)
	require.Len(t, ds.Profiles, cfg.Cards)

	cards := ds.CardIndex()
	assert.Len(t, cards, cfg.Cards, "card numbers must be unique")
	profiles := ds.ProfileIndex()

	cashCards := make(map[string]struct{})
	tids := make(map[string]struct{})
	cashCount := 0
	for _, tx := range ds.Transactions {
		_, ok := cards[tx.CCNum]
		assert.True(t, ok, "unknown card %s", tx.CCNum)
		_, ok = profiles[tx.CCNum]
		assert.True(t, ok, "no profile for %s", tx.CCNum)
		tids[tx.TID] = struct{}{}
		if tx.Category == CategoryCashWithdrawal {
			cashCount++
			cashCards[tx.CCNum] = struct{}{}
		}
		assert.Greater(t, tx.Amount, 0.0)
	}
	assert.Len(t, tids, cfg.Transactions, "transaction ids must be unique")
	assert.Equal(t, cfg.CashWithdrawals, cashCount)
	assert.LessOrEqual(t, len(cashCards), cfg.CashWithdrawalCards)

	for _, c := range ds.Cards {
		_, err := c.ExpiryTime()
		assert.NoError(t, err)
		assert.Contains(t, []string{"visa", "mastercard"}, c.Provider)
	}
}

func TestGenerateNoDuplicateCardTimestamps(t *testing.T) {
	cfg := testConfig()
	cfg.Cards = 3
	cfg.CashWithdrawalCards = 1
	cfg.End = cfg.Start.Add(2 * time.Hour)
	g, err := New(cfg)
	require.NoError(t, err)

	ds, err := g.Generate()
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for _, tx := range ds.Transactions {
		key := tx.CCNum + "/" + tx.Datetime.String()
		_, dup := seen[key]
		assert.False(t, dup, "duplicate event %s", key)
		seen[key] = struct{}{}
	}
}

func TestGenerateFraudRatio(t *testing.T) {
	cfg := testConfig()
	cfg.Cards = 200
	cfg.Transactions = 50000
	cfg.FraudRatio = 0.1
	cfg.End = cfg.Start.Add(30 * 24 * time.Hour)
	g, err := New(cfg)
	require.NoError(t, err)

	ds, err := g.Generate()
	require.NoError(t, err)

	fraud := 0
	for _, tx := range ds.Transactions {
		if tx.FraudLabel {
			fraud++
		}
	}
	assert.InDelta(t, cfg.FraudRatio, float64(fraud)/float64(len(ds.Transactions)), 0.01)
}

func TestGenerateZeroFraudRatio(t *testing.T) {
	cfg := testConfig()
	cfg.FraudRatio = 0
	g, err := New(cfg)
	require.NoError(t, err)

	ds, err := g.Generate()
	require.NoError(t, err)
	for _, tx := range ds.Transactions {
		assert.False(t, tx.FraudLabel)
	}
}

func TestGenerateDeterministicWithSeed(t *testing.T) {
	g1, err := New(testConfig())
	require.NoError(t, err)
	g2, err := New(testConfig())
	require.NoError(t, err)

	ds1, err := g1.Generate()
	require.NoError(t, err)
	ds2, err := g2.Generate()
	require.NoError(t, err)
	assert.Equal(t, ds1, ds2)
}

func TestGenerateTooNarrowRange(t *testing.T) {
	cfg := testConfig()
	cfg.Cards = 1
	cfg.CashWithdrawalCards = 0
	cfg.CashWithdrawals = 0
	cfg.Transactions = 5
	cfg.End = cfg.Start.Add(2 * time.Second)
	g, err := New(cfg)
	require.NoError(t, err)

	_, err = g.Generate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ferrors.ErrConfiguration))
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"fraud ratio above one", func(c *Config) { c.FraudRatio = 1.5 }, "fraud_ratio"},
		{"negative fraud ratio", func(c *Config) { c.FraudRatio = -0.1 }, "fraud_ratio"},
		{"NaN fraud ratio", func(c *Config) { c.FraudRatio = math.NaN() }, "fraud_ratio"},
		{"start after end", func(c *Config) { c.Start, c.End = c.End, c.Start }, "end"},
		{"start equals end", func(c *Config) { c.End = c.Start }, "end"},
		{"no cards", func(c *Config) { c.Cards = 0 }, "cards"},
		{"no transactions", func(c *Config) { c.Transactions = 0 }, "transactions"},
		{"cash cards exceed cards", func(c *Config) { c.CashWithdrawalCards = c.Cards + 1 }, "cash_withdrawal_cards"},
		{"cash withdrawals exceed transactions", func(c *Config) { c.CashWithdrawals = c.Transactions + 1 }, "cash_withdrawals"},
		{"cash withdrawals without cash cards", func(c *Config) { c.CashWithdrawalCards = 0 }, "cash_withdrawals"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cfgErr *ferrors.ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)

			_, err = New(cfg)
			assert.True(t, errors.Is(err, ferrors.ErrConfiguration))
		})
	}

	assert.NoError(t, testConfig().Validate())
}
