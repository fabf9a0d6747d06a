package features

import (
	"fmt"
	"math"
	"sort"
	"time"

	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
)

const (
	day           = 24 * time.Hour
	daysPerYear   = 365.25
	profilesTable = "profiles"
	cardsTable    = "credit_cards"
)

// ActivityThresholds are the count boundaries between activity levels
type ActivityThresholds struct {
	Medium int
	High   int
}

// EnrichOptions configures per-event enrichment
type EnrichOptions struct {
	// Lookback is the window of prior activity counted per event
	Lookback   time.Duration
	Thresholds ActivityThresholds
}

// DefaultEnrichOptions returns a one hour lookback with thresholds 2 and 5
func DefaultEnrichOptions() EnrichOptions {
	return EnrichOptions{
		Lookback:   time.Hour,
		Thresholds: ActivityThresholds{Medium: 2, High: 5},
	}
}

// AgeAtTransaction returns the whole years between birthdate and ts
func AgeAtTransaction(ts, birthdate time.Time) int {
	days := float64(ts.Sub(birthdate)) / float64(day)
	return int(math.Floor(days / daysPerYear))
}

// DaysUntilExpiry returns the whole days from ts to expiry, negative once expired
func DaysUntilExpiry(ts, expiry time.Time) int {
	return int(math.Floor(float64(expiry.Sub(ts)) / float64(day)))
}

// ActivityLevelFor buckets a prior activity count
func ActivityLevelFor(count int, th ActivityThresholds) model.ActivityLevel {
	switch {
	case count < th.Medium:
		return model.ActivityLow
	case count < th.High:
		return model.ActivityMedium
	default:
		return model.ActivityHigh
	}
}

// ActivityCounts returns, aligned with txs, the number of events of the same
// card with a timestamp in [t-lookback, t). Events sharing the timestamp of
// the current event are not counted.
func ActivityCounts(txs []model.Transaction, lookback time.Duration) []int {
	counts := make([]int, len(txs))

	byCard := make(map[string][]int)
	for i, tx := range txs {
		byCard[tx.CCNum] = append(byCard[tx.CCNum], i)
	}

	for _, idx := range byCard {
		sort.SliceStable(idx, func(a, b int) bool {
			return txs[idx[a]].Datetime.Before(txs[idx[b]].Datetime)
		})

		left, firstEq := 0, 0
		for i, pos := range idx {
			t := txs[pos].Datetime
			if i == 0 || !t.Equal(txs[idx[i-1]].Datetime) {
				firstEq = i
			}
			from := t.Add(-lookback)
			for txs[idx[left]].Datetime.Before(from) {
				left++
			}
			counts[pos] = firstEq - left
		}
	}
	return counts
}

// Enrich splits the fraud labels off the transactions and joins every
// transaction with its profile and card. The dataset is not modified.
func Enrich(ds *model.Dataset, opts EnrichOptions) ([]model.EnrichedTransaction, []model.FraudLabel, error) {
	if opts.Lookback < 0 {
		return nil, nil, ferrors.NewConfigurationError("lookback", "must not be negative, got %s", opts.Lookback)
	}
	profiles := ds.ProfileIndex()
	cards := ds.CardIndex()
	counts := ActivityCounts(ds.Transactions, opts.Lookback)

	expiries := make(map[string]time.Time, len(cards))
	enriched := make([]model.EnrichedTransaction, len(ds.Transactions))

	for i, tx := range ds.Transactions {
		profile, ok := profiles[tx.CCNum]
		if !ok {
			return nil, nil, ferrors.NewLookupError(profilesTable, tx.CCNum)
		}
		card, ok := cards[tx.CCNum]
		if !ok {
			return nil, nil, ferrors.NewLookupError(cardsTable, tx.CCNum)
		}

		expiry, ok := expiries[tx.CCNum]
		if !ok {
			var err error
			if expiry, err = card.ExpiryTime(); err != nil {
				return nil, nil, fmt.Errorf("failed to enrich transaction %s: %w", tx.TID, err)
			}
			expiries[tx.CCNum] = expiry
		}

		enriched[i] = model.EnrichedTransaction{
			TID:                  tx.TID,
			Datetime:             tx.Datetime,
			CCNum:                tx.CCNum,
			Category:             tx.Category,
			Amount:               tx.Amount,
			Latitude:             tx.Latitude,
			Longitude:            tx.Longitude,
			City:                 tx.City,
			Country:              tx.Country,
			AgeAtTransaction:     AgeAtTransaction(tx.Datetime, profile.Birthdate),
			DaysUntilCardExpires: DaysUntilExpiry(tx.Datetime, expiry),
			ActivityLevel:        ActivityLevelFor(counts[i], opts.Thresholds),
		}
	}

	return enriched, ds.Labels(), nil
}
