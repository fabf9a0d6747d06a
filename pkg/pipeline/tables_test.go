package pipeline

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/features"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/store"
)

func TestBuildTables(t *testing.T) {
	ts := time.Date(2023, 5, 1, 3, 0, 0, 0, time.UTC)
	result := &features.Result{
		Transactions: []model.EnrichedTransaction{{
			TID:                  "t1",
			Datetime:             ts,
			CCNum:                "4111",
			Category:             "Grocery",
			Amount:               12.5,
			Latitude:             41.88,
			Longitude:            -87.63,
			City:                 "Chicago",
			Country:              "US",
			AgeAtTransaction:     33,
			DaysUntilCardExpires: 400,
			ActivityLevel:        model.ActivityLow,
			LocDelta:             model.Null(),
			TimeDelta:            model.Null(),
		}},
		Windows: []model.WindowAggregate{{
			CCNum:           "4111",
			WindowStart:     ts,
			WindowEnd:       ts.Add(4 * time.Hour),
			TransCount:      1,
			LocDeltaMavg:    model.Null(),
			TimeDeltaMavg:   model.Null(),
			TransFreq:       model.Null(),
			TransVolumeMavg: model.Some(12.5),
			TransVolumeMstd: model.Null(),
		}},
	}
	labels := []model.FraudLabel{
		{TID: "t1", CCNum: "4111", Datetime: ts, FraudLabel: true},
		{TID: "t2", CCNum: "4111", Datetime: ts.Add(time.Minute)},
	}

	tables, err := BuildTables(result, labels, 4*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{
		"cc_trans_fraud_2":           1,
		"cc_trans_fraud_4h_2":        1,
		"transactions_fraud_label_2": 2,
	}, tables.RowCounts())

	for _, table := range tables.All() {
		require.NoError(t, table.Validate(), table.Group.ID())
	}

	millis := ts.UnixMilli()
	wantTx := store.Row{
		"tid":                     "t1",
		"datetime":                millis,
		"cc_num":                  "4111",
		"category":                "Grocery",
		"amount":                  12.5,
		"latitude":                41.88,
		"longitude":               -87.63,
		"city":                    "Chicago",
		"country":                 "US",
		"age_at_transaction":      33,
		"days_until_card_expires": 400,
		"activity_level":          "low",
		"loc_delta_t_minus_1":     nil,
		"time_delta_t_minus_1":    nil,
	}
	if diff := cmp.Diff(wantTx, tables.Transactions.Rows[0]); diff != "" {
		t.Errorf("transaction row mismatch (-want +got):\n%s", diff)
	}

	win := tables.Windows.Rows[0]
	assert.Equal(t, millis, win["datetime"])
	assert.Equal(t, ts.Add(4*time.Hour).UnixMilli(), win["window_end"])
	assert.Equal(t, 12.5, win["trans_volume_mavg"])
	assert.Nil(t, win["trans_volume_mstd"])

	assert.Equal(t, 1, tables.Labels.Rows[0]["fraud_label"])
	assert.Equal(t, 0, tables.Labels.Rows[1]["fraud_label"])
}

func TestBuildTablesRequiresWholeHours(t *testing.T) {
	for _, windowLen := range []time.Duration{0, -time.Hour, 90 * time.Minute} {
		_, err := BuildTables(&features.Result{}, nil, windowLen)
		assert.ErrorIs(t, err, ferrors.ErrConfiguration, windowLen.String())
	}
}
