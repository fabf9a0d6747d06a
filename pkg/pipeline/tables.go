package pipeline

import (
	"time"

	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/features"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/schema"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/store"
)

// Tables are the three feature tables derived by one run
type Tables struct {
	Transactions *store.Table
	Windows      *store.Table
	Labels       *store.Table
}

// All returns the tables in write order
func (t *Tables) All() []*store.Table {
	return []*store.Table{t.Transactions, t.Windows, t.Labels}
}

// RowCounts returns the number of rows per feature group id
func (t *Tables) RowCounts() map[string]int {
	counts := make(map[string]int, 3)
	for _, table := range t.All() {
		counts[table.Group.ID()] = table.Len()
	}
	return counts
}

// BuildTables converts the computed records to store rows following the
// feature group column contracts. The window length must be whole hours
// since it names the aggregate group.
func BuildTables(result *features.Result, labels []model.FraudLabel, windowLen time.Duration) (*Tables, error) {
	if windowLen <= 0 || windowLen%time.Hour != 0 {
		return nil, ferrors.NewConfigurationError("window_len", "must be a positive number of hours, got %s", windowLen)
	}

	tables := &Tables{
		Transactions: store.NewTable(schema.TransactionsGroup()),
		Windows:      store.NewTable(schema.WindowAggregatesGroup(int(windowLen / time.Hour))),
		Labels:       store.NewTable(schema.FraudLabelsGroup()),
	}

	tables.Transactions.Rows = make([]store.Row, len(result.Transactions))
	for i, tx := range result.Transactions {
		tables.Transactions.Rows[i] = transactionRow(tx)
	}

	tables.Windows.Rows = make([]store.Row, len(result.Windows))
	for i, w := range result.Windows {
		tables.Windows.Rows[i] = windowRow(w)
	}

	tables.Labels.Rows = make([]store.Row, len(labels))
	for i, l := range labels {
		tables.Labels.Rows[i] = labelRow(l)
	}

	return tables, nil
}

func transactionRow(tx model.EnrichedTransaction) store.Row {
	return store.Row{
		"tid":                     tx.TID,
		"datetime":                model.UnixMillis(tx.Datetime),
		"cc_num":                  tx.CCNum,
		"category":                tx.Category,
		"amount":                  tx.Amount,
		"latitude":                tx.Latitude,
		"longitude":               tx.Longitude,
		"city":                    tx.City,
		"country":                 tx.Country,
		"age_at_transaction":      tx.AgeAtTransaction,
		"days_until_card_expires": tx.DaysUntilCardExpires,
		"activity_level":          string(tx.ActivityLevel),
		"loc_delta_t_minus_1":     tx.LocDelta.Interface(),
		"time_delta_t_minus_1":    tx.TimeDelta.Interface(),
	}
}

func windowRow(w model.WindowAggregate) store.Row {
	return store.Row{
		"datetime":          model.UnixMillis(w.WindowStart),
		"window_end":        model.UnixMillis(w.WindowEnd),
		"cc_num":            w.CCNum,
		"trans_count":       w.TransCount,
		"loc_delta_mavg":    w.LocDeltaMavg.Interface(),
		"time_delta_mavg":   w.TimeDeltaMavg.Interface(),
		"trans_freq":        w.TransFreq.Interface(),
		"trans_volume_mavg": w.TransVolumeMavg.Interface(),
		"trans_volume_mstd": w.TransVolumeMstd.Interface(),
	}
}

func labelRow(l model.FraudLabel) store.Row {
	label := 0
	if l.FraudLabel {
		label = 1
	}
	return store.Row{
		"tid":         l.TID,
		"cc_num":      l.CCNum,
		"datetime":    model.UnixMillis(l.Datetime),
		"fraud_label": label,
	}
}
