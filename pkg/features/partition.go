package features

import (
	"sort"
	"time"

	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
)

// Partition holds the events of one card in ascending time order
type Partition struct {
	CCNum string
	Rows  []model.EnrichedTransaction
}

// PartitionByCard groups events by card. Rows are copied, sorted by
// timestamp with ties broken by tid; partitions are ordered by cc_num.
func PartitionByCard(txs []model.EnrichedTransaction) []Partition {
	groups := make(map[string][]model.EnrichedTransaction)
	for _, tx := range txs {
		groups[tx.CCNum] = append(groups[tx.CCNum], tx)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]Partition, len(keys))
	for i, k := range keys {
		rows := groups[k]
		sort.SliceStable(rows, func(a, b int) bool {
			if rows[a].Datetime.Equal(rows[b].Datetime) {
				return rows[a].TID < rows[b].TID
			}
			return rows[a].Datetime.Before(rows[b].Datetime)
		})
		parts[i] = Partition{CCNum: k, Rows: rows}
	}
	return parts
}

// CheckOrdered verifies that a partition holds a single card in ascending time order
func CheckOrdered(p Partition) error {
	for i, row := range p.Rows {
		if row.CCNum != p.CCNum {
			return ferrors.NewDataOrderingError(p.CCNum, i, "row belongs to card %s", row.CCNum)
		}
		if i > 0 && row.Datetime.Before(p.Rows[i-1].Datetime) {
			return ferrors.NewDataOrderingError(p.CCNum, i, "timestamp %s precedes %s",
				row.Datetime.Format(time.RFC3339Nano), p.Rows[i-1].Datetime.Format(time.RFC3339Nano))
		}
	}
	return nil
}
