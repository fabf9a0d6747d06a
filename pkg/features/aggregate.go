package features

import (
	"fmt"
	"time"

	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/window"
	"gonum.org/v1/gonum/stat"
)

// AggregateWindows computes one aggregate per non-empty tumbling bucket of
// the partition. The partition must already carry its deltas and be ordered.
func AggregateWindows(p Partition, windowLen time.Duration) ([]model.WindowAggregate, error) {
	if err := CheckOrdered(p); err != nil {
		return nil, err
	}
	assigner, err := window.NewTumblingWindow(windowLen)
	if err != nil {
		return nil, fmt.Errorf("invalid window length: %w", err)
	}

	var out []model.WindowAggregate
	for start := 0; start < len(p.Rows); {
		bucket := assigner.BucketID(p.Rows[start].Datetime)
		end := start + 1
		for end < len(p.Rows) && assigner.BucketID(p.Rows[end].Datetime) == bucket {
			end++
		}
		out = append(out, aggregate(p.CCNum, assigner.Bounds(bucket), p.Rows[start:end]))
		start = end
	}
	return out, nil
}

func aggregate(ccNum string, w window.Window, rows []model.EnrichedTransaction) model.WindowAggregate {
	amounts := make([]float64, len(rows))
	var locs, times []float64
	for i, r := range rows {
		amounts[i] = r.Amount
		if r.LocDelta.Valid {
			locs = append(locs, r.LocDelta.Value)
		}
		if r.TimeDelta.Valid {
			times = append(times, r.TimeDelta.Value)
		}
	}

	agg := model.WindowAggregate{
		CCNum:           ccNum,
		WindowStart:     w.Start,
		WindowEnd:       w.End,
		TransCount:      len(rows),
		LocDeltaMavg:    mean(locs),
		TimeDeltaMavg:   mean(times),
		TransVolumeMavg: mean(amounts),
	}
	if agg.TimeDeltaMavg.Valid && agg.TimeDeltaMavg.Value != 0 {
		agg.TransFreq = model.Some(1 / agg.TimeDeltaMavg.Value)
	}
	if len(amounts) > 1 {
		// sample standard deviation (n-1)
		agg.TransVolumeMstd = model.Some(stat.StdDev(amounts, nil))
	}
	return agg
}

func mean(xs []float64) model.Float {
	if len(xs) == 0 {
		return model.Null()
	}
	return model.Some(stat.Mean(xs, nil))
}
