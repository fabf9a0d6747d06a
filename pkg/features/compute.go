package features

import (
	"context"
	"time"

	"github.com/alitto/pond/v2"
	ferrors "github.com/therealutkarshpriyadarshi/ccfraud/pkg/errors"
	"github.com/therealutkarshpriyadarshi/ccfraud/pkg/model"
)

// ComputeOptions configures the per-card computation
type ComputeOptions struct {
	WindowLen time.Duration
	// Parallelism is the number of partitions processed concurrently; 1 or less runs sequentially
	Parallelism int
}

// Result holds the derived tables of one batch
type Result struct {
	// Transactions with deltas, grouped by card in cc_num order and ascending time
	Transactions []model.EnrichedTransaction
	Windows      []model.WindowAggregate
}

type partitionResult struct {
	rows    []model.EnrichedTransaction
	windows []model.WindowAggregate
}

// Compute partitions the enriched events by card, applies deltas and
// aggregates every partition into tumbling windows. The output only depends
// on the set of input rows, not on their order.
func Compute(ctx context.Context, enriched []model.EnrichedTransaction, opts ComputeOptions) (*Result, error) {
	if opts.WindowLen <= 0 {
		return nil, ferrors.NewConfigurationError("window_len", "must be positive, got %s", opts.WindowLen)
	}

	parts := PartitionByCard(enriched)
	process := func(p Partition) (partitionResult, error) {
		ApplyDeltas(&p)
		windows, err := AggregateWindows(p, opts.WindowLen)
		if err != nil {
			return partitionResult{}, err
		}
		return partitionResult{rows: p.Rows, windows: windows}, nil
	}

	var results []partitionResult
	if opts.Parallelism <= 1 {
		results = make([]partitionResult, 0, len(parts))
		for _, p := range parts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r, err := process(p)
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}
	} else {
		pool := pond.NewResultPool[partitionResult](opts.Parallelism)
		defer pool.StopAndWait()

		group := pool.NewGroupContext(ctx)
		for _, p := range parts {
			p := p
			group.SubmitErr(func() (partitionResult, error) {
				return process(p)
			})
		}

		var err error
		if results, err = group.Wait(); err != nil {
			return nil, err
		}
	}

	res := &Result{
		Transactions: make([]model.EnrichedTransaction, 0, len(enriched)),
	}
	for _, r := range results {
		res.Transactions = append(res.Transactions, r.rows...)
		res.Windows = append(res.Windows, r.windows...)
	}
	return res, nil
}
