package window

import (
	"fmt"
	"time"
)

// Window is a half-open event-time interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls inside the window
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// TumblingWindowAssigner assigns timestamps to non-overlapping buckets of a
// fixed size. Buckets are anchored at the Unix epoch (plus an optional
// offset), never at the first observed event, so a timestamp always lands in
// the same bucket regardless of which batch it arrives in.
type TumblingWindowAssigner struct {
	size   time.Duration
	offset time.Duration
}

// NewTumblingWindow creates a tumbling window assigner
func NewTumblingWindow(size time.Duration) (*TumblingWindowAssigner, error) {
	if size <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %s", size)
	}
	return &TumblingWindowAssigner{size: size}, nil
}

// NewHourlyWindow creates an assigner for windows of the given number of hours
func NewHourlyWindow(hours int) (*TumblingWindowAssigner, error) {
	return NewTumblingWindow(time.Duration(hours) * time.Hour)
}

// WithOffset shifts bucket boundaries away from the epoch
func (t *TumblingWindowAssigner) WithOffset(offset time.Duration) *TumblingWindowAssigner {
	t.offset = offset % t.size
	return t
}

// Size returns the bucket width
func (t *TumblingWindowAssigner) Size() time.Duration {
	return t.size
}

// BucketID returns the index of the bucket containing ts, counted from the epoch.
// Division floors so that pre-epoch timestamps land in negative buckets.
func (t *TumblingWindowAssigner) BucketID(ts time.Time) int64 {
	n := ts.UnixNano() - int64(t.offset)
	size := int64(t.size)
	q := n / size
	if n%size != 0 && n < 0 {
		q--
	}
	return q
}

// Bounds returns the window of a bucket id
func (t *TumblingWindowAssigner) Bounds(id int64) Window {
	start := time.Unix(0, id*int64(t.size)+int64(t.offset)).UTC()
	return Window{Start: start, End: start.Add(t.size)}
}

// Assign returns the window containing ts
func (t *TumblingWindowAssigner) Assign(ts time.Time) Window {
	return t.Bounds(t.BucketID(ts))
}
