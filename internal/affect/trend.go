package affect

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// TrendOptions configures a Trend.
type TrendOptions struct {
	Bucket time.Duration
	Decay  Decay

	// Start and End bound the bucket grid. A zero Start snaps the earliest
	// event down to a Bucket boundary; a zero End uses the latest event.
	Start time.Time
	End   time.Time

	// RequireHistory turns an empty event set into ErrEmptyHistory instead
	// of a run of zero-valued points.
	RequireHistory bool
}

// Trend is a finite, restartable sequence of contiguous buckets. Each point
// is computed on demand at its bucket end from every event visible at that
// instant, not only the events inside the bucket.
type Trend struct {
	events []EmotionEvent // sorted by timestamp, ties in input order
	decay  Decay
	bucket time.Duration
	start  time.Time
	n      int
}

// NewTrend validates its inputs up front so that iterating never fails.
func NewTrend(events []EmotionEvent, opts TrendOptions) (*Trend, error) {
	const op = "trend"
	if opts.Bucket <= 0 {
		return nil, configError(op, fmt.Sprintf("bucket must be > 0, got %s", opts.Bucket))
	}
	if err := opts.Decay.Validate(); err != nil {
		return nil, err
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return nil, eventError(op, i, err.Error())
		}
	}
	if opts.RequireHistory && len(events) == 0 {
		return nil, &Error{Kind: ErrEmptyHistory, Op: op, Index: -1, Message: "no events to report on"}
	}

	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b EmotionEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	t := &Trend{events: sorted, decay: opts.Decay, bucket: opts.Bucket}

	start, end := opts.Start, opts.End
	if start.IsZero() {
		if len(sorted) == 0 {
			return t, nil
		}
		start = sorted[0].Timestamp.Truncate(opts.Bucket)
	}
	if end.IsZero() {
		if len(sorted) == 0 {
			end = start
		} else {
			end = sorted[len(sorted)-1].Timestamp
		}
	}
	if end.Before(start) {
		return nil, windowError(op, "end must not be before start")
	}

	t.start = start
	t.n = int(ceilDiv(end.Sub(start), opts.Bucket))
	if t.n == 0 {
		t.n = 1
	}
	return t, nil
}

// Len returns the number of buckets.
func (t *Trend) Len() int { return t.n }

// Bucket returns the bucket width.
func (t *Trend) Bucket() time.Duration { return t.bucket }

// At computes the i-th point. It panics if i is out of range.
func (t *Trend) At(i int) TrendPoint {
	if i < 0 || i >= t.n {
		panic(fmt.Sprintf("affect: trend index %d out of range [0, %d)", i, t.n))
	}
	ws := t.start.Add(time.Duration(i) * t.bucket)
	we := ws.Add(t.bucket)
	visible := sort.Search(len(t.events), func(j int) bool {
		return t.events[j].Timestamp.After(we)
	})
	return TrendPoint{
		WindowStart: ws,
		WindowEnd:   we,
		Score:       score(t.events[:visible], t.decay, we),
	}
}

// Points yields every bucket in order. Each call starts over.
func (t *Trend) Points() iter.Seq[TrendPoint] {
	return t.span(0, t.n)
}

// Window yields only the buckets overlapping [from, to).
func (t *Trend) Window(from, to time.Time) iter.Seq[TrendPoint] {
	if t.n == 0 || !from.Before(to) {
		return t.span(0, 0)
	}
	lo := 0
	if from.After(t.start) {
		lo = int(from.Sub(t.start) / t.bucket)
	}
	hi := 0
	if to.After(t.start) {
		hi = int(ceilDiv(to.Sub(t.start), t.bucket))
	}
	return t.span(min(lo, t.n), min(hi, t.n))
}

func (t *Trend) span(lo, hi int) iter.Seq[TrendPoint] {
	return func(yield func(TrendPoint) bool) {
		for i := lo; i < hi; i++ {
			if !yield(t.At(i)) {
				return
			}
		}
	}
}

// Collect computes every bucket, up to workers at a time. Buckets share only
// the immutable event history, so order of evaluation does not matter.
// A workers value <= 0 means no limit.
func (t *Trend) Collect(ctx context.Context, workers int) ([]TrendPoint, error) {
	out := make([]TrendPoint, t.n)
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i := range t.n {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = t.At(i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ComputeTrend buckets events from the earliest to the latest one.
func ComputeTrend(events []EmotionEvent, bucket time.Duration, d Decay) ([]TrendPoint, error) {
	t, err := NewTrend(events, TrendOptions{Bucket: bucket, Decay: d})
	if err != nil {
		return nil, err
	}
	return slices.Collect(t.Points()), nil
}

func ceilDiv(a, b time.Duration) time.Duration {
	q := a / b
	if a%b != 0 {
		q++
	}
	return q
}
