package affect

import (
	"math"
	"slices"
	"time"
)

// lateNight weights each hour of the day by how much activity in it
// contributes to fatigue. 00:00–05:00 counts fully, the shoulders half.
var lateNight = [24]float64{
	1, 1, 1, 1, 1, 0.5, // 00–05
	0, 0, 0, 0, 0, 0, // 06–11
	0, 0, 0, 0, 0, 0, // 12–17
	0, 0, 0, 0, 0.5, 0.5, // 18–23
}

// lateNightBaseline is the weighted mass of a perfectly even distribution.
var lateNightBaseline = func() float64 {
	var sum float64
	for _, w := range lateNight {
		sum += w
	}
	return sum / 24
}()

type fatigueConfig struct {
	loc *time.Location
}

// FatigueOption adjusts how ComputeFatigueIndex reads timestamps.
type FatigueOption func(*fatigueConfig)

// WithLocation buckets events by their hour of day in loc. Without it each
// timestamp's own location is used.
func WithLocation(loc *time.Location) FatigueOption {
	return func(c *fatigueConfig) { c.loc = loc }
}

// ComputeFatigueIndex scores activity inside w.
//
//	density   = events in window / window length in days
//	gap       = 1 / (1 + mean hours between consecutive event starts), 0 with < 2 events
//	timeOfDay = late-night skew of the hour-of-day histogram versus an even spread, in [0, 1]
//	composite = α·density + β·gap + γ·timeOfDay
//
// Events outside the window are ignored. Weights are used as given and not
// normalized, so composite is unbounded above just like density.
func ComputeFatigueIndex(events []ActivityEvent, w Window, weights Weights, opts ...FatigueOption) (FatigueIndex, error) {
	const op = "fatigue index"
	if !w.Start.Before(w.End) {
		return FatigueIndex{}, windowError(op, "start must be before end")
	}
	if err := weights.Validate(); err != nil {
		return FatigueIndex{}, err
	}
	var cfg fatigueConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	in := make([]ActivityEvent, 0, len(events))
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return FatigueIndex{}, eventError(op, i, err.Error())
		}
		if w.Contains(e.Timestamp) {
			in = append(in, e)
		}
	}
	slices.SortStableFunc(in, func(a, b ActivityEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	days := w.Days()
	var activeMinutes float64
	for _, e := range in {
		activeMinutes += e.DurationMinutes
	}

	fi := FatigueIndex{
		AsOf:              w.End,
		Density:           float64(len(in)) / days,
		Gap:               gapScore(in),
		TimeOfDay:         timeOfDayScore(in, cfg.loc),
		EventCount:        len(in),
		ActiveHoursPerDay: activeMinutes / 60 / days,
	}
	fi.Composite = weights.Alpha*fi.Density + weights.Beta*fi.Gap + weights.Gamma*fi.TimeOfDay
	return fi, nil
}

// gapScore expects events sorted by timestamp.
func gapScore(events []ActivityEvent) float64 {
	n := len(events)
	if n < 2 {
		return 0
	}
	// Consecutive gaps telescope to last - first.
	meanGapHours := events[n-1].Timestamp.Sub(events[0].Timestamp).Hours() / float64(n-1)
	return 1 / (1 + meanGapHours)
}

func timeOfDayScore(events []ActivityEvent, loc *time.Location) float64 {
	if len(events) == 0 {
		return 0
	}
	var hist [24]int
	for _, e := range events {
		ts := e.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		hist[ts.Hour()]++
	}

	var observed float64
	total := float64(len(events))
	for h, count := range hist {
		observed += float64(count) / total * lateNight[h]
	}
	skew := (observed - lateNightBaseline) / (1 - lateNightBaseline)
	return math.Max(0, math.Min(1, skew))
}
