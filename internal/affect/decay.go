package affect

import (
	"fmt"
	"math"
	"time"
)

// Weight returns exp(-λ·Δt) with Δt measured in units of d.Per.
// The result is 1 at zero elapsed time and strictly decreases as elapsed
// grows, until it underflows to 0 for very old events.
func Weight(d Decay, elapsed time.Duration) float64 {
	return math.Exp(-d.Lambda * elapsed.Seconds() / d.unit().Seconds())
}

// ComputeEmotionScore applies exponential decay to events and returns the
// weighted mean intensity at asOf, overall and per category.
//
// Events may arrive in any order and may share timestamps; they are summed in
// slice order, so identical inputs give bit-identical results. An event after
// asOf is an error, never silently dropped. With no events, or when every
// weight has underflowed to zero, the score is 0.
func ComputeEmotionScore(events []EmotionEvent, d Decay, asOf time.Time) (EmotionScore, error) {
	const op = "emotion score"
	if err := d.Validate(); err != nil {
		return EmotionScore{}, err
	}
	for i, e := range events {
		if err := e.Validate(); err != nil {
			return EmotionScore{}, eventError(op, i, err.Error())
		}
		if e.Timestamp.After(asOf) {
			return EmotionScore{}, eventError(op, i, fmt.Sprintf(
				"timestamp %s is after evaluation time %s",
				e.Timestamp.Format(time.RFC3339Nano), asOf.Format(time.RFC3339Nano)))
		}
	}
	return score(events, d, asOf), nil
}

// score assumes events are valid and none is after asOf.
func score(events []EmotionEvent, d Decay, asOf time.Time) EmotionScore {
	var (
		num, den           [len(categories)]float64
		totalNum, totalDen float64
	)
	for _, e := range events {
		w := Weight(d, asOf.Sub(e.Timestamp))
		v := e.RawIntensity * w
		totalNum += v
		totalDen += w
		i := e.Category.index()
		num[i] += v
		den[i] += w
	}

	out := EmotionScore{
		AsOf:        asOf,
		Overall:     ratio(totalNum, totalDen),
		PerCategory: make(map[Category]float64, len(categories)),
		Share:       make(map[Category]float64, len(categories)),
	}
	for i, c := range categories {
		out.PerCategory[c] = ratio(num[i], den[i])
		out.Share[c] = ratio(den[i], totalDen)
	}
	return out
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
