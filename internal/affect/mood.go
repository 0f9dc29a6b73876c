package affect

// MoodState is a coarse label for an overall emotion score.
type MoodState string

const (
	VeryPositive     MoodState = "very_positive"
	Positive         MoodState = "positive"
	Neutral          MoodState = "neutral"
	SlightlyNegative MoodState = "slightly_negative"
	Negative         MoodState = "negative"
)

// Mood buckets an overall score. Boundaries belong to the lower label.
func Mood(overall float64) MoodState {
	switch {
	case overall > 0.3:
		return VeryPositive
	case overall > 0.1:
		return Positive
	case overall > -0.1:
		return Neutral
	case overall > -0.3:
		return SlightlyNegative
	default:
		return Negative
	}
}

// Stress is a coarse label for a fatigue composite.
type Stress string

const (
	StressLow    Stress = "low"
	StressMedium Stress = "medium"
	StressHigh   Stress = "high"
)

// StressLevel buckets a fatigue composite computed with the default weights.
func StressLevel(composite float64) Stress {
	switch {
	case composite > 2:
		return StressHigh
	case composite > 1:
		return StressMedium
	default:
		return StressLow
	}
}

// TopCategory returns the category with the highest score. Ties go to the
// earlier category in Categories order. ok is false when every category is 0.
func TopCategory(s EmotionScore) (top Category, ok bool) {
	best := 0.0
	for _, c := range categories {
		if v := s.PerCategory[c]; v > best {
			best, top, ok = v, c, true
		}
	}
	return top, ok
}

// TopInterest returns the category holding the largest share of decayed
// activity, whatever its sign. Ties go to the earlier category in Categories
// order. ok is false when the score carries no weight at all.
func TopInterest(s EmotionScore) (top Category, ok bool) {
	best := 0.0
	for _, c := range categories {
		if v := s.Share[c]; v > best {
			best, top, ok = v, c, true
		}
	}
	return top, ok
}

// StressImpact is how far a stress level pulls the overall score down before
// the mood is classified.
func StressImpact(s Stress) float64 {
	switch s {
	case StressHigh:
		return 0.5
	case StressMedium:
		return 0.3
	default:
		return 0.1
	}
}

// Direction describes the movement across a trend.
type Direction string

const (
	Rising  Direction = "rising"
	Falling Direction = "falling"
	Flat    Direction = "flat"
)

// flatThreshold is the smallest change in overall score reported as movement.
const flatThreshold = 0.05

// TrendSummary is the first-to-last movement across a trend.
type TrendSummary struct {
	Points    int
	First     float64
	Last      float64
	Change    float64
	Direction Direction
	Deltas    []float64 // point-to-point changes, len(points)-1 entries
}

// SummarizeTrend reports how the overall score moved across points.
func SummarizeTrend(points []TrendPoint) TrendSummary {
	sum := TrendSummary{Points: len(points), Direction: Flat}
	if len(points) == 0 {
		return sum
	}
	sum.First = points[0].Score.Overall
	sum.Last = points[len(points)-1].Score.Overall
	sum.Change = sum.Last - sum.First
	for i := 1; i < len(points); i++ {
		sum.Deltas = append(sum.Deltas, points[i].Score.Overall-points[i-1].Score.Overall)
	}
	switch {
	case sum.Change > flatThreshold:
		sum.Direction = Rising
	case sum.Change < -flatThreshold:
		sum.Direction = Falling
	}
	return sum
}
