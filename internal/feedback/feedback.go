// Package feedback turns computed scores into a short personalized report.
package feedback

import (
	"fmt"

	"github.com/lazypower/affect/internal/affect"
)

// Report is the user-facing summary of one evaluation.
type Report struct {
	Mood            affect.MoodState `json:"mood"`
	Stress          affect.Stress    `json:"stress"`
	TopInterest     affect.Category  `json:"top_interest,omitempty"`
	Trend           affect.Direction `json:"trend"`
	Overall         float64          `json:"overall"`
	Adjusted        float64          `json:"adjusted"` // Overall less the stress impact; Mood is read from this
	Fatigue         float64          `json:"fatigue"`
	Recommendations []string         `json:"recommendations"`
	Summary         string           `json:"summary"`
}

// Build assembles a report. The inputs are never modified.
//
// Mood is classified on the overall score pulled down by the stress impact of
// the fatigue level. A score with no decay weight behind it (no emotion
// history) is left unadjusted and reads as neutral.
func Build(score affect.EmotionScore, fatigue affect.FatigueIndex, trend affect.TrendSummary) Report {
	r := Report{
		Stress:   affect.StressLevel(fatigue.Composite),
		Trend:    trend.Direction,
		Overall:  score.Overall,
		Adjusted: score.Overall,
		Fatigue:  fatigue.Composite,
	}
	if r.Trend == "" {
		r.Trend = affect.Flat
	}
	if top, ok := affect.TopInterest(score); ok {
		r.TopInterest = top
		r.Adjusted -= affect.StressImpact(r.Stress)
	}
	r.Mood = affect.Mood(r.Adjusted)
	r.Recommendations = recommend(r, fatigue)
	r.Summary = fmt.Sprintf("mood %s (%.2f adjusted from %.2f), stress %s (fatigue %.2f), trend %s",
		r.Mood, r.Adjusted, r.Overall, r.Stress, r.Fatigue, r.Trend)
	return r
}

func recommend(r Report, fatigue affect.FatigueIndex) []string {
	recs := []string{}

	if r.Stress == affect.StressHigh {
		recs = append(recs, "Your schedule looks heavy. Consider moving or dropping something to make room for rest.")
	}
	if fatigue.TimeOfDay >= 0.5 {
		recs = append(recs, "A lot of your activity happens late at night. An earlier wind-down may help.")
	}

	switch r.Mood {
	case affect.Negative, affect.SlightlyNegative:
		switch r.TopInterest {
		case affect.Entertainment:
			recs = append(recs, "A favourite film or some music might help lift your mood.")
		case affect.Lifestyle:
			recs = append(recs, "Some exercise or time at a wellness spot could help release stress.")
		case affect.Social:
			recs = append(recs, "Catching up with a friend could be a good reset.")
		default:
			recs = append(recs, "Take a short break doing something you enjoy.")
		}
	case affect.VeryPositive:
		recs = append(recs, "You're in good shape. It may be a good time to try something new.")
	}

	if r.Trend == affect.Falling {
		recs = append(recs, "Your mood has been trending down recently. Keep an eye on how you feel this week.")
	}
	return recs
}
