// Package affect turns normalized activity into emotion and fatigue scores.
//
// Everything here is a pure function over immutable inputs: no I/O, no
// package state, no hidden clocks. The same inputs always produce the same
// output, so callers may evaluate independent requests concurrently.
package affect

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Category is the interest taxonomy events are grouped by.
type Category string

const (
	Entertainment Category = "entertainment"
	Lifestyle     Category = "lifestyle"
	Education     Category = "education"
	Social        Category = "social"
	Other         Category = "other"
)

var categories = [...]Category{Entertainment, Lifestyle, Education, Social, Other}

// Categories returns every category in a fixed order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories[:])
	return out
}

func (c Category) index() int {
	for i, known := range categories {
		if c == known {
			return i
		}
	}
	return -1
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool { return c.index() >= 0 }

// ParseCategory parses a category name case-insensitively.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// Source identifies the platform signal an emotion event came from.
type Source string

const (
	YouTubeLike         Source = "youtube_like"
	YouTubeSubscription Source = "youtube_subscription"
	CalendarEvent       Source = "calendar_event"
)

// Valid reports whether s is a known source.
func (s Source) Valid() bool {
	switch s {
	case YouTubeLike, YouTubeSubscription, CalendarEvent:
		return true
	}
	return false
}

// ParseSource parses a source name case-insensitively.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", fmt.Errorf("unknown source %q", s)
	}
	return src, nil
}

// EmotionEvent is a single discrete emotional signal.
type EmotionEvent struct {
	Timestamp    time.Time
	Category     Category
	RawIntensity float64 // [-1, 1]
	Source       Source
}

// Validate checks the event's own fields. It does not look at evaluation time.
func (e EmotionEvent) Validate() error {
	if math.IsNaN(e.RawIntensity) || e.RawIntensity < -1 || e.RawIntensity > 1 {
		return fmt.Errorf("raw intensity %v outside [-1, 1]", e.RawIntensity)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("unknown category %q", e.Category)
	}
	if !e.Source.Valid() {
		return fmt.Errorf("unknown source %q", e.Source)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	return nil
}

// ActivityEvent is a block of scheduled or observed activity.
type ActivityEvent struct {
	Timestamp       time.Time
	DurationMinutes float64
	Category        Category
}

// Validate checks the event's own fields.
func (e ActivityEvent) Validate() error {
	if math.IsNaN(e.DurationMinutes) || math.IsInf(e.DurationMinutes, 0) || e.DurationMinutes < 0 {
		return fmt.Errorf("duration %v must be a finite value >= 0", e.DurationMinutes)
	}
	if !e.Category.Valid() {
		return fmt.Errorf("unknown category %q", e.Category)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	return nil
}

// EmotionScore is the decayed emotional state at AsOf.
//
// Share is each category's fraction of the total decay weight, i.e. how much
// of the recent activity it accounts for regardless of sign. It sums to 1, or
// is all 0 when no event carries weight.
type EmotionScore struct {
	AsOf        time.Time
	Overall     float64
	PerCategory map[Category]float64
	Share       map[Category]float64
}

// FatigueIndex holds the fatigue composite and the sub-scores it was built from.
type FatigueIndex struct {
	AsOf      time.Time
	Density   float64 // events per day, >= 0
	Gap       float64 // (0, 1], 0 with fewer than two events
	TimeOfDay float64 // [0, 1]
	Composite float64

	// Explanatory only; not part of Composite.
	EventCount        int
	ActiveHoursPerDay float64
}

// TrendPoint is the score evaluated at the end of one bucket.
type TrendPoint struct {
	WindowStart time.Time
	WindowEnd   time.Time
	Score       EmotionScore
}

// Window is an observation interval. Both ends are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// Days returns the window length in days.
func (w Window) Days() float64 {
	return w.End.Sub(w.Start).Hours() / 24
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Decay configures exponential time decay. Lambda is expressed per Per;
// a zero Per means per day.
type Decay struct {
	Lambda float64
	Per    time.Duration
}

// Daily returns a per-day decay rate.
func Daily(lambda float64) Decay {
	return Decay{Lambda: lambda, Per: 24 * time.Hour}
}

func (d Decay) unit() time.Duration {
	if d.Per == 0 {
		return 24 * time.Hour
	}
	return d.Per
}

// Validate rejects non-positive or non-finite rates and negative units.
func (d Decay) Validate() error {
	if math.IsNaN(d.Lambda) || math.IsInf(d.Lambda, 0) || d.Lambda <= 0 {
		return configError("decay", fmt.Sprintf("lambda must be > 0, got %v", d.Lambda))
	}
	if d.Per < 0 {
		return configError("decay", fmt.Sprintf("decay unit must not be negative, got %s", d.Per))
	}
	return nil
}

// Weights are the fatigue composite coefficients. They are applied as given;
// they need not sum to 1.
type Weights struct {
	Alpha float64 // density
	Beta  float64 // gap
	Gamma float64 // time of day
}

// DefaultWeights returns density 0.5, gap 0.3, time of day 0.2.
func DefaultWeights() Weights {
	return Weights{Alpha: 0.5, Beta: 0.3, Gamma: 0.2}
}

// Validate rejects negative or non-finite weights.
func (w Weights) Validate() error {
	for _, v := range []struct {
		name string
		val  float64
	}{{"alpha", w.Alpha}, {"beta", w.Beta}, {"gamma", w.Gamma}} {
		if math.IsNaN(v.val) || math.IsInf(v.val, 0) || v.val < 0 {
			return configError("weights", fmt.Sprintf("%s must be a finite value >= 0, got %v", v.name, v.val))
		}
	}
	return nil
}
