// Package api defines the JSON bodies exchanged between the affect server
// and its clients.
package api

import (
	"time"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/ingest"
	"github.com/lazypower/affect/internal/store"
)

// Health is the body of GET /api/health.
type Health struct {
	Status  string  `json:"status"`
	Version string  `json:"version"`
	Uptime  float64 `json:"uptime"`
	DB      bool    `json:"db"`
	DBPath  string  `json:"db_path"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// EventsRequest is the body of POST /api/users/{userID}/events.
type EventsRequest struct {
	Events []ingest.Record `json:"events"`
}

// EventsResponse reports how many posted events were new.
type EventsResponse struct {
	Received        int `json:"received"`
	EmotionsAdded   int `json:"emotions_added"`
	ActivitiesAdded int `json:"activities_added"`
}

type Score struct {
	UserID      string                      `json:"user_id"`
	AsOf        time.Time                   `json:"as_of"`
	Overall     float64                     `json:"overall"`
	PerCategory map[affect.Category]float64 `json:"per_category"`
	Share       map[affect.Category]float64 `json:"share,omitempty"`
	Mood        affect.MoodState            `json:"mood"`
	TopCategory affect.Category             `json:"top_category,omitempty"`
	TopInterest affect.Category             `json:"top_interest,omitempty"`
}

func NewScore(userID string, s affect.EmotionScore) Score {
	out := Score{
		UserID:      userID,
		AsOf:        s.AsOf,
		Overall:     s.Overall,
		PerCategory: s.PerCategory,
		Share:       s.Share,
		Mood:        affect.Mood(s.Overall),
	}
	if top, ok := affect.TopCategory(s); ok {
		out.TopCategory = top
	}
	if top, ok := affect.TopInterest(s); ok {
		out.TopInterest = top
	}
	return out
}

type Fatigue struct {
	UserID            string        `json:"user_id"`
	WindowStart       time.Time     `json:"window_start"`
	WindowEnd         time.Time     `json:"window_end"`
	Density           float64       `json:"density"`
	Gap               float64       `json:"gap"`
	TimeOfDay         float64       `json:"time_of_day"`
	Composite         float64       `json:"composite"`
	Stress            affect.Stress `json:"stress"`
	EventCount        int           `json:"event_count"`
	ActiveHoursPerDay float64       `json:"active_hours_per_day"`
}

func NewFatigue(userID string, w affect.Window, fi affect.FatigueIndex) Fatigue {
	return Fatigue{
		UserID:            userID,
		WindowStart:       w.Start,
		WindowEnd:         w.End,
		Density:           fi.Density,
		Gap:               fi.Gap,
		TimeOfDay:         fi.TimeOfDay,
		Composite:         fi.Composite,
		Stress:            affect.StressLevel(fi.Composite),
		EventCount:        fi.EventCount,
		ActiveHoursPerDay: fi.ActiveHoursPerDay,
	}
}

type TrendPoint struct {
	WindowStart time.Time                   `json:"window_start"`
	WindowEnd   time.Time                   `json:"window_end"`
	Overall     float64                     `json:"overall"`
	PerCategory map[affect.Category]float64 `json:"per_category"`
}

type Trend struct {
	UserID    string           `json:"user_id"`
	Bucket    string           `json:"bucket"`
	Points    []TrendPoint     `json:"points"`
	Direction affect.Direction `json:"direction"`
	Change    float64          `json:"change"`
}

func NewTrend(userID string, bucket time.Duration, points []affect.TrendPoint) Trend {
	sum := affect.SummarizeTrend(points)
	out := Trend{
		UserID:    userID,
		Bucket:    bucket.String(),
		Points:    make([]TrendPoint, len(points)),
		Direction: sum.Direction,
		Change:    sum.Change,
	}
	for i, p := range points {
		out.Points[i] = TrendPoint{
			WindowStart: p.WindowStart,
			WindowEnd:   p.WindowEnd,
			Overall:     p.Score.Overall,
			PerCategory: p.Score.PerCategory,
		}
	}
	return out
}

// History lists persisted snapshots, newest first.
type History struct {
	UserID  string    `json:"user_id"`
	Scores  []Score   `json:"scores"`
	Fatigue []Fatigue `json:"fatigue"`
}

func NewHistory(userID string, scores []store.ScoreSnapshot, fatigue []store.FatigueSnapshot) History {
	out := History{
		UserID:  userID,
		Scores:  make([]Score, len(scores)),
		Fatigue: make([]Fatigue, len(fatigue)),
	}
	for i, s := range scores {
		out.Scores[i] = NewScore(userID, s.Score)
	}
	for i, f := range fatigue {
		out.Fatigue[i] = NewFatigue(userID, f.Window, f.Index)
	}
	return out
}
