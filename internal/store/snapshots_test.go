package store

import (
	"testing"
	"time"

	"github.com/lazypower/affect/internal/affect"
)

func TestSaveAndListScores(t *testing.T) {
	db := testDB(t)
	d := affect.Daily(0.1)

	for i := range 3 {
		s := affect.EmotionScore{
			AsOf:    base.Add(time.Duration(i) * time.Hour),
			Overall: float64(i) / 10,
			PerCategory: map[affect.Category]float64{
				affect.Entertainment: float64(i) / 10,
				affect.Social:        0,
			},
			Share: map[affect.Category]float64{
				affect.Entertainment: 0.75,
				affect.Social:        0.25,
			},
		}
		if _, err := db.SaveScore("u1", s, d); err != nil {
			t.Fatalf("SaveScore %d: %v", i, err)
		}
	}

	snaps, err := db.RecentScores("u1", 2)
	if err != nil {
		t.Fatalf("RecentScores: %v", err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	latest := snaps[0]
	if !latest.Score.AsOf.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("latest AsOf = %v", latest.Score.AsOf)
	}
	if latest.Score.Overall != 0.2 {
		t.Errorf("latest Overall = %v, want 0.2", latest.Score.Overall)
	}
	if latest.Score.PerCategory[affect.Entertainment] != 0.2 {
		t.Errorf("latest Entertainment = %v, want 0.2", latest.Score.PerCategory[affect.Entertainment])
	}
	if latest.Score.Share[affect.Entertainment] != 0.75 {
		t.Errorf("latest Entertainment share = %v, want 0.75", latest.Score.Share[affect.Entertainment])
	}
	if latest.Decay != d {
		t.Errorf("Decay = %+v, want %+v", latest.Decay, d)
	}
}

func TestSaveAndListFatigue(t *testing.T) {
	db := testDB(t)
	w := affect.Window{Start: base.Add(-7 * 24 * time.Hour), End: base}
	fi := affect.FatigueIndex{AsOf: base, Density: 2, Gap: 0.25, TimeOfDay: 0.1, Composite: 1.095, EventCount: 14}

	if _, err := db.SaveFatigue("u1", w, fi); err != nil {
		t.Fatalf("SaveFatigue: %v", err)
	}

	snaps, err := db.RecentFatigue("u1", 10)
	if err != nil {
		t.Fatalf("RecentFatigue: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(snaps))
	}
	got := snaps[0]
	if !got.Window.Start.Equal(w.Start) || !got.Window.End.Equal(w.End) {
		t.Errorf("Window = %+v, want %+v", got.Window, w)
	}
	if got.Index.Composite != fi.Composite || got.Index.EventCount != 14 || got.Index.Gap != 0.25 {
		t.Errorf("Index = %+v, want %+v", got.Index, fi)
	}
}
