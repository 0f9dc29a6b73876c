package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/affect/internal/affect"
)

// ScoreSnapshot is a persisted EmotionScore with the decay it was computed under.
type ScoreSnapshot struct {
	ID        int64
	UserID    string
	Score     affect.EmotionScore
	Decay     affect.Decay
	CreatedAt time.Time
}

// FatigueSnapshot is a persisted FatigueIndex with its observation window.
type FatigueSnapshot struct {
	ID        int64
	UserID    string
	Window    affect.Window
	Index     affect.FatigueIndex
	CreatedAt time.Time
}

// SaveScore records a computed score. Snapshots are history; they are never
// updated, only superseded by newer ones.
func (db *DB) SaveScore(userID string, s affect.EmotionScore, d affect.Decay) (int64, error) {
	perCat, err := json.Marshal(s.PerCategory)
	if err != nil {
		return 0, fmt.Errorf("encode per-category scores: %w", err)
	}
	share, err := json.Marshal(s.Share)
	if err != nil {
		return 0, fmt.Errorf("encode category share: %w", err)
	}
	res, err := db.Exec(`
		INSERT INTO score_snapshots (user_id, as_of, overall, per_category, share, lambda, decay_unit_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, s.AsOf.UnixMilli(), s.Overall, string(perCat), string(share), d.Lambda, d.Per.Milliseconds(), time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("save score: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// RecentScores returns up to limit snapshots for userID, newest as_of first.
func (db *DB) RecentScores(userID string, limit int) ([]ScoreSnapshot, error) {
	rows, err := db.Query(`
		SELECT id, user_id, as_of, overall, per_category, share, lambda, decay_unit_ms, created_at
		FROM score_snapshots WHERE user_id = ?
		ORDER BY as_of DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent scores: %w", err)
	}
	defer rows.Close()

	var out []ScoreSnapshot
	for rows.Next() {
		var (
			s             ScoreSnapshot
			asOf, created int64
			perCat, share string
			decayUnitMs   int64
		)
		if err := rows.Scan(&s.ID, &s.UserID, &asOf, &s.Score.Overall, &perCat, &share, &s.Decay.Lambda, &decayUnitMs, &created); err != nil {
			return nil, fmt.Errorf("scan score snapshot: %w", err)
		}
		if err := json.Unmarshal([]byte(perCat), &s.Score.PerCategory); err != nil {
			return nil, fmt.Errorf("decode per-category scores: %w", err)
		}
		if err := json.Unmarshal([]byte(share), &s.Score.Share); err != nil {
			return nil, fmt.Errorf("decode category share: %w", err)
		}
		s.Score.AsOf = time.UnixMilli(asOf).UTC()
		s.Decay.Per = time.Duration(decayUnitMs) * time.Millisecond
		s.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveFatigue records a computed fatigue index.
func (db *DB) SaveFatigue(userID string, w affect.Window, fi affect.FatigueIndex) (int64, error) {
	res, err := db.Exec(`
		INSERT INTO fatigue_snapshots (user_id, window_start, as_of, density, gap, time_of_day, composite, event_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, userID, w.Start.UnixMilli(), fi.AsOf.UnixMilli(), fi.Density, fi.Gap, fi.TimeOfDay, fi.Composite, fi.EventCount, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("save fatigue: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// RecentFatigue returns up to limit fatigue snapshots for userID, newest first.
func (db *DB) RecentFatigue(userID string, limit int) ([]FatigueSnapshot, error) {
	rows, err := db.Query(`
		SELECT id, user_id, window_start, as_of, density, gap, time_of_day, composite, event_count, created_at
		FROM fatigue_snapshots WHERE user_id = ?
		ORDER BY as_of DESC, id DESC LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent fatigue: %w", err)
	}
	defer rows.Close()

	var out []FatigueSnapshot
	for rows.Next() {
		var (
			f                    FatigueSnapshot
			start, asOf, created int64
		)
		if err := rows.Scan(&f.ID, &f.UserID, &start, &asOf, &f.Index.Density, &f.Index.Gap,
			&f.Index.TimeOfDay, &f.Index.Composite, &f.Index.EventCount, &created); err != nil {
			return nil, fmt.Errorf("scan fatigue snapshot: %w", err)
		}
		f.Window = affect.Window{Start: time.UnixMilli(start).UTC(), End: time.UnixMilli(asOf).UTC()}
		f.Index.AsOf = f.Window.End
		f.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
