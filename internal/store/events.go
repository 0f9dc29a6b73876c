package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lazypower/affect/internal/affect"
)

// EmotionRecord is an emotion event as it enters the log. ExternalID is the
// platform's identifier (video or calendar event ID); when set, re-ingesting
// the same record for the same user and source is a no-op.
type EmotionRecord struct {
	Event      affect.EmotionEvent
	ExternalID string
}

// ActivityRecord is an activity event as it enters the log.
type ActivityRecord struct {
	Event      affect.ActivityEvent
	ExternalID string
}

// AppendEmotionEvents adds events to userID's emotion log in one transaction.
// Every record is validated first; one bad record rejects the whole batch.
// Returns the number of rows actually inserted (duplicates are skipped).
func (db *DB) AppendEmotionEvents(userID string, records []EmotionRecord) (int, error) {
	n, _, err := db.AppendEvents(userID, records, nil)
	return n, err
}

// AppendActivityEvents adds events to userID's activity log in one transaction.
func (db *DB) AppendActivityEvents(userID string, records []ActivityRecord) (int, error) {
	_, n, err := db.AppendEvents(userID, nil, records)
	return n, err
}

// AppendEvents adds emotion and activity records for userID in a single
// transaction: either every new row is written or none is. All records are
// validated before anything is inserted.
func (db *DB) AppendEvents(userID string, emotions []EmotionRecord, activities []ActivityRecord) (emo, act int, err error) {
	if userID == "" {
		return 0, 0, fmt.Errorf("append events: user id required")
	}
	for i, r := range emotions {
		if err := r.Event.Validate(); err != nil {
			return 0, 0, fmt.Errorf("append emotion events: record %d: %w", i, err)
		}
	}
	for i, r := range activities {
		if err := r.Event.Validate(); err != nil {
			return 0, 0, fmt.Errorf("append activity events: record %d: %w", i, err)
		}
	}
	if len(emotions) == 0 && len(activities) == 0 {
		return 0, 0, nil
	}

	now := time.Now().UnixMilli()
	err = db.inTx("append events", func(tx *sql.Tx) error {
		if len(emotions) > 0 {
			if emo, err = appendRows(tx, "emotion_events", `
				INSERT INTO emotion_events (event_id, user_id, external_id, ts, category, intensity, source, created_at)
				VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?)
				ON CONFLICT (user_id, source, external_id) DO NOTHING
			`, len(emotions), func(i int) []any {
				r := emotions[i]
				return []any{uuid.NewString(), userID, r.ExternalID,
					r.Event.Timestamp.UnixMilli(), string(r.Event.Category), r.Event.RawIntensity, string(r.Event.Source), now}
			}); err != nil {
				return err
			}
		}
		if len(activities) > 0 {
			if act, err = appendRows(tx, "activity_events", `
				INSERT INTO activity_events (event_id, user_id, external_id, ts, duration_minutes, category, created_at)
				VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?)
				ON CONFLICT (user_id, external_id) DO NOTHING
			`, len(activities), func(i int) []any {
				r := activities[i]
				return []any{uuid.NewString(), userID, r.ExternalID,
					r.Event.Timestamp.UnixMilli(), r.Event.DurationMinutes, string(r.Event.Category), now}
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return emo, act, nil
}

// EmotionEvents returns userID's emotion events with timestamps at or before
// until, oldest first, ties in insertion order. A zero until returns all.
func (db *DB) EmotionEvents(userID string, until time.Time) ([]affect.EmotionEvent, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if until.IsZero() {
		rows, err = db.Query(`
			SELECT ts, category, intensity, source FROM emotion_events
			WHERE user_id = ? ORDER BY ts, id
		`, userID)
	} else {
		rows, err = db.Query(`
			SELECT ts, category, intensity, source FROM emotion_events
			WHERE user_id = ? AND ts <= ? ORDER BY ts, id
		`, userID, until.UnixMilli())
	}
	if err != nil {
		return nil, fmt.Errorf("query emotion events: %w", err)
	}
	defer rows.Close()

	var events []affect.EmotionEvent
	for rows.Next() {
		var (
			ts       int64
			category string
			source   string
			e        affect.EmotionEvent
		)
		if err := rows.Scan(&ts, &category, &e.RawIntensity, &source); err != nil {
			return nil, fmt.Errorf("scan emotion event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Category = affect.Category(category)
		e.Source = affect.Source(source)
		events = append(events, e)
	}
	return events, rows.Err()
}

// ActivityEvents returns userID's activity events inside [from, to], oldest first.
func (db *DB) ActivityEvents(userID string, from, to time.Time) ([]affect.ActivityEvent, error) {
	rows, err := db.Query(`
		SELECT ts, duration_minutes, category FROM activity_events
		WHERE user_id = ? AND ts >= ? AND ts <= ? ORDER BY ts, id
	`, userID, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query activity events: %w", err)
	}
	defer rows.Close()

	var events []affect.ActivityEvent
	for rows.Next() {
		var (
			ts       int64
			category string
			e        affect.ActivityEvent
		)
		if err := rows.Scan(&ts, &e.DurationMinutes, &category); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		e.Category = affect.Category(category)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Users returns every user with at least one logged event.
func (db *DB) Users() ([]string, error) {
	rows, err := db.Query(`
		SELECT user_id FROM emotion_events
		UNION
		SELECT user_id FROM activity_events
		ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// EventCounts returns how many emotion and activity events userID has logged.
func (db *DB) EventCounts(userID string) (emotion, activity int, err error) {
	err = db.QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM emotion_events WHERE user_id = ?),
			(SELECT COUNT(*) FROM activity_events WHERE user_id = ?)
	`, userID, userID).Scan(&emotion, &activity)
	if err != nil {
		return 0, 0, fmt.Errorf("count events: %w", err)
	}
	return emotion, activity, nil
}
