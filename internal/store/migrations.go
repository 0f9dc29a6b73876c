package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "emotion_events: append-only emotion log",
		SQL: `
CREATE TABLE emotion_events (
    id           INTEGER PRIMARY KEY,
    event_id     TEXT NOT NULL UNIQUE,
    user_id      TEXT NOT NULL,
    external_id  TEXT,
    ts           INTEGER NOT NULL,
    category     TEXT NOT NULL CHECK (category IN ('entertainment', 'lifestyle', 'education', 'social', 'other')),
    intensity    REAL NOT NULL CHECK (intensity BETWEEN -1.0 AND 1.0),
    source       TEXT NOT NULL CHECK (source IN ('youtube_like', 'youtube_subscription', 'calendar_event')),
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_emotion_user_ts ON emotion_events(user_id, ts, id);
CREATE UNIQUE INDEX idx_emotion_external ON emotion_events(user_id, source, external_id);
`,
	},
	{
		Version:     2,
		Description: "activity_events: append-only activity log",
		SQL: `
CREATE TABLE activity_events (
    id               INTEGER PRIMARY KEY,
    event_id         TEXT NOT NULL UNIQUE,
    user_id          TEXT NOT NULL,
    external_id      TEXT,
    ts               INTEGER NOT NULL,
    duration_minutes REAL NOT NULL CHECK (duration_minutes >= 0),
    category         TEXT NOT NULL CHECK (category IN ('entertainment', 'lifestyle', 'education', 'social', 'other')),
    created_at       INTEGER NOT NULL
);

CREATE INDEX idx_activity_user_ts ON activity_events(user_id, ts, id);
CREATE UNIQUE INDEX idx_activity_external ON activity_events(user_id, external_id);
`,
	},
	{
		Version:     3,
		Description: "append-only guards on event logs",
		SQL: `
CREATE TRIGGER emotion_events_no_update BEFORE UPDATE ON emotion_events
BEGIN SELECT RAISE(ABORT, 'emotion_events is append-only'); END;

CREATE TRIGGER emotion_events_no_delete BEFORE DELETE ON emotion_events
BEGIN SELECT RAISE(ABORT, 'emotion_events is append-only'); END;

CREATE TRIGGER activity_events_no_update BEFORE UPDATE ON activity_events
BEGIN SELECT RAISE(ABORT, 'activity_events is append-only'); END;

CREATE TRIGGER activity_events_no_delete BEFORE DELETE ON activity_events
BEGIN SELECT RAISE(ABORT, 'activity_events is append-only'); END;
`,
	},
	{
		Version:     4,
		Description: "score_snapshots and fatigue_snapshots: emitted results",
		SQL: `
CREATE TABLE score_snapshots (
    id            INTEGER PRIMARY KEY,
    user_id       TEXT NOT NULL,
    as_of         INTEGER NOT NULL,
    overall       REAL NOT NULL,
    per_category  TEXT NOT NULL,
    lambda        REAL NOT NULL,
    decay_unit_ms INTEGER NOT NULL,
    created_at    INTEGER NOT NULL
);

CREATE INDEX idx_score_user_asof ON score_snapshots(user_id, as_of DESC);

CREATE TABLE fatigue_snapshots (
    id           INTEGER PRIMARY KEY,
    user_id      TEXT NOT NULL,
    window_start INTEGER NOT NULL,
    as_of        INTEGER NOT NULL,
    density      REAL NOT NULL,
    gap          REAL NOT NULL,
    time_of_day  REAL NOT NULL,
    composite    REAL NOT NULL,
    event_count  INTEGER NOT NULL,
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_fatigue_user_asof ON fatigue_snapshots(user_id, as_of DESC);
`,
	},
	{
		Version:     5,
		Description: "score_snapshots.share: per-category decay weight share",
		SQL: `
ALTER TABLE score_snapshots ADD COLUMN share TEXT NOT NULL DEFAULT '{}';
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
