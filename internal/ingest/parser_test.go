package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/store"
)

const sample = `{"kind":"emotion","timestamp":"2026-02-02T19:00:00Z","category":"Entertainment","intensity":0.8,"source":"youtube_like","external_id":"vid-1"}
{"kind":"activity","timestamp":"2026-02-02T09:00:00Z","category":"education","duration_minutes":90}

# comment lines are ignored
{"kind":"activity","user_id":"bob","timestamp":"2026-02-02T10:00:00Z","end":"2026-02-02T10:45:00Z","category":"social","external_id":"cal-9"}
{"kind":"emotion","timestamp":"2026-02-02T20:00:00Z","category":"social","intensity":1.5,"source":"youtube_like"}
not json at all
{"kind":"emotion","timestamp":"2026-02-02T20:00:00Z","category":"sports","intensity":0.1,"source":"youtube_like"}
{"kind":"mood","timestamp":"2026-02-02T20:00:00Z","category":"social"}`

func TestParseLines(t *testing.T) {
	res, err := ParseLines(sample, "alice")
	require.NoError(t, err)

	assert.Equal(t, 7, res.Lines)
	assert.Equal(t, 3, res.Records())
	assert.Equal(t, []string{"alice", "bob"}, res.Users())

	alice := res.Batches["alice"]
	require.Len(t, alice.Emotions, 1)
	require.Len(t, alice.Activities, 1)

	e := alice.Emotions[0]
	assert.Equal(t, affect.Entertainment, e.Event.Category)
	assert.Equal(t, 0.8, e.Event.RawIntensity)
	assert.Equal(t, affect.YouTubeLike, e.Event.Source)
	assert.Equal(t, "vid-1", e.ExternalID)
	assert.True(t, e.Event.Timestamp.Equal(time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC)))

	assert.Equal(t, 90.0, alice.Activities[0].Event.DurationMinutes)

	bob := res.Batches["bob"]
	require.Len(t, bob.Activities, 1)
	assert.Equal(t, 45.0, bob.Activities[0].Event.DurationMinutes)
	assert.Equal(t, "cal-9", bob.Activities[0].ExternalID)

	require.Len(t, res.Skipped, 4)
	lines := make([]int, len(res.Skipped))
	for i, s := range res.Skipped {
		lines[i] = s.Line
	}
	assert.Equal(t, []int{6, 7, 8, 9}, lines)
	assert.Contains(t, res.Skipped[0].Error(), "intensity failed lte=1")
}

func TestParseLinesNoUser(t *testing.T) {
	res, err := ParseLines(`{"kind":"emotion","timestamp":"2026-02-02T19:00:00Z","category":"social","intensity":0.1,"source":"calendar_event"}`, "")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Records())
	require.Len(t, res.Skipped, 1)
	assert.Contains(t, res.Skipped[0].Error(), "no user_id")
}

func TestRecordValidate(t *testing.T) {
	ts := time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC)
	before := ts.Add(-time.Hour)
	f := func(v float64) *float64 { return &v }

	tests := []struct {
		name string
		rec  Record
		ok   bool
	}{
		{"emotion ok", Record{Kind: KindEmotion, Timestamp: ts, Category: "social", Intensity: f(-1), Source: "youtube_like"}, true},
		{"emotion missing intensity", Record{Kind: KindEmotion, Timestamp: ts, Category: "social", Source: "youtube_like"}, false},
		{"emotion missing source", Record{Kind: KindEmotion, Timestamp: ts, Category: "social", Intensity: f(0)}, false},
		{"missing timestamp", Record{Kind: KindEmotion, Category: "social", Intensity: f(0), Source: "youtube_like"}, false},
		{"activity ok", Record{Kind: KindActivity, Timestamp: ts, Category: "other", DurationMinutes: f(0)}, true},
		{"activity negative duration", Record{Kind: KindActivity, Timestamp: ts, Category: "other", DurationMinutes: f(-5)}, false},
		{"activity no duration", Record{Kind: KindActivity, Timestamp: ts, Category: "other"}, false},
		{"activity end before start", Record{Kind: KindActivity, Timestamp: ts, Category: "other", End: &before}, false},
		{"unknown kind", Record{Kind: "mood", Timestamp: ts, Category: "other"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestParseFileAndAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	res, err := ParseFile(path, "alice")
	require.NoError(t, err)

	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	emo, act, err := res.Batches["alice"].Append(db, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, emo)
	assert.Equal(t, 1, act)

	// Re-importing the same file only adds records without an external id.
	emo, act, err = res.Batches["alice"].Append(db, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, emo)
	assert.Equal(t, 1, act)

	_, err = ParseFile(filepath.Join(t.TempDir(), "missing.jsonl"), "alice")
	assert.Error(t, err)
}

func TestBatchAppendAllOrNothing(t *testing.T) {
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ts := time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC)
	b := &Batch{
		Emotions: []store.EmotionRecord{{Event: affect.EmotionEvent{
			Timestamp: ts, Category: affect.Social, RawIntensity: 0.3, Source: affect.CalendarEvent,
		}}},
		Activities: []store.ActivityRecord{{Event: affect.ActivityEvent{
			Timestamp: ts, Category: affect.Other, DurationMinutes: -5,
		}}},
	}
	_, _, err = b.Append(db, "alice")
	require.Error(t, err)

	emo, act, err := db.EventCounts("alice")
	require.NoError(t, err)
	assert.Zero(t, emo, "emotions must not be committed when the activities fail")
	assert.Zero(t, act)
}

func TestReadRaw(t *testing.T) {
	raw, err := ReadRaw(strings.NewReader(sample), "alice")
	require.NoError(t, err)

	assert.Equal(t, 7, raw.Lines)
	assert.Len(t, raw.Skipped, 4)
	assert.Equal(t, []string{"alice", "bob"}, raw.Users())
	require.Len(t, raw.Records["alice"], 2)
	assert.Equal(t, "alice", raw.Records["alice"][0].UserID)
	assert.Equal(t, "Entertainment", raw.Records["alice"][0].Category, "raw records are forwarded unconverted")
}
