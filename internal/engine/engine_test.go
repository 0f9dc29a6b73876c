package engine

import (
	"context"
	"math"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/config"
	"github.com/lazypower/affect/internal/ingest"
	"github.com/lazypower/affect/internal/metrics"
	"github.com/lazypower/affect/internal/store"
)

var t0 = time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	e := New(db, config.Default().Analysis, nil, metrics.New())
	e.Now = func() time.Time { return t0 }
	t.Cleanup(e.Stop)
	return e
}

func emotionBatch(records ...store.EmotionRecord) *ingest.Batch {
	return &ingest.Batch{Emotions: records}
}

func liked(at time.Time, cat affect.Category, intensity float64, ext string) store.EmotionRecord {
	return store.EmotionRecord{
		Event: affect.EmotionEvent{
			Timestamp:    at,
			Category:     cat,
			RawIntensity: intensity,
			Source:       affect.YouTubeLike,
		},
		ExternalID: ext,
	}
}

func TestIngestAndScore(t *testing.T) {
	e := testEngine(t)

	emo, act, err := e.Ingest("u1", emotionBatch(liked(t0, affect.Entertainment, 0.8, "v1")))
	require.NoError(t, err)
	assert.Equal(t, 1, emo)
	assert.Equal(t, 0, act)

	emo, _, err = e.Ingest("u1", emotionBatch(liked(t0, affect.Entertainment, 0.8, "v1")))
	require.NoError(t, err)
	assert.Equal(t, 0, emo, "duplicate external id must not be re-inserted")

	s, err := e.Score("u1", time.Time{})
	require.NoError(t, err)
	assert.True(t, s.AsOf.Equal(t0))
	assert.InDelta(t, 0.8, s.Overall, 1e-12)
	assert.InDelta(t, 0.8, s.PerCategory[affect.Entertainment], 1e-12)
	assert.Equal(t, 0.0, s.PerCategory[affect.Social])

	// Events after asOf are not visible.
	before, err := e.Score("u1", t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0.0, before.Overall)
}

func TestScoreDecaysOlderEvents(t *testing.T) {
	e := testEngine(t)
	e.Analysis.DecayLambda = math.Ln2

	_, _, err := e.Ingest("u1", emotionBatch(
		liked(t0.Add(-24*time.Hour), affect.Social, 1.0, ""),
		liked(t0, affect.Social, -1.0, ""),
	))
	require.NoError(t, err)

	s, err := e.Score("u1", t0)
	require.NoError(t, err)
	// Weights 0.5 and 1: (0.5 - 1) / 1.5.
	assert.InDelta(t, -1.0/3.0, s.Overall, 1e-9)
}

func TestFatigue(t *testing.T) {
	e := testEngine(t)

	_, act, err := e.Ingest("u1", &ingest.Batch{Activities: []store.ActivityRecord{
		{Event: affect.ActivityEvent{Timestamp: t0.Add(-3 * time.Hour), DurationMinutes: 30, Category: affect.Education}},
		{Event: affect.ActivityEvent{Timestamp: t0.Add(-time.Hour), DurationMinutes: 60, Category: affect.Social}},
		{Event: affect.ActivityEvent{Timestamp: t0.Add(-72 * time.Hour), DurationMinutes: 60, Category: affect.Social}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3, act)

	fi, err := e.Fatigue("u1", affect.Window{Start: t0.Add(-24 * time.Hour), End: t0})
	require.NoError(t, err)
	assert.Equal(t, 2, fi.EventCount)
	assert.InDelta(t, 2.0, fi.Density, 1e-12)
	assert.InDelta(t, 1.0/3.0, fi.Gap, 1e-12)
	assert.Equal(t, 0.0, fi.TimeOfDay)
	assert.InDelta(t, 0.5*2+0.3/3, fi.Composite, 1e-12)

	w := e.FatigueWindow(time.Time{})
	assert.True(t, w.End.Equal(t0))
	assert.Equal(t, 7*24*time.Hour, w.End.Sub(w.Start))

	_, err = e.Fatigue("u1", affect.Window{Start: t0, End: t0})
	assert.ErrorIs(t, err, affect.ErrInvalidWindow)
}

func TestTrend(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	_, err := e.Trend(ctx, "nobody", TrendRequest{})
	assert.ErrorIs(t, err, affect.ErrEmptyHistory)

	_, _, err = e.Ingest("u1", emotionBatch(
		liked(t0.Add(-10*24*time.Hour), affect.Social, -0.5, ""),
		liked(t0.Add(-2*time.Hour), affect.Entertainment, 0.9, ""),
	))
	require.NoError(t, err)

	points, err := e.Trend(ctx, "u1", TrendRequest{})
	require.NoError(t, err)
	// 30 days back snapped to midnight, through 19:00 today.
	require.Len(t, points, 31)
	for i := 1; i < len(points); i++ {
		assert.True(t, points[i].WindowStart.Equal(points[i-1].WindowEnd), "bucket %d not contiguous", i)
	}
	assert.Equal(t, 0.0, points[0].Score.Overall)
	last := points[len(points)-1]
	assert.False(t, last.WindowEnd.Before(t0))
	assert.Greater(t, last.Score.Overall, 0.0)

	hourly, err := e.Trend(ctx, "u1", TrendRequest{From: t0.Add(-6 * time.Hour), To: t0, Bucket: time.Hour})
	require.NoError(t, err)
	assert.Len(t, hourly, 6)

	_, err = e.Trend(ctx, "u1", TrendRequest{From: t0.Add(-30 * 24 * time.Hour), To: t0, Bucket: time.Minute})
	assert.ErrorIs(t, err, affect.ErrInvalidConfig)

	_, err = e.Trend(ctx, "u1", TrendRequest{From: t0, To: t0.Add(-time.Hour), Bucket: time.Hour})
	assert.ErrorIs(t, err, affect.ErrInvalidWindow)
}

func TestTrendLastBucketSeesEventsPastTo(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	records := []store.EmotionRecord{
		liked(day.Add(time.Hour), affect.Social, -0.9, ""),
		liked(day.Add(20*time.Hour), affect.Entertainment, 0.9, ""),
	}
	_, _, err := e.Ingest("u1", emotionBatch(records...))
	require.NoError(t, err)

	points, err := e.Trend(ctx, "u1", TrendRequest{From: day, To: day.Add(12 * time.Hour), Bucket: 24 * time.Hour})
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.True(t, points[0].WindowEnd.Equal(day.Add(24*time.Hour)))

	events := []affect.EmotionEvent{records[0].Event, records[1].Event}
	want, err := affect.ComputeTrend(events, 24*time.Hour, e.Analysis.Decay())
	require.NoError(t, err)
	require.Len(t, want, 1)
	assert.InDelta(t, want[0].Score.Overall, points[0].Score.Overall, 1e-12)
	assert.Greater(t, points[0].Score.Overall, 0.0)
}

func TestTrendBucketLimitRoundsUp(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()
	_, _, err := e.Ingest("u1", emotionBatch(liked(t0.Add(-time.Hour), affect.Social, 0.2, "")))
	require.NoError(t, err)

	from := t0.Add(-MaxTrendBuckets * time.Minute)
	points, err := e.Trend(ctx, "u1", TrendRequest{From: from, To: t0, Bucket: time.Minute})
	require.NoError(t, err)
	assert.Len(t, points, MaxTrendBuckets)

	_, err = e.Trend(ctx, "u1", TrendRequest{From: from, To: t0.Add(time.Second), Bucket: time.Minute})
	assert.ErrorIs(t, err, affect.ErrInvalidConfig)

	assert.Equal(t, int64(1), bucketCount(0, time.Hour))
	assert.Equal(t, int64(2), bucketCount(61*time.Minute, time.Hour))
	assert.Equal(t, int64(0), bucketCount(-time.Minute, time.Hour))
}

func TestFeedback(t *testing.T) {
	e := testEngine(t)
	ctx := context.Background()

	empty, err := e.Feedback(ctx, "nobody", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, affect.Neutral, empty.Mood)
	assert.Equal(t, affect.StressLow, empty.Stress)
	assert.Equal(t, affect.Flat, empty.Trend)

	_, _, err = e.Ingest("u1", emotionBatch(liked(t0.Add(-time.Hour), affect.Lifestyle, -0.9, "")))
	require.NoError(t, err)

	r, err := e.Feedback(ctx, "u1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, affect.Negative, r.Mood)
	assert.NotEmpty(t, r.Recommendations)
}

func TestSnapshotsAndHistory(t *testing.T) {
	e := testEngine(t)

	_, _, err := e.Ingest("alice", emotionBatch(liked(t0.Add(-time.Hour), affect.Social, 0.4, "")))
	require.NoError(t, err)
	_, _, err = e.Ingest("bob", &ingest.Batch{Activities: []store.ActivityRecord{
		{Event: affect.ActivityEvent{Timestamp: t0.Add(-time.Hour), DurationMinutes: 15, Category: affect.Other}},
	}})
	require.NoError(t, err)

	n, err := e.SnapshotAll()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	h, err := e.History("alice", 10)
	require.NoError(t, err)
	require.Len(t, h.Scores, 1)
	require.Len(t, h.Fatigue, 1)
	assert.InDelta(t, 0.4, h.Scores[0].Score.Overall, 1e-12)
	assert.True(t, h.Scores[0].Score.AsOf.Equal(t0))
	assert.Equal(t, 0, h.Fatigue[0].Index.EventCount)

	h, err = e.History("bob", 10)
	require.NoError(t, err)
	require.Len(t, h.Fatigue, 1)
	assert.Equal(t, 1, h.Fatigue[0].Index.EventCount)
}

func TestStartSnapshotTimer(t *testing.T) {
	e := testEngine(t)

	_, _, err := e.Ingest("u1", emotionBatch(liked(t0.Add(-time.Hour), affect.Social, 0.4, "")))
	require.NoError(t, err)

	e.StartSnapshotTimer(time.Hour)
	e.Stop()
	e.Stop()

	h, err := e.History("u1", 10)
	require.NoError(t, err)
	assert.Len(t, h.Scores, 1, "timer snapshots once on startup")
}

func TestComputationMetrics(t *testing.T) {
	e := testEngine(t)

	_, err := e.Score("u1", time.Time{})
	require.NoError(t, err)
	_, err = e.Trend(context.Background(), "u1", TrendRequest{})
	require.Error(t, err)

	rec := httptest.NewRecorder()
	e.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `affect_computations_total{op="score",result="success"} 1`)
	assert.Contains(t, body, `affect_computations_total{op="trend",result="failure"} 1`)
}
