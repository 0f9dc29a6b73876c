package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/affect/internal/config"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/ingest"
	"github.com/lazypower/affect/internal/server"
	"github.com/lazypower/affect/internal/store"
)

var now = time.Date(2026, 2, 2, 19, 0, 0, 0, time.UTC)

func testClient(t *testing.T) (*Client, *engine.Engine) {
	t.Helper()
	db, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, config.Default().Analysis, nil, nil)
	eng.Now = func() time.Time { return now }

	ts := httptest.NewServer(server.New(eng, "test"))
	t.Cleanup(ts.Close)
	return New(ts.URL), eng
}

func f(v float64) *float64 { return &v }

func TestClientRoundTrip(t *testing.T) {
	c, eng := testClient(t)
	ctx := context.Background()

	require.True(t, c.Healthy(ctx))

	resp, err := c.PostEvents(ctx, "alice", []ingest.Record{
		{Kind: ingest.KindEmotion, Timestamp: now.Add(-time.Hour), Category: "lifestyle", Intensity: f(0.6), Source: "youtube_like", ExternalID: "v1"},
		{Kind: ingest.KindActivity, Timestamp: now.Add(-2 * time.Hour), Category: "education", DurationMinutes: f(50)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Received)
	assert.Equal(t, 1, resp.EmotionsAdded)
	assert.Equal(t, 1, resp.ActivitiesAdded)

	score, err := c.Score(ctx, "alice", time.Time{})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, score.Overall, 1e-12)
	assert.Equal(t, "lifestyle", string(score.TopCategory))

	fat, err := c.Fatigue(ctx, "alice", now.Add(-24*time.Hour), now)
	require.NoError(t, err)
	assert.Equal(t, 1, fat.EventCount)

	tr, err := c.Trend(ctx, "alice", now.Add(-3*time.Hour), now, time.Hour)
	require.NoError(t, err)
	assert.Len(t, tr.Points, 3)
	assert.Equal(t, "1h0m0s", tr.Bucket)

	fb, err := c.Feedback(ctx, "alice", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "very_positive", string(fb.Mood))

	_, err = eng.SnapshotAll()
	require.NoError(t, err)
	h, err := c.History(ctx, "alice", 5)
	require.NoError(t, err)
	assert.Len(t, h.Scores, 1)
}

func TestClientStatusError(t *testing.T) {
	c, _ := testClient(t)
	ctx := context.Background()

	_, err := c.Trend(ctx, "nobody", time.Time{}, time.Time{}, 0)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
	assert.Equal(t, "empty history", se.Body.Kind)

	_, err = c.PostEvents(ctx, "alice", []ingest.Record{
		{Kind: ingest.KindEmotion, Timestamp: now, Category: "social", Intensity: f(3), Source: "youtube_like"},
	})
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
	require.NotNil(t, se.Body.Index)
	assert.Equal(t, 0, *se.Body.Index)
}

func TestNewDefaults(t *testing.T) {
	t.Setenv("AFFECT_URL", "")
	assert.Equal(t, defaultServerURL, New("").serverURL)

	t.Setenv("AFFECT_URL", "http://affect.internal:9000")
	assert.Equal(t, "http://affect.internal:9000", New("").serverURL)
	assert.Equal(t, "http://explicit:1", New("http://explicit:1").serverURL)
}

func TestHealthyUnreachable(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	assert.False(t, New(url).Healthy(context.Background()))
}
