// Package engine loads event history from the store, runs the scoring core
// over it, and records what it emitted.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/config"
	"github.com/lazypower/affect/internal/feedback"
	"github.com/lazypower/affect/internal/ingest"
	"github.com/lazypower/affect/internal/metrics"
	"github.com/lazypower/affect/internal/store"
)

// Engine orchestrates ingestion, scoring, and periodic snapshots.
type Engine struct {
	DB       *store.DB
	Analysis config.AnalysisConfig
	Logger   *zap.Logger
	Metrics  *metrics.Metrics

	// Now supplies the evaluation instant when a caller does not pass one.
	Now func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New creates a new Engine. A nil logger discards output; nil metrics are a no-op.
func New(db *store.DB, analysis config.AnalysisConfig, logger *zap.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		DB:       db,
		Analysis: analysis,
		Logger:   logger,
		Metrics:  m,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// Ingest appends a batch to userID's log and returns how many events were new.
func (e *Engine) Ingest(userID string, b *ingest.Batch) (emotions, activities int, err error) {
	emotions, activities, err = b.Append(e.DB, userID)
	if err != nil {
		return 0, 0, fmt.Errorf("ingest %s: %w", userID, err)
	}
	e.Metrics.AddIngested(ingest.KindEmotion, emotions)
	e.Metrics.AddIngested(ingest.KindActivity, activities)
	e.Logger.Debug("ingested events",
		zap.String("user", userID),
		zap.Int("emotions", emotions),
		zap.Int("activities", activities),
		zap.Int("duplicates", b.Len()-emotions-activities),
	)
	return emotions, activities, nil
}

// Score computes userID's decayed emotion score at asOf. A zero asOf means now.
// Events logged after asOf are not visible.
func (e *Engine) Score(userID string, asOf time.Time) (s affect.EmotionScore, err error) {
	start := time.Now()
	defer func() { e.Metrics.ObserveComputation("score", start, err) }()

	if asOf.IsZero() {
		asOf = e.now()
	}
	events, err := e.DB.EmotionEvents(userID, asOf)
	if err != nil {
		return affect.EmotionScore{}, fmt.Errorf("load emotion events: %w", err)
	}
	return affect.ComputeEmotionScore(events, e.Analysis.Decay(), asOf)
}

// FatigueWindow returns the configured look-back window ending at asOf.
// A zero asOf means now.
func (e *Engine) FatigueWindow(asOf time.Time) affect.Window {
	if asOf.IsZero() {
		asOf = e.now()
	}
	return affect.Window{Start: asOf.Add(-e.Analysis.FatigueWindow), End: asOf}
}

// Fatigue computes userID's fatigue index over w.
func (e *Engine) Fatigue(userID string, w affect.Window) (fi affect.FatigueIndex, err error) {
	start := time.Now()
	defer func() { e.Metrics.ObserveComputation("fatigue", start, err) }()

	loc, err := e.Analysis.Location()
	if err != nil {
		return affect.FatigueIndex{}, err
	}
	events, err := e.DB.ActivityEvents(userID, w.Start, w.End)
	if err != nil {
		return affect.FatigueIndex{}, fmt.Errorf("load activity events: %w", err)
	}
	return affect.ComputeFatigueIndex(events, w, e.Analysis.Weights(), affect.WithLocation(loc))
}

// MaxTrendBuckets caps how many buckets one trend request may compute.
const MaxTrendBuckets = 10000

// TrendRequest selects the buckets of a trend. Zero fields fall back to the
// configured horizon and bucket, ending now.
type TrendRequest struct {
	From   time.Time
	To     time.Time
	Bucket time.Duration
}

// Trend computes userID's bucketed score trend. A user with no emotion
// history yields ErrEmptyHistory.
func (e *Engine) Trend(ctx context.Context, userID string, req TrendRequest) (points []affect.TrendPoint, err error) {
	start := time.Now()
	defer func() { e.Metrics.ObserveComputation("trend", start, err) }()

	if req.To.IsZero() {
		req.To = e.now()
	}
	if req.Bucket <= 0 {
		req.Bucket = e.Analysis.TrendBucket
	}
	if req.From.IsZero() {
		req.From = req.To.Add(-e.Analysis.TrendHorizon).Truncate(req.Bucket)
	}

	n := bucketCount(req.To.Sub(req.From), req.Bucket)
	if n > MaxTrendBuckets {
		return nil, &affect.Error{
			Kind:    affect.ErrInvalidConfig,
			Op:      "trend",
			Index:   -1,
			Message: fmt.Sprintf("%d buckets requested, limit is %d", n, MaxTrendBuckets),
		}
	}

	// The last bucket may end after To; its score still sees every event up
	// to its own end.
	until := req.To
	if n > 0 {
		until = req.From.Add(time.Duration(n) * req.Bucket)
	}
	events, err := e.DB.EmotionEvents(userID, until)
	if err != nil {
		return nil, fmt.Errorf("load emotion events: %w", err)
	}
	t, err := affect.NewTrend(events, affect.TrendOptions{
		Bucket:         req.Bucket,
		Decay:          e.Analysis.Decay(),
		Start:          req.From,
		End:            req.To,
		RequireHistory: true,
	})
	if err != nil {
		return nil, err
	}
	return t.Collect(ctx, runtime.GOMAXPROCS(0))
}

// bucketCount is how many buckets of width bucket cover span, rounding a
// partial bucket up. An empty span is one bucket; a negative span is 0.
func bucketCount(span, bucket time.Duration) int64 {
	if span < 0 {
		return 0
	}
	n := int64(span / bucket)
	if span%bucket != 0 || n == 0 {
		n++
	}
	return n
}

// Feedback evaluates score, fatigue, and trend at asOf and builds a report.
func (e *Engine) Feedback(ctx context.Context, userID string, asOf time.Time) (feedback.Report, error) {
	if asOf.IsZero() {
		asOf = e.now()
	}
	s, err := e.Score(userID, asOf)
	if err != nil {
		return feedback.Report{}, err
	}
	fi, err := e.Fatigue(userID, e.FatigueWindow(asOf))
	if err != nil {
		return feedback.Report{}, err
	}
	var summary affect.TrendSummary
	points, err := e.Trend(ctx, userID, TrendRequest{To: asOf})
	switch {
	case err == nil:
		summary = affect.SummarizeTrend(points)
	case errors.Is(err, affect.ErrEmptyHistory):
		summary = affect.SummarizeTrend(nil)
	default:
		return feedback.Report{}, err
	}
	return feedback.Build(s, fi, summary), nil
}

// History is the persisted snapshot history for a user.
type History struct {
	Scores  []store.ScoreSnapshot
	Fatigue []store.FatigueSnapshot
}

// History returns up to limit of userID's most recent snapshots of each kind.
func (e *Engine) History(userID string, limit int) (History, error) {
	scores, err := e.DB.RecentScores(userID, limit)
	if err != nil {
		return History{}, err
	}
	fatigue, err := e.DB.RecentFatigue(userID, limit)
	if err != nil {
		return History{}, err
	}
	return History{Scores: scores, Fatigue: fatigue}, nil
}

// Snapshot computes and persists userID's score and fatigue at asOf.
func (e *Engine) Snapshot(userID string, asOf time.Time) error {
	if asOf.IsZero() {
		asOf = e.now()
	}
	s, err := e.Score(userID, asOf)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", userID, err)
	}
	if _, err := e.DB.SaveScore(userID, s, e.Analysis.Decay()); err != nil {
		return fmt.Errorf("snapshot %s: %w", userID, err)
	}

	w := e.FatigueWindow(asOf)
	fi, err := e.Fatigue(userID, w)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", userID, err)
	}
	if _, err := e.DB.SaveFatigue(userID, w, fi); err != nil {
		return fmt.Errorf("snapshot %s: %w", userID, err)
	}
	e.Metrics.IncSnapshots()
	return nil
}

// SnapshotAll snapshots every known user at the same instant. A failure for
// one user is logged and does not stop the others.
func (e *Engine) SnapshotAll() (int, error) {
	users, err := e.DB.Users()
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	asOf := e.now()
	done := 0
	for _, u := range users {
		if err := e.Snapshot(u, asOf); err != nil {
			e.Logger.Warn("snapshot failed", zap.String("user", u), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

func (e *Engine) runSnapshots() {
	n, err := e.SnapshotAll()
	if err != nil {
		e.Logger.Error("snapshot error", zap.Error(err))
		return
	}
	if n > 0 {
		e.Logger.Info("snapshot: recorded users", zap.Int("users", n))
	}
}

// StartSnapshotTimer snapshots all users on startup and then every interval.
func (e *Engine) StartSnapshotTimer(interval time.Duration) {
	e.runSnapshots()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				e.runSnapshots()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines. It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}
