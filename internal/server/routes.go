package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/api"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/ingest"
)

const (
	maxEventsBody  = 4 << 20
	maxEventsBatch = 10000

	defaultHistoryLimit = 20
	maxHistoryLimit     = 500
)

func (s *Server) handlePostEvents(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req api.EventsRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventsBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, badRequestf("invalid json: %v", err))
		return
	}
	if len(req.Events) > maxEventsBatch {
		s.writeError(w, r, badRequestf("%d events in one request, limit is %d", len(req.Events), maxEventsBatch))
		return
	}

	// The whole batch is rejected on the first bad record.
	var b ingest.Batch
	for i, rec := range req.Events {
		if rec.UserID != "" && rec.UserID != userID {
			s.writeIndexed(w, i, badRequestf("event %d: user_id %q does not match path user %q", i, rec.UserID, userID))
			return
		}
		if err := b.Add(rec); err != nil {
			s.writeIndexed(w, i, badRequestf("event %d: %v", i, err))
			return
		}
	}

	emotions, activities, err := s.engine.Ingest(userID, &b)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("events ingested",
		zap.String("user", userID),
		zap.Int("received", len(req.Events)),
		zap.Int("emotions_added", emotions),
		zap.Int("activities_added", activities),
	)

	writeJSON(w, http.StatusCreated, api.EventsResponse{
		Received:        len(req.Events),
		EmotionsAdded:   emotions,
		ActivitiesAdded: activities,
	})
}

func (s *Server) writeIndexed(w http.ResponseWriter, index int, err error) {
	writeJSON(w, http.StatusBadRequest, api.Error{
		Error: err.Error(),
		Kind:  affect.ErrInvalidEvent.Error(),
		Index: &index,
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	asOf, err := queryTime(r, "as_of")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	score, err := s.engine.Score(userID, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewScore(userID, score))
}

func (s *Server) handleFatigue(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	from, err := queryTime(r, "from")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	to, err := queryTime(r, "to")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	win := s.engine.FatigueWindow(to)
	if !from.IsZero() {
		win.Start = from
	}
	fi, err := s.engine.Fatigue(userID, win)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewFatigue(userID, win, fi))
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req engine.TrendRequest
	var err error
	if req.From, err = queryTime(r, "from"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.To, err = queryTime(r, "to"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Bucket, err = queryDuration(r, "bucket"); err != nil {
		s.writeError(w, r, err)
		return
	}

	points, err := s.engine.Trend(r.Context(), userID, req)
	if err != nil {
		if errors.Is(err, r.Context().Err()) {
			return // client went away
		}
		s.writeError(w, r, err)
		return
	}

	bucket := req.Bucket
	if bucket == 0 {
		bucket = s.engine.Analysis.TrendBucket
	}
	writeJSON(w, http.StatusOK, api.NewTrend(userID, bucket, points))
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	asOf, err := queryTime(r, "as_of")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.engine.Feedback(r.Context(), userID, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit, err := queryInt(r, "limit", defaultHistoryLimit, maxHistoryLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.engine.History(userID, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, api.NewHistory(userID, h.Scores, h.Fatigue))
}
