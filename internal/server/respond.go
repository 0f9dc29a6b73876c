package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/api"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// badRequest is a client mistake detected before reaching the engine.
type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func badRequestf(format string, args ...any) error {
	return badRequest{msg: fmt.Sprintf(format, args...)}
}

// statusFor maps an error to its HTTP status. Input and configuration
// errors are the caller's; missing history is not found; the rest is ours.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br),
		errors.Is(err, affect.ErrInvalidEvent),
		errors.Is(err, affect.ErrInvalidConfig),
		errors.Is(err, affect.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, affect.ErrEmptyHistory):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := api.Error{Error: err.Error()}

	var ae *affect.Error
	if errors.As(err, &ae) {
		body.Kind = ae.Kind.Error()
		if ae.Index >= 0 {
			idx := ae.Index
			body.Index = &idx
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeJSON(w, status, body)
}

func queryTime(r *http.Request, key string) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, badRequestf("%s: want RFC 3339 timestamp, got %q", key, v)
	}
	return t, nil
}

func queryDuration(r *http.Request, key string) (time.Duration, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, badRequestf("%s: want positive duration like 24h, got %q", key, v)
	}
	return d, nil
}

func queryInt(r *http.Request, key string, def, max int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, badRequestf("%s: want positive integer, got %q", key, v)
	}
	return min(n, max), nil
}
