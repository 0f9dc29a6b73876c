// Package client talks to a running affect server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/lazypower/affect/internal/api"
	"github.com/lazypower/affect/internal/feedback"
	"github.com/lazypower/affect/internal/ingest"
)

const (
	defaultServerURL = "http://127.0.0.1:37778"
	httpTimeout      = 30 * time.Second
)

// Client talks to the affect server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for serverURL. An empty serverURL falls back to the
// AFFECT_URL env var, then to http://127.0.0.1:37778.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("AFFECT_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   api.Error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body.Error)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.serverURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		se := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		if json.Unmarshal(data, &se.Body) != nil || se.Body.Error == "" {
			se.Body.Error = string(bytes.TrimSpace(data))
		}
		return se
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}
	return nil
}

func userPath(userID, endpoint string, q url.Values) string {
	p := "/api/users/" + url.PathEscape(userID) + "/" + endpoint
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}

func setTime(q url.Values, key string, t time.Time) {
	if !t.IsZero() {
		q.Set(key, t.Format(time.RFC3339Nano))
	}
}

// PostEvents sends records for userID.
func (c *Client) PostEvents(ctx context.Context, userID string, records []ingest.Record) (api.EventsResponse, error) {
	var out api.EventsResponse
	err := c.do(ctx, http.MethodPost, userPath(userID, "events", nil), api.EventsRequest{Events: records}, &out)
	return out, err
}

// Score fetches the score at asOf; a zero asOf means the server's now.
func (c *Client) Score(ctx context.Context, userID string, asOf time.Time) (api.Score, error) {
	q := url.Values{}
	setTime(q, "as_of", asOf)
	var out api.Score
	err := c.do(ctx, http.MethodGet, userPath(userID, "score", q), nil, &out)
	return out, err
}

// Fatigue fetches the fatigue index over [from, to]. Zero values use the
// server's configured window.
func (c *Client) Fatigue(ctx context.Context, userID string, from, to time.Time) (api.Fatigue, error) {
	q := url.Values{}
	setTime(q, "from", from)
	setTime(q, "to", to)
	var out api.Fatigue
	err := c.do(ctx, http.MethodGet, userPath(userID, "fatigue", q), nil, &out)
	return out, err
}

// Trend fetches bucketed scores.
func (c *Client) Trend(ctx context.Context, userID string, from, to time.Time, bucket time.Duration) (api.Trend, error) {
	q := url.Values{}
	setTime(q, "from", from)
	setTime(q, "to", to)
	if bucket > 0 {
		q.Set("bucket", bucket.String())
	}
	var out api.Trend
	err := c.do(ctx, http.MethodGet, userPath(userID, "trend", q), nil, &out)
	return out, err
}

// Feedback fetches the feedback report at asOf.
func (c *Client) Feedback(ctx context.Context, userID string, asOf time.Time) (feedback.Report, error) {
	q := url.Values{}
	setTime(q, "as_of", asOf)
	var out feedback.Report
	err := c.do(ctx, http.MethodGet, userPath(userID, "feedback", q), nil, &out)
	return out, err
}

// History fetches up to limit snapshots of each kind.
func (c *Client) History(ctx context.Context, userID string, limit int) (api.History, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out api.History
	err := c.do(ctx, http.MethodGet, userPath(userID, "history", q), nil, &out)
	return out, err
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy(ctx context.Context) bool {
	var h api.Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &h); err != nil {
		return false
	}
	return h.Status == "ok"
}
