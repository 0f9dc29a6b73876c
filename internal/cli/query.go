package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/affect/internal/affect"
	"github.com/lazypower/affect/internal/api"
	"github.com/lazypower/affect/internal/client"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/feedback"
)

// backend answers queries either from the local database or a remote server.
type backend interface {
	Score(ctx context.Context, userID string, asOf time.Time) (api.Score, error)
	Fatigue(ctx context.Context, userID string, from, to time.Time) (api.Fatigue, error)
	Trend(ctx context.Context, userID string, from, to time.Time, bucket time.Duration) (api.Trend, error)
	Feedback(ctx context.Context, userID string, asOf time.Time) (feedback.Report, error)
}

// local adapts an Engine to the same shape as the HTTP client.
type local struct{ eng *engine.Engine }

func (l local) Score(_ context.Context, userID string, asOf time.Time) (api.Score, error) {
	s, err := l.eng.Score(userID, asOf)
	if err != nil {
		return api.Score{}, err
	}
	return api.NewScore(userID, s), nil
}

func (l local) Fatigue(_ context.Context, userID string, from, to time.Time) (api.Fatigue, error) {
	w := l.eng.FatigueWindow(to)
	if !from.IsZero() {
		w.Start = from
	}
	fi, err := l.eng.Fatigue(userID, w)
	if err != nil {
		return api.Fatigue{}, err
	}
	return api.NewFatigue(userID, w, fi), nil
}

func (l local) Trend(ctx context.Context, userID string, from, to time.Time, bucket time.Duration) (api.Trend, error) {
	points, err := l.eng.Trend(ctx, userID, engine.TrendRequest{From: from, To: to, Bucket: bucket})
	if err != nil {
		return api.Trend{}, err
	}
	if bucket == 0 {
		bucket = l.eng.Analysis.TrendBucket
	}
	return api.NewTrend(userID, bucket, points), nil
}

func (l local) Feedback(ctx context.Context, userID string, asOf time.Time) (feedback.Report, error) {
	return l.eng.Feedback(ctx, userID, asOf)
}

// Shared query flags.
var (
	queryServer string
	queryJSON   bool
	queryAsOf   string
	queryFrom   string
	queryTo     string
	queryBucket time.Duration
)

func init() {
	for _, c := range []*cobra.Command{scoreCmd, fatigueCmd, trendCmd, feedbackCmd} {
		c.Flags().StringVar(&queryServer, "server", "", "query a running server instead of the local database")
		c.Flags().BoolVar(&queryJSON, "json", false, "print JSON")
	}
	scoreCmd.Flags().StringVar(&queryAsOf, "as-of", "", "evaluation time (RFC 3339), default now")
	feedbackCmd.Flags().StringVar(&queryAsOf, "as-of", "", "evaluation time (RFC 3339), default now")
	fatigueCmd.Flags().StringVar(&queryFrom, "from", "", "window start (RFC 3339), default --to minus the fatigue window")
	fatigueCmd.Flags().StringVar(&queryTo, "to", "", "window end (RFC 3339), default now")
	trendCmd.Flags().StringVar(&queryFrom, "from", "", "first bucket start (RFC 3339), default --to minus the trend horizon")
	trendCmd.Flags().StringVar(&queryTo, "to", "", "last instant covered (RFC 3339), default now")
	trendCmd.Flags().DurationVar(&queryBucket, "bucket", 0, "bucket width, default from config")
}

// withBackend runs fn against the chosen backend and releases it afterwards.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b backend) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if queryServer != "" {
		return fn(ctx, client.New(queryServer))
	}
	eng, db, err := openEngine(nil)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, local{eng: eng})
}

func parseTimeFlag(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: want RFC 3339 timestamp, got %q", name, v)
	}
	return t, nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- score command ---

var scoreCmd = &cobra.Command{
	Use:   "score <user>",
	Short: "Show a user's decayed emotion score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseTimeFlag("as-of", queryAsOf)
		if err != nil {
			return err
		}
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			s, err := b.Score(ctx, args[0], asOf)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if queryJSON {
				return printJSON(out, s)
			}
			fmt.Fprintf(out, "%s at %s\n", s.UserID, s.AsOf.Format(time.RFC3339))
			fmt.Fprintf(out, "  overall: %+.3f (%s)\n", s.Overall, s.Mood)
			for _, c := range affect.Categories() {
				fmt.Fprintf(out, "  %-14s %+.3f\n", string(c)+":", s.PerCategory[c])
			}
			return nil
		})
	},
}

// --- fatigue command ---

var fatigueCmd = &cobra.Command{
	Use:   "fatigue <user>",
	Short: "Show a user's fatigue index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseTimeFlag("from", queryFrom)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", queryTo)
		if err != nil {
			return err
		}
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			f, err := b.Fatigue(ctx, args[0], from, to)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if queryJSON {
				return printJSON(out, f)
			}
			fmt.Fprintf(out, "%s from %s to %s\n", f.UserID,
				f.WindowStart.Format(time.RFC3339), f.WindowEnd.Format(time.RFC3339))
			fmt.Fprintf(out, "  composite:   %.3f (stress %s)\n", f.Composite, f.Stress)
			fmt.Fprintf(out, "  density:     %.3f events/day (%d events)\n", f.Density, f.EventCount)
			fmt.Fprintf(out, "  gap:         %.3f\n", f.Gap)
			fmt.Fprintf(out, "  time of day: %.3f\n", f.TimeOfDay)
			fmt.Fprintf(out, "  active:      %.1f h/day\n", f.ActiveHoursPerDay)
			return nil
		})
	},
}

// --- trend command ---

var trendCmd = &cobra.Command{
	Use:   "trend <user>",
	Short: "Show a user's score trend by bucket",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := parseTimeFlag("from", queryFrom)
		if err != nil {
			return err
		}
		to, err := parseTimeFlag("to", queryTo)
		if err != nil {
			return err
		}
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			tr, err := b.Trend(ctx, args[0], from, to, queryBucket)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if queryJSON {
				return printJSON(out, tr)
			}
			fmt.Fprintf(out, "%s: %d buckets of %s, %s (%+.3f)\n",
				tr.UserID, len(tr.Points), tr.Bucket, tr.Direction, tr.Change)
			for _, p := range tr.Points {
				fmt.Fprintf(out, "  %s  %+.3f  %s\n", p.WindowEnd.Format(time.RFC3339), p.Overall, bar(p.Overall))
			}
			return nil
		})
	},
}

// bar renders a score in [-1, 1] as a signed bar of up to 20 cells.
func bar(v float64) string {
	n := int(v*20 + 0.5*sign(v))
	switch {
	case n > 0:
		return strings.Repeat("+", min(n, 20))
	case n < 0:
		return strings.Repeat("-", min(-n, 20))
	}
	return ""
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

// --- feedback command ---

var feedbackCmd = &cobra.Command{
	Use:   "feedback <user>",
	Short: "Show a user's mood, stress and recommendations",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asOf, err := parseTimeFlag("as-of", queryAsOf)
		if err != nil {
			return err
		}
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			r, err := b.Feedback(ctx, args[0], asOf)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if queryJSON {
				return printJSON(out, r)
			}
			fmt.Fprintln(out, r.Summary)
			if r.TopInterest != "" {
				fmt.Fprintf(out, "  top interest: %s\n", r.TopInterest)
			}
			for _, rec := range r.Recommendations {
				fmt.Fprintf(out, "  - %s\n", rec)
			}
			return nil
		})
	},
}
