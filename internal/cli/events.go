package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/affect/internal/client"
	"github.com/lazypower/affect/internal/ingest"
)

var (
	importUser string
	pushUser   string
	pushServer string
	pushChunk  int
)

func init() {
	importCmd.Flags().StringVarP(&importUser, "user", "u", "", "user for records without a user_id")
	pushCmd.Flags().StringVarP(&pushUser, "user", "u", "", "user for records without a user_id")
	pushCmd.Flags().StringVar(&pushServer, "server", "", "server URL (default $AFFECT_URL or http://127.0.0.1:37778)")
	pushCmd.Flags().IntVar(&pushChunk, "chunk", 500, "records per request")
}

// --- import command ---

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Append JSONL event records to the local database",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	res, err := ingest.ParseFile(args[0], importUser)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	reportSkipped(out, res.Skipped, res.Lines)

	eng, db, err := openEngine(nil)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, user := range res.Users() {
		emo, act, err := eng.Ingest(user, res.Batches[user])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %d emotion, %d activity events added (%d records)\n",
			user, emo, act, res.Batches[user].Len())
	}
	return nil
}

// --- push command ---

var pushCmd = &cobra.Command{
	Use:   "push <file.jsonl>",
	Short: "Send JSONL event records to a running server",
	Args:  cobra.ExactArgs(1),
	RunE:  runPush,
}

func runPush(cmd *cobra.Command, args []string) error {
	if pushChunk <= 0 {
		return fmt.Errorf("--chunk must be > 0")
	}
	raw, err := ingest.ReadRawFile(args[0], pushUser)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	reportSkipped(out, raw.Skipped, raw.Lines)

	c := client.New(pushServer)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, user := range raw.Users() {
		recs := raw.Records[user]
		var emo, act int
		for start := 0; start < len(recs); start += pushChunk {
			end := min(start+pushChunk, len(recs))
			resp, err := c.PostEvents(ctx, user, recs[start:end])
			if err != nil {
				return fmt.Errorf("push %s records %d-%d: %w", user, start, end-1, err)
			}
			emo += resp.EmotionsAdded
			act += resp.ActivitiesAdded
		}
		logger.Debug("pushed records", zap.String("user", user), zap.Int("records", len(recs)))
		fmt.Fprintf(out, "%s: %d emotion, %d activity events added (%d records)\n", user, emo, act, len(recs))
	}
	return nil
}

func reportSkipped(out io.Writer, skipped []ingest.LineError, lines int) {
	for _, s := range skipped {
		fmt.Fprintf(out, "skipped %v\n", s)
	}
	if len(skipped) > 0 {
		logger.Warn("skipped malformed records", zap.Int("skipped", len(skipped)), zap.Int("lines", lines))
	}
}
