package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lazypower/affect/internal/config"
	"github.com/lazypower/affect/internal/engine"
	"github.com/lazypower/affect/internal/logging"
	"github.com/lazypower/affect/internal/metrics"
	"github.com/lazypower/affect/internal/store"
)

var (
	configPath string
	envFile    string

	// Populated by PersistentPreRunE for every subcommand.
	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "affect",
	Short: "Temporal emotion and fatigue scoring",
	Long: "affect keeps an append-only log of emotion and activity events per user and " +
		"turns it into decayed emotion scores, fatigue indices and score trends.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (.toml, .yaml or .yml); defaults to $AFFECT_CONFIG")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(fatigueCmd)
	rootCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(feedbackCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}
	path := configPath
	if path == "" {
		path = os.Getenv("AFFECT_CONFIG")
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg = c

	l, err := logging.New(cfg.Log.Level, cfg.Log.Environment)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// dbPath resolves the configured database path.
func dbPath() (string, error) {
	if cfg.Database.Path != "" {
		return cfg.Database.Path, nil
	}
	return store.DefaultDBPath()
}

// openEngine opens the database and wraps it in an engine for CLI commands.
// The caller closes the returned DB.
func openEngine(m *metrics.Metrics) (*engine.Engine, *store.DB, error) {
	path, err := dbPath()
	if err != nil {
		return nil, nil, fmt.Errorf("resolve db path: %w", err)
	}
	db, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return engine.New(db, cfg.Analysis, logger, m), db, nil
}
