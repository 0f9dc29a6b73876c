package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lazypower/affect/internal/affect"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "127.0.0.1:37778", cfg.ListenAddr())
	assert.Equal(t, affect.Daily(0.1), cfg.Analysis.Decay())
	assert.Equal(t, affect.DefaultWeights(), cfg.Analysis.Weights())
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "affect.toml", `
[server]
port = 9000

[analysis]
decay_lambda = 0.05
decay_unit = "12h"
alpha = 1.0
trend_bucket = "168h"
trend_horizon = "720h"
timezone = "UTC"

[log]
environment = "production"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, 0.05, cfg.Analysis.DecayLambda)
	assert.Equal(t, 12*time.Hour, cfg.Analysis.DecayUnit)
	assert.Equal(t, 1.0, cfg.Analysis.Alpha)
	assert.Equal(t, 0.3, cfg.Analysis.Beta)
	assert.Equal(t, 7*24*time.Hour, cfg.Analysis.TrendBucket)
	assert.Equal(t, "production", cfg.Log.Environment)
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "production.yaml", `
analysis:
  decay_lambda: 0.05
  gamma: 0.4
snapshot:
  interval: 1h
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.05, cfg.Analysis.DecayLambda)
	assert.Equal(t, 0.4, cfg.Analysis.Gamma)
	assert.Equal(t, time.Hour, cfg.Snapshot.Interval)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeFile(t, "affect.toml", "[analysis]\ndecay_lambda = 0.05\n")
	t.Setenv("AFFECT_ANALYSIS_DECAY_LAMBDA", "0.25")
	t.Setenv("AFFECT_SERVER_PORT", "8123")
	t.Setenv("AFFECT_DATABASE_PATH", "/tmp/affect-test.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.25, cfg.Analysis.DecayLambda)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "/tmp/affect-test.db", cfg.Database.Path)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"zero lambda":     "[analysis]\ndecay_lambda = 0.0\n",
		"negative weight": "[analysis]\nbeta = -0.1\n",
		"bad log level":   "[log]\nlevel = \"loud\"\n",
		"bad timezone":    "[analysis]\ntimezone = \"Mars/Olympus\"\n",
		"horizon < bucket": "[analysis]\ntrend_bucket = \"48h\"\ntrend_horizon = \"24h\"\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, "affect.toml", content))
			assert.Error(t, err)
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(writeFile(t, "affect.json", "{}"))
	assert.ErrorContains(t, err, "unsupported config format")
}

func TestLoadDotEnv(t *testing.T) {
	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	t.Setenv("AFFECT_LOG_LEVEL", "")
	os.Unsetenv("AFFECT_LOG_LEVEL")
	path := writeFile(t, ".env", "AFFECT_LOG_LEVEL=debug\n")
	require.NoError(t, LoadDotEnv(path))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLocation(t *testing.T) {
	loc, err := AnalysisConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
