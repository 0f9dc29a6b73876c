package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lazypower/affect/internal/affect"
)

// EnvPrefix is prepended to every environment override, e.g. AFFECT_SERVER_PORT.
const EnvPrefix = "AFFECT_"

// Config holds all affect configuration.
type Config struct {
	Server   ServerConfig   `toml:"server" yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `toml:"database" yaml:"database" envPrefix:"DATABASE_"`
	Analysis AnalysisConfig `toml:"analysis" yaml:"analysis" envPrefix:"ANALYSIS_"`
	Snapshot SnapshotConfig `toml:"snapshot" yaml:"snapshot" envPrefix:"SNAPSHOT_"`
	Log      LogConfig      `toml:"log" yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Bind string `toml:"bind" yaml:"bind" env:"BIND" validate:"required"`
	Port int    `toml:"port" yaml:"port" env:"PORT" validate:"min=1,max=65535"`
}

type DatabaseConfig struct {
	Path string `toml:"path" yaml:"path" env:"PATH"` // empty: store.DefaultDBPath()
}

// AnalysisConfig carries the numeric knobs of the scoring core. They are
// validated here and again by the core; nothing is clamped.
type AnalysisConfig struct {
	DecayLambda   float64       `toml:"decay_lambda" yaml:"decay_lambda" env:"DECAY_LAMBDA" validate:"gt=0"`
	DecayUnit     time.Duration `toml:"decay_unit" yaml:"decay_unit" env:"DECAY_UNIT" validate:"gt=0"`
	Alpha         float64       `toml:"alpha" yaml:"alpha" env:"ALPHA" validate:"gte=0"`
	Beta          float64       `toml:"beta" yaml:"beta" env:"BETA" validate:"gte=0"`
	Gamma         float64       `toml:"gamma" yaml:"gamma" env:"GAMMA" validate:"gte=0"`
	FatigueWindow time.Duration `toml:"fatigue_window" yaml:"fatigue_window" env:"FATIGUE_WINDOW" validate:"gt=0"`
	TrendBucket   time.Duration `toml:"trend_bucket" yaml:"trend_bucket" env:"TREND_BUCKET" validate:"gt=0"`
	TrendHorizon  time.Duration `toml:"trend_horizon" yaml:"trend_horizon" env:"TREND_HORIZON" validate:"gtefield=TrendBucket"`
	Timezone      string        `toml:"timezone" yaml:"timezone" env:"TIMEZONE"` // IANA name; empty means UTC
}

type SnapshotConfig struct {
	Interval time.Duration `toml:"interval" yaml:"interval" env:"INTERVAL" validate:"gte=0"` // 0 disables the timer
}

type LogConfig struct {
	Level       string `toml:"level" yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Environment string `toml:"environment" yaml:"environment" env:"ENVIRONMENT" validate:"oneof=development production"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Analysis: AnalysisConfig{
			DecayLambda:   0.1, // per day
			DecayUnit:     24 * time.Hour,
			Alpha:         0.5,
			Beta:          0.3,
			Gamma:         0.2,
			FatigueWindow: 7 * 24 * time.Hour,
			TrendBucket:   24 * time.Hour,
			TrendHorizon:  30 * 24 * time.Hour,
		},
		Snapshot: SnapshotConfig{
			Interval: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:       "info",
			Environment: "development",
		},
	}
}

// Load builds a Config from defaults, then the file at path (TOML or YAML by
// extension, skipped when path is empty), then AFFECT_* environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := decodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode toml %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode yaml %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .toml, .yaml or .yml)", filepath.Ext(path))
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and that the timezone resolves.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Analysis.Location(); err != nil {
		return err
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Decay returns the configured decay rate.
func (a AnalysisConfig) Decay() affect.Decay {
	return affect.Decay{Lambda: a.DecayLambda, Per: a.DecayUnit}
}

// Weights returns the configured fatigue weights.
func (a AnalysisConfig) Weights() affect.Weights {
	return affect.Weights{Alpha: a.Alpha, Beta: a.Beta, Gamma: a.Gamma}
}

// Location resolves Timezone.
func (a AnalysisConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}
