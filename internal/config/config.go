// Package config reads MotionVDL settings from MOTIONVDL_* environment
// variables. Command-line flags override these values.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/roach88/motionvdl/internal/export"
)

// Prefix is prepended to every variable name.
const Prefix = "MOTIONVDL_"

// Config is the MOTIONVDL_* environment after defaults are applied.
type Config struct {
	Sink     string `env:"SINK"      envDefault:"dir"`
	OutDir   string `env:"OUT_DIR"   envDefault:"labels"`
	DB       string `env:"DB"        envDefault:"motionvdl.db"`
	S3Bucket string `env:"S3_BUCKET"`
	S3Prefix string `env:"S3_PREFIX" envDefault:"labels"`

	FFmpegBinary string `env:"FFMPEG_BINARY" envDefault:"ffmpeg"`
	FFmpegFPS    int    `env:"FFMPEG_FPS"    envDefault:"0"`
	TempDir      string `env:"TEMP_DIR"`

	Skeleton string `env:"SKELETON"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads and validates the process environment.
func Load() (*Config, error) {
	cfg, err := Parse()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Parse reads the process environment without cross-field validation, for
// callers that apply flag overrides before calling Validate.
func Parse() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads and validates vars instead of the process environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg, err := parse(env.Options{Prefix: Prefix, Environment: vars})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Validate checks cross-field rules.
func (c *Config) Validate() error {
	switch c.Sink {
	case export.KindDir, export.KindSQLite:
	case export.KindS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("%sS3_BUCKET is required when %sSINK=s3", Prefix, Prefix)
		}
	default:
		return fmt.Errorf("%sSINK=%q: want dir, sqlite or s3", Prefix, c.Sink)
	}
	if c.FFmpegFPS < 0 {
		return fmt.Errorf("%sFFMPEG_FPS must not be negative", Prefix)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Target returns the archive selected by the configuration.
func (c *Config) Target() export.Target {
	return export.Target{
		Kind:   c.Sink,
		Dir:    c.OutDir,
		DB:     c.DB,
		Bucket: c.S3Bucket,
		Prefix: c.S3Prefix,
	}
}

// Level returns the configured log level. Validate has already rejected
// unknown names.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
