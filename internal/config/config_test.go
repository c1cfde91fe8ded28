package config

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/motionvdl/internal/export"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "dir", cfg.Sink)
	assert.Equal(t, "labels", cfg.OutDir)
	assert.Equal(t, "motionvdl.db", cfg.DB)
	assert.Equal(t, "ffmpeg", cfg.FFmpegBinary)
	assert.Equal(t, 0, cfg.FFmpegFPS)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
	assert.Equal(t, export.Target{Kind: "dir", Dir: "labels", DB: "motionvdl.db", Prefix: "labels"}, cfg.Target())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"MOTIONVDL_SINK":       "s3",
		"MOTIONVDL_S3_BUCKET":  "frames",
		"MOTIONVDL_S3_PREFIX":  "runs/a",
		"MOTIONVDL_FFMPEG_FPS": "5",
		"MOTIONVDL_SKELETON":   "mouse.cue",
		"MOTIONVDL_LOG_LEVEL":  "DEBUG",
	})
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.FFmpegFPS)
	assert.Equal(t, "mouse.cue", cfg.Skeleton)
	assert.Equal(t, slog.LevelDebug, cfg.Level())

	target := cfg.Target()
	assert.Equal(t, export.KindS3, target.Kind)
	assert.Equal(t, "frames", target.Bucket)
	assert.Equal(t, "runs/a", target.Prefix)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{"unknown sink", map[string]string{"MOTIONVDL_SINK": "tape"}, "want dir, sqlite or s3"},
		{"s3 without bucket", map[string]string{"MOTIONVDL_SINK": "s3"}, "S3_BUCKET is required"},
		{"negative fps", map[string]string{"MOTIONVDL_FFMPEG_FPS": "-1"}, "must not be negative"},
		{"bad fps", map[string]string{"MOTIONVDL_FFMPEG_FPS": "fast"}, "FFmpegFPS"},
		{"bad level", map[string]string{"MOTIONVDL_LOG_LEVEL": "loud"}, "unknown log level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_DefersValidation(t *testing.T) {
	t.Setenv("MOTIONVDL_SINK", "tape")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "tape", cfg.Sink)
	assert.Error(t, cfg.Validate())

	_, err = Load()
	assert.ErrorContains(t, err, "want dir, sqlite or s3")

	cfg.Sink = "sqlite"
	assert.NoError(t, cfg.Validate())
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, "level %q", in)
	}
}
