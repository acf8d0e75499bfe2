// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// Static errors for configuration validation.
var (
	// ErrRootNotFound is returned when the slideshow folder does not exist.
	ErrRootNotFound = errors.New("config: slideshow folder not found")
	// ErrInvalidConfig is returned when a value is out of range.
	ErrInvalidConfig = errors.New("config: invalid value")
)

// Config holds all configuration for the application.
type Config struct {
	// Folder layout. Empty paths are resolved against Root.
	Root          string `env:"SLIDESHOW_ROOT" json:"root"`
	OutputFile    string `env:"OUTPUT_FILE" json:"output_file"`
	ClipsDir      string `env:"CLIPS_DIR" json:"clips_dir"`
	FullscreenDir string `env:"FULLSCREEN_DIR" json:"fullscreen_dir"`
	CreditsFile   string `env:"CREDITS_FILE" json:"credits_file"`

	// Output video settings
	Width       int    `env:"OUTPUT_WIDTH, default=1280" json:"width" validate:"min=16,max=7680,even"`
	Height      int    `env:"OUTPUT_HEIGHT, default=720" json:"height" validate:"min=16,max=4320,even"`
	FPS         int    `env:"FPS, default=30" json:"fps" validate:"min=1,max=120"`
	VideoCRF    int    `env:"VIDEO_CRF, default=18" json:"video_crf" validate:"min=0,max=51"`
	VideoPreset string `env:"VIDEO_PRESET, default=medium" json:"video_preset" validate:"oneof=ultrafast superfast veryfast faster fast medium slow slower veryslow"`

	// Clip timing. MinClipFrames 0 means two seconds at FPS.
	MinClipFrames       int `env:"MIN_CLIP_FRAMES, default=0" json:"min_clip_frames" validate:"min=0"`
	FullscreenMaxFactor int `env:"FULLSCREEN_MAX_FACTOR, default=4" json:"fullscreen_max_factor" validate:"min=1,max=100"`
	StillFrames         int `env:"STILL_FRAMES, default=60" json:"still_frames" validate:"min=1"`

	// Tools
	FFmpegPath  string `env:"FFMPEG_PATH, default=ffmpeg" json:"ffmpeg_path" validate:"required"`
	FFprobePath string `env:"FFPROBE_PATH, default=ffprobe" json:"ffprobe_path" validate:"required"`

	// Storage settings
	TempDir string `env:"TEMP_DIR, default=/tmp/slideshow" json:"temp_dir" validate:"required"`

	// Optional S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty" validate:"omitempty,url"`
	S3KeyPrefix        string `env:"S3_KEY_PREFIX" json:"s3_key_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format" validate:"oneof=text json"`
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level" validate:"oneof=debug info warn warning error"`
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// Load reads configuration from environment variables using go-envconfig,
// resolves folder defaults and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if err := cfg.ResolvePaths(os.UserHomeDir); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolvePaths fills empty folder settings. Root defaults to
// ~/Desktop/slideshow; the other paths default to fixed names under Root.
func (c *Config) ResolvePaths(home func() (string, error)) error {
	if c.Root == "" {
		dir, err := home()
		if err != nil {
			return fmt.Errorf("config: resolve home directory: %w", err)
		}
		c.Root = filepath.Join(dir, "Desktop", "slideshow")
	}

	defaults := []struct {
		field *string
		name  string
	}{
		{&c.OutputFile, "slideshow.mp4"},
		{&c.ClipsDir, "clips"},
		{&c.FullscreenDir, "fullscreen"},
		{&c.CreditsFile, "credits.png"},
	}
	for _, d := range defaults {
		if *d.field == "" {
			*d.field = filepath.Join(c.Root, d.name)
		}
	}
	return nil
}

// EffectiveMinClipFrames returns MinClipFrames, or two seconds of frames
// when it is unset.
func (c *Config) EffectiveMinClipFrames() int {
	if c.MinClipFrames > 0 {
		return c.MinClipFrames
	}
	return 2 * c.FPS
}

// Validate checks value ranges and that the slideshow folder exists.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	info, err := os.Stat(c.Root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootNotFound, c.Root)
	}
	return nil
}

// newValidator returns a validator with the "even" rule registered.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("even", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%2 == 0
	})
	return v
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Root: %s, OutputFile: %s, Size: %dx%d, FPS: %d, MinClipFrames: %d, TempDir: %s, S3Bucket: %s, S3Region: %s, AWSAccessKeyID: %s, LogFormat: %s, LogLevel: %s}",
		c.Root,
		c.OutputFile,
		c.Width,
		c.Height,
		c.FPS,
		c.EffectiveMinClipFrames(),
		c.TempDir,
		c.S3Bucket,
		c.S3Region,
		mask(c.AWSAccessKeyID),
		c.LogFormat,
		c.LogLevel,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
