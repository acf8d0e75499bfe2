// Package main provides the entry point for the slideshow recorder.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/maauso/slideshow/internal/bootstrap"
	"github.com/maauso/slideshow/internal/config"
	"github.com/maauso/slideshow/internal/runid"
	"github.com/maauso/slideshow/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Create structured logger
	id := runid.Generate()
	logger := cfg.NewLogger().With(slog.String("run_id", id))
	slog.SetDefault(logger)

	logger.Info("starting slideshow",
		slog.String("root", cfg.Root),
		slog.String("output", cfg.OutputFile),
		slog.Int("width", cfg.Width),
		slog.Int("height", cfg.Height),
		slog.Int("fps", cfg.FPS),
		slog.Int("min_clip_frames", cfg.EffectiveMinClipFrames()),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	// Stop recording on interrupt; the partial output is removed
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}

	result, err := deps.SlideShow.Record(ctx)
	if err != nil {
		return fmt.Errorf("record slideshow: %w", err)
	}

	if deps.Publish {
		url, err := storage.PublishFile(ctx, deps.Storage, result.OutputFile, id)
		if err != nil {
			return fmt.Errorf("publish video: %w", err)
		}
		logger.Info("video published", slog.String("url", url))
	}

	fmt.Printf("%s (%.2f minutes)\n", result.OutputFile, result.Minutes())
	return nil
}
