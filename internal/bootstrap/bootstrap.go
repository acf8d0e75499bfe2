// Package bootstrap wires the slideshow recorder from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/maauso/slideshow/internal/clip"
	"github.com/maauso/slideshow/internal/config"
	"github.com/maauso/slideshow/internal/media"
	"github.com/maauso/slideshow/internal/metadata"
	"github.com/maauso/slideshow/internal/signature"
	"github.com/maauso/slideshow/internal/slideshow"
	"github.com/maauso/slideshow/internal/storage"
)

// Dependencies holds all initialized dependencies for a recording run.
type Dependencies struct {
	SlideShow *slideshow.SlideShow
	Storage   storage.Storage
	// Publish is true when the finished video should be uploaded.
	Publish bool
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...slideshow.Option) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	codec := media.NewFFmpegCodec(cfg.FFmpegPath, cfg.FFprobePath, store, logger)
	factory := clip.NewFactory(
		codec,
		metadata.NewEXIFReader(time.Local),
		signature.NewDetector(logger),
		logger,
		clip.WithStillFrames(cfg.StillFrames),
	)

	show, err := slideshow.New(Options(cfg), factory, codec, logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("create slideshow: %w", err)
	}

	return &Dependencies{
		SlideShow: show,
		Storage:   store,
		Publish:   cfg.S3Enabled(),
	}, nil
}

// Options maps the configuration onto recording options.
func Options(cfg *config.Config) slideshow.Options {
	return slideshow.Options{
		Width:               cfg.Width,
		Height:              cfg.Height,
		FPS:                 cfg.FPS,
		MinClipFrames:       cfg.EffectiveMinClipFrames(),
		FullscreenMaxFactor: cfg.FullscreenMaxFactor,
		OutputFile:          cfg.OutputFile,
		ClipsDir:            cfg.ClipsDir,
		FullscreenDir:       cfg.FullscreenDir,
		CreditsFile:         cfg.CreditsFile,
		CRF:                 cfg.VideoCRF,
		Preset:              cfg.VideoPreset,
	}
}

// initStorage creates the appropriate storage backend based on configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	if cfg.S3Enabled() {
		s3Cfg := storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			KeyPrefix:       cfg.S3KeyPrefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		}
		s3Store, err := storage.NewS3Storage(ctx, cfg.TempDir, s3Cfg)
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 storage configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return s3Store, nil
	}

	localStore, err := storage.NewLocalStorage(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", cfg.TempDir),
	)
	return localStore, nil
}
