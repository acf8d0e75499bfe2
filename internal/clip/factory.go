package clip

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/slideshow/internal/media"
	"github.com/maauso/slideshow/internal/metadata"
	"github.com/maauso/slideshow/internal/signature"
)

// ErrUnsupportedExtension is returned for files no clip variant can read.
var ErrUnsupportedExtension = errors.New("unsupported file extension")

var (
	videoExtensions = map[string]bool{
		".mp4": true, ".mpeg": true, ".mpg": true, ".mov": true,
		".m4v": true, ".avi": true, ".mkv": true, ".webm": true,
	}
	motionPhotoExtensions = map[string]bool{".jpg": true, ".jpeg": true}
	stillExtensions       = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true, ".bmp": true,
		".tif": true, ".tiff": true, ".webp": true,
	}
)

// MotionPhotoDetector confirms that a JPEG embeds a video stream.
type MotionPhotoDetector interface {
	IsMotionPhotoCandidate(path string) bool
}

// Factory classifies files into clips.
type Factory struct {
	decoder     media.Decoder
	meta        metadata.Reader
	detector    MotionPhotoDetector
	logger      *slog.Logger
	stillFrames int
	now         func() time.Time
}

// Option configures a Factory.
type Option func(*Factory)

// WithStillFrames sets the natural frame count of stills.
func WithStillFrames(n int) Option {
	return func(f *Factory) {
		if n > 0 {
			f.stillFrames = n
		}
	}
}

// WithClock sets the time source used for clips without a capture date.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		if now != nil {
			f.now = now
		}
	}
}

// NewFactory creates a clip factory. A nil detector uses signature.NewDetector.
func NewFactory(decoder media.Decoder, meta metadata.Reader, detector MotionPhotoDetector, logger *slog.Logger, opts ...Option) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	if detector == nil {
		detector = signature.NewDetector(logger)
	}
	f := &Factory{
		decoder:     decoder,
		meta:        meta,
		detector:    detector,
		logger:      logger,
		stillFrames: DefaultStillFrames,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Classify creates the clip variant that can read path.
func (f *Factory) Classify(ctx context.Context, path string) (Clip, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case videoExtensions[ext]:
		return f.movie(ctx, path), nil

	case ext == ".gif":
		info := f.readMetadata(path)
		return NewGif(path, info.RotationDegrees(), f.createdAt(info.Dates)), nil

	case motionPhotoExtensions[ext] && f.detector.IsMotionPhotoCandidate(path):
		info := f.readMetadata(path)
		mp, err := NewMotionPhoto(path, info.RotationDegrees(), f.createdAt(info.Dates), f.decoder, f.logger)
		if err == nil {
			return mp, nil
		}
		f.logger.Warn("motion photo unreadable, using still",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)
		return NewStill(path, info.RotationDegrees(), f.createdAt(info.Dates), f.stillFrames), nil

	case stillExtensions[ext]:
		info := f.readMetadata(path)
		return NewStill(path, info.RotationDegrees(), f.createdAt(info.Dates), f.stillFrames), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedExtension, path)
	}
}

// movie probes the container once for its creation time and frame count.
// Orientation starts at 0 and is taken from the stream when it opens.
func (f *Factory) movie(ctx context.Context, path string) *Movie {
	var dates []time.Time
	var frames int

	info, err := f.decoder.Probe(ctx, media.FileSource(path))
	if err != nil {
		f.logger.Warn("cannot probe movie",
			slog.String("file", path),
			slog.String("error", err.Error()),
		)
	} else {
		dates = append(dates, info.CreationTime)
		frames = info.FrameCount
	}

	m := NewMovie(path, 0, f.createdAt(dates), f.decoder, f.logger)
	m.SetFrameCount(frames)
	return m
}

func (f *Factory) readMetadata(path string) metadata.Info {
	info, err := f.meta.Read(path)
	if err != nil {
		if errors.Is(err, metadata.ErrNoMetadata) {
			f.logger.Debug("no EXIF metadata", slog.String("file", path))
		} else {
			f.logger.Warn("cannot read metadata",
				slog.String("file", path),
				slog.String("error", err.Error()),
			)
		}
	}
	return info
}

func (f *Factory) createdAt(dates []time.Time) time.Time {
	if d, ok := metadata.Earliest(dates); ok {
		return d
	}
	return f.now()
}
