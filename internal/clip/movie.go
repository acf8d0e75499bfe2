package clip

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/maauso/slideshow/internal/media"
	"github.com/maauso/slideshow/internal/signature"
)

// SourceFunc returns the bytes a movie decodes. It is called on every open.
type SourceFunc func() (media.Source, error)

// Movie is a clip backed by a streaming video decoder.
type Movie struct {
	base
	decoder media.Decoder
	source  SourceFunc
	logger  *slog.Logger

	count   int
	counted bool
}

// NewMovie creates a movie clip that decodes path.
func NewMovie(path string, orientation int, createdAt time.Time, decoder media.Decoder, logger *slog.Logger) *Movie {
	return newMovie(KindMovie, path, orientation, createdAt, decoder, func() (media.Source, error) {
		return media.FileSource(path), nil
	}, logger)
}

func newMovie(kind Kind, path string, orientation int, createdAt time.Time, decoder media.Decoder, source SourceFunc, logger *slog.Logger) *Movie {
	if logger == nil {
		logger = slog.Default()
	}
	return &Movie{
		base: base{
			path:        path,
			kind:        kind,
			orientation: orientation,
			createdAt:   createdAt,
		},
		decoder: decoder,
		source:  source,
		logger:  logger,
	}
}

// SetFrameCount memoizes a frame count already known from probing.
func (m *Movie) SetFrameCount(n int) {
	if n > 0 {
		m.count, m.counted = n, true
	}
}

// NumberOfFrames asks the decoder for the stream's frame count once.
func (m *Movie) NumberOfFrames(ctx context.Context) (int, error) {
	if m.counted {
		return m.count, nil
	}

	src, err := m.source()
	if err != nil {
		return 0, err
	}
	info, err := m.decoder.Probe(ctx, src)
	if err != nil {
		return 0, fmt.Errorf("count frames of %s: %w", m.path, err)
	}

	m.count, m.counted = info.FrameCount, true
	return m.count, nil
}

// Frames opens the decode stream. A rotation declared by the stream
// replaces the orientation read from EXIF.
func (m *Movie) Frames(ctx context.Context) (FrameSource, error) {
	if err := m.claim(); err != nil {
		return nil, err
	}

	src, err := m.source()
	if err != nil {
		return nil, err
	}
	stream, err := m.decoder.Open(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", m.path, err)
	}

	if !m.counted {
		m.count, m.counted = stream.Info().FrameCount, true
	}

	if raw, ok := stream.Metadata("rotate"); ok {
		rotation := streamOrientation(raw)
		if rotation != m.orientation {
			m.logger.Info("stream rotation overrides orientation",
				slog.String("file", m.path),
				slog.Int("exif", m.orientation),
				slog.Int("stream", rotation),
			)
			m.orientation = rotation
		}
	}

	return &streamFrames{stream: stream}, nil
}

// Close is a no-op; the stream is owned by the frame source.
func (m *Movie) Close() error {
	return nil
}

// streamOrientation maps a rotate tag to a clip orientation.
func streamOrientation(raw string) int {
	deg, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	if media.NormalizeRotation(deg) == 90 {
		return 90
	}
	return 0
}

type streamFrames struct {
	stream media.Stream
}

func (f *streamFrames) Next() (image.Image, error) {
	return f.stream.NextFrame()
}

func (f *streamFrames) Close() error {
	return f.stream.Close()
}

// MotionPhoto is a movie whose stream is embedded in a JPEG.
type MotionPhoto struct {
	*Movie
}

// NewMotionPhoto creates a motion photo clip. It fails with
// signature.ErrMarkerNotFound when path holds no embedded stream.
func NewMotionPhoto(path string, orientation int, createdAt time.Time, decoder media.Decoder, logger *slog.Logger) (*MotionPhoto, error) {
	if _, err := signature.ReadEmbeddedVideo(path); err != nil {
		return nil, err
	}

	source := func() (media.Source, error) {
		data, err := signature.ReadEmbeddedVideo(path)
		if err != nil {
			return media.Source{}, err
		}
		return media.BytesSource(path, data), nil
	}
	return &MotionPhoto{
		Movie: newMovie(KindMotionPhoto, path, orientation, createdAt, decoder, source, logger),
	}, nil
}
