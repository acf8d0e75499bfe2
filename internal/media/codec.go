// Package media provides video decoding, encoding and probing.
package media

import (
	"context"
	"image"
	"io"
	"time"
)

// Source identifies the bytes a decoder reads: either a file on disk or an
// in-memory byte range (used for streams embedded in photo containers).
type Source struct {
	// Path is the file to read. Ignored when Data is set.
	Path string
	// Data is an in-memory container.
	Data []byte
	// Name is a human-readable label used in logs and temp file names.
	Name string
}

// FileSource returns a Source reading path.
func FileSource(path string) Source {
	return Source{Path: path, Name: path}
}

// BytesSource returns a Source reading data. The slice must not be
// modified while a stream opened on it is alive.
func BytesSource(name string, data []byte) Source {
	return Source{Data: data, Name: name}
}

// InMemory reports whether the source is a byte range rather than a file.
func (s Source) InMemory() bool {
	return s.Data != nil
}

// StreamInfo describes the first video stream of a container.
type StreamInfo struct {
	// Width and Height are the coded dimensions, before any rotation.
	Width  int
	Height int
	// FrameCount is the number of video frames reported by the container.
	FrameCount int
	// CreationTime is the container creation time, zero if unknown.
	CreationTime time.Time
	// Tags holds stream metadata. "rotate" carries the clockwise display
	// rotation in degrees when the container declares one.
	Tags map[string]string
}

// Decoder opens streaming video decoders.
type Decoder interface {
	// Probe reads container metadata without decoding frames.
	Probe(ctx context.Context, src Source) (StreamInfo, error)

	// Open starts a decode stream. The stream must be closed by the caller.
	Open(ctx context.Context, src Source) (Stream, error)
}

// Stream is a single-pass sequence of decoded frames.
// Frames are returned unrotated at their coded size.
type Stream interface {
	// Info returns the metadata probed when the stream was opened.
	Info() StreamInfo

	// Metadata returns a stream metadata value by key.
	Metadata(key string) (string, bool)

	// NextFrame decodes the next frame. It returns io.EOF when the stream
	// is exhausted. Each returned image is owned by the caller.
	NextFrame() (image.Image, error)

	io.Closer
}

// EncodeOptions configures the output video.
type EncodeOptions struct {
	Width  int
	Height int
	FPS    int
	// CRF is the libx264 constant rate factor (0 = lossless, 51 = worst).
	CRF int
	// Preset is the libx264 speed preset.
	Preset string
}

// Encoder consumes composed frames and writes a video file.
type Encoder interface {
	// WriteFrame appends one frame. img must match the configured size.
	WriteFrame(img *image.RGBA) error

	// Close finalizes the output file.
	Close() error

	// Abort stops encoding and removes the partial output file.
	Abort() error
}

// EncoderOpener creates encoders.
type EncoderOpener interface {
	OpenEncoder(ctx context.Context, path string, opts EncodeOptions) (Encoder, error)
}

// TempStore spills in-memory sources to disk for tools that need a
// seekable file.
type TempStore interface {
	SaveTemp(ctx context.Context, name string, data io.Reader) (path string, err error)
	CleanupTemp(ctx context.Context, paths []string) error
}
