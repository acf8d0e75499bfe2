// Package clip models the media sources of a slideshow as clips: lazy,
// single-pass producers of raw frames that the correction engine stretches
// or trims into a fixed duration window.
package clip

import (
	"context"
	"errors"
	"image"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Kind identifies the clip variant.
type Kind int

const (
	// KindStill is a single photo animated with a slow zoom.
	KindStill Kind = iota
	// KindMovie is a video file.
	KindMovie
	// KindGif is an animated GIF.
	KindGif
	// KindMotionPhoto is a JPEG with an embedded MP4 stream.
	KindMotionPhoto
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindStill:
		return "still"
	case KindMovie:
		return "movie"
	case KindGif:
		return "gif"
	case KindMotionPhoto:
		return "motion_photo"
	default:
		return "unknown"
	}
}

// ErrFramesConsumed is returned when Frames is requested a second time.
var ErrFramesConsumed = errors.New("clip frames already consumed")

// FrameSource yields a clip's natural frames in order.
// Frames are raw: neither scaled nor rotated.
type FrameSource interface {
	// Next returns the next frame, or io.EOF when the clip is exhausted.
	Next() (image.Image, error)
	io.Closer
}

// Clip is a media source that produces frames lazily.
type Clip interface {
	// Path returns the file the clip was created from.
	Path() string
	// Kind returns the clip variant.
	Kind() Kind
	// Orientation returns the clockwise rotation in degrees, 0 or 90.
	// Movies may change it once their stream is opened.
	Orientation() int
	// CreatedAt returns the capture date used for ordering.
	CreatedAt() time.Time
	// NumberOfFrames returns the natural frame count. The result is memoized.
	NumberOfFrames(ctx context.Context) (int, error)
	// Frames starts the single pass over the clip's frames.
	Frames(ctx context.Context) (FrameSource, error)
	// Close releases any resources held by the clip.
	Close() error
}

// base holds the state shared by every clip variant.
type base struct {
	path        string
	kind        Kind
	orientation int
	createdAt   time.Time
	consumed    bool
}

func (b *base) Path() string         { return b.path }
func (b *base) Kind() Kind           { return b.kind }
func (b *base) Orientation() int     { return b.orientation }
func (b *base) CreatedAt() time.Time { return b.createdAt }

// claim marks the frame pass as started.
func (b *base) claim() error {
	if b.consumed {
		return ErrFramesConsumed
	}
	b.consumed = true
	return nil
}

// Stem returns the lower-case file name without extension.
func Stem(path string) string {
	name := filepath.Base(path)
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

// Less orders clips by creation date, then by Stem.
func Less(a, b Clip) bool {
	if !a.CreatedAt().Equal(b.CreatedAt()) {
		return a.CreatedAt().Before(b.CreatedAt())
	}
	return Stem(a.Path()) < Stem(b.Path())
}

// Sort orders clips in place with Less. Equal keys keep their input order.
func Sort(clips []Clip) {
	sort.SliceStable(clips, func(i, j int) bool { return Less(clips[i], clips[j]) })
}
