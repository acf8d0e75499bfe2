// Package signature classifies raw media bytes and locates video streams
// embedded in photo containers ("motion photos").
//
// Google cameras write motion photos as a regular JPEG followed by a complete
// MP4 file. There is no standard index to the embedded stream, so the MP4 is
// found by scanning for the "ftyp" box header and backing up over the box
// length field that precedes it.
package signature

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrMarkerNotFound is returned when the embedded MP4 marker is absent
// from data that was expected to contain a motion photo.
var ErrMarkerNotFound = errors.New("embedded video marker not found")

// mp4Marker is the "ftyp" box tag plus the major brand used by motion photos.
var mp4Marker = []byte("ftypmp42")

// boxLengthSize is the width of the big-endian size field that precedes the
// "ftyp" tag. The embedded container starts this many bytes before the marker.
const boxLengthSize = 4

// Marker returns a copy of the byte sequence searched for by the detector.
func Marker() []byte {
	return append([]byte(nil), mp4Marker...)
}

// IsMotionPhotoName reports whether a file name follows one of the motion
// photo naming conventions: an "MVIMG" prefix or an "_MP" suffix before the
// extension. Matching is case-insensitive.
func IsMotionPhotoName(name string) bool {
	base := strings.ToLower(filepath.Base(name))
	if strings.HasPrefix(base, "mvimg") {
		return true
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.HasSuffix(stem, "_mp")
}

// Locate returns the offset of the embedded MP4 container in data, or -1
// when no usable marker exists.
func Locate(data []byte) int {
	idx := bytes.Index(data, mp4Marker)
	if idx < boxLengthSize {
		return -1
	}
	return idx - boxLengthSize
}

// ExtractEmbeddedVideo returns the slice of data holding the embedded MP4
// container, from its box length field to the end of the buffer.
// The returned slice aliases data.
func ExtractEmbeddedVideo(data []byte) ([]byte, error) {
	start := Locate(data)
	if start < 0 {
		return nil, ErrMarkerNotFound
	}
	return data[start:], nil
}

// Detector inspects files on disk for embedded video streams.
type Detector struct {
	logger *slog.Logger
}

// NewDetector creates a Detector. If logger is nil, slog.Default() is used.
func NewDetector(logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{logger: logger}
}

// IsMotionPhotoCandidate reports whether path is named like a motion photo
// and actually contains the embedded MP4 marker.
//
// A name match without a marker is logged and reported as false so that the
// caller falls back to still-image handling. Read errors are treated the same
// way.
func (d *Detector) IsMotionPhotoCandidate(path string) bool {
	if !IsMotionPhotoName(path) {
		return false
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from the scanned slideshow folder
	if err != nil {
		d.logger.Warn("cannot read motion photo candidate",
			slog.String("file", filepath.Base(path)),
			slog.String("error", err.Error()),
		)
		return false
	}

	if Locate(data) < 0 {
		d.logger.Warn("motion photo name without MP4 marker",
			slog.String("file", filepath.Base(path)),
		)
		return false
	}
	return true
}

// ReadEmbeddedVideo reads path and returns its embedded MP4 stream.
// The offset is recomputed on every call.
func ReadEmbeddedVideo(path string) ([]byte, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from the scanned slideshow folder
	if err != nil {
		return nil, fmt.Errorf("read motion photo: %w", err)
	}
	video, err := ExtractEmbeddedVideo(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return video, nil
}
