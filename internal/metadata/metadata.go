// Package metadata reads the orientation and capture dates that order and
// rotate slideshow clips.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
)

// EXIF orientation values. Only "rotate 90 clockwise" is acted upon.
const (
	OrientationNormal   = 1
	OrientationRotate90 = 6
)

// exifDateLayout is the fixed EXIF date format.
const exifDateLayout = "2006:01:02 15:04:05"

// ErrNoMetadata is returned when a file carries no readable EXIF block.
var ErrNoMetadata = errors.New("no EXIF metadata")

// dateFields are the candidate creation dates, in no particular order;
// the earliest wins.
var dateFields = []exif.FieldName{
	exif.DateTimeOriginal,
	exif.DateTimeDigitized,
	exif.DateTime,
}

// Info holds the metadata fields a clip cares about.
type Info struct {
	// Orientation is the raw EXIF orientation tag, 0 when absent.
	Orientation int
	// Dates holds every date-like field found.
	Dates []time.Time
}

// RotationDegrees converts the EXIF orientation into the clockwise rotation
// needed to display the image upright. Only 90 degrees is supported; every
// other orientation maps to 0.
func (i Info) RotationDegrees() int {
	if i.Orientation == OrientationRotate90 {
		return 90
	}
	return 0
}

// Earliest returns the minimum of Dates and true, or the zero time and
// false when no dates were found.
func (i Info) Earliest() (time.Time, bool) {
	return Earliest(i.Dates)
}

// Earliest returns the minimum of dates, ignoring zero values.
func Earliest(dates []time.Time) (time.Time, bool) {
	var best time.Time
	found := false
	for _, d := range dates {
		if d.IsZero() {
			continue
		}
		if !found || d.Before(best) {
			best = d
			found = true
		}
	}
	return best, found
}

// Reader extracts Info from files.
type Reader interface {
	Read(path string) (Info, error)
}

// EXIFReader implements Reader with goexif.
type EXIFReader struct {
	// location is used to interpret EXIF dates, which carry no zone.
	location *time.Location
}

// NewEXIFReader creates an EXIFReader. If loc is nil, time.Local is used.
func NewEXIFReader(loc *time.Location) *EXIFReader {
	if loc == nil {
		loc = time.Local
	}
	return &EXIFReader{location: loc}
}

// Read decodes the EXIF block of path. Files without EXIF (PNG, GIF, most
// videos) return ErrNoMetadata with an empty Info.
func (r *EXIFReader) Read(path string) (Info, error) {
	f, err := os.Open(path) // #nosec G304 - path comes from the scanned slideshow folder
	if err != nil {
		return Info{}, fmt.Errorf("open for metadata: %w", err)
	}
	defer func() { _ = f.Close() }()

	x, err := exif.Decode(f)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNoMetadata, err)
	}

	var info Info
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			info.Orientation = v
		}
	}

	for _, field := range dateFields {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if d, ok := ParseDate(s, r.location); ok {
			info.Dates = append(info.Dates, d)
		}
	}

	return info, nil
}

// ParseDate parses an EXIF date string in loc. Cameras pad unknown dates
// with zeros or spaces; those are reported as not ok.
func ParseDate(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimRight(s, "\x00 ")
	if s == "" || strings.HasPrefix(s, "0000") {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(exifDateLayout, s, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}
