package clip

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	// Still image formats.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/maauso/slideshow/internal/frame"
)

// DefaultStillFrames is the natural length of a still: two seconds at 30 fps.
const DefaultStillFrames = 60

// zoomStep is the fraction of each dimension trimmed per side per frame.
const zoomStep = 0.002

// Still is a photo rendered as a slow zoom towards its center.
type Still struct {
	base
	frames int
}

// NewStill creates a still clip with the given natural frame count.
// frames <= 0 selects DefaultStillFrames.
func NewStill(path string, orientation int, createdAt time.Time, frames int) *Still {
	if frames <= 0 {
		frames = DefaultStillFrames
	}
	return &Still{
		base: base{
			path:        path,
			kind:        KindStill,
			orientation: orientation,
			createdAt:   createdAt,
		},
		frames: frames,
	}
}

// NumberOfFrames returns the configured constant frame count.
func (s *Still) NumberOfFrames(context.Context) (int, error) {
	return s.frames, nil
}

// Frames decodes the photo and yields progressively tighter crops of it.
func (s *Still) Frames(context.Context) (FrameSource, error) {
	if err := s.claim(); err != nil {
		return nil, err
	}

	img, err := decodeImage(s.path)
	if err != nil {
		return nil, err
	}
	return &stillFrames{img: img, total: s.frames}, nil
}

// Close is a no-op; the decoded photo is owned by the frame source.
func (s *Still) Close() error {
	return nil
}

// ZoomRegion returns the crop of bounds shown at frame i. Each frame trims
// floor(i*w*0.002) columns and floor(i*h*0.002) rows from both sides. The
// region never shrinks below one pixel.
func ZoomRegion(bounds image.Rectangle, i int) image.Rectangle {
	w, h := bounds.Dx(), bounds.Dy()
	dx := int(float64(i) * float64(w) * zoomStep)
	dy := int(float64(i) * float64(h) * zoomStep)

	rw, rh := w-2*dx, h-2*dy
	if rw < 1 {
		dx, rw = (w-1)/2, 1
	}
	if rh < 1 {
		dy, rh = (h-1)/2, 1
	}

	origin := bounds.Min.Add(image.Pt(dx, dy))
	return image.Rectangle{Min: origin, Max: origin.Add(image.Pt(rw, rh))}
}

type stillFrames struct {
	img   image.Image
	total int
	next  int
}

func (f *stillFrames) Next() (image.Image, error) {
	if f.img == nil || f.next >= f.total {
		return nil, io.EOF
	}
	region := ZoomRegion(f.img.Bounds(), f.next)
	f.next++
	return frame.Crop(f.img, region), nil
}

func (f *stillFrames) Close() error {
	f.img = nil
	return nil
}

// decodeImage decodes any registered still format.
func decodeImage(path string) (image.Image, error) {
	file, err := os.Open(path) // #nosec G304 - path comes from the scanned slideshow folder
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer func() { _ = file.Close() }()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}
