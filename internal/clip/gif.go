package clip

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	"io"
	"os"
	"time"
)

// Gif is an animated GIF. Each frame is the running canvas after the
// sub-image of that index has been drawn.
type Gif struct {
	base
	decoded *gif.GIF
}

// NewGif creates a GIF clip.
func NewGif(path string, orientation int, createdAt time.Time) *Gif {
	return &Gif{
		base: base{
			path:        path,
			kind:        KindGif,
			orientation: orientation,
			createdAt:   createdAt,
		},
	}
}

// NumberOfFrames returns the number of images in the GIF.
func (g *Gif) NumberOfFrames(context.Context) (int, error) {
	if err := g.load(); err != nil {
		return 0, err
	}
	return len(g.decoded.Image), nil
}

// Frames yields the composited canvas once per sub-image.
func (g *Gif) Frames(context.Context) (FrameSource, error) {
	if err := g.claim(); err != nil {
		return nil, err
	}
	if err := g.load(); err != nil {
		return nil, err
	}

	decoded := g.decoded
	g.decoded = nil
	return newGifFrames(decoded), nil
}

// Close drops the decoded GIF.
func (g *Gif) Close() error {
	g.decoded = nil
	return nil
}

func (g *Gif) load() error {
	if g.decoded != nil {
		return nil
	}
	f, err := os.Open(g.path) // #nosec G304 - path comes from the scanned slideshow folder
	if err != nil {
		return fmt.Errorf("open gif: %w", err)
	}
	defer func() { _ = f.Close() }()

	decoded, err := gif.DecodeAll(f)
	if err != nil {
		return fmt.Errorf("decode gif %s: %w", g.path, err)
	}
	g.decoded = decoded
	return nil
}

type gifFrames struct {
	g        *gif.GIF
	canvas   *image.RGBA
	previous *image.RGBA
	next     int
}

func newGifFrames(g *gif.GIF) *gifFrames {
	bounds := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if bounds.Empty() {
		for _, img := range g.Image {
			bounds = bounds.Union(img.Bounds())
		}
	}
	return &gifFrames{g: g, canvas: image.NewRGBA(bounds)}
}

func (f *gifFrames) Next() (image.Image, error) {
	if f.g == nil || f.next >= len(f.g.Image) {
		return nil, io.EOF
	}

	if f.next > 0 {
		f.dispose(f.next - 1)
	}

	img := f.g.Image[f.next]
	if f.disposal(f.next) == gif.DisposalPrevious {
		f.previous = cloneRGBA(f.canvas)
	}
	draw.Draw(f.canvas, img.Bounds(), img, img.Bounds().Min, draw.Over)
	f.next++

	return cloneRGBA(f.canvas), nil
}

// dispose applies the disposal method of frame i before the next frame is drawn.
func (f *gifFrames) dispose(i int) {
	switch f.disposal(i) {
	case gif.DisposalBackground:
		draw.Draw(f.canvas, f.g.Image[i].Bounds(), image.Transparent, image.Point{}, draw.Src)
	case gif.DisposalPrevious:
		if f.previous != nil {
			draw.Draw(f.canvas, f.canvas.Bounds(), f.previous, f.previous.Bounds().Min, draw.Src)
			f.previous = nil
		}
	}
}

func (f *gifFrames) disposal(i int) byte {
	if i < len(f.g.Disposal) {
		return f.g.Disposal[i]
	}
	return gif.DisposalNone
}

func (f *gifFrames) Close() error {
	f.g = nil
	f.canvas = nil
	f.previous = nil
	return nil
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	dst := image.NewRGBA(src.Bounds())
	copy(dst.Pix, src.Pix)
	return dst
}
