// Package compositor lays corrected frames out on the output canvas.
package compositor

import (
	"errors"
	"image"
	"image/draw"
)

// ErrNoSource is returned when Compose is called without any frame.
var ErrNoSource = errors.New("no frame to compose")

// Layout names how a tick was composed.
type Layout string

const (
	// LayoutFullscreen centers one frame on the whole canvas.
	LayoutFullscreen Layout = "fullscreen"
	// LayoutPaired shows a frame in each half.
	LayoutPaired Layout = "paired"
	// LayoutLeft shows a frame in the left half only.
	LayoutLeft Layout = "left"
	// LayoutRight shows a frame in the right half only.
	LayoutRight Layout = "right"
)

// LayoutOf returns the layout Compose uses for the given frames.
func LayoutOf(left, right, fullscreen image.Image) (Layout, error) {
	switch {
	case fullscreen != nil:
		return LayoutFullscreen, nil
	case left != nil && right != nil:
		return LayoutPaired, nil
	case left != nil:
		return LayoutLeft, nil
	case right != nil:
		return LayoutRight, nil
	default:
		return "", ErrNoSource
	}
}

// Compose clears canvas to opaque black and draws the frames on it.
// A fullscreen frame is centered on the canvas and left and right are
// ignored. Otherwise left is centered in the left half and right in the
// right half. Frames larger than their area are clipped.
func Compose(canvas *image.RGBA, left, right, fullscreen image.Image) error {
	if _, err := LayoutOf(left, right, fullscreen); err != nil {
		return err
	}

	bounds := canvas.Bounds()
	draw.Draw(canvas, bounds, image.Black, image.Point{}, draw.Src)

	if fullscreen != nil {
		drawCentered(canvas, bounds, fullscreen)
		return nil
	}

	half := bounds.Dx() / 2
	if left != nil {
		area := image.Rect(bounds.Min.X, bounds.Min.Y, bounds.Min.X+half, bounds.Max.Y)
		drawCentered(canvas, area, left)
	}
	if right != nil {
		area := image.Rect(bounds.Min.X+half, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
		drawCentered(canvas, area, right)
	}
	return nil
}

// CenterOffset returns the top-left corner that centers size inside area.
// Odd differences are truncated towards zero.
func CenterOffset(area image.Rectangle, size image.Point) image.Point {
	return image.Pt(
		area.Min.X+(area.Dx()-size.X)/2,
		area.Min.Y+(area.Dy()-size.Y)/2,
	)
}

func drawCentered(canvas *image.RGBA, area image.Rectangle, img image.Image) {
	src := img.Bounds()
	origin := CenterOffset(area, src.Size())
	dst := image.Rectangle{Min: origin, Max: origin.Add(src.Size())}.Intersect(area)
	if dst.Empty() {
		return
	}
	// Keep the source aligned with the unclipped rectangle.
	sp := src.Min.Add(dst.Min.Sub(origin))
	draw.Draw(canvas, dst, img, sp, draw.Over)
}
