// Package frame provides the pixel operations applied to decoded frames:
// aspect-preserving resize, rotation and rectangular crops.
package frame

import (
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Fit scales img so that it fits inside box while preserving its aspect
// ratio. Unlike imaging.Fit it also enlarges images smaller than box, so
// small sources still fill their slot.
func Fit(img image.Image, box image.Point) image.Image {
	b := img.Bounds()
	if b.Empty() || box.X <= 0 || box.Y <= 0 {
		return img
	}

	w, h := FitSize(b.Size(), box)
	if w == b.Dx() && h == b.Dy() {
		return img
	}
	return imaging.Resize(img, w, h, imaging.Linear)
}

// FitSize returns the largest size with the aspect ratio of src that fits
// inside box. Both dimensions are at least 1.
func FitSize(src, box image.Point) (int, int) {
	scale := math.Min(float64(box.X)/float64(src.X), float64(box.Y)/float64(src.Y))
	w := int(math.Round(float64(src.X) * scale))
	h := int(math.Round(float64(src.Y) * scale))
	w = max(1, min(w, box.X))
	h = max(1, min(h, box.Y))
	return w, h
}

// Rotate turns img clockwise by degrees. Only quarter turns are applied;
// any other value returns img unchanged.
func Rotate(img image.Image, degrees int) image.Image {
	switch normalize(degrees) {
	case 90:
		// imaging rotates counter-clockwise.
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// Orient resizes img to fit box and then rotates it clockwise by degrees.
// For quarter turns the resize targets the transposed box so that the
// rotated result fits box.
func Orient(img image.Image, box image.Point, degrees int) image.Image {
	d := normalize(degrees)
	if d == 90 || d == 270 {
		return Rotate(Fit(img, image.Pt(box.Y, box.X)), d)
	}
	return Rotate(Fit(img, box), d)
}

// Crop returns the part of img inside rect. The result shares pixels with
// img when the source supports SubImage.
func Crop(img image.Image, rect image.Rectangle) image.Image {
	rect = rect.Intersect(img.Bounds())
	if sub, ok := img.(interface {
		SubImage(r image.Rectangle) image.Image
	}); ok {
		return sub.SubImage(rect)
	}
	return imaging.Crop(img, rect)
}

func normalize(degrees int) int {
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return d
}
