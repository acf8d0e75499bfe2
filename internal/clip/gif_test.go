package clip

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPalette = color.Palette{
	color.RGBA{0, 0, 0, 0},
	color.RGBA{255, 0, 0, 255},
	color.RGBA{0, 255, 0, 255},
}

// writeGIF writes a 4x4 GIF: a red full frame followed by green 2x2
// patches in the top-left and bottom-right corners.
func writeGIF(t *testing.T, path string, disposal []byte) {
	t.Helper()

	full := image.NewPaletted(image.Rect(0, 0, 4, 4), testPalette)
	for i := range full.Pix {
		full.Pix[i] = 1
	}
	topLeft := image.NewPaletted(image.Rect(0, 0, 2, 2), testPalette)
	bottomRight := image.NewPaletted(image.Rect(2, 2, 4, 4), testPalette)
	for i := range topLeft.Pix {
		topLeft.Pix[i] = 2
		bottomRight.Pix[i] = 2
	}

	g := &gif.GIF{
		Image:    []*image.Paletted{full, topLeft, bottomRight},
		Delay:    []int{10, 10, 10},
		Disposal: disposal,
		Config:   image.Config{ColorModel: testPalette, Width: 4, Height: 4},
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gif.EncodeAll(f, g))
	require.NoError(t, f.Close())
}

func collect(t *testing.T, src FrameSource) []image.Image {
	t.Helper()
	var frames []image.Image
	for {
		img, err := src.Next()
		if errors.Is(err, io.EOF) {
			return frames
		}
		require.NoError(t, err)
		frames = append(frames, img)
	}
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestGif_AccumulatesFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.gif")
	writeGIF(t, path, []byte{gif.DisposalNone, gif.DisposalNone, gif.DisposalNone})
	ctx := context.Background()

	g := NewGif(path, 0, time.Now())
	n, err := g.NumberOfFrames(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	src, err := g.Frames(ctx)
	require.NoError(t, err)
	frames := collect(t, src)
	require.Len(t, frames, 3)

	red := color.RGBA{255, 0, 0, 255}
	green := color.RGBA{0, 255, 0, 255}

	for _, f := range frames {
		assert.Equal(t, image.Rect(0, 0, 4, 4), f.Bounds())
	}
	assert.Equal(t, red, rgbaAt(frames[0], 0, 0))
	assert.Equal(t, green, rgbaAt(frames[1], 0, 0))
	assert.Equal(t, red, rgbaAt(frames[1], 3, 3))
	// Frame 2 still shows frame 1's patch.
	assert.Equal(t, green, rgbaAt(frames[2], 0, 0))
	assert.Equal(t, green, rgbaAt(frames[2], 3, 3))
	// Earlier frames are snapshots, not views of the canvas.
	assert.Equal(t, red, rgbaAt(frames[0], 3, 3))

	_, err = g.Frames(ctx)
	assert.ErrorIs(t, err, ErrFramesConsumed)
}

func TestGif_Disposal(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("background clears the previous frame's area", func(t *testing.T) {
		path := filepath.Join(dir, "background.gif")
		writeGIF(t, path, []byte{gif.DisposalNone, gif.DisposalBackground, gif.DisposalNone})

		src, err := NewGif(path, 0, time.Now()).Frames(ctx)
		require.NoError(t, err)
		frames := collect(t, src)
		require.Len(t, frames, 3)

		assert.Equal(t, uint8(0), rgbaAt(frames[2], 0, 0).A)
		assert.Equal(t, color.RGBA{255, 0, 0, 255}, rgbaAt(frames[2], 3, 0))
	})

	t.Run("previous restores the canvas", func(t *testing.T) {
		path := filepath.Join(dir, "previous.gif")
		writeGIF(t, path, []byte{gif.DisposalNone, gif.DisposalPrevious, gif.DisposalNone})

		src, err := NewGif(path, 0, time.Now()).Frames(ctx)
		require.NoError(t, err)
		frames := collect(t, src)
		require.Len(t, frames, 3)

		assert.Equal(t, color.RGBA{255, 0, 0, 255}, rgbaAt(frames[2], 0, 0))
		assert.Equal(t, color.RGBA{0, 255, 0, 255}, rgbaAt(frames[2], 3, 3))
	})
}

func TestGif_DecodeError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gif")
	require.NoError(t, os.WriteFile(path, []byte("GIF89a broken"), 0o600))

	_, err := NewGif(path, 0, time.Now()).NumberOfFrames(context.Background())
	assert.Error(t, err)
}
