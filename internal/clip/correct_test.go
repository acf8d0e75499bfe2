package clip

import (
	"context"
	"errors"
	"image"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindow_Validate(t *testing.T) {
	w, err := Window{Min: 60}.Validate()
	require.NoError(t, err)
	assert.Equal(t, 120, w.Max)

	w, err = Window{Min: 60, Max: 240}.Validate()
	require.NoError(t, err)
	assert.Equal(t, 240, w.Max)

	_, err = Window{Min: 0}.Validate()
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Window{Min: 60, Max: 30}.Validate()
	assert.ErrorIs(t, err, ErrInvalidWindow)

	assert.Equal(t, Window{Min: 60, Max: 120}, NewWindow(60))
}

func TestPlanFor(t *testing.T) {
	w := NewWindow(60)
	tests := []struct {
		name string
		n    int
		w    Window
		want Plan
	}{
		{"empty", 0, w, Plan{Natural: 0, Duplicate: 1}},
		{"single frame fills the minimum", 1, w, Plan{Natural: 1, Duplicate: 60, Length: 60}},
		{"short clip duplicated", 7, w, Plan{Natural: 7, Duplicate: 8, Length: 56}},
		{"exact minimum", 60, w, Plan{Natural: 60, Duplicate: 1, Length: 60}},
		{"within window", 100, w, Plan{Natural: 100, Duplicate: 1, Length: 100}},
		{"long clip trimmed", 300, w, Plan{Natural: 300, Duplicate: 1, Trim: 180, Length: 120}},
		{"fullscreen window", 300, Window{Min: 60, Max: 240}, Plan{Natural: 300, Duplicate: 1, Trim: 60, Length: 240}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PlanFor(tt.n, tt.w)
			assert.Equal(t, tt.want, got)
			if tt.n > 0 {
				assert.Equal(t, min(tt.n*got.Duplicate, tt.w.Max), got.Length)
			}
		})
	}
}

func drain(t *testing.T, seq *Sequence) []image.Image {
	t.Helper()
	var out []image.Image
	for {
		img, err := seq.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, img)
	}
}

func TestCorrect(t *testing.T) {
	ctx := context.Background()
	box := image.Pt(100, 50)

	t.Run("short clip is duplicated", func(t *testing.T) {
		c := newFakeClip("short.mp4", 10, box)
		seq, err := Correct(ctx, c, NewWindow(60), box, nil)
		require.NoError(t, err)

		frames := drain(t, seq)
		require.Len(t, frames, 60)
		assert.Equal(t, 60, seq.Len())
		for i, f := range frames {
			assert.Equal(t, uint8(i/6), redOf(f), "frame %d", i)
			assert.Equal(t, image.Pt(100, 50), f.Bounds().Size())
		}
		assert.Same(t, frames[0], frames[5])

		require.NoError(t, seq.Close())
		assert.True(t, c.closed)
	})

	t.Run("long clip loses its front", func(t *testing.T) {
		c := newFakeClip("long.mp4", 200, image.Pt(100, 50))
		seq, err := Correct(ctx, c, NewWindow(60), box, nil)
		require.NoError(t, err)

		frames := drain(t, seq)
		require.Len(t, frames, 120)
		assert.Equal(t, uint8(80), redOf(frames[0]))
		assert.Equal(t, uint8(199), redOf(frames[119]))
	})

	t.Run("duplicated clips stay within max", func(t *testing.T) {
		c := newFakeClip("dup.mp4", 7, box)
		seq, err := Correct(ctx, c, Window{Min: 20, Max: 20}, box, nil)
		require.NoError(t, err)
		assert.Equal(t, Plan{Natural: 7, Duplicate: 2, Length: 14}, seq.Plan())
		assert.Len(t, drain(t, seq), 14)
	})

	t.Run("max below min is rejected", func(t *testing.T) {
		c := newFakeClip("dup.mp4", 7, box)
		seq, err := Correct(ctx, c, Window{Min: 20, Max: 19}, box, nil)
		assert.ErrorIs(t, err, ErrInvalidWindow)
		assert.Nil(t, seq)
		assert.Equal(t, 0, c.countCalls)
	})

	t.Run("rotation applied after fitting", func(t *testing.T) {
		c := newFakeClip("portrait.mp4", 60, image.Pt(40, 20))
		c.orientation = 90
		seq, err := Correct(ctx, c, NewWindow(60), box, nil)
		require.NoError(t, err)

		img, err := seq.Next()
		require.NoError(t, err)
		assert.Equal(t, image.Pt(25, 50), img.Bounds().Size())
	})

	t.Run("empty clip", func(t *testing.T) {
		c := newFakeClip("empty.gif", 0, image.Pt(10, 10))
		seq, err := Correct(ctx, c, NewWindow(60), box, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, seq.Len())
		assert.Empty(t, drain(t, seq))
		require.NoError(t, seq.Close())
		assert.True(t, c.closed)
	})

	t.Run("invalid window", func(t *testing.T) {
		_, err := Correct(ctx, newFakeClip("a.mp4", 5, box), Window{}, box, nil)
		assert.ErrorIs(t, err, ErrInvalidWindow)
	})

	t.Run("count is read once", func(t *testing.T) {
		c := newFakeClip("a.mp4", 5, box)
		_, err := Correct(ctx, c, NewWindow(60), box, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, c.countCalls)
	})

	t.Run("frames error", func(t *testing.T) {
		c := newFakeClip("a.mp4", 5, box)
		c.frameErr = errors.New("cannot open")
		_, err := Correct(ctx, c, NewWindow(60), box, nil)
		assert.ErrorIs(t, err, c.frameErr)
	})

	t.Run("source shorter than reported", func(t *testing.T) {
		c := newFakeClip("a.mp4", 5, box)
		seq, err := Correct(ctx, c, NewWindow(60), box, nil)
		require.NoError(t, err)
		seq.src.(*fakeFrames).n = 3
		frames := drain(t, seq)
		assert.Len(t, frames, 36)
	})

	t.Run("sequence is single pass", func(t *testing.T) {
		c := newFakeClip("a.mp4", 5, box)
		_, err := Correct(ctx, c, NewWindow(60), box, nil)
		require.NoError(t, err)
		_, err = Correct(ctx, c, NewWindow(60), box, nil)
		assert.ErrorIs(t, err, ErrFramesConsumed)
	})
}
