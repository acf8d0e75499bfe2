package slideshow

import (
	"context"
	"errors"
	"image"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/maauso/slideshow/internal/clip"
	"github.com/maauso/slideshow/internal/compositor"
	"github.com/maauso/slideshow/internal/media"
)

// MockEncoder is a mock implementation of media.Encoder.
type MockEncoder struct {
	mock.Mock
}

func (m *MockEncoder) WriteFrame(img *image.RGBA) error {
	args := m.Called(img)
	return args.Error(0)
}

func (m *MockEncoder) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockEncoder) Abort() error {
	args := m.Called()
	return args.Error(0)
}

// MockEncoderOpener is a mock implementation of media.EncoderOpener.
type MockEncoderOpener struct {
	mock.Mock
}

func (m *MockEncoderOpener) OpenEncoder(ctx context.Context, path string, opts media.EncodeOptions) (media.Encoder, error) {
	args := m.Called(ctx, path, opts)
	if e := args.Get(0); e != nil {
		return e.(media.Encoder), args.Error(1)
	}
	return nil, args.Error(1)
}

// testClip yields n solid frames of a fixed size.
type testClip struct {
	path    string
	n       int
	created time.Time
	closed  bool
}

func (c *testClip) Path() string                                { return c.path }
func (c *testClip) Kind() clip.Kind                             { return clip.KindMovie }
func (c *testClip) Orientation() int                            { return 0 }
func (c *testClip) CreatedAt() time.Time                        { return c.created }
func (c *testClip) NumberOfFrames(context.Context) (int, error) { return c.n, nil }
func (c *testClip) Close() error                                { c.closed = true; return nil }

func (c *testClip) Frames(context.Context) (clip.FrameSource, error) {
	return &testFrames{n: c.n}, nil
}

type testFrames struct {
	n, next int
}

func (f *testFrames) Next() (image.Image, error) {
	if f.next >= f.n {
		return nil, io.EOF
	}
	f.next++
	return image.NewRGBA(image.Rect(0, 0, 8, 8)), nil
}

func (f *testFrames) Close() error { return nil }

// fakeFactory serves prepared clips by path.
type fakeFactory struct {
	clips map[string]*testClip
	errs  map[string]error
}

func (f *fakeFactory) Classify(_ context.Context, path string) (clip.Clip, error) {
	if err, ok := f.errs[path]; ok {
		return nil, err
	}
	c, ok := f.clips[path]
	if !ok {
		return nil, clip.ErrUnsupportedExtension
	}
	return c, nil
}

func lister(dirs map[string][]string) Lister {
	return func(dir string) ([]string, error) {
		return dirs[dir], nil
	}
}

var base = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return base.Add(time.Duration(minutes) * time.Minute)
}

func testOptions(root string) Options {
	opts := DefaultOptions(root)
	opts.Width, opts.Height = 40, 20
	return opts
}

func newEncoder(t *testing.T, opts Options) (*MockEncoderOpener, *MockEncoder) {
	t.Helper()
	enc := new(MockEncoder)
	opener := new(MockEncoderOpener)
	opener.On("OpenEncoder", mock.Anything, opts.OutputFile, mock.MatchedBy(func(o media.EncodeOptions) bool {
		return o.Width == opts.Width && o.Height == opts.Height && o.FPS == opts.FPS
	})).Return(enc, nil)
	return opener, enc
}

func record(t *testing.T, opts Options, factory ClipFactory, dirs map[string][]string, opener media.EncoderOpener) ([]Tick, *Result, error) {
	t.Helper()
	var ticks []Tick
	ss, err := New(opts, factory, opener, nil,
		WithLister(lister(dirs)),
		WithTickObserver(func(tk Tick) { ticks = append(ticks, tk) }),
	)
	require.NoError(t, err)
	res, err := ss.Record(context.Background())
	return ticks, res, err
}

func layouts(ticks []Tick) []compositor.Layout {
	out := make([]compositor.Layout, len(ticks))
	for i, tk := range ticks {
		out[i] = tk.Layout
	}
	return out
}

func TestRecord_PairsThenDrainsSolo(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	opts.MinClipFrames = 3

	long := &testClip{path: "/c/long.mp4", n: 5, created: at(1)}
	short := &testClip{path: "/c/short.mp4", n: 3, created: at(2)}
	factory := &fakeFactory{clips: map[string]*testClip{long.path: long, short.path: short}}

	opener, enc := newEncoder(t, opts)
	enc.On("WriteFrame", mock.Anything).Return(nil)
	enc.On("Close").Return(nil).Once()

	// Listing order differs from clip order.
	ticks, res, err := record(t, opts, factory, map[string][]string{
		opts.ClipsDir: {short.path, long.path},
	}, opener)
	require.NoError(t, err)

	assert.Equal(t, []compositor.Layout{
		compositor.LayoutPaired, compositor.LayoutPaired, compositor.LayoutPaired,
		compositor.LayoutLeft, compositor.LayoutLeft,
	}, layouts(ticks))
	for i, tk := range ticks {
		assert.Equal(t, i, tk.Index)
		assert.Equal(t, PhasePaired, tk.Phase)
	}

	assert.Equal(t, 5, res.Frames)
	assert.Equal(t, 5, res.PairedFrames)
	assert.Equal(t, 2, res.PairedClips)
	assert.Zero(t, res.Violations)
	assert.True(t, long.closed)
	assert.True(t, short.closed)

	enc.AssertNumberOfCalls(t, "WriteFrame", 5)
	enc.AssertNotCalled(t, "Abort")
}

func TestRecord_RefillsFreedSlot(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	opts.MinClipFrames = 2

	a := &testClip{path: "/c/a.mp4", n: 4, created: at(1)}
	b := &testClip{path: "/c/b.mp4", n: 2, created: at(2)}
	c := &testClip{path: "/c/c.mp4", n: 3, created: at(3)}
	factory := &fakeFactory{clips: map[string]*testClip{a.path: a, b.path: b, c.path: c}}

	opener, enc := newEncoder(t, opts)
	enc.On("WriteFrame", mock.Anything).Return(nil)
	enc.On("Close").Return(nil)

	ticks, res, err := record(t, opts, factory, map[string][]string{
		opts.ClipsDir: {a.path, b.path, c.path},
	}, opener)
	require.NoError(t, err)

	// a|b for 2 ticks, then c fills the right slot: a|c for 2, then c alone.
	assert.Equal(t, []compositor.Layout{
		compositor.LayoutPaired, compositor.LayoutPaired,
		compositor.LayoutPaired, compositor.LayoutPaired,
		compositor.LayoutRight,
	}, layouts(ticks))
	assert.Equal(t, 5, res.Frames)
}

func TestRecord_CreditsComeFirst(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	require.NoError(t, os.WriteFile(opts.CreditsFile, []byte("png"), 0o600))

	credits := &testClip{path: opts.CreditsFile, n: 1, created: at(0)}
	left := &testClip{path: "/c/1.mp4", n: 60, created: at(1)}
	right := &testClip{path: "/c/2.mp4", n: 60, created: at(2)}
	factory := &fakeFactory{clips: map[string]*testClip{
		credits.path: credits, left.path: left, right.path: right,
	}}

	opener, enc := newEncoder(t, opts)
	enc.On("WriteFrame", mock.Anything).Return(nil)
	enc.On("Close").Return(nil)

	ticks, res, err := record(t, opts, factory, map[string][]string{
		opts.ClipsDir: {left.path, right.path},
	}, opener)
	require.NoError(t, err)

	require.Len(t, ticks, 120)
	for i := 0; i < 60; i++ {
		assert.Equal(t, PhaseCredits, ticks[i].Phase, "tick %d", i)
		assert.Equal(t, compositor.LayoutFullscreen, ticks[i].Layout, "tick %d", i)
	}
	for i := 60; i < 120; i++ {
		assert.Equal(t, PhasePaired, ticks[i].Phase, "tick %d", i)
		assert.Equal(t, compositor.LayoutPaired, ticks[i].Layout, "tick %d", i)
	}
	assert.Equal(t, 60, res.CreditFrames)
	assert.Equal(t, 60, res.PairedFrames)
	assert.Equal(t, 4*time.Second, res.Duration)
	assert.InDelta(t, 4.0/60, res.Minutes(), 1e-9)
}

func TestRecord_Fullscreen(t *testing.T) {
	root := t.TempDir()
	opts := testOptions(root)
	opts.MinClipFrames = 3
	opts.FullscreenMaxFactor = 4

	huge := &testClip{path: "/f/huge.mp4", n: 1000, created: at(2)}
	tiny := &testClip{path: "/f/tiny.gif", n: 1, created: at(1)}
	factory := &fakeFactory{clips: map[string]*testClip{huge.path: huge, tiny.path: tiny}}

	opener, enc := newEncoder(t, opts)
	enc.On("WriteFrame", mock.Anything).Return(nil)
	enc.On("Close").Return(nil)

	ticks, res, err := record(t, opts, factory, map[string][]string{
		opts.FullscreenDir: {huge.path, tiny.path},
	}, opener)
	require.NoError(t, err)

	// tiny is stretched to 3 frames, huge trimmed to 12.
	require.Len(t, ticks, 15)
	for _, tk := range ticks {
		assert.Equal(t, PhaseFullscreen, tk.Phase)
		assert.Equal(t, compositor.LayoutFullscreen, tk.Layout)
	}
	assert.Equal(t, 15, res.FullscreenFrames)
	assert.Equal(t, 2, res.FullscreenClips)
	assert.Zero(t, res.PairedFrames)
}

func TestRecord_EmptyFolders(t *testing.T) {
	opts := testOptions(t.TempDir())
	opener, enc := newEncoder(t, opts)
	enc.On("Close").Return(nil).Once()

	ticks, res, err := record(t, opts, &fakeFactory{}, nil, opener)
	require.NoError(t, err)
	assert.Empty(t, ticks)
	assert.Zero(t, res.Frames)
	enc.AssertExpectations(t)
}

func TestRecord_ClassificationFailureAborts(t *testing.T) {
	opts := testOptions(t.TempDir())
	good := &testClip{path: "/c/a.mp4", n: 3, created: at(1)}
	factory := &fakeFactory{
		clips: map[string]*testClip{good.path: good},
		errs:  map[string]error{"/c/notes.txt": clip.ErrUnsupportedExtension},
	}

	opener, enc := newEncoder(t, opts)
	enc.On("Abort").Return(nil).Once()

	ticks, res, err := record(t, opts, factory, map[string][]string{
		opts.ClipsDir: {good.path, "/c/notes.txt"},
	}, opener)
	require.Error(t, err)
	assert.ErrorIs(t, err, clip.ErrUnsupportedExtension)
	assert.Nil(t, res)
	assert.Empty(t, ticks)
	assert.True(t, good.closed)

	enc.AssertExpectations(t)
	enc.AssertNotCalled(t, "Close")
}

func TestRecord_EncoderFailureAborts(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.MinClipFrames = 2
	a := &testClip{path: "/c/a.mp4", n: 2, created: at(1)}
	b := &testClip{path: "/c/b.mp4", n: 2, created: at(2)}
	factory := &fakeFactory{clips: map[string]*testClip{a.path: a, b.path: b}}

	writeErr := errors.New("broken pipe")
	opener, enc := newEncoder(t, opts)
	enc.On("WriteFrame", mock.Anything).Return(writeErr).Once()
	enc.On("Abort").Return(nil).Once()

	_, _, err := record(t, opts, factory, map[string][]string{
		opts.ClipsDir: {a.path, b.path},
	}, opener)
	assert.ErrorIs(t, err, writeErr)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	enc.AssertExpectations(t)
}

func TestRecord_Cancelled(t *testing.T) {
	opts := testOptions(t.TempDir())
	c := &testClip{path: "/f/a.mp4", n: 10, created: at(1)}
	factory := &fakeFactory{clips: map[string]*testClip{c.path: c}}

	opener, enc := newEncoder(t, opts)
	enc.On("Abort").Return(nil).Once()

	ss, err := New(opts, factory, opener, nil, WithLister(lister(map[string][]string{
		opts.FullscreenDir: {c.path},
	})))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ss.Record(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	enc.AssertNotCalled(t, "WriteFrame", mock.Anything)
	enc.AssertExpectations(t)
}

func TestRecord_OpenEncoderError(t *testing.T) {
	opts := testOptions(t.TempDir())
	opener := new(MockEncoderOpener)
	openErr := errors.New("no ffmpeg")
	opener.On("OpenEncoder", mock.Anything, mock.Anything, mock.Anything).Return(nil, openErr)

	ss, err := New(opts, &fakeFactory{}, opener, nil)
	require.NoError(t, err)
	_, err = ss.Record(context.Background())
	assert.ErrorIs(t, err, openErr)
}

func TestNew_Options(t *testing.T) {
	root := t.TempDir()

	t.Run("defaults", func(t *testing.T) {
		opts := DefaultOptions(root)
		assert.Equal(t, 1280, opts.Width)
		assert.Equal(t, 720, opts.Height)
		assert.Equal(t, 30, opts.FPS)
		assert.Equal(t, 60, opts.MinClipFrames)
		assert.Equal(t, filepath.Join(root, "slideshow.mp4"), opts.OutputFile)
		assert.Equal(t, filepath.Join(root, "clips"), opts.ClipsDir)
		assert.Equal(t, filepath.Join(root, "fullscreen"), opts.FullscreenDir)
		assert.Equal(t, filepath.Join(root, "credits.png"), opts.CreditsFile)
	})

	t.Run("min clip frames follows fps", func(t *testing.T) {
		opts := DefaultOptions(root)
		opts.FPS, opts.MinClipFrames = 24, 0
		ss, err := New(opts, &fakeFactory{}, new(MockEncoderOpener), nil)
		require.NoError(t, err)
		assert.Equal(t, 48, ss.Options().MinClipFrames)
	})

	t.Run("invalid", func(t *testing.T) {
		for _, mutate := range []func(*Options){
			func(o *Options) { o.Width = 0 },
			func(o *Options) { o.FPS = 0 },
			func(o *Options) { o.MinClipFrames = -1 },
			func(o *Options) { o.FullscreenMaxFactor = -2 },
			func(o *Options) { o.OutputFile = "" },
		} {
			opts := DefaultOptions(root)
			mutate(&opts)
			_, err := New(opts, &fakeFactory{}, new(MockEncoderOpener), nil)
			assert.ErrorIs(t, err, ErrInvalidOptions)
		}
	})
}
