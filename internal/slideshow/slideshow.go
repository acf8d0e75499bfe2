// Package slideshow renders a folder of clips into one video: optional
// full-screen credits, then clips two at a time side by side, then
// full-screen clips.
package slideshow

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/maauso/slideshow/internal/clip"
	"github.com/maauso/slideshow/internal/compositor"
	"github.com/maauso/slideshow/internal/media"
	"github.com/maauso/slideshow/internal/scan"
)

// ErrInvalidOptions is returned when Options cannot describe a video.
var ErrInvalidOptions = errors.New("invalid slideshow options")

// ClipFactory turns files into clips.
type ClipFactory interface {
	Classify(ctx context.Context, path string) (clip.Clip, error)
}

// Lister returns the files of a directory in a stable order.
type Lister func(dir string) ([]string, error)

// Options configures a recording.
type Options struct {
	// Width and Height are the output resolution.
	Width  int
	Height int
	// FPS is the output frame rate.
	FPS int
	// MinClipFrames is the minimum number of frames every clip renders.
	// Zero selects two seconds at FPS.
	MinClipFrames int
	// FullscreenMaxFactor bounds fullscreen clips to this multiple of
	// MinClipFrames.
	FullscreenMaxFactor int

	OutputFile    string
	ClipsDir      string
	FullscreenDir string
	// CreditsFile is rendered first when readable.
	CreditsFile string

	// CRF and Preset tune the x264 encoder.
	CRF    int
	Preset string
}

// DefaultOptions returns 720p at 30 fps for the standard layout under root.
func DefaultOptions(root string) Options {
	enc := media.DefaultEncodeOptions()
	return Options{
		Width:               enc.Width,
		Height:              enc.Height,
		FPS:                 enc.FPS,
		MinClipFrames:       2 * enc.FPS,
		FullscreenMaxFactor: 4,
		OutputFile:          filepath.Join(root, "slideshow.mp4"),
		ClipsDir:            filepath.Join(root, "clips"),
		FullscreenDir:       filepath.Join(root, "fullscreen"),
		CreditsFile:         filepath.Join(root, "credits.png"),
		CRF:                 enc.CRF,
		Preset:              enc.Preset,
	}
}

func (o Options) validate() (Options, error) {
	if o.Width < 2 || o.Height < 1 {
		return o, fmt.Errorf("%w: resolution %dx%d", ErrInvalidOptions, o.Width, o.Height)
	}
	if o.FPS <= 0 {
		return o, fmt.Errorf("%w: fps %d", ErrInvalidOptions, o.FPS)
	}
	if o.MinClipFrames == 0 {
		o.MinClipFrames = 2 * o.FPS
	}
	if o.MinClipFrames < 0 {
		return o, fmt.Errorf("%w: min clip frames %d", ErrInvalidOptions, o.MinClipFrames)
	}
	if o.FullscreenMaxFactor == 0 {
		o.FullscreenMaxFactor = 4
	}
	if o.FullscreenMaxFactor < 1 {
		return o, fmt.Errorf("%w: fullscreen max factor %d", ErrInvalidOptions, o.FullscreenMaxFactor)
	}
	if o.OutputFile == "" {
		return o, fmt.Errorf("%w: output file is required", ErrInvalidOptions)
	}
	return o, nil
}

// Tick describes one output frame.
type Tick struct {
	Index  int
	Phase  Phase
	Layout compositor.Layout
}

// Result summarizes a finished recording.
type Result struct {
	OutputFile       string
	Frames           int
	CreditFrames     int
	PairedFrames     int
	FullscreenFrames int
	PairedClips      int
	FullscreenClips  int
	// Violations counts clips dropped because both slots were busy.
	Violations int
	Duration   time.Duration
}

// Minutes returns the output length in minutes.
func (r *Result) Minutes() float64 {
	return r.Duration.Minutes()
}

// SlideShow records a slideshow video.
type SlideShow struct {
	opts     Options
	factory  ClipFactory
	encoders media.EncoderOpener
	logger   *slog.Logger
	list     Lister
	observe  func(Tick)
}

// Option configures a SlideShow.
type Option func(*SlideShow)

// WithTickObserver registers fn to be called after every encoded frame.
func WithTickObserver(fn func(Tick)) Option {
	return func(s *SlideShow) {
		s.observe = fn
	}
}

// WithLister replaces scan.Files as the directory lister.
func WithLister(list Lister) Option {
	return func(s *SlideShow) {
		if list != nil {
			s.list = list
		}
	}
}

// New creates a SlideShow. If logger is nil, slog.Default() is used.
func New(opts Options, factory ClipFactory, encoders media.EncoderOpener, logger *slog.Logger, options ...Option) (*SlideShow, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &SlideShow{
		opts:     opts,
		factory:  factory,
		encoders: encoders,
		logger:   logger,
		list:     scan.Files,
	}
	for _, o := range options {
		o(s)
	}
	return s, nil
}

// Options returns the effective options.
func (s *SlideShow) Options() Options {
	return s.opts
}

// Record renders the whole slideshow to the output file. On any error the
// encoder is aborted and the partial file removed.
func (s *SlideShow) Record(ctx context.Context) (*Result, error) {
	enc, err := s.encoders.OpenEncoder(ctx, s.opts.OutputFile, media.EncodeOptions{
		Width:  s.opts.Width,
		Height: s.opts.Height,
		FPS:    s.opts.FPS,
		CRF:    s.opts.CRF,
		Preset: s.opts.Preset,
	})
	if err != nil {
		return nil, fmt.Errorf("open encoder: %w", err)
	}

	r := &recording{
		SlideShow: s,
		enc:       enc,
		canvas:    image.NewRGBA(image.Rect(0, 0, s.opts.Width, s.opts.Height)),
		phase:     PhaseIdle,
		result:    &Result{OutputFile: s.opts.OutputFile},
	}

	s.logger.Info("recording started",
		slog.String("output", s.opts.OutputFile),
		slog.Int("width", s.opts.Width),
		slog.Int("height", s.opts.Height),
		slog.Int("fps", s.opts.FPS),
		slog.Int("min_clip_frames", s.opts.MinClipFrames),
	)

	if err := r.run(ctx); err != nil {
		_ = r.transition(PhaseFailed)
		if abortErr := enc.Abort(); abortErr != nil {
			err = errors.Join(err, abortErr)
		}
		s.logger.Error("recording aborted",
			slog.Int("frames", r.result.Frames),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if err := enc.Close(); err != nil {
		_ = r.transition(PhaseFailed)
		return nil, fmt.Errorf("finalize video: %w", err)
	}
	if err := r.transition(PhaseDone); err != nil {
		return nil, err
	}

	res := r.result
	res.Duration = time.Duration(res.Frames) * time.Second / time.Duration(s.opts.FPS)
	s.logger.Info("recording done",
		slog.String("output", res.OutputFile),
		slog.Int("frames", res.Frames),
		slog.Float64("minutes", res.Minutes()),
	)
	return res, nil
}

// recording is the state of a single Record call.
type recording struct {
	*SlideShow
	enc    media.Encoder
	canvas *image.RGBA
	phase  Phase
	result *Result
}

func (r *recording) transition(to Phase) error {
	if !canTransition(r.phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.phase, to)
	}
	r.logger.Debug("phase",
		slog.String("from", string(r.phase)),
		slog.String("to", string(to)),
		slog.Int("frame", r.result.Frames),
	)
	r.phase = to
	return nil
}

func (r *recording) run(ctx context.Context) error {
	if err := r.credits(ctx); err != nil {
		return fmt.Errorf("credits: %w", err)
	}
	if err := r.paired(ctx); err != nil {
		return fmt.Errorf("paired clips: %w", err)
	}
	if err := r.fullscreen(ctx); err != nil {
		return fmt.Errorf("fullscreen clips: %w", err)
	}
	return nil
}

func (r *recording) credits(ctx context.Context) error {
	if !readable(r.opts.CreditsFile) {
		r.logger.Debug("no credits", slog.String("file", r.opts.CreditsFile))
		return nil
	}
	if err := r.transition(PhaseCredits); err != nil {
		return err
	}

	c, err := r.factory.Classify(ctx, r.opts.CreditsFile)
	if err != nil {
		return err
	}
	n, err := r.fullscreenSequence(ctx, c, clip.NewWindow(r.opts.MinClipFrames))
	r.result.CreditFrames = n
	return err
}

func (r *recording) paired(ctx context.Context) error {
	if err := r.transition(PhasePaired); err != nil {
		return err
	}

	clips, err := r.load(ctx, r.opts.ClipsDir)
	if err != nil {
		return err
	}

	var left, right slot
	defer func() {
		_ = left.release()
		_ = right.release()
	}()

	half := image.Pt(r.opts.Width/2, r.opts.Height)
	start := r.result.Frames

	for i, c := range clips {
		seq, err := clip.Correct(ctx, c, clip.NewWindow(r.opts.MinClipFrames), half, r.logger)
		if err != nil {
			closeAll(clips[i:])
			return err
		}
		r.result.PairedClips++

		switch {
		case left.empty():
			err = left.load(seq)
		case right.empty():
			err = right.load(seq)
		default:
			r.result.Violations++
			r.logger.Warn("both slots busy, dropping clip", slog.String("file", c.Path()))
			err = seq.Close()
		}
		if err != nil {
			closeAll(clips[i+1:])
			return err
		}

		for !left.empty() && !right.empty() {
			if err := r.pairedTick(ctx, &left, &right); err != nil {
				closeAll(clips[i+1:])
				return err
			}
		}
	}

	r.logger.Debug("finishing paired slots", slog.Int("frame", r.result.Frames))
	for !left.empty() || !right.empty() {
		if err := r.pairedTick(ctx, &left, &right); err != nil {
			return err
		}
	}

	r.result.PairedFrames = r.result.Frames - start
	r.logger.Debug("paired clips done",
		slog.Int("clips", r.result.PairedClips),
		slog.Int("frames", r.result.PairedFrames),
	)
	return nil
}

func (r *recording) fullscreen(ctx context.Context) error {
	if err := r.transition(PhaseFullscreen); err != nil {
		return err
	}

	clips, err := r.load(ctx, r.opts.FullscreenDir)
	if err != nil {
		return err
	}

	window := clip.Window{Min: r.opts.MinClipFrames, Max: r.opts.FullscreenMaxFactor * r.opts.MinClipFrames}
	for i, c := range clips {
		n, err := r.fullscreenSequence(ctx, c, window)
		r.result.FullscreenFrames += n
		if err != nil {
			closeAll(clips[i+1:])
			return err
		}
		r.result.FullscreenClips++
	}

	r.logger.Debug("fullscreen clips done",
		slog.Int("clips", r.result.FullscreenClips),
		slog.Int("frames", r.result.FullscreenFrames),
	)
	return nil
}

// fullscreenSequence renders every corrected frame of c full screen and
// returns the number of ticks written.
func (r *recording) fullscreenSequence(ctx context.Context, c clip.Clip, window clip.Window) (int, error) {
	seq, err := clip.Correct(ctx, c, window, image.Pt(r.opts.Width, r.opts.Height), r.logger)
	if err != nil {
		_ = c.Close()
		return 0, err
	}

	var s slot
	defer func() { _ = s.release() }()
	if err := s.load(seq); err != nil {
		return 0, err
	}

	n := 0
	for !s.empty() {
		img, err := s.take()
		if err != nil {
			return n, err
		}
		if err := r.tick(ctx, nil, nil, img); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (r *recording) pairedTick(ctx context.Context, left, right *slot) error {
	l, err := left.take()
	if err != nil {
		return err
	}
	rt, err := right.take()
	if err != nil {
		return err
	}
	return r.tick(ctx, l, rt, nil)
}

// tick composes one output frame and hands it to the encoder.
func (r *recording) tick(ctx context.Context, left, right, fullscreen image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	layout, err := compositor.LayoutOf(left, right, fullscreen)
	if err != nil {
		return err
	}
	if err := compositor.Compose(r.canvas, left, right, fullscreen); err != nil {
		return err
	}
	if err := r.enc.WriteFrame(r.canvas); err != nil {
		return fmt.Errorf("encode frame %d: %w", r.result.Frames, err)
	}

	if r.observe != nil {
		r.observe(Tick{Index: r.result.Frames, Phase: r.phase, Layout: layout})
	}
	r.result.Frames++
	return nil
}

// load classifies every file in dir and sorts the clips.
func (r *recording) load(ctx context.Context, dir string) ([]clip.Clip, error) {
	files, err := r.list(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	clips := make([]clip.Clip, 0, len(files))
	for _, f := range files {
		c, err := r.factory.Classify(ctx, f)
		if err != nil {
			closeAll(clips)
			return nil, err
		}
		clips = append(clips, c)
	}
	clip.Sort(clips)

	r.logger.Debug("clips loaded",
		slog.String("dir", dir),
		slog.Int("clips", len(clips)),
	)
	return clips, nil
}

func closeAll(clips []clip.Clip) {
	for _, c := range clips {
		_ = c.Close()
	}
}

func readable(path string) bool {
	if path == "" {
		return false
	}
	f, err := os.Open(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
