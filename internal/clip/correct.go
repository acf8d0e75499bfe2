package clip

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/maauso/slideshow/internal/frame"
)

// ErrInvalidWindow is returned for a window without a positive minimum.
var ErrInvalidWindow = errors.New("invalid frame window")

// Window bounds the number of frames a clip may contribute.
type Window struct {
	Min int
	Max int
}

// NewWindow returns a window of at least frames frames and at most twice that.
func NewWindow(frames int) Window {
	return Window{Min: frames, Max: 2 * frames}
}

// Validate fills a missing maximum and checks the bounds.
func (w Window) Validate() (Window, error) {
	if w.Min <= 0 {
		return w, fmt.Errorf("%w: min=%d", ErrInvalidWindow, w.Min)
	}
	if w.Max == 0 {
		w.Max = 2 * w.Min
	}
	if w.Max < w.Min {
		return w, fmt.Errorf("%w: max=%d below min=%d", ErrInvalidWindow, w.Max, w.Min)
	}
	return w, nil
}

// Plan describes how a clip's natural frames map onto a window.
type Plan struct {
	// Natural is the clip's own frame count.
	Natural int
	// Duplicate is how many times each natural frame is emitted.
	Duplicate int
	// Trim is the number of leading output frames dropped.
	Trim int
	// Length is the number of frames emitted.
	Length int
}

// PlanFor stretches short clips by whole-frame duplication and trims the
// front of long ones so that the output fits w.
func PlanFor(n int, w Window) Plan {
	p := Plan{Natural: n, Duplicate: 1}
	if n <= 0 {
		return p
	}
	if n < w.Min {
		p.Duplicate = max(1, w.Min/n)
	}

	expanded := n * p.Duplicate
	if expanded > w.Max {
		p.Trim = expanded - w.Max
	}
	p.Length = expanded - p.Trim
	return p
}

// Sequence is a clip's corrected frames: fitted to a box, rotated and
// resampled to the window. Frames are produced one at a time.
type Sequence struct {
	clip    Clip
	src     FrameSource
	plan    Plan
	box     image.Point
	degrees int
	logger  *slog.Logger

	skip     int
	current  image.Image
	repeats  int
	emitted  int
	finished bool
}

// Correct opens clip and returns its frames corrected to window and box.
// The sequence owns the clip and closes it.
func Correct(ctx context.Context, c Clip, window Window, box image.Point, logger *slog.Logger) (*Sequence, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := window.Validate()
	if err != nil {
		return nil, err
	}

	n, err := c.NumberOfFrames(ctx)
	if err != nil {
		return nil, err
	}

	plan := PlanFor(n, w)
	seq := &Sequence{clip: c, plan: plan, box: box, skip: plan.Trim, logger: logger}

	if n == 0 {
		logger.Warn("clip has no frames",
			slog.String("file", c.Path()),
			slog.String("kind", c.Kind().String()),
		)
		seq.finished = true
		return seq, nil
	}

	if plan.Trim > 2*w.Max {
		logger.Warn("clip far exceeds window, trimming most of it",
			slog.String("file", c.Path()),
			slog.Int("frames", n),
			slog.Int("trim", plan.Trim),
			slog.Int("max", w.Max),
		)
	}

	src, err := c.Frames(ctx)
	if err != nil {
		return nil, err
	}
	seq.src = src
	seq.degrees = c.Orientation()

	logger.Debug("clip corrected",
		slog.String("file", c.Path()),
		slog.String("kind", c.Kind().String()),
		slog.Int("frames", n),
		slog.Int("duplicate", plan.Duplicate),
		slog.Int("trim", plan.Trim),
		slog.Int("length", plan.Length),
		slog.Int("orientation", seq.degrees),
	)
	return seq, nil
}

// Clip returns the clip being corrected.
func (s *Sequence) Clip() Clip {
	return s.clip
}

// Plan returns the correction plan.
func (s *Sequence) Plan() Plan {
	return s.plan
}

// Len returns the number of frames the sequence emits.
func (s *Sequence) Len() int {
	return s.plan.Length
}

// Next returns the next corrected frame, or io.EOF. Duplicated frames
// share the same image.
func (s *Sequence) Next() (image.Image, error) {
	for {
		if s.finished || s.emitted >= s.plan.Length {
			s.finished = true
			return nil, io.EOF
		}
		if s.repeats > 0 {
			s.repeats--
			s.emitted++
			return s.current, nil
		}

		raw, err := s.src.Next()
		if errors.Is(err, io.EOF) {
			s.logger.Warn("clip ended before its reported length",
				slog.String("file", s.clip.Path()),
				slog.Int("emitted", s.emitted),
				slog.Int("expected", s.plan.Length),
			)
			s.finished = true
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("frame of %s: %w", s.clip.Path(), err)
		}

		copies := s.plan.Duplicate
		if s.skip > 0 {
			dropped := min(s.skip, copies)
			s.skip -= dropped
			copies -= dropped
			if copies == 0 {
				continue
			}
		}

		s.current = frame.Orient(raw, s.box, s.degrees)
		s.repeats = copies
	}
}

// Close releases the frame source and the clip.
func (s *Sequence) Close() error {
	s.finished = true
	s.current = nil

	var srcErr error
	if s.src != nil {
		srcErr = s.src.Close()
		s.src = nil
	}
	return errors.Join(srcErr, s.clip.Close())
}
