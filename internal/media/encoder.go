package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
)

// ErrFrameSize is returned when a frame does not match the encoder size.
var ErrFrameSize = errors.New("frame size does not match encoder")

// ErrEncoderClosed is returned when writing to a finished encoder.
var ErrEncoderClosed = errors.New("encoder closed")

// DefaultEncodeOptions returns 720p at 30 fps with visually lossless x264 settings.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		Width:  1280,
		Height: 720,
		FPS:    30,
		CRF:    18,
		Preset: "medium",
	}
}

// OpenEncoder starts an ffmpeg process that reads raw RGBA frames on stdin
// and writes an H.264 MP4 to path.
func (c *FFmpegCodec) OpenEncoder(ctx context.Context, path string, opts EncodeOptions) (Encoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultEncodeOptions().FPS
	}
	if opts.Preset == "" {
		opts.Preset = DefaultEncodeOptions().Preset
	}

	args := []string{
		"-y",          // Overwrite output file without asking
		"-v", "error", // Only report failures
		"-f", "rawvideo", // Raw frames on stdin
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-r", strconv.Itoa(opts.FPS),
		"-i", "-",
		"-c:v", "libx264", // Video codec
		"-preset", opts.Preset, // Encoding speed preset
		"-crf", strconv.Itoa(opts.CRF), // Quality (lower = better)
		"-pix_fmt", "yuv420p", // Pixel format for compatibility
		"-movflags", "+faststart",
		path,
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffmpegPath, args...)
	enc := &FFmpegEncoder{
		cmd:    cmd,
		args:   args,
		path:   path,
		size:   image.Pt(opts.Width, opts.Height),
		ctx:    ctx,
		logger: c.logger,
	}
	cmd.Stderr = &enc.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	enc.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}

	c.logger.Info("encoder started",
		slog.String("output", path),
		slog.Int("width", opts.Width),
		slog.Int("height", opts.Height),
		slog.Int("fps", opts.FPS),
		slog.Int("crf", opts.CRF),
	)
	return enc, nil
}

// FFmpegEncoder writes frames to an ffmpeg child process.
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	args   []string
	path   string
	size   image.Point
	ctx    context.Context
	logger *slog.Logger
	frames int
	closed bool
}

// Frames returns the number of frames written so far.
func (e *FFmpegEncoder) Frames() int {
	return e.frames
}

// WriteFrame implements Encoder.WriteFrame.
func (e *FFmpegEncoder) WriteFrame(img *image.RGBA) error {
	if e.closed {
		return ErrEncoderClosed
	}
	if img.Bounds().Size() != e.size {
		return fmt.Errorf("%w: got %v, want %v", ErrFrameSize, img.Bounds().Size(), e.size)
	}

	rowLen := e.size.X * 4
	if img.Stride == rowLen && len(img.Pix) >= rowLen*e.size.Y {
		if _, err := e.stdin.Write(img.Pix[:rowLen*e.size.Y]); err != nil {
			return e.wrapErr(fmt.Errorf("write frame %d: %w", e.frames, err))
		}
	} else {
		for y := 0; y < e.size.Y; y++ {
			start := y * img.Stride
			if _, err := e.stdin.Write(img.Pix[start : start+rowLen]); err != nil {
				return e.wrapErr(fmt.Errorf("write frame %d: %w", e.frames, err))
			}
		}
	}
	e.frames++
	return nil
}

// Close flushes stdin and waits for ffmpeg to finish the file.
func (e *FFmpegEncoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true

	if err := e.stdin.Close(); err != nil {
		_ = e.cmd.Process.Kill()
		_ = e.cmd.Wait()
		return fmt.Errorf("close encoder input: %w", err)
	}
	if err := e.cmd.Wait(); err != nil {
		return e.wrapErr(err)
	}

	e.logger.Info("encoder finished",
		slog.String("output", e.path),
		slog.Int("frames", e.frames),
	)
	return nil
}

// Abort kills ffmpeg and removes the partial output.
func (e *FFmpegEncoder) Abort() error {
	if e.closed {
		return nil
	}
	e.closed = true

	_ = e.stdin.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.cmd.Wait()

	if err := os.Remove(e.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove partial output: %w", err)
	}
	e.logger.Warn("encoder aborted, partial output removed",
		slog.String("output", e.path),
		slog.Int("frames", e.frames),
	)
	return nil
}

func (e *FFmpegEncoder) wrapErr(err error) error {
	if e.ctx.Err() != nil {
		return fmt.Errorf("ffmpeg cancelled: %w", e.ctx.Err())
	}
	return &FFmpegError{
		Args:   e.args,
		Stderr: e.stderr.String(),
		Err:    err,
	}
}
