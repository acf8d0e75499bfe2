package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Static errors for media operations.
var (
	// ErrInvalidDimensions is returned when the provided dimensions are not positive.
	ErrInvalidDimensions = errors.New("invalid dimensions: width and height must be positive")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
	// ErrNoVideoStream is returned when a container has no video stream.
	ErrNoVideoStream = errors.New("no video stream")
	// ErrTempStoreRequired is returned when an in-memory source is opened
	// without a TempStore to spill it to.
	ErrTempStoreRequired = errors.New("in-memory source requires a temp store")
	// ErrStreamClosed is returned when reading from a closed stream.
	ErrStreamClosed = errors.New("stream closed")
)

// FFmpegCodec implements Decoder and EncoderOpener using the ffmpeg and
// ffprobe CLIs.
type FFmpegCodec struct {
	// ffmpegPath is the path to the ffmpeg binary. Defaults to "ffmpeg".
	ffmpegPath string
	// ffprobePath is the path to the ffprobe binary. Defaults to "ffprobe".
	ffprobePath string
	temp        TempStore
	logger      *slog.Logger
}

// Compile-time checks that FFmpegCodec implements the codec ports.
var (
	_ Decoder       = (*FFmpegCodec)(nil)
	_ EncoderOpener = (*FFmpegCodec)(nil)
)

// NewFFmpegCodec creates a new FFmpegCodec.
// Empty binary paths default to "ffmpeg" and "ffprobe" (found via PATH).
// temp may be nil when no in-memory sources will be opened.
func NewFFmpegCodec(ffmpegPath, ffprobePath string, temp TempStore, logger *slog.Logger) *FFmpegCodec {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegCodec{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		temp:        temp,
		logger:      logger,
	}
}

// Probe reads the first video stream's metadata.
func (c *FFmpegCodec) Probe(ctx context.Context, src Source) (StreamInfo, error) {
	path, release, err := c.materialize(ctx, src)
	if err != nil {
		return StreamInfo{}, err
	}
	defer release()
	return c.probePath(ctx, path)
}

// Open probes src and returns a stream that starts decoding on the first
// NextFrame call. ffmpeg's automatic rotation is disabled; rotation is
// reported through Metadata("rotate") instead.
func (c *FFmpegCodec) Open(ctx context.Context, src Source) (Stream, error) {
	path, release, err := c.materialize(ctx, src)
	if err != nil {
		return nil, err
	}

	info, err := c.probePath(ctx, path)
	if err != nil {
		release()
		return nil, err
	}

	return &ffmpegStream{
		ctx:        ctx,
		ffmpegPath: c.ffmpegPath,
		path:       path,
		name:       src.Name,
		info:       info,
		release:    release,
	}, nil
}

// materialize returns a file path for src. In-memory sources are written
// to the temp store and removed by the returned release func.
func (c *FFmpegCodec) materialize(ctx context.Context, src Source) (string, func(), error) {
	if !src.InMemory() {
		return src.Path, func() {}, nil
	}
	if c.temp == nil {
		return "", nil, ErrTempStoreRequired
	}

	path, err := c.temp.SaveTemp(ctx, "embedded_"+sanitizeName(src.Name), bytes.NewReader(src.Data))
	if err != nil {
		return "", nil, fmt.Errorf("spill in-memory source: %w", err)
	}
	c.logger.Debug("spilled in-memory source",
		slog.String("source", src.Name),
		slog.String("path", path),
		slog.Int("bytes", len(src.Data)),
	)

	release := func() {
		if err := c.temp.CleanupTemp(context.Background(), []string{path}); err != nil {
			c.logger.Warn("failed to remove spilled source",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
		}
	}
	return path, release, nil
}

// probePath runs ffprobe on the first video stream of path.
func (c *FFmpegCodec) probePath(ctx context.Context, path string) (StreamInfo, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-count_packets",
		"-show_entries", "stream=width,height,nb_frames,nb_read_packets:stream_tags:stream_side_data=rotation:format_tags=creation_time",
		"-of", "json",
		path,
	)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return StreamInfo{}, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return StreamInfo{}, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	return parseProbeOutput(stdout.Bytes())
}

// probeResult matches the ffprobe JSON output requested by probePath.
type probeResult struct {
	Streams []struct {
		Width         int               `json:"width"`
		Height        int               `json:"height"`
		NbFrames      string            `json:"nb_frames"`
		NbReadPackets string            `json:"nb_read_packets"`
		Tags          map[string]string `json:"tags"`
		SideDataList  []struct {
			Rotation *float64 `json:"rotation"`
		} `json:"side_data_list"`
	} `json:"streams"`
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

// parseProbeOutput converts ffprobe JSON into StreamInfo.
func parseProbeOutput(output []byte) (StreamInfo, error) {
	var probe probeResult
	if err := json.Unmarshal(output, &probe); err != nil {
		return StreamInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(probe.Streams) == 0 {
		return StreamInfo{}, ErrNoVideoStream
	}

	s := probe.Streams[0]
	info := StreamInfo{
		Width:  s.Width,
		Height: s.Height,
		Tags:   make(map[string]string, len(s.Tags)+1),
	}
	for k, v := range s.Tags {
		info.Tags[strings.ToLower(k)] = v
	}

	// Packet count is exact; nb_frames is missing for some containers.
	for _, raw := range []string{s.NbReadPackets, s.NbFrames} {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			info.FrameCount = n
			break
		}
	}

	// Newer ffmpeg drops the rotate tag in favour of a display matrix whose
	// rotation is counter-clockwise.
	if _, ok := info.Tags["rotate"]; !ok {
		for _, sd := range s.SideDataList {
			if sd.Rotation != nil {
				info.Tags["rotate"] = strconv.Itoa(NormalizeRotation(-int(*sd.Rotation)))
				break
			}
		}
	}

	created := s.Tags["creation_time"]
	if created == "" {
		created = probe.Format.Tags["creation_time"]
	}
	if created != "" {
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			info.CreationTime = t
		}
	}

	return info, nil
}

// NormalizeRotation maps any angle in degrees into [0, 360).
func NormalizeRotation(degrees int) int {
	d := degrees % 360
	if d < 0 {
		d += 360
	}
	return d
}

// ffmpegStream decodes rawvideo RGBA frames from an ffmpeg child process.
// Each stream owns its own process and read state.
type ffmpegStream struct {
	ctx        context.Context
	ffmpegPath string
	path       string
	name       string
	info       StreamInfo
	release    func()

	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	args   []string
	done   bool
	closed bool
}

func (s *ffmpegStream) Info() StreamInfo {
	return s.info
}

func (s *ffmpegStream) Metadata(key string) (string, bool) {
	v, ok := s.info.Tags[strings.ToLower(key)]
	return v, ok
}

// NextFrame implements Stream.NextFrame.
func (s *ffmpegStream) NextFrame() (image.Image, error) {
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return nil, io.EOF
	}
	if s.cmd == nil {
		if err := s.start(); err != nil {
			return nil, err
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	if _, err := io.ReadFull(s.stdout, img.Pix); err != nil {
		s.done = true
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if waitErr := s.cmd.Wait(); waitErr != nil {
				return nil, s.wrapErr(waitErr)
			}
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame from %s: %w", s.name, err)
	}
	return img, nil
}

// start launches the decoding process.
func (s *ffmpegStream) start() error {
	if s.info.Width <= 0 || s.info.Height <= 0 {
		return fmt.Errorf("%w: width=%d, height=%d", ErrInvalidDimensions, s.info.Width, s.info.Height)
	}

	s.args = []string{
		"-v", "error",
		"-noautorotate", // Rotation is applied by the caller
		"-i", s.path,
		"-map", "0:v:0",
		"-vsync", "passthrough", // Never duplicate or drop frames
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}

	// #nosec G204 - ffmpegPath is set by the application, not user input
	s.cmd = exec.CommandContext(s.ctx, s.ffmpegPath, s.args...)
	s.cmd.Stderr = &s.stderr

	stdout, err := s.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	s.stdout = stdout

	if err := s.cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	return nil
}

func (s *ffmpegStream) wrapErr(err error) error {
	if s.ctx.Err() != nil {
		return fmt.Errorf("ffmpeg cancelled: %w", s.ctx.Err())
	}
	return &FFmpegError{
		Args:   s.args,
		Stderr: s.stderr.String(),
		Err:    err,
	}
}

// Close stops the decoding process and removes any spilled temp file.
func (s *ffmpegStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.release()

	if s.cmd == nil || s.done {
		return nil
	}
	_ = s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	// The process was killed on purpose; its exit status is not an error.
	_ = s.cmd.Wait()
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// sanitizeName turns a source label into something safe for a temp file
// name prefix.
func sanitizeName(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "source"
	}
	return b.String()
}
