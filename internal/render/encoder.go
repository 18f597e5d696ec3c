package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shmulike/face-parade/internal/domain"
	"github.com/shmulike/face-parade/internal/execx"
)

// framePattern is the sequential frame filename contract between the
// renderer and the encoder.
const framePattern = "%05d.jpg"

// EncodeRequest hands one ordered frame sequence to the encoder.
type EncodeRequest struct {
	FramesDir  string
	FrameCount int
	OutputPath string
	Options    domain.RenderOptions
	OnProgress func(percent int)
}

// Encoder is the video-encoding capability consumed by the render stage.
type Encoder interface {
	Encode(ctx context.Context, req EncodeRequest) error
}

// FFmpegEncoder encodes a frame directory into a video via ffmpeg.
type FFmpegEncoder struct {
	ffmpegPath string
	runner     execx.StreamRunner
	stat       func(name string) (os.FileInfo, error)
}

// NewFFmpegEncoder constructs the production encoder.
func NewFFmpegEncoder(ffmpegPath string) *FFmpegEncoder {
	return &FFmpegEncoder{
		ffmpegPath: ffmpegPath,
		runner:     &execx.OSRunner{},
		stat:       os.Stat,
	}
}

// Encode runs ffmpeg over the frame sequence and verifies the artifact.
// ffmpeg's machine-readable progress stream is forwarded to OnProgress
// as encoded-frame percentages while the process runs.
func (e *FFmpegEncoder) Encode(ctx context.Context, req EncodeRequest) error {
	if req.FrameCount == 0 {
		return fmt.Errorf("%w: no frames to encode", domain.ErrCapability)
	}

	args := buildEncodeArgs(req.FramesDir, req.OutputPath, req.Options)
	progress := &progressParser{total: req.FrameCount, onProgress: req.OnProgress}

	result, runErr := e.runner.RunStream(ctx, progress, e.ffmpegPath, args...)
	if runErr != nil {
		return fmt.Errorf("%w: ffmpeg failed (exit=%d): %s",
			domain.ErrCapability, result.ExitCode, tail(result.Stderr, 400))
	}
	if _, err := e.stat(req.OutputPath); err != nil {
		return fmt.Errorf("%w: ffmpeg completed but output file is missing", domain.ErrCapability)
	}

	if req.OnProgress != nil {
		req.OnProgress(100)
	}
	return nil
}

// progressParser turns ffmpeg's "-progress pipe:1" key=value stream
// into frame percentages. Frames counted beyond the expected total are
// clamped; the job store clamps regressions, so reporting is best-effort.
type progressParser struct {
	total      int
	onProgress func(percent int)
	buf        []byte
}

// Write consumes a chunk of the progress stream line by line.
func (p *progressParser) Write(data []byte) (int, error) {
	p.buf = append(p.buf, data...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			return len(data), nil
		}
		line := strings.TrimSpace(string(p.buf[:i]))
		p.buf = p.buf[i+1:]

		value, ok := strings.CutPrefix(line, "frame=")
		if !ok || p.onProgress == nil || p.total <= 0 {
			continue
		}
		frames, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		percent := frames * 100 / p.total
		if percent > 100 {
			percent = 100
		}
		p.onProgress(percent)
	}
}

// buildEncodeArgs builds ffmpeg CLI args for the requested container.
// Input is the sequential JPEG pattern at the requested frame rate; the
// per-format codec choices follow common player compatibility defaults.
func buildEncodeArgs(framesDir, outputPath string, opts domain.RenderOptions) []string {
	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-progress", "pipe:1",
		"-loglevel", "error",
		"-framerate", strconv.Itoa(opts.FPS),
		"-i", filepath.Join(framesDir, framePattern),
	}

	switch opts.Format {
	case domain.FormatWebM:
		args = append(args, "-c:v", "libvpx-vp9", "-crf", "30", "-b:v", "0")
	case domain.FormatAVI:
		args = append(args, "-c:v", "libxvid", "-q:v", "5")
	default:
		args = append(args,
			"-c:v", "libx264",
			"-pix_fmt", "yuv420p",
			"-profile:v", "high",
			"-preset", "medium",
			"-crf", "23",
			"-movflags", "+faststart",
		)
	}

	args = append(args,
		"-s", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		outputPath,
	)
	return args
}

// tail returns at most n trailing bytes of s for compact error messages.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// CheckTool reports whether an external binary is resolvable on PATH.
func CheckTool(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", name, err)
	}
	return nil
}

// NewEncoderForTests constructs an encoder with injectable dependencies.
func NewEncoderForTests(
	ffmpegPath string,
	runner execx.StreamRunner,
	stat func(name string) (os.FileInfo, error),
) *FFmpegEncoder {
	return &FFmpegEncoder{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		stat:       stat,
	}
}
