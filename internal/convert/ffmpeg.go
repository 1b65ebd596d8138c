package convert

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	DefaultBitrateKbps = 128
	DefaultQuality     = 2
)

// Transcoder turns a closed lossless file into a compressed one.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// commandRunner runs a command and returns its combined output.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// FFmpeg encodes constant-bitrate MP3 with libmp3lame. Quality selects the
// LAME algorithm effort, not a VBR level.
type FFmpeg struct {
	path        string
	bitrateKbps int
	quality     int
	run         commandRunner
}

var _ Transcoder = (*FFmpeg)(nil)

// Option configures an FFmpeg transcoder.
type Option func(*FFmpeg)

// WithBitrate sets the target bitrate in kbps
func WithBitrate(kbps int) Option {
	return func(f *FFmpeg) {
		if kbps > 0 {
			f.bitrateKbps = kbps
		}
	}
}

// WithQuality sets the LAME quality, 0 best to 9 fastest
func WithQuality(q int) Option {
	return func(f *FFmpeg) {
		if q >= 0 && q <= 9 {
			f.quality = q
		}
	}
}

// WithRunner replaces the command runner (for testing).
func WithRunner(r commandRunner) Option {
	return func(f *FFmpeg) { f.run = r }
}

// NewFFmpeg creates a transcoder invoking the ffmpeg binary at path.
// An empty path means "ffmpeg" from PATH.
func NewFFmpeg(path string, opts ...Option) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	f := &FFmpeg{
		path:        path,
		bitrateKbps: DefaultBitrateKbps,
		quality:     DefaultQuality,
		run:         execRunner{},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Transcode encodes src into dst, overwriting dst. On failure any partial
// dst is removed and src is left untouched.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("input file not found: %s: %w", src, ErrEncoding)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w: %v", ErrEncoding, err)
	}

	args := f.args(src, dst)
	slog.Debug("Running FFmpeg for encoding", "command", f.path+" "+strings.Join(args, " "))

	output, err := f.run.Run(ctx, f.path, args...)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("FFmpeg encoding failed: %w: %v\nOutput: %s", ErrEncoding, err, strings.TrimSpace(string(output)))
	}

	info, err := os.Stat(dst)
	if err != nil || info.Size() == 0 {
		_ = os.Remove(dst)
		return fmt.Errorf("output file not created: %s: %w", dst, ErrEncoding)
	}

	slog.Info("MP3 file saved", "file", dst, "bytes", info.Size())
	return nil
}

func (f *FFmpeg) args(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y", // Overwrite output file
		"-i", src,
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(f.bitrateKbps) + "k",
		"-compression_level", strconv.Itoa(f.quality),
		dst,
	}
}
