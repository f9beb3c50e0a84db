package ffmpeg

import (
	"context"
	"fmt"

	"video-transcriber/domain/video"
	"video-transcriber/infrastructure/command"
)

// Converter implements video.AudioConverter using ffmpeg
type Converter struct {
	ffmpegPath string
	runner     command.Runner
}

// Option is a functional option shared by the ffmpeg adapters
type Option func(*settings)

type settings struct {
	ffmpegPath string
	runner     command.Runner
}

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.ffmpegPath = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner command.Runner) Option {
	return func(s *settings) {
		s.runner = runner
	}
}

func apply(opts []Option) settings {
	s := settings{
		ffmpegPath: "ffmpeg",
		runner:     &command.ExecRunner{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewConverter creates a new FFmpeg-based audio converter
func NewConverter(opts ...Option) *Converter {
	s := apply(opts)
	return &Converter{ffmpegPath: s.ffmpegPath, runner: s.runner}
}

// Convert implements video.AudioConverter
func (c *Converter) Convert(ctx context.Context, req *video.AudioExtractionRequest, outputPath string) error {
	args := []string{
		"-y", // Overwrite output file if it exists
		"-hide_banner",
		"-loglevel", "error",
		"-i", req.SourceVideoPath,
		"-vn", // No video
		"-sn",
		"-dn",
	}

	switch req.Format {
	case video.FormatWAV:
		args = append(args, "-ac", "1", "-ar", "16000", "-c:a", "pcm_s16le")
	default:
		args = append(args, "-c:a", "libmp3lame", "-b:a", req.Bitrate)
	}
	args = append(args, outputPath)

	if err := c.runner.Run(ctx, c.ffmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg audio extraction failed: %w", err)
	}

	return nil
}

// VerifyInstalled checks that ffmpeg is available
func (c *Converter) VerifyInstalled(ctx context.Context) error {
	return command.Verify(ctx, c.runner, c.ffmpegPath, "-version")
}

// Ensure Converter implements video.AudioConverter
var _ video.AudioConverter = (*Converter)(nil)
