package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"video-transcriber/domain/video"
	"video-transcriber/infrastructure/command"
)

// Segmenter implements video.Segmenter using the ffmpeg segment muxer
type Segmenter struct {
	ffmpegPath string
	runner     command.Runner
}

// NewSegmenter creates a new FFmpeg-based segmenter
func NewSegmenter(opts ...Option) *Segmenter {
	s := apply(opts)
	return &Segmenter{ffmpegPath: s.ffmpegPath, runner: s.runner}
}

// Split copies sourcePath into chunks of at most length, named by pattern
func (s *Segmenter) Split(ctx context.Context, sourcePath string, length video.Timestamp, pattern string) ([]string, error) {
	if length.IsZero() {
		return nil, fmt.Errorf("segment length must be positive")
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", sourcePath,
		"-f", "segment",
		"-segment_time", strconv.Itoa(length.TotalSeconds()),
		"-reset_timestamps", "1",
		"-c", "copy",
		pattern,
	}

	if err := s.runner.Run(ctx, s.ffmpegPath, args...); err != nil {
		return nil, fmt.Errorf("ffmpeg segment failed: %w", err)
	}

	var chunks []string
	for i := 0; ; i++ {
		path := fmt.Sprintf(pattern, i)
		if _, err := os.Stat(path); err != nil {
			break
		}
		chunks = append(chunks, path)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("ffmpeg segment produced no chunks for %s", sourcePath)
	}
	return chunks, nil
}

// Ensure Segmenter implements video.Segmenter
var _ video.Segmenter = (*Segmenter)(nil)
