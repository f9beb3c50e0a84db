package transcription

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/transcript"
	"video-transcriber/domain/video"
)

// Scratch is the part of the artifact manager the service needs for chunk files
type Scratch interface {
	RegisterPrefix(dir, namePrefix string)
	Discard(path string)
}

// Service transcribes audio artifacts, splitting long audio into chunks
type Service struct {
	engine      transcript.Engine
	segmenter   video.Segmenter
	scratch     Scratch
	chunkLength video.Timestamp
	timeout     time.Duration
}

// Option configures a Service
type Option func(*Service)

// WithSegmenter enables chunked transcription with the given chunk length
func WithSegmenter(segmenter video.Segmenter, chunkLength video.Timestamp) Option {
	return func(s *Service) {
		s.segmenter = segmenter
		s.chunkLength = chunkLength
	}
}

// WithTimeout bounds the time spent on one video. Zero means no limit.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		s.timeout = timeout
	}
}

// NewService creates a new transcription service
func NewService(engine transcript.Engine, scratch Scratch, opts ...Option) *Service {
	s := &Service{
		engine:  engine,
		scratch: scratch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Transcribe produces the transcript of one audio artifact. Chunks are
// transcribed in playback order and joined with newlines; each chunk is
// discarded as soon as its text has been read.
func (s *Service) Transcribe(ctx context.Context, art *video.AudioArtifact, quality transcript.Quality) (*transcript.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	chunks, err := s.split(ctx, art)
	if err != nil {
		return nil, pipeline.NewStageFailure(pipeline.KindTranscription, "segment", err)
	}

	texts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		text, err := s.engine.Run(ctx, chunk, quality)
		if chunk != art.Path {
			s.scratch.Discard(chunk)
		}
		if err != nil {
			for _, rest := range chunks[i+1:] {
				s.scratch.Discard(rest)
			}
			if len(chunks) > 1 {
				err = fmt.Errorf("chunk %d of %d: %w", i+1, len(chunks), err)
			}
			return nil, pipeline.NewStageFailure(pipeline.KindTranscription, "transcribe", err)
		}
		texts = append(texts, strings.TrimSpace(text))
	}

	return &transcript.Result{
		Text:      strings.Join(texts, "\n"),
		Reference: art.Reference,
	}, nil
}

func (s *Service) split(ctx context.Context, art *video.AudioArtifact) ([]string, error) {
	if s.segmenter == nil || s.chunkLength.IsZero() {
		return []string{art.Path}, nil
	}

	ext := filepath.Ext(art.Path)
	base := strings.TrimSuffix(art.Path, ext)
	s.scratch.RegisterPrefix(filepath.Dir(art.Path), filepath.Base(base)+video.ChunkInfix)

	chunks, err := s.segmenter.Split(ctx, art.Path, s.chunkLength, video.ChunkPattern(base, ext))
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no audio segments produced from %s", art.Path)
	}
	return chunks, nil
}
