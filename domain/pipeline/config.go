package pipeline

import (
	"fmt"
	"strings"
	"time"

	"video-transcriber/domain/transcript"
	"video-transcriber/domain/video"
)

const (
	DefaultIntermediateFolder = "temp"
	DefaultOutputFolder       = "output"
	DefaultWorkers            = 1
	DefaultChunkLength        = "00:20:00"
)

// Options holds raw, unvalidated run parameters as they arrive from flags or a config file
type Options struct {
	SourceType            string
	SourceFormat          string
	SourceID              string
	IntermediateFolder    string
	AudioFileType         string
	AudioBitrate          string
	KeepIntermediateFiles *bool
	TranscriptionModel    string
	TranscriptionQuality  string
	OutputFolder          string
	OutputFormat          string
	Workers               int
	ChunkLength           string
	TranscriptionTimeout  time.Duration
}

// Configuration is a validated, immutable set of run parameters.
// Build it with NewConfiguration and pass it by value.
type Configuration struct {
	SourceKind            video.SourceKind
	Cardinality           video.Cardinality
	SourceID              string
	IntermediateFolder    string
	AudioFormat           video.AudioFormat
	AudioBitrate          string
	KeepIntermediateFiles bool
	Model                 transcript.Model
	Quality               transcript.Quality
	OutputFolder          string
	OutputFormat          transcript.OutputFormat
	Workers               int
	ChunkLength           video.Timestamp
	TranscriptionTimeout  time.Duration
}

// NewConfiguration applies defaults and validates every enumerated value once
func NewConfiguration(opts Options) (Configuration, error) {
	var cfg Configuration

	kind, err := video.ParseSourceKind(opts.SourceType)
	if err != nil {
		return cfg, &ValidationError{
			Field:      "source_type",
			Message:    err.Error(),
			Suggestion: "pass --source-type youtube, drive, or local",
		}
	}
	cfg.SourceKind = kind

	cardinality, err := video.ParseCardinality(opts.SourceFormat)
	if err != nil {
		return cfg, &ValidationError{
			Field:      "source_format",
			Message:    err.Error(),
			Suggestion: "pass --source-format one or multiple",
		}
	}
	cfg.Cardinality = cardinality

	if kind == video.KindRemoteStream && cardinality == video.Multiple {
		return cfg, &ValidationError{
			Field:      "source_format",
			Message:    "youtube sources support only a single video",
			Suggestion: "use --source-format one with a video id or URL",
		}
	}

	cfg.SourceID = strings.TrimSpace(opts.SourceID)
	if cfg.SourceID == "" {
		return cfg, &ValidationError{
			Field:      "source_id",
			Message:    "source id is required",
			Suggestion: "pass --source-id with a video id, file id, folder id, or path",
		}
	}

	cfg.IntermediateFolder = orDefault(opts.IntermediateFolder, DefaultIntermediateFolder)
	cfg.OutputFolder = orDefault(opts.OutputFolder, DefaultOutputFolder)

	cfg.AudioFormat, err = video.ParseAudioFormat(orDefault(opts.AudioFileType, string(video.FormatMP3)))
	if err != nil {
		return cfg, &ValidationError{
			Field:      "audio_file_type",
			Message:    err.Error(),
			Suggestion: "pass --audio-file-type mp3 or wav",
		}
	}
	cfg.AudioBitrate = orDefault(opts.AudioBitrate, video.DefaultAudioBitrate)

	cfg.KeepIntermediateFiles = true
	if opts.KeepIntermediateFiles != nil {
		cfg.KeepIntermediateFiles = *opts.KeepIntermediateFiles
	}

	cfg.Model, err = transcript.ParseModel(orDefault(opts.TranscriptionModel, string(transcript.ModelWhisper)))
	if err != nil {
		return cfg, &ValidationError{
			Field:      "transcription_model",
			Message:    err.Error(),
			Suggestion: "pass --transcription-model whisper",
		}
	}

	cfg.Quality, err = transcript.ParseQuality(orDefault(opts.TranscriptionQuality, string(transcript.QualityBase)))
	if err != nil {
		return cfg, &ValidationError{
			Field:      "transcription_quality",
			Message:    err.Error(),
			Suggestion: "pass --transcription-quality base, medium, or large",
		}
	}

	cfg.OutputFormat, err = transcript.ParseOutputFormat(orDefault(opts.OutputFormat, string(transcript.FormatTXT)))
	if err != nil {
		return cfg, &ValidationError{
			Field:      "output_format",
			Message:    err.Error(),
			Suggestion: "pass --output-format txt or doc",
		}
	}

	cfg.Workers = opts.Workers
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Workers < 0 {
		return cfg, &ValidationError{
			Field:      "workers",
			Message:    fmt.Sprintf("workers must be at least 1; got %d", opts.Workers),
			Suggestion: "pass --workers 1 for sequential processing",
		}
	}

	cfg.ChunkLength, err = parseChunkLength(orDefault(opts.ChunkLength, DefaultChunkLength))
	if err != nil || cfg.ChunkLength.IsZero() {
		return cfg, &ValidationError{
			Field:      "chunk_length",
			Message:    fmt.Sprintf("invalid chunk length %q", opts.ChunkLength),
			Suggestion: "use HH:MM:SS or a duration, for example 00:20:00 or 20m",
		}
	}

	if opts.TranscriptionTimeout < 0 {
		return cfg, &ValidationError{
			Field:      "transcription_timeout",
			Message:    "timeout cannot be negative",
			Suggestion: "omit the timeout or pass a positive duration such as 30m",
		}
	}
	cfg.TranscriptionTimeout = opts.TranscriptionTimeout

	return cfg, nil
}

// parseChunkLength accepts HH:MM:SS or a Go duration such as 20m or 1h30m
func parseChunkLength(s string) (video.Timestamp, error) {
	if ts, err := video.ParseTimestamp(s); err == nil {
		return ts, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < time.Second {
		return video.Timestamp{}, fmt.Errorf("invalid chunk length %q", s)
	}
	return video.TimestampFromDuration(d), nil
}

func orDefault(value, fallback string) string {
	if v := strings.TrimSpace(value); v != "" {
		return v
	}
	return fallback
}
