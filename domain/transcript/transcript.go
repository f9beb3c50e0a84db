package transcript

import (
	"context"
	"fmt"
	"strings"

	"video-transcriber/domain/video"
)

// Model selects the speech-to-text engine
type Model string

// ModelWhisper is currently the only supported engine
const ModelWhisper Model = "whisper"

// ParseModel validates a transcription_model value
func ParseModel(s string) (Model, error) {
	if m := Model(strings.ToLower(strings.TrimSpace(s))); m == ModelWhisper {
		return m, nil
	}
	return "", fmt.Errorf("for now the only transcription model available is whisper; got %q", s)
}

// Quality is the accuracy/latency tier passed to the engine.
// Tiers are ordered: Base is fastest, Large is most accurate.
type Quality string

const (
	QualityBase   Quality = "base"
	QualityMedium Quality = "medium"
	QualityLarge  Quality = "large"
)

// ParseQuality validates a transcription_quality value
func ParseQuality(s string) (Quality, error) {
	switch q := Quality(strings.ToLower(strings.TrimSpace(s))); q {
	case QualityBase, QualityMedium, QualityLarge:
		return q, nil
	}
	return "", fmt.Errorf("quality must be base, medium, or large; got %q", s)
}

// Rank orders tiers from fastest (0) to most accurate
func (q Quality) Rank() int {
	switch q {
	case QualityBase:
		return 0
	case QualityMedium:
		return 1
	case QualityLarge:
		return 2
	}
	return -1
}

// OutputFormat is the serialisation used for transcript files
type OutputFormat string

const (
	FormatTXT OutputFormat = "txt"
	FormatDOC OutputFormat = "doc"
)

// ParseOutputFormat validates an output_format value
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTXT, FormatDOC:
		return f, nil
	}
	return "", fmt.Errorf("output format must be txt or doc; got %q", s)
}

// Extension returns the file extension including the leading dot
func (f OutputFormat) Extension() string {
	return "." + string(f)
}

// Result is the transcript text for one video
type Result struct {
	Text      string
	Reference video.Reference
}

// Engine runs speech-to-text on a single audio file
type Engine interface {
	Run(ctx context.Context, audioPath string, quality Quality) (string, error)
}

// DocumentEncoder wraps transcript text in a document container
type DocumentEncoder interface {
	Encode(title, text string) ([]byte, error)
}

// Publisher copies a written transcript to remote storage
type Publisher interface {
	// Publish uploads the file at localPath and returns its remote location
	Publish(ctx context.Context, localPath string) (string, error)
}
