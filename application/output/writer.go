package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/transcript"
)

// Writer persists transcripts, replacing any previous file for the same video
type Writer struct {
	encoder   transcript.DocumentEncoder
	publisher transcript.Publisher
	log       logrus.FieldLogger
}

// Option configures a Writer
type Option func(*Writer)

// WithPublisher uploads every written transcript
func WithPublisher(publisher transcript.Publisher) Option {
	return func(w *Writer) {
		w.publisher = publisher
	}
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(w *Writer) {
		w.log = log
	}
}

// NewWriter creates a Writer. encoder is used for the doc format.
func NewWriter(encoder transcript.DocumentEncoder, opts ...Option) *Writer {
	w := &Writer{
		encoder: encoder,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns where the transcript for result will be written
func Path(result *transcript.Result, folder string, format transcript.OutputFormat) string {
	return filepath.Join(folder, result.Reference.Stem()+format.Extension())
}

// Write stores result under folder in the given format and returns the file path
func (w *Writer) Write(ctx context.Context, result *transcript.Result, folder string, format transcript.OutputFormat) (string, error) {
	data, err := w.encode(result, format)
	if err != nil {
		return "", pipeline.NewStageError(pipeline.KindWrite, "encode", err)
	}

	if err := os.MkdirAll(folder, 0755); err != nil {
		return "", pipeline.NewStageError(pipeline.KindWrite, "write", fmt.Errorf("create output folder: %w", err))
	}

	path := Path(result, folder, format)
	if err := writeFileAtomic(path, data); err != nil {
		return "", pipeline.NewStageFailure(pipeline.KindWrite, "write", err)
	}

	if w.publisher != nil {
		location, err := w.publisher.Publish(ctx, path)
		if err != nil {
			return path, pipeline.NewStageFailure(pipeline.KindWrite, "publish", err)
		}
		w.log.WithFields(logrus.Fields{
			"path":     path,
			"location": location,
		}).Info("transcript published")
	}

	return path, nil
}

func (w *Writer) encode(result *transcript.Result, format transcript.OutputFormat) ([]byte, error) {
	switch format {
	case transcript.FormatTXT:
		text := result.Text
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		return []byte(text), nil
	case transcript.FormatDOC:
		if w.encoder == nil {
			return nil, fmt.Errorf("no document encoder configured")
		}
		return w.encoder.Encode(result.Reference.Stem(), result.Text)
	}
	return nil, fmt.Errorf("unsupported output format %q", format)
}

// writeFileAtomic writes to a temp file in the same directory and renames it over path
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
