package pipeline

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a run parameter is rejected at construction
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrInvalidSource is returned for a bad path, id, or format at resolution time
	ErrInvalidSource = errors.New("invalid source")

	// ErrAuth is returned when the cloud credential handoff fails
	ErrAuth = errors.New("authentication failed")

	// ErrNotFound is returned when a cloud file or folder does not exist
	ErrNotFound = errors.New("not found")

	// ErrExtraction is returned when a video cannot be turned into audio
	ErrExtraction = errors.New("audio extraction failed")

	// ErrTranscription is returned when speech-to-text fails for one video
	ErrTranscription = errors.New("transcription failed")

	// ErrWrite is returned when a transcript cannot be written
	ErrWrite = errors.New("write failed")

	// ErrCancelled is recorded for videos that never ran because the run was aborted
	ErrCancelled = errors.New("cancelled")
)

// ErrorKind classifies a pipeline failure
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindInvalidConfiguration ErrorKind = "InvalidConfiguration"
	KindInvalidSource        ErrorKind = "InvalidSource"
	KindAuth                 ErrorKind = "AuthError"
	KindNotFound             ErrorKind = "NotFound"
	KindExtraction           ErrorKind = "ExtractionError"
	KindTranscription        ErrorKind = "TranscriptionError"
	KindWrite                ErrorKind = "WriteError"
	KindCancelled            ErrorKind = "Cancelled"
	KindUnknown              ErrorKind = "Unknown"
)

var kindSentinels = []struct {
	kind     ErrorKind
	sentinel error
}{
	{KindInvalidConfiguration, ErrInvalidConfiguration},
	{KindInvalidSource, ErrInvalidSource},
	{KindAuth, ErrAuth},
	{KindNotFound, ErrNotFound},
	{KindExtraction, ErrExtraction},
	{KindTranscription, ErrTranscription},
	{KindWrite, ErrWrite},
	{KindCancelled, ErrCancelled},
}

// Sentinel returns the package error value for a kind, or nil for KindNone/KindUnknown
func (k ErrorKind) Sentinel() error {
	for _, ks := range kindSentinels {
		if ks.kind == k {
			return ks.sentinel
		}
	}
	return nil
}

// KindOf classifies err. An explicit StageError kind wins over any sentinel in
// its cause; otherwise the first matching sentinel in declaration order is used.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) && stageErr.Kind != KindNone {
		return stageErr.Kind
	}
	for _, ks := range kindSentinels {
		if errors.Is(err, ks.sentinel) {
			return ks.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindUnknown
}

// StageError is a failure scoped to one stage of one video
type StageError struct {
	Kind  ErrorKind
	Stage string
	Err   error
}

// NewStageError wraps err with a stage and kind
func NewStageError(kind ErrorKind, stage string, err error) *StageError {
	return &StageError{Kind: kind, Stage: stage, Err: err}
}

// NewStageFailure wraps err for a stage with kind, unless the cause already
// says something more specific about the video: an operator cancellation
// reports Cancelled and a cloud file that vanished reports NotFound.
// A per-video deadline is left to the stage kind.
func NewStageFailure(kind ErrorKind, stage string, err error) *StageError {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrCancelled):
		kind = KindCancelled
	case errors.Is(err, ErrNotFound):
		kind = KindNotFound
	}
	return NewStageError(kind, stage, err)
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause to errors.Is / errors.As
func (e *StageError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.Sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ValidationError contains details about a configuration failure with a suggestion
type ValidationError struct {
	Field      string
	Message    string
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s: %s\n\nTo fix this, %s", e.Field, e.Message, e.Suggestion)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap lets callers match ErrInvalidConfiguration
func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfiguration
}
