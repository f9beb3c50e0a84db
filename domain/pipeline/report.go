package pipeline

import (
	"context"
	"time"

	"video-transcriber/domain/artifact"
	"video-transcriber/domain/video"
)

// Outcome is the terminal record for one video
type Outcome struct {
	Reference  video.Reference
	State      State
	OutputPath string
	Kind       ErrorKind
	Err        error
	Duration   time.Duration
}

// Succeeded reports whether the video reached WRITTEN
func (o Outcome) Succeeded() bool {
	return o.State == StateWritten
}

// Cause is a readable failure description, empty on success
func (o Outcome) Cause() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// Report is the aggregate result of one run. Outcomes are in source order.
type Report struct {
	RunID      string
	Config     Configuration
	Outcomes   []Outcome
	Cleanup    *artifact.CleanupResult
	Aborted    bool
	AbortErr   error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Written returns the number of videos that reached WRITTEN
func (r *Report) Written() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			n++
		}
	}
	return n
}

// Failed returns the number of videos that ended in FAILED
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Written()
}

// Success reports whether the run completed and every video was written
func (r *Report) Success() bool {
	return !r.Aborted && r.Failed() == 0
}

// Duration is the wall-clock time of the run
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunRecorder persists completed reports
type RunRecorder interface {
	Record(ctx context.Context, report *Report) error
}

// RunSummary is a persisted run as read back from a recorder
type RunSummary struct {
	RunID      string
	SourceKind video.SourceKind
	SourceID   string
	StartedAt  time.Time
	FinishedAt time.Time
	Written    int
	Failed     int
	Aborted    bool
}

// RunHistory lists previously recorded runs, newest first
type RunHistory interface {
	Recent(ctx context.Context, limit int) ([]RunSummary, error)
}

// ReportNotifier delivers a report to the operator
type ReportNotifier interface {
	NotifyReport(ctx context.Context, report *Report) error
}
