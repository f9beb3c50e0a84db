package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/video"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history", "runs.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleReport(id string, started time.Time) *pipeline.Report {
	return &pipeline.Report{
		RunID: id,
		Config: pipeline.Configuration{
			SourceKind:  video.KindLocal,
			Cardinality: video.Multiple,
			SourceID:    "/videos",
		},
		Outcomes: []pipeline.Outcome{
			{
				Reference:  video.Reference{Kind: video.KindLocal, ID: "/videos/a.mp4", Name: "a"},
				State:      pipeline.StateWritten,
				OutputPath: "output/a.txt",
				Duration:   1500 * time.Millisecond,
			},
			{
				Reference: video.Reference{Kind: video.KindLocal, ID: "/videos/b.mp4", Name: "b"},
				State:     pipeline.StateFailed,
				Kind:      pipeline.KindExtraction,
				Err:       errors.New("no audio stream"),
			},
		},
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
	}
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 12, 28, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, sampleReport(fmt.Sprintf("run-%d", i), base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("record run-%d: %v", i, err)
		}
	}

	runs, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].RunID != "run-2" || runs[1].RunID != "run-1" {
		t.Errorf("expected newest first, got %s, %s", runs[0].RunID, runs[1].RunID)
	}

	r := runs[0]
	if r.SourceKind != video.KindLocal || r.SourceID != "/videos" {
		t.Errorf("unexpected source %s %s", r.SourceKind, r.SourceID)
	}
	if r.Written != 1 || r.Failed != 1 || r.Aborted {
		t.Errorf("unexpected counts %+v", r)
	}
	if !r.StartedAt.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("unexpected start time %v", r.StartedAt)
	}
}

func TestStore_Videos(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if err := store.Record(ctx, sampleReport("run-1", time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}

	videos, err := store.Videos(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 videos, got %d", len(videos))
	}

	if videos[0].Name != "a" || videos[0].State != pipeline.StateWritten || videos[0].OutputPath != "output/a.txt" {
		t.Errorf("unexpected first video %+v", videos[0])
	}
	if videos[0].Duration != 1500*time.Millisecond {
		t.Errorf("expected duration 1.5s, got %v", videos[0].Duration)
	}
	if videos[1].Kind != pipeline.KindExtraction || videos[1].Cause != "no audio stream" {
		t.Errorf("unexpected failure record %+v", videos[1])
	}
}

func TestStore_RecordIsIdempotentPerRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	report := sampleReport("run-1", time.Now())

	for i := 0; i < 2; i++ {
		if err := store.Record(ctx, report); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	videos, err := store.Videos(ctx, "run-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Errorf("expected videos replaced, got %d rows", len(videos))
	}
}

func TestStore_AbortedRun(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report := &pipeline.Report{
		RunID:      "aborted",
		Config:     pipeline.Configuration{SourceKind: video.KindCloud, SourceID: "folder"},
		Aborted:    true,
		AbortErr:   pipeline.ErrAuth,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if err := store.Record(ctx, report); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := store.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || !runs[0].Aborted {
		t.Errorf("expected one aborted run, got %+v", runs)
	}
}

func TestStore_Run(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	report := &pipeline.Report{
		RunID:      "aborted",
		Config:     pipeline.Configuration{SourceKind: video.KindCloud, SourceID: "folder"},
		Aborted:    true,
		AbortErr:   pipeline.ErrAuth,
		StartedAt:  time.Now(),
		FinishedAt: time.Now(),
	}
	if err := store.Record(ctx, report); err != nil {
		t.Fatalf("record: %v", err)
	}

	run, cause, err := store.Run(ctx, "aborted")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.SourceKind != video.KindCloud || !run.Aborted {
		t.Errorf("unexpected run %+v", run)
	}
	if cause != pipeline.ErrAuth.Error() {
		t.Errorf("expected abort cause %q, got %q", pipeline.ErrAuth.Error(), cause)
	}

	_, _, err = store.Run(ctx, "missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}
