package process

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	appartifact "video-transcriber/application/artifact"
	appoutput "video-transcriber/application/output"
	appsource "video-transcriber/application/source"
	apptranscription "video-transcriber/application/transcription"
	appvideo "video-transcriber/application/video"
	"video-transcriber/domain/artifact"
	"video-transcriber/domain/cloud"
	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/transcript"
	"video-transcriber/domain/video"
)

// Locator resolves a configuration into video references
type Locator interface {
	Locate(ctx context.Context, cfg pipeline.Configuration, token *cloud.AuthToken) ([]video.Reference, error)
}

// DirLocker takes an exclusive lock on a directory for the duration of a run
type DirLocker interface {
	Lock(dir string) (unlock func() error, err error)
}

// Ports groups the adapters a run drives. Gateway, Downloader, Segmenter,
// Encoder and Publisher may be nil when the configuration does not need them.
type Ports struct {
	Gateway     cloud.Gateway
	Lister      video.Lister
	Converter   video.AudioConverter
	Downloader  video.StreamDownloader
	Segmenter   video.Segmenter
	FileChecker video.FileChecker
	Engine      transcript.Engine
	Encoder     transcript.DocumentEncoder
	Publisher   transcript.Publisher
}

// Service orchestrates a complete transcription run
type Service struct {
	ports    Ports
	locator  Locator
	locker   DirLocker
	recorder pipeline.RunRecorder
	notifier pipeline.ReportNotifier
	log      logrus.FieldLogger
	now      func() time.Time
	newRunID func() string

	outMu  sync.Mutex
	output io.Writer
}

// Option configures a Service
type Option func(*Service)

// WithLocator replaces the default source locator
func WithLocator(locator Locator) Option {
	return func(s *Service) {
		s.locator = locator
	}
}

// WithLocker guards the intermediate folder against concurrent runs
func WithLocker(locker DirLocker) Option {
	return func(s *Service) {
		s.locker = locker
	}
}

// WithRecorder persists every finished report
func WithRecorder(recorder pipeline.RunRecorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// WithNotifier delivers every finished report
func WithNotifier(notifier pipeline.ReportNotifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithLogger sets the structured logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// WithClock overrides time.Now (for testing)
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithRunIDGenerator overrides the run id source (for testing)
func WithRunIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newRunID = gen
	}
}

// NewService creates a new process service. Progress lines go to output.
func NewService(ports Ports, output io.Writer, opts ...Option) *Service {
	if output == nil {
		output = io.Discard
	}
	s := &Service{
		ports:    ports,
		output:   output,
		log:      logrus.StandardLogger(),
		now:      time.Now,
		newRunID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.locator == nil {
		s.locator = appsource.NewLocator(ports.Gateway, ports.Lister)
	}
	return s
}

// stages are the per-run services built around the run's artifact manager
type stages struct {
	extract    *appvideo.ExtractService
	transcribe *apptranscription.Service
	write      *appoutput.Writer
}

// Process runs the pipeline for cfg. The returned report always lists every
// resolved video in source order. A non-nil error means the run was aborted
// before or during per-video work; the report is still returned.
func (s *Service) Process(ctx context.Context, cfg pipeline.Configuration) (*pipeline.Report, error) {
	report := &pipeline.Report{
		RunID:     s.newRunID(),
		Config:    cfg,
		StartedAt: s.now(),
	}
	log := s.log.WithFields(logrus.Fields{
		"run_id":      report.RunID,
		"source_type": cfg.SourceKind,
		"source_id":   cfg.SourceID,
	})
	defer s.finish(ctx, report, log)

	s.printf("Run %s\n", report.RunID)
	s.printf("Source: %s/%s %s\n\n", cfg.SourceKind, cfg.Cardinality, cfg.SourceID)

	if err := os.MkdirAll(cfg.IntermediateFolder, 0755); err != nil {
		return s.abort(report, log, fmt.Errorf("%w: create intermediate folder: %v", pipeline.ErrInvalidConfiguration, err))
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(cfg.IntermediateFolder)
		if err != nil {
			return s.abort(report, log, fmt.Errorf("%w: %v", pipeline.ErrInvalidConfiguration, err))
		}
		defer func() {
			if err := unlock(); err != nil {
				log.WithError(err).Warn("failed to release intermediate folder lock")
			}
		}()
	}

	artifacts := appartifact.NewManager(cfg.KeepIntermediateFiles, appartifact.WithLogger(log))
	defer func() {
		report.Cleanup = artifacts.CleanUp()
		s.printCleanup(report.Cleanup, cfg.IntermediateFolder)
	}()

	var token *cloud.AuthToken
	if cfg.SourceKind == video.KindCloud {
		var err error
		if token, err = s.authenticate(ctx); err != nil {
			return s.abort(report, log, err)
		}
	}

	s.printf("Resolving source...\n")
	refs, err := s.locator.Locate(ctx, cfg, token)
	if err != nil {
		kind := pipeline.KindOf(err)
		if kind == pipeline.KindUnknown {
			kind = pipeline.KindInvalidSource
		}
		return s.abort(report, log, pipeline.NewStageError(kind, "resolve", err))
	}
	s.printf("      Found %d video(s)\n\n", len(refs))
	log.WithFields(logrus.Fields{
		"videos":       len(refs),
		"workers":      cfg.Workers,
		"chunk_length": cfg.ChunkLength.Duration().String(),
	}).Info("source resolved")

	st := stages{
		extract: appvideo.NewExtractService(
			s.ports.Converter, s.ports.Downloader, s.ports.Gateway, s.ports.FileChecker, artifacts, cfg.AudioBitrate,
		),
		transcribe: apptranscription.NewService(
			s.ports.Engine, artifacts,
			apptranscription.WithSegmenter(s.ports.Segmenter, cfg.ChunkLength),
			apptranscription.WithTimeout(cfg.TranscriptionTimeout),
		),
		write: s.newWriter(log),
	}

	report.Outcomes = runAll(cfg.Workers, refs, func(i int, ref video.Reference) pipeline.Outcome {
		return s.processOne(ctx, cfg, token, st, log, i, len(refs), ref)
	})

	if err := ctx.Err(); err != nil {
		return s.abort(report, log, pipeline.NewStageError(pipeline.KindCancelled, "run", err))
	}
	return report, nil
}

func (s *Service) authenticate(ctx context.Context) (*cloud.AuthToken, error) {
	s.printf("Authenticating with Google Drive...\n")
	if s.ports.Gateway == nil {
		return nil, pipeline.NewStageError(pipeline.KindAuth, "authenticate", fmt.Errorf("cloud storage is not configured"))
	}
	token, err := s.ports.Gateway.Authenticate(ctx)
	if err != nil {
		return nil, pipeline.NewStageError(pipeline.KindAuth, "authenticate", err)
	}
	if !token.Valid(s.now()) {
		return nil, pipeline.NewStageError(pipeline.KindAuth, "authenticate", fmt.Errorf("credential is already expired"))
	}
	s.printf("      Authenticated\n\n")
	return token, nil
}

func (s *Service) newWriter(log logrus.FieldLogger) *appoutput.Writer {
	opts := []appoutput.Option{appoutput.WithLogger(log)}
	if s.ports.Publisher != nil {
		opts = append(opts, appoutput.WithPublisher(s.ports.Publisher))
	}
	return appoutput.NewWriter(s.ports.Encoder, opts...)
}

// processOne drives a single reference to a terminal state
func (s *Service) processOne(
	ctx context.Context,
	cfg pipeline.Configuration,
	token *cloud.AuthToken,
	st stages,
	runLog logrus.FieldLogger,
	index, total int,
	ref video.Reference,
) pipeline.Outcome {
	started := s.now()
	state := pipeline.NewRunState()
	log := runLog.WithFields(logrus.Fields{
		"video": ref.String(),
		"index": index + 1,
	})
	prefix := fmt.Sprintf("[%d/%d] %s", index+1, total, ref.Stem())

	outcome := func(path string) pipeline.Outcome {
		return pipeline.Outcome{
			Reference:  ref,
			State:      state.State(),
			OutputPath: path,
			Kind:       pipeline.KindOf(state.Err()),
			Err:        state.Err(),
			Duration:   s.now().Sub(started),
		}
	}
	fail := func(err error) pipeline.Outcome {
		if ferr := state.Fail(err); ferr != nil {
			log.WithError(ferr).Error("state machine rejected failure")
		}
		log.WithError(err).WithField("kind", pipeline.KindOf(err)).Error("video failed")
		s.printf("%s: failed: %v\n", prefix, err)
		return outcome("")
	}
	advance := func(to pipeline.State) error {
		if err := state.Advance(to); err != nil {
			return pipeline.NewStageError(pipeline.KindUnknown, string(to), err)
		}
		return nil
	}

	if err := advance(pipeline.StateResolved); err != nil {
		return fail(err)
	}
	if err := ctx.Err(); err != nil {
		return fail(pipeline.NewStageError(pipeline.KindCancelled, "start", err))
	}

	s.printf("%s: extracting audio...\n", prefix)
	art, err := st.extract.Extract(ctx, appvideo.ExtractInput{
		Reference: ref,
		Format:    cfg.AudioFormat,
		DestDir:   cfg.IntermediateFolder,
		Retain:    cfg.KeepIntermediateFiles,
		Token:     token,
	})
	if err != nil {
		return fail(err)
	}
	if err := advance(pipeline.StateExtracted); err != nil {
		return fail(err)
	}
	log.WithField("audio", art.Path).Debug("audio extracted")

	s.printf("%s: transcribing (%s, %s)...\n", prefix, cfg.Model, cfg.Quality)
	result, err := st.transcribe.Transcribe(ctx, art, cfg.Quality)
	if err != nil {
		return fail(err)
	}
	if err := advance(pipeline.StateTranscribed); err != nil {
		return fail(err)
	}
	log.WithField("chars", len(result.Text)).Debug("transcription finished")

	path, err := st.write.Write(ctx, result, cfg.OutputFolder, cfg.OutputFormat)
	if err != nil {
		return fail(err)
	}
	if err := advance(pipeline.StateWritten); err != nil {
		return fail(err)
	}

	s.printf("%s: written %s\n", prefix, path)
	log.WithField("output", path).Info("transcript written")
	return outcome(path)
}

// runAll calls fn for every reference, sequentially or on a bounded pool.
// Outcomes keep the order of refs regardless of completion order.
func runAll(workers int, refs []video.Reference, fn func(int, video.Reference) pipeline.Outcome) []pipeline.Outcome {
	outcomes := make([]pipeline.Outcome, len(refs))
	if workers <= 1 || len(refs) <= 1 {
		for i, ref := range refs {
			outcomes[i] = fn(i, ref)
		}
		return outcomes
	}

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, ref := range refs {
		sem <- struct{}{}
		wg.Add(1)
		go func(i int, ref video.Reference) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = fn(i, ref)
		}(i, ref)
	}
	wg.Wait()
	return outcomes
}

func (s *Service) abort(report *pipeline.Report, log logrus.FieldLogger, err error) (*pipeline.Report, error) {
	report.Aborted = true
	report.AbortErr = err
	log.WithError(err).WithField("kind", pipeline.KindOf(err)).Error("run aborted")
	s.printf("Aborted: %v\n", err)
	return report, err
}

// finish stamps the report and hands it to the recorder and notifier.
// Neither can fail the run.
func (s *Service) finish(ctx context.Context, report *pipeline.Report, log logrus.FieldLogger) {
	report.FinishedAt = s.now()
	ctx = context.WithoutCancel(ctx)

	if s.recorder != nil {
		if err := s.recorder.Record(ctx, report); err != nil {
			log.WithError(err).Warn("failed to record run history")
		}
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyReport(ctx, report); err != nil {
			log.WithError(err).Warn("failed to send run report")
		}
	}

	log.WithFields(logrus.Fields{
		"written":  report.Written(),
		"failed":   report.Failed(),
		"aborted":  report.Aborted,
		"duration": report.Duration().String(),
	}).Info("run finished")

	s.printf("\nDone! %d written, %d failed in %s\n", report.Written(), report.Failed(), formatDuration(report.Duration()))
}

func (s *Service) printCleanup(result *artifact.CleanupResult, dir string) {
	if result == nil {
		return
	}
	switch {
	case len(result.RetainedFiles) > 0:
		s.printf("\nKept %d intermediate file(s) in %s\n", len(result.RetainedFiles), dir)
	case len(result.DeletedFiles) > 0:
		s.printf("\nRemoved %d intermediate file(s) (%.1f MB)\n", len(result.DeletedFiles), float64(result.FreedBytes)/1024/1024)
	}
	for _, f := range result.FailedFiles {
		s.printf("      Could not remove: %s\n", f.Path)
	}
}

func (s *Service) printf(format string, args ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.output, format, args...)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	sec := (d % time.Minute) / time.Second
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, sec)
	}
	return fmt.Sprintf("%ds", sec)
}
