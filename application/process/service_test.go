package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"video-transcriber/domain/cloud"
	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/transcript"
	"video-transcriber/domain/video"
)

// --- Mock implementations for testing ---

// mockLocator implements Locator for testing
type mockLocator struct {
	refs     []video.Reference
	err      error
	calls    int
	gotToken *cloud.AuthToken
}

func (m *mockLocator) Locate(ctx context.Context, cfg pipeline.Configuration, token *cloud.AuthToken) ([]video.Reference, error) {
	m.calls++
	m.gotToken = token
	return m.refs, m.err
}

// mockConverter implements video.AudioConverter; it writes a small file so cleanup has work to do
type mockConverter struct {
	failFor map[string]error
	mu      sync.Mutex
	calls   []string
}

func (m *mockConverter) Convert(ctx context.Context, req *video.AudioExtractionRequest, outputPath string) error {
	m.mu.Lock()
	m.calls = append(m.calls, req.SourceVideoPath)
	m.mu.Unlock()
	if err, ok := m.failFor[req.SourceVideoPath]; ok {
		return err
	}
	return os.WriteFile(outputPath, []byte("audio:"+req.SourceVideoPath), 0644)
}

// mockEngine implements transcript.Engine
type mockEngine struct {
	failFor  map[string]error
	onRun    func(audioPath string)
	delayFor map[string]time.Duration
	calls    atomic.Int32
}

func (m *mockEngine) Run(ctx context.Context, audioPath string, quality transcript.Quality) (string, error) {
	m.calls.Add(1)
	if m.onRun != nil {
		m.onRun(audioPath)
	}
	if d, ok := m.delayFor[filepath.Base(audioPath)]; ok {
		time.Sleep(d)
	}
	if err, ok := m.failFor[filepath.Base(audioPath)]; ok {
		return "", err
	}
	return "transcript of " + filepath.Base(audioPath), nil
}

// mockGateway implements cloud.Gateway
type mockGateway struct {
	authErr    error
	authCalls  atomic.Int32
	token      *cloud.AuthToken
	mu         sync.Mutex
	downloadTk []*cloud.AuthToken
}

func (m *mockGateway) Authenticate(ctx context.Context) (*cloud.AuthToken, error) {
	m.authCalls.Add(1)
	if m.authErr != nil {
		return nil, m.authErr
	}
	return m.token, nil
}

func (m *mockGateway) Resolve(ctx context.Context, token *cloud.AuthToken, id string, c video.Cardinality) ([]video.Reference, error) {
	return nil, errors.New("resolve should go through the locator mock")
}

func (m *mockGateway) Download(ctx context.Context, token *cloud.AuthToken, ref video.Reference, destPath string) error {
	m.mu.Lock()
	m.downloadTk = append(m.downloadTk, token)
	m.mu.Unlock()
	return os.WriteFile(destPath, []byte("video"), 0644)
}

// mockFileChecker implements video.FileChecker
type mockFileChecker struct{}

func (mockFileChecker) Exists(path string) bool { return true }

// mockLocker implements DirLocker
type mockLocker struct {
	err      error
	locked   string
	released bool
}

func (m *mockLocker) Lock(dir string) (func() error, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.locked = dir
	return func() error {
		m.released = true
		return nil
	}, nil
}

// mockRecorder implements pipeline.RunRecorder
type mockRecorder struct {
	reports []*pipeline.Report
	err     error
}

func (m *mockRecorder) Record(ctx context.Context, report *pipeline.Report) error {
	m.reports = append(m.reports, report)
	return m.err
}

// mockNotifier implements pipeline.ReportNotifier
type mockNotifier struct {
	reports []*pipeline.Report
	err     error
}

func (m *mockNotifier) NotifyReport(ctx context.Context, report *pipeline.Report) error {
	m.reports = append(m.reports, report)
	return m.err
}

// --- Helper functions ---

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig(t *testing.T, kind video.SourceKind, card video.Cardinality, keep bool) pipeline.Configuration {
	t.Helper()
	root := t.TempDir()
	cfg, err := pipeline.NewConfiguration(pipeline.Options{
		SourceType:            string(kind),
		SourceFormat:          string(card),
		SourceID:              "source",
		IntermediateFolder:    filepath.Join(root, "temp"),
		OutputFolder:          filepath.Join(root, "output"),
		KeepIntermediateFiles: &keep,
	})
	if err != nil {
		t.Fatalf("NewConfiguration: %v", err)
	}
	return cfg
}

func localRefs(names ...string) []video.Reference {
	refs := make([]video.Reference, len(names))
	for i, n := range names {
		refs[i] = video.Reference{Kind: video.KindLocal, ID: "/videos/" + n + ".mp4", Name: n}
	}
	return refs
}

func newTestService(ports Ports, locator Locator, out io.Writer, opts ...Option) *Service {
	if ports.Converter == nil {
		ports.Converter = &mockConverter{}
	}
	if ports.Engine == nil {
		ports.Engine = &mockEngine{}
	}
	ports.FileChecker = mockFileChecker{}
	opts = append([]Option{
		WithLocator(locator),
		WithLogger(quietLogger()),
		WithRunIDGenerator(func() string { return "run-test" }),
	}, opts...)
	return NewService(ports, out, opts...)
}

func assertAllTerminal(t *testing.T, report *pipeline.Report) {
	t.Helper()
	for i, o := range report.Outcomes {
		if !o.State.Terminal() {
			t.Errorf("outcome %d (%s) ended in non-terminal state %s", i, o.Reference.Name, o.State)
		}
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	return names
}

// --- Tests ---

func TestProcess_LocalSingleWritesTranscript(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Single, true)
	var out bytes.Buffer
	svc := newTestService(Ports{}, &mockLocator{refs: localRefs("keynote")}, &out)

	report, err := svc.Process(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Process() unexpected error: %v", err)
	}

	if report.RunID != "run-test" {
		t.Errorf("RunID = %q", report.RunID)
	}
	if len(report.Outcomes) != 1 || report.Outcomes[0].State != pipeline.StateWritten {
		t.Fatalf("Outcomes = %+v, want one WRITTEN", report.Outcomes)
	}

	path := filepath.Join(cfg.OutputFolder, "keynote.txt")
	if report.Outcomes[0].OutputPath != path {
		t.Errorf("OutputPath = %q, want %q", report.Outcomes[0].OutputPath, path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("transcript not written: %v", err)
	}
	if string(got) != "transcript of keynote.mp3\n" {
		t.Errorf("transcript = %q", got)
	}

	if files := dirEntries(t, cfg.IntermediateFolder); len(files) != 1 || files[0] != "keynote.mp3" {
		t.Errorf("intermediate files = %v, want the retained keynote.mp3", files)
	}
	if len(report.Cleanup.RetainedFiles) != 1 {
		t.Errorf("Cleanup.RetainedFiles = %v", report.Cleanup.RetainedFiles)
	}
	if !report.Success() {
		t.Error("Success() = false")
	}

	for _, want := range []string{"Run run-test", "[1/1] keynote: extracting audio", "[1/1] keynote: written", "Done! 1 written, 0 failed"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestProcess_FailureIsScopedToOneVideo(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Multiple, true)
	conv := &mockConverter{failFor: map[string]error{"/videos/b.mp4": errors.New("no audio stream")}}
	svc := newTestService(Ports{Converter: conv}, &mockLocator{refs: localRefs("a", "b", "c")}, io.Discard)

	report, err := svc.Process(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Process() unexpected error: %v", err)
	}

	assertAllTerminal(t, report)
	wantStates := []pipeline.State{pipeline.StateWritten, pipeline.StateFailed, pipeline.StateWritten}
	for i, want := range wantStates {
		if report.Outcomes[i].State != want {
			t.Errorf("outcome %d state = %s, want %s", i, report.Outcomes[i].State, want)
		}
	}
	if report.Outcomes[1].Kind != pipeline.KindExtraction {
		t.Errorf("failed kind = %q, want ExtractionError", report.Outcomes[1].Kind)
	}
	if !strings.Contains(report.Outcomes[1].Cause(), "no audio stream") {
		t.Errorf("cause = %q", report.Outcomes[1].Cause())
	}
	if report.Written() != 2 || report.Failed() != 1 {
		t.Errorf("Written/Failed = %d/%d, want 2/1", report.Written(), report.Failed())
	}
	if report.Aborted {
		t.Error("a per-video failure must not abort the run")
	}

	outputs := dirEntries(t, cfg.OutputFolder)
	if strings.Join(outputs, ",") != "a.txt,c.txt" {
		t.Errorf("output files = %v, want a.txt and c.txt", outputs)
	}
}

func TestProcess_TranscriptionFailureKind(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Single, true)
	engine := &mockEngine{failFor: map[string]error{"a.mp3": errors.New("model crashed")}}
	svc := newTestService(Ports{Engine: engine}, &mockLocator{refs: localRefs("a")}, io.Discard)

	report, err := svc.Process(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if report.Outcomes[0].Kind != pipeline.KindTranscription {
		t.Errorf("Kind = %q, want TranscriptionError", report.Outcomes[0].Kind)
	}
	if len(dirEntries(t, cfg.OutputFolder)) != 0 {
		t.Error("no transcript should be written for a failed video")
	}
}

func TestProcess_CleanupWhenNotRetaining(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Multiple, false)
	engine := &mockEngine{failFor: map[string]error{"b.mp3": errors.New("model crashed")}}
	svc := newTestService(Ports{Engine: engine}, &mockLocator{refs: localRefs("a", "b")}, io.Discard)

	report, err := svc.Process(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	if files := dirEntries(t, cfg.IntermediateFolder); len(files) != 0 {
		t.Errorf("intermediate folder still has %v", files)
	}
	if len(report.Cleanup.DeletedFiles) != 2 {
		t.Errorf("Cleanup.DeletedFiles = %+v, want both audio files", report.Cleanup.DeletedFiles)
	}
	if len(dirEntries(t, cfg.OutputFolder)) != 1 {
		t.Error("the successful transcript must survive cleanup")
	}
}

func TestProcess_CloudAuthenticatesOnce(t *testing.T) {
	cfg := testConfig(t, video.KindCloud, video.Multiple, false)
	token := &cloud.AuthToken{Client: http.DefaultClient}
	gw := &mockGateway{token: token}
	locator := &mockLocator{refs: []video.Reference{
		{Kind: video.KindCloud, ID: "f1", Name: "one", Ext: ".mp4"},
		{Kind: video.KindCloud, ID: "f2", Name: "two", Ext: ".mp4"},
		{Kind: video.KindCloud, ID: "f3", Name: "three", Ext: ".mp4"},
	}}
	svc := newTestService(Ports{Gateway: gw}, locator, io.Discard)

	report, err := svc.Process(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Process() unexpected error: %v", err)
	}

	if gw.authCalls.Load() != 1 {
		t.Errorf("Authenticate called %d times, want 1", gw.authCalls.Load())
	}
	if locator.gotToken != token {
		t.Error("locator did not receive the run token")
	}
	if len(gw.downloadTk) != 3 {
		t.Fatalf("Download called %d times, want 3", len(gw.downloadTk))
	}
	for i, tk := range gw.downloadTk {
		if tk != token {
			t.Errorf("download %d used a different token", i)
		}
	}
	if report.Written() != 3 {
		t.Errorf("Written() = %d, want 3", report.Written())
	}
	if files := dirEntries(t, cfg.IntermediateFolder); len(files) != 0 {
		t.Errorf("downloaded sources and audio should be cleaned up, found %v", files)
	}
}

func TestProcess_AuthFailureAborts(t *testing.T) {
	cfg := testConfig(t, video.KindCloud, video.Multiple, false)
	gw := &mockGateway{authErr: errors.New("invalid_grant")}
	locator := &mockLocator{}
	recorder := &mockRecorder{}
	conv := &mockConverter{}
	svc := newTestService(Ports{Gateway: gw, Converter: conv}, locator, io.Discard, WithRecorder(recorder))

	report, err := svc.Process(context.Background(), cfg)
	if !errors.Is(err, pipeline.ErrAuth) {
		t.Fatalf("Process() error = %v, want ErrAuth", err)
	}

	if report == nil || !report.Aborted {
		t.Fatal("report should be returned and marked aborted")
	}
	if locator.calls != 0 {
		t.Error("resolution must not run after an auth failure")
	}
	if len(conv.calls) != 0 {
		t.Error("no per-video work may run after an auth failure")
	}
	if report.Cleanup == nil {
		t.Error("cleanup must still run on abort")
	}
	if len(recorder.reports) != 1 {
		t.Error("aborted runs are still recorded")
	}
}

func TestProcess_ExpiredTokenAborts(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cfg := testConfig(t, video.KindCloud, video.Single, false)
	gw := &mockGateway{token: &cloud.AuthToken{Client: http.DefaultClient, Expiry: now.Add(-time.Minute)}}
	svc := newTestService(Ports{Gateway: gw}, &mockLocator{}, io.Discard, WithClock(func() time.Time { return now }))

	_, err := svc.Process(context.Background(), cfg)
	if pipeline.KindOf(err) != pipeline.KindAuth {
		t.Errorf("KindOf() = %q, want AuthError", pipeline.KindOf(err))
	}
}

func TestProcess_ResolutionFailureAborts(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind pipeline.ErrorKind
	}{
		{"invalid source", fmt.Errorf("%w: no such file", pipeline.ErrInvalidSource), pipeline.KindInvalidSource},
		{"not found", pipeline.NewStageError(pipeline.KindNotFound, "resolve", errors.New("404")), pipeline.KindNotFound},
		{"unclassified", errors.New("disk on fire"), pipeline.KindInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, video.KindLocal, video.Multiple, false)
			conv := &mockConverter{}
			svc := newTestService(Ports{Converter: conv}, &mockLocator{err: tt.err}, io.Discard)

			report, err := svc.Process(context.Background(), cfg)
			if pipeline.KindOf(err) != tt.wantKind {
				t.Errorf("KindOf() = %q, want %q", pipeline.KindOf(err), tt.wantKind)
			}
			if !report.Aborted || len(report.Outcomes) != 0 {
				t.Errorf("report = %+v, want aborted with no outcomes", report)
			}
			if len(conv.calls) != 0 {
				t.Error("no per-video work may run after a resolution failure")
			}
		})
	}
}

func TestProcess_LockHeldAborts(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Single, false)
	locator := &mockLocator{refs: localRefs("a")}
	svc := newTestService(Ports{}, locator, io.Discard, WithLocker(&mockLocker{err: errors.New("temp is locked by another run")}))

	report, err := svc.Process(context.Background(), cfg)
	if !errors.Is(err, pipeline.ErrInvalidConfiguration) {
		t.Errorf("Process() error = %v, want ErrInvalidConfiguration", err)
	}
	if !report.Aborted || locator.calls != 0 {
		t.Error("run must abort before resolution when the lock is held")
	}
}

func TestProcess_LockReleased(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Single, false)
	locker := &mockLocker{}
	svc := newTestService(Ports{}, &mockLocator{refs: localRefs("a")}, io.Discard, WithLocker(locker))

	if _, err := svc.Process(context.Background(), cfg); err != nil {
		t.Fatal(err)
	}
	if locker.locked != cfg.IntermediateFolder || !locker.released {
		t.Errorf("locker = %+v, want lock on intermediate folder and release", locker)
	}
}

func TestProcess_CancellationMarksRemainingVideos(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Multiple, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := &mockEngine{onRun: func(string) { cancel() }}
	svc := newTestService(Ports{Engine: engine}, &mockLocator{refs: localRefs("a", "b", "c")}, io.Discard)

	report, err := svc.Process(ctx, cfg)
	if !errors.Is(err, pipeline.ErrCancelled) {
		t.Fatalf("Process() error = %v, want ErrCancelled", err)
	}

	assertAllTerminal(t, report)
	if report.Outcomes[0].State != pipeline.StateWritten {
		t.Errorf("in-flight video state = %s, want WRITTEN", report.Outcomes[0].State)
	}
	for _, o := range report.Outcomes[1:] {
		if o.State != pipeline.StateFailed || o.Kind != pipeline.KindCancelled {
			t.Errorf("%s: state=%s kind=%s, want FAILED/Cancelled", o.Reference.Name, o.State, o.Kind)
		}
	}
	if files := dirEntries(t, cfg.IntermediateFolder); len(files) != 0 {
		t.Errorf("cleanup must run on cancellation, found %v", files)
	}
}

// ctxEngine blocks until the run is cancelled
type ctxEngine struct{ cancel context.CancelFunc }

func (e ctxEngine) Run(ctx context.Context, audioPath string, quality transcript.Quality) (string, error) {
	e.cancel()
	<-ctx.Done()
	return "", ctx.Err()
}

func TestProcess_InFlightVideoReportsCancelled(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Multiple, false)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := newTestService(Ports{Engine: ctxEngine{cancel: cancel}}, &mockLocator{refs: localRefs("a", "b")}, io.Discard)

	report, err := svc.Process(ctx, cfg)
	if !errors.Is(err, pipeline.ErrCancelled) {
		t.Fatalf("Process() error = %v, want ErrCancelled", err)
	}
	for _, o := range report.Outcomes {
		if o.State != pipeline.StateFailed || o.Kind != pipeline.KindCancelled {
			t.Errorf("%s: state=%s kind=%s, want FAILED/Cancelled", o.Reference.Name, o.State, o.Kind)
		}
	}
	if files := dirEntries(t, cfg.IntermediateFolder); len(files) != 0 {
		t.Errorf("cleanup must run on cancellation, found %v", files)
	}
}

func TestProcess_WorkerPoolKeepsSourceOrder(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Multiple, false)
	cfg.Workers = 3
	engine := &mockEngine{delayFor: map[string]time.Duration{
		"a.mp3": 40 * time.Millisecond,
		"b.mp3": 20 * time.Millisecond,
	}}
	names := []string{"a", "b", "c", "d", "e"}
	svc := newTestService(Ports{Engine: engine}, &mockLocator{refs: localRefs(names...)}, io.Discard)

	report, err := svc.Process(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}

	for i, name := range names {
		if report.Outcomes[i].Reference.Name != name {
			t.Errorf("outcome %d = %s, want %s", i, report.Outcomes[i].Reference.Name, name)
		}
		if report.Outcomes[i].State != pipeline.StateWritten {
			t.Errorf("outcome %d state = %s", i, report.Outcomes[i].State)
		}
	}
	if engine.calls.Load() != int32(len(names)) {
		t.Errorf("engine ran %d times, want %d", engine.calls.Load(), len(names))
	}
}

func TestProcess_RecorderAndNotifierFailuresAreNotFatal(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Single, true)
	recorder := &mockRecorder{err: errors.New("database is locked")}
	notifier := &mockNotifier{err: errors.New("smtp down")}
	svc := newTestService(Ports{}, &mockLocator{refs: localRefs("a")}, io.Discard,
		WithRecorder(recorder), WithNotifier(notifier))

	report, err := svc.Process(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Process() error = %v, want nil", err)
	}
	if len(recorder.reports) != 1 || len(notifier.reports) != 1 {
		t.Error("recorder and notifier should each receive the report once")
	}
	if recorder.reports[0] != report {
		t.Error("recorder received a different report")
	}
	if report.FinishedAt.IsZero() || report.Cleanup == nil {
		t.Error("report should be finished and cleaned up before recording")
	}
}

func TestProcess_ResolvesAgainEachRun(t *testing.T) {
	cfg := testConfig(t, video.KindLocal, video.Single, true)
	locator := &mockLocator{refs: localRefs("a")}
	svc := newTestService(Ports{}, locator, io.Discard)

	for i := 0; i < 2; i++ {
		if _, err := svc.Process(context.Background(), cfg); err != nil {
			t.Fatal(err)
		}
	}
	if locator.calls != 2 {
		t.Errorf("Locate called %d times, want 2", locator.calls)
	}

	got, _ := os.ReadFile(filepath.Join(cfg.OutputFolder, "a.txt"))
	if string(got) != "transcript of a.mp3\n" {
		t.Errorf("re-run should overwrite, got %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42 * time.Second, "42s"},
		{95 * time.Second, "1m 35s"},
		{1500 * time.Millisecond, "2s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
