//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	appnotification "video-transcriber/application/notification"
	"video-transcriber/application/process"
	"video-transcriber/cmd"
	"video-transcriber/domain/cloud"
	"video-transcriber/domain/notification"
	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/transcript"
	"video-transcriber/domain/video"
	"video-transcriber/infrastructure/document"
	"video-transcriber/infrastructure/drive"
	"video-transcriber/infrastructure/filesystem"
	"video-transcriber/infrastructure/gmail"
	"video-transcriber/infrastructure/googleauth"
	"video-transcriber/infrastructure/ledger"

	"github.com/cucumber/godog"
	googledrive "google.golang.org/api/drive/v3"
	googlegmail "google.golang.org/api/gmail/v1"
)

// transcribeContext holds test state for transcribe scenarios
type transcribeContext struct {
	tempDir      string
	sourceDir    string
	intermediate string
	outputDir    string

	// Mocks
	converter    *stepConverter
	downloader   *stepDownloader
	segmenter    *stepSegmenter
	engine       *stepEngine
	driveService *stepDriveService

	gmailService *stepGmailService
	historyPath  string
	notifyTo     string

	options pipeline.Options
	report  *pipeline.Report
	err     error
	output  *bytes.Buffer
}

// SharedTranscribeContext is reset before each scenario via Before hook
var SharedTranscribeContext *transcribeContext

// --- Mock implementations ---

type stepConverter struct {
	mu    sync.Mutex
	calls []string
}

func (m *stepConverter) Convert(ctx context.Context, req *video.AudioExtractionRequest, outputPath string) error {
	m.mu.Lock()
	m.calls = append(m.calls, outputPath)
	m.mu.Unlock()
	return os.WriteFile(outputPath, []byte("mock audio from "+filepath.Base(req.SourceVideoPath)), 0644)
}

func (m *stepConverter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type stepDownloader struct {
	calls []string
}

func (m *stepDownloader) Download(ctx context.Context, videoID, destDir, stem string) (string, error) {
	m.calls = append(m.calls, videoID)
	path := filepath.Join(destDir, stem+".webm")
	if err := os.WriteFile(path, []byte("mock stream "+videoID), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type stepSegmenter struct{}

func (m *stepSegmenter) Split(ctx context.Context, sourcePath string, length video.Timestamp, pattern string) ([]string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}
	chunk := fmt.Sprintf(pattern, 0)
	if err := os.WriteFile(chunk, data, 0644); err != nil {
		return nil, err
	}
	return []string{chunk}, nil
}

type stepEngine struct {
	mu    sync.Mutex
	calls []string
}

func (m *stepEngine) Run(ctx context.Context, audioPath string, quality transcript.Quality) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, audioPath)
	m.mu.Unlock()
	return fmt.Sprintf("Transcript of %s at %s quality.", filepath.Base(audioPath), quality), nil
}

func (m *stepEngine) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type stepDriveService struct {
	folderID  string
	files     []*googledrive.File
	failing   map[string]bool
	downloads map[string]int
	mu        sync.Mutex
}

func (m *stepDriveService) ListFiles(ctx context.Context, query, fields, pageToken string) (*googledrive.FileList, error) {
	if !strings.Contains(query, "'"+m.folderID+"'") {
		return &googledrive.FileList{}, nil
	}
	return &googledrive.FileList{Files: m.files}, nil
}

func (m *stepDriveService) GetFile(ctx context.Context, fileID, fields string) (*googledrive.File, error) {
	if fileID == m.folderID {
		return &googledrive.File{Id: fileID, Name: "Lectures", MimeType: cloud.FolderMimeType}, nil
	}
	for _, f := range m.files {
		if f.Id == fileID {
			return f, nil
		}
	}
	return nil, fmt.Errorf("file %s: %w", fileID, os.ErrNotExist)
}

func (m *stepDriveService) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	m.mu.Lock()
	m.downloads[fileID]++
	m.mu.Unlock()
	if m.failing[fileID] {
		return nil, &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")}
	}
	return io.NopCloser(strings.NewReader("mock drive video " + fileID)), nil
}

type stepGmailService struct {
	sent []*googlegmail.Message
}

func (m *stepGmailService) SendMessage(ctx context.Context, userID string, message *googlegmail.Message) (*googlegmail.Message, error) {
	m.sent = append(m.sent, message)
	return message, nil
}

func InitializeTranscribeScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "transcribe-test-*")
		if err != nil {
			return c, err
		}
		keep := true
		SharedTranscribeContext = &transcribeContext{
			tempDir:      tempDir,
			sourceDir:    filepath.Join(tempDir, "videos"),
			intermediate: filepath.Join(tempDir, "temp"),
			outputDir:    filepath.Join(tempDir, "output"),
			converter:    &stepConverter{},
			downloader:   &stepDownloader{},
			segmenter:    &stepSegmenter{},
			engine:       &stepEngine{},
			output:       &bytes.Buffer{},
			options: pipeline.Options{
				IntermediateFolder:    filepath.Join(tempDir, "temp"),
				OutputFolder:          filepath.Join(tempDir, "output"),
				KeepIntermediateFiles: &keep,
			},
		}
		return c, os.MkdirAll(SharedTranscribeContext.sourceDir, 0755)
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedTranscribeContext != nil && SharedTranscribeContext.tempDir != "" {
			os.RemoveAll(SharedTranscribeContext.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^a local video "([^"]*)"$`, func(name string) error { return SharedTranscribeContext.aLocalVideo(name) })
	ctx.Step(`^a Drive folder "([^"]*)" with videos:$`, func(id string, table *godog.Table) error {
		return SharedTranscribeContext.aDriveFolderWithVideos(id, table)
	})
	ctx.Step(`^downloading Drive file "([^"]*)" fails with a network error$`, func(id string) error {
		return SharedTranscribeContext.downloadingDriveFileFails(id)
	})
	ctx.Step(`^intermediate files are (kept|removed)$`, func(mode string) error {
		return SharedTranscribeContext.intermediateFilesAre(mode)
	})
	ctx.Step(`^the output format is "([^"]*)"$`, func(format string) error {
		SharedTranscribeContext.options.OutputFormat = format
		return nil
	})
	ctx.Step(`^I transcribe source "([^"]*)" "([^"]*)" with id "([^"]*)"$`, func(kind, format, id string) error {
		return SharedTranscribeContext.iTranscribe(kind, format, id)
	})
	ctx.Step(`^I transcribe the local video "([^"]*)"$`, func(name string) error {
		return SharedTranscribeContext.iTranscribe("local", "one", filepath.Join(SharedTranscribeContext.sourceDir, name))
	})
	ctx.Step(`^I transcribe the local folder$`, func() error {
		return SharedTranscribeContext.iTranscribe("local", "multiple", SharedTranscribeContext.sourceDir)
	})
	ctx.Step(`^I transcribe a missing local path$`, func() error {
		return SharedTranscribeContext.iTranscribe("local", "one", filepath.Join(SharedTranscribeContext.sourceDir, "missing.mp4"))
	})
	ctx.Step(`^run reports are emailed to "([^"]*)"$`, func(address string) error {
		return SharedTranscribeContext.runReportsAreEmailedTo(address)
	})
	ctx.Step(`^run history is recorded$`, func() error {
		SharedTranscribeContext.historyPath = filepath.Join(SharedTranscribeContext.tempDir, "history.db")
		return nil
	})
	ctx.Step(`^a report email should be sent to "([^"]*)" mentioning "([^"]*)"$`, func(address, text string) error {
		return SharedTranscribeContext.aReportEmailShouldBeSent(address, text)
	})
	ctx.Step(`^the history should show (\d+) runs? with (\d+) written videos?$`, func(runs, written int) error {
		return SharedTranscribeContext.theHistoryShouldShow(runs, written)
	})
	ctx.Step(`^the run should succeed$`, func() error { return SharedTranscribeContext.theRunShouldSucceed() })
	ctx.Step(`^the run should fail without aborting$`, func() error { return SharedTranscribeContext.theRunShouldFailWithoutAborting() })
	ctx.Step(`^the run should abort with "([^"]*)"$`, func(kind string) error { return SharedTranscribeContext.theRunShouldAbortWith(kind) })
	ctx.Step(`^the report should have (\d+) written and (\d+) failed videos?$`, func(written, failed int) error {
		return SharedTranscribeContext.theReportShouldHave(written, failed)
	})
	ctx.Step(`^video "([^"]*)" should have failed with "([^"]*)"$`, func(name, kind string) error {
		return SharedTranscribeContext.videoShouldHaveFailedWith(name, kind)
	})
	ctx.Step(`^a transcript "([^"]*)" should exist with text$`, func(name string) error {
		return SharedTranscribeContext.aTranscriptShouldExist(name)
	})
	ctx.Step(`^the report should list videos in order:$`, func(table *godog.Table) error {
		return SharedTranscribeContext.theReportShouldListVideosInOrder(table)
	})
	ctx.Step(`^an intermediate file "([^"]*)" should exist$`, func(name string) error {
		return SharedTranscribeContext.anIntermediateFileShouldExist(name)
	})
	ctx.Step(`^no intermediate audio should remain$`, func() error { return SharedTranscribeContext.noIntermediateAudioShouldRemain() })
	ctx.Step(`^no extraction, transcription, or write should have happened$`, func() error {
		return SharedTranscribeContext.nothingShouldHaveHappened()
	})
}

func (t *transcribeContext) aLocalVideo(name string) error {
	path := filepath.Join(t.sourceDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("mock video content"), 0644)
}

func (t *transcribeContext) aDriveFolderWithVideos(id string, table *godog.Table) error {
	t.driveService = &stepDriveService{
		folderID:  id,
		failing:   make(map[string]bool),
		downloads: make(map[string]int),
	}
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		t.driveService.files = append(t.driveService.files, &googledrive.File{
			Id:       row.Cells[0].Value,
			Name:     row.Cells[1].Value,
			MimeType: "video/mp4",
		})
	}
	return nil
}

func (t *transcribeContext) downloadingDriveFileFails(id string) error {
	if t.driveService == nil {
		return fmt.Errorf("no Drive folder configured")
	}
	t.driveService.failing[id] = true
	return nil
}

func (t *transcribeContext) intermediateFilesAre(mode string) error {
	keep := mode == "kept"
	t.options.KeepIntermediateFiles = &keep
	return nil
}

func (t *transcribeContext) iTranscribe(kind, format, id string) error {
	opts := t.options
	opts.SourceType = kind
	opts.SourceFormat = format
	opts.SourceID = id

	runCfg, err := pipeline.NewConfiguration(opts)
	if err != nil {
		t.err = err
		return nil
	}

	deps := cmd.TranscribeDependencies{
		Ports: process.Ports{
			Lister:      filesystem.NewLister(),
			Converter:   t.converter,
			Downloader:  t.downloader,
			Segmenter:   t.segmenter,
			FileChecker: filesystem.NewChecker(),
			Engine:      t.engine,
			Encoder:     document.NewWordEncoder(),
		},
		Options: []process.Option{
			process.WithLocker(filesystem.NewLocker()),
			process.WithRunIDGenerator(func() string { return "test-run" }),
		},
	}
	if t.driveService != nil {
		deps.Ports.Gateway = drive.NewClient(
			googleauth.Config{},
			drive.WithDriveService(t.driveService),
			drive.WithAuthenticator(func(context.Context) (*http.Client, time.Time, error) {
				return &http.Client{}, time.Time{}, nil
			}),
			drive.WithDownloadRetries(1, time.Millisecond),
			drive.WithRateLimit(0),
		)
	}

	if t.gmailService != nil {
		client := gmail.NewClient(
			notification.Recipient{Name: "Transcripts", Address: "transcripts@example.com"},
			gmail.WithGmailService(t.gmailService),
		)
		to := []notification.Recipient{{Name: "Operator", Address: t.notifyTo}}
		deps.Options = append(deps.Options, process.WithNotifier(appnotification.NewService(client, to, nil, "Transcripts")))
	}
	if t.historyPath != "" {
		store, err := ledger.Open(t.historyPath)
		if err != nil {
			return err
		}
		defer store.Close()
		deps.Options = append(deps.Options, process.WithRecorder(store))
	}

	t.report, t.err = cmd.RunTranscribeWithDependencies(context.Background(), runCfg, deps, t.output)
	return nil
}

func (t *transcribeContext) runReportsAreEmailedTo(address string) error {
	t.gmailService = &stepGmailService{}
	t.notifyTo = address
	return nil
}

func (t *transcribeContext) aReportEmailShouldBeSent(address, text string) error {
	if t.gmailService == nil || len(t.gmailService.sent) != 1 {
		return fmt.Errorf("expected exactly one report email")
	}
	raw, err := base64.URLEncoding.DecodeString(t.gmailService.sent[0].Raw)
	if err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	msg := string(raw)
	if !strings.Contains(msg, address) {
		return fmt.Errorf("expected message addressed to %s", address)
	}
	if !strings.Contains(msg, text) {
		return fmt.Errorf("expected message to mention %q, got:\n%s", text, msg)
	}
	return nil
}

func (t *transcribeContext) theHistoryShouldShow(runs, written int) error {
	store, err := ledger.Open(t.historyPath)
	if err != nil {
		return err
	}
	defer store.Close()

	recent, err := store.Recent(context.Background(), 0)
	if err != nil {
		return err
	}
	if len(recent) != runs {
		return fmt.Errorf("expected %d recorded runs, got %d", runs, len(recent))
	}
	if recent[0].Written != written {
		return fmt.Errorf("expected %d written videos, got %d", written, recent[0].Written)
	}

	out := &bytes.Buffer{}
	if err := cmd.RunHistoryShowWithDependencies(context.Background(), store, recent[0].RunID, out); err != nil {
		return err
	}
	if !strings.Contains(out.String(), "WRITTEN") {
		return fmt.Errorf("expected history detail to list written videos, got:\n%s", out.String())
	}
	return nil
}

func (t *transcribeContext) theRunShouldSucceed() error {
	if t.err != nil {
		return fmt.Errorf("expected success, got: %v\nOutput:\n%s", t.err, t.output.String())
	}
	return nil
}

func (t *transcribeContext) theRunShouldFailWithoutAborting() error {
	if !errors.Is(t.err, cmd.ErrRunFailed) {
		return fmt.Errorf("expected ErrRunFailed, got: %v", t.err)
	}
	if t.report == nil || t.report.Aborted {
		return fmt.Errorf("expected the batch to complete without aborting")
	}
	return nil
}

func (t *transcribeContext) theRunShouldAbortWith(kind string) error {
	if t.err == nil {
		return fmt.Errorf("expected the run to abort")
	}
	if got := pipeline.KindOf(t.err); string(got) != kind {
		return fmt.Errorf("expected %s, got %s (%v)", kind, got, t.err)
	}
	if t.report != nil && !t.report.Aborted {
		return fmt.Errorf("expected the report to be marked aborted")
	}
	return nil
}

func (t *transcribeContext) theReportShouldHave(written, failed int) error {
	if t.report == nil {
		return fmt.Errorf("no report was produced: %v", t.err)
	}
	if t.report.Written() != written || t.report.Failed() != failed {
		return fmt.Errorf("expected %d written and %d failed, got %d and %d",
			written, failed, t.report.Written(), t.report.Failed())
	}
	return nil
}

func (t *transcribeContext) videoShouldHaveFailedWith(name, kind string) error {
	for _, o := range t.report.Outcomes {
		if o.Reference.Name != name {
			continue
		}
		if o.State != pipeline.StateFailed {
			return fmt.Errorf("expected %s to fail, got state %s", name, o.State)
		}
		if string(o.Kind) != kind {
			return fmt.Errorf("expected %s to fail with %s, got %s (%s)", name, kind, o.Kind, o.Cause())
		}
		return nil
	}
	return fmt.Errorf("video %q not in report", name)
}

func (t *transcribeContext) aTranscriptShouldExist(name string) error {
	data, err := os.ReadFile(filepath.Join(t.outputDir, name))
	if err != nil {
		return fmt.Errorf("transcript %s not found: %w", name, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("transcript %s is empty", name)
	}
	return nil
}

func (t *transcribeContext) theReportShouldListVideosInOrder(table *godog.Table) error {
	var expected []string
	for i, row := range table.Rows {
		if i == 0 {
			continue
		}
		expected = append(expected, row.Cells[0].Value)
	}
	if len(expected) != len(t.report.Outcomes) {
		return fmt.Errorf("expected %d videos, got %d", len(expected), len(t.report.Outcomes))
	}
	for i, name := range expected {
		if got := t.report.Outcomes[i].Reference.Name; got != name {
			return fmt.Errorf("position %d: expected %s, got %s", i+1, name, got)
		}
	}
	return nil
}

func (t *transcribeContext) anIntermediateFileShouldExist(name string) error {
	if _, err := os.Stat(filepath.Join(t.intermediate, name)); err != nil {
		return fmt.Errorf("intermediate file %s not found: %w", name, err)
	}
	return nil
}

func (t *transcribeContext) noIntermediateAudioShouldRemain() error {
	for _, ext := range []string{"*.mp3", "*.wav"} {
		matches, err := filepath.Glob(filepath.Join(t.intermediate, ext))
		if err != nil {
			return err
		}
		if len(matches) > 0 {
			return fmt.Errorf("expected intermediate audio to be removed, found %v", matches)
		}
	}
	return nil
}

func (t *transcribeContext) nothingShouldHaveHappened() error {
	if n := t.converter.count(); n != 0 {
		return fmt.Errorf("expected no extraction, got %d", n)
	}
	if n := t.engine.count(); n != 0 {
		return fmt.Errorf("expected no transcription, got %d", n)
	}
	entries, err := os.ReadDir(t.outputDir)
	if err == nil && len(entries) > 0 {
		return fmt.Errorf("expected no transcripts, found %d files", len(entries))
	}
	return nil
}
