//go:build integration

package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-transcriber/cmd"
	"video-transcriber/domain/video"

	"github.com/cucumber/godog"
)

// mockExtractor records calls to Convert for verification
type mockExtractor struct {
	calls      []extractCall
	shouldFail bool
}

type extractCall struct {
	req        *video.AudioExtractionRequest
	outputPath string
}

func (m *mockExtractor) Convert(ctx context.Context, req *video.AudioExtractionRequest, outputPath string) error {
	if m.shouldFail {
		return errors.New("ffmpeg: no audio stream")
	}
	m.calls = append(m.calls, extractCall{req: req, outputPath: outputPath})
	return os.WriteFile(outputPath, []byte("mock audio"), 0644)
}

// mockFileChecker reports files from a fixed set
type mockFileChecker struct {
	existingFiles map[string]bool
}

func (m *mockFileChecker) Exists(path string) bool {
	return m.existingFiles[path]
}

// extractContext holds test state for extract scenarios
type extractContext struct {
	tempDir     string
	sourcePath  string
	outputDir   string
	format      video.AudioFormat
	bitrate     string
	extractor   *mockExtractor
	fileChecker *mockFileChecker
	output      *bytes.Buffer
	err         error
}

var SharedExtractContext *extractContext

func InitializeExtractScenario(ctx *godog.ScenarioContext) {
	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "extract-test-*")
		if err != nil {
			return c, err
		}
		SharedExtractContext = &extractContext{
			tempDir:     tempDir,
			outputDir:   filepath.Join(tempDir, "audio"),
			format:      video.FormatMP3,
			bitrate:     "192k",
			extractor:   &mockExtractor{},
			fileChecker: &mockFileChecker{existingFiles: make(map[string]bool)},
			output:      &bytes.Buffer{},
		}
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if SharedExtractContext != nil && SharedExtractContext.tempDir != "" {
			os.RemoveAll(SharedExtractContext.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^a source video "([^"]*)" exists$`, func(name string) error { return SharedExtractContext.aSourceVideoExists(name) })
	ctx.Step(`^a source video "([^"]*)" does not exist$`, func(name string) error { return SharedExtractContext.aSourceVideoDoesNotExist(name) })
	ctx.Step(`^the audio format is "([^"]*)"$`, func(format string) error { return SharedExtractContext.theAudioFormatIs(format) })
	ctx.Step(`^the bitrate is "([^"]*)"$`, func(bitrate string) error {
		SharedExtractContext.bitrate = bitrate
		return nil
	})
	ctx.Step(`^ffmpeg cannot read the audio stream$`, func() error {
		SharedExtractContext.extractor.shouldFail = true
		return nil
	})
	ctx.Step(`^I run extract-audio$`, func() error { return SharedExtractContext.iRunExtractAudio() })
	ctx.Step(`^the extraction should succeed$`, func() error { return SharedExtractContext.theExtractionShouldSucceed() })
	ctx.Step(`^the extraction should fail with "([^"]*)"$`, func(msg string) error { return SharedExtractContext.theExtractionShouldFailWith(msg) })
	ctx.Step(`^the audio file "([^"]*)" should be created$`, func(name string) error { return SharedExtractContext.theAudioFileShouldBeCreated(name) })
	ctx.Step(`^ffmpeg should be called with bitrate "([^"]*)"$`, func(bitrate string) error { return SharedExtractContext.ffmpegShouldBeCalledWithBitrate(bitrate) })
}

func (e *extractContext) aSourceVideoExists(name string) error {
	e.sourcePath = filepath.Join(e.tempDir, name)
	e.fileChecker.existingFiles[e.sourcePath] = true
	return os.WriteFile(e.sourcePath, []byte("mock video"), 0644)
}

func (e *extractContext) aSourceVideoDoesNotExist(name string) error {
	e.sourcePath = filepath.Join(e.tempDir, name)
	return nil
}

func (e *extractContext) theAudioFormatIs(format string) error {
	f, err := video.ParseAudioFormat(format)
	if err != nil {
		return err
	}
	e.format = f
	return nil
}

func (e *extractContext) iRunExtractAudio() error {
	e.err = cmd.RunExtractAudioWithDependencies(
		context.Background(),
		e.extractor,
		e.fileChecker,
		e.outputDir,
		e.format,
		e.bitrate,
		e.sourcePath,
		e.output,
	)
	return nil
}

func (e *extractContext) theExtractionShouldSucceed() error {
	if e.err != nil {
		return fmt.Errorf("expected success, got: %v", e.err)
	}
	return nil
}

func (e *extractContext) theExtractionShouldFailWith(msg string) error {
	if e.err == nil {
		return fmt.Errorf("expected failure containing %q", msg)
	}
	if !strings.Contains(e.err.Error(), msg) {
		return fmt.Errorf("expected error containing %q, got: %v", msg, e.err)
	}
	return nil
}

func (e *extractContext) theAudioFileShouldBeCreated(name string) error {
	path := filepath.Join(e.outputDir, name)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("expected %s to exist: %w", path, err)
	}
	if !strings.Contains(e.output.String(), path) {
		return fmt.Errorf("expected output to mention %s, got:\n%s", path, e.output.String())
	}
	return nil
}

func (e *extractContext) ffmpegShouldBeCalledWithBitrate(bitrate string) error {
	if len(e.extractor.calls) != 1 {
		return fmt.Errorf("expected 1 ffmpeg call, got %d", len(e.extractor.calls))
	}
	if got := e.extractor.calls[0].req.Bitrate; got != bitrate {
		return fmt.Errorf("expected bitrate %q, got %q", bitrate, got)
	}
	return nil
}
