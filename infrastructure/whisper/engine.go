package whisper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-transcriber/domain/transcript"
	"video-transcriber/infrastructure/command"
)

// Engine implements transcript.Engine using the openai-whisper CLI
type Engine struct {
	binary     string
	runner     command.Runner
	device     string
	scratchDir string
}

// EngineOption is a functional option for configuring Engine
type EngineOption func(*Engine)

// WithBinary sets a custom whisper executable path
func WithBinary(path string) EngineOption {
	return func(e *Engine) {
		if path != "" {
			e.binary = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner command.Runner) EngineOption {
	return func(e *Engine) {
		e.runner = runner
	}
}

// WithDevice pins the torch device (cpu, cuda). Empty lets whisper choose.
func WithDevice(device string) EngineOption {
	return func(e *Engine) {
		e.device = device
	}
}

// WithScratchDir sets where whisper writes its output files. The default is
// the system temp directory, outside the run's intermediate folder.
func WithScratchDir(dir string) EngineOption {
	return func(e *Engine) {
		e.scratchDir = dir
	}
}

// NewEngine creates a new whisper CLI engine
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		binary: "whisper",
		runner: &command.ExecRunner{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run transcribes one audio file and returns its plain text
func (e *Engine) Run(ctx context.Context, audioPath string, quality transcript.Quality) (string, error) {
	if audioPath == "" {
		return "", fmt.Errorf("whisper: audio path required")
	}

	scratch, err := os.MkdirTemp(e.scratchDir, "video-transcriber-whisper-*")
	if err != nil {
		return "", fmt.Errorf("whisper: create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	args := []string{
		audioPath,
		"--model", string(quality),
		"--output_format", "txt",
		"--output_dir", scratch,
		"--verbose", "False",
		"--fp16", "False",
	}
	if e.device != "" {
		args = append(args, "--device", e.device)
	}

	if err := e.runner.Run(ctx, e.binary, args...); err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	data, err := os.ReadFile(filepath.Join(scratch, base+".txt"))
	if err != nil {
		return "", fmt.Errorf("whisper: read transcript: %w", err)
	}

	return strings.TrimSpace(string(data)), nil
}

// VerifyInstalled checks that whisper is available
func (e *Engine) VerifyInstalled(ctx context.Context) error {
	return command.Verify(ctx, e.runner, e.binary, "--help")
}

// Ensure Engine implements transcript.Engine
var _ transcript.Engine = (*Engine)(nil)
