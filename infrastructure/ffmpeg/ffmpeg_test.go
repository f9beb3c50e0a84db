package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"video-transcriber/domain/video"
)

// mockRunner records invocations and optionally runs a side effect
type mockRunner struct {
	calls  [][]string
	err    error
	effect func(args []string)
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) error {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.err != nil {
		return m.err
	}
	if m.effect != nil {
		m.effect(args)
	}
	return nil
}

func (m *mockRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, append([]string{name}, args...))
	if m.err != nil {
		return nil, m.err
	}
	return []byte("ffmpeg version 6.1"), nil
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func TestConverter_Convert(t *testing.T) {
	tests := []struct {
		name       string
		format     video.AudioFormat
		bitrate    string
		wantCodec  string
		wantExtras map[string]string
	}{
		{
			name:       "mp3 uses lame at bitrate",
			format:     video.FormatMP3,
			bitrate:    "128k",
			wantCodec:  "libmp3lame",
			wantExtras: map[string]string{"-b:a": "128k"},
		},
		{
			name:       "wav is mono 16kHz pcm",
			format:     video.FormatWAV,
			wantCodec:  "pcm_s16le",
			wantExtras: map[string]string{"-ar": "16000", "-ac": "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{}
			c := NewConverter(WithCommandRunner(runner), WithFFmpegPath("/usr/bin/ffmpeg"))

			req, err := video.NewAudioExtractionRequest("/videos/talk.mp4", tt.format, tt.bitrate)
			if err != nil {
				t.Fatalf("failed to create request: %v", err)
			}

			if err := c.Convert(context.Background(), req, "/tmp/talk"+tt.format.Extension()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(runner.calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(runner.calls))
			}
			call := runner.calls[0]
			if call[0] != "/usr/bin/ffmpeg" {
				t.Errorf("expected custom ffmpeg path, got %q", call[0])
			}
			args := call[1:]
			if argAfter(args, "-i") != "/videos/talk.mp4" {
				t.Errorf("expected input path, got args %v", args)
			}
			if argAfter(args, "-c:a") != tt.wantCodec {
				t.Errorf("expected codec %q, got args %v", tt.wantCodec, args)
			}
			for flag, want := range tt.wantExtras {
				if got := argAfter(args, flag); got != want {
					t.Errorf("expected %s %s, got %q", flag, want, got)
				}
			}
			if args[len(args)-1] != "/tmp/talk"+tt.format.Extension() {
				t.Errorf("expected output path last, got %q", args[len(args)-1])
			}
		})
	}
}

func TestConverter_Convert_Error(t *testing.T) {
	runner := &mockRunner{err: errors.New("Output file #0 does not contain any stream")}
	c := NewConverter(WithCommandRunner(runner))
	req, _ := video.NewAudioExtractionRequest("/videos/silent.mp4", video.FormatMP3, "")

	err := c.Convert(context.Background(), req, "/tmp/silent.mp3")
	if err == nil {
		t.Fatal("expected error but got none")
	}
	if !strings.Contains(err.Error(), "ffmpeg audio extraction failed") {
		t.Errorf("unexpected error message: %v", err)
	}
	if !errors.Is(err, runner.err) {
		t.Error("expected error to wrap the runner error")
	}
}

func TestConverter_VerifyInstalled(t *testing.T) {
	if err := NewConverter(WithCommandRunner(&mockRunner{})).VerifyInstalled(context.Background()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := NewConverter(WithCommandRunner(&mockRunner{err: errors.New("not found")})).VerifyInstalled(context.Background()); err == nil {
		t.Error("expected error but got none")
	}
}

func TestSegmenter_Split(t *testing.T) {
	dir := t.TempDir()
	pattern := filepath.Join(dir, "talk.chunk%03d.mp3")

	runner := &mockRunner{effect: func(args []string) {
		out := args[len(args)-1]
		for i := 0; i < 3; i++ {
			os.WriteFile(fmt.Sprintf(out, i), []byte("chunk"), 0644)
		}
	}}
	s := NewSegmenter(WithCommandRunner(runner))

	chunks, err := s.Split(context.Background(), "/tmp/talk.mp3", video.TimestampFromDuration(20*time.Minute), pattern)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if want := fmt.Sprintf(pattern, i); c != want {
			t.Errorf("chunk %d: expected %q, got %q", i, want, c)
		}
	}

	args := runner.calls[0][1:]
	if argAfter(args, "-segment_time") != "1200" {
		t.Errorf("expected segment time 1200, got args %v", args)
	}
	if argAfter(args, "-f") != "segment" || argAfter(args, "-c") != "copy" {
		t.Errorf("expected stream-copy segment muxer, got args %v", args)
	}
}

func TestSegmenter_Split_PercentInPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "temp 50%")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	pattern := video.ChunkPattern(filepath.Join(dir, video.FileStem("100% Growth")), ".mp3")

	runner := &mockRunner{effect: func(args []string) {
		out := args[len(args)-1]
		for i := 0; i < 2; i++ {
			os.WriteFile(fmt.Sprintf(out, i), []byte("chunk"), 0644)
		}
	}}

	chunks, err := NewSegmenter(WithCommandRunner(runner)).Split(context.Background(), filepath.Join(dir, "100% Growth.mp3"), video.TimestampFromDuration(20*time.Minute), pattern)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{
		filepath.Join(dir, "100% Growth.chunk000.mp3"),
		filepath.Join(dir, "100% Growth.chunk001.mp3"),
	}
	if len(chunks) != len(want) {
		t.Fatalf("expected %d chunks, got %v", len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk %d: expected %q, got %q", i, want[i], chunks[i])
		}
	}
	if got := runner.calls[0][len(runner.calls[0])-1]; got != pattern {
		t.Errorf("ffmpeg output template = %q, want %q", got, pattern)
	}
}

func TestSegmenter_Split_Errors(t *testing.T) {
	pattern := filepath.Join(t.TempDir(), "talk.chunk%03d.mp3")

	tests := []struct {
		name   string
		runner *mockRunner
		length video.Timestamp
	}{
		{name: "zero length", runner: &mockRunner{}, length: video.Timestamp{}},
		{name: "ffmpeg failure", runner: &mockRunner{err: errors.New("exit status 1")}, length: video.TimestampFromDuration(time.Minute)},
		{name: "no chunks written", runner: &mockRunner{}, length: video.TimestampFromDuration(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSegmenter(WithCommandRunner(tt.runner)).Split(context.Background(), "/tmp/talk.mp3", tt.length, pattern)
			if err == nil {
				t.Error("expected error but got none")
			}
		})
	}
}
