package video

import (
	"strings"
	"testing"
)

func TestNewAudioExtractionRequest(t *testing.T) {
	tests := []struct {
		name        string
		sourcePath  string
		format      AudioFormat
		bitrate     string
		wantBitrate string
		wantErr     bool
		errContains string
	}{
		{
			name:        "valid mp3 request with explicit bitrate",
			sourcePath:  "/path/to/clip.mp4",
			format:      FormatMP3,
			bitrate:     "128k",
			wantBitrate: "128k",
		},
		{
			name:        "valid request with default bitrate",
			sourcePath:  "/path/to/clip.mp4",
			format:      FormatWAV,
			bitrate:     "",
			wantBitrate: DefaultAudioBitrate,
		},
		{
			name:        "empty source path",
			sourcePath:  "",
			format:      FormatMP3,
			wantErr:     true,
			errContains: "source video path is required",
		},
		{
			name:        "unknown format",
			sourcePath:  "/path/to/clip.mp4",
			format:      AudioFormat("flac"),
			wantErr:     true,
			errContains: "mp3 or wav",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewAudioExtractionRequest(tt.sourcePath, tt.format, tt.bitrate)

			if tt.wantErr {
				if err == nil {
					t.Errorf("NewAudioExtractionRequest() expected error, got nil")
					return
				}
				if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("NewAudioExtractionRequest() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}

			if err != nil {
				t.Errorf("NewAudioExtractionRequest() unexpected error: %v", err)
				return
			}

			if got.Bitrate != tt.wantBitrate {
				t.Errorf("NewAudioExtractionRequest() Bitrate = %q, want %q", got.Bitrate, tt.wantBitrate)
			}
		})
	}
}

func TestAudioExtractionRequest_OutputPath(t *testing.T) {
	tests := []struct {
		format    AudioFormat
		outputDir string
		stem      string
		want      string
	}{
		{FormatMP3, "/tmp/work", "lecture-01", "/tmp/work/lecture-01.mp3"},
		{FormatWAV, "temp", "clip", "temp/clip.wav"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			req := &AudioExtractionRequest{SourceVideoPath: "in.mp4", Format: tt.format}
			if got := req.OutputPath(tt.outputDir, tt.stem); got != tt.want {
				t.Errorf("AudioExtractionRequest.OutputPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseAudioFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    AudioFormat
		wantErr bool
	}{
		{"mp3", FormatMP3, false},
		{"WAV", FormatWAV, false},
		{" mp3 ", FormatMP3, false},
		{"ogg", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseAudioFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAudioFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseAudioFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
