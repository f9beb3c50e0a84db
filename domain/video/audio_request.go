package video

import (
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultAudioBitrate is the default bitrate for mp3 extraction
const DefaultAudioBitrate = "192k"

// AudioFormat is the container an extracted audio artifact is written in
type AudioFormat string

const (
	FormatMP3 AudioFormat = "mp3"
	FormatWAV AudioFormat = "wav"
)

// ParseAudioFormat validates an audio_file_type value
func ParseAudioFormat(s string) (AudioFormat, error) {
	switch f := AudioFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatMP3, FormatWAV:
		return f, nil
	}
	return "", fmt.Errorf("audio file type must be mp3 or wav; got %q", s)
}

// Extension returns the file extension including the leading dot
func (f AudioFormat) Extension() string {
	return "." + string(f)
}

// AudioExtractionRequest represents a request to convert a video into audio
type AudioExtractionRequest struct {
	SourceVideoPath string
	Format          AudioFormat
	Bitrate         string
}

// NewAudioExtractionRequest creates a new AudioExtractionRequest with validation
func NewAudioExtractionRequest(sourcePath string, format AudioFormat, bitrate string) (*AudioExtractionRequest, error) {
	if sourcePath == "" {
		return nil, fmt.Errorf("source video path is required")
	}

	if _, err := ParseAudioFormat(string(format)); err != nil {
		return nil, err
	}

	if bitrate == "" {
		bitrate = DefaultAudioBitrate
	}

	return &AudioExtractionRequest{
		SourceVideoPath: sourcePath,
		Format:          format,
		Bitrate:         bitrate,
	}, nil
}

// OutputFilename returns the audio filename for a reference stem
func (r *AudioExtractionRequest) OutputFilename(stem string) string {
	return stem + r.Format.Extension()
}

// OutputPath returns the full output path including the directory
func (r *AudioExtractionRequest) OutputPath(outputDir, stem string) string {
	return filepath.Join(outputDir, r.OutputFilename(stem))
}

// AudioArtifact is an intermediate audio file produced for one video
type AudioArtifact struct {
	Path      string
	Format    AudioFormat
	Reference Reference
	// Retain is inherited from the run configuration
	Retain bool
}
