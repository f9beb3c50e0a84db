package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"video-transcriber/domain/pipeline"
)

// DefaultPath is where the config file is looked up when no --config flag is given
const DefaultPath = "config/config.yaml"

// Config represents the complete application configuration
type Config struct {
	Source        SourceConfig        `yaml:"source" toml:"source"`
	Intermediate  IntermediateConfig  `yaml:"intermediate" toml:"intermediate"`
	Transcription TranscriptionConfig `yaml:"transcription" toml:"transcription"`
	Output        OutputConfig        `yaml:"output" toml:"output"`
	Tools         ToolsConfig         `yaml:"tools" toml:"tools"`
	Google        GoogleConfig        `yaml:"google" toml:"google"`
	Publish       PublishConfig       `yaml:"publish" toml:"publish"`
	Notify        NotifyConfig        `yaml:"notify" toml:"notify"`
	History       HistoryConfig       `yaml:"history" toml:"history"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// SourceConfig describes where videos come from
type SourceConfig struct {
	Type   string `yaml:"type,omitempty" toml:"type,omitempty"`
	Format string `yaml:"format,omitempty" toml:"format,omitempty"`
	ID     string `yaml:"id,omitempty" toml:"id,omitempty"`
}

// IntermediateConfig contains audio extraction settings
type IntermediateConfig struct {
	Folder        string `yaml:"folder" toml:"folder"`
	AudioFileType string `yaml:"audio_file_type" toml:"audio_file_type"`
	AudioBitrate  string `yaml:"audio_bitrate" toml:"audio_bitrate"`
	KeepFiles     *bool  `yaml:"keep_files,omitempty" toml:"keep_files,omitempty"`
}

// TranscriptionConfig contains speech-to-text settings
type TranscriptionConfig struct {
	Model       string `yaml:"model" toml:"model"`
	Quality     string `yaml:"quality" toml:"quality"`
	ChunkLength string `yaml:"chunk_length" toml:"chunk_length"`
	// Timeout is a Go duration string applied per video, empty for none
	Timeout string `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Workers int    `yaml:"workers" toml:"workers"`
	Device  string `yaml:"device,omitempty" toml:"device,omitempty"`
}

// OutputConfig contains transcript output settings
type OutputConfig struct {
	Folder string `yaml:"folder" toml:"folder"`
	Format string `yaml:"format" toml:"format"`
}

// ToolsConfig contains external binary paths
type ToolsConfig struct {
	FFmpeg  string `yaml:"ffmpeg" toml:"ffmpeg"`
	YtDlp   string `yaml:"yt_dlp" toml:"yt_dlp"`
	Whisper string `yaml:"whisper" toml:"whisper"`
}

// GoogleConfig contains Google API settings
type GoogleConfig struct {
	CredentialsFile   string  `yaml:"credentials_file" toml:"credentials_file"`
	TokenFile         string  `yaml:"token_file" toml:"token_file"`
	Recursive         bool    `yaml:"recursive" toml:"recursive"`
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
	DownloadRetries   int     `yaml:"download_retries" toml:"download_retries"`
}

// PublishConfig describes an optional S3-compatible bucket for transcripts
type PublishConfig struct {
	Bucket    string `yaml:"bucket,omitempty" toml:"bucket,omitempty"`
	Region    string `yaml:"region,omitempty" toml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Prefix    string `yaml:"prefix,omitempty" toml:"prefix,omitempty"`
	AccessKey string `yaml:"access_key,omitempty" toml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty" toml:"secret_key,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty" toml:"path_style,omitempty"`
}

// Enabled reports whether publishing is configured
func (p PublishConfig) Enabled() bool {
	return p.Bucket != ""
}

// NotifyConfig contains run-report email settings
type NotifyConfig struct {
	Enabled     bool                       `yaml:"enabled" toml:"enabled"`
	FromName    string                     `yaml:"from_name,omitempty" toml:"from_name,omitempty"`
	FromAddress string                     `yaml:"from_address,omitempty" toml:"from_address,omitempty"`
	TokenFile   string                     `yaml:"token_file" toml:"token_file"`
	To          []string                   `yaml:"to,omitempty" toml:"to,omitempty"`
	DefaultCC   []RecipientConfig          `yaml:"default_cc,omitempty" toml:"default_cc,omitempty"`
	Recipients  map[string]RecipientConfig `yaml:"recipients,omitempty" toml:"recipients,omitempty"`
}

// RecipientConfig represents an email recipient
type RecipientConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Address string `yaml:"address" toml:"address"`
}

// HistoryConfig controls the run ledger
type HistoryConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	Database string `yaml:"database" toml:"database"`
}

// LoggingConfig controls diagnostic logging
type LoggingConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"`
	File       string `yaml:"file,omitempty" toml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// Default returns a configuration with every optional value filled in
func Default() Config {
	return Config{
		Intermediate: IntermediateConfig{
			Folder:        pipeline.DefaultIntermediateFolder,
			AudioFileType: "mp3",
			AudioBitrate:  "192k",
		},
		Transcription: TranscriptionConfig{
			Model:       "whisper",
			Quality:     "base",
			ChunkLength: pipeline.DefaultChunkLength,
			Workers:     pipeline.DefaultWorkers,
		},
		Output: OutputConfig{
			Folder: pipeline.DefaultOutputFolder,
			Format: "txt",
		},
		Tools: ToolsConfig{
			FFmpeg:  "ffmpeg",
			YtDlp:   "yt-dlp",
			Whisper: "whisper",
		},
		Google: GoogleConfig{
			CredentialsFile:   "credentials.json",
			TokenFile:         "config/token.json",
			RequestsPerSecond: 10,
			DownloadRetries:   2,
		},
		Notify: NotifyConfig{
			TokenFile: "config/gmail_token.json",
		},
		History: HistoryConfig{
			Database: "config/history.db",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads the configuration at path on top of Default.
// A missing file is not an error; exists reports whether one was read.
func Load(path string) (cfg *Config, exists bool, err error) {
	c := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &c, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read config file: %w", err)
	}

	if isTOML(path) {
		err = toml.Unmarshal(data, &c)
	} else {
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, true, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &c, true, nil
}

// Save writes the configuration to path, choosing the format from its extension
func Save(cfg *Config, path string) error {
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(cfg)
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ToOptions converts the file values into raw pipeline options
func (c *Config) ToOptions() (pipeline.Options, error) {
	var timeout time.Duration
	if t := strings.TrimSpace(c.Transcription.Timeout); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return pipeline.Options{}, &pipeline.ValidationError{
				Field:      "transcription_timeout",
				Message:    fmt.Sprintf("invalid duration %q", t),
				Suggestion: "use a Go duration such as 30m or 1h30m",
			}
		}
		timeout = d
	}

	return pipeline.Options{
		SourceType:            c.Source.Type,
		SourceFormat:          c.Source.Format,
		SourceID:              c.Source.ID,
		IntermediateFolder:    c.Intermediate.Folder,
		AudioFileType:         c.Intermediate.AudioFileType,
		AudioBitrate:          c.Intermediate.AudioBitrate,
		KeepIntermediateFiles: c.Intermediate.KeepFiles,
		TranscriptionModel:    c.Transcription.Model,
		TranscriptionQuality:  c.Transcription.Quality,
		OutputFolder:          c.Output.Folder,
		OutputFormat:          c.Output.Format,
		Workers:               c.Transcription.Workers,
		ChunkLength:           c.Transcription.ChunkLength,
		TranscriptionTimeout:  timeout,
	}, nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
