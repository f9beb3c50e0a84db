package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"video-transcriber/infrastructure/config"
	"video-transcriber/infrastructure/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	cfg        *config.Config
	cfgExists  bool
	cfgLoadErr error

	logLevel  string
	logFormat string
	logFile   string

	log       = logrus.New()
	logCloser io.Closer
)

// OutputWriter allows capturing output in tests
type OutputWriter interface {
	Write(p []byte) (n int, err error)
}

var rootCmd = &cobra.Command{
	Use:   "video-transcriber",
	Short: "Turn videos into text transcripts",
	Long: `video-transcriber converts videos into text transcripts:

  - Resolve videos from YouTube, Google Drive, or the local filesystem
  - Extract an audio track with ffmpeg
  - Transcribe it with a Whisper model
  - Write a .txt or .doc transcript per video

Example:
  video-transcriber transcribe --source-type local --source-format multiple --source-id ./videos`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},
}

// Execute runs the root command and exits non-zero on failure. SIGINT and
// SIGTERM cancel the command context so a run can mark the remaining videos
// cancelled and clean up its intermediate files before exiting.
func Execute() {
	ctx, stop := newSignalContext(context.Background())
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newSignalContext returns a context cancelled on the first SIGINT or SIGTERM
func newSignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file, yaml or toml (default is ./config/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config or info)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json (default from config or text)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "also write logs to this rotated file")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	cfg, cfgExists, cfgLoadErr = config.Load(cfgFile)
	if cfgLoadErr != nil {
		// commands that need config report the error themselves
		cfg = nil
	}
}

func setupLogging(cmd *cobra.Command) error {
	opts := logging.Options{
		Level:  logLevel,
		Format: logFormat,
		File:   logFile,
	}
	if c := GetConfig(); c != nil {
		if opts.Level == "" {
			opts.Level = c.Logging.Level
		}
		if opts.Format == "" {
			opts.Format = c.Logging.Format
		}
		if opts.File == "" {
			opts.File = c.Logging.File
		}
		opts.MaxSizeMB = c.Logging.MaxSizeMB
		opts.MaxBackups = c.Logging.MaxBackups
		opts.MaxAgeDays = c.Logging.MaxAgeDays
	}

	l, closer, err := logging.New(opts)
	if err != nil {
		return err
	}
	log = l
	logCloser = closer
	return nil
}

// GetConfig returns the loaded configuration
func GetConfig() *config.Config {
	return cfg
}

// GetConfigPath returns the path the configuration was loaded from
func GetConfigPath() string {
	if cfgFile == "" {
		return config.DefaultPath
	}
	return cfgFile
}

// requireConfig returns the loaded configuration or the reason it is missing
func requireConfig() (*config.Config, error) {
	if cfgLoadErr != nil {
		return nil, cfgLoadErr
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded; run 'video-transcriber setup' or pass --config")
	}
	return cfg, nil
}
