package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the diagnostic logger
type Options struct {
	Level  string
	Format string // text or json
	// File enables rotated file output in addition to Console
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Console    io.Writer
}

// New builds a logrus logger writing to the console and, when configured, a rotated file.
// The returned closer flushes and closes the file.
func New(opts Options) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level, err := logrus.ParseLevel(orDefault(opts.Level, "info"))
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(orDefault(opts.Format, "text")) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, nil, fmt.Errorf("invalid log format %q: use text or json", opts.Format)
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	if opts.File == "" {
		log.SetOutput(console)
		return log, io.NopCloser(nil), nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), os.ModePerm); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}

	logFile := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   true,
	}

	log.SetOutput(io.MultiWriter(console, logFile))
	return log, logFile, nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
