package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNew_ConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(Options{Level: "warn", Format: "json", Console: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer closer.Close()

	if log.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected warn level, got %v", log.GetLevel())
	}

	log.Info("hidden")
	log.WithField("video", "a").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("expected info line to be filtered")
	}
	if !strings.Contains(out, `"video":"a"`) {
		t.Errorf("expected json fields, got %q", out)
	}
}

func TestNew_WithFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	log, closer, err := New(Options{File: path, MaxSizeMB: 1, Console: &buf})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	log.Info("to both")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "to both") || !strings.Contains(buf.String(), "to both") {
		t.Errorf("expected line in file and console, got file=%q console=%q", data, buf.String())
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("expected error for invalid format")
	}
}
