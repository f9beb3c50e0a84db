package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"video-transcriber/domain/video"
	"video-transcriber/infrastructure/command"
)

// WatchURL is the page yt-dlp is pointed at for a video id
const WatchURL = "https://www.youtube.com/watch?v="

// Downloader implements video.StreamDownloader using yt-dlp
type Downloader struct {
	binary string
	runner command.Runner
	format string
}

// DownloaderOption is a functional option for configuring Downloader
type DownloaderOption func(*Downloader)

// WithBinary sets a custom yt-dlp executable path
func WithBinary(path string) DownloaderOption {
	return func(d *Downloader) {
		if path != "" {
			d.binary = path
		}
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner command.Runner) DownloaderOption {
	return func(d *Downloader) {
		d.runner = runner
	}
}

// WithFormat overrides the yt-dlp format selector
func WithFormat(format string) DownloaderOption {
	return func(d *Downloader) {
		if format != "" {
			d.format = format
		}
	}
}

// NewDownloader creates a new yt-dlp stream downloader
func NewDownloader(opts ...DownloaderOption) *Downloader {
	d := &Downloader{
		binary: "yt-dlp",
		runner: &command.ExecRunner{},
		format: "bestaudio/best",
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Download implements video.StreamDownloader
func (d *Downloader) Download(ctx context.Context, videoID, destDir, stem string) (string, error) {
	args := []string{
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"-f", d.format,
		"-o", strings.ReplaceAll(filepath.Join(destDir, stem), "%", "%%") + ".%(ext)s",
		"--print", "after_move:filepath",
		"--no-simulate",
		WatchURL + videoID,
	}

	out, err := d.runner.Output(ctx, d.binary, args...)
	if err != nil {
		return "", fmt.Errorf("yt-dlp download of %s failed: %w", videoID, err)
	}

	if path := lastLine(string(out)); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	// Older yt-dlp builds ignore --print after_move; fall back to the output template.
	entries, _ := os.ReadDir(destDir)
	var matches []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), stem+".") && !strings.HasSuffix(e.Name(), ".part") {
			matches = append(matches, filepath.Join(destDir, e.Name()))
		}
	}
	sort.Strings(matches)
	if len(matches) > 0 {
		return matches[0], nil
	}
	return "", fmt.Errorf("yt-dlp reported success but no file was written for %s", videoID)
}

// VerifyInstalled checks that yt-dlp is available
func (d *Downloader) VerifyInstalled(ctx context.Context) error {
	return command.Verify(ctx, d.runner, d.binary, "--version")
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Ensure Downloader implements video.StreamDownloader
var _ video.StreamDownloader = (*Downloader)(nil)
