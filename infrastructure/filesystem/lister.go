package filesystem

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"video-transcriber/domain/video"
)

// VideoExtensions are the file extensions recognised as videos, lower-case
var VideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".webm", ".m4v"}

// Lister implements video.Lister by walking a directory tree
type Lister struct {
	extensions map[string]bool
}

// NewLister creates a lister recognising VideoExtensions
func NewLister() *Lister {
	exts := make(map[string]bool, len(VideoExtensions))
	for _, e := range VideoExtensions {
		exts[e] = true
	}
	return &Lister{extensions: exts}
}

// ListVideos returns video paths relative to root, sorted lexicographically.
// Hidden files and directories are skipped.
func (l *Lister) ListVideos(root string) ([]string, error) {
	var paths []string

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !l.extensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list videos in %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Ensure Lister implements video.Lister
var _ video.Lister = (*Lister)(nil)
