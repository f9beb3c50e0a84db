package filesystem

import (
	"os"

	"video-transcriber/domain/video"
)

// Checker implements video.FileChecker using the os package
type Checker struct{}

// NewChecker creates a new filesystem checker
func NewChecker() *Checker {
	return &Checker{}
}

// Exists returns true if path names a regular, non-empty file
func (c *Checker) Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// Ensure Checker implements video.FileChecker
var _ video.FileChecker = (*Checker)(nil)
