package artifact

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"video-transcriber/domain/artifact"
)

// Manager tracks every intermediate file a run creates and removes them once at the end
type Manager struct {
	retain bool
	log    logrus.FieldLogger

	remove  func(string) error
	stat    func(string) (fs.FileInfo, error)
	readDir func(string) ([]fs.DirEntry, error)

	mu       sync.Mutex
	paths    []string
	prefixes []prefix
	seen     map[string]struct{}

	once   sync.Once
	result *artifact.CleanupResult
}

// prefix matches files in dir whose base name starts with name
type prefix struct {
	dir  string
	name string
}

// Option configures a Manager
type Option func(*Manager)

// WithLogger sets the logger used for failed deletes
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// WithRemover overrides os.Remove (for testing)
func WithRemover(remove func(string) error) Option {
	return func(m *Manager) {
		m.remove = remove
	}
}

// NewManager creates a manager. When retain is true CleanUp keeps every file.
func NewManager(retain bool, opts ...Option) *Manager {
	m := &Manager{
		retain:  retain,
		log:     logrus.StandardLogger(),
		remove:  os.Remove,
		stat:    os.Stat,
		readDir: os.ReadDir,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register records a path the run is about to create. Duplicates are ignored.
func (m *Manager) Register(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[path]; ok {
		return
	}
	m.seen[path] = struct{}{}
	m.paths = append(m.paths, path)
}

// RegisterPrefix records every file in dir whose name starts with namePrefix,
// for outputs whose exact names are only known after an external tool has
// written them. The prefix is matched literally.
func (m *Manager) RegisterPrefix(dir, namePrefix string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "prefix:" + filepath.Join(dir, namePrefix)
	if _, ok := m.seen[key]; ok {
		return
	}
	m.seen[key] = struct{}{}
	m.prefixes = append(m.prefixes, prefix{dir: dir, name: namePrefix})
}

// Discard removes a scratch file immediately, regardless of retention
func (m *Manager) Discard(path string) {
	if err := m.remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		m.log.WithError(err).WithField("path", path).Warn("failed to discard intermediate file")
	}
}

// Registered returns a snapshot of the registered paths with prefixes expanded
func (m *Manager) Registered() []string {
	m.mu.Lock()
	paths := append([]string(nil), m.paths...)
	prefixes := append([]prefix(nil), m.prefixes...)
	m.mu.Unlock()

	seen := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		seen[p] = struct{}{}
	}
	for _, p := range prefixes {
		entries, err := m.readDir(p.dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				m.log.WithError(err).WithField("dir", p.dir).Warn("cannot list intermediate folder")
			}
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), p.name) {
				continue
			}
			match := filepath.Join(p.dir, e.Name())
			if _, ok := seen[match]; ok {
				continue
			}
			seen[match] = struct{}{}
			paths = append(paths, match)
		}
	}
	return paths
}

// CleanUp deletes every registered file still on disk unless retention was
// requested. Only the first call does any work; later calls return the same result.
func (m *Manager) CleanUp() *artifact.CleanupResult {
	m.once.Do(func() {
		m.result = m.cleanUp()
	})
	return m.result
}

func (m *Manager) cleanUp() *artifact.CleanupResult {
	result := &artifact.CleanupResult{}

	for _, path := range m.Registered() {
		info, err := m.stat(path)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				m.log.WithError(err).WithField("path", path).Warn("cannot inspect intermediate file")
			}
			continue
		}
		if info.IsDir() {
			continue
		}

		if m.retain {
			result.RetainedFiles = append(result.RetainedFiles, path)
			continue
		}

		if err := m.remove(path); err != nil {
			m.log.WithError(err).WithField("path", path).Warn("failed to delete intermediate file")
			result.FailedFiles = append(result.FailedFiles, artifact.FailedDelete{Path: path, Err: err})
			continue
		}
		result.DeletedFiles = append(result.DeletedFiles, artifact.DeletedFile{Path: path, Size: info.Size()})
		result.FreedBytes += info.Size()
	}

	m.log.WithFields(logrus.Fields{
		"deleted":  len(result.DeletedFiles),
		"retained": len(result.RetainedFiles),
		"failed":   len(result.FailedFiles),
	}).Debug("intermediate cleanup finished")

	return result
}
