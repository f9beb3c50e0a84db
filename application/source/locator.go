package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"video-transcriber/domain/cloud"
	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/video"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Locator resolves a run's source descriptor into an ordered list of references
type Locator struct {
	gateway cloud.Gateway
	lister  video.Lister
}

// NewLocator creates a Locator. gateway may be nil when cloud sources are not used.
func NewLocator(gateway cloud.Gateway, lister video.Lister) *Locator {
	return &Locator{
		gateway: gateway,
		lister:  lister,
	}
}

// Locate resolves cfg's source. Every call resolves again from scratch.
func (l *Locator) Locate(ctx context.Context, cfg pipeline.Configuration, token *cloud.AuthToken) ([]video.Reference, error) {
	var (
		refs []video.Reference
		err  error
	)

	switch cfg.SourceKind {
	case video.KindLocal:
		if cfg.Cardinality == video.Single {
			refs, err = l.localFile(cfg.SourceID)
		} else {
			refs, err = l.localDirectory(cfg.SourceID)
		}
	case video.KindRemoteStream:
		refs, err = remoteStream(cfg.SourceID, cfg.Cardinality)
	case video.KindCloud:
		refs, err = l.cloud(ctx, token, cfg.SourceID, cfg.Cardinality)
	default:
		err = fmt.Errorf("%w: unsupported source kind %q", pipeline.ErrInvalidSource, cfg.SourceKind)
	}
	if err != nil {
		return nil, err
	}

	return uniqueNames(refs), nil
}

func (l *Locator) localFile(path string) ([]video.Reference, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrInvalidSource, path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory; use --source-format multiple", pipeline.ErrInvalidSource, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read %s: %v", pipeline.ErrInvalidSource, path, err)
	}
	f.Close()

	base := filepath.Base(path)
	return []video.Reference{{
		Kind: video.KindLocal,
		ID:   path,
		Name: strings.TrimSuffix(base, filepath.Ext(base)),
	}}, nil
}

func (l *Locator) localDirectory(root string) ([]video.Reference, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", pipeline.ErrInvalidSource, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", pipeline.ErrInvalidSource, root)
	}

	rels, err := l.lister.ListVideos(root)
	if err != nil {
		return nil, fmt.Errorf("%w: listing %s: %v", pipeline.ErrInvalidSource, root, err)
	}

	refs := make([]video.Reference, 0, len(rels))
	for _, rel := range rels {
		name := strings.TrimSuffix(rel, filepath.Ext(rel))
		name = strings.ReplaceAll(filepath.ToSlash(name), "/", "_")
		refs = append(refs, video.Reference{
			Kind: video.KindLocal,
			ID:   filepath.Join(root, rel),
			Name: name,
		})
	}
	return refs, nil
}

func remoteStream(id string, cardinality video.Cardinality) ([]video.Reference, error) {
	if cardinality != video.Single {
		return nil, fmt.Errorf("%w: youtube sources support a single video only", pipeline.ErrInvalidSource)
	}
	videoID, err := ParseVideoID(id)
	if err != nil {
		return nil, err
	}
	return []video.Reference{{
		Kind: video.KindRemoteStream,
		ID:   videoID,
		Name: videoID,
	}}, nil
}

// ParseVideoID accepts a bare 11-character id or a watch, short-link, shorts,
// or embed URL and returns the id
func ParseVideoID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if videoIDPattern.MatchString(s) {
		return s, nil
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %q is neither a video id nor a URL", pipeline.ErrInvalidSource, s)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	var candidate string
	switch host {
	case "youtu.be":
		candidate = strings.Trim(u.Path, "/")
	case "youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			candidate = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/shorts/"), strings.HasPrefix(u.Path, "/embed/"), strings.HasPrefix(u.Path, "/live/"):
			parts := strings.Split(strings.Trim(u.Path, "/"), "/")
			if len(parts) >= 2 {
				candidate = parts[1]
			}
		}
	default:
		return "", fmt.Errorf("%w: unsupported host %q", pipeline.ErrInvalidSource, u.Host)
	}

	if !videoIDPattern.MatchString(candidate) {
		return "", fmt.Errorf("%w: no video id in %q", pipeline.ErrInvalidSource, s)
	}
	return candidate, nil
}

func (l *Locator) cloud(ctx context.Context, token *cloud.AuthToken, id string, cardinality video.Cardinality) ([]video.Reference, error) {
	if l.gateway == nil {
		return nil, fmt.Errorf("%w: cloud storage is not configured", pipeline.ErrInvalidSource)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: no credential for cloud source", pipeline.ErrAuth)
	}
	refs, err := l.gateway.Resolve(ctx, token, id, cardinality)
	if err != nil {
		return nil, fmt.Errorf("resolve drive %s: %w", id, err)
	}
	return refs, nil
}

// uniqueNames suffixes repeated stems with -2, -3, ... in order so every
// reference maps to distinct intermediate and output files
func uniqueNames(refs []video.Reference) []video.Reference {
	counts := make(map[string]int, len(refs))
	taken := make(map[string]bool, len(refs))
	for _, r := range refs {
		taken[strings.ToLower(r.Stem())] = true
	}

	out := make([]video.Reference, len(refs))
	for i, r := range refs {
		key := strings.ToLower(r.Stem())
		counts[key]++
		if counts[key] > 1 {
			base := r.Name
			if base == "" {
				base = r.ID
			}
			n := counts[key]
			candidate := fmt.Sprintf("%s-%d", base, n)
			for taken[strings.ToLower(video.FileStem(candidate))] {
				n++
				candidate = fmt.Sprintf("%s-%d", base, n)
			}
			counts[key] = n
			taken[strings.ToLower(video.FileStem(candidate))] = true
			r.Name = candidate
		}
		out[i] = r
	}
	return out
}
