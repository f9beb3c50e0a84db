package cloud

import (
	"context"
	"net/http"
	"time"

	"video-transcriber/domain/video"
)

// Gateway defines the cloud-storage operations the pipeline needs.
// This is a port that can be implemented by different infrastructure adapters.
type Gateway interface {
	// Authenticate performs the run's single credential handoff
	Authenticate(ctx context.Context) (*AuthToken, error)

	// Resolve expands a file or folder id into downloadable references
	Resolve(ctx context.Context, token *AuthToken, id string, cardinality video.Cardinality) ([]video.Reference, error)

	// Download fetches the bytes of ref into destPath
	Download(ctx context.Context, token *AuthToken, ref video.Reference, destPath string) error
}

// AuthToken is the credential for one run. It is acquired once and only read afterwards.
type AuthToken struct {
	// Client is an HTTP client that authorises every request it sends
	Client *http.Client
	// Expiry is zero when the credential refreshes itself
	Expiry time.Time
}

// Valid reports whether the token can still be used at the given instant
func (t *AuthToken) Valid(now time.Time) bool {
	if t == nil || t.Client == nil {
		return false
	}
	return t.Expiry.IsZero() || now.Before(t.Expiry)
}

// FileInfo represents metadata about a file in cloud storage
type FileInfo struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	CreatedTime time.Time
}

// FolderMimeType identifies folders in Google Drive listings
const FolderMimeType = "application/vnd.google-apps.folder"

// IsFolder reports whether the file is a folder
func (f FileInfo) IsFolder() bool {
	return f.MimeType == FolderMimeType
}
