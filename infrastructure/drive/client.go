package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"video-transcriber/domain/cloud"
	"video-transcriber/domain/pipeline"
	"video-transcriber/domain/video"
	"video-transcriber/infrastructure/googleauth"
)

const (
	fileFields = "id, name, mimeType, size, createdTime, trashed"

	DefaultRequestsPerSecond = 10
	DefaultDownloadRetries   = 2
	defaultInitialBackoff    = time.Second
	maxBackoff               = 30 * time.Second
)

// DriveService defines the interface for Google Drive API operations
// This allows mocking the Google Drive API in tests
type DriveService interface {
	ListFiles(ctx context.Context, query, fields, pageToken string) (*drive.FileList, error)
	GetFile(ctx context.Context, fileID, fields string) (*drive.File, error)
	Download(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// GoogleDriveService is the production implementation using the Google Drive API
type GoogleDriveService struct {
	service *drive.Service
}

// ListFiles lists one page of files matching the query
func (s *GoogleDriveService) ListFiles(ctx context.Context, query, fields, pageToken string) (*drive.FileList, error) {
	call := s.service.Files.List().
		Q(query).
		Fields(googleapi.Field("nextPageToken, files(" + fields + ")")).
		OrderBy("name").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	return call.Do()
}

// GetFile fetches metadata for one file
func (s *GoogleDriveService) GetFile(ctx context.Context, fileID, fields string) (*drive.File, error) {
	return s.service.Files.Get(fileID).
		Fields(googleapi.Field(fields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

// Download opens the content of a file
func (s *GoogleDriveService) Download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	resp, err := s.service.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ServiceFactory builds a DriveService on top of an authorised HTTP client
type ServiceFactory func(ctx context.Context, client *http.Client) (DriveService, error)

func newGoogleDriveService(ctx context.Context, client *http.Client) (DriveService, error) {
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}
	return &GoogleDriveService{service: srv}, nil
}

// Authenticator produces an authorised HTTP client and its expiry
type Authenticator func(ctx context.Context) (*http.Client, time.Time, error)

// Client implements cloud.Gateway using the Google Drive API
type Client struct {
	authenticate   Authenticator
	factory        ServiceFactory
	limiter        *rate.Limiter
	recursive      bool
	retries        int
	initialBackoff time.Duration
	log            logrus.FieldLogger

	mu        sync.Mutex
	cachedFor *cloud.AuthToken
	cachedSvc DriveService
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithDriveService sets a custom drive service (for testing)
func WithDriveService(svc DriveService) ClientOption {
	return func(c *Client) {
		c.factory = func(context.Context, *http.Client) (DriveService, error) {
			return svc, nil
		}
	}
}

// WithAuthenticator replaces the credential-file flow (for testing)
func WithAuthenticator(auth Authenticator) ClientOption {
	return func(c *Client) {
		c.authenticate = auth
	}
}

// WithRateLimit caps API requests per second. Zero or less disables limiting.
func WithRateLimit(perSecond float64) ClientOption {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), int(math.Max(1, perSecond)))
	}
}

// WithRecursive makes folder resolution descend into subfolders
func WithRecursive(recursive bool) ClientOption {
	return func(c *Client) {
		c.recursive = recursive
	}
}

// WithDownloadRetries sets how many times a failed download is retried
func WithDownloadRetries(retries int, initialBackoff time.Duration) ClientOption {
	return func(c *Client) {
		c.retries = retries
		c.initialBackoff = initialBackoff
	}
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new Google Drive client reading credentials from auth
func NewClient(auth googleauth.Config, opts ...ClientOption) *Client {
	if len(auth.Scopes) == 0 {
		auth.Scopes = []string{drive.DriveReadonlyScope}
	}
	c := &Client{
		authenticate: func(ctx context.Context) (*http.Client, time.Time, error) {
			return googleauth.HTTPClient(ctx, auth)
		},
		factory:        newGoogleDriveService,
		limiter:        rate.NewLimiter(rate.Limit(DefaultRequestsPerSecond), DefaultRequestsPerSecond),
		retries:        DefaultDownloadRetries,
		initialBackoff: defaultInitialBackoff,
		log:            logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Authenticate performs the run's single credential handoff
func (c *Client) Authenticate(ctx context.Context) (*cloud.AuthToken, error) {
	client, expiry, err := c.authenticate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrAuth, err)
	}
	return &cloud.AuthToken{Client: client, Expiry: expiry}, nil
}

// service returns the Drive API service bound to token, building it on first use
func (c *Client) service(ctx context.Context, token *cloud.AuthToken) (DriveService, error) {
	if !token.Valid(time.Now()) {
		return nil, fmt.Errorf("%w: missing or expired credential", pipeline.ErrAuth)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedFor == token && c.cachedSvc != nil {
		return c.cachedSvc, nil
	}
	svc, err := c.factory(ctx, token.Client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrAuth, err)
	}
	c.cachedFor, c.cachedSvc = token, svc
	return svc, nil
}

// Resolve expands a file or folder id into video references
func (c *Client) Resolve(ctx context.Context, token *cloud.AuthToken, id string, cardinality video.Cardinality) ([]video.Reference, error) {
	svc, err := c.service(ctx, token)
	if err != nil {
		return nil, err
	}

	f, err := c.getFile(ctx, svc, id)
	if err != nil {
		return nil, err
	}

	if cardinality == video.Single {
		if f.IsFolder() {
			return nil, fmt.Errorf("%w: %s is a folder; use --source-format multiple", pipeline.ErrInvalidSource, id)
		}
		return []video.Reference{toReference(f)}, nil
	}

	if !f.IsFolder() {
		return nil, fmt.Errorf("%w: %s is not a folder; use --source-format one", pipeline.ErrInvalidSource, id)
	}

	files, err := c.listVideos(ctx, svc, id)
	if err != nil {
		return nil, err
	}

	refs := make([]video.Reference, 0, len(files))
	for _, f := range files {
		refs = append(refs, toReference(f))
	}
	return disambiguate(refs), nil
}

func (c *Client) getFile(ctx context.Context, svc DriveService, id string) (cloud.FileInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return cloud.FileInfo{}, err
	}
	f, err := svc.GetFile(ctx, id, fileFields)
	if err != nil {
		return cloud.FileInfo{}, mapError(err, id)
	}
	if f.Trashed {
		return cloud.FileInfo{}, fmt.Errorf("%w: %s is in the trash", pipeline.ErrNotFound, id)
	}
	return toFileInfo(f), nil
}

func (c *Client) listFolder(ctx context.Context, svc DriveService, folderID string) ([]cloud.FileInfo, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))

	var result []cloud.FileInfo
	pageToken := ""
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := svc.ListFiles(ctx, query, fileFields, pageToken)
		if err != nil {
			return nil, mapError(err, folderID)
		}
		for _, f := range page.Files {
			result = append(result, toFileInfo(f))
		}
		if page.NextPageToken == "" {
			return result, nil
		}
		pageToken = page.NextPageToken
	}
}

// listVideos returns the folder's video files, then those of its subfolders when recursive
func (c *Client) listVideos(ctx context.Context, svc DriveService, folderID string) ([]cloud.FileInfo, error) {
	files, err := c.listFolder(ctx, svc, folderID)
	if err != nil {
		return nil, err
	}

	var videos, folders []cloud.FileInfo
	for _, f := range files {
		switch {
		case f.IsFolder():
			folders = append(folders, f)
		case strings.Contains(f.MimeType, "video/"):
			videos = append(videos, f)
		}
	}

	if !c.recursive {
		return videos, nil
	}
	for _, folder := range folders {
		nested, err := c.listVideos(ctx, svc, folder.ID)
		if err != nil {
			return nil, err
		}
		videos = append(videos, nested...)
	}
	return videos, nil
}

// Download fetches the content of ref into destPath, retrying transient failures
func (c *Client) Download(ctx context.Context, token *cloud.AuthToken, ref video.Reference, destPath string) error {
	svc, err := c.service(ctx, token)
	if err != nil {
		return err
	}

	log := c.log.WithFields(logrus.Fields{"file_id": ref.ID, "dest": destPath})

	for attempt := 0; ; attempt++ {
		err = c.downloadOnce(ctx, svc, ref.ID, destPath)
		if err == nil {
			return nil
		}
		if attempt >= c.retries || !retryable(err) {
			return err
		}

		backoff := time.Duration(float64(c.initialBackoff) * math.Pow(2, float64(attempt)))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		if half := int64(backoff / 2); half > 0 {
			backoff += time.Duration(rand.Int63n(half))
		}

		log.WithError(err).WithFields(logrus.Fields{
			"next_attempt":     attempt + 2,
			"backoff_duration": backoff,
		}).Warn("drive download failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) downloadOnce(ctx context.Context, svc DriveService, fileID, destPath string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := svc.Download(ctx, fileID)
	if err != nil {
		return mapError(err, fileID)
	}
	defer body.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}
	if _, err := io.Copy(out, body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("close %s: %w", destPath, err)
	}
	return nil
}

// mapError translates Google API status codes into pipeline error kinds
func mapError(err error, id string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s: %v", pipeline.ErrAuth, id, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s: %v", pipeline.ErrNotFound, id, err)
		}
	}
	return fmt.Errorf("drive %s: %w", id, err)
}

func retryable(err error) bool {
	if errors.Is(err, pipeline.ErrAuth) || errors.Is(err, pipeline.ErrNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500
	}
	var pathErr *os.PathError
	return !errors.As(err, &pathErr)
}

func toFileInfo(f *drive.File) cloud.FileInfo {
	return cloud.FileInfo{
		ID:          f.Id,
		Name:        f.Name,
		MimeType:    f.MimeType,
		Size:        f.Size,
		CreatedTime: parseTime(f.CreatedTime),
	}
}

func toReference(f cloud.FileInfo) video.Reference {
	ext := filepath.Ext(f.Name)
	if len(ext) > 6 || strings.ContainsAny(ext, " ") {
		ext = ""
	}
	return video.Reference{
		Kind:     video.KindCloud,
		ID:       f.ID,
		Name:     strings.TrimSuffix(f.Name, ext),
		MimeType: f.MimeType,
		Ext:      ext,
	}
}

// disambiguate appends -<id> to names that occur more than once in a listing
func disambiguate(refs []video.Reference) []video.Reference {
	counts := make(map[string]int, len(refs))
	for _, r := range refs {
		counts[strings.ToLower(r.Stem())]++
	}
	for i, r := range refs {
		if counts[strings.ToLower(r.Stem())] > 1 {
			refs[i].Name = r.Name + "-" + r.ID
		}
	}
	return refs
}

func escapeQuery(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}

// parseTime parses a Google Drive timestamp string
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ensure Client implements cloud.Gateway
var _ cloud.Gateway = (*Client)(nil)
