package s3

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type mockPutter struct {
	bucket      string
	key         string
	contentType string
	body        string
	err         error
}

func (m *mockPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.bucket = aws.ToString(params.Bucket)
	m.key = aws.ToString(params.Key)
	m.contentType = aws.ToString(params.ContentType)
	data, _ := io.ReadAll(params.Body)
	m.body = string(data)
	return &s3.PutObjectOutput{}, nil
}

func TestPublisher_Publish(t *testing.T) {
	local := filepath.Join(t.TempDir(), "talk.txt")
	if err := os.WriteFile(local, []byte("transcript\n"), 0644); err != nil {
		t.Fatalf("setup: %v", err)
	}

	tests := []struct {
		name    string
		prefix  string
		wantKey string
	}{
		{name: "with prefix", prefix: "/transcripts/2025/", wantKey: "transcripts/2025/talk.txt"},
		{name: "without prefix", prefix: "", wantKey: "talk.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockPutter{}
			p, err := NewPublisher(context.Background(), Config{Bucket: "media", Prefix: tt.prefix}, WithClient(mock))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			loc, err := p.Publish(context.Background(), local)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if mock.bucket != "media" || mock.key != tt.wantKey {
				t.Errorf("expected media/%s, got %s/%s", tt.wantKey, mock.bucket, mock.key)
			}
			if loc != "s3://media/"+tt.wantKey {
				t.Errorf("unexpected location %q", loc)
			}
			if mock.body != "transcript\n" {
				t.Errorf("unexpected body %q", mock.body)
			}
			if mock.contentType == "" || mock.contentType == "application/octet-stream" {
				t.Errorf("expected text content type, got %q", mock.contentType)
			}
		})
	}
}

func TestPublisher_Errors(t *testing.T) {
	if _, err := NewPublisher(context.Background(), Config{}); err == nil {
		t.Error("expected error for missing bucket")
	}

	p, _ := NewPublisher(context.Background(), Config{Bucket: "media"}, WithClient(&mockPutter{err: errors.New("AccessDenied")}))

	if _, err := p.Publish(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}

	local := filepath.Join(t.TempDir(), "talk.doc")
	os.WriteFile(local, []byte("doc"), 0644)
	if _, err := p.Publish(context.Background(), local); err == nil {
		t.Error("expected upload error")
	}
}

func TestNewPublisher_BuildsClient(t *testing.T) {
	p, err := NewPublisher(context.Background(), Config{
		Bucket:    "media",
		Region:    "us-east-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "key",
		SecretKey: "secret",
		PathStyle: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.client.(*s3.Client); !ok {
		t.Errorf("expected an S3 client, got %T", p.client)
	}
}
