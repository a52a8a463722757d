package media

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/courier/internal/config"
)

// 1x1 transparent PNG.
var tinyPNG, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==")

type failingStore struct{}

func (failingStore) Put(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("bucket unreachable")
}

func TestDecodeDataURI(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr bool
	}{
		{"png", "data:image/png;base64," + base64.StdEncoding.EncodeToString(tinyPNG), false},
		{"plain url", "https://example.com/a.png", true},
		{"not base64 flagged", "data:image/png,abc", true},
		{"bad payload", "data:image/png;base64,***", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDataURI(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("DecodeDataURI() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsRejected(err) {
				t.Errorf("error %v not classified as rejection", err)
			}
		})
	}
}

func TestLocalUpload(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "http://cdn.test/media")
	if err != nil {
		t.Fatal(err)
	}
	u := NewUploader(store, 1<<20)

	url, err := u.UploadDataURI(context.Background(), "messages", "data:image/png;base64,"+base64.StdEncoding.EncodeToString(tinyPNG))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(url, "http://cdn.test/media/messages/") || !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q", url)
	}

	key := strings.TrimPrefix(url, "http://cdn.test/media/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != len(tinyPNG) {
		t.Errorf("stored %d bytes, want %d", len(data), len(tinyPNG))
	}
}

func TestUploadRejects(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "http://cdn.test/media")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewUploader(store, 10).Upload(context.Background(), "m", tinyPNG); !errors.Is(err, ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
	if _, err := NewUploader(store, 0).Upload(context.Background(), "m", []byte("hello, not an image")); !errors.Is(err, ErrNotImage) {
		t.Errorf("err = %v, want ErrNotImage", err)
	}
	_, err = NewUploader(failingStore{}, 0).Upload(context.Background(), "m", tinyPNG)
	if err == nil || IsRejected(err) {
		t.Errorf("err = %v, want backend failure", err)
	}
}

func TestNewSelectsBackend(t *testing.T) {
	dir := t.TempDir()
	s, err := New(context.Background(), config.Media{Backend: "local", PublicBaseURL: "http://x/"}, dir)
	if err != nil {
		t.Fatal(err)
	}
	local, ok := s.(*LocalStore)
	if !ok || local.Dir() != dir || local.baseURL != "http://x/media" {
		t.Errorf("got %#v", s)
	}

	if _, err := New(context.Background(), config.Media{Backend: "ftp"}, dir); err == nil {
		t.Error("expected unknown backend error")
	}
	if _, err := New(context.Background(), config.Media{Backend: "s3"}, dir); err == nil {
		t.Error("expected missing bucket error")
	}
}

func TestS3ObjectURL(t *testing.T) {
	s := &S3Store{bucket: "chat", region: "eu-west-1"}
	if got := s.objectURL("messages/a b.png"); got != "https://chat.s3.eu-west-1.amazonaws.com/messages/a%20b.png" {
		t.Errorf("objectURL = %q", got)
	}
	s.endpoint = "http://minio:9000"
	if got := s.objectURL("k.png"); got != "http://minio:9000/chat/k.png" {
		t.Errorf("objectURL = %q", got)
	}
}
