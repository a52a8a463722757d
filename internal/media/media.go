// Package media stores uploaded images and hands back a public URL.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/matheus3301/courier/internal/config"
)

// Rejections raised before anything is stored.
var (
	ErrNotImage = errors.New("payload is not an image")
	ErrTooLarge = errors.New("image too large")
)

// IsRejected reports whether err means the image itself was refused, as
// opposed to the backend failing.
func IsRejected(err error) bool {
	return errors.Is(err, ErrNotImage) || errors.Is(err, ErrTooLarge) || errors.Is(err, ErrBadDataURI)
}

// Store uploads bytes and returns a stable retrievable URL.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Uploader validates images and names them before handing them to a Store.
type Uploader struct {
	store    Store
	maxBytes int64
}

// NewUploader wraps store. maxBytes <= 0 disables the size limit.
func NewUploader(store Store, maxBytes int64) *Uploader {
	return &Uploader{store: store, maxBytes: maxBytes}
}

// New builds the Store selected by cfg. localDir is used by the local backend
// when cfg.LocalDir is empty.
func New(ctx context.Context, cfg config.Media, localDir string) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		dir := cfg.LocalDir
		if dir == "" {
			dir = localDir
		}
		return NewLocalStore(dir, strings.TrimRight(cfg.PublicBaseURL, "/")+"/media")
	case "s3":
		return NewS3Store(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3Endpoint)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
}

// UploadDataURI decodes a data:image/...;base64 URI and uploads it.
func (u *Uploader) UploadDataURI(ctx context.Context, folder, uri string) (string, error) {
	data, err := DecodeDataURI(uri)
	if err != nil {
		return "", err
	}
	return u.Upload(ctx, folder, data)
}

// Upload stores data under folder with a random name.
func (u *Uploader) Upload(ctx context.Context, folder string, data []byte) (string, error) {
	if u.maxBytes > 0 && int64(len(data)) > u.maxBytes {
		return "", fmt.Errorf("%w: %d bytes, limit is %d", ErrTooLarge, len(data), u.maxBytes)
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: detected %s", ErrNotImage, contentType)
	}
	key := folder + "/" + uuid.NewString() + extension(contentType)
	url, err := u.store.Put(ctx, key, contentType, data)
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return url, nil
}

// ErrBadDataURI is returned by DecodeDataURI for malformed input.
var ErrBadDataURI = errors.New("malformed data URI")

// DecodeDataURI extracts the payload of a base64 data URI.
func DecodeDataURI(uri string) ([]byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrBadDataURI)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("%w: not base64", ErrBadDataURI)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURI, err)
	}
	return data, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
