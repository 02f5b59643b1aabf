// Package storage puts uploaded media into an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/go-marks/pkg/config"
)

var (
	ErrDisabled = errors.New("media uploads are not configured")
	ErrNotFound = errors.New("object not found")
)

// BlobStore is the slice of an object store media uploads need.
type BlobStore interface {
	// Put stores r under key and returns the URL clients fetch it from.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// New builds the store named by cfg.Driver. A disabled config returns
// ErrDisabled so callers can run without uploads.
func New(ctx context.Context, cfg *config.StorageConfig) (BlobStore, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}

	switch cfg.Driver {
	case "s3":
		return NewS3(ctx, cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// ObjectKey namespaces uploads by bookmark and keeps the original extension.
func ObjectKey(bookmarkID uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("bookmarks/%s/%s%s", bookmarkID, uuid.NewString(), ext)
}

func publicURL(base, defaultBase, key string) string {
	if base == "" {
		base = defaultBase
	}
	return strings.TrimRight(base, "/") + "/" + key
}
