package interfaces

import (
	"context"
	"io"

	"github.com/antigravity-dev/ragforge/internal/models"
)

// BlobStore is the sole channel through which every other component
// touches durable storage. Implementations: internal/storage/blob/localfs
// and internal/storage/blob/s3.
type BlobStore interface {
	// Put writes content atomically under key, replacing any prior content
	// and invalidating its etag. Returns the new etag.
	Put(ctx context.Context, key string, content io.Reader, contentType string) (etag string, err error)

	// Get returns the full content and content-type for key.
	Get(ctx context.Context, key string) (content []byte, contentType string, err error)

	// List streams every key with the given prefix.
	List(ctx context.Context, prefix string) ([]models.BlobInfo, error)

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)
}

// KeyValueStorage is a small, file-backed key/value lookup used for
// {key-name} substitution in configuration (see internal/common/config.go).
// It is deliberately not a database — ragforge's durable substrate is
// BlobStore, not an embedded KV store.
type KeyValueStorage interface {
	Get(ctx context.Context, key string) (string, error)
	GetAll(ctx context.Context) (map[string]string, error)
}
