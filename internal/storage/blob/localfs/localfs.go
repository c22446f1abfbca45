// Package localfs implements a BlobStore backend rooted at a local
// directory. Grounded on the teacher's storage/badger backend-behind-an-
// interface shape; the storage medium differs (plain files, not an
// embedded KV engine) because this spec's durable substrate is the blob
// store abstraction itself, not a database.
package localfs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/antigravity-dev/ragforge/internal/models"
	"github.com/antigravity-dev/ragforge/internal/storage/blob"
)

// Store is a BlobStore backed by the local filesystem. Keys are
// path-like, forward-slash strings relative to root; they map directly
// onto nested directories under root.
type Store struct {
	root   string
	logger arbor.ILogger

	mu sync.Mutex // guards content-type sidecar writes for a given key
}

// New creates a Store rooted at root, creating the directory if absent.
func New(root string, logger arbor.ILogger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &blob.PermanentError{Op: "mkdir", Err: err}
	}
	return &Store{root: root, logger: logger}, nil
}

func (s *Store) pathFor(key string) (string, error) {
	clean := filepath.Clean(key)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", &blob.PermanentError{Op: "resolve-key", Err: os.ErrInvalid}
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func etagFor(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])[:16]
}

// Put atomically writes content via a temp-file-then-rename so readers
// never observe a partial object.
func (s *Store) Put(ctx context.Context, key string, content io.Reader, contentType string) (string, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return "", &blob.TransientError{Op: "read-content", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", &blob.TransientError{Op: "mkdir", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return "", &blob.TransientError{Op: "create-temp", Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", &blob.TransientError{Op: "write-temp", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", &blob.TransientError{Op: "close-temp", Err: err}
	}

	if err := os.Rename(tmpName, path); err != nil {
		return "", &blob.TransientError{Op: "rename", Err: err}
	}

	etag := etagFor(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(path+".meta", []byte(contentType+"\n"+etag), 0o644); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("failed to write content-type sidecar")
	}

	return etag, nil
}

// Get reads content and content-type for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, string, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, "", err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", blob.ErrNotFound
		}
		return nil, "", &blob.TransientError{Op: "read", Err: err}
	}

	contentType := "application/octet-stream"
	if meta, err := os.ReadFile(path + ".meta"); err == nil {
		lines := strings.SplitN(string(meta), "\n", 2)
		if len(lines) > 0 && lines[0] != "" {
			contentType = lines[0]
		}
	}

	return data, contentType, nil
}

// List streams every key with the given prefix, sorted for determinism.
func (s *Store) List(ctx context.Context, prefix string) ([]models.BlobInfo, error) {
	base := s.root
	var infos []models.BlobInfo

	err := filepath.Walk(base, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() || strings.HasSuffix(path, ".meta") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		contentType := "application/octet-stream"
		etag := ""
		if meta, err := os.ReadFile(path + ".meta"); err == nil {
			lines := strings.SplitN(string(meta), "\n", 2)
			if len(lines) > 0 {
				contentType = lines[0]
			}
			if len(lines) > 1 {
				etag = lines[1]
			}
		}

		infos = append(infos, models.BlobInfo{
			Key:         key,
			ContentType: contentType,
			ETag:        etag,
			Size:        fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, &blob.TransientError{Op: "walk", Err: err}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return &blob.TransientError{Op: "delete", Err: err}
	}
	_ = os.Remove(path + ".meta")
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, &blob.TransientError{Op: "stat", Err: err}
	}
	return true, nil
}
