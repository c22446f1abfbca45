// Package kvfile implements interfaces.KeyValueStorage by reading
// TOML key/value files from a directory, replacing the teacher's
// Badger-backed KV store. This spec's durable substrate is the blob
// store (C1); the only remaining KV-shaped need is resolving
// {key-name} references in configuration, which does not warrant an
// embedded database.
package kvfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Store loads every *.toml file under Dir as a flat key/value map.
// Each file's top-level keys are merged; later files (alphabetically)
// override earlier ones for conflicting keys.
type Store struct {
	dir string

	mu    sync.RWMutex
	cache map[string]string
}

// New creates a Store rooted at dir and performs an initial load.
func New(dir string) (*Store, error) {
	s := &Store{dir: dir}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) reload() error {
	merged := make(map[string]string)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.cache = merged
			s.mu.Unlock()
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".toml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			continue
		}
		var kv map[string]string
		if err := toml.Unmarshal(data, &kv); err != nil {
			continue
		}
		for k, v := range kv {
			merged[k] = v
		}
	}

	s.mu.Lock()
	s.cache = merged
	s.mu.Unlock()
	return nil
}

// Get returns the value for key, or "" if absent.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache[key], nil
}

// GetAll returns the full merged key/value map.
func (s *Store) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.cache))
	for k, v := range s.cache {
		out[k] = v
	}
	return out, nil
}
