package storage

import (
	"context"
	"os"
	"path/filepath"
)

// LocalStore writes blobs under a directory on the serving host. It backs the
// fallback tier and is also the sole backend in development.
type LocalStore struct {
	dir        string
	publicBase string
}

// NewLocalStore returns a disk-backed store rooted at dir. publicBase is the
// URL prefix under which the directory is served (e.g. "/media").
func NewLocalStore(dir, publicBase string) *LocalStore {
	return &LocalStore{dir: dir, publicBase: publicBase}
}

// Name identifies the backend in descriptors and metrics.
func (s *LocalStore) Name() string { return "local" }

// Dir returns the root directory blobs are written under.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes the blob to disk and returns its serving URL.
func (s *LocalStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	if s.publicBase == "" {
		return "", nil
	}
	return s.publicBase + "/" + key, nil
}
