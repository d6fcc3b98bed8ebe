// Package storage provides blob backends for attachment payloads: a remote
// object store, a local-disk fallback, and a tiered composite that hides which
// backend served a write.
package storage

import "context"

// BlobStore stores a single binary payload under a key and returns the public
// URL where the blob can be fetched (empty when the backend has no public
// address of its own).
type BlobStore interface {
	Name() string
	Put(ctx context.Context, key string, data []byte, mimeType string) (string, error)
}
