package storage

import (
	"context"
	"fmt"
	"log/slog"

	"courtyard/internal/middleware"
	"courtyard/internal/observability"
)

// TieredStore tries a primary backend and falls back transparently to a
// secondary one. Attachment delivery must not block on a single degraded
// backend; the caller only ever sees the resulting descriptor.
type TieredStore struct {
	primary   BlobStore // may be nil when no remote store is configured
	secondary BlobStore
}

// NewTieredStore composes the two tiers. primary may be nil.
func NewTieredStore(primary, secondary BlobStore) *TieredStore {
	return &TieredStore{primary: primary, secondary: secondary}
}

// Put stores the blob on the first healthy tier. It returns the name of the
// backend that served the write alongside the blob's public URL.
func (s *TieredStore) Put(ctx context.Context, key string, data []byte, mimeType string) (backend, url string, err error) {
	if s.primary != nil {
		url, err = s.primary.Put(ctx, key, data, mimeType)
		if err == nil {
			return s.primary.Name(), url, nil
		}
		observability.StorageFailures.WithLabelValues(s.primary.Name()).Inc()
		middleware.Logger.WarnContext(ctx, "primary blob store failed, falling back",
			slog.String("backend", s.primary.Name()),
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	if s.secondary == nil {
		if err == nil {
			err = fmt.Errorf("no blob store configured")
		}
		return "", "", err
	}

	url, secErr := s.secondary.Put(ctx, key, data, mimeType)
	if secErr != nil {
		observability.StorageFailures.WithLabelValues(s.secondary.Name()).Inc()
		if err != nil {
			return "", "", fmt.Errorf("primary: %v; fallback: %w", err, secErr)
		}
		return "", "", secErr
	}
	return s.secondary.Name(), url, nil
}
