package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteStore uploads blobs to an S3-style object store over plain HTTP PUT.
// Any failure (network, quota, auth) is returned to the caller so the tiered
// store can fall back; the remote side is never retried here.
type RemoteStore struct {
	endpoint   string
	bucket     string
	token      string
	publicBase string
	client     *http.Client
}

// NewRemoteStore returns a client for the object store at endpoint. publicBase
// overrides the URL prefix advertised in descriptors; when empty the endpoint
// itself is used.
func NewRemoteStore(endpoint, bucket, token, publicBase string) *RemoteStore {
	if publicBase == "" {
		publicBase = endpoint
	}
	return &RemoteStore{
		endpoint:   endpoint,
		bucket:     bucket,
		token:      token,
		publicBase: publicBase,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Name identifies the backend in descriptors and metrics.
func (s *RemoteStore) Name() string { return "remote" }

// Put uploads the blob and returns its public URL.
func (s *RemoteStore) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mimeType)
	req.ContentLength = int64(len(data))
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4096))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("object store returned %s for %s", res.Status, key)
	}

	return fmt.Sprintf("%s/%s/%s", s.publicBase, s.bucket, key), nil
}
