package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingStore struct{ err error }

func (f *failingStore) Name() string { return "failing" }

func (f *failingStore) Put(context.Context, string, []byte, string) (string, error) {
	return "", f.err
}

func TestLocalStore_Put(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, "/media")

	url, err := store.Put(context.Background(), "ab/cat.jpg", []byte("payload"), "image/jpeg")
	assert.NoError(t, err)
	assert.Equal(t, "/media/ab/cat.jpg", url)

	data, err := os.ReadFile(filepath.Join(dir, "ab", "cat.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestRemoteStore_Put(t *testing.T) {
	var gotPath, gotAuth, gotType string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	store := NewRemoteStore(ts.URL, "media", "sekrit", "https://cdn.example.com")
	url, err := store.Put(context.Background(), "ab/cat.jpg", []byte("payload"), "image/jpeg")
	assert.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/media/ab/cat.jpg", url)
	assert.Equal(t, "/media/ab/cat.jpg", gotPath)
	assert.Equal(t, "Bearer sekrit", gotAuth)
	assert.Equal(t, "image/jpeg", gotType)
}

func TestRemoteStore_PutRejectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusInsufficientStorage)
	}))
	defer ts.Close()

	store := NewRemoteStore(ts.URL, "media", "", "")
	_, err := store.Put(context.Background(), "k", []byte("x"), "text/plain")
	assert.Error(t, err)
}

func TestTieredStore_PrimaryHealthy(t *testing.T) {
	dir := t.TempDir()
	tiered := NewTieredStore(NewLocalStore(dir, "/primary"), NewLocalStore(t.TempDir(), "/secondary"))

	backend, url, err := tiered.Put(context.Background(), "k.txt", []byte("x"), "text/plain")
	assert.NoError(t, err)
	assert.Equal(t, "local", backend)
	assert.Equal(t, "/primary/k.txt", url)
}

func TestTieredStore_FallsBackTransparently(t *testing.T) {
	dir := t.TempDir()
	tiered := NewTieredStore(
		&failingStore{err: errors.New("connection refused")},
		NewLocalStore(dir, "/media"),
	)

	backend, url, err := tiered.Put(context.Background(), "k.txt", []byte("x"), "text/plain")
	assert.NoError(t, err)
	assert.Equal(t, "local", backend)
	assert.Equal(t, "/media/k.txt", url)

	_, statErr := os.Stat(filepath.Join(dir, "k.txt"))
	assert.NoError(t, statErr)
}

func TestTieredStore_BothTiersFail(t *testing.T) {
	tiered := NewTieredStore(
		&failingStore{err: errors.New("primary down")},
		&failingStore{err: errors.New("disk full")},
	)

	_, _, err := tiered.Put(context.Background(), "k", []byte("x"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary down")
	assert.Contains(t, err.Error(), "disk full")
}

func TestTieredStore_NoPrimaryConfigured(t *testing.T) {
	dir := t.TempDir()
	tiered := NewTieredStore(nil, NewLocalStore(dir, "/media"))

	backend, _, err := tiered.Put(context.Background(), "k", []byte("x"), "text/plain")
	assert.NoError(t, err)
	assert.Equal(t, "local", backend)
}
