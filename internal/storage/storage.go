// Package storage keeps original uploads in an object store. The S3
// backend is used in production; the local filesystem backend serves
// development and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"doc-analysis-platform/internal/config"
	"doc-analysis-platform/internal/telemetry"
)

// UploadPrefix is the key prefix under which every upload is stored.
const UploadPrefix = "uploads/"

var (
	ErrNotFound   = errors.New("object not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Object describes a stored blob as returned by List.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore is a flat key/value blob store. Put overwrites an existing
// key. Delete of a missing key is not an error.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (url string, err error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// ObjectKey returns the key for an upload: uploads/{ownerID}/{filename},
// with the filename reduced to its base name and lower-cased. Two uploads
// by the same owner with the same name therefore share a key.
func ObjectKey(ownerID int64, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	return fmt.Sprintf("%s%d/%s", UploadPrefix, ownerID, strings.ToLower(name))
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key ||
		key == ".." || strings.HasPrefix(key, "../") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// New builds the backend selected by STORAGE_BACKEND and wraps it with
// operation metrics.
func New(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	var (
		store ObjectStore
		err   error
	)
	switch cfg.StorageBackend {
	case "local":
		store, err = NewLocalStore(cfg.FileStorageDir)
	default:
		store, err = NewS3Store(ctx, cfg)
	}
	if err != nil {
		return nil, err
	}
	return WithMetrics(store), nil
}

type instrumented struct {
	next ObjectStore
}

// WithMetrics records every call in the storage_operations_total counter.
func WithMetrics(store ObjectStore) ObjectStore {
	return &instrumented{next: store}
}

func observe(op string, err error) {
	status := "success"
	if errors.Is(err, ErrNotFound) {
		status = "not_found"
	} else if err != nil {
		status = "error"
	}
	telemetry.StorageOperations.WithLabelValues(op, status).Inc()
}

func (s *instrumented) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	url, err := s.next.Put(ctx, key, data, contentType)
	observe("put", err)
	return url, err
}

func (s *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.next.Get(ctx, key)
	observe("get", err)
	return data, err
}

func (s *instrumented) Delete(ctx context.Context, key string) error {
	err := s.next.Delete(ctx, key)
	observe("delete", err)
	return err
}

func (s *instrumented) List(ctx context.Context, prefix string) ([]Object, error) {
	objs, err := s.next.List(ctx, prefix)
	observe("list", err)
	return objs, err
}
