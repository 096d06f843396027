// Package storage contains blob storage abstractions for uploaded files.
// Keys are slash-separated paths such as "uploads/1700000000000-report.pdf";
// backends map them onto a directory tree or an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"patientdocs/internal/config"
)

// ErrObjectNotFound is returned by Get and Delete when no blob exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// ErrObjectExists is returned by Put when a backend refuses to overwrite a key.
var ErrObjectExists = errors.New("object already exists")

// PutObjectOptions define optional parameters for uploading objects.
// Size should be the exact number of bytes if known; if unknown, set to -1 and the implementation
// will buffer/chunk as supported by the backend.
// ContentType and Metadata are optional.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about an object in storage.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is a reusable blob storage client interface.
// Methods use context and streaming readers; implementations are safe for concurrent use.
type Storage interface {
	// Put writes an object under the given key using the provided reader and options.
	// The returned Size is the number of bytes actually stored.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Get retrieves an object's content as a streaming reader alongside its info.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes an object by key.
	Delete(ctx context.Context, key string) error
	// Exists reports whether an object is present under key.
	Exists(ctx context.Context, key string) (bool, error)
}

// New builds the backend selected by cfg.Storage.Driver.
func New(cfg *config.AppConfig) (Storage, error) {
	switch cfg.Storage.Driver {
	case "", "local":
		return NewLocal(cfg.Storage.LocalRoot)
	case "minio", "s3":
		return NewMinIO(cfg.MinIO)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}
