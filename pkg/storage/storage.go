// Package storage defines the ObjectStore interface for blob storage with
// custom metadata. It abstracts the underlying backend so that callers can
// swap between an S3-compatible object store and an in-memory implementation
// without changing application code.
//
// The primary use case within earshot is persisting archived audio chunks
// and serving the administrative audio endpoints.
package storage

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	// Key is the object key, forward-slash separated.
	Key string

	// Size is the object size in bytes.
	Size int64

	// ContentType is the MIME type recorded at upload.
	ContentType string

	// Metadata is the custom metadata recorded at upload.
	// Keys are case-insensitive; implementations return them lowercased.
	Metadata map[string]string

	// LastModified is the backend's modification timestamp.
	LastModified time.Time
}

// PutOptions carries the content type and custom metadata for an upload.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectStore is the interface for blob storage with custom metadata.
//
// Keys are forward-slash separated. Implementations must be safe for
// concurrent use.
type ObjectStore interface {
	// Put stores body under key with the given options, overwriting any
	// existing object.
	Put(ctx context.Context, key string, body io.Reader, opts PutOptions) error

	// Get opens the named object for reading and returns its description.
	// The caller must close the returned ReadCloser when done.
	// If the object does not exist, an error wrapping os.ErrNotExist is
	// returned.
	Get(ctx context.Context, key string) (io.ReadCloser, *ObjectInfo, error)

	// Head returns the object's description without its body.
	// If the object does not exist, an error wrapping os.ErrNotExist is
	// returned.
	Head(ctx context.Context, key string) (*ObjectInfo, error)

	// List returns descriptions of all objects whose key starts with
	// prefix, in lexicographic key order. Metadata is included.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Delete removes the named object.
	// If the object does not exist, Delete returns nil (idempotent).
	Delete(ctx context.Context, key string) error
}
