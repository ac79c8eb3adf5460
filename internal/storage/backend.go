package storage

import (
	"context"
	"io"
)

// Backend defines the cache directory operations
type Backend interface {
	// Basic operations
	Put(ctx context.Context, path string, data io.Reader) (ObjectInfo, error)
	Get(ctx context.Context, path string) (io.ReadCloser, ObjectInfo, error)
	Stat(ctx context.Context, path string) (ObjectInfo, error)
	Delete(ctx context.Context, path string) error

	// Listing
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Reset removes everything below prefix and recreates it empty
	Reset(ctx context.Context, prefix string) error

	// FullPath maps a cache path to its location on disk
	FullPath(path string) string

	// Lifecycle
	Close() error
}

// NewBackend creates the filesystem cache backend rooted at root
func NewBackend(root string) (Backend, error) {
	return NewFilesystemBackend(root)
}
