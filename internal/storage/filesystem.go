package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// FilesystemBackend stores cache files below a root directory
type FilesystemBackend struct {
	rootPath string
}

// NewFilesystemBackend creates a new filesystem storage backend
func NewFilesystemBackend(root string) (*FilesystemBackend, error) {
	// Ensure root path exists
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, NewErrorWithCause("CreateRootDir", "Failed to create root directory", err)
	}

	return &FilesystemBackend{rootPath: root}, nil
}

// FullPath returns the filesystem path of a cache path
func (fs *FilesystemBackend) FullPath(path string) string {
	return fs.getFullPath(path)
}

// Put writes a file atomically: data goes to a temporary file in the
// target directory which is then renamed over the final name.
func (fs *FilesystemBackend) Put(ctx context.Context, path string, data io.Reader) (ObjectInfo, error) {
	if err := fs.validatePath(path); err != nil {
		return ObjectInfo{}, err
	}

	fullPath := fs.getFullPath(path)

	// Create directory if it doesn't exist
	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ObjectInfo{}, NewErrorWithCause("CreateDirectory", "Failed to create directory", err)
	}

	// Create temporary file
	tempFile, err := os.CreateTemp(dir, ".tmp_")
	if err != nil {
		return ObjectInfo{}, NewErrorWithCause("CreateTempFile", "Failed to create temporary file", err)
	}
	defer os.Remove(tempFile.Name())
	defer tempFile.Close()

	if _, err := io.Copy(tempFile, data); err != nil {
		return ObjectInfo{}, NewErrorWithCause("WriteData", "Failed to write data", err)
	}

	if err := tempFile.Close(); err != nil {
		return ObjectInfo{}, NewErrorWithCause("WriteData", "Failed to flush data", err)
	}

	if err := os.Chmod(tempFile.Name(), 0644); err != nil {
		return ObjectInfo{}, NewErrorWithCause("Chmod", "Failed to set file mode", err)
	}

	// Atomic move
	if err := os.Rename(tempFile.Name(), fullPath); err != nil {
		return ObjectInfo{}, NewErrorWithCause("AtomicMove", "Failed to move file to final location", err)
	}

	return fs.Stat(ctx, path)
}

// Get opens a cache file for reading
func (fs *FilesystemBackend) Get(ctx context.Context, path string) (io.ReadCloser, ObjectInfo, error) {
	info, err := fs.Stat(ctx, path)
	if err != nil {
		return nil, ObjectInfo{}, err
	}

	file, err := os.Open(fs.getFullPath(path))
	if os.IsNotExist(err) {
		// Removed between stat and open by a concurrent wipe
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, NewErrorWithCause("OpenFile", "Failed to open file", err)
	}

	return file, info, nil
}

// Stat returns size and modification time of a cache file
func (fs *FilesystemBackend) Stat(ctx context.Context, path string) (ObjectInfo, error) {
	if err := fs.validatePath(path); err != nil {
		return ObjectInfo{}, err
	}

	stat, err := os.Stat(fs.getFullPath(path))
	if os.IsNotExist(err) {
		return ObjectInfo{}, ErrObjectNotFound
	}
	if err != nil {
		return ObjectInfo{}, NewErrorWithCause("StatFile", "Failed to stat file", err)
	}
	if stat.IsDir() {
		return ObjectInfo{}, ErrObjectNotFound
	}

	return ObjectInfo{
		Path:         path,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}, nil
}

// Delete removes a cache file
func (fs *FilesystemBackend) Delete(ctx context.Context, path string) error {
	if err := fs.validatePath(path); err != nil {
		return err
	}

	if err := os.Remove(fs.getFullPath(path)); err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		return NewErrorWithCause("DeleteFile", "Failed to delete file", err)
	}

	return nil
}

// List returns every file below prefix, skipping in-flight temp files
func (fs *FilesystemBackend) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	searchPath := fs.getFullPath(prefix)
	if _, err := os.Stat(searchPath); os.IsNotExist(err) {
		return objects, nil
	}

	err := filepath.Walk(searchPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), ".tmp_") {
			return nil
		}

		relPath, err := filepath.Rel(fs.rootPath, path)
		if err != nil {
			return nil
		}

		objects = append(objects, ObjectInfo{
			Path:         filepath.ToSlash(relPath),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, NewErrorWithCause("WalkDirectory", "Failed to walk directory", err)
	}

	return objects, nil
}

// Reset deletes every entry below prefix and recreates the directory
// empty. Failures on individual entries are collected and returned
// together; the remaining entries are still removed.
func (fs *FilesystemBackend) Reset(ctx context.Context, prefix string) error {
	if err := fs.validatePath(prefix); err != nil {
		return err
	}

	fullPath := fs.getFullPath(prefix)

	var result *multierror.Error
	entries, err := os.ReadDir(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return NewErrorWithCause("ReadDirectory", "Failed to read directory", err)
	}

	for _, entry := range entries {
		entryPath := filepath.Join(fullPath, entry.Name())
		if err := os.RemoveAll(entryPath); err != nil {
			result = multierror.Append(result, NewErrorWithCause("RemoveEntry", "Failed to remove "+entry.Name(), err))
		}
	}

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		result = multierror.Append(result, NewErrorWithCause("CreateDirectory", "Failed to recreate directory", err))
	}

	logrus.WithFields(logrus.Fields{
		"path":    prefix,
		"entries": len(entries),
	}).Debug("Cache directory reset")

	return result.ErrorOrNil()
}

// Close closes the filesystem backend
func (fs *FilesystemBackend) Close() error {
	// Filesystem backend doesn't need explicit cleanup
	return nil
}

// Helper methods

// validatePath validates that the path is safe for filesystem operations
func (fs *FilesystemBackend) validatePath(path string) error {
	if path == "" {
		return ErrInvalidPath
	}

	// Prevent directory traversal attacks
	if strings.Contains(path, "..") {
		return ErrInvalidPath
	}

	// Ensure path doesn't start with /
	if strings.HasPrefix(path, "/") {
		return ErrInvalidPath
	}

	return nil
}

// getFullPath returns the full filesystem path for a given cache path
func (fs *FilesystemBackend) getFullPath(path string) string {
	return filepath.Join(fs.rootPath, filepath.FromSlash(path))
}
