// Package filestore defines blob storage for file contents.
//
// Blobs are addressed by a flat key. Keys are produced by NewKey so that
// concurrent uploads never collide, and derived blobs (thumbnails) are stored
// under the original key plus a suffix.
package filestore

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FileStore stores and retrieves blobs. Implementations must be safe for concurrent use.
type FileStore interface {
	// Upload writes the reader's content under path, replacing any existing blob.
	// The blob is visible to readers only once the write has fully succeeded.
	Upload(ctx context.Context, path string, reader io.Reader) (*FileInfo, error)

	// Get opens the blob at path. The caller must close File.Content.
	// A missing blob yields an error with code FILE_NOT_FOUND.
	Get(ctx context.Context, path string) (*File, error)

	// Delete removes the blob at path. Deleting a missing blob is not an error.
	Delete(ctx context.Context, path string) error

	// Exists reports whether a blob is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// File is an opened blob.
type File struct {
	Content io.ReadCloser
	Info    FileInfo
}

// FileInfo describes a stored blob.
type FileInfo struct {
	Path         string
	Size         int64
	ContentType  string
	ETag         string
	LastModified time.Time
}

const maxKeyExtLen = 16

// NewKey returns a fresh collision-free key that keeps the extension of name,
// e.g. "3f0c...e1.png" for "cat.png". Extensions that are not short lowercase
// alphanumerics are dropped, so any name gives a valid single element key.
func NewKey(name string) string {
	return uuid.NewString() + keyExt(name)
}

func keyExt(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if len(ext) < 2 || len(ext) > maxKeyExtLen+1 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
