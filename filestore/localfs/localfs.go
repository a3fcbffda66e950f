// Package localfs stores blobs as files in a single directory on local disk.
package localfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/filestore"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
	sniffLen = 512
)

var _ filestore.FileStore = (*Store)(nil)

// Store implements filestore.FileStore on a local directory.
type Store struct {
	root string
}

// New creates the root directory if needed and returns a Store on it.
func New(cfg Config) (*Store, error) {
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if err = os.MkdirAll(root, dirPerm); err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"root": root}))
	}
	return &Store{root: root}, nil
}

// Upload writes into a temporary file in the root, syncs it and renames it
// over path, so readers never observe a partially written blob.
func (s *Store) Upload(ctx context.Context, path string, reader io.Reader) (*filestore.FileInfo, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, errx.Wrap(err)
	}

	tmp, err := os.CreateTemp(s.root, ".upload-*")
	if err != nil {
		return nil, errx.Wrap(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	sniff := &sniffWriter{}
	size, err := io.Copy(io.MultiWriter(tmp, sniff), contextReader{ctx: ctx, r: reader})
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
	}
	if err = tmp.Sync(); err != nil {
		return nil, errx.Wrap(err)
	}
	if err = tmp.Close(); err != nil {
		return nil, errx.Wrap(err)
	}
	if err = os.Chmod(tmp.Name(), filePerm); err != nil {
		return nil, errx.Wrap(err)
	}
	if err = os.Rename(tmp.Name(), target); err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
	}
	committed = true

	stat, err := os.Stat(target)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	return &filestore.FileInfo{
		Path:         path,
		Size:         size,
		ContentType:  http.DetectContentType(sniff.buf),
		LastModified: stat.ModTime(),
	}, nil
}

func (s *Store) Get(_ context.Context, path string) (*filestore.File, error) {
	target, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(target)
	if err != nil {
		return nil, notFoundOrWrap(err, path)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errx.Wrap(err)
	}

	return &filestore.File{
		Content: f,
		Info: filestore.FileInfo{
			Path:         path,
			Size:         stat.Size(),
			ContentType:  filestore.ContentTypeByPath(path),
			LastModified: stat.ModTime(),
		},
	}, nil
}

func (s *Store) Delete(_ context.Context, path string) error {
	target, err := s.resolve(path)
	if err != nil {
		return err
	}

	err = os.Remove(target)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
	}
	return nil
}

func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	target, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	stat, err := os.Stat(target)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errx.Wrap(err)
	}
	return stat.Mode().IsRegular(), nil
}

// resolve maps a key to a file directly inside the root.
func (s *Store) resolve(path string) (string, error) {
	if path == "" || strings.ContainsAny(path, `/\`) || path == "." || path == ".." || strings.HasPrefix(path, ".upload-") {
		return "", errx.New(
			"invalid blob path",
			errx.WithCode(filestore.CodeInvalidPath),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"path": path}),
		)
	}
	return filepath.Join(s.root, path), nil
}

func notFoundOrWrap(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errx.New(
			"file not found",
			errx.WithCode(filestore.CodeFileNotFound),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"path": path}),
		)
	}
	return errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
}

// sniffWriter keeps the first bytes written for content type detection.
type sniffWriter struct {
	buf []byte
}

func (w *sniffWriter) Write(p []byte) (int, error) {
	if room := sniffLen - len(w.buf); room > 0 {
		w.buf = append(w.buf, p[:min(room, len(p))]...)
	}
	return len(p), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context //nolint:containedctx // scoped to a single io.Copy
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
