package files

import (
	"context"
	"io"
	"strings"

	"github.com/code19m/errx"
	"github.com/spf13/cast"

	"github.com/rise-and-shine/filesmanager/filestore"
)

// OpResolveContent is the operation id of ResolveContent.
const OpResolveContent = "resolve-content"

// DefaultContentSize is the thumbnail size served when none is requested.
const DefaultContentSize = 500

// ResolveContentInput selects a file and the thumbnail size to prefer. Size is
// kept as text: an empty size means DefaultContentSize, any other value that is
// not a positive integer serves the original.
type ResolveContentInput struct {
	ID   int64  `params:"id"  validate:"required,min=1"`
	Size string `query:"size"`
}

// Content is an opened blob. The caller must close Content.
type Content struct {
	Path        string
	ContentType string
	Size        int64
	Content     io.ReadCloser
}

// ResolveContent opens the content of a file, preferring the thumbnail of the
// requested size and falling back to the original when it does not exist.
// Private files of other users are reported exactly like missing files.
type ResolveContent struct {
	repo Repo
	blob filestore.FileStore
}

func NewResolveContent(repo Repo, blob filestore.FileStore) *ResolveContent {
	return &ResolveContent{repo: repo, blob: blob}
}

func (uc *ResolveContent) OperationID() string { return OpResolveContent }

func (uc *ResolveContent) Execute(ctx context.Context, in *ResolveContentInput) (*Content, error) {
	rec, err := findVisible(ctx, uc.repo, in.ID)
	if err != nil {
		return nil, err
	}

	if rec.Type == TypeFolder {
		return nil, errx.New("a folder has no content",
			errx.WithCode(CodeFolderHasNoContent),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"file_id": rec.ID}),
		)
	}
	if rec.LocalPath == nil {
		return nil, errFileNotFound(in.ID)
	}

	path, err := uc.pickPath(ctx, *rec.LocalPath, in.Size)
	if err != nil {
		return nil, err
	}

	file, err := uc.blob.Get(ctx, path)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"file_id": rec.ID}))
	}

	return &Content{
		Path:        path,
		ContentType: filestore.ContentTypeByPath(path),
		Size:        file.Info.Size,
		Content:     file.Content,
	}, nil
}

func (uc *ResolveContent) pickPath(ctx context.Context, localPath, rawSize string) (string, error) {
	size := DefaultContentSize
	if rawSize != "" {
		n, err := cast.ToIntE(strings.TrimSpace(rawSize))
		if err != nil || n <= 0 {
			return localPath, nil
		}
		size = n
	}

	candidate := DerivedPath(localPath, size)
	exists, err := uc.blob.Exists(ctx, candidate)
	if err != nil {
		return "", errx.Wrap(err)
	}
	if exists {
		return candidate, nil
	}
	return localPath, nil
}

// findVisible loads a record visible to the requester: public records, or
// any record of the requester.
func findVisible(ctx context.Context, repo Repo, id int64) (*FileRecord, error) {
	rec, err := repo.FirstOrNil(ctx, Filter{ID: id})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if rec == nil {
		return nil, errFileNotFound(id)
	}

	if !rec.IsPublic && rec.OwnerID != requesterID(ctx) {
		return nil, errFileNotFound(id)
	}
	return rec, nil
}
