package files

import (
	"context"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/pagination"
	"github.com/rise-and-shine/filesmanager/sorter"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

// Operation ids of the metadata use cases.
const (
	OpGetFile       = "get-file"
	OpListFiles     = "list-files"
	OpPublishFile   = "publish-file"
	OpUnpublishFile = "unpublish-file"
)

const listPageSize = 20

type GetFileInput struct {
	ID int64 `params:"id" validate:"required,min=1"`
}

type GetFile = ucdef.UserAction[*GetFileInput, *FileRecord]

type getFile struct {
	repo Repo
}

// NewGetFile returns a record of the requester. Records of other users are
// not found, public or not.
func NewGetFile(repo Repo) GetFile {
	return &getFile{repo: repo}
}

func (uc *getFile) OperationID() string { return OpGetFile }

func (uc *getFile) Execute(ctx context.Context, in *GetFileInput) (*FileRecord, error) {
	ownerID, err := mustRequesterID(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := uc.repo.FirstOrNil(ctx, Filter{ID: in.ID, OwnerID: ownerID})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if rec == nil {
		return nil, errFileNotFound(in.ID)
	}
	return rec, nil
}

type ListFilesInput struct {
	ParentID int64  `query:"parent_id" validate:"min=0"`
	Sort     string `query:"sort"      validate:"max=128"`
	pagination.Request
}

type ListFiles = ucdef.UserAction[*ListFilesInput, *pagination.Response[FileRecord]]

type listFiles struct {
	repo Repo
}

// NewListFiles lists the requester's records under one parent, 20 per page,
// in id order unless the client asks for a sort such as "name:asc".
func NewListFiles(repo Repo) ListFiles {
	return &listFiles{repo: repo}
}

func (uc *listFiles) OperationID() string { return OpListFiles }

func (uc *listFiles) Execute(ctx context.Context, in *ListFilesInput) (*pagination.Response[FileRecord], error) {
	ownerID, err := mustRequesterID(ctx)
	if err != nil {
		return nil, err
	}

	in.Normalize(pagination.WithFixedPageSize(listPageSize))

	items, total, err := uc.repo.ListWithCount(ctx, Filter{
		OwnerID:  ownerID,
		ParentID: &in.ParentID,
		Sort:     sorter.Parse(in.Sort, SortableFields...),
		Limit:    in.Limit(),
		Offset:   in.Offset(),
	})
	if err != nil {
		return nil, err
	}

	resp := pagination.NewResponse(items, int64(total), in.Request)
	return &resp, nil
}
