package files

import (
	"context"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/ucdef"
)

type SetVisibilityInput struct {
	ID int64 `params:"id" validate:"required,min=1"`
}

type SetVisibility = ucdef.UserAction[*SetVisibilityInput, *FileRecord]

type setVisibility struct {
	repo        Repo
	operationID string
	public      bool
}

// NewPublishFile makes a record of the requester public.
func NewPublishFile(repo Repo) SetVisibility {
	return &setVisibility{repo: repo, operationID: OpPublishFile, public: true}
}

// NewUnpublishFile makes a record of the requester private.
func NewUnpublishFile(repo Repo) SetVisibility {
	return &setVisibility{repo: repo, operationID: OpUnpublishFile, public: false}
}

func (uc *setVisibility) OperationID() string { return uc.operationID }

func (uc *setVisibility) Execute(ctx context.Context, in *SetVisibilityInput) (*FileRecord, error) {
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

	if rec.IsPublic == uc.public {
		return rec, nil
	}

	rec.IsPublic = uc.public
	return uc.repo.Update(ctx, rec, "is_public")
}
