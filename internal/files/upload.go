package files

import (
	"bytes"
	"context"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/filestore"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

// OpUploadFile is the operation id of UploadFile.
const OpUploadFile = "upload-file"

const cleanupTimeout = 5 * time.Second

// UploadFileInput is the body of POST /files. Data is the base64 encoded
// content and is required unless Type is folder.
type UploadFileInput struct {
	Name     string `json:"name"      validate:"required,max=255"`
	Type     Type   `json:"type"      validate:"required,oneof=folder file image"`
	ParentID int64  `json:"parent_id" validate:"min=0"`
	IsPublic bool   `json:"is_public"`
	Data     string `json:"data"      mask:"true"`
}

// UploadFile stores the content of a new file and its metadata. Image
// uploads get a thumbnail job. The blob is written before the record points
// at it, so a record never references missing content.
type UploadFile = ucdef.UserAction[*UploadFileInput, *FileRecord]

type uploadFile struct {
	repo     Repo
	blob     filestore.FileStore
	enqueuer taskmill.Enqueuer
}

func NewUploadFile(repo Repo, blob filestore.FileStore, enqueuer taskmill.Enqueuer) UploadFile {
	return &uploadFile{repo: repo, blob: blob, enqueuer: enqueuer}
}

func (uc *uploadFile) OperationID() string { return OpUploadFile }

func (uc *uploadFile) Execute(ctx context.Context, in *UploadFileInput) (*FileRecord, error) {
	ownerID, err := mustRequesterID(ctx)
	if err != nil {
		return nil, err
	}

	var content []byte
	if in.Type != TypeFolder {
		content, err = decodeData(in.Data)
		if err != nil {
			return nil, err
		}
	}

	if err = uc.checkParent(ctx, ownerID, in.ParentID); err != nil {
		return nil, err
	}

	rec, err := uc.repo.Create(ctx, &FileRecord{
		OwnerID:  ownerID,
		Name:     in.Name,
		Type:     in.Type,
		ParentID: in.ParentID,
		IsPublic: in.IsPublic,
	})
	if err != nil {
		return nil, errx.Wrap(err)
	}

	if rec.Type == TypeFolder {
		return rec, nil
	}

	if err = uc.storeContent(ctx, rec, content); err != nil {
		return nil, err
	}

	if rec.Type == TypeImage {
		uc.enqueueThumbnails(ctx, rec)
	}
	return rec, nil
}

func decodeData(data string) ([]byte, error) {
	if data == "" {
		return nil, errx.New("data is required for files and images",
			errx.WithCode(CodeMissingData),
			errx.WithType(errx.T_Validation),
			errx.WithFields(errx.M{"data": "required"}),
		)
	}

	content, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, errx.Wrap(err,
			errx.WithCode(CodeInvalidBase64),
			errx.WithType(errx.T_Validation),
			errx.WithFields(errx.M{"data": "must be valid base64"}),
		)
	}
	return content, nil
}

// checkParent requires a non root parent to be a folder of the same owner.
func (uc *uploadFile) checkParent(ctx context.Context, ownerID, parentID int64) error {
	if parentID == RootID {
		return nil
	}

	parent, err := uc.repo.FirstOrNil(ctx, Filter{ID: parentID, OwnerID: ownerID})
	if err != nil {
		return errx.Wrap(err)
	}
	if parent == nil {
		return errx.New("parent not found",
			errx.WithCode(CodeParentNotFound),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"parent_id": parentID}),
		)
	}
	if parent.Type != TypeFolder {
		return errx.New("parent is not a folder",
			errx.WithCode(CodeParentNotFolder),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"parent_id": parentID, "parent_type": parent.Type}),
		)
	}
	return nil
}

// storeContent writes the blob and only then records its path. When the
// record update fails the blob is removed again.
func (uc *uploadFile) storeContent(ctx context.Context, rec *FileRecord, content []byte) error {
	key := filestore.NewKey(rec.Name)

	_, err := uc.blob.Upload(ctx, key, bytes.NewReader(content))
	if err != nil {
		return errx.Wrap(err, errx.WithDetails(errx.D{"file_id": rec.ID}))
	}

	rec.LocalPath = &key
	if _, err = uc.repo.Update(ctx, rec, "local_path"); err != nil {
		rec.LocalPath = nil

		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
		defer cancel()
		if delErr := uc.blob.Delete(cleanupCtx, key); delErr != nil {
			logger.Named("files.upload").WithContext(ctx).With("blob_key", key).Warnx(delErr)
		}
		return errx.Wrap(err)
	}
	return nil
}

// enqueueThumbnails never fails the upload: thumbnails are best effort and
// the reconciler picks up images whose job was lost.
func (uc *uploadFile) enqueueThumbnails(ctx context.Context, rec *FileRecord) {
	err := uc.enqueuer.Enqueue(ctx, OpGenerateThumbnails,
		ThumbnailJob{FileID: rec.ID, OwnerID: rec.OwnerID},
		taskmill.WithIdempotencyKey(thumbnailJobKey(rec.ID)),
	)
	if err != nil && !errx.IsCodeIn(err, taskmill.CodeDuplicateTask) {
		logger.Named("files.upload").WithContext(ctx).With("file_id", rec.ID).Errorx(err)
	}
}

// thumbnailJobKey deduplicates pending thumbnail jobs of one file.
func thumbnailJobKey(fileID int64) string {
	return OpGenerateThumbnails + ":" + strconv.FormatInt(fileID, 10)
}
