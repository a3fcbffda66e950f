package files

import (
	"github.com/code19m/errx"
)

// Error codes of the files domain.
const (
	CodeFileNotFound       = "FILE_NOT_FOUND"
	CodeMissingData        = "MISSING_DATA"
	CodeParentNotFound     = "PARENT_NOT_FOUND"
	CodeParentNotFolder    = "PARENT_NOT_FOLDER"
	CodeInvalidBase64      = "INVALID_BASE64"
	CodeFolderHasNoContent = "FOLDER_HAS_NO_CONTENT"
	CodeInvalidJob         = "INVALID_THUMBNAIL_JOB"
	CodeThumbnailTimeout   = "THUMBNAIL_TIMEOUT"
	CodeUnauthorized       = "UNAUTHORIZED"
)

// errFileNotFound is returned for missing and for invisible records alike.
func errFileNotFound(id int64) error {
	return errx.New("file not found",
		errx.WithCode(CodeFileNotFound),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"file_id": id}),
	)
}
