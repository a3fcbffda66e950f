// Package files implements the file domain: uploads, thumbnail generation,
// content retrieval and the metadata glue around them.
package files

import (
	"fmt"

	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/pg"
)

// Type is the kind of a file record. It never changes after creation.
type Type string

const (
	TypeFolder Type = "folder"
	TypeFile   Type = "file"
	TypeImage  Type = "image"
)

// RootID is the parent id of top level records.
const RootID int64 = 0

// FileRecord is the metadata of an uploaded file or folder.
// LocalPath is the blob key of the content, nil for folders and for uploads
// whose blob write has not completed.
type FileRecord struct {
	bun.BaseModel `bun:"table:files,alias:f"`
	pg.Timestamps

	ID        int64   `bun:"id,pk,autoincrement"             json:"id"`
	OwnerID   int64   `bun:"owner_id,notnull"                json:"owner_id"`
	Name      string  `bun:"name,notnull"                    json:"name"`
	Type      Type    `bun:"type,notnull"                    json:"type"`
	ParentID  int64   `bun:"parent_id,notnull,default:0"     json:"parent_id"`
	IsPublic  bool    `bun:"is_public,notnull,default:false" json:"is_public"`
	LocalPath *string `bun:"local_path"                      json:"local_path"`
}

// DerivedPath is the blob key of the size×size thumbnail of the blob at localPath.
func DerivedPath(localPath string, size int) string {
	return fmt.Sprintf("%s_%d", localPath, size)
}

// ThumbnailJob is the queue payload of GenerateThumbnails.
type ThumbnailJob struct {
	FileID  int64 `json:"file_id"`
	OwnerID int64 `json:"owner_id"`
}
