package files

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/repogen"
	"github.com/rise-and-shine/filesmanager/sorter"
)

// SortableFields are the columns clients may sort listings by.
var SortableFields = []string{"name", "type", "created_at", "updated_at"} //nolint:gochecknoglobals // fixed whitelist

// Repo is the metadata store of file records.
type Repo = repogen.Repo[FileRecord, Filter]

// Filter selects file records. Zero values are ignored.
type Filter struct {
	ID       int64
	OwnerID  int64
	ParentID *int64
	Type     Type

	// HasContent keeps records with a local path only.
	HasContent bool
	// AfterID and CreatedBefore drive batched scans.
	AfterID       int64
	CreatedBefore time.Time

	// Sort orders the result before the id tiebreaker.
	Sort sorter.Opts

	Limit  int
	Offset int
}

// NewRepo returns a bun backed Repo on the files table.
func NewRepo(idb bun.IDB) Repo {
	return repogen.NewPgRepoBuilder[FileRecord, Filter](idb).
		WithNotFoundCode(CodeFileNotFound).
		WithFilterFunc(applyFilter).
		Build()
}

func applyFilter(q *bun.SelectQuery, f Filter) *bun.SelectQuery {
	if f.ID != 0 {
		q = q.Where("f.id = ?", f.ID)
	}
	if f.OwnerID != 0 {
		q = q.Where("f.owner_id = ?", f.OwnerID)
	}
	if f.ParentID != nil {
		q = q.Where("f.parent_id = ?", *f.ParentID)
	}
	if f.Type != "" {
		q = q.Where("f.type = ?", f.Type)
	}
	if f.HasContent {
		q = q.Where("f.local_path IS NOT NULL")
	}
	if f.AfterID != 0 {
		q = q.Where("f.id > ?", f.AfterID)
	}
	if !f.CreatedBefore.IsZero() {
		q = q.Where("f.created_at < ?", f.CreatedBefore)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	for _, o := range f.Sort {
		q = q.OrderExpr(o.SQL("f"))
	}
	return q.Order("f.id ASC")
}
