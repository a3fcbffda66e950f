package users

import (
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/repogen"
)

// emailConstraint is the unique constraint on users.email.
const emailConstraint = "users_email_key"

type Repo = repogen.Repo[User, Filter]

type Filter struct {
	ID    int64
	Email string
}

func NewRepo(idb bun.IDB) Repo {
	return repogen.NewPgRepoBuilder[User, Filter](idb).
		WithNotFoundCode(CodeUserNotFound).
		WithConflictCode(emailConstraint, CodeEmailAlreadyExists).
		WithFilterFunc(func(q *bun.SelectQuery, f Filter) *bun.SelectQuery {
			if f.ID != 0 {
				q = q.Where("u.id = ?", f.ID)
			}
			if f.Email != "" {
				q = q.Where("u.email = ?", f.Email)
			}
			return q
		}).
		Build()
}
