package pg_test

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/rise-and-shine/filesmanager/pg"
)

type panicQuery struct{}

func (panicQuery) String() string { panic("query not built") }

type staticQuery string

func (q staticQuery) String() string { return string(q) }

func TestErrorClassification(t *testing.T) {
	conflict := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	fk := &pgconn.PgError{Code: "23503", ConstraintName: "files_parent_id_fkey"}

	tests := []struct {
		name           string
		err            error
		wantConflict   bool
		wantFK         bool
		wantNotFound   bool
		wantConstraint string
	}{
		{name: "unique violation", err: conflict, wantConflict: true, wantConstraint: "users_email_key"},
		{name: "wrapped unique violation", err: fmt.Errorf("insert: %w", conflict), wantConflict: true, wantConstraint: "users_email_key"},
		{name: "errx wrapped fk violation", err: errx.Wrap(fk), wantFK: true, wantConstraint: "files_parent_id_fkey"},
		{name: "no rows", err: sql.ErrNoRows, wantNotFound: true},
		{name: "nil", err: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantConflict, pg.IsConflict(tc.err))
			assert.Equal(t, tc.wantFK, pg.IsForeignKeyViolation(tc.err))
			assert.Equal(t, tc.wantNotFound, pg.IsNotFound(tc.err))
			assert.Equal(t, tc.wantConstraint, pg.ConstraintName(tc.err))
		})
	}
}

func TestGetPgErrorDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", Message: "duplicate key", TableName: "users"}

	details := pg.GetPgErrorDetails(pgErr, staticQuery(`SELECT "u"."id" FROM "users"`))
	assert.Equal(t, "SELECT u.id FROM users", details["query"])
	assert.Equal(t, "23505", details["pg.code"])
	assert.Equal(t, "users", details["pg.table"])

	details = pg.GetPgErrorDetails(assert.AnError, panicQuery{})
	assert.Empty(t, details)

	details = pg.GetPgErrorDetails(assert.AnError, nil)
	assert.Empty(t, details)
}
