package repogen

import (
	"context"
	"fmt"
	"slices"

	"github.com/code19m/errx"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/pg"
)

// PgRepo implements Repo on top of bun.
type PgRepo[E any, F any] struct {
	*PgReadOnlyRepo[E, F]

	// conflictCodes maps constraint names to error codes,
	// e.g. "users_email_key" -> "EMAIL_ALREADY_EXISTS".
	conflictCodes map[string]string
}

// PgRepoBuilder builds a PgRepo with defaults for every optional setting.
type PgRepoBuilder[E any, F any] struct {
	repo PgRepo[E, F]
}

// NewPgRepoBuilder starts a builder using the public schema, the OBJECT_NOT_FOUND
// code and a filter function that adds nothing.
func NewPgRepoBuilder[E any, F any](idb bun.IDB) *PgRepoBuilder[E, F] {
	return &PgRepoBuilder[E, F]{repo: PgRepo[E, F]{
		PgReadOnlyRepo: &PgReadOnlyRepo[E, F]{
			idb:          idb,
			entityName:   nameOf(new(E)),
			schemaName:   "public",
			notFoundCode: "OBJECT_NOT_FOUND",
			filterFunc:   func(q *bun.SelectQuery, _ F) *bun.SelectQuery { return q },
		},
		conflictCodes: map[string]string{},
	}}
}

func (b *PgRepoBuilder[E, F]) WithSchemaName(name string) *PgRepoBuilder[E, F] {
	b.repo.schemaName = name
	return b
}

func (b *PgRepoBuilder[E, F]) WithNotFoundCode(code string) *PgRepoBuilder[E, F] {
	b.repo.notFoundCode = code
	return b
}

func (b *PgRepoBuilder[E, F]) WithFilterFunc(fn FilterFunc[F]) *PgRepoBuilder[E, F] {
	b.repo.filterFunc = fn
	return b
}

// WithConflictCode maps a unique constraint to a T_Conflict error code.
func (b *PgRepoBuilder[E, F]) WithConflictCode(constraint, code string) *PgRepoBuilder[E, F] {
	b.repo.conflictCodes[constraint] = code
	return b
}

func (b *PgRepoBuilder[E, F]) Build() *PgRepo[E, F] {
	repo := b.repo
	return &repo
}

func (r *PgRepo[E, F]) Create(ctx context.Context, entity *E) (*E, error) {
	q := r.idb.NewInsert().Model(entity).Returning("*")
	table := q.GetModel().(bun.TableModel).Table() //nolint:errcheck // models are always table models
	q = q.ModelTableExpr("?.? AS ?", bun.Ident(r.schemaName), bun.Ident(table.Name), bun.Ident(table.Alias))

	_, err := q.Exec(ctx)
	if err != nil {
		return nil, r.writeError("creating", err, q)
	}
	return entity, nil
}

func (r *PgRepo[E, F]) Update(ctx context.Context, entity *E, columns ...string) (*E, error) {
	q := r.idb.NewUpdate().Model(entity).WherePK().Returning("*")
	if len(columns) > 0 {
		q = q.Column(append(slices.Clone(columns), "updated_at")...)
	}
	table := q.GetModel().(bun.TableModel).Table() //nolint:errcheck // models are always table models
	q = q.ModelTableExpr("?.? AS ?", bun.Ident(r.schemaName), bun.Ident(table.Name), bun.Ident(table.Alias))

	result, err := q.Exec(ctx)
	if err != nil {
		return nil, r.writeError("updating", err, q)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}
	if rows == 0 {
		return nil, errx.New(
			fmt.Sprintf("no %s found to update", r.entityName),
			errx.WithCode(r.notFoundCode),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(pg.GetPgErrorDetails(nil, q)),
		)
	}
	return entity, nil
}

func (r *PgRepo[E, F]) Delete(ctx context.Context, entity *E) error {
	q := r.idb.NewDelete().Model(entity).WherePK()
	table := q.GetModel().(bun.TableModel).Table() //nolint:errcheck // models are always table models
	q = q.ModelTableExpr("?.? AS ?", bun.Ident(r.schemaName), bun.Ident(table.Name), bun.Ident(table.Alias))

	result, err := q.Exec(ctx)
	if err != nil {
		return errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
	}
	if rows == 0 {
		return errx.New(
			fmt.Sprintf("no %s found to delete", r.entityName),
			errx.WithCode(codeIncorrectRowsAffection),
			errx.WithDetails(pg.GetPgErrorDetails(nil, q)),
		)
	}
	return nil
}

func (r *PgRepo[E, F]) writeError(action string, err error, q fmt.Stringer) error {
	if code, ok := r.conflictCodes[pg.ConstraintName(err)]; ok && pg.IsConflict(err) {
		return errx.New(
			fmt.Sprintf("conflict while %s %s", action, r.entityName),
			errx.WithCode(code),
			errx.WithType(errx.T_Conflict),
			errx.WithDetails(pg.GetPgErrorDetails(err, q)),
		)
	}
	return errx.Wrap(err, errx.WithDetails(pg.GetPgErrorDetails(err, q)))
}
