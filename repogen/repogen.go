// Package repogen provides generic bun-backed repositories driven by a filter type.
//
// A repository is parameterized by its entity E and a filter struct F. The
// filter function translates F into WHERE, ORDER BY, LIMIT and OFFSET clauses,
// so every read method shares one query shape.
package repogen

import "context"

// ReadOnlyRepo retrieves entities of type E selected by filters of type F.
type ReadOnlyRepo[E any, F any] interface {
	// Get returns exactly one entity, failing with the configured not-found code
	// when nothing matches and with MULTIPLE_ROWS_FOUND when more than one does.
	Get(ctx context.Context, filters F) (*E, error)
	List(ctx context.Context, filters F) ([]E, error)
	Count(ctx context.Context, filters F) (int, error)
	// ListWithCount returns one page and the total count ignoring LIMIT and OFFSET.
	ListWithCount(ctx context.Context, filters F) ([]E, int, error)
	// FirstOrNil returns the first match or nil.
	FirstOrNil(ctx context.Context, filters F) (*E, error)
	Exists(ctx context.Context, filters F) (bool, error)
}

// Repo adds writes to ReadOnlyRepo.
type Repo[E any, F any] interface {
	ReadOnlyRepo[E, F]
	// Create inserts entity and fills database generated columns.
	Create(ctx context.Context, entity *E) (*E, error)
	// Update writes the given columns of entity, or all columns when none are given.
	Update(ctx context.Context, entity *E, columns ...string) (*E, error)
	Delete(ctx context.Context, entity *E) error
}
