// Package pg opens PostgreSQL connections through pgx and exposes them as bun databases.
//
// It also classifies PostgreSQL errors, applies embedded schema migrations and
// provides a timestamped base model.
package pg

import (
	"github.com/code19m/errx"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/extra/bunotel"

	"github.com/rise-and-shine/filesmanager/pg/hooks"
)

// NewBunDB creates a pgx pool and wraps it in a bun.DB with tracing and
// the query logging hook selected by cfg.DebugMode.
func NewBunDB(cfg Config) (*bun.DB, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	db := bun.NewDB(stdlib.OpenDBFromPool(pool), pgdialect.New())

	switch cfg.DebugMode {
	case DebugLogger:
		db.AddQueryHook(hooks.NewDebugHook(hooks.WithVerbose(true)))
	case DebugStdout:
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	default:
		// failures and slow queries are still worth a log line
		db.AddQueryHook(hooks.NewDebugHook(hooks.WithVerbose(false)))
	}
	db.AddQueryHook(bunotel.NewQueryHook(bunotel.WithDBName(cfg.Database)))

	return db, nil
}
