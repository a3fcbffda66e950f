package pg

import (
	"errors"
	"io/fs"

	"github.com/code19m/errx"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5" // registers the pgx5 driver
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/rise-and-shine/filesmanager/observability/logger"
)

// Migrate applies the *.up.sql migrations found in dir of fsys and returns the
// resulting schema version. migrationsTable keeps independent migration sets apart.
func Migrate(cfg Config, fsys fs.FS, dir, migrationsTable string) (uint, error) {
	source, err := iofs.New(fsys, dir)
	if err != nil {
		return 0, errx.Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.migrateURL(migrationsTable))
	if err != nil {
		return 0, errx.Wrap(err)
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Named("pg.migrate").Warnf("close migrator: source=%v db=%v", srcErr, dbErr)
		}
	}()

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, errx.Wrap(err, errx.WithDetails(errx.D{"migrations_table": migrationsTable}))
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, errx.Wrap(err)
	}
	if dirty {
		return version, errx.New(
			"database schema is dirty, fix the failed migration manually",
			errx.WithDetails(errx.D{"version": version, "migrations_table": migrationsTable}),
		)
	}

	logger.Named("pg.migrate").With("version", version, "migrations_table", migrationsTable).Info("schema is up to date")
	return version, nil
}
