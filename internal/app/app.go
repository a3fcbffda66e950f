// Package app assembles the service from configuration and runs the
// components of the configured roles.
package app

import (
	"context"
	"errors"
	"slices"

	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/filestore"
	"github.com/rise-and-shine/filesmanager/http/server"
	"github.com/rise-and-shine/filesmanager/internal/auth"
	"github.com/rise-and-shine/filesmanager/internal/files"
	"github.com/rise-and-shine/filesmanager/internal/users"
	"github.com/rise-and-shine/filesmanager/migrations"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/pg"
	"github.com/rise-and-shine/filesmanager/rediswr"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

// App owns the infrastructure clients and the role components built on them.
type App struct {
	cfg     Config
	log     logger.Logger
	metrics metrics.Registry

	db       *bun.DB
	redis    redis.UniversalClient
	blob     filestore.FileStore
	broker   taskmill.Broker
	enqueuer taskmill.Enqueuer

	filesRepo files.Repo
	usersRepo users.Repo
	sessions  auth.SessionStore

	httpServer *server.HTTPServer
	worker     taskmill.Worker
	scheduler  taskmill.Scheduler
}

// New connects to every dependency, migrates the schema and builds the
// components of the configured roles. On error the already opened clients are closed.
func New(ctx context.Context, cfg Config) (_ *App, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		log:     logger.Named("app"),
		metrics: metrics.NewRegistry(),
	}
	defer func() {
		if err != nil {
			a.closeClients()
		}
	}()

	if err = a.initPostgres(ctx); err != nil {
		return nil, err
	}
	if err = a.initRedis(ctx); err != nil {
		return nil, err
	}
	if a.blob, err = newBlobStore(ctx, cfg.Blob); err != nil {
		return nil, err
	}
	if a.broker, err = newBroker(ctx, cfg, a.db, a.metrics); err != nil {
		return nil, err
	}

	a.enqueuer = taskmill.NewEnqueuer(a.broker, cfg.Queue.Name,
		taskmill.WithPublishRetry(cfg.Queue.PublishAttempts, cfg.Queue.PublishDelay))
	a.filesRepo = files.NewRepo(a.db)
	a.usersRepo = users.NewRepo(a.db)
	a.sessions = auth.NewCachedStore(auth.NewRedisStore(a.redis), cfg.Auth.CacheSize, cfg.Auth.CacheTTL)

	if a.hasRole(RoleWorker) {
		a.worker = a.newWorker()
	}
	if a.hasRole(RoleScheduler) {
		if a.scheduler, err = a.newScheduler(); err != nil {
			return nil, err
		}
	}
	if a.hasRole(RoleAPI) {
		a.httpServer = a.newHTTPServer()
	}

	a.log.With("roles", cfg.Roles, "queue_driver", cfg.Queue.Driver, "blob_driver", cfg.Blob.Driver).
		Info("application assembled")
	return a, nil
}

func (a *App) hasRole(role string) bool {
	return slices.Contains(a.cfg.Roles, role)
}

func (a *App) initPostgres(ctx context.Context) error {
	if _, err := pg.Migrate(a.cfg.Postgres, migrations.FS, ".", migrations.Table); err != nil {
		return errx.Wrap(err)
	}

	db, err := pg.NewBunDB(a.cfg.Postgres)
	if err != nil {
		return errx.Wrap(err)
	}
	a.db = db

	return errx.Wrap(db.PingContext(ctx))
}

func (a *App) initRedis(ctx context.Context) error {
	a.redis = rediswr.New(a.cfg.Redis)
	return errx.Wrap(rediswr.Ping(ctx, a.redis))
}

// Start runs the role components in the background. A component that fails
// to start terminates the process.
func (a *App) Start(ctx context.Context) {
	if a.worker != nil {
		go a.run("worker", func() error { return a.worker.Start(ctx) })
	}
	if a.scheduler != nil {
		go a.run("scheduler", func() error { return a.scheduler.Start(ctx) })
	}
	if a.httpServer != nil {
		a.log.With("address", a.cfg.HTTP.Address()).Info("http server listening")
		go a.run("http server", a.httpServer.Start)
	}
}

func (a *App) run(component string, start func() error) {
	if err := start(); err != nil {
		a.log.With("component", component).Fatalx(err)
	}
}

// Shutdown stops accepting work, lets running work finish and closes the clients.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error

	if a.httpServer != nil {
		errs = append(errs, errx.Wrap(a.httpServer.Stop(ctx)))
	}
	if a.scheduler != nil {
		errs = append(errs, errx.Wrap(a.scheduler.Stop()))
	}
	if a.worker != nil {
		errs = append(errs, errx.Wrap(a.worker.Stop()))
	}
	errs = append(errs, a.closeClients())

	return errors.Join(errs...)
}

func (a *App) closeClients() error {
	var errs []error
	if a.broker != nil {
		errs = append(errs, errx.Wrap(a.broker.Close()))
	}
	if a.redis != nil {
		errs = append(errs, errx.Wrap(a.redis.Close()))
	}
	if a.db != nil {
		errs = append(errs, errx.Wrap(a.db.Close()))
	}
	return errors.Join(errs...)
}
