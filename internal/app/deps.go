package app

import (
	"context"

	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"
	"github.com/uptrace/bun"

	"github.com/rise-and-shine/filesmanager/filestore"
	"github.com/rise-and-shine/filesmanager/filestore/localfs"
	"github.com/rise-and-shine/filesmanager/filestore/miniowr"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
	"github.com/rise-and-shine/filesmanager/taskmill/kafkabroker"
	"github.com/rise-and-shine/filesmanager/taskmill/pgbroker"
	"github.com/rise-and-shine/filesmanager/taskmill/wmbroker"
)

func newBlobStore(ctx context.Context, cfg BlobConfig) (filestore.FileStore, error) {
	switch cfg.Driver {
	case BlobMinio:
		store, err := miniowr.New(ctx, *cfg.Minio)
		return store, errx.Wrap(err)
	default:
		store, err := localfs.New(cfg.Local)
		return store, errx.Wrap(err)
	}
}

func newBroker(ctx context.Context, cfg Config, db *bun.DB, registry metrics.Registry) (taskmill.Broker, error) {
	switch cfg.Queue.Driver {
	case QueueKafka:
		b, err := kafkabroker.New(*cfg.Queue.Kafka, cfg.Service.Name, kafkabroker.WithMetricsRegistry(registry))
		return b, errx.Wrap(err)

	case QueueWatermillSQL:
		sqlCfg := cfg.Queue.WatermillSQL
		if sqlCfg.ConsumerGroup == "" {
			sqlCfg.ConsumerGroup = cfg.Service.Name
		}
		b, err := wmbroker.NewSQL(db.DB, sqlCfg)
		return b, errx.Wrap(err)

	case QueueMemory:
		if len(cfg.Roles) < 3 {
			logger.Named("app").Warn("memory queue only reaches components of this process")
		}
		return wmbroker.NewMemory(), nil

	default:
		pgCfg := cfg.Queue.Postgres
		b, err := pgbroker.New(db,
			pgbroker.WithSchema(pgCfg.Schema),
			pgbroker.WithVisibilityTimeout(pgCfg.VisibilityTimeout),
			pgbroker.WithRetryStrategy(taskmill.RetryStrategyByName(pgCfg.RetryStrategy, pgCfg.FixedDelay)),
		)
		if err != nil {
			return nil, errx.Wrap(err)
		}
		return b, errx.Wrap(b.Migrate(ctx))
	}
}
