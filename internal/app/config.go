package app

import (
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/filestore/localfs"
	"github.com/rise-and-shine/filesmanager/filestore/miniowr"
	"github.com/rise-and-shine/filesmanager/http/server"
	"github.com/rise-and-shine/filesmanager/observability/alert"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/observability/tracing"
	"github.com/rise-and-shine/filesmanager/pg"
	"github.com/rise-and-shine/filesmanager/rediswr"
	"github.com/rise-and-shine/filesmanager/taskmill/kafkabroker"
	"github.com/rise-and-shine/filesmanager/taskmill/wmbroker"
)

// Process roles.
const (
	RoleAPI       = "api"
	RoleWorker    = "worker"
	RoleScheduler = "scheduler"
)

// Blob drivers.
const (
	BlobLocal = "local"
	BlobMinio = "minio"
)

// Queue drivers.
const (
	QueuePostgres     = "postgres"
	QueueKafka        = "kafka"
	QueueWatermillSQL = "watermill-sql"
	QueueMemory       = "memory"
)

type Config struct {
	Service ServiceConfig `yaml:"service"`

	Logger  logger.Config  `yaml:"logger"`
	Tracing tracing.Config `yaml:"tracing"`
	Alert   alert.Config   `yaml:"alert"`

	HTTP     server.Config  `yaml:"http"`
	Postgres pg.Config      `yaml:"postgres"`
	Redis    rediswr.Config `yaml:"redis"`

	Blob      BlobConfig      `yaml:"blob"`
	Queue     QueueConfig     `yaml:"queue"`
	Worker    WorkerConfig    `yaml:"worker"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Thumbnail ThumbnailConfig `yaml:"thumbnail"`
	Auth      AuthConfig      `yaml:"auth"`

	// Roles selects the components run by this process.
	Roles []string `yaml:"roles" validate:"required,min=1,dive,oneof=api worker scheduler"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
}

type ServiceConfig struct {
	Name    string `yaml:"name"    default:"filesmanager"`
	Version string `yaml:"version" default:"dev"`
}

type BlobConfig struct {
	Driver string          `yaml:"driver" validate:"oneof=local minio" default:"local"`
	Local  localfs.Config  `yaml:"local"`
	Minio  *miniowr.Config `yaml:"minio"  validate:"required_if=Driver minio"`
}

type QueueConfig struct {
	Driver string `yaml:"driver" validate:"oneof=postgres kafka watermill-sql memory" default:"postgres"`
	Name   string `yaml:"name"   default:"files"`

	PublishAttempts uint          `yaml:"publish_attempts" default:"3"`
	PublishDelay    time.Duration `yaml:"publish_delay"    default:"100ms"`

	Postgres     PostgresQueueConfig `yaml:"postgres"`
	Kafka        *kafkabroker.Config `yaml:"kafka"         validate:"required_if=Driver kafka"`
	WatermillSQL wmbroker.SQLConfig  `yaml:"watermill_sql"`
}

type PostgresQueueConfig struct {
	Schema            string        `yaml:"schema"             default:"taskmill"`
	// VisibilityTimeout is how long a fetched batch stays claimed. It must cover
	// worker.batch_size runs of worker.process_timeout.
	VisibilityTimeout time.Duration `yaml:"visibility_timeout" default:"5m"`
	// RetryStrategy is one of exponential, fixed, none.
	RetryStrategy string        `yaml:"retry_strategy" validate:"oneof=exponential fixed none" default:"exponential"`
	FixedDelay    time.Duration `yaml:"fixed_delay"    default:"10s"`
}

type WorkerConfig struct {
	Concurrency    int           `yaml:"concurrency"     validate:"min=1" default:"4"`
	PollInterval   time.Duration `yaml:"poll_interval"   default:"1s"`
	BatchSize      int           `yaml:"batch_size"      validate:"min=1" default:"1"`
	ProcessTimeout time.Duration `yaml:"process_timeout" default:"2m"`
}

type SchedulerConfig struct {
	CheckInterval time.Duration `yaml:"check_interval" default:"5s"`
	// ReconcileCron is the cron pattern of the thumbnail reconciliation. Empty disables it.
	ReconcileCron  string `yaml:"reconcile_cron"  default:"*/10 * * * *"`
	ReconcileBatch int    `yaml:"reconcile_batch" default:"200"`
}

type ThumbnailConfig struct {
	SizeTimeout time.Duration `yaml:"size_timeout" default:"10s"`
}

type AuthConfig struct {
	SessionTTL time.Duration `yaml:"session_ttl" default:"24h"`
	CacheSize  int           `yaml:"cache_size"  default:"10000"`
	CacheTTL   time.Duration `yaml:"cache_ttl"   default:"30s"`
}

// CodeInvalidConfig is returned by Config.Validate.
const CodeInvalidConfig = "INVALID_CONFIG"

// Validate checks constraints between sections. On the postgres queue a
// fetched batch must finish before its claim expires, otherwise another
// worker fetches the same tasks while they are still running.
func (c Config) Validate() error {
	if c.Queue.Driver != QueuePostgres {
		return nil
	}

	batchTime := time.Duration(c.Worker.BatchSize) * c.Worker.ProcessTimeout
	if batchTime >= c.Queue.Postgres.VisibilityTimeout {
		return errx.New(
			"queue.postgres.visibility_timeout must exceed worker.batch_size * worker.process_timeout",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{
				"visibility_timeout": c.Queue.Postgres.VisibilityTimeout.String(),
				"batch_size":         c.Worker.BatchSize,
				"process_timeout":    c.Worker.ProcessTimeout.String(),
			}),
		)
	}
	return nil
}
