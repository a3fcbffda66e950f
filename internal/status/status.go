// Package status reports service health and usage counters.
package status

import (
	"context"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/internal/files"
	"github.com/rise-and-shine/filesmanager/internal/users"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

const (
	OpGetStatus = "get-status"
	OpGetStats  = "get-stats"
)

// Pinger checks one dependency.
type Pinger func(ctx context.Context) error

type StatusOutput struct {
	DB    bool `json:"db"`
	Redis bool `json:"redis"`
}

type GetStatus = ucdef.UserAction[*struct{}, *StatusOutput]

type getStatus struct {
	db, redis Pinger
}

// NewGetStatus reports whether postgres and redis answer. Failures are logged,
// never returned.
func NewGetStatus(db, redis Pinger) GetStatus {
	return &getStatus{db: db, redis: redis}
}

func (uc *getStatus) OperationID() string { return OpGetStatus }

func (uc *getStatus) Execute(ctx context.Context, _ *struct{}) (*StatusOutput, error) {
	return &StatusOutput{
		DB:    alive(ctx, "db", uc.db),
		Redis: alive(ctx, "redis", uc.redis),
	}, nil
}

func alive(ctx context.Context, name string, ping Pinger) bool {
	if ping == nil {
		return false
	}
	if err := ping(ctx); err != nil {
		logger.Named("status").WithContext(ctx).With("dependency", name).Warnx(err)
		return false
	}
	return true
}

type StatsOutput struct {
	Users  int                   `json:"users"`
	Files  int                   `json:"files"`
	Queue  *taskmill.QueueStats  `json:"queue"`
	Worker *taskmill.WorkerStats `json:"worker"`
}

type GetStats = ucdef.UserAction[*struct{}, *StatsOutput]

type getStats struct {
	users  users.Repo
	files  files.Repo
	queue  taskmill.StatsProvider
	name   string
	worker taskmill.Worker
}

// NewGetStats counts users and files. queue and worker may be nil when the
// broker cannot report depth or the worker role runs elsewhere.
func NewGetStats(
	usersRepo users.Repo,
	filesRepo files.Repo,
	queue taskmill.StatsProvider,
	queueName string,
	worker taskmill.Worker,
) GetStats {
	return &getStats{users: usersRepo, files: filesRepo, queue: queue, name: queueName, worker: worker}
}

func (uc *getStats) OperationID() string { return OpGetStats }

func (uc *getStats) Execute(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	nUsers, err := uc.users.Count(ctx, users.Filter{})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	nFiles, err := uc.files.Count(ctx, files.Filter{})
	if err != nil {
		return nil, errx.Wrap(err)
	}

	out := &StatsOutput{Users: nUsers, Files: nFiles}

	if uc.queue != nil {
		qs, err := uc.queue.Stats(ctx, uc.name)
		if err != nil {
			return nil, errx.Wrap(err)
		}
		out.Queue = &qs
	}
	if uc.worker != nil {
		ws := uc.worker.Stats()
		out.Worker = &ws
	}
	return out, nil
}
