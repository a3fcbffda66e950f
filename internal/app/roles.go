package app

import (
	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/internal/files"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

func (a *App) newWorker() taskmill.Worker {
	cfg := a.cfg.Worker

	w := taskmill.NewWorker(a.broker, a.cfg.Queue.Name,
		taskmill.WithConcurrency(cfg.Concurrency),
		taskmill.WithPollInterval(cfg.PollInterval),
		taskmill.WithBatchSize(cfg.BatchSize),
		taskmill.WithProcessTimeout(cfg.ProcessTimeout),
		taskmill.WithMetricsRegistry(a.metrics),
	)

	taskmill.ForwardToAsyncTask(w, files.NewGenerateThumbnails(a.filesRepo, a.blob, a.cfg.Thumbnail.SizeTimeout))
	taskmill.ForwardToScheduledJob(w, files.NewReconcileThumbnails(
		a.filesRepo, a.blob, a.enqueuer, a.cfg.Scheduler.ReconcileBatch,
	))
	return w
}

func (a *App) newScheduler() (taskmill.Scheduler, error) {
	s := taskmill.NewScheduler(a.enqueuer, taskmill.WithCheckInterval(a.cfg.Scheduler.CheckInterval))
	if a.cfg.Scheduler.ReconcileCron == "" {
		return s, nil
	}

	err := s.RegisterSchedules(taskmill.Schedule{
		CronPattern: a.cfg.Scheduler.ReconcileCron,
		OperationID: files.OpReconcileThumbnails,
		// a missed run is covered by the next one
		EnqueueOptions: []taskmill.EnqueueOption{taskmill.WithMaxAttempts(1)},
	})
	return s, errx.Wrap(err)
}
