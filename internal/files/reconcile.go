package files

import (
	"context"
	"sync"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/filestore"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
	"github.com/rise-and-shine/filesmanager/thumbnail"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

// OpReconcileThumbnails is the operation id of the reconciliation job.
const OpReconcileThumbnails = "reconcile-thumbnails"

const (
	defaultReconcileBatch = 200
	// uploads younger than this still have their own job in flight
	reconcileGracePeriod = 5 * time.Minute
)

// ReconcileThumbnails re-enqueues thumbnail jobs of images missing any
// thumbnail size: lost enqueues, dead-lettered jobs and failed sizes.
// Every run scans one batch of images and continues from there on the next
// run, wrapping around at the end of the table.
type ReconcileThumbnails struct {
	repo      Repo
	blob      filestore.FileStore
	enqueuer  taskmill.Enqueuer
	batchSize int
	now       func() time.Time

	mu     sync.Mutex
	cursor int64
}

var _ ucdef.ScheduledJob = (*ReconcileThumbnails)(nil)

func NewReconcileThumbnails(
	repo Repo,
	blob filestore.FileStore,
	enqueuer taskmill.Enqueuer,
	batchSize int,
) *ReconcileThumbnails {
	if batchSize <= 0 {
		batchSize = defaultReconcileBatch
	}
	return &ReconcileThumbnails{
		repo:      repo,
		blob:      blob,
		enqueuer:  enqueuer,
		batchSize: batchSize,
		now:       time.Now,
	}
}

func (uc *ReconcileThumbnails) OperationID() string { return OpReconcileThumbnails }

func (uc *ReconcileThumbnails) Execute(ctx context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	images, err := uc.repo.List(ctx, Filter{
		Type:          TypeImage,
		HasContent:    true,
		AfterID:       uc.cursor,
		CreatedBefore: uc.now().Add(-reconcileGracePeriod),
		Limit:         uc.batchSize,
	})
	if err != nil {
		return errx.Wrap(err)
	}

	if len(images) < uc.batchSize {
		uc.cursor = 0
	} else {
		uc.cursor = images[len(images)-1].ID
	}

	log := logger.Named("files.reconcile").WithContext(ctx)

	var requeued int
	for _, rec := range images {
		complete, err := uc.hasAllSizes(ctx, *rec.LocalPath)
		if err != nil {
			return errx.Wrap(err)
		}
		if complete {
			continue
		}

		err = uc.enqueuer.Enqueue(ctx, OpGenerateThumbnails,
			ThumbnailJob{FileID: rec.ID, OwnerID: rec.OwnerID},
			taskmill.WithIdempotencyKey(thumbnailJobKey(rec.ID)),
		)
		switch {
		case err == nil:
			requeued++
		case errx.IsCodeIn(err, taskmill.CodeDuplicateTask):
			// a job for this file is still pending
		default:
			return errx.Wrap(err)
		}
	}

	log.With("scanned", len(images), "requeued", requeued).Debug("thumbnail reconciliation done")
	return nil
}

func (uc *ReconcileThumbnails) hasAllSizes(ctx context.Context, localPath string) (bool, error) {
	for _, size := range thumbnail.Sizes {
		exists, err := uc.blob.Exists(ctx, DerivedPath(localPath, size))
		if err != nil || !exists {
			return false, err
		}
	}
	return true, nil
}
