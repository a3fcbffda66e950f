package files

import (
	"bytes"
	"context"
	"image"
	"time"

	"github.com/code19m/errx"
	"github.com/disintegration/imaging"
	"github.com/samber/lo"

	"github.com/rise-and-shine/filesmanager/filestore"
	"github.com/rise-and-shine/filesmanager/observability/logger"
	"github.com/rise-and-shine/filesmanager/taskmill"
	"github.com/rise-and-shine/filesmanager/thumbnail"
	"github.com/rise-and-shine/filesmanager/ucdef"
)

// OpGenerateThumbnails is the operation id of GenerateThumbnails on the queue.
const OpGenerateThumbnails = "generate-thumbnails"

const defaultSizeTimeout = 10 * time.Second

// SizeResult is the outcome of one thumbnail size. Err is nil on success.
type SizeResult struct {
	Size int
	Path string
	Err  error
}

// GenerateThumbnails renders every size in thumbnail.Sizes, largest first,
// next to the original blob. Sizes fail independently and a job with failed
// sizes still succeeds. Bad payloads and missing records fail permanently.
type GenerateThumbnails struct {
	repo        Repo
	blob        filestore.FileStore
	sizeTimeout time.Duration
}

var _ ucdef.AsyncTask[*ThumbnailJob] = (*GenerateThumbnails)(nil)

// NewGenerateThumbnails bounds each size by sizeTimeout, 10s when zero.
func NewGenerateThumbnails(repo Repo, blob filestore.FileStore, sizeTimeout time.Duration) *GenerateThumbnails {
	if sizeTimeout <= 0 {
		sizeTimeout = defaultSizeTimeout
	}
	return &GenerateThumbnails{repo: repo, blob: blob, sizeTimeout: sizeTimeout}
}

func (uc *GenerateThumbnails) OperationID() string { return OpGenerateThumbnails }

func (uc *GenerateThumbnails) Execute(ctx context.Context, job *ThumbnailJob) error {
	_, err := uc.Generate(ctx, job)
	return err
}

// Generate processes job and reports the outcome of every size.
func (uc *GenerateThumbnails) Generate(ctx context.Context, job *ThumbnailJob) ([]SizeResult, error) {
	if job == nil || job.FileID == 0 || job.OwnerID == 0 {
		return nil, taskmill.Permanent(errx.New("thumbnail job needs file_id and owner_id",
			errx.WithCode(CodeInvalidJob),
			errx.WithType(errx.T_Validation),
		))
	}

	rec, err := uc.repo.FirstOrNil(ctx, Filter{ID: job.FileID, OwnerID: job.OwnerID})
	if err != nil {
		return nil, errx.Wrap(err)
	}
	if rec == nil || rec.LocalPath == nil {
		return nil, taskmill.Permanent(errFileNotFound(job.FileID))
	}

	log := logger.Named("files.thumbnails").WithContext(ctx).With("file_id", rec.ID)

	results := uc.render(ctx, *rec.LocalPath)

	failed := lo.Filter(results, func(r SizeResult, _ int) bool { return r.Err != nil })
	if len(failed) > 0 {
		log.With(
			"failed_sizes", lo.Map(failed, func(r SizeResult, _ int) int { return r.Size }),
			"first_error", failed[0].Err.Error(),
		).Warnf("%d of %d thumbnails failed", len(failed), len(results))
	} else {
		log.Debug("thumbnails generated")
	}
	return results, nil
}

func (uc *GenerateThumbnails) render(ctx context.Context, localPath string) []SizeResult {
	results := lo.Map(thumbnail.Sizes, func(size int, _ int) SizeResult {
		return SizeResult{Size: size, Path: DerivedPath(localPath, size)}
	})

	src, format, err := uc.loadOriginal(ctx, localPath)
	if err != nil {
		for i := range results {
			results[i].Err = err
		}
		return results
	}

	for i := range results {
		results[i].Err = uc.renderSize(ctx, src, format, results[i])
	}
	return results
}

func (uc *GenerateThumbnails) loadOriginal(ctx context.Context, localPath string) (image.Image, imaging.Format, error) {
	file, err := uc.blob.Get(ctx, localPath)
	if err != nil {
		return nil, imaging.PNG, errx.Wrap(err)
	}
	defer file.Content.Close()

	return thumbnail.Decode(file.Content)
}

// renderSize runs one size under its own deadline. On timeout the encoder
// goroutine finishes in the background and its result is dropped.
func (uc *GenerateThumbnails) renderSize(ctx context.Context, src image.Image, format imaging.Format, r SizeResult) error {
	ctx, cancel := context.WithTimeout(ctx, uc.sizeTimeout)
	defer cancel()

	type encoded struct {
		data []byte
		err  error
	}
	done := make(chan encoded, 1)
	go func() {
		data, err := thumbnail.Generate(src, format, r.Size)
		done <- encoded{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return errx.Wrap(ctx.Err(),
			errx.WithCode(CodeThumbnailTimeout),
			errx.WithDetails(errx.D{"size": r.Size, "timeout": uc.sizeTimeout.String()}),
		)
	case out := <-done:
		if out.err != nil {
			return out.err
		}
		_, err := uc.blob.Upload(ctx, r.Path, bytes.NewReader(out.data))
		return errx.Wrap(err)
	}
}
