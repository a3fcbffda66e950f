package files_test

import (
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/filestore"
	"github.com/rise-and-shine/filesmanager/filestore/localfs"
	"github.com/rise-and-shine/filesmanager/internal/files"
	"github.com/rise-and-shine/filesmanager/meta"
	"github.com/rise-and-shine/filesmanager/sorter"
	"github.com/rise-and-shine/filesmanager/taskmill"
)

const (
	ownerID = 7
	otherID = 8
)

func asUser(ctx context.Context, id string) context.Context {
	return meta.InjectMetaToContext(ctx, map[meta.ContextKey]string{meta.RequestUserID: id})
}

// fakeRepo keeps records in memory and applies the same filter semantics as the bun repo.
type fakeRepo struct {
	mu        sync.Mutex
	records   []files.FileRecord
	nextID    int64
	updateErr error
}

var _ files.Repo = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo { return &fakeRepo{nextID: 1} }

func (r *fakeRepo) match(f files.Filter) []files.FileRecord {
	var out []files.FileRecord
	for _, rec := range r.records {
		switch {
		case f.ID != 0 && rec.ID != f.ID,
			f.OwnerID != 0 && rec.OwnerID != f.OwnerID,
			f.ParentID != nil && rec.ParentID != *f.ParentID,
			f.Type != "" && rec.Type != f.Type,
			f.HasContent && rec.LocalPath == nil,
			f.AfterID != 0 && rec.ID <= f.AfterID,
			!f.CreatedBefore.IsZero() && !rec.CreatedAt.Before(f.CreatedBefore):
			continue
		}
		out = append(out, rec)
	}
	return out
}

func (r *fakeRepo) page(all []files.FileRecord, f files.Filter) []files.FileRecord {
	for _, o := range slices.Backward(f.Sort) {
		if o.Field != "name" {
			continue
		}
		slices.SortStableFunc(all, func(a, b files.FileRecord) int {
			if o.Direction == sorter.Desc {
				return strings.Compare(b.Name, a.Name)
			}
			return strings.Compare(a.Name, b.Name)
		})
	}
	if f.Offset > 0 {
		all = all[min(f.Offset, len(all)):]
	}
	if f.Limit > 0 {
		all = all[:min(f.Limit, len(all))]
	}
	return all
}

func (r *fakeRepo) Get(ctx context.Context, f files.Filter) (*files.FileRecord, error) {
	rec, _ := r.FirstOrNil(ctx, f)
	if rec == nil {
		return nil, errx.New("no FileRecord found", errx.WithCode(files.CodeFileNotFound), errx.WithType(errx.T_NotFound))
	}
	return rec, nil
}

func (r *fakeRepo) List(_ context.Context, f files.Filter) ([]files.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page(r.match(f), f), nil
}

func (r *fakeRepo) Count(_ context.Context, f files.Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.match(f)), nil
}

func (r *fakeRepo) ListWithCount(_ context.Context, f files.Filter) ([]files.FileRecord, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.match(f)
	return r.page(all, f), len(all), nil
}

func (r *fakeRepo) FirstOrNil(_ context.Context, f files.Filter) (*files.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.match(f)
	if len(all) == 0 {
		return nil, nil //nolint:nilnil // mirrors repogen
	}
	rec := all[0]
	return &rec, nil
}

func (r *fakeRepo) Exists(ctx context.Context, f files.Filter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *fakeRepo) Create(_ context.Context, rec *files.FileRecord) (*files.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.ID = r.nextID
	r.nextID++
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	r.records = append(r.records, *rec)
	return rec, nil
}

func (r *fakeRepo) Update(_ context.Context, rec *files.FileRecord, _ ...string) (*files.FileRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	i := slices.IndexFunc(r.records, func(x files.FileRecord) bool { return x.ID == rec.ID })
	if i < 0 {
		return nil, errx.New("no FileRecord found to update", errx.WithCode(files.CodeFileNotFound), errx.WithType(errx.T_NotFound))
	}
	r.records[i] = *rec
	return rec, nil
}

func (r *fakeRepo) Delete(_ context.Context, rec *files.FileRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = slices.DeleteFunc(r.records, func(x files.FileRecord) bool { return x.ID == rec.ID })
	return nil
}

func (r *fakeRepo) byID(id int64) files.FileRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.records, func(x files.FileRecord) bool { return x.ID == id })
	return r.records[i]
}

func (r *fakeRepo) add(rec files.FileRecord) files.FileRecord {
	created, _ := r.Create(context.Background(), &rec)
	return *created
}

// flakyStore fails uploads whose key has one of the given suffixes.
type flakyStore struct {
	filestore.FileStore
	failSuffixes []string
}

func (s *flakyStore) Upload(ctx context.Context, path string, reader io.Reader) (*filestore.FileInfo, error) {
	for _, suffix := range s.failSuffixes {
		if strings.HasSuffix(path, suffix) {
			return nil, errx.New("disk full")
		}
	}
	return s.FileStore.Upload(ctx, path, reader)
}

func newStore(t *testing.T) *localfs.Store {
	t.Helper()
	store, err := localfs.New(localfs.Config{Root: t.TempDir()})
	require.NoError(t, err)
	return store
}

// recordingBroker captures published messages.
type recordingBroker struct {
	mu         sync.Mutex
	published  []taskmill.Message
	publishErr error
}

func (b *recordingBroker) Publish(_ context.Context, _ string, msgs []taskmill.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publishErr != nil {
		return b.publishErr
	}
	b.published = append(b.published, msgs...)
	return nil
}

func (b *recordingBroker) Fetch(context.Context, string, int) ([]taskmill.Task, error) { return nil, nil }
func (b *recordingBroker) Ack(context.Context, taskmill.Task) error                  { return nil }
func (b *recordingBroker) Nack(context.Context, taskmill.Task, map[string]any) error { return nil }
func (b *recordingBroker) Reject(context.Context, taskmill.Task, map[string]any) error {
	return nil
}
func (b *recordingBroker) Close() error { return nil }

func (b *recordingBroker) messages() []taskmill.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.published)
}

func newEnqueuer(b *recordingBroker) taskmill.Enqueuer {
	return taskmill.NewEnqueuer(b, "files", taskmill.WithPublishRetry(1, time.Millisecond))
}
