package users_test

import (
	"context"
	"slices"
	"sync"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/filesmanager/internal/users"
)

type fakeRepo struct {
	mu     sync.Mutex
	users  []users.User
	nextID int64
}

var _ users.Repo = (*fakeRepo)(nil)

func newFakeRepo() *fakeRepo { return &fakeRepo{nextID: 1} }

func (r *fakeRepo) match(f users.Filter) []users.User {
	var out []users.User
	for _, u := range r.users {
		if (f.ID != 0 && u.ID != f.ID) || (f.Email != "" && u.Email != f.Email) {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (r *fakeRepo) Get(ctx context.Context, f users.Filter) (*users.User, error) {
	u, _ := r.FirstOrNil(ctx, f)
	if u == nil {
		return nil, errx.New("no User found", errx.WithCode(users.CodeUserNotFound), errx.WithType(errx.T_NotFound))
	}
	return u, nil
}

func (r *fakeRepo) List(_ context.Context, f users.Filter) ([]users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.match(f), nil
}

func (r *fakeRepo) Count(_ context.Context, f users.Filter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.match(f)), nil
}

func (r *fakeRepo) ListWithCount(ctx context.Context, f users.Filter) ([]users.User, int, error) {
	all, _ := r.List(ctx, f)
	return all, len(all), nil
}

func (r *fakeRepo) FirstOrNil(_ context.Context, f users.Filter) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.match(f)
	if len(all) == 0 {
		return nil, nil //nolint:nilnil // mirrors repogen
	}
	return &all[0], nil
}

func (r *fakeRepo) Exists(ctx context.Context, f users.Filter) (bool, error) {
	n, _ := r.Count(ctx, f)
	return n > 0, nil
}

func (r *fakeRepo) Create(_ context.Context, u *users.User) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.ID = r.nextID
	r.nextID++
	r.users = append(r.users, *u)
	return u, nil
}

func (r *fakeRepo) Update(_ context.Context, u *users.User, _ ...string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.IndexFunc(r.users, func(x users.User) bool { return x.ID == u.ID })
	r.users[i] = *u
	return u, nil
}

func (r *fakeRepo) Delete(_ context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = slices.DeleteFunc(r.users, func(x users.User) bool { return x.ID == u.ID })
	return nil
}
