package auth_test

import (
	"context"
	"encoding/base64"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/filesmanager/hasher"
	"github.com/rise-and-shine/filesmanager/internal/auth"
	"github.com/rise-and-shine/filesmanager/internal/users"
	"github.com/rise-and-shine/filesmanager/meta"
	"github.com/rise-and-shine/filesmanager/repogen"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[string]int64
	ttls     map[string]time.Duration
	lookups  int
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Create(_ context.Context, token string, userID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = userID
	s.ttls[token] = ttl
	return nil
}

func (s *memStore) Lookup(_ context.Context, token string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.sessions[token], nil
}

func (s *memStore) Delete(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[token]
	delete(s.sessions, token)
	return ok, nil
}

// userRepo is a single-user users.Repo.
type userRepo struct {
	repogen.Repo[users.User, users.Filter]
	user users.User
}

func (r *userRepo) FirstOrNil(_ context.Context, f users.Filter) (*users.User, error) {
	if f.Email != r.user.Email {
		return nil, nil //nolint:nilnil // mirrors repogen
	}
	u := r.user
	return &u, nil
}

func newUserRepo(t *testing.T) *userRepo {
	t.Helper()

	hash, err := hasher.Hash("secret")
	require.NoError(t, err)
	return &userRepo{user: users.User{ID: 3, Email: "bob@example.com", PasswordHash: hash}}
}

func basic(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}

func TestConnectDisconnect(t *testing.T) {
	store := newMemStore()
	connect := auth.NewConnect(newUserRepo(t), store, 0)
	disconnect := auth.NewDisconnect(store)

	out, err := connect.Execute(t.Context(), &auth.ConnectInput{Authorization: basic("bob@example.com", "secret")})
	require.NoError(t, err)
	require.NotEmpty(t, out.Token)
	assert.Equal(t, int64(3), store.sessions[out.Token])
	assert.Equal(t, auth.DefaultSessionTTL, store.ttls[out.Token])

	_, err = disconnect.Execute(t.Context(), &auth.DisconnectInput{Token: out.Token})
	require.NoError(t, err)
	assert.Empty(t, store.sessions)

	_, err = disconnect.Execute(t.Context(), &auth.DisconnectInput{Token: out.Token})
	assert.Equal(t, errx.T_Authentication, errx.AsErrorX(err).Type())
}

func TestConnectRejectsBadCredentials(t *testing.T) {
	connect := auth.NewConnect(newUserRepo(t), newMemStore(), time.Hour)

	tests := []struct {
		name   string
		header string
	}{
		{"empty", ""},
		{"not basic", "Bearer abc"},
		{"bad base64", "Basic ***"},
		{"no colon", "Basic " + base64.StdEncoding.EncodeToString([]byte("bob@example.com"))},
		{"wrong password", basic("bob@example.com", "nope")},
		{"unknown user", basic("alice@example.com", "secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := connect.Execute(t.Context(), &auth.ConnectInput{Authorization: tt.header})
			e := errx.AsErrorX(err)
			assert.Equal(t, errx.T_Authentication, e.Type())
			assert.Equal(t, auth.CodeUnauthorized, e.Code())
		})
	}
}

func TestMiddleware(t *testing.T) {
	store := newMemStore()
	store.sessions["good"] = 3

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errx.GetType(err) == errx.T_Authentication {
				return c.SendStatus(fiber.StatusUnauthorized)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
	whoami := func(c *fiber.Ctx) error {
		return c.SendString(meta.Find(c.UserContext(), meta.RequestUserID))
	}
	app.Get("/required", auth.RequireUser(store), whoami)
	app.Get("/optional", auth.OptionalUser(store), whoami)

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
		wantBody   string
	}{
		{"required with session", "/required", "good", fiber.StatusOK, "3"},
		{"required without token", "/required", "", fiber.StatusUnauthorized, ""},
		{"required with unknown token", "/required", "bad", fiber.StatusUnauthorized, ""},
		{"optional with session", "/optional", "good", fiber.StatusOK, "3"},
		{"optional anonymous", "/optional", "", fiber.StatusOK, ""},
		{"optional with unknown token", "/optional", "bad", fiber.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, tt.path, nil)
			if tt.token != "" {
				req.Header.Set(auth.TokenHeader, tt.token)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus == fiber.StatusOK {
				body := make([]byte, 16)
				n, _ := resp.Body.Read(body)
				assert.Equal(t, tt.wantBody, string(body[:n]))
			}
		})
	}
}

func TestCachedStore(t *testing.T) {
	inner := newMemStore()
	inner.sessions["tok"] = 9
	store := auth.NewCachedStore(inner, 16, time.Minute)

	for range 3 {
		id, err := store.Lookup(t.Context(), "tok")
		require.NoError(t, err)
		assert.Equal(t, int64(9), id)
	}
	assert.Equal(t, 1, inner.lookups)

	// misses are not cached
	for range 2 {
		id, err := store.Lookup(t.Context(), "missing")
		require.NoError(t, err)
		assert.Zero(t, id)
	}
	assert.Equal(t, 3, inner.lookups)

	existed, err := store.Delete(t.Context(), "tok")
	require.NoError(t, err)
	assert.True(t, existed)

	id, err := store.Lookup(t.Context(), "tok")
	require.NoError(t, err)
	assert.Zero(t, id)
}
