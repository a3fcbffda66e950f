// Package auth issues session tokens and resolves them on incoming requests.
package auth

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/code19m/errx"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

const keyPrefix = "auth_"

// SessionStore maps tokens to user ids.
type SessionStore interface {
	Create(ctx context.Context, token string, userID int64, ttl time.Duration) error
	// Lookup returns 0 for unknown or expired tokens.
	Lookup(ctx context.Context, token string) (int64, error)
	// Delete reports whether the token existed.
	Delete(ctx context.Context, token string) (bool, error)
}

// RedisStore keeps sessions under "auth_<token>" keys with a TTL.
type RedisStore struct {
	client redis.Cmdable
}

func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Create(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return errx.Wrap(s.client.Set(ctx, keyPrefix+token, strconv.FormatInt(userID, 10), ttl).Err())
}

func (s *RedisStore) Lookup(ctx context.Context, token string) (int64, error) {
	v, err := s.client.Get(ctx, keyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errx.Wrap(err)
	}
	return cast.ToInt64(v), nil
}

func (s *RedisStore) Delete(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, keyPrefix+token).Result()
	if err != nil {
		return false, errx.Wrap(err)
	}
	return n > 0, nil
}

// CachedStore remembers successful lookups for a short time.
// A token deleted on another instance stays valid here until its entry expires.
type CachedStore struct {
	next  SessionStore
	cache *expirable.LRU[string, int64]
}

func NewCachedStore(next SessionStore, size int, ttl time.Duration) *CachedStore {
	return &CachedStore{
		next:  next,
		cache: expirable.NewLRU[string, int64](size, nil, ttl),
	}
}

func (s *CachedStore) Create(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	return s.next.Create(ctx, token, userID, ttl)
}

func (s *CachedStore) Lookup(ctx context.Context, token string) (int64, error) {
	if id, ok := s.cache.Get(token); ok {
		return id, nil
	}

	id, err := s.next.Lookup(ctx, token)
	if err != nil || id == 0 {
		return id, err
	}
	s.cache.Add(token, id)
	return id, nil
}

func (s *CachedStore) Delete(ctx context.Context, token string) (bool, error) {
	s.cache.Remove(token)
	return s.next.Delete(ctx, token)
}
