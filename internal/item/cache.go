package item

import (
	"context"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/naughtygopher/errors"
	"github.com/redis/go-redis/v9"
)

// cacher is a byte-oriented key/value cache. Get returns false, nil on a miss.
type cacher interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type redisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *redisCache { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	return &redisCache{client: client}
}

func (rc *redisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := rc.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "redis get failed")
	}
	return data, true, nil
}

func (rc *redisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := rc.client.Set(ctx, key, value, ttl).Err()
	if err != nil {
		return errors.Wrap(err, "redis set failed")
	}
	return nil
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	err := rc.client.Del(ctx, key).Err()
	if err != nil {
		return errors.Wrap(err, "redis del failed")
	}
	return nil
}

type memcachedCache struct {
	client *memcache.Client
}

func NewMemcachedCache(client *memcache.Client) *memcachedCache { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	return &memcachedCache{client: client}
}

// memcache client has no context support, so only an already cancelled context is honoured.
func (mc *memcachedCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}

	it, err := mc.client.Get(key)
	if err != nil {
		if errors.Is(err, memcache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "memcached get failed")
	}
	return it.Value, true, nil
}

// MaxMemcachedTTL is the longest relative expiration memcached accepts, larger values are
// read as an absolute unix timestamp.
const MaxMemcachedTTL = 30 * 24 * time.Hour

// memcachedExpiration converts ttl to memcached's expiration seconds. Sub-second TTLs round up
// to 1s since 0 means "never expires".
func memcachedExpiration(ttl time.Duration) (int32, error) {
	if ttl <= 0 || ttl > MaxMemcachedTTL {
		return 0, errors.Validationf("memcached ttl should be within (0, %s], got %s", MaxMemcachedTTL, ttl)
	}

	seconds := int32(ttl / time.Second)
	if ttl%time.Second != 0 {
		seconds++
	}
	return seconds, nil
}

func (mc *memcachedCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	expiration, err := memcachedExpiration(ttl)
	if err != nil {
		return err
	}

	err = mc.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: expiration,
	})
	if err != nil {
		return errors.Wrap(err, "memcached set failed")
	}
	return nil
}

func (mc *memcachedCache) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	err := mc.client.Delete(key)
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return errors.Wrap(err, "memcached delete failed")
	}
	return nil
}

// lruCache is an in-process cache. The TTL is fixed at construction, the per-call ttl of Set
// is ignored.
type lruCache struct {
	items *expirable.LRU[string, []byte]
}

func NewLRUCache(size int, ttl time.Duration) *lruCache { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	return &lruCache{
		items: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

func (lc *lruCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, ok := lc.items.Get(key)
	return value, ok, nil
}

func (lc *lruCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	lc.items.Add(key, value)
	return nil
}

func (lc *lruCache) Delete(_ context.Context, key string) error {
	lc.items.Remove(key)
	return nil
}
