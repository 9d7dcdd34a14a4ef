package item

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/naughtygopher/errors"
	"go.uber.org/zap"

	"github.com/prashantkr001/inventory-api/internal/pkg/logger"
)

const cacheKeyPrefix = "inventory:item:"

// cachedStore wraps a persistentStore with a read-through cache on single item lookups.
// Existence checks and listing always go to the store. Read failures of the cache fall
// back to the store, failed invalidations fail the write.
type cachedStore struct {
	persistentStore
	cache cacher
	ttl   time.Duration
}

func NewCachedStore(store persistentStore, cache cacher, ttl time.Duration) *cachedStore { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	return &cachedStore{
		persistentStore: store,
		cache:           cache,
		ttl:             ttl,
	}
}

func cacheKey(code int) string {
	return fmt.Sprintf("%s%d", cacheKeyPrefix, code)
}

func (cs *cachedStore) cached(ctx context.Context, code int) (*Item, bool) {
	raw, found, err := cs.cache.Get(ctx, cacheKey(code))
	if err != nil {
		logger.WarnCtx(ctx, "item cache read failed", zap.Int("code", code), zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}

	item := new(Item)
	err = json.Unmarshal(raw, item)
	if err != nil {
		logger.WarnCtx(ctx, "item cache entry is corrupt", zap.Int("code", code), zap.Error(err))
		return nil, false
	}

	return item, true
}

// invalidate removes the cached item, a failure is returned since a stale entry would
// keep answering lookups until it expires.
func (cs *cachedStore) invalidate(ctx context.Context, code int) error {
	err := cs.cache.Delete(ctx, cacheKey(code))
	if err != nil {
		return errors.Wrapf(err, "item cache invalidation failed: %d", code)
	}
	return nil
}

func (cs *cachedStore) ItemByCode(ctx context.Context, code int) (*Item, error) {
	if item, hit := cs.cached(ctx, code); hit {
		return item, nil
	}

	item, err := cs.persistentStore.ItemByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(item)
	if err != nil {
		logger.WarnCtx(ctx, "item cache encode failed", zap.Int("code", code), zap.Error(errors.Wrap(err, "json marshal failed")))
		return item, nil
	}

	err = cs.cache.Set(ctx, cacheKey(code), raw, cs.ttl)
	if err != nil {
		logger.WarnCtx(ctx, "item cache write failed", zap.Int("code", code), zap.Error(err))
	}

	return item, nil
}

// SaveItem invalidates the cached item before and after the write. The store is not
// touched if the first invalidation fails, the second one evicts an entry re-filled by
// a concurrent lookup during the write.
func (cs *cachedStore) SaveItem(ctx context.Context, item Item) (*Item, error) {
	err := cs.invalidate(ctx, item.Code)
	if err != nil {
		return nil, err
	}

	saved, err := cs.persistentStore.SaveItem(ctx, item)
	if err != nil {
		return nil, err
	}

	err = cs.invalidate(ctx, item.Code)
	if err != nil {
		return nil, err
	}

	return saved, nil
}

func (cs *cachedStore) DeleteByCode(ctx context.Context, code int) error {
	err := cs.invalidate(ctx, code)
	if err != nil {
		return err
	}

	err = cs.persistentStore.DeleteByCode(ctx, code)
	if err != nil {
		return err
	}

	return cs.invalidate(ctx, code)
}
