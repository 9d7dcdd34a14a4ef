package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prashantkr001/inventory-api/internal/config"
	"github.com/prashantkr001/inventory-api/internal/item"
)

func TestInitItemStoreMemory(t *testing.T) {
	cfg := &config.Config{}
	cfg.Store.Driver = config.StoreMemory
	deps := &dependencies{}

	store, err := initItemStore(context.Background(), cfg, deps)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Empty(t, dependencyProbes(deps))

	_, err = store.SaveItem(context.Background(), item.Item{Code: 1, Name: "Rice"})
	require.NoError(t, err)

	exists, err := store.ExistsByCode(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInitItemCache(t *testing.T) {
	cfg := &config.Config{}
	deps := &dependencies{}

	cache, err := initItemCache(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.Nil(t, cache)

	cfg.Cache.Driver = config.CacheLRU
	cfg.Cache.Size = 10
	cfg.Cache.TTL = time.Minute
	cache, err = initItemCache(context.Background(), cfg, deps)
	require.NoError(t, err)
	require.NotNil(t, cache)

	require.NoError(t, cache.Set(context.Background(), "key", []byte("value"), time.Minute))
	value, ok, err := cache.Get(context.Background(), "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), value)

	// no external clients are created for an in-process cache
	assert.Nil(t, deps.redisClient)
	assert.Nil(t, deps.memcached)
}

func TestIsDevEnv(t *testing.T) {
	cfg := &config.Config{Environment: config.EnvCI}
	assert.True(t, isDevEnv(cfg))

	cfg.Environment = config.EnvLive
	assert.False(t, isDevEnv(cfg))
}
