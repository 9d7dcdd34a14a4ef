package item

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// memoryItemStore keeps items in process memory. Nothing is persisted across restarts,
// it is meant for local development and tests of the transports.
type memoryItemStore struct {
	locker *sync.RWMutex
	items  map[int]Item
}

func NewMemoryPersistentStore(seed ...Item) *memoryItemStore { //nolint:revive // it is ok to return unexported type in this case, ensures controlled access
	mstore := &memoryItemStore{
		locker: &sync.RWMutex{},
		items:  make(map[int]Item, len(seed)),
	}
	for _, it := range seed {
		mstore.items[it.Code] = it
	}
	return mstore
}

func (mstore *memoryItemStore) ExistsByCode(_ context.Context, code int) (bool, error) {
	mstore.locker.RLock()
	defer mstore.locker.RUnlock()

	_, ok := mstore.items[code]
	return ok, nil
}

func (mstore *memoryItemStore) SaveItem(_ context.Context, item Item) (*Item, error) {
	mstore.locker.Lock()
	defer mstore.locker.Unlock()

	mstore.items[item.Code] = item
	return &item, nil
}

func (mstore *memoryItemStore) ItemByCode(_ context.Context, code int) (*Item, error) {
	mstore.locker.RLock()
	defer mstore.locker.RUnlock()

	item, ok := mstore.items[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

// ListItems returns the items sorted by code
func (mstore *memoryItemStore) ListItems(_ context.Context) ([]Item, error) {
	mstore.locker.RLock()
	defer mstore.locker.RUnlock()

	list := make([]Item, 0, len(mstore.items))
	for _, code := range slices.Sorted(maps.Keys(mstore.items)) {
		list = append(list, mstore.items[code])
	}
	return list, nil
}

func (mstore *memoryItemStore) DeleteByCode(_ context.Context, code int) error {
	mstore.locker.Lock()
	defer mstore.locker.Unlock()

	delete(mstore.items, code)
	return nil
}
