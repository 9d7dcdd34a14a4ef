package item

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/naughtygopher/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type storeMocker struct {
	data map[int]Item
}

func (sMo *storeMocker) ExistsByCode(_ context.Context, code int) (bool, error) {
	_, ok := sMo.data[code]
	return ok, nil
}

func (sMo *storeMocker) SaveItem(_ context.Context, item Item) (*Item, error) {
	sMo.data[item.Code] = item
	return &item, nil
}

func (sMo *storeMocker) ItemByCode(_ context.Context, code int) (*Item, error) {
	item, ok := sMo.data[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &item, nil
}

func (sMo *storeMocker) ListItems(_ context.Context) ([]Item, error) {
	list := make([]Item, 0, len(sMo.data))
	for code := range sMo.data {
		list = append(list, sMo.data[code])
	}
	slices.SortFunc(list, func(a, b Item) int { return a.Code - b.Code })
	return list, nil
}

func (sMo *storeMocker) DeleteByCode(_ context.Context, code int) error {
	delete(sMo.data, code)
	return nil
}

func newStoreMocker(items ...Item) *storeMocker {
	smo := &storeMocker{
		data: make(map[int]Item),
	}
	for _, it := range items {
		smo.data[it.Code] = it
	}
	return smo
}

// mockStore is used where a test needs to control exactly what the store answers,
// regardless of what was saved before.
type mockStore struct {
	mock.Mock
}

func (mst *mockStore) ExistsByCode(ctx context.Context, code int) (bool, error) {
	args := mst.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (mst *mockStore) SaveItem(ctx context.Context, item Item) (*Item, error) {
	args := mst.Called(ctx, item)
	saved, _ := args.Get(0).(*Item)
	return saved, args.Error(1)
}

func (mst *mockStore) ItemByCode(ctx context.Context, code int) (*Item, error) {
	args := mst.Called(ctx, code)
	found, _ := args.Get(0).(*Item)
	return found, args.Error(1)
}

func (mst *mockStore) ListItems(ctx context.Context) ([]Item, error) {
	args := mst.Called(ctx)
	list, _ := args.Get(0).([]Item)
	return list, args.Error(1)
}

func (mst *mockStore) DeleteByCode(ctx context.Context, code int) error {
	args := mst.Called(ctx, code)
	return args.Error(0)
}

func testItems() []Item {
	today := time.Now().UTC().Truncate(24 * time.Hour)
	return []Item{
		{Code: 101, Name: "RiceOrPAddy", Quantity: 1025, DateAdded: today},
		{Code: 102, Name: "Wheat", Quantity: 2025, DateAdded: today},
		{Code: 103, Name: "Barley", Quantity: 3025, DateAdded: today},
		{Code: 104, Name: "CocoSeed", Quantity: 5025, DateAdded: today},
		{Code: 105, Name: "CoffeeBean", Quantity: 7025, DateAdded: today},
	}
}

func TestNewService(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)

	svc, err := NewService(newStoreMocker())
	require.NoError(t, err)
	assert.NotNil(t, svc)
}

func TestAdd(t *testing.T) {
	fixtures := testItems()

	t.Run("new item is persisted and returned unchanged", func(t *testing.T) {
		smo := newStoreMocker()
		svc, err := NewService(smo)
		require.NoError(t, err)

		added, err := svc.Add(t.Context(), fixtures[0])
		require.NoError(t, err)
		assert.Equal(t, fixtures[0], *added)
		assert.Equal(t, fixtures[0], smo.data[fixtures[0].Code])
	})

	t.Run("returned item does not depend on the store's echo", func(t *testing.T) {
		mst := new(mockStore)
		mst.On("ExistsByCode", mock.Anything, fixtures[0].Code).Return(false, nil)
		mst.On("SaveItem", mock.Anything, fixtures[0]).Return(nil, nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		added, err := svc.Add(t.Context(), fixtures[0])
		require.NoError(t, err)
		assert.Equal(t, fixtures[0], *added)
		mst.AssertExpectations(t)
	})

	t.Run("existing code is rejected without saving", func(t *testing.T) {
		mst := new(mockStore)
		mst.On("ExistsByCode", mock.Anything, fixtures[0].Code).Return(true, nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		added, err := svc.Add(t.Context(), fixtures[0])
		require.ErrorIs(t, err, ErrDuplicateItem)
		assert.Nil(t, added)
		mst.AssertNotCalled(t, "SaveItem", mock.Anything, mock.Anything)
	})

	t.Run("adding the same item twice fails the second time", func(t *testing.T) {
		svc, err := NewService(newStoreMocker())
		require.NoError(t, err)

		for _, it := range fixtures {
			_, err = svc.Add(t.Context(), it)
			require.NoError(t, err)
			_, err = svc.Add(t.Context(), it)
			require.ErrorIs(t, err, ErrDuplicateItem)
		}
	})
}

func TestUpdate(t *testing.T) {
	fixtures := testItems()

	t.Run("existing item is replaced", func(t *testing.T) {
		smo := newStoreMocker(fixtures...)
		svc, err := NewService(smo)
		require.NoError(t, err)

		changed := fixtures[2]
		changed.Quantity = 1
		changed.Name = "Pearl barley"
		updated, err := svc.Update(t.Context(), changed)
		require.NoError(t, err)
		assert.Equal(t, changed, *updated)
		assert.Equal(t, changed, smo.data[changed.Code])
	})

	t.Run("store echo is ignored", func(t *testing.T) {
		mst := new(mockStore)
		mst.On("ExistsByCode", mock.Anything, fixtures[0].Code).Return(true, nil)
		mst.On("SaveItem", mock.Anything, fixtures[0]).Return(nil, nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		updated, err := svc.Update(t.Context(), fixtures[0])
		require.NoError(t, err)
		assert.Equal(t, fixtures[0], *updated)
		mst.AssertExpectations(t)
	})

	t.Run("missing item is not found", func(t *testing.T) {
		mst := new(mockStore)
		mst.On("ExistsByCode", mock.Anything, fixtures[0].Code).Return(false, nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		updated, err := svc.Update(t.Context(), fixtures[0])
		require.ErrorIs(t, err, ErrNotFound)
		assert.Nil(t, updated)
		mst.AssertNotCalled(t, "SaveItem", mock.Anything, mock.Anything)
	})
}

func TestDeleteByCode(t *testing.T) {
	fixtures := testItems()

	t.Run("existing item is deleted", func(t *testing.T) {
		mst := new(mockStore)
		mst.On("ExistsByCode", mock.Anything, mock.AnythingOfType("int")).Return(true, nil)
		mst.On("DeleteByCode", mock.Anything, mock.AnythingOfType("int")).Return(nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		deleted, err := svc.DeleteByCode(t.Context(), fixtures[0].Code)
		require.NoError(t, err)
		assert.True(t, deleted)
		mst.AssertCalled(t, "DeleteByCode", mock.Anything, fixtures[0].Code)
	})

	t.Run("missing item is not found", func(t *testing.T) {
		mst := new(mockStore)
		mst.On("ExistsByCode", mock.Anything, mock.AnythingOfType("int")).Return(false, nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		deleted, err := svc.DeleteByCode(t.Context(), fixtures[0].Code)
		require.ErrorIs(t, err, ErrNotFound)
		assert.False(t, deleted)
		mst.AssertNotCalled(t, "DeleteByCode", mock.Anything, mock.Anything)
	})
}

func TestByCode(t *testing.T) {
	fixtures := testItems()
	svc, err := NewService(newStoreMocker(fixtures[0]))
	require.NoError(t, err)

	t.Run("existing item", func(t *testing.T) {
		found, err := svc.ByCode(t.Context(), fixtures[0].Code)
		require.NoError(t, err)
		assert.Equal(t, fixtures[0], *found)
	})

	t.Run("missing item is nil without error", func(t *testing.T) {
		found, err := svc.ByCode(t.Context(), fixtures[1].Code)
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestList(t *testing.T) {
	t.Run("returns the store's items in store order", func(t *testing.T) {
		fixtures := testItems()
		mst := new(mockStore)
		mst.On("ListItems", mock.Anything).Return(fixtures, nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		list, err := svc.List(t.Context())
		require.NoError(t, err)
		assert.Equal(t, fixtures, list)
	})

	t.Run("empty store returns an empty list", func(t *testing.T) {
		mst := new(mockStore)
		mst.On("ListItems", mock.Anything).Return(nil, nil)
		svc, err := NewService(mst)
		require.NoError(t, err)

		list, err := svc.List(t.Context())
		require.NoError(t, err)
		assert.NotNil(t, list)
		assert.Empty(t, list)
	})
}

func TestStoreErrorsPropagate(t *testing.T) {
	errStore := errors.New("connection reset")
	fixtures := testItems()

	mst := new(mockStore)
	mst.On("ExistsByCode", mock.Anything, fixtures[0].Code).Return(false, errStore)
	mst.On("ExistsByCode", mock.Anything, fixtures[1].Code).Return(false, nil)
	mst.On("SaveItem", mock.Anything, fixtures[1]).Return(nil, errStore)
	mst.On("ItemByCode", mock.Anything, fixtures[0].Code).Return(nil, errStore)
	mst.On("ListItems", mock.Anything).Return(nil, errStore)
	svc, err := NewService(mst)
	require.NoError(t, err)

	_, err = svc.Add(t.Context(), fixtures[0])
	require.ErrorIs(t, err, errStore)

	_, err = svc.Add(t.Context(), fixtures[1])
	require.ErrorIs(t, err, errStore)

	_, err = svc.Update(t.Context(), fixtures[0])
	require.ErrorIs(t, err, errStore)

	_, err = svc.DeleteByCode(t.Context(), fixtures[0].Code)
	require.ErrorIs(t, err, errStore)

	found, err := svc.ByCode(t.Context(), fixtures[0].Code)
	require.ErrorIs(t, err, errStore)
	assert.Nil(t, found)

	_, err = svc.List(t.Context())
	require.ErrorIs(t, err, errStore)
}

// TestItemLifecycle walks one item through every operation, against a store
// pre-filled with it.
func TestItemLifecycle(t *testing.T) {
	requirer := require.New(t)
	asserter := assert.New(t)
	fixtures := testItems()
	ctx := t.Context()

	svc, err := NewService(newStoreMocker(fixtures[0]))
	requirer.NoError(err)

	_, err = svc.Add(ctx, Item{Code: 101, Name: "RiceOrPAddy", Quantity: 1, DateAdded: fixtures[0].DateAdded})
	requirer.ErrorIs(err, ErrDuplicateItem)

	changed := fixtures[0]
	changed.Quantity = 9999
	updated, err := svc.Update(ctx, changed)
	requirer.NoError(err)
	asserter.Equal(9999, updated.Quantity)

	found, err := svc.ByCode(ctx, 101)
	requirer.NoError(err)
	asserter.Equal(changed, *found)

	deleted, err := svc.DeleteByCode(ctx, 101)
	requirer.NoError(err)
	asserter.True(deleted)

	found, err = svc.ByCode(ctx, 101)
	requirer.NoError(err)
	asserter.Nil(found)

	_, err = svc.DeleteByCode(ctx, 101)
	requirer.ErrorIs(err, ErrNotFound)

	list, err := svc.List(ctx)
	requirer.NoError(err)
	asserter.Empty(list)
}
