// Package item is responsible for implementing all features required for handling inventory Items
package item

import (
	"context"
	"time"

	"github.com/naughtygopher/errors"
)

var (
	ErrNotFound      = errors.NotFound("Item not found")
	ErrDuplicateItem = errors.Duplicate("Item with the same code already exists")
)

// Item is a single inventory record, uniquely identified by its Code.
type Item struct {
	Code      int       `json:"code" bson:"code"`
	Name      string    `json:"name,omitempty" bson:"name"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	DateAdded time.Time `json:"dateAdded" bson:"dateAdded"`
}

// Service struct holds all the dependencies required, as interfaces. e.g. persistent store interface.
// And all its usecases as methods(with pointer receiver) of this struct.
// Service itself is stateless, the store is the only source of truth.
type Service struct {
	persistentStore persistentStore
}

// NewService accepts any external dependencies required for the item service.
// e.g. DB driver, which may be wrapped with a cache or an event publisher.
func NewService(storage persistentStore) (*Service, error) {
	if storage == nil {
		return nil, errors.New("item service requires a persistent store")
	}
	return &Service{
		persistentStore: storage,
	}, nil
}

// Add persists a new item. It fails with ErrDuplicateItem if the code already exists.
// The returned item is the one provided, not the store's echo of it.
func (svc *Service) Add(ctx context.Context, item Item) (*Item, error) {
	exists, err := svc.persistentStore.ExistsByCode(ctx, item.Code)
	if err != nil {
		return nil, err
	}

	if exists {
		return nil, errors.Wrapf(ErrDuplicateItem, ": %d", item.Code)
	}

	_, err = svc.persistentStore.SaveItem(ctx, item)
	if err != nil {
		return nil, err
	}

	return &item, nil
}

// Update replaces an existing item. It fails with ErrNotFound if the code does not exist.
func (svc *Service) Update(ctx context.Context, item Item) (*Item, error) {
	err := svc.mustExist(ctx, item.Code)
	if err != nil {
		return nil, err
	}

	_, err = svc.persistentStore.SaveItem(ctx, item)
	if err != nil {
		return nil, err
	}

	return &item, nil
}

func (svc *Service) DeleteByCode(ctx context.Context, code int) (bool, error) {
	err := svc.mustExist(ctx, code)
	if err != nil {
		return false, err
	}

	err = svc.persistentStore.DeleteByCode(ctx, code)
	if err != nil {
		return false, err
	}

	return true, nil
}

// ByCode returns nil, nil when there's no item with the given code. Unlike Update and
// DeleteByCode, a missing item is not an error here.
func (svc *Service) ByCode(ctx context.Context, code int) (*Item, error) {
	item, err := svc.persistentStore.ItemByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil //nolint:nilnil // a missing item is reported as nil
		}
		return nil, err
	}

	return item, nil
}

func (svc *Service) List(ctx context.Context) ([]Item, error) {
	list, err := svc.persistentStore.ListItems(ctx)
	if err != nil {
		return nil, err
	}

	if list == nil {
		list = []Item{}
	}

	return list, nil
}

func (svc *Service) mustExist(ctx context.Context, code int) error {
	exists, err := svc.persistentStore.ExistsByCode(ctx, code)
	if err != nil {
		return err
	}

	if !exists {
		return errors.Wrapf(ErrNotFound, ": %d", code)
	}

	return nil
}
