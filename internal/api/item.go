package api

import (
	"context"

	"github.com/prashantkr001/inventory-api/internal/item"
)

func (ap *API) ItemAdd(ctx context.Context, newItem item.Item) (*item.Item, error) {
	createdItem, err := ap.itemService.Add(ctx, newItem)
	if err != nil {
		return nil, err
	}
	return createdItem, nil
}

func (ap *API) ItemUpdate(ctx context.Context, it item.Item) (*item.Item, error) {
	updatedItem, err := ap.itemService.Update(ctx, it)
	if err != nil {
		return nil, err
	}
	return updatedItem, nil
}

func (ap *API) ItemDelete(ctx context.Context, code int) (bool, error) {
	deleted, err := ap.itemService.DeleteByCode(ctx, code)
	if err != nil {
		return false, err
	}
	return deleted, nil
}

// ItemByCode returns nil, nil if there's no item with the code
func (ap *API) ItemByCode(ctx context.Context, code int) (*item.Item, error) {
	return ap.itemService.ByCode(ctx, code)
}

func (ap *API) ItemList(ctx context.Context) ([]item.Item, error) {
	list, err := ap.itemService.List(ctx)
	if err != nil {
		return nil, err
	}
	return list, nil
}
