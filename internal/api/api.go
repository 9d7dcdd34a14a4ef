// Package api maintains all the APIs exposed by this application
/*
It's beneficial to prefix the API with the respective module, so that it's easier for devs to go
through all APIs of a given module. e.g. items.Add() is exposed as ItemAdd, so every transport
(HTTP, gRPC, Kafka subscriber) calls the exact same function.
*/
package api

import (
	"context"

	"github.com/prashantkr001/inventory-api/internal/item"
)

type itemService interface {
	Add(ctx context.Context, newItem item.Item) (*item.Item, error)
	Update(ctx context.Context, it item.Item) (*item.Item, error)
	DeleteByCode(ctx context.Context, code int) (bool, error)
	ByCode(ctx context.Context, code int) (*item.Item, error)
	List(ctx context.Context) ([]item.Item, error)
}

// API struct holds all the initialized service structs of respective modules, which has
// its API exposed.
type API struct {
	itemService itemService
}

func NewService(itSvc itemService) *API {
	return &API{itemService: itSvc}
}
