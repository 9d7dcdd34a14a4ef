package grpc

import (
	"context"

	"github.com/naughtygopher/errors"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/prashantkr001/inventory-api/cmd/server/grpc/itemsvc"
	"github.com/prashantkr001/inventory-api/internal/item"
)

func (grp *GRPC) AddItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	payload, err := itemsvc.ItemFromStruct(req)
	if err != nil {
		return nil, err
	}

	createdItem, err := grp.apis.ItemAdd(ctx, payload)
	if err != nil {
		return nil, err
	}

	return itemsvc.ItemToStruct(*createdItem), nil
}

func (grp *GRPC) UpdateItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	payload, err := itemsvc.ItemFromStruct(req)
	if err != nil {
		return nil, err
	}

	updatedItem, err := grp.apis.ItemUpdate(ctx, payload)
	if err != nil {
		return nil, err
	}

	return itemsvc.ItemToStruct(*updatedItem), nil
}

func (grp *GRPC) DeleteItem(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error) {
	deleted, err := grp.apis.ItemDelete(ctx, int(req.GetValue()))
	if err != nil {
		return nil, err
	}

	return wrapperspb.Bool(deleted), nil
}

// GetItem responds with NotFound for an absent code, gRPC has no equivalent of an empty result.
func (grp *GRPC) GetItem(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	found, err := grp.apis.ItemByCode(ctx, int(req.GetValue()))
	if err != nil {
		return nil, err
	}

	if found == nil {
		return nil, errors.Wrapf(item.ErrNotFound, ": %d", req.GetValue())
	}

	return itemsvc.ItemToStruct(*found), nil
}

func (grp *GRPC) ListItems(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	list, err := grp.apis.ItemList(ctx)
	if err != nil {
		return nil, err
	}

	return itemsvc.ItemsToList(list), nil
}
