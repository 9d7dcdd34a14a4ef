// Package itemsvc describes the inventory.v1.ItemService gRPC contract. Messages are protobuf
// well-known types, items travel as a google.protobuf.Struct with the same field names
// as the JSON representation.
package itemsvc

import (
	"context"
	"math"
	"time"

	"github.com/naughtygopher/errors"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/prashantkr001/inventory-api/internal/item"
)

const (
	ServiceName = "inventory.v1.ItemService"

	MethodAddItem    = "/" + ServiceName + "/AddItem"
	MethodUpdateItem = "/" + ServiceName + "/UpdateItem"
	MethodDeleteItem = "/" + ServiceName + "/DeleteItem"
	MethodGetItem    = "/" + ServiceName + "/GetItem"
	MethodListItems  = "/" + ServiceName + "/ListItems"
)

type ItemServiceServer interface {
	AddItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateItem(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteItem(ctx context.Context, req *wrapperspb.Int64Value) (*wrapperspb.BoolValue, error)
	GetItem(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error)
	ListItems(ctx context.Context, req *emptypb.Empty) (*structpb.ListValue, error)
}

func unaryHandler[Req any, Resp any](
	fullMethod string,
	call func(ItemServiceServer, context.Context, *Req) (*Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		err := dec(in)
		if err != nil {
			return nil, err
		}

		if interceptor == nil {
			return call(srv.(ItemServiceServer), ctx, in) //nolint:forcetypeassert // guaranteed by RegisterItemServiceServer
		}

		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ItemServiceServer), ctx, req.(*Req)) //nolint:forcetypeassert // guaranteed by grpc
		}
		return interceptor(ctx, in, info, handler)
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ItemServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "AddItem",
			Handler:    unaryHandler(MethodAddItem, ItemServiceServer.AddItem),
		},
		{
			MethodName: "UpdateItem",
			Handler:    unaryHandler(MethodUpdateItem, ItemServiceServer.UpdateItem),
		},
		{
			MethodName: "DeleteItem",
			Handler:    unaryHandler(MethodDeleteItem, ItemServiceServer.DeleteItem),
		},
		{
			MethodName: "GetItem",
			Handler:    unaryHandler(MethodGetItem, ItemServiceServer.GetItem),
		},
		{
			MethodName: "ListItems",
			Handler:    unaryHandler(MethodListItems, ItemServiceServer.ListItems),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "inventory/v1/items.proto",
}

func RegisterItemServiceServer(s grpc.ServiceRegistrar, srv ItemServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type ItemServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewItemServiceClient(cc grpc.ClientConnInterface) *ItemServiceClient {
	return &ItemServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	err := cc.Invoke(ctx, method, in, out, opts...)
	if err != nil {
		return nil, err //nolint:wrapcheck // status errors are returned as is
	}
	return out, nil
}

func (c *ItemServiceClient) AddItem(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, MethodAddItem, in, opts...)
}

func (c *ItemServiceClient) UpdateItem(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, MethodUpdateItem, in, opts...)
}

func (c *ItemServiceClient) DeleteItem(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, MethodDeleteItem, in, opts...)
}

func (c *ItemServiceClient) GetItem(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, MethodGetItem, in, opts...)
}

func (c *ItemServiceClient) ListItems(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	return invoke[structpb.ListValue](ctx, c.cc, MethodListItems, in, opts...)
}

// ItemToStruct converts an item to its wire form, dateAdded is sent as an RFC3339 string
// and omitted when zero.
func ItemToStruct(itm item.Item) *structpb.Struct {
	fields := map[string]*structpb.Value{
		"code":     structpb.NewNumberValue(float64(itm.Code)),
		"name":     structpb.NewStringValue(itm.Name),
		"quantity": structpb.NewNumberValue(float64(itm.Quantity)),
	}
	if !itm.DateAdded.IsZero() {
		fields["dateAdded"] = structpb.NewStringValue(itm.DateAdded.Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}

// maxSafeInteger is the largest integer a float64 represents exactly.
const maxSafeInteger = 1<<53 - 1

// wholeNumber reads a required integer field, rejecting missing, non-numeric, fractional
// and out-of-range values.
func wholeNumber(fields map[string]*structpb.Value, name string) (int, error) {
	value, ok := fields[name]
	if !ok {
		return 0, errors.InputBodyf("%s is required", name)
	}

	num, ok := value.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, errors.InputBodyf("%s should be a number", name)
	}

	f := num.NumberValue
	if math.IsNaN(f) || math.Trunc(f) != f || math.Abs(f) > maxSafeInteger {
		return 0, errors.InputBodyf("%s should be a whole number, got %v", name, f)
	}

	return int(f), nil
}

// ItemFromStruct converts the wire form to an item. code is required, quantity defaults to 0.
func ItemFromStruct(st *structpb.Struct) (item.Item, error) {
	fields := st.GetFields()

	code, err := wholeNumber(fields, "code")
	if err != nil {
		return item.Item{}, err
	}

	quantity := 0
	if _, ok := fields["quantity"]; ok {
		quantity, err = wholeNumber(fields, "quantity")
		if err != nil {
			return item.Item{}, err
		}
	}

	itm := item.Item{
		Code:     code,
		Name:     fields["name"].GetStringValue(),
		Quantity: quantity,
	}

	dateAdded := fields["dateAdded"].GetStringValue()
	if dateAdded == "" {
		return itm, nil
	}

	parsed, err := time.Parse(time.RFC3339Nano, dateAdded)
	if err != nil {
		return item.Item{}, errors.InputBodyf("invalid dateAdded provided: %s", dateAdded)
	}
	itm.DateAdded = parsed

	return itm, nil
}

func ItemsToList(items []item.Item) *structpb.ListValue {
	values := make([]*structpb.Value, 0, len(items))
	for i := range items {
		values = append(values, structpb.NewStructValue(ItemToStruct(items[i])))
	}
	return &structpb.ListValue{Values: values}
}

func ItemsFromList(list *structpb.ListValue) ([]item.Item, error) {
	values := list.GetValues()
	items := make([]item.Item, 0, len(values))
	for _, v := range values {
		itm, err := ItemFromStruct(v.GetStructValue())
		if err != nil {
			return nil, err
		}
		items = append(items, itm)
	}
	return items, nil
}
