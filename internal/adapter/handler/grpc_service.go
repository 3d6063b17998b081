package handler

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"

	"github.com/rl1809/vending-ledger/internal/core/domain"
)

// The service is declared by hand and carried over gRPC with a JSON codec;
// clients select it with the "json" content subtype.
const (
	ServiceName  = "vending.v1.Vending"
	CodecName    = "json"
	methodPrefix = "/" + ServiceName + "/"
)

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type InstantiateRequest struct {
	Sender        string              `json:"sender"`
	Owner         string              `json:"owner"`
	InitialAmount []domain.ItemAmount `json:"initial_amount"`
}

type WithdrawRequest struct {
	Sender string      `json:"sender"`
	Item   domain.Item `json:"item"`
}

type RestockRequest struct {
	Sender string      `json:"sender"`
	Item   domain.Item `json:"item"`
	Amount uint64      `json:"amount"`
}

type ItemsCountRequest struct{}

type LedgerResponse struct {
	Success    bool               `json:"success"`
	Message    string             `json:"message"`
	Code       string             `json:"code,omitempty"`
	Attributes []domain.Attribute `json:"attributes,omitempty"`
	Events     []domain.Event     `json:"events,omitempty"`
}

type ItemsCountResponse struct {
	Items []domain.ItemAmount `json:"items"`
}

type VendingServer interface {
	Instantiate(context.Context, *InstantiateRequest) (*LedgerResponse, error)
	Withdraw(context.Context, *WithdrawRequest) (*LedgerResponse, error)
	Restock(context.Context, *RestockRequest) (*LedgerResponse, error)
	ItemsCount(context.Context, *ItemsCountRequest) (*ItemsCountResponse, error)
}

func unaryMethod[Req, Resp any](name string, call func(VendingServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VendingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodPrefix + name}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VendingServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var VendingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*VendingServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("Instantiate", VendingServer.Instantiate),
		unaryMethod("Withdraw", VendingServer.Withdraw),
		unaryMethod("Restock", VendingServer.Restock),
		unaryMethod("ItemsCount", VendingServer.ItemsCount),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vending/v1",
}

func RegisterVendingServer(s grpc.ServiceRegistrar, srv VendingServer) {
	s.RegisterService(&VendingServiceDesc, srv)
}

// VendingClient calls a remote ledger over a gRPC connection.
type VendingClient struct {
	cc grpc.ClientConnInterface
}

func NewVendingClient(cc grpc.ClientConnInterface) *VendingClient {
	return &VendingClient{cc: cc}
}

func (c *VendingClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, methodPrefix+method, in, out, grpc.CallContentSubtype(CodecName))
}

func (c *VendingClient) Instantiate(ctx context.Context, in *InstantiateRequest) (*LedgerResponse, error) {
	out := new(LedgerResponse)
	if err := c.invoke(ctx, "Instantiate", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VendingClient) Withdraw(ctx context.Context, in *WithdrawRequest) (*LedgerResponse, error) {
	out := new(LedgerResponse)
	if err := c.invoke(ctx, "Withdraw", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VendingClient) Restock(ctx context.Context, in *RestockRequest) (*LedgerResponse, error) {
	out := new(LedgerResponse)
	if err := c.invoke(ctx, "Restock", in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VendingClient) ItemsCount(ctx context.Context, in *ItemsCountRequest) (*ItemsCountResponse, error) {
	out := new(ItemsCountResponse)
	if err := c.invoke(ctx, "ItemsCount", in, out); err != nil {
		return nil, err
	}
	return out, nil
}
