package grpc

import (
	"context"

	gogrpc "google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	TokenServiceName = "accounts.v1.TokenService"

	ValidateAccessTokenMethod = "/" + TokenServiceName + "/ValidateAccessToken"
	GetAccountMethod          = "/" + TokenServiceName + "/GetAccount"
)

// TokenServiceServer is served with well-known message types only, so peers
// need no generated stubs.
type TokenServiceServer interface {
	ValidateAccessToken(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	GetAccount(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
}

func RegisterTokenServiceServer(s gogrpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&TokenServiceDesc, srv)
}

var TokenServiceDesc = gogrpc.ServiceDesc{
	ServiceName: TokenServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []gogrpc.MethodDesc{
		{
			MethodName: "ValidateAccessToken",
			Handler:    validateAccessTokenHandler,
		},
		{
			MethodName: "GetAccount",
			Handler:    getAccountHandler,
		},
	},
	Streams:  []gogrpc.StreamDesc{},
	Metadata: "accounts/v1/token.proto",
}

func validateAccessTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).ValidateAccessToken(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: ValidateAccessTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).ValidateAccessToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func getAccountHandler(srv any, ctx context.Context, dec func(any) error, interceptor gogrpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).GetAccount(ctx, in)
	}
	info := &gogrpc.UnaryServerInfo{Server: srv, FullMethod: GetAccountMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).GetAccount(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

type TokenServiceClient interface {
	ValidateAccessToken(ctx context.Context, in *wrapperspb.StringValue, opts ...gogrpc.CallOption) (*structpb.Struct, error)
	GetAccount(ctx context.Context, in *emptypb.Empty, opts ...gogrpc.CallOption) (*structpb.Struct, error)
}

type tokenServiceClient struct {
	cc gogrpc.ClientConnInterface
}

func NewTokenServiceClient(cc gogrpc.ClientConnInterface) TokenServiceClient {
	return &tokenServiceClient{cc: cc}
}

func (c *tokenServiceClient) ValidateAccessToken(ctx context.Context, in *wrapperspb.StringValue, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ValidateAccessTokenMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *tokenServiceClient) GetAccount(ctx context.Context, in *emptypb.Empty, opts ...gogrpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, GetAccountMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
