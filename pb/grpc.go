package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Service bindings for the three DealCart services, in the classic generated
// shape (ServiceDesc + typed stream wrappers) so the rest of the codebase
// programs against plain interfaces.

// VendorBackendClient calls a single vendor simulator.
type VendorBackendClient interface {
	GetQuote(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*PriceQuote, error)
}

type vendorBackendClient struct {
	cc grpc.ClientConnInterface
}

func NewVendorBackendClient(cc grpc.ClientConnInterface) VendorBackendClient {
	return &vendorBackendClient{cc}
}

func (c *vendorBackendClient) GetQuote(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (*PriceQuote, error) {
	out := new(PriceQuote)
	if err := c.cc.Invoke(ctx, "/dealcart.v1.VendorBackend/GetQuote", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// VendorBackendServer is implemented by the vendor simulator.
type VendorBackendServer interface {
	GetQuote(context.Context, *QuoteRequest) (*PriceQuote, error)
}

type UnimplementedVendorBackendServer struct{}

func (UnimplementedVendorBackendServer) GetQuote(context.Context, *QuoteRequest) (*PriceQuote, error) {
	return nil, status.Error(codes.Unimplemented, "method GetQuote not implemented")
}

func RegisterVendorBackendServer(s grpc.ServiceRegistrar, srv VendorBackendServer) {
	s.RegisterService(&VendorBackend_ServiceDesc, srv)
}

func _VendorBackend_GetQuote_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QuoteRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(VendorBackendServer).GetQuote(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/dealcart.v1.VendorBackend/GetQuote",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(VendorBackendServer).GetQuote(ctx, req.(*QuoteRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var VendorBackend_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "dealcart.v1.VendorBackend",
	HandlerType: (*VendorBackendServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetQuote",
			Handler:    _VendorBackend_GetQuote_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pb/dealcart.proto",
}

// VendorPricingClient consumes the fan-out quote stream.
type VendorPricingClient interface {
	StreamQuotes(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (VendorPricing_StreamQuotesClient, error)
}

type vendorPricingClient struct {
	cc grpc.ClientConnInterface
}

func NewVendorPricingClient(cc grpc.ClientConnInterface) VendorPricingClient {
	return &vendorPricingClient{cc}
}

func (c *vendorPricingClient) StreamQuotes(ctx context.Context, in *QuoteRequest, opts ...grpc.CallOption) (VendorPricing_StreamQuotesClient, error) {
	stream, err := c.cc.NewStream(ctx, &VendorPricing_ServiceDesc.Streams[0], "/dealcart.v1.VendorPricing/StreamQuotes", opts...)
	if err != nil {
		return nil, err
	}
	x := &vendorPricingStreamQuotesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type VendorPricing_StreamQuotesClient interface {
	Recv() (*PriceQuote, error)
	grpc.ClientStream
}

type vendorPricingStreamQuotesClient struct {
	grpc.ClientStream
}

func (x *vendorPricingStreamQuotesClient) Recv() (*PriceQuote, error) {
	m := new(PriceQuote)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// VendorPricingServer is implemented by the pricing aggregator.
type VendorPricingServer interface {
	StreamQuotes(*QuoteRequest, VendorPricing_StreamQuotesServer) error
}

type UnimplementedVendorPricingServer struct{}

func (UnimplementedVendorPricingServer) StreamQuotes(*QuoteRequest, VendorPricing_StreamQuotesServer) error {
	return status.Error(codes.Unimplemented, "method StreamQuotes not implemented")
}

type VendorPricing_StreamQuotesServer interface {
	Send(*PriceQuote) error
	grpc.ServerStream
}

type vendorPricingStreamQuotesServer struct {
	grpc.ServerStream
}

func (x *vendorPricingStreamQuotesServer) Send(m *PriceQuote) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterVendorPricingServer(s grpc.ServiceRegistrar, srv VendorPricingServer) {
	s.RegisterService(&VendorPricing_ServiceDesc, srv)
}

func _VendorPricing_StreamQuotes_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(QuoteRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(VendorPricingServer).StreamQuotes(m, &vendorPricingStreamQuotesServer{stream})
}

var VendorPricing_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "dealcart.v1.VendorPricing",
	HandlerType: (*VendorPricingServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamQuotes",
			Handler:       _VendorPricing_StreamQuotes_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "pb/dealcart.proto",
}

// CheckoutClient starts checkouts and follows their status feed.
type CheckoutClient interface {
	Start(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error)
	GetStatus(ctx context.Context, in *CheckoutStatusRequest, opts ...grpc.CallOption) (Checkout_GetStatusClient, error)
}

type checkoutClient struct {
	cc grpc.ClientConnInterface
}

func NewCheckoutClient(cc grpc.ClientConnInterface) CheckoutClient {
	return &checkoutClient{cc}
}

func (c *checkoutClient) Start(ctx context.Context, in *CheckoutRequest, opts ...grpc.CallOption) (*CheckoutResponse, error) {
	out := new(CheckoutResponse)
	if err := c.cc.Invoke(ctx, "/dealcart.v1.Checkout/Start", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *checkoutClient) GetStatus(ctx context.Context, in *CheckoutStatusRequest, opts ...grpc.CallOption) (Checkout_GetStatusClient, error) {
	stream, err := c.cc.NewStream(ctx, &Checkout_ServiceDesc.Streams[0], "/dealcart.v1.Checkout/GetStatus", opts...)
	if err != nil {
		return nil, err
	}
	x := &checkoutGetStatusClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type Checkout_GetStatusClient interface {
	Recv() (*NodeStatus, error)
	grpc.ClientStream
}

type checkoutGetStatusClient struct {
	grpc.ClientStream
}

func (x *checkoutGetStatusClient) Recv() (*NodeStatus, error) {
	m := new(NodeStatus)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CheckoutServer is implemented by the checkout engine.
type CheckoutServer interface {
	Start(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
	GetStatus(*CheckoutStatusRequest, Checkout_GetStatusServer) error
}

type UnimplementedCheckoutServer struct{}

func (UnimplementedCheckoutServer) Start(context.Context, *CheckoutRequest) (*CheckoutResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Start not implemented")
}

func (UnimplementedCheckoutServer) GetStatus(*CheckoutStatusRequest, Checkout_GetStatusServer) error {
	return status.Error(codes.Unimplemented, "method GetStatus not implemented")
}

type Checkout_GetStatusServer interface {
	Send(*NodeStatus) error
	grpc.ServerStream
}

type checkoutGetStatusServer struct {
	grpc.ServerStream
}

func (x *checkoutGetStatusServer) Send(m *NodeStatus) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterCheckoutServer(s grpc.ServiceRegistrar, srv CheckoutServer) {
	s.RegisterService(&Checkout_ServiceDesc, srv)
}

func _Checkout_Start_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CheckoutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(CheckoutServer).Start(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/dealcart.v1.Checkout/Start",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(CheckoutServer).Start(ctx, req.(*CheckoutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Checkout_GetStatus_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(CheckoutStatusRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CheckoutServer).GetStatus(m, &checkoutGetStatusServer{stream})
}

var Checkout_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "dealcart.v1.Checkout",
	HandlerType: (*CheckoutServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Start",
			Handler:    _Checkout_Start_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "GetStatus",
			Handler:       _Checkout_GetStatus_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "pb/dealcart.proto",
}
