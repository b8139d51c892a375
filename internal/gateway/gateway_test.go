package gateway

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/dealcart/backend/pb"
)

// Shared fakes for the handler tests: in-process client streams that play
// back canned frames and then EOF (or a terminal error).

type fakeQuoteRecvStream struct {
	grpc.ClientStream
	quotes []*pb.PriceQuote
	err    error // returned after the quotes, instead of io.EOF
	idx    int
}

func (f *fakeQuoteRecvStream) Recv() (*pb.PriceQuote, error) {
	if f.idx < len(f.quotes) {
		q := f.quotes[f.idx]
		f.idx++
		return q, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, io.EOF
}

type fakePricingClient struct {
	quotes  []*pb.PriceQuote
	openErr error
	recvErr error
}

func (f *fakePricingClient) StreamQuotes(ctx context.Context, in *pb.QuoteRequest, opts ...grpc.CallOption) (pb.VendorPricing_StreamQuotesClient, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeQuoteRecvStream{quotes: f.quotes, err: f.recvErr}, nil
}

type fakeStatusRecvStream struct {
	grpc.ClientStream
	events []*pb.NodeStatus
	err    error
	idx    int
}

func (f *fakeStatusRecvStream) Recv() (*pb.NodeStatus, error) {
	if f.idx < len(f.events) {
		ev := f.events[f.idx]
		f.idx++
		return ev, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	return nil, io.EOF
}

type fakeCheckoutClient struct {
	mu       sync.Mutex
	startReq *pb.CheckoutRequest

	startResp *pb.CheckoutResponse
	startErr  error

	statusEvents []*pb.NodeStatus
	statusErr    error // delivered on Recv, as gRPC does
}

func (f *fakeCheckoutClient) Start(ctx context.Context, in *pb.CheckoutRequest, opts ...grpc.CallOption) (*pb.CheckoutResponse, error) {
	f.mu.Lock()
	f.startReq = in
	f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	return f.startResp, nil
}

func (f *fakeCheckoutClient) GetStatus(ctx context.Context, in *pb.CheckoutStatusRequest, opts ...grpc.CallOption) (pb.Checkout_GetStatusClient, error) {
	return &fakeStatusRecvStream{events: f.statusEvents, err: f.statusErr}, nil
}

func (f *fakeCheckoutClient) lastStart() *pb.CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.startReq
}

func testServer(pricing pb.VendorPricingClient, checkout pb.CheckoutClient, limiter *TokenBucket) *Server {
	return NewServer(Config{}, pricing, checkout, limiter, nil, zerolog.Nop())
}

func quoteFrom(vendorID, vendorName string, cents int64) *pb.PriceQuote {
	return &pb.PriceQuote{
		VendorId:      vendorID,
		VendorName:    vendorName,
		ProductId:     "sku-1",
		Price:         &pb.Money{CurrencyCode: "USD", AmountCents: cents},
		EstimatedDays: 3,
		TimestampMs:   1700000000000,
	}
}
