// Package pricing implements the aggregator: it fans a quote request out to
// every configured vendor through an adaptive worker pool and streams
// results back in completion order.
package pricing

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dealcart/backend/internal/config"
	"github.com/dealcart/backend/internal/grpcutil"
	"github.com/dealcart/backend/pb"
)

const (
	defaultVendorTimeout    = 1500 * time.Millisecond
	defaultAggregateTimeout = 10 * time.Second
)

// ClientFactory builds a vendor client for one endpoint. Swapped out in
// tests for bufconn or in-process fakes.
type ClientFactory func(ep config.VendorEndpoint) (pb.VendorBackendClient, io.Closer, error)

// DialVendor is the production ClientFactory: plaintext gRPC with request-id
// propagation.
func DialVendor(ep config.VendorEndpoint) (pb.VendorBackendClient, io.Closer, error) {
	conn, err := grpc.NewClient(ep.Addr(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(grpcutil.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("dial vendor %s: %w", ep.Addr(), err)
	}
	return pb.NewVendorBackendClient(conn), conn, nil
}

// ServerConfig wires a Server. Endpoints is the fixed vendor roster.
type ServerConfig struct {
	Endpoints        []config.VendorEndpoint
	VendorTimeout    time.Duration // per-vendor call budget, default 1.5s
	AggregateTimeout time.Duration // whole-stream budget, default 10s
	Clients          ClientFactory // default DialVendor
}

type vendorClient struct {
	endpoint config.VendorEndpoint
	client   pb.VendorBackendClient
	closer   io.Closer
}

// Server implements pb.VendorPricingServer.
type Server struct {
	pb.UnimplementedVendorPricingServer

	vendors          []vendorClient
	vendorTimeout    time.Duration
	aggregateTimeout time.Duration

	pool    *Pool
	traffic *TrafficRecorder
	metrics *Metrics
	logger  zerolog.Logger
}

// NewServer connects to every configured vendor up front. A vendor that
// cannot be dialed fails construction; absorbing failures is a per-request
// policy, not a startup one.
func NewServer(cfg ServerConfig, pool *Pool, traffic *TrafficRecorder, metrics *Metrics, logger zerolog.Logger) (*Server, error) {
	if cfg.VendorTimeout <= 0 {
		cfg.VendorTimeout = defaultVendorTimeout
	}
	if cfg.AggregateTimeout <= 0 {
		cfg.AggregateTimeout = defaultAggregateTimeout
	}
	factory := cfg.Clients
	if factory == nil {
		factory = DialVendor
	}

	s := &Server{
		vendorTimeout:    cfg.VendorTimeout,
		aggregateTimeout: cfg.AggregateTimeout,
		pool:             pool,
		traffic:          traffic,
		metrics:          metrics,
		logger:           logger.With().Str("component", "pricing-server").Logger(),
	}
	for _, ep := range cfg.Endpoints {
		client, closer, err := factory(ep)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.vendors = append(s.vendors, vendorClient{endpoint: ep, client: client, closer: closer})
		s.logger.Info().Str("vendor", ep.DisplayName).Str("addr", ep.Addr()).Msg("vendor connected")
	}
	return s, nil
}

// Close releases all vendor connections.
func (s *Server) Close() {
	for _, v := range s.vendors {
		if v.closer != nil {
			v.closer.Close()
		}
	}
}

// VendorCount returns the size of the configured roster.
func (s *Server) VendorCount() int {
	return len(s.vendors)
}

// StreamQuotes fans the request out to every vendor, one pool task each, and
// emits quotes as they arrive. Each vendor appears at most once. Vendor
// failures, timeouts, and queue rejections are absorbed: the stream stays
// open for the remaining vendors and closes cleanly when all are accounted
// for, even if that means zero quotes.
func (s *Server) StreamQuotes(req *pb.QuoteRequest, stream pb.VendorPricing_StreamQuotesServer) error {
	ctx, cancel := context.WithTimeout(stream.Context(), s.aggregateTimeout)
	defer cancel()

	log := s.logger.With().
		Str("product_id", req.GetProductId()).
		Str("request_id", grpcutil.RequestID(ctx)).
		Logger()
	log.Info().Int("vendors", len(s.vendors)).Msg("quote fan-out")

	if len(s.vendors) == 0 {
		return nil
	}

	// Buffered to the roster size so vendor tasks never block on emit; the
	// single receive loop below is the only stream writer.
	results := make(chan *pb.PriceQuote, len(s.vendors))
	var wg sync.WaitGroup

	for _, v := range s.vendors {
		v := v
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			s.callVendor(ctx, v, req, results, log)
		})
		if err != nil {
			wg.Done()
			s.traffic.Record(0, false)
			if s.metrics != nil {
				s.metrics.QueueRejects.Inc()
				s.metrics.VendorCalls.WithLabelValues(v.endpoint.DisplayName, "rejected").Inc()
			}
			log.Warn().Str("vendor", v.endpoint.DisplayName).Msg("pool saturated, vendor skipped")
		}
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	sent := 0
	for quote := range results {
		if err := stream.Send(quote); err != nil {
			// Client went away; cancel in-flight vendor calls and drain so
			// the goroutine above can finish.
			cancel()
			for range results {
			}
			return err
		}
		sent++
		if s.metrics != nil {
			s.metrics.QuotesSent.Inc()
		}
	}

	log.Info().Int("quotes", sent).Msg("quote fan-out complete")
	return nil
}

func (s *Server) callVendor(ctx context.Context, v vendorClient, req *pb.QuoteRequest, results chan<- *pb.PriceQuote, log zerolog.Logger) {
	if ctx.Err() != nil {
		s.traffic.Record(0, false)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, s.vendorTimeout)
	defer cancel()

	start := time.Now()
	quote, err := v.client.GetQuote(callCtx, req)
	elapsed := time.Since(start)

	s.pool.RecordLatency(elapsed)
	s.traffic.Record(elapsed, err == nil)
	if s.metrics != nil {
		s.metrics.VendorLatency.Observe(elapsed.Seconds())
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		s.metrics.VendorCalls.WithLabelValues(v.endpoint.DisplayName, outcome).Inc()
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("vendor", v.endpoint.DisplayName).
			Dur("elapsed", elapsed).
			Msg("vendor call failed")
		return
	}

	select {
	case results <- quote:
	case <-ctx.Done():
	}
}
