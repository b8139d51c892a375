// edge-gateway terminates browser HTTP and bridges it onto the pricing and
// checkout gRPC services.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/dealcart/backend/internal/config"
	"github.com/dealcart/backend/internal/gateway"
	"github.com/dealcart/backend/internal/grpcutil"
	"github.com/dealcart/backend/internal/logging"
	"github.com/dealcart/backend/pb"
)

func dial(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithChainUnaryInterceptor(grpcutil.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(grpcutil.StreamClientInterceptor()),
	)
}

func main() {
	godotenv.Load()
	logger := logging.New("edge-gateway")

	port := config.GetInt("PORT", 8080)
	pricingAddr := config.GetString("PRICING_ADDR", "localhost:7001")
	checkoutAddr := config.GetString("CHECKOUT_ADDR", "localhost:7002")

	pricingConn, err := dial(pricingAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", pricingAddr).Msg("dial pricing failed")
	}
	defer pricingConn.Close()
	checkoutConn, err := dial(checkoutAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", checkoutAddr).Msg("dial checkout failed")
	}
	defer checkoutConn.Close()

	var limiter *gateway.TokenBucket
	if config.GetBool("RATE_LIMIT_ENABLED", true) {
		qps, _ := strconv.ParseFloat(config.GetString("RATE_LIMIT_QPS", "50"), 64)
		if qps <= 0 {
			qps = 50
		}
		limiter = gateway.NewTokenBucket(qps)
		logger.Info().Float64("qps", qps).Msg("rate limiting enabled")
	}

	server := gateway.NewServer(gateway.Config{},
		pb.NewVendorPricingClient(pricingConn),
		pb.NewCheckoutClient(checkoutConn),
		limiter,
		gateway.NewMetrics(prometheus.NewRegistry()),
		logger)

	httpServer := gateway.NewHTTPServer(fmt.Sprintf(":%d", port), server.Router())

	go func() {
		logger.Info().
			Int("port", port).
			Str("pricing", pricingAddr).
			Str("checkout", checkoutAddr).
			Msg("edge gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}
