// vendor-pricing runs the pricing aggregator: the StreamQuotes gRPC service
// plus the metrics HTTP server on port+1000.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"google.golang.org/grpc"

	"github.com/dealcart/backend/internal/config"
	"github.com/dealcart/backend/internal/grpcutil"
	"github.com/dealcart/backend/internal/logging"
	"github.com/dealcart/backend/internal/pricing"
	"github.com/dealcart/backend/pb"
)

func main() {
	godotenv.Load()
	logger := logging.New("vendor-pricing")

	port := config.GetInt("PORT", 7001)

	endpoints, errs := config.Vendors()
	for _, err := range errs {
		logger.Warn().Err(err).Msg("vendor config entry skipped")
	}
	if len(endpoints) == 0 {
		logger.Fatal().Msg("no vendors configured, set VENDORS or VENDORS_FILE")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	metrics := pricing.NewMetrics(reg)

	pool := pricing.NewPool(pricing.PoolConfig{
		MinWorkers:    config.GetInt("ADAPTIVE_MIN", 8),
		MaxWorkers:    config.GetInt("ADAPTIVE_MAX", 64),
		Step:          config.GetInt("ADAPTIVE_STEP", 8),
		QueueCapacity: config.GetInt("ADAPTIVE_QUEUE", 2048),
		TargetP95:     config.GetDurationMs("TARGET_P95_MS", 250*time.Millisecond),
		LowerP95:      config.GetDurationMs("LOWER_P95_MS", 200*time.Millisecond),
		LatencyWindow: config.GetInt("LAT_WINDOW", 2000),
	}, logger, metrics)
	pool.Start()

	traffic := pricing.NewTrafficRecorder()
	sys := pricing.NewSystemMetrics()

	server, err := pricing.NewServer(pricing.ServerConfig{
		Endpoints:        endpoints,
		VendorTimeout:    config.GetDurationMs("VENDOR_TIMEOUT_MS", 1500*time.Millisecond),
		AggregateTimeout: config.GetDurationMs("AGGREGATE_TIMEOUT_MS", 10*time.Second),
	}, pool, traffic, metrics, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("vendor connections failed")
	}
	defer server.Close()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Fatal().Err(err).Int("port", port).Msg("listen failed")
	}
	grpcServer := grpc.NewServer(grpcutil.ServerOptions(logger)...)
	pb.RegisterVendorPricingServer(grpcServer, server)

	metricsAddr := fmt.Sprintf(":%d", port+1000)
	metricsServer := pricing.NewMetricsServer(metricsAddr,
		pricing.MetricsHandler(traffic, pool, sys, reg, logger))

	go func() {
		logger.Info().Str("addr", metricsAddr).Msg("metrics http listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics http failed")
		}
	}()
	go func() {
		logger.Info().Int("port", port).Int("vendors", server.VendorCount()).Msg("pricing aggregator listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("grpc serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	grpcServer.GracefulStop()
	pool.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsServer.Shutdown(ctx)
}
