// checkout runs the checkout engine: Start/GetStatus gRPC over the
// in-memory order store and the saga workflow.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/dealcart/backend/internal/checkout"
	"github.com/dealcart/backend/internal/config"
	"github.com/dealcart/backend/internal/grpcutil"
	"github.com/dealcart/backend/internal/logging"
	"github.com/dealcart/backend/pb"
)

func main() {
	godotenv.Load()
	logger := logging.New("checkout")

	port := config.GetInt("PORT", 7002)
	ttl := config.GetDurationMs("CHECKOUT_TTL_MS", 30*time.Minute)

	store := checkout.NewStore(ttl, logger)
	defer store.Close()
	engine := checkout.NewEngine(checkout.DefaultEngineConfig(), checkout.NewInventoryLedger(), logger)
	server := checkout.NewServer(store, engine, logger)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Fatal().Err(err).Int("port", port).Msg("listen failed")
	}
	grpcServer := grpc.NewServer(grpcutil.ServerOptions(logger)...)
	pb.RegisterCheckoutServer(grpcServer, server)

	go func() {
		logger.Info().Int("port", port).Dur("order_ttl", ttl).Msg("checkout engine listening")
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal().Err(err).Msg("grpc serve failed")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down")
	grpcServer.GracefulStop()
}
