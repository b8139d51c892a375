// vendor-mock runs one simulated vendor backend.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"github.com/dealcart/backend/internal/config"
	"github.com/dealcart/backend/internal/grpcutil"
	"github.com/dealcart/backend/internal/logging"
	"github.com/dealcart/backend/internal/vendor"
	"github.com/dealcart/backend/pb"
)

func main() {
	godotenv.Load()
	logger := logging.New("vendor-mock")

	port := config.GetInt("PORT", 7101)
	name := config.GetString("VENDOR_NAME", "Acme Retail")

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		logger.Fatal().Err(err).Int("port", port).Msg("listen failed")
	}

	grpcServer := grpc.NewServer(grpcutil.ServerOptions(logger)...)
	pb.RegisterVendorBackendServer(grpcServer, vendor.NewServer(name, logger))

	go func() {
		logger.Info().Int("port", port).Str("vendor", name).Msg("vendor backend listening")
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
