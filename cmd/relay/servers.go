package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"kline-relay/src/config"
	pb "kline-relay/src/grpc_control"
	"kline-relay/src/logger"
	"kline-relay/src/metrics"
	"kline-relay/src/relay"
	"kline-relay/src/server"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"
)

const shutdownTimeout = 10 * time.Second

// -----------------------------------------------------------------------------

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	appLogger := logger.NewLogger(cfg, cfg.Name)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// 1. Components
	db := setupDatabase(ctx, cfg, appLogger)
	if db != nil {
		defer db.Close()
	}
	networkManager := setupNetwork(cfg)
	sources := setupDataSources(cfg, networkManager)
	pairs := setupCatalog(cfg, sources.rest, db)
	kr := setupRelay(cfg, sources.stream)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := kr.Run(ctx); err != nil {
			appLogger.Error("Relay stopped: %v", err)
		}
	}()

	// 2. Listeners
	srv := server.NewRelayServer(cfg.MConfig, kr, sources.rest, pairs, logger.NewLogger(cfg, "RelayServer"))
	grpcServer, err := startServers(srv, kr, cfg, appLogger)
	if err != nil {
		cancel()
		wg.Wait()
		return err
	}
	metricsServer := metrics.Serve(cfg.MetricsAddr)
	appLogger.Info("Metrics listening on %s", cfg.MetricsAddr)

	// 3. Wait for a signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		appLogger.Info("Received %s, shutting down", sig)
	case <-ctx.Done():
	}

	// 4. Shutdown: sessions first, then the upstream stream
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	if err := srv.Stop(shutdownCtx); err != nil {
		appLogger.Error("Server shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Metrics shutdown: %v", err)
	}

	cancel()
	wg.Wait()
	appLogger.Info("Shutdown complete")
	return nil
}

// -----------------------------------------------------------------------------

// startServers launches the HTTP/websocket server and the gRPC control server.
func startServers(srv *server.RelayServer, kr *relay.Relay, cfg *config.Config, appLogger *logger.Logger) (*grpc.Server, error) {

	// 1. Relay HTTP server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Critical("Server failed: %v", err)
		}
	}()

	// 2. gRPC Control Server
	port := grpcPort(cfg)
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.GrpcHost, port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen for gRPC: %w", err)
	}
	grpcServer := grpc.NewServer()
	pb.RegisterRelayControlServer(grpcServer, pb.NewControlService(kr, logger.NewLogger(cfg, "ControlService")))
	// Enable server reflection for local dev tooling.
	reflection.Register(grpcServer)

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Critical("failed to serve gRPC: %v", err)
		}
	}()
	return grpcServer, nil
}
