package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fekuna/omnipos-pricing-service/config"
	"github.com/fekuna/omnipos-pricing-service/internal/app"
	ingestionListenerPkg "github.com/fekuna/omnipos-pricing-service/internal/ingestion/listener"
	"github.com/fekuna/omnipos-pricing-service/internal/insight/sweeper"
	"github.com/fekuna/omnipos-pricing-service/pkg/middleware"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const serviceName = "omnipos.pricing.v1.PricingService"

func main() {
	// 1. Load Configuration
	_ = godotenv.Load() // Load .env file if it exists
	cfg := config.LoadEnv()

	// 2. Initialize Logger
	appLogger := app.NewLogger(cfg)
	defer appLogger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 3. Connect infrastructure and build use cases
	a, err := app.New(ctx, cfg, appLogger, app.Options{
		Redis:    true,
		Search:   true,
		Producer: true,
		Consumer: true,
	})
	if err != nil {
		appLogger.Fatal("Could not initialize service", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			appLogger.Error("Error closing resources", zap.Error(err))
		}
	}()

	// 4. Provision price partitions ahead of the write path
	if cfg.Partitions.ProvisionOnStart {
		if err := a.ProvisionPartitions(ctx); err != nil {
			appLogger.Fatal("Could not provision price partitions", zap.Error(err))
		}
	}

	// 5. Start background workers
	if a.Consumer != nil {
		batchListener := ingestionListenerPkg.NewScrapeBatchListener(a.Consumer, a.Ingestion, appLogger)
		go batchListener.Start(ctx)
	} else {
		appLogger.Warn("Kafka disabled, scrape batches only accepted through cmd/ingest")
	}

	if cfg.Insight.SweepInterval > 0 {
		insightSweeper := sweeper.NewSweeper(a.Insights, cfg.Insight.SweepInterval, appLogger)
		go insightSweeper.Start(ctx)
	}

	// 6. Start gRPC Server
	port := cfg.Server.GRPCPort
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	lis, err := net.Listen("tcp", port)
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(middleware.ContextInterceptor(appLogger)),
	)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)

	// Register Reflection
	reflection.Register(grpcServer)

	appLogger.Info("Starting gRPC server", zap.String("port", port))

	// Graceful Shutdown
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	healthServer.Shutdown()
	cancel()
	grpcServer.GracefulStop()
	appLogger.Info("Server stopped")
}
