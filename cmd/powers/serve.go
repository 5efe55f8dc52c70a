package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/powers-protocol/powers/internal/application/layout"
	"github.com/powers-protocol/powers/internal/application/orchestrator"
	"github.com/powers-protocol/powers/internal/application/session"
	"github.com/powers-protocol/powers/internal/application/workers"
	"github.com/powers-protocol/powers/internal/config"
	"github.com/powers-protocol/powers/pkg/adapters/chain/ethereum"
	"github.com/powers-protocol/powers/pkg/adapters/metrics/prometheus"
	"github.com/powers-protocol/powers/pkg/adapters/staticdata"
	"github.com/powers-protocol/powers/pkg/api/grpc"
	"github.com/powers-protocol/powers/pkg/api/http"
	"github.com/powers-protocol/powers/pkg/api/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the deployment API and worker pool",
	Long: `Starts the HTTP, WebSocket and gRPC servers together with the worker pool
that executes queued deployments. Configuration is read from the environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	logger := initLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting Powers service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime))

	ctx := context.Background()
	b, err := openBackends(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer b.Close(logger)

	endpoints, err := cfg.Chain.Endpoints()
	if err != nil {
		return err
	}
	clients, err := ethereum.NewFactory(endpoints, cfg.Chain.PrivateKey, cfg.Chain.ReceiptPollInterval, logger)
	if err != nil {
		return fmt.Errorf("failed to create chain clients: %w", err)
	}
	defer clients.Close()

	staticData := staticdata.NewSource(cfg.Chain.StaticDataURL, logger)
	metricsCollector := prometheus.NewCollector(nil)
	validator := orchestrator.NewValidator()

	manager := orchestrator.NewManager(
		b.eventBus,
		b.deployments,
		staticData,
		metricsCollector,
		validator,
		logger,
		cfg.Timeouts.QueueTimeout,
	)

	executor := orchestrator.NewExecutor(orchestrator.ExecutorConfig{
		Storage:       b.deployments,
		EventBus:      b.eventBus,
		Clients:       clients,
		Validator:     validator,
		Metrics:       metricsCollector,
		Logger:        logger,
		IndexingDelay: cfg.Chain.IndexingDelay,
		Timeout:       cfg.Timeouts.DeploymentTimeout,
	})

	workerPool := workers.NewPool(
		cfg.Workers.PoolSize,
		b.eventBus,
		executor,
		metricsCollector,
		logger,
		cfg.Workers.HealthCheckInterval,
	)
	workerPool.Health().SetStallAfter(cfg.Timeouts.DeploymentTimeout)
	if err := workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	layouts := layout.NewService(layout.Config{
		Store:        b.layouts,
		Metrics:      metricsCollector,
		Logger:       logger,
		Debounce:     cfg.Layout.Debounce,
		WriteTimeout: cfg.Timeouts.LayoutWrite,
	})

	httpServer := http.NewServer(&http.Config{
		Port:     cfg.HTTPPort,
		Manager:  manager,
		Layouts:  layouts,
		Sessions: session.NewRegistry(cfg.Timeouts.SessionIdle, logger),
		Health:   workerPool.Health(),
		Logger:   logger,
	})
	httpServer.SetupWebSocket(websocket.NewHandler(b.eventBus, manager, logger))

	grpcServer, err := grpc.NewServer(&grpc.Config{
		Port:   cfg.GRPCPort,
		Health: workerPool.Health(),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	serverErrors := make(chan error, 2)
	go func() { serverErrors <- httpServer.Start() }()
	go func() { serverErrors <- grpcServer.Start() }()

	logger.Info("Powers service started",
		zap.Int("http_port", cfg.HTTPPort),
		zap.Int("grpc_port", cfg.GRPCPort),
		zap.Int("worker_pool_size", cfg.Workers.PoolSize),
		zap.String("storage", cfg.Storage))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-serverErrors:
		logger.Error("server failed", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("gRPC server shutdown error", zap.Error(err))
	}
	if err := workerPool.Shutdown(shutdownCtx); err != nil {
		logger.Error("worker pool shutdown error", zap.Error(err))
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		logger.Error("manager shutdown error", zap.Error(err))
	}
	layouts.Flush()

	logger.Info("Powers service shut down complete")
	return runErr
}
