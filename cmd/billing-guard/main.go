package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mikey/llm-billing-guard/internal/config"
	"github.com/mikey/llm-billing-guard/internal/core"
	"github.com/mikey/llm-billing-guard/internal/di"
	"github.com/mikey/llm-billing-guard/internal/ports"
)

func main() {
	// Credentials may come from a local .env file
	_ = godotenv.Load()

	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	cfg *config.Config,
	gw ports.MessageGateway,
	classifier core.Classifier,
	cache core.DomainCache,
	vendors core.VendorRepository,
	audit core.AuditRepository,
	registry *prometheus.Registry,
) error {
	defer logger.Sync()

	// Start the gateway
	if err := gw.Start(); err != nil {
		logger.Error("Failed to start gateway", zap.Error(err))
		return err
	}

	// Serve metrics when enabled
	var metricsServer *http.Server
	metricsCfg := cfg.GetMetrics()
	if metricsCfg.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{Addr: metricsCfg.ListenAddress, Handler: mux}

		go func() {
			logger.Info("Metrics server starting", zap.String("address", metricsCfg.ListenAddress))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("Metrics server error", zap.Error(err))
			}
		}()
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Info("Shutting down...")

	// Stop the gateway
	if err := gw.Stop(); err != nil {
		logger.Error("Failed to stop gateway", zap.Error(err))
	}

	// Stop the metrics server
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Error("Failed to stop metrics server", zap.Error(err))
		}
	}

	// Close any resources that need closing
	if closer, ok := classifier.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}

	// Stop the domain cache if needed
	if stopper, ok := cache.(interface{ Stop() }); ok {
		stopper.Stop()
	}

	// Close the stores
	if closer, ok := vendors.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close vendor store", zap.Error(err))
		}
	}
	if closer, ok := audit.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close audit store", zap.Error(err))
		}
	}

	logger.Info("Shutdown complete")
	return nil
}
