package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"worklog-platform/internal/config"
	"worklog-platform/internal/handlers"
	"worklog-platform/internal/repository"
	"worklog-platform/internal/services"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("worklog-api", version, cfg.LogLevel())
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting work-log platform API server", logging.Fields{
		"version":        version,
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"storage_driver": cfg.Storage.Driver,
		"db_host":        cfg.Database.Host,
		"db_name":        cfg.Database.Database,
	})

	metricsCollector := metrics.NewCollector("worklog_platform", prometheus.DefaultRegisterer)

	repo, closeRepo, err := repository.Open(cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to open storage", logging.Fields{}, err)
	}
	defer closeRepo()

	ingestionService := services.NewIngestionService(repo, cfg.Ingestion.BatchSize, logger, metricsCollector)
	reportService := services.NewReportService(repo, cfg.Rates, logger, metricsCollector)

	workLogHandler := handlers.NewWorkLogHandler(
		ingestionService,
		reportService,
		int64(cfg.Server.MaxUploadMB)<<20,
		logger,
		metricsCollector,
	)

	router := mux.NewRouter()
	workLogHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
