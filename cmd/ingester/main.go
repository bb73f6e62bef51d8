package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"worklog-platform/internal/config"
	"worklog-platform/internal/repository"
	"worklog-platform/internal/services"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

const version = "1.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Flags override the configured ingestion settings
	dataDir := flag.String("data-dir", cfg.Ingestion.Directory, "Directory containing work-log CSV exports")
	ledgerFile := flag.String("ledger", cfg.Ingestion.LedgerFile, "Cost ledger CSV to import after the work logs")
	batchSize := flag.Int("batch-size", cfg.Ingestion.BatchSize, "Number of records stored per batch")
	flag.Parse()

	cfg.Ingestion.BatchSize = *batchSize
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("worklog-ingester", version, cfg.LogLevel())
	defer logger.Sync()

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting work-log ingestion", logging.Fields{
		"version":    version,
		"data_dir":   *dataDir,
		"ledger":     *ledgerFile,
		"batch_size": *batchSize,
	})

	metricsCollector := metrics.NewCollector("worklog_ingester", prometheus.NewRegistry())

	repo, closeRepo, err := repository.Open(cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to open storage", logging.Fields{}, err)
	}
	defer closeRepo()

	ingestionService := services.NewIngestionService(repo, *batchSize, logger, metricsCollector)

	result, err := ingestionService.IngestDirectory(ctx, *dataDir)
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"data_dir": *dataDir,
		}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Total Files:        %d\n", result.TotalFiles)
	fmt.Printf("Imported Files:     %d\n", result.ImportedFiles)
	fmt.Printf("Total Records:      %d\n", result.TotalRecords)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.TotalRecords)/secs)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("\nErrors (%d):\n", len(result.Errors))
		for i, errMsg := range result.Errors {
			if i < 10 {
				fmt.Printf("  - %s\n", errMsg)
			}
		}
		if len(result.Errors) > 10 {
			fmt.Printf("  ... and %d more errors\n", len(result.Errors)-10)
		}
	}

	if *ledgerFile != "" {
		fmt.Println("\n" + strings.Repeat("=", 80))
		fmt.Println("IMPORTING COST LEDGER")
		fmt.Println(strings.Repeat("=", 80))

		if err := importLedger(ctx, ingestionService, *ledgerFile); err != nil {
			logger.Error(ctx, "[LEDGER_ERROR] Ledger import failed", logging.Fields{"ledger": *ledgerFile}, err)
			fmt.Printf("Ledger import failed: %v\n", err)
		}
	}

	logger.Info(ctx, "[INGESTER_COMPLETE] Ingestion completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"imported_files":   result.ImportedFiles,
		"total_records":    result.TotalRecords,
		"error_count":      len(result.Errors),
		"duration_seconds": result.Duration.Seconds(),
	})

	if len(result.Errors) > 0 {
		closeRepo()
		logger.Sync()
		os.Exit(2)
	}
}

func importLedger(ctx context.Context, ingestionService *services.IngestionService, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	result, err := ingestionService.ImportLedger(ctx, file, path)
	if err != nil {
		return err
	}

	fmt.Printf("Ledger Entries:     %d\n", result.Records)
	return nil
}
