package repository

import (
	"context"
	"fmt"

	"worklog-platform/internal/config"
	"worklog-platform/pkg/database"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

// Open builds the repository selected by cfg.Storage.Driver. For postgres the
// embedded migrations are applied before the repository is returned.
// The returned close function releases the connection pool.
func Open(cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (WorkLogRepository, func() error, error) {
	ctx := context.Background()

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		logger.Warn(ctx, "[STORAGE_INIT] Using in-memory storage, data is lost on exit", logging.Fields{})
		return NewMemoryRepository(), func() error { return nil }, nil

	case config.DriverPostgres:
		db, err := database.NewPostgresDB(cfg.Database.Connection(), logger, metricsCollector)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		return NewPostgresRepository(db, logger, metricsCollector), db.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %q", cfg.Storage.Driver)
	}
}
