package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"worklog-platform/internal/models"
	"worklog-platform/internal/repository"
	"worklog-platform/internal/tabular"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

// DefaultBatchSize is used when a non-positive batch size is supplied
const DefaultBatchSize = 500

// Source kinds recorded in ingestion metrics
const (
	SourceTabular  = "tabular"
	SourceDocument = "document"
)

// IngestionService imports work logs, documents and ledger entries into the repository
type IngestionService struct {
	repo      repository.WorkLogRepository
	logger    *logging.StructuredLogger
	metrics   *metrics.Collector
	batchSize int
}

// ImportResult describes one stored import
type ImportResult struct {
	BatchID  string        `json:"batch_id"`
	Source   string        `json:"source"`
	Records  int           `json:"records"`
	Duration time.Duration `json:"duration_ns"`
}

// IngestionResult contains directory ingestion statistics
type IngestionResult struct {
	TotalFiles    int
	ImportedFiles int
	TotalRecords  int
	Batches       []ImportResult
	Duration      time.Duration
	Errors        []string
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.WorkLogRepository, batchSize int, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &IngestionService{
		repo:      repo,
		logger:    logger,
		metrics:   metricsCollector,
		batchSize: batchSize,
	}
}

// ImportWorkLogs decodes a work-log export and stores every record under a new batch id.
// Records are written in chunks of the batch size inside one import, so a failure stores nothing.
// A header that does not match the fixed schema stores nothing and returns *models.SchemaMismatchError.
func (s *IngestionService) ImportWorkLogs(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	startTime := time.Now()

	data, err := io.ReadAll(r)
	if err != nil {
		s.metrics.RecordIngestionError("read_error")
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	records, err := tabular.DecodeWorkLogs(string(data))
	if err != nil {
		s.metrics.RecordIngestionError("schema_mismatch")
		s.logger.Warn(ctx, "[INGEST_REJECTED] Work-log header rejected", logging.Fields{
			"source": source,
			"error":  err.Error(),
		})
		return nil, err
	}

	result := &ImportResult{BatchID: uuid.NewString(), Source: source}
	log := s.logger.WithFields(logging.Fields{"batch_id": result.BatchID, "source": source})

	log.Info(ctx, "[INGEST_START] Importing work logs", logging.Fields{
		"records":    len(records),
		"batch_size": s.batchSize,
	})

	err = s.repo.SaveImport(ctx, result.BatchID, source, func(w repository.RecordWriter) error {
		for start := 0; start < len(records); start += s.batchSize {
			end := start + s.batchSize
			if end > len(records) {
				end = len(records)
			}

			if err := w.WriteRecords(ctx, records[start:end]); err != nil {
				log.Error(ctx, "[INGEST_ERROR] Failed to store batch", logging.Fields{
					"offset": start,
				}, err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordIngestionError("storage_error")
		return nil, fmt.Errorf("failed to store records: %w", err)
	}

	for start := 0; start < len(records); start += s.batchSize {
		s.metrics.RecordIngested(SourceTabular, min(s.batchSize, len(records)-start))
	}
	result.Records = len(records)

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	log.Info(ctx, "[INGEST_COMPLETE] Work logs imported", logging.Fields{
		"records":     result.Records,
		"duration_ms": result.Duration.Milliseconds(),
	})

	return result, nil
}

// IngestDirectory imports every *.csv work-log file in dir, in name order.
// A failing file is recorded in the result and does not stop the others.
func (s *IngestionService) IngestDirectory(ctx context.Context, dir string) (*IngestionResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[INGEST_START] Starting directory ingestion", logging.Fields{
		"data_dir":   dir,
		"batch_size": s.batchSize,
		"stage":      "INITIALIZATION",
	})

	files, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no work-log files found in %s", dir)
	}
	sort.Strings(files)

	result := &IngestionResult{TotalFiles: len(files), Errors: make([]string, 0)}

	s.logger.Info(ctx, "[INGEST_FILES] Found work-log files", logging.Fields{
		"file_count": len(files),
		"stage":      "FILE_DISCOVERY",
	})

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := s.importFile(ctx, path)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("failed to ingest %s: %v", path, err))
			s.logger.Error(ctx, "[INGEST_FILE_ERROR] File ingestion failed", logging.Fields{
				"file_path": path,
				"stage":     "FILE_PROCESSING",
			}, err)
			s.metrics.RecordIngestionError("file_error")
			continue
		}

		result.ImportedFiles++
		result.TotalRecords += batch.Records
		result.Batches = append(result.Batches, *batch)
	}

	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[INGEST_COMPLETE] Directory ingestion completed", logging.Fields{
		"total_files":      result.TotalFiles,
		"imported_files":   result.ImportedFiles,
		"total_records":    result.TotalRecords,
		"duration_seconds": result.Duration.Seconds(),
		"error_count":      len(result.Errors),
		"stage":            "COMPLETE",
	})

	return result, nil
}

func (s *IngestionService) importFile(ctx context.Context, path string) (*ImportResult, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return s.ImportWorkLogs(ctx, file, filepath.Base(path))
}

// ImportLedger decodes a cost ledger export and stores its entries
func (s *IngestionService) ImportLedger(ctx context.Context, r io.Reader, source string) (*ImportResult, error) {
	startTime := time.Now()

	data, err := io.ReadAll(r)
	if err != nil {
		s.metrics.RecordIngestionError("read_error")
		return nil, fmt.Errorf("failed to read %s: %w", source, err)
	}

	entries, err := tabular.DecodeLedger(string(data))
	if err != nil {
		s.metrics.RecordIngestionError("ledger_schema_mismatch")
		s.logger.Warn(ctx, "[LEDGER_REJECTED] Ledger header rejected", logging.Fields{
			"source": source,
			"error":  err.Error(),
		})
		return nil, err
	}

	result := &ImportResult{BatchID: uuid.NewString(), Source: source, Records: len(entries)}
	if err := s.repo.SaveLedgerEntries(ctx, result.BatchID, entries); err != nil {
		s.metrics.RecordIngestionError("storage_error")
		return nil, fmt.Errorf("failed to store ledger entries: %w", err)
	}
	s.metrics.LedgerEntriesTotal.Add(float64(len(entries)))
	result.Duration = time.Since(startTime)

	s.logger.Info(ctx, "[LEDGER_IMPORTED] Cost ledger imported", logging.Fields{
		"batch_id":    result.BatchID,
		"source":      source,
		"entries":     len(entries),
		"duration_ms": result.Duration.Milliseconds(),
	})

	return result, nil
}

// StoreDocuments stores raw documents as they arrive from the document store.
// They are normalized when reports read them.
func (s *IngestionService) StoreDocuments(ctx context.Context, docs []map[string]interface{}) (*ImportResult, error) {
	if len(docs) == 0 {
		return nil, &models.ValidationError{Field: "documents", Message: "at least one document is required"}
	}
	for i, doc := range docs {
		if doc == nil {
			return nil, &models.ValidationError{Field: "documents", Value: fmt.Sprint(i), Message: "document must be an object"}
		}
	}

	result := &ImportResult{BatchID: uuid.NewString(), Source: SourceDocument, Records: len(docs)}
	if err := s.repo.SaveDocuments(ctx, result.BatchID, docs); err != nil {
		s.metrics.RecordIngestionError("storage_error")
		return nil, fmt.Errorf("failed to store documents: %w", err)
	}
	s.metrics.RecordIngested(SourceDocument, len(docs))

	s.logger.Info(ctx, "[DOCS_STORED] Documents stored", logging.Fields{
		"batch_id": result.BatchID,
		"count":    len(docs),
	})

	return result, nil
}

// IsSchemaMismatch reports whether err carries a rejected import header
func IsSchemaMismatch(err error) bool {
	var mismatch *models.SchemaMismatchError
	return errors.As(err, &mismatch)
}
