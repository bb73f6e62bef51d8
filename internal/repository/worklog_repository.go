package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"worklog-platform/internal/models"
	"worklog-platform/pkg/database"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

// WorkLogRepository provides data access for work logs, the cost ledger and rates
type WorkLogRepository interface {
	// Work-log operations. Both store everything or nothing.
	SaveRecords(ctx context.Context, batchID, source string, records []models.WorkLogRecord) error
	SaveImport(ctx context.Context, batchID, source string, fn func(w RecordWriter) error) error
	ListRecords(ctx context.Context, filter RecordFilter) ([]models.WorkLogRecord, error)

	// Document store operations. Documents are kept raw and normalized on read.
	SaveDocuments(ctx context.Context, batchID string, docs []map[string]interface{}) error
	ListDocuments(ctx context.Context) ([]map[string]interface{}, error)

	// Ledger operations
	SaveLedgerEntries(ctx context.Context, batchID string, entries []models.CostLedgerEntry) error
	ListLedgerEntries(ctx context.Context, month string) ([]models.CostLedgerEntry, error)

	// Rate operations
	GetRates(ctx context.Context) (*models.RateConfig, error)
	SaveRates(ctx context.Context, rates models.RateConfig) error

	// Utility operations
	HealthCheck(ctx context.Context) error
}

// RecordWriter accepts the chunks of one import. Nothing written is visible
// until the enclosing SaveImport returns nil.
type RecordWriter interface {
	WriteRecords(ctx context.Context, records []models.WorkLogRecord) error
}

// RecordFilter restricts stored tabular records. Empty fields match everything;
// TaskCode "all" matches every task.
type RecordFilter struct {
	Month    string
	TaskCode string
}

func (f RecordFilter) matches(r models.WorkLogRecord) bool {
	if f.Month != "" && r.Month() != f.Month {
		return false
	}
	if f.TaskCode != "" && f.TaskCode != allTasks && r.TaskCode != f.TaskCode {
		return false
	}
	return true
}

const allTasks = "all"

// buildRecordQuery renders the SELECT for filter, keeping insertion order
func buildRecordQuery(filter RecordFilter) (string, []interface{}) {
	query := "SELECT " + strings.Join(models.Columns, ", ") + " FROM worklog_records WHERE 1=1"
	args := []interface{}{}
	argNum := 1

	if filter.Month != "" {
		query += fmt.Sprintf(" AND substring(work_date FROM 1 FOR 7) = $%d", argNum)
		args = append(args, filter.Month)
		argNum++
	}

	if filter.TaskCode != "" && filter.TaskCode != allTasks {
		query += fmt.Sprintf(" AND task_code = $%d", argNum)
		args = append(args, filter.TaskCode)
	}

	query += " ORDER BY id"
	return query, args
}

// buildRecordInsert renders the positional INSERT for one record plus batch id and source
func buildRecordInsert() string {
	placeholders := make([]string, len(models.Columns)+2)
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return "INSERT INTO worklog_records (batch_id, source, " + strings.Join(models.Columns, ", ") +
		") VALUES (" + strings.Join(placeholders, ", ") + ")"
}

// postgresRepository implements WorkLogRepository on PostgreSQL
type postgresRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewPostgresRepository creates a PostgreSQL-backed repository
func NewPostgresRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) WorkLogRepository {
	return &postgresRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// SaveRecords inserts records in a single transaction
func (r *postgresRepository) SaveRecords(ctx context.Context, batchID, source string, records []models.WorkLogRecord) error {
	if len(records) == 0 {
		return nil
	}
	return r.SaveImport(ctx, batchID, source, func(w RecordWriter) error {
		return w.WriteRecords(ctx, records)
	})
}

// SaveImport runs fn inside one transaction; any error from fn rolls back every chunk it wrote
func (r *postgresRepository) SaveImport(ctx context.Context, batchID, source string, fn func(w RecordWriter) error) error {
	timer := time.Now()
	var count int

	err := r.db.WithTx(ctx, "insert_records", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, buildRecordInsert())
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		w := &txRecordWriter{stmt: stmt, batchID: batchID, source: source}
		if err := fn(w); err != nil {
			return err
		}
		count = w.count
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save records: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Work-log import stored", logging.Fields{
		"batch_id":    batchID,
		"count":       count,
		"duration_ms": time.Since(timer).Milliseconds(),
	})
	return nil
}

type txRecordWriter struct {
	stmt    *sql.Stmt
	batchID string
	source  string
	count   int
}

func (w *txRecordWriter) WriteRecords(ctx context.Context, records []models.WorkLogRecord) error {
	for _, rec := range records {
		args := append([]interface{}{w.batchID, w.source}, rec.Values()...)
		if _, err := w.stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
		w.count++
	}
	return nil
}

// ListRecords returns stored tabular records matching filter in insertion order
func (r *postgresRepository) ListRecords(ctx context.Context, filter RecordFilter) ([]models.WorkLogRecord, error) {
	query, args := buildRecordQuery(filter)

	var records []models.WorkLogRecord
	if err := r.db.SelectContext(ctx, "list_records", &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

// SaveDocuments stores raw documents as JSONB
func (r *postgresRepository) SaveDocuments(ctx context.Context, batchID string, docs []map[string]interface{}) error {
	if len(docs) == 0 {
		return nil
	}

	err := r.db.WithTx(ctx, "insert_documents", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO worklog_documents (batch_id, body) VALUES ($1, $2)`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, doc := range docs {
			body, err := json.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, batchID, body); err != nil {
				return fmt.Errorf("failed to insert document: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save documents: %w", err)
	}

	r.logger.Debug(ctx, "[REPO_DOC_INSERT] Documents stored", logging.Fields{
		"batch_id": batchID,
		"count":    len(docs),
	})

	return nil
}

// ListDocuments streams every stored document in insertion order
func (r *postgresRepository) ListDocuments(ctx context.Context) ([]map[string]interface{}, error) {
	rows, err := r.db.QueryContext(ctx, "list_documents", `SELECT body FROM worklog_documents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs, err := r.scanDocuments(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// bodyRows is the cursor scanDocuments reads JSON bodies from
type bodyRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanDocuments decodes one document per row, skipping bodies that are not JSON objects
func (r *postgresRepository) scanDocuments(ctx context.Context, rows bodyRows) ([]map[string]interface{}, error) {
	docs := make([]map[string]interface{}, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
			if err == nil {
				err = fmt.Errorf("document body is not an object")
			}
			r.metrics.RecordDBError("document_decode_error")
			r.logger.Warn(ctx, "[REPO_DOC_SKIP] Skipping undecodable document", logging.Fields{
				"error": err.Error(),
			})
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SaveLedgerEntries inserts ledger entries in a single transaction
func (r *postgresRepository) SaveLedgerEntries(ctx context.Context, batchID string, entries []models.CostLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	err := r.db.WithTx(ctx, "insert_ledger", func(tx *sqlx.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO cost_ledger (batch_id, entry_date, site_id, account, amount, note)
			VALUES ($1, $2, $3, $4, $5, $6)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, batchID, e.Date, e.SiteID, e.Account, e.Amount, e.Note); err != nil {
				return fmt.Errorf("failed to insert ledger entry: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save ledger entries: %w", err)
	}

	return nil
}

// ListLedgerEntries returns ledger entries dated in month, or all entries when month is empty
func (r *postgresRepository) ListLedgerEntries(ctx context.Context, month string) ([]models.CostLedgerEntry, error) {
	query := `
		SELECT id, entry_date, site_id, account, amount, note
		FROM cost_ledger
	`
	args := []interface{}{}
	if month != "" {
		query += " WHERE substring(entry_date FROM 1 FOR 7) = $1"
		args = append(args, month)
	}
	query += " ORDER BY id"

	var entries []models.CostLedgerEntry
	if err := r.db.SelectContext(ctx, "list_ledger", &entries, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}

	return entries, nil
}

type rateRow struct {
	HourlyWage  float64   `db:"hourly_wage"`
	MachineRate float64   `db:"machine_rate"`
	UnitPrices  []byte    `db:"unit_prices"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// GetRates returns the stored rate configuration
func (r *postgresRepository) GetRates(ctx context.Context) (*models.RateConfig, error) {
	query := `
		SELECT hourly_wage, machine_rate, unit_prices, updated_at
		FROM rate_config
		WHERE id = 1
	`

	var row rateRow
	err := r.db.GetContext(ctx, "get_rates", &row, query)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotFoundError{Resource: "rate_config", ID: "1"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rates: %w", err)
	}

	rates := &models.RateConfig{
		HourlyWage:  row.HourlyWage,
		MachineRate: row.MachineRate,
		UnitPrices:  map[string]float64{},
		UpdatedAt:   row.UpdatedAt,
	}
	if err := json.Unmarshal(row.UnitPrices, &rates.UnitPrices); err != nil {
		return nil, fmt.Errorf("failed to decode unit prices: %w", err)
	}

	return rates, nil
}

// SaveRates replaces the stored rate configuration
func (r *postgresRepository) SaveRates(ctx context.Context, rates models.RateConfig) error {
	prices, err := json.Marshal(rates.Clone().UnitPrices)
	if err != nil {
		return fmt.Errorf("failed to encode unit prices: %w", err)
	}

	query := `
		INSERT INTO rate_config (id, hourly_wage, machine_rate, unit_prices, updated_at)
		VALUES (1, $1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET
			hourly_wage = EXCLUDED.hourly_wage,
			machine_rate = EXCLUDED.machine_rate,
			unit_prices = EXCLUDED.unit_prices,
			updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, "upsert_rates", query, rates.HourlyWage, rates.MachineRate, prices); err != nil {
		return fmt.Errorf("failed to save rates: %w", err)
	}

	r.logger.Info(ctx, "[REPO_RATES] Rate configuration saved", logging.Fields{
		"hourly_wage":  rates.HourlyWage,
		"machine_rate": rates.MachineRate,
		"units":        len(rates.UnitPrices),
	})

	return nil
}

// HealthCheck performs a repository health check
func (r *postgresRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}
