package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"worklog-platform/internal/models"
)

// MemoryRepository is an in-process WorkLogRepository used by the offline CLI,
// the memory storage driver and tests
type MemoryRepository struct {
	mu        sync.RWMutex
	records   []models.WorkLogRecord
	documents [][]byte
	ledger    []models.CostLedgerEntry
	rates     *models.RateConfig
	nextID    int64
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// SaveRecords appends records
func (m *MemoryRepository) SaveRecords(ctx context.Context, batchID, source string, records []models.WorkLogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

// SaveImport stages every chunk fn writes and appends them only when fn succeeds
func (m *MemoryRepository) SaveImport(ctx context.Context, batchID, source string, fn func(w RecordWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := &stagedRecords{}
	if err := fn(staged); err != nil {
		return err
	}
	return m.SaveRecords(ctx, batchID, source, staged.records)
}

type stagedRecords struct {
	records []models.WorkLogRecord
}

func (s *stagedRecords) WriteRecords(ctx context.Context, records []models.WorkLogRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.records = append(s.records, records...)
	return nil
}

// ListRecords returns a copy of the records matching filter in insertion order
func (m *MemoryRepository) ListRecords(ctx context.Context, filter RecordFilter) ([]models.WorkLogRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.WorkLogRecord, 0, len(m.records))
	for _, r := range m.records {
		if filter.matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// SaveDocuments stores each document as JSON so later mutation by the caller has no effect
func (m *MemoryRepository) SaveDocuments(ctx context.Context, batchID string, docs []map[string]interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded := make([][]byte, 0, len(docs))
	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		encoded = append(encoded, body)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.documents = append(m.documents, encoded...)
	return nil
}

// ListDocuments decodes every stored document in insertion order
func (m *MemoryRepository) ListDocuments(ctx context.Context) ([]map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]map[string]interface{}, 0, len(m.documents))
	for _, body := range m.documents {
		var doc map[string]interface{}
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// SaveLedgerEntries appends entries, assigning ids
func (m *MemoryRepository) SaveLedgerEntries(ctx context.Context, batchID string, entries []models.CostLedgerEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.nextID++
		e.ID = m.nextID
		m.ledger = append(m.ledger, e)
	}
	return nil
}

// ListLedgerEntries returns entries dated in month, or every entry when month is empty
func (m *MemoryRepository) ListLedgerEntries(ctx context.Context, month string) ([]models.CostLedgerEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.CostLedgerEntry, 0, len(m.ledger))
	for _, e := range m.ledger {
		if month == "" || e.Month() == month {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetRates returns a copy of the stored rates
func (m *MemoryRepository) GetRates(ctx context.Context) (*models.RateConfig, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.rates == nil {
		return nil, &NotFoundError{Resource: "rate_config", ID: "1"}
	}
	rates := m.rates.Clone()
	return &rates, nil
}

// SaveRates replaces the stored rates
func (m *MemoryRepository) SaveRates(ctx context.Context, rates models.RateConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stored := rates.Clone()
	stored.UpdatedAt = time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rates = &stored
	return nil
}

// HealthCheck always succeeds
func (m *MemoryRepository) HealthCheck(ctx context.Context) error {
	return ctx.Err()
}
