package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"worklog-platform/internal/aggregate"
	"worklog-platform/internal/charts"
	"worklog-platform/internal/models"
	"worklog-platform/internal/normalize"
	"worklog-platform/internal/pnl"
	"worklog-platform/internal/reports"
	"worklog-platform/internal/repository"
	"worklog-platform/internal/tabular"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

// Export formats
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var monthPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ReportService merges stored work logs from both sources and runs them through
// aggregation, P&L and the exporters
type ReportService struct {
	repo         repository.WorkLogRepository
	defaultRates models.RateConfig
	logger       *logging.StructuredLogger
	metrics      *metrics.Collector
	now          func() time.Time
}

// Dashboard is the KPI view for one month and task selection
type Dashboard struct {
	Month string               `json:"month"`
	Task  string               `json:"task"`
	KPI   aggregate.KPISummary `json:"kpi"`
}

// ProfitAndLoss is the per-site P&L for one month
type ProfitAndLoss struct {
	Month  string            `json:"month"`
	Rows   []pnl.Row         `json:"rows"`
	Totals pnl.Row           `json:"totals"`
	Rates  models.RateConfig `json:"rates"`
}

// ExportFile is a rendered download
type ExportFile struct {
	Name        string
	ContentType string
	Body        []byte
}

// NewReportService creates a report service. defaultRates apply until rates are saved.
func NewReportService(repo repository.WorkLogRepository, defaultRates models.RateConfig, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ReportService {
	return &ReportService{
		repo:         repo,
		defaultRates: defaultRates.Clone(),
		logger:       logger,
		metrics:      metricsCollector,
		now:          time.Now,
	}
}

// ValidateMonth checks a YYYY-MM month. An empty month is accepted unless required.
func ValidateMonth(month string, required bool) error {
	if month == "" {
		if required {
			return &models.ValidationError{Field: "month", Message: "month is required (YYYY-MM)"}
		}
		return nil
	}
	if !monthPattern.MatchString(month) {
		return &models.ValidationError{Field: "month", Value: month, Message: "month must be YYYY-MM"}
	}
	return nil
}

// Records returns the normalized records of both sources for month and task,
// tabular imports first, then documents, each in insertion order
func (s *ReportService) Records(ctx context.Context, month, task string) ([]models.WorkLogRecord, error) {
	if err := ValidateMonth(month, false); err != nil {
		return nil, err
	}

	stored, err := s.repo.ListRecords(ctx, repository.RecordFilter{Month: month, TaskCode: task})
	if err != nil {
		return nil, fmt.Errorf("failed to load work logs: %w", err)
	}

	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	records := append(stored, aggregate.Filter(normalize.Normalize(docs), month, task)...)
	s.metrics.ReportRecords.Observe(float64(len(records)))
	return records, nil
}

// Dashboard computes the KPI summary for month and task
func (s *ReportService) Dashboard(ctx context.Context, month, task string) (*Dashboard, error) {
	timer := s.metrics.NewTimer(s.metrics.ReportDuration.WithLabelValues("dashboard"))
	defer timer.ObserveDuration()

	records, err := s.Records(ctx, month, task)
	if err != nil {
		return nil, err
	}

	kpi := aggregate.Compute(records)

	s.logger.Debug(ctx, "[REPORT_DASHBOARD] Dashboard computed", logging.Fields{
		"month":   month,
		"task":    task,
		"records": kpi.Count,
		"sites":   kpi.SiteCount,
	})

	return &Dashboard{Month: month, Task: task, KPI: kpi}, nil
}

// ProfitAndLoss computes per-site P&L for month using the current rates and the month's ledger
func (s *ReportService) ProfitAndLoss(ctx context.Context, month string) (*ProfitAndLoss, error) {
	timer := s.metrics.NewTimer(s.metrics.ReportDuration.WithLabelValues("pnl"))
	defer timer.ObserveDuration()

	if err := ValidateMonth(month, true); err != nil {
		return nil, err
	}

	records, err := s.Records(ctx, month, "")
	if err != nil {
		return nil, err
	}

	ledger, err := s.repo.ListLedgerEntries(ctx, month)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	rates, err := s.Rates(ctx)
	if err != nil {
		return nil, err
	}

	sites := aggregate.Compute(records).Sites
	rows := pnl.Calculate(sites, month, rates, ledger)

	s.logger.Debug(ctx, "[REPORT_PNL] P&L computed", logging.Fields{
		"month":          month,
		"sites":          len(rows),
		"ledger_entries": len(ledger),
	})

	return &ProfitAndLoss{Month: month, Rows: rows, Totals: pnl.Totals(rows), Rates: rates}, nil
}

// Export renders one of the fixed report layouts for month as csv or xlsx
func (s *ReportService) Export(ctx context.Context, kind reports.Kind, month, format string) (*ExportFile, error) {
	timer := s.metrics.NewTimer(s.metrics.ReportDuration.WithLabelValues("export_" + string(kind)))
	defer timer.ObserveDuration()

	if err := ValidateMonth(month, true); err != nil {
		return nil, err
	}
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return nil, &models.ValidationError{Field: "format", Value: format, Message: "format must be csv or xlsx"}
	}

	records, err := s.Records(ctx, month, "")
	if err != nil {
		return nil, err
	}

	var rates models.RateConfig
	if kind == reports.KindBilling {
		if rates, err = s.Rates(ctx); err != nil {
			return nil, err
		}
	}

	table, err := reports.Build(kind, records, rates)
	if err != nil {
		return nil, err
	}

	file := &ExportFile{Name: reports.FileName(kind, month, format)}
	switch format {
	case FormatXLSX:
		var buf bytes.Buffer
		if err := table.XLSX(&buf); err != nil {
			return nil, fmt.Errorf("failed to render %s: %w", kind, err)
		}
		file.ContentType = contentTypeXLSX
		file.Body = buf.Bytes()
	default:
		file.ContentType = contentTypeCSV
		file.Body = []byte(table.CSV())
	}

	s.logger.Info(ctx, "[REPORT_EXPORT] Report exported", logging.Fields{
		"kind":   string(kind),
		"month":  month,
		"format": format,
		"rows":   len(table.Rows),
	})

	return file, nil
}

// ExportWorkLogs encodes the merged records of month (all months when empty) in the import format
func (s *ReportService) ExportWorkLogs(ctx context.Context, month string) (*ExportFile, error) {
	records, err := s.Records(ctx, month, "")
	if err != nil {
		return nil, err
	}

	return &ExportFile{
		Name:        reports.WorkLogFileName(s.now().Format("2006-01-02")),
		ContentType: contentTypeCSV,
		Body:        []byte(tabular.Encode(records)),
	}, nil
}

// Chart writes the dashboard charts for month and task as HTML
func (s *ReportService) Chart(ctx context.Context, month, task string, w io.Writer) error {
	dashboard, err := s.Dashboard(ctx, month, task)
	if err != nil {
		return err
	}

	title := "Work log"
	if month != "" {
		title += " " + month
	}
	if task != "" && task != aggregate.AllTasks {
		title += " / " + task
	}

	return charts.RenderDashboard(w, title, dashboard.KPI)
}

// Rates returns the saved rate configuration, or the configured defaults when none was saved
func (s *ReportService) Rates(ctx context.Context) (models.RateConfig, error) {
	rates, err := s.repo.GetRates(ctx)
	if err != nil {
		var notFound *repository.NotFoundError
		if errors.As(err, &notFound) {
			return s.defaultRates.Clone(), nil
		}
		return models.RateConfig{}, fmt.Errorf("failed to load rates: %w", err)
	}
	return *rates, nil
}

// UpdateRates validates and saves a new rate configuration
func (s *ReportService) UpdateRates(ctx context.Context, rates models.RateConfig) (models.RateConfig, error) {
	if rates.UnitPrices == nil {
		rates.UnitPrices = map[string]float64{}
	}
	if err := rates.Validate(); err != nil {
		return models.RateConfig{}, err
	}
	if err := s.repo.SaveRates(ctx, rates); err != nil {
		return models.RateConfig{}, fmt.Errorf("failed to save rates: %w", err)
	}

	s.logger.Info(ctx, "[RATES_UPDATED] Rate configuration updated", logging.Fields{
		"hourly_wage":  rates.HourlyWage,
		"machine_rate": rates.MachineRate,
		"units":        len(rates.UnitPrices),
	})

	return s.Rates(ctx)
}

// HealthCheck reports whether the backing store is reachable
func (s *ReportService) HealthCheck(ctx context.Context) error {
	return s.repo.HealthCheck(ctx)
}
