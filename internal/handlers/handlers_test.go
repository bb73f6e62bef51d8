package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"worklog-platform/internal/models"
	"worklog-platform/internal/repository"
	"worklog-platform/internal/services"
	"worklog-platform/internal/tabular"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type unreachableRepo struct {
	*repository.MemoryRepository
}

func (unreachableRepo) HealthCheck(ctx context.Context) error {
	return errors.New("connection refused")
}

func newTestRouter(t *testing.T, repo repository.WorkLogRepository) *mux.Router {
	t.Helper()
	logger := logging.NewNop()
	m := metrics.NewNop()
	defaults := models.RateConfig{HourlyWage: 2000, MachineRate: 3000, UnitPrices: map[string]float64{"ha": 50000}}

	handler := NewWorkLogHandler(
		services.NewIngestionService(repo, 100, logger, m),
		services.NewReportService(repo, defaults, logger, m),
		1<<20,
		logger,
		m,
	)

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func sampleCSV() string {
	return tabular.Encode([]models.WorkLogRecord{
		{WorkDate: "2025-08-01", WorkerID: "W01", SiteID: "A", TaskCode: "下刈り", OutputUnit: "ha", OutputValue: 2, WorkTimeMin: 480, KYCheck: true, Incident: models.IncidentNone},
		{WorkDate: "2025-08-02", WorkerID: "W01", SiteID: "A", TaskCode: "下刈り", OutputUnit: "ha", OutputValue: 1, WorkTimeMin: 240, Incident: models.IncidentMinor},
	})
}

func do(router http.Handler, method, target string, body []byte, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func importSample(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(router, http.MethodPost, "/api/v1/worklogs/import?source=sample.csv", []byte(sampleCSV()), "text/csv")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestImportWorkLogs_RawBody(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())

	rec := do(router, http.MethodPost, "/api/v1/worklogs/import?source=sample.csv", []byte(sampleCSV()), "text/csv")

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var result services.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Records)
	assert.Equal(t, "sample.csv", result.Source)
}

func TestImportWorkLogs_Multipart(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "august.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleCSV()))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	rec := do(router, http.MethodPost, "/api/v1/worklogs/import", body.Bytes(), form.FormDataContentType())

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var result services.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "august.csv", result.Source)
}

func TestImportWorkLogs_SchemaMismatch(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())

	rec := do(router, http.MethodPost, "/api/v1/worklogs/import", []byte("date,worker\n2025-08-01,W01\n"), "text/csv")

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Contains(t, resp.Missing, "work_date")
}

func TestUploads_BodyTooLarge(t *testing.T) {
	padding := strings.Repeat("x", 1<<20)
	oversizedCSV := []byte(sampleCSV() + padding)
	oversizedJSON := []byte(`{"hourly_wage": 2000, "note": "` + padding + `"}`)

	tests := []struct {
		name        string
		method      string
		target      string
		body        []byte
		contentType string
	}{
		{"worklog import", http.MethodPost, "/api/v1/worklogs/import", oversizedCSV, "text/csv"},
		{"ledger import", http.MethodPost, "/api/v1/ledger/import", oversizedCSV, "text/csv"},
		{"documents", http.MethodPost, "/api/v1/worklogs/documents", oversizedJSON, "application/json"},
		{"rates", http.MethodPut, "/api/v1/rates", oversizedJSON, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewMemoryRepository()
			router := newTestRouter(t, repo)

			rec := do(router, tt.method, tt.target, tt.body, tt.contentType)

			require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code, rec.Body.String())
			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)

			records, err := repo.ListRecords(context.Background(), repository.RecordFilter{})
			require.NoError(t, err)
			assert.Empty(t, records)
		})
	}
}

func TestStoreDocuments(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())

	tests := []struct {
		name     string
		body     string
		wantCode int
	}{
		{"array", `[{"work_date":"2025-08-03","site_id":"B","work_time_min":"480"}]`, http.StatusCreated},
		{"wrapped", `{"documents":[{"work_date":"2025-08-03","site_id":"B"}]}`, http.StatusCreated},
		{"empty", `[]`, http.StatusBadRequest},
		{"invalid json", `{"documents":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/v1/worklogs/documents", []byte(tt.body), "application/json")
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
		})
	}
}

func TestGetDashboard(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())
	importSample(t, router)

	rec := do(router, http.MethodGet, "/api/v1/dashboard?month=2025-08&task=all", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var dashboard services.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dashboard))
	assert.Equal(t, "2025-08", dashboard.Month)
	assert.Equal(t, 2, dashboard.KPI.Count)
	assert.Equal(t, 12.0, dashboard.KPI.WorkerHours)
	assert.Equal(t, "ha", dashboard.KPI.SingleUnit)

	rec = do(router, http.MethodGet, "/api/v1/dashboard?month=August", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProfitAndLoss(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())
	importSample(t, router)

	rec := do(router, http.MethodGet, "/api/v1/pnl", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/pnl?month=2025-08", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var result services.ProfitAndLoss
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "A", result.Rows[0].SiteID)
	assert.Equal(t, 150000.0, result.Rows[0].Revenue)
	assert.Equal(t, 24000.0, result.Rows[0].LaborCost)
}

func TestGetReport(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())
	importSample(t, router)

	rec := do(router, http.MethodGet, "/api/v1/reports/billing?month=2025-08", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=billing_2025-08.csv`, rec.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), tabular.BOM+"site_id,unit,quantity,unit_price,amount\n"))
	assert.Contains(t, rec.Body.String(), "A,ha,3.0,50000,150000\n")

	rec = do(router, http.MethodGet, "/api/v1/reports/timesheet?month=2025-08&format=XLSX", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "timesheet_2025-08.xlsx")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")))

	rec = do(router, http.MethodGet, "/api/v1/reports/payroll?month=2025-08", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/reports/billing?month=2025-08&format=pdf", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportWorkLogs_RoundTrip(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())
	importSample(t, router)

	rec := do(router, http.MethodGet, "/api/v1/worklogs/export?month=2025-08", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	records, err := tabular.DecodeWorkLogs(rec.Body.String())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRates(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())

	rec := do(router, http.MethodGet, "/api/v1/rates", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rates models.RateConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rates))
	assert.Equal(t, 2000.0, rates.HourlyWage)

	rec = do(router, http.MethodPut, "/api/v1/rates", []byte(`{"hourly_wage":2500,"machine_rate":4000,"unit_prices":{"本":300}}`), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rates))
	assert.Equal(t, 2500.0, rates.HourlyWage)
	assert.Equal(t, 300.0, rates.UnitPrice("本"))

	rec = do(router, http.MethodPut, "/api/v1/rates", []byte(`{"hourly_wage":-1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodPut, "/api/v1/rates", []byte(`{"hourly":1}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTasks(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())

	rec := do(router, http.MethodGet, "/api/v1/tasks", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []models.TaskOption
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tasks))
	assert.Equal(t, models.TaskOptions, tasks)
}

func TestGetDashboardChart(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())
	importSample(t, router)

	rec := do(router, http.MethodGet, "/api/v1/charts/dashboard?month=2025-08", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "echarts")
	assert.Contains(t, rec.Body.String(), "Work log 2025-08")
}

func TestHealthCheck(t *testing.T) {
	rec := do(newTestRouter(t, repository.NewMemoryRepository()), http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	rec = do(newTestRouter(t, unreachableRepo{repository.NewMemoryRepository()}), http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"unhealthy"`)
}

func TestOpenAPISpec(t *testing.T) {
	router := newTestRouter(t, repository.NewMemoryRepository())

	rec := do(router, http.MethodGet, "/api/docs/openapi.json", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var spec struct {
		Paths map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	for _, path := range []string{"/api/v1/worklogs/import", "/api/v1/pnl", "/api/v1/reports/{kind}", "/health"} {
		assert.Contains(t, spec.Paths, path)
	}

	rec = do(router, http.MethodGet, "/api/docs", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Work Log Platform API Documentation")
}
