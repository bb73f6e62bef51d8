package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"worklog-platform/internal/models"
	"worklog-platform/internal/reports"
	"worklog-platform/internal/repository"
	"worklog-platform/internal/services"
	"worklog-platform/pkg/logging"
	"worklog-platform/pkg/metrics"
)

const uploadField = "file"

// WorkLogHandler handles the work-log API endpoints
type WorkLogHandler struct {
	ingestion      *services.IngestionService
	reports        *services.ReportService
	logger         *logging.StructuredLogger
	metrics        *metrics.Collector
	maxUploadBytes int64
}

// NewWorkLogHandler creates a new work-log handler
func NewWorkLogHandler(
	ingestion *services.IngestionService,
	reportService *services.ReportService,
	maxUploadBytes int64,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *WorkLogHandler {
	return &WorkLogHandler{
		ingestion:      ingestion,
		reports:        reportService,
		logger:         logger,
		metrics:        metricsCollector,
		maxUploadBytes: maxUploadBytes,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Code    int      `json:"code"`
	Missing []string `json:"missing,omitempty"`
}

// documentBatch is the wrapped form accepted by POST /api/v1/worklogs/documents
type documentBatch struct {
	Documents []map[string]interface{} `json:"documents"`
}

// ImportWorkLogs handles POST /api/v1/worklogs/import
func (h *WorkLogHandler) ImportWorkLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, source, err := h.readUpload(w, r)
	if err != nil {
		h.sendBodyError(w, r, err)
		return
	}
	defer body.Close()

	result, err := h.ingestion.ImportWorkLogs(ctx, body, source)
	if err != nil {
		h.handleError(w, r, "[API_IMPORT_ERROR] Work-log import failed", err)
		return
	}

	h.sendJSON(w, result, http.StatusCreated)
}

// StoreDocuments handles POST /api/v1/worklogs/documents.
// The body is either a JSON array of documents or {"documents": [...]}.
func (h *WorkLogHandler) StoreDocuments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		h.sendBodyError(w, r, fmt.Errorf("failed to read request body: %w", err))
		return
	}

	var docs []map[string]interface{}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &docs)
	} else {
		var batch documentBatch
		err = json.Unmarshal(trimmed, &batch)
		docs = batch.Documents
	}
	if err != nil {
		h.sendError(w, r, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.ingestion.StoreDocuments(ctx, docs)
	if err != nil {
		h.handleError(w, r, "[API_DOCS_ERROR] Document store failed", err)
		return
	}

	h.sendJSON(w, result, http.StatusCreated)
}

// ExportWorkLogs handles GET /api/v1/worklogs/export
func (h *WorkLogHandler) ExportWorkLogs(w http.ResponseWriter, r *http.Request) {
	file, err := h.reports.ExportWorkLogs(r.Context(), trimmedQuery(r, "month"))
	if err != nil {
		h.handleError(w, r, "[API_EXPORT_ERROR] Work-log export failed", err)
		return
	}

	h.sendFile(w, file)
}

// ImportLedger handles POST /api/v1/ledger/import
func (h *WorkLogHandler) ImportLedger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, source, err := h.readUpload(w, r)
	if err != nil {
		h.sendBodyError(w, r, err)
		return
	}
	defer body.Close()

	result, err := h.ingestion.ImportLedger(ctx, body, source)
	if err != nil {
		h.handleError(w, r, "[API_LEDGER_ERROR] Ledger import failed", err)
		return
	}

	h.sendJSON(w, result, http.StatusCreated)
}

// GetDashboard handles GET /api/v1/dashboard
func (h *WorkLogHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.reports.Dashboard(r.Context(), trimmedQuery(r, "month"), trimmedQuery(r, "task"))
	if err != nil {
		h.handleError(w, r, "[API_DASHBOARD_ERROR] Dashboard failed", err)
		return
	}

	h.sendJSON(w, dashboard, http.StatusOK)
}

// GetProfitAndLoss handles GET /api/v1/pnl
func (h *WorkLogHandler) GetProfitAndLoss(w http.ResponseWriter, r *http.Request) {
	result, err := h.reports.ProfitAndLoss(r.Context(), trimmedQuery(r, "month"))
	if err != nil {
		h.handleError(w, r, "[API_PNL_ERROR] P&L failed", err)
		return
	}

	h.sendJSON(w, result, http.StatusOK)
}

// GetReport handles GET /api/v1/reports/{kind}
func (h *WorkLogHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	kind, err := reports.ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		h.handleError(w, r, "[API_REPORT_ERROR] Unknown report", err)
		return
	}

	file, err := h.reports.Export(r.Context(), kind, trimmedQuery(r, "month"), strings.ToLower(trimmedQuery(r, "format")))
	if err != nil {
		h.handleError(w, r, "[API_REPORT_ERROR] Report export failed", err)
		return
	}

	h.sendFile(w, file)
}

// GetDashboardChart handles GET /api/v1/charts/dashboard
func (h *WorkLogHandler) GetDashboardChart(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.reports.Chart(r.Context(), trimmedQuery(r, "month"), trimmedQuery(r, "task"), &buf); err != nil {
		h.handleError(w, r, "[API_CHART_ERROR] Chart rendering failed", err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// GetRates handles GET /api/v1/rates
func (h *WorkLogHandler) GetRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.reports.Rates(r.Context())
	if err != nil {
		h.handleError(w, r, "[API_RATES_ERROR] Failed to load rates", err)
		return
	}

	h.sendJSON(w, rates, http.StatusOK)
}

// UpdateRates handles PUT /api/v1/rates
func (h *WorkLogHandler) UpdateRates(w http.ResponseWriter, r *http.Request) {
	var rates models.RateConfig
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&rates); err != nil {
		h.sendBodyError(w, r, fmt.Errorf("invalid JSON body: %w", err))
		return
	}

	saved, err := h.reports.UpdateRates(r.Context(), rates)
	if err != nil {
		h.handleError(w, r, "[API_RATES_ERROR] Failed to update rates", err)
		return
	}

	h.sendJSON(w, saved, http.StatusOK)
}

// GetTasks handles GET /api/v1/tasks
func (h *WorkLogHandler) GetTasks(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, models.TaskOptions, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *WorkLogHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	code := http.StatusOK
	if err := h.reports.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Storage unreachable", logging.Fields{"error": err.Error()})
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// readUpload returns the uploaded file from a multipart form field "file", or the raw body otherwise.
// The source name is the uploaded file name, the "source" query parameter, or "upload".
func (h *WorkLogHandler) readUpload(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	source := r.URL.Query().Get("source")
	if source == "" {
		source = "upload"
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, source, nil
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		return nil, "", fmt.Errorf("multipart upload requires a %q field: %w", uploadField, err)
	}
	if header.Filename != "" {
		source = header.Filename
	}
	return file, source, nil
}

// handleError maps service errors onto HTTP status codes
func (h *WorkLogHandler) handleError(w http.ResponseWriter, r *http.Request, logMessage string, err error) {
	ctx := r.Context()

	var (
		mismatch   *models.SchemaMismatchError
		validation *models.ValidationError
		unknown    *reports.UnknownKindError
		notFound   *repository.NotFoundError
		tooLarge   *http.MaxBytesError
	)

	switch {
	case errors.As(err, &tooLarge):
		h.metrics.RecordAPIError("body_too_large", r.URL.Path)
		h.sendError(w, r, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), http.StatusRequestEntityTooLarge)
	case errors.As(err, &mismatch):
		h.metrics.RecordAPIError("schema_mismatch", r.URL.Path)
		h.sendErrorResponse(w, r, ErrorResponse{
			Error:   http.StatusText(http.StatusUnprocessableEntity),
			Message: mismatch.Error(),
			Code:    http.StatusUnprocessableEntity,
			Missing: mismatch.Missing,
		})
	case errors.As(err, &validation):
		h.metrics.RecordAPIError("validation", r.URL.Path)
		h.sendError(w, r, validation.Error(), http.StatusBadRequest)
	case errors.As(err, &unknown):
		h.metrics.RecordAPIError("not_found", r.URL.Path)
		h.sendError(w, r, unknown.Error(), http.StatusNotFound)
	case errors.As(err, &notFound):
		h.metrics.RecordAPIError("not_found", r.URL.Path)
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
	default:
		h.logger.Error(ctx, logMessage, logging.Fields{
			"path":   r.URL.Path,
			"method": r.Method,
		}, err)
		h.metrics.RecordAPIError("internal_error", r.URL.Path)
		h.sendError(w, r, "internal server error", http.StatusInternalServerError)
	}
}

// sendBodyError answers a request whose body could not be read: 413 past the upload limit, 400 otherwise
func (h *WorkLogHandler) sendBodyError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.handleError(w, r, "[API_BODY_ERROR] Request body too large", err)
		return
	}
	h.sendError(w, r, err.Error(), http.StatusBadRequest)
}

// sendJSON sends a JSON response
func (h *WorkLogHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn(context.Background(), "[API_WRITE_ERROR] Failed to encode response", logging.Fields{"error": err.Error()})
	}
}

// sendFile sends a rendered export as an attachment
func (h *WorkLogHandler) sendFile(w http.ResponseWriter, file *services.ExportFile) {
	w.Header().Set("Content-Type", file.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Body)
}

// sendError sends an error response
func (h *WorkLogHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.sendErrorResponse(w, r, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func (h *WorkLogHandler) sendErrorResponse(w http.ResponseWriter, r *http.Request, response ErrorResponse) {
	h.sendJSON(w, response, response.Code)
}

// instrument records request metrics and attaches a request id to the context
func (h *WorkLogHandler) instrument(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		r = r.WithContext(logging.WithRequestID(r.Context(), requestID))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
		h.metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(rec.status))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// RegisterRoutes registers all work-log API routes
func (h *WorkLogHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/worklogs/import", h.instrument("/api/v1/worklogs/import", h.ImportWorkLogs)).Methods("POST")
	api.HandleFunc("/worklogs/documents", h.instrument("/api/v1/worklogs/documents", h.StoreDocuments)).Methods("POST")
	api.HandleFunc("/worklogs/export", h.instrument("/api/v1/worklogs/export", h.ExportWorkLogs)).Methods("GET")
	api.HandleFunc("/ledger/import", h.instrument("/api/v1/ledger/import", h.ImportLedger)).Methods("POST")
	api.HandleFunc("/dashboard", h.instrument("/api/v1/dashboard", h.GetDashboard)).Methods("GET")
	api.HandleFunc("/pnl", h.instrument("/api/v1/pnl", h.GetProfitAndLoss)).Methods("GET")
	api.HandleFunc("/reports/{kind}", h.instrument("/api/v1/reports", h.GetReport)).Methods("GET")
	api.HandleFunc("/charts/dashboard", h.instrument("/api/v1/charts/dashboard", h.GetDashboardChart)).Methods("GET")
	api.HandleFunc("/rates", h.instrument("/api/v1/rates", h.GetRates)).Methods("GET")
	api.HandleFunc("/rates", h.instrument("/api/v1/rates", h.UpdateRates)).Methods("PUT")
	api.HandleFunc("/tasks", h.instrument("/api/v1/tasks", h.GetTasks)).Methods("GET")

	router.HandleFunc("/health", h.instrument("/health", h.HealthCheck)).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
}

// trimmedQuery returns a query parameter with surrounding spaces removed
func trimmedQuery(r *http.Request, key string) string {
	return strings.TrimSpace(r.URL.Query().Get(key))
}
