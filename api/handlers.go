/*
handlers.go - HTTP API handlers for the shift allowance engine

PURPOSE:
  Exposes the allowance services via REST API. Handles HTTP request and
  response, JSON serialization, and delegates to the service layer.

ENDPOINTS:
  Reports:
    POST   /api/client-summary             Period -> client -> department -> employee
    POST   /api/client-summary/download    Same, as xlsx/csv/pdf
    POST   /api/client-comparison          One client, month by month
    GET    /api/interval-summary           Keyed by payroll month

  Dashboard:
    POST   /api/dashboard/top-clients      Top N clients per period
    POST   /api/dashboard/horizontal-bar   Head count and days per shift
    POST   /api/dashboard/pie-chart        Days and allowance per client
    POST   /api/dashboard/vertical-bar     Allowance per client
    GET    /api/dashboard/graph            One client's year, month by month
    GET    /api/dashboard/clients          Client names
    GET    /api/dashboard/departments      Departments per client

  Search:
    POST   /api/search                     Filtered, paginated employee rows

  Writes:
    POST   /api/uploads                    Ingest a batch of records
    GET    /api/uploads                    Recent batches
    PUT    /api/shifts/{emp}/{duration}/{payroll}  Replace one record's shifts
    GET    /api/rates                      Rate table
    PUT    /api/rates                      Create or replace a rate

  Misc:
    GET    /api/latest-month               Cached latest duration month
    GET    /api/health                     Database ping

REQUEST FLOW:
  1. Decode JSON (or query parameters)
  2. Validate struct tags
  3. Call the service
  4. Convert to DTOs (rounding happens here)
  5. Map errors to status codes

ERROR HANDLING:
  Errors are returned as JSON {"error", "details"}:
  - 400: allowance.IsClientError, validation failures, rejected uploads
  - 404: allowance.IsNotFound
  - 500: Everything else (logged)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/export"
	"github.com/warp/shift-allowance/service"
	"github.com/warp/shift-allowance/store/sqlite"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *service.Service
	Store   *sqlite.Store

	log      *zap.Logger
	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. A nil logger discards output.
func NewHandler(store *sqlite.Store, svc *service.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service:  svc,
		Store:    store,
		log:      logger.Named("api"),
		validate: newValidator(),
	}
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ClientSummary returns the aggregated forest for the requested periods.
func (h *Handler) ClientSummary(w http.ResponseWriter, r *http.Request) {
	var req ClientSummaryRequest
	if !h.decode(w, r, &req) {
		return
	}

	summary, err := h.Service.ClientSummary(r.Context(), service.SummaryRequest{
		Criteria:   req.criteria(),
		Clients:    req.Clients,
		WithDeltas: req.WithDeltas,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to build client summary", err)
		return
	}

	writeJSON(w, http.StatusOK, toForestDTO(summary.Forest, summary.Deltas, h.Service.Aliases()))
}

// DownloadClientSummary writes the client summary as a file. The format
// comes from the body or the ?format= query parameter.
func (h *Handler) DownloadClientSummary(w http.ResponseWriter, r *http.Request) {
	var req ClientSummaryRequest
	if !h.decode(w, r, &req) {
		return
	}
	if q := r.URL.Query().Get("format"); q != "" {
		req.Format = q
	}
	format, err := export.ParseFormat(req.Format)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid export format", err)
		return
	}

	summary, err := h.Service.ClientSummary(r.Context(), service.SummaryRequest{
		Criteria: req.criteria(),
		Clients:  req.Clients,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to build client summary", err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, "Client Summary", export.SummaryRows(summary.Forest)); err != nil {
		h.writeServiceError(w, "Failed to export client summary", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="client-summary.%s"`, format))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// ClientComparison compares one client's departments month by month.
func (h *Handler) ClientComparison(w http.ResponseWriter, r *http.Request) {
	var req ComparisonRequest
	if !h.decode(w, r, &req) {
		return
	}

	cmp, err := h.Service.ClientComparison(r.Context(), service.ComparisonRequest{
		Client:     req.ClientName,
		StartMonth: req.StartMonth,
		EndMonth:   req.EndMonth,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to compare client", err)
		return
	}

	writeJSON(w, http.StatusOK, toComparisonDTO(cmp))
}

// IntervalSummary aggregates by payroll month.
func (h *Handler) IntervalSummary(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := h.Service.IntervalSummary(r.Context(), q.Get("start_month"), q.Get("end_month"))
	if err != nil {
		h.writeServiceError(w, "Failed to build interval summary", err)
		return
	}

	writeJSON(w, http.StatusOK, toForestDTO(f, nil, h.Service.Aliases()))
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

func (h *Handler) TopClients(w http.ResponseWriter, r *http.Request) {
	var req DashboardRequest
	if !h.decode(w, r, &req) {
		return
	}

	periods, err := h.Service.TopClients(r.Context(), req.criteria(), req.Top)
	if err != nil {
		h.writeServiceError(w, "Failed to rank clients", err)
		return
	}

	dtos := make([]PeriodClientsDTO, len(periods))
	for i, p := range periods {
		dtos[i] = PeriodClientsDTO{
			Period:  p.Period,
			Message: p.Message,
			Clients: toClientTotalDTOs(p.Clients, false),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) HorizontalBar(w http.ResponseWriter, r *http.Request) {
	h.clientChart(w, r, h.Service.HorizontalBar, true)
}

func (h *Handler) PieChart(w http.ResponseWriter, r *http.Request) {
	h.clientChart(w, r, h.Service.PieChart, true)
}

func (h *Handler) VerticalBar(w http.ResponseWriter, r *http.Request) {
	h.clientChart(w, r, h.Service.VerticalBar, false)
}

type chartFunc func(ctx context.Context, c allowance.Criteria, top int) ([]service.ClientTotal, error)

func (h *Handler) clientChart(w http.ResponseWriter, r *http.Request, chart chartFunc, withDays bool) {
	var req DashboardRequest
	if !h.decode(w, r, &req) {
		return
	}

	totals, err := chart(r.Context(), req.criteria(), req.Top)
	if err != nil {
		h.writeServiceError(w, "Failed to build chart", err)
		return
	}

	writeJSON(w, http.StatusOK, toClientTotalDTOs(totals, withDays))
}

// ClientGraph returns one client's monthly totals for ?year= (default:
// current year).
func (h *Handler) ClientGraph(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, ok := intParam(w, q.Get("year"), "year")
	if !ok {
		return
	}

	g, err := h.Service.ClientGraph(r.Context(), q.Get("client"), year)
	if err != nil {
		h.writeServiceError(w, "Failed to build client graph", err)
		return
	}

	writeJSON(w, http.StatusOK, toClientGraphDTO(g))
}

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Service.Clients(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list clients", err)
		return
	}
	if clients == nil {
		clients = []string{}
	}
	writeJSON(w, http.StatusOK, clients)
}

// ClientDepartments lists departments per client, or for ?client= only.
func (h *Handler) ClientDepartments(w http.ResponseWriter, r *http.Request) {
	groups, err := h.Service.ClientDepartments(r.Context(), r.URL.Query().Get("client"))
	if err != nil {
		h.writeServiceError(w, "Failed to list departments", err)
		return
	}

	dtos := make([]ClientDepartmentsDTO, len(groups))
	for i, g := range groups {
		depts := g.Departments
		if depts == nil {
			depts = []string{}
		}
		dtos[i] = ClientDepartmentsDTO{Client: g.Client, Departments: depts}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SEARCH
// =============================================================================

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.Service.Search(r.Context(), service.SearchRequest{
		EmployeeID:     req.EmployeeID,
		EmployeeName:   req.EmployeeName,
		AccountManager: req.AccountManager,
		Department:     req.Department,
		Client:         req.Client,
		StartMonth:     req.StartMonth,
		EndMonth:       req.EndMonth,
		Start:          req.Start,
		Limit:          req.Limit,
	})
	if err != nil {
		h.writeServiceError(w, "Search failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toSearchResultDTO(res))
}

// =============================================================================
// WRITE HANDLERS
// =============================================================================

// Upload ingests a batch. Any bad record rejects the whole batch and the
// response lists every failing row.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if !h.decode(w, r, &req) {
		return
	}

	records := make([]allowance.Record, 0, len(req.Records))
	var rowErrs allowance.ValidationErrors
	for i, d := range req.Records {
		rec, err := d.record()
		if err != nil {
			rowErrs = append(rowErrs, &allowance.RowError{Index: i, EmployeeID: d.EmployeeID, Err: err})
			continue
		}
		records = append(records, rec)
	}
	if len(rowErrs) > 0 {
		h.writeServiceError(w, "Upload rejected", rowErrs)
		return
	}

	source := req.Source
	if source == "" {
		source = "api"
	}
	res, err := h.Service.Ingest(r.Context(), service.IngestRequest{Source: source, Records: records})
	if err != nil {
		h.writeServiceError(w, "Upload rejected", err)
		return
	}

	writeJSON(w, http.StatusCreated, IngestResultDTO{
		BatchID:     res.BatchID,
		Inserted:    res.Inserted,
		Replaced:    res.Replaced,
		Invalidated: res.Invalidated,
	})
}

// ListUploads returns the most recent batches (?limit=, default 50).
func (h *Handler) ListUploads(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r.URL.Query().Get("limit"), "limit")
	if !ok {
		return
	}

	uploads, err := h.Store.Uploads(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list uploads", err)
		return
	}

	dtos := make([]UploadDTO, len(uploads))
	for i, u := range uploads {
		dtos[i] = toUploadDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpdateShifts replaces the shift breakdown of one record.
func (h *Handler) UpdateShifts(w http.ResponseWriter, r *http.Request) {
	duration, err := allowance.ParseMonth(chi.URLParam(r, "duration"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid duration month", err)
		return
	}
	payroll, err := allowance.ParseMonth(chi.URLParam(r, "payroll"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid payroll month", err)
		return
	}

	var req UpdateShiftsRequest
	if !h.decode(w, r, &req) {
		return
	}

	key := allowance.RecordKey{
		EmployeeID:    chi.URLParam(r, "emp"),
		DurationMonth: duration,
		PayrollMonth:  payroll,
	}
	update, err := h.Service.UpdateShifts(r.Context(), key, req.Shifts)
	if err != nil {
		h.writeServiceError(w, "Failed to update shifts", err)
		return
	}

	writeJSON(w, http.StatusOK, toShiftUpdateDTO(update))
}

// ListRates returns the rate table, optionally for ?year= only.
func (h *Handler) ListRates(w http.ResponseWriter, r *http.Request) {
	year, ok := intParam(w, r.URL.Query().Get("year"), "year")
	if !ok {
		return
	}

	rates, err := h.Service.Rates(r.Context(), year)
	if err != nil {
		h.writeServiceError(w, "Failed to list rates", err)
		return
	}

	dtos := make([]RateDTO, len(rates))
	for i, rt := range rates {
		dtos[i] = RateDTO{ShiftType: string(rt.ShiftType), PayrollYear: rt.Year, Amount: rt.Amount}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req RateDTO
	if !h.decode(w, r, &req) {
		return
	}

	rate := allowance.Rate{ShiftType: allowance.ShiftType(req.ShiftType), Year: req.PayrollYear, Amount: req.Amount}
	if err := h.Service.SetRate(r.Context(), rate); err != nil {
		h.writeServiceError(w, "Failed to save rate", err)
		return
	}

	writeJSON(w, http.StatusOK, req)
}

// =============================================================================
// MISC HANDLERS
// =============================================================================

// LatestMonth reports the latest duration month with data, through the cache.
func (h *Handler) LatestMonth(w http.ResponseWriter, r *http.Request) {
	m, ok, err := h.Service.LatestMonth(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to read latest month", err)
		return
	}
	dto := LatestMonthDTO{Available: ok}
	if ok {
		dto.Month = m.String()
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads an optional JSON body into dst and validates it. An empty
// body leaves dst at its zero value. Returns false after writing a 400.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return false
		}
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", validationMessages(err))
		return false
	}
	return true
}

// intParam parses an optional integer query parameter. Empty means 0.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), err)
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes {"error": message, "details": ...}. details may be an
// error, a string slice or any JSON value.
func writeError(w http.ResponseWriter, status int, message string, details any) {
	resp := ErrorResponse{Error: message}
	switch d := details.(type) {
	case nil:
	case error:
		resp.Details = d.Error()
	default:
		resp.Details = d
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps a service error to its status code.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	if rows := service.RowErrors(err); rows != nil {
		details := make([]RowErrorDTO, len(rows))
		for i, re := range rows {
			details[i] = RowErrorDTO{Row: re.Index + 1, EmployeeID: re.EmployeeID, Error: re.Err.Error()}
		}
		writeError(w, http.StatusBadRequest, message, details)
		return
	}

	switch {
	case allowance.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case allowance.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.log.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
