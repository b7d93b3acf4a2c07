/*
handlers.go - HTTP API handlers for Creative-Boost credit accounting

PURPOSE:
  Exposes the credits.Service via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to the service.

ENDPOINTS:
  Summaries:
    GET    /api/client-month-summaries?year&month          Month summaries
    GET    /api/client-month-summaries/export?year&month   Same, as XLSX
    GET    /api/engagement-services/{id}/summary?year&month

  Ledger:
    GET    /api/client-months?year&month                   Rows of a month
    GET    /api/client-months/available?year&month         Configs not on the month
    POST   /api/client-months                              Add client to month
    GET    /api/client-months/{id}
    PATCH  /api/client-months/{id}                         Update settings
    GET    /api/client-months/{id}/history                 Settings audit
    GET    /api/clients/{clientID}/months/{year}/{month}
    DELETE /api/clients/{clientID}/months/{year}/{month}   Remove (cascades outputs)
    GET    /api/clients/{clientID}/months/{year}/{month}/outputs

  Outputs:
    PUT    /api/outputs/{clientID}/{outputTypeID}/{year}/{month}

  Colleagues:
    GET    /api/colleagues/{id}/credits?year[&month]
    GET    /api/colleagues/{id}/credits/detail[?year][&month]

  Sync:
    POST   /api/sync/engagements?year&month

  Catalog:
    GET    /api/output-types[?active=true]
    POST   /api/output-types
    PATCH  /api/output-types/{id}
    GET    /api/output-types/{id}/credits?normal&express
    GET    /api/client-configs
    PUT    /api/client-configs/{clientID}

  Scenarios (development only):
    GET    /api/scenarios
    GET    /api/scenarios/current
    POST   /api/scenarios/load

  Directory (seeding the SQLite directory):
    POST   /api/directory/clients
    POST   /api/directory/engagements
    POST   /api/directory/engagement-services

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate client month or output)
  - 500: Internal errors

ACTOR:
  Mutations are attributed to the actor resolved by ActorMiddleware.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/creative-boost/credits"
	"github.com/warp/creative-boost/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// DirectoryWriter seeds the client and engagement directory.
type DirectoryWriter interface {
	SaveClient(ctx context.Context, c credits.Client) error
	SaveEngagement(ctx context.Context, e credits.Engagement) error
	SaveEngagementService(ctx context.Context, es credits.EngagementService) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service   *credits.Service
	Directory DirectoryWriter
	Logger    *zap.Logger

	// Resetter enables the demo scenarios. Nil disables them.
	Resetter Resetter

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler. directory may be nil, in which case the
// directory seeding endpoints answer 501.
func NewHandler(service *credits.Service, directory DirectoryWriter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{
		Service:   service,
		Directory: directory,
		Logger:    logger,
		validate:  v,
	}
}

// =============================================================================
// SUMMARY HANDLERS
// =============================================================================

// ListSummaries returns the summaries of every client on a month.
// GET /api/client-month-summaries?year=2025&month=3
func (h *Handler) ListSummaries(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	summaries, err := h.Service.GetClientMonthSummaries(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, "Failed to get summaries", err)
		return
	}

	dtos := make([]ClientMonthSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ExportSummaries streams the month summaries as an XLSX workbook.
// GET /api/client-month-summaries/export?year=2025&month=3
func (h *Handler) ExportSummaries(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	summaries, err := h.Service.GetClientMonthSummaries(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, "Failed to get summaries", err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+report.Filename(p))
	if err := report.WriteSummaries(w, p, summaries); err != nil {
		// headers are already sent
		h.Logger.Error("summary export failed", zap.String("period", p.String()), zap.Error(err))
	}
}

// GetEngagementServiceSummary returns the summary of the ledger row linked to a billing line.
// GET /api/engagement-services/{id}/summary?year=2025&month=3
func (h *Handler) GetEngagementServiceSummary(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	summary, err := h.Service.GetClientMonthSummaryByEngagementServiceID(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeServiceError(w, "Failed to get summary", err)
		return
	}
	if summary == nil {
		writeError(w, http.StatusNotFound, "No client month for this engagement service", nil)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(*summary))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// ListClientMonths returns the ledger rows of a month.
// GET /api/client-months?year=2025&month=3
func (h *Handler) ListClientMonths(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	months, err := h.Service.GetClientsForMonth(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, "Failed to list client months", err)
		return
	}

	dtos := make([]ClientMonthDTO, len(months))
	for i, m := range months {
		dtos[i] = toClientMonthDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListAvailableClients returns active client configs not yet on the month.
// GET /api/client-months/available?year=2025&month=3
func (h *Handler) ListAvailableClients(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	configs, err := h.Service.GetAvailableClientsForMonth(r.Context(), p)
	if err != nil {
		h.writeServiceError(w, "Failed to list available clients", err)
		return
	}

	dtos := make([]ClientConfigDTO, len(configs))
	for i, c := range configs {
		dtos[i] = toClientConfigDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// AddClientMonth puts a client on a month. Adding a client already on the
// month returns the existing row with 200 instead of 201.
// POST /api/client-months
func (h *Handler) AddClientMonth(w http.ResponseWriter, r *http.Request) {
	var req AddClientMonthRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := credits.ParsePeriod(req.Year, req.Month)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	ctx := r.Context()
	m, created, err := h.Service.EnsureClientInMonth(ctx, ActorFrom(ctx), req.ClientID, p, &credits.MonthSettings{
		MinCredits:     req.MinCredits,
		MaxCredits:     req.MaxCredits,
		PricePerCredit: req.PricePerCredit,
		ColleagueID:    req.ColleagueID,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to add client to month", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toClientMonthDTO(*m))
}

// GetClientMonth returns one ledger row.
// GET /api/client-months/{id}
func (h *Handler) GetClientMonth(w http.ResponseWriter, r *http.Request) {
	m, err := h.Service.GetClientMonth(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get client month", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Client month not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toClientMonthDTO(*m))
}

// UpdateClientMonth applies a partial update. Unless strict updates are
// enabled, an unknown id is ignored and answered with 204.
// PATCH /api/client-months/{id}
func (h *Handler) UpdateClientMonth(w http.ResponseWriter, r *http.Request) {
	var req UpdateClientMonthRequest
	if !h.decode(w, r, &req) {
		return
	}

	patch := credits.ClientMonthPatch{
		MinCredits:     req.MinCredits,
		MaxCredits:     req.MaxCredits,
		PricePerCredit: req.PricePerCredit,
		ColleagueID:    req.ColleagueID,
	}
	if req.Status != nil {
		status := credits.Status(*req.Status)
		patch.Status = &status
	}

	ctx := r.Context()
	m, err := h.Service.UpdateClientMonth(ctx, ActorFrom(ctx), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.writeServiceError(w, "Failed to update client month", err)
		return
	}
	if m == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toClientMonthDTO(*m))
}

// GetSettingsHistory returns the settings audit of a ledger row, oldest first.
// GET /api/client-months/{id}/history
func (h *Handler) GetSettingsHistory(w http.ResponseWriter, r *http.Request) {
	changes, err := h.Service.GetSettingsHistory(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, "Failed to get settings history", err)
		return
	}

	dtos := make([]SettingsChangeDTO, len(changes))
	for i, c := range changes {
		dtos[i] = toSettingsChangeDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetClientMonthForClient returns the ledger row of a client for a month.
// GET /api/clients/{clientID}/months/{year}/{month}
func (h *Handler) GetClientMonthForClient(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	m, err := h.Service.GetClientMonthByClientID(r.Context(), chi.URLParam(r, "clientID"), p)
	if err != nil {
		h.writeServiceError(w, "Failed to get client month", err)
		return
	}
	if m == nil {
		writeError(w, http.StatusNotFound, "Client is not on this month", nil)
		return
	}
	writeJSON(w, http.StatusOK, toClientMonthDTO(*m))
}

// RemoveClientFromMonth deletes the ledger row and every output of the client
// for the month. Removing a client that is not on the month is a no-op.
// DELETE /api/clients/{clientID}/months/{year}/{month}
func (h *Handler) RemoveClientFromMonth(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	ctx := r.Context()
	if err := h.Service.RemoveClientFromMonth(ctx, ActorFrom(ctx), chi.URLParam(r, "clientID"), p); err != nil {
		h.writeServiceError(w, "Failed to remove client from month", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetClientOutputs returns the output rows of a client for a month.
// GET /api/clients/{clientID}/months/{year}/{month}/outputs
func (h *Handler) GetClientOutputs(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	outputs, err := h.Service.GetClientOutputs(r.Context(), chi.URLParam(r, "clientID"), p)
	if err != nil {
		h.writeServiceError(w, "Failed to get outputs", err)
		return
	}

	dtos := make([]OutputDTO, len(outputs))
	for i, o := range outputs {
		dtos[i] = toOutputDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// OUTPUT HANDLERS
// =============================================================================

// UpdateClientOutput sets the counts of one output type. Counts summing to
// zero remove the row.
// PUT /api/outputs/{clientID}/{outputTypeID}/{year}/{month}
func (h *Handler) UpdateClientOutput(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromPath(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	var req UpdateOutputRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	res, err := h.Service.ApplyClientOutput(ctx, ActorFrom(ctx),
		chi.URLParam(r, "clientID"), chi.URLParam(r, "outputTypeID"), p,
		credits.OutputPatch{
			NormalCount:  req.NormalCount,
			ExpressCount: req.ExpressCount,
			ColleagueID:  req.ColleagueID,
		})
	if err != nil {
		h.writeServiceError(w, "Failed to update output", err)
		return
	}

	resp := UpdateOutputResponse{Deleted: res.Outcome == credits.OutputDeleted}
	if res.Output != nil {
		dto := toOutputDTO(*res.Output)
		resp.Output = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// COLLEAGUE HANDLERS
// =============================================================================

// GetColleagueCredits returns the credits produced by a colleague in a year,
// or in one month of it when month is given.
// GET /api/colleagues/{id}/credits?year=2025[&month=3]
func (h *Handler) GetColleagueCredits(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	colleagueID := chi.URLParam(r, "id")

	year, err := queryInt(r, "year")
	if err != nil || year == nil {
		writeError(w, http.StatusBadRequest, "year is required", err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	resp := ColleagueCreditsDTO{ColleagueID: colleagueID, Year: *year, Month: month}
	if month != nil {
		p, err := credits.ParsePeriod(*year, *month)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		resp.TotalCredits, err = h.Service.GetColleagueCredits(ctx, colleagueID, p)
		if err != nil {
			h.writeServiceError(w, "Failed to get colleague credits", err)
			return
		}
	} else {
		resp.TotalCredits, err = h.Service.GetColleagueCreditsYear(ctx, colleagueID, *year)
		if err != nil {
			h.writeServiceError(w, "Failed to get colleague credits", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetColleagueCreditsDetail lists the output rows attributed to a colleague.
// GET /api/colleagues/{id}/credits/detail[?year=2025][&month=3]
func (h *Handler) GetColleagueCreditsDetail(w http.ResponseWriter, r *http.Request) {
	year, err := queryInt(r, "year")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := queryInt(r, "month")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	filter := credits.ColleagueFilter{Year: year}
	if month != nil {
		m := time.Month(*month)
		filter.Month = &m
	}

	details, err := h.Service.GetColleagueCreditsDetail(r.Context(), chi.URLParam(r, "id"), filter)
	if err != nil {
		h.writeServiceError(w, "Failed to get colleague credit detail", err)
		return
	}

	dtos := make([]ColleagueCreditDetailDTO, len(details))
	for i, d := range details {
		dtos[i] = toDetailDTO(d)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SYNC HANDLERS
// =============================================================================

// SyncEngagements reconciles a month's ledger with active engagements.
// POST /api/sync/engagements?year=2025&month=3
func (h *Handler) SyncEngagements(w http.ResponseWriter, r *http.Request) {
	p, err := periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	ctx := r.Context()
	res, err := h.Service.EnsureClientMonthsForActiveEngagements(ctx, ActorFrom(ctx), p)
	if err != nil {
		h.writeServiceError(w, "Engagement sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, toSyncResultDTO(p, res))
}

func toSyncResultDTO(p credits.Period, res credits.SyncResult) SyncResultDTO {
	return SyncResultDTO{
		Year:    p.Year,
		Month:   int(p.Month),
		Created: res.Created,
		Linked:  res.Linked,
		Skipped: res.Skipped,
	}
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// ListOutputTypes returns the output catalog.
// GET /api/output-types[?active=true]
func (h *Handler) ListOutputTypes(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"

	types, err := h.Service.ListOutputTypes(r.Context(), activeOnly)
	if err != nil {
		h.writeServiceError(w, "Failed to list output types", err)
		return
	}

	dtos := make([]OutputTypeDTO, len(types))
	for i, t := range types {
		dtos[i] = toOutputTypeDTO(t)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOutputType adds an output type to the catalog.
// POST /api/output-types
func (h *Handler) CreateOutputType(w http.ResponseWriter, r *http.Request) {
	var req CreateOutputTypeRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t, err := h.Service.CreateOutputType(ctx, ActorFrom(ctx), req.Name, req.BaseCredits)
	if err != nil {
		h.writeServiceError(w, "Failed to create output type", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOutputTypeDTO(*t))
}

// UpdateOutputType renames, reprices or (de)activates an output type.
// PATCH /api/output-types/{id}
func (h *Handler) UpdateOutputType(w http.ResponseWriter, r *http.Request) {
	var req UpdateOutputTypeRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx := r.Context()
	t, err := h.Service.UpdateOutputType(ctx, ActorFrom(ctx), chi.URLParam(r, "id"), credits.OutputTypePatch{
		Name:        req.Name,
		BaseCredits: req.BaseCredits,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.writeServiceError(w, "Failed to update output type", err)
		return
	}
	writeJSON(w, http.StatusOK, toOutputTypeDTO(*t))
}

// CalculateOutputCredits prices counts of an output type without storing anything.
// GET /api/output-types/{id}/credits?normal=3&express=2
func (h *Handler) CalculateOutputCredits(w http.ResponseWriter, r *http.Request) {
	normal, err := queryInt(r, "normal")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid normal count", err)
		return
	}
	express, err := queryInt(r, "express")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid express count", err)
		return
	}

	resp := OutputCreditsDTO{OutputTypeID: chi.URLParam(r, "id")}
	if normal != nil {
		resp.NormalCount = *normal
	}
	if express != nil {
		resp.ExpressCount = *express
	}
	if resp.NormalCount < 0 || resp.ExpressCount < 0 {
		writeError(w, http.StatusBadRequest, "Counts must not be negative", credits.ErrInvalidCount)
		return
	}

	c, err := h.Service.CalculateOutputCredits(r.Context(), resp.OutputTypeID, resp.NormalCount, resp.ExpressCount)
	if err != nil {
		h.writeServiceError(w, "Failed to calculate credits", err)
		return
	}
	resp.NormalCredits = c.Normal
	resp.ExpressCredits = c.Express
	resp.TotalCredits = c.Total
	writeJSON(w, http.StatusOK, resp)
}

// ListClientConfigs returns every client's default package.
// GET /api/client-configs
func (h *Handler) ListClientConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := h.Service.ListClientConfigs(r.Context())
	if err != nil {
		h.writeServiceError(w, "Failed to list client configs", err)
		return
	}

	dtos := make([]ClientConfigDTO, len(configs))
	for i, c := range configs {
		dtos[i] = toClientConfigDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertClientConfig replaces a client's default package.
// PUT /api/client-configs/{clientID}
func (h *Handler) UpsertClientConfig(w http.ResponseWriter, r *http.Request) {
	var req UpsertClientConfigRequest
	if !h.decode(w, r, &req) {
		return
	}

	defaults := h.Service.Options().Defaults
	cfg := credits.ClientCreditConfig{
		ClientID:              chi.URLParam(r, "clientID"),
		IsActive:              true,
		DefaultMinCredits:     defaults.MinCredits,
		DefaultMaxCredits:     defaults.MaxCredits,
		DefaultPricePerCredit: defaults.PricePerCredit,
	}
	if req.IsActive != nil {
		cfg.IsActive = *req.IsActive
	}
	if req.DefaultMinCredits != nil {
		cfg.DefaultMinCredits = *req.DefaultMinCredits
	}
	if req.DefaultMaxCredits != nil {
		cfg.DefaultMaxCredits = *req.DefaultMaxCredits
	}
	if req.DefaultPricePerCredit != nil {
		cfg.DefaultPricePerCredit = *req.DefaultPricePerCredit
	}

	ctx := r.Context()
	saved, err := h.Service.UpsertClientConfig(ctx, ActorFrom(ctx), cfg)
	if err != nil {
		h.writeServiceError(w, "Failed to save client config", err)
		return
	}
	writeJSON(w, http.StatusOK, toClientConfigDTO(*saved))
}

// =============================================================================
// DIRECTORY HANDLERS
// =============================================================================

// CreateClient registers a client in the directory.
// POST /api/directory/clients
func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	if !h.requireDirectory(w) {
		return
	}
	var req CreateClientRequest
	if !h.decode(w, r, &req) {
		return
	}

	c := credits.Client{ID: req.ID, Name: req.Name, BrandName: req.BrandName}
	if err := h.Directory.SaveClient(r.Context(), c); err != nil {
		h.writeServiceError(w, "Failed to save client", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateEngagement registers a billing contract in the directory.
// POST /api/directory/engagements
func (h *Handler) CreateEngagement(w http.ResponseWriter, r *http.Request) {
	if !h.requireDirectory(w) {
		return
	}
	var req CreateEngagementRequest
	if !h.decode(w, r, &req) {
		return
	}

	// formats were checked by the datetime validator
	start, _ := time.Parse(time.DateOnly, req.StartDate)
	e := credits.Engagement{
		ID:        req.ID,
		ClientID:  req.ClientID,
		Status:    req.Status,
		StartDate: start,
	}
	if req.EndDate != nil {
		end, _ := time.Parse(time.DateOnly, *req.EndDate)
		if end.Before(start) {
			writeError(w, http.StatusBadRequest, "end_date is before start_date", nil)
			return
		}
		e.EndDate = &end
	}

	if err := h.Directory.SaveEngagement(r.Context(), e); err != nil {
		h.writeServiceError(w, "Failed to save engagement", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// CreateEngagementService registers a billing line in the directory.
// POST /api/directory/engagement-services
func (h *Handler) CreateEngagementService(w http.ResponseWriter, r *http.Request) {
	if !h.requireDirectory(w) {
		return
	}
	var req CreateEngagementServiceRequest
	if !h.decode(w, r, &req) {
		return
	}

	es := credits.EngagementService{
		ID:             req.ID,
		EngagementID:   req.EngagementID,
		ServiceID:      req.ServiceID,
		MinCredits:     req.MinCredits,
		MaxCredits:     req.MaxCredits,
		PricePerCredit: req.PricePerCredit,
	}
	if err := h.Directory.SaveEngagementService(r.Context(), es); err != nil {
		h.writeServiceError(w, "Failed to save engagement service", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (h *Handler) requireDirectory(w http.ResponseWriter) bool {
	if h.Directory == nil {
		writeError(w, http.StatusNotImplemented, "Directory is read-only", nil)
		return false
	}
	return true
}

// =============================================================================
// HELPERS
// =============================================================================

// decode reads a JSON body into dst and validates it. On failure the error
// response is already written.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Fields: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// writeServiceError maps credits errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, message string, err error) {
	switch {
	case credits.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case credits.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case credits.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func periodFromQuery(r *http.Request) (credits.Period, error) {
	q := r.URL.Query()
	return parsePeriod(q.Get("year"), q.Get("month"))
}

func periodFromPath(r *http.Request) (credits.Period, error) {
	return parsePeriod(chi.URLParam(r, "year"), chi.URLParam(r, "month"))
}

func parsePeriod(rawYear, rawMonth string) (credits.Period, error) {
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return credits.Period{}, fmt.Errorf("%w: year %q", credits.ErrInvalidPeriod, rawYear)
	}
	month, err := strconv.Atoi(rawMonth)
	if err != nil {
		return credits.Period{}, fmt.Errorf("%w: month %q", credits.ErrInvalidPeriod, rawMonth)
	}
	return credits.ParsePeriod(year, month)
}

// queryInt returns nil when the parameter is absent.
func queryInt(r *http.Request, key string) (*int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
