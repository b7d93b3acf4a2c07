/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for demos. Each scenario creates the output catalog, clients,
	engagements and billing lines, runs the engagement sync for the chosen
	month and logs some deliverables.

AVAILABLE SCENARIOS:

	agency-month:   Three clients, one with an inactive engagement
	over-budget:    One client whose usage exceeds the contracted cap
	carry-forward:  Last month's custom budget carried into this month

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create output types
 3. Register clients, engagements and billing lines
 4. Sync the month (and the previous one where needed)
 5. Log deliverables through the output log

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "agency-month", "year": 2025, "month": 3}

	year/month default to the current month.

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: directory seeding endpoints
  - credits/sync.go: the sync each scenario relies on
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/creative-boost/credits"
)

// Resetter clears persisted data before a scenario loads.
type Resetter interface {
	Reset(ctx context.Context) error
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioLoader func(ctx context.Context, h *Handler, p credits.Period) error

type scenario struct {
	ScenarioDTO
	load scenarioLoader
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "agency-month",
			Name:        "Agency Month",
			Description: "Three clients on Creative-Boost, one engagement inactive, mixed deliverables",
		},
		load: loadAgencyMonthScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "over-budget",
			Name:        "Over Budget",
			Description: "A 10 credit package with 22.5 credits of rush video work",
		},
		load: loadOverBudgetScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "carry-forward",
			Name:        "Carry Forward",
			Description: "Last month's negotiated budget and colleague carried into this month by the sync",
		},
		load: loadCarryForwardScenario,
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// ListScenarios returns available scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if s, ok := findScenario(current); ok {
		writeJSON(w, http.StatusOK, s.ScenarioDTO)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Resetter == nil {
		writeError(w, http.StatusNotImplemented, "Scenarios are disabled", nil)
		return
	}
	if !h.requireDirectory(w) {
		return
	}

	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	p := credits.PeriodOf(time.Now())
	if req.Year != 0 || req.Month != 0 {
		var err error
		if p, err = credits.ParsePeriod(req.Year, req.Month); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Resetter.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Service.FlushSummaryCache()
	h.currentScenario = ""

	if err := s.load(ctx, h, p); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = s.ID

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "loaded",
		"scenario": s.ID,
		"year":     p.Year,
		"month":    int(p.Month),
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// scenarioBuilder wraps the calls every loader needs and keeps the first error.
type scenarioBuilder struct {
	ctx   context.Context
	h     *Handler
	types map[string]string
	err   error
}

func newScenarioBuilder(ctx context.Context, h *Handler) *scenarioBuilder {
	return &scenarioBuilder{ctx: ctx, h: h, types: make(map[string]string)}
}

func (b *scenarioBuilder) outputType(name string, baseCredits int64) {
	if b.err != nil {
		return
	}
	t, err := b.h.Service.CreateOutputType(b.ctx, credits.SystemActor, name, decimal.NewFromInt(baseCredits))
	if err != nil {
		b.err = fmt.Errorf("output type %s: %w", name, err)
		return
	}
	b.types[name] = t.ID
}

// client registers a client with one engagement starting at from. line is the
// Creative-Boost billing line; nil registers the engagement without one.
func (b *scenarioBuilder) client(id, name, brand, engagementStatus string, from credits.Period, line *credits.EngagementService) {
	if b.err != nil {
		return
	}
	dir := b.h.Directory
	engagementID := "eng-" + id
	if err := dir.SaveClient(b.ctx, credits.Client{ID: id, Name: name, BrandName: brand}); err != nil {
		b.err = err
		return
	}
	if err := dir.SaveEngagement(b.ctx, credits.Engagement{
		ID:        engagementID,
		ClientID:  id,
		Status:    engagementStatus,
		StartDate: from.Start(),
	}); err != nil {
		b.err = err
		return
	}
	if line == nil {
		return
	}
	line.ID = "es-" + id
	line.EngagementID = engagementID
	line.ServiceID = b.h.Service.Options().BoostServiceID
	b.err = dir.SaveEngagementService(b.ctx, *line)
}

func (b *scenarioBuilder) sync(p credits.Period) {
	if b.err != nil {
		return
	}
	_, b.err = b.h.Service.EnsureClientMonthsForActiveEngagements(b.ctx, credits.SystemActor, p)
}

func (b *scenarioBuilder) output(clientID, typeName string, p credits.Period, normal, express int, colleagueID string) {
	if b.err != nil {
		return
	}
	patch := credits.OutputPatch{NormalCount: &normal, ExpressCount: &express}
	if colleagueID != "" {
		patch.ColleagueID = &colleagueID
	}
	_, b.err = b.h.Service.UpdateClientOutput(b.ctx, credits.SystemActor, clientID, b.types[typeName], p, patch)
}

func (b *scenarioBuilder) catalog() {
	b.outputType("Design", 2)
	b.outputType("Video", 5)
	b.outputType("Copywriting", 1)
}

func loadAgencyMonthScenario(ctx context.Context, h *Handler, p credits.Period) error {
	b := newScenarioBuilder(ctx, h)
	b.catalog()

	b.client("acme", "Acme", "Acme Brand", credits.EngagementStatusActive, p, &credits.EngagementService{})
	b.client("globex", "Globex", "Globex Co", credits.EngagementStatusActive, p, &credits.EngagementService{
		MaxCredits:     decimalPtr(80),
		PricePerCredit: decimalPtr(1200),
	})
	// Not synced: the engagement is not active
	b.client("initech", "Initech", "", "paused", p, &credits.EngagementService{})
	b.sync(p)

	b.output("acme", "Design", p, 4, 1, "colleague-ana")
	b.output("acme", "Video", p, 1, 0, "colleague-ben")
	b.output("globex", "Copywriting", p, 10, 0, "")
	b.output("globex", "Video", p, 0, 2, "colleague-ana")
	return b.err
}

func loadOverBudgetScenario(ctx context.Context, h *Handler, p credits.Period) error {
	b := newScenarioBuilder(ctx, h)
	b.catalog()

	b.client("acme", "Acme", "Acme Brand", credits.EngagementStatusActive, p, &credits.EngagementService{
		MinCredits: decimalPtr(5),
		MaxCredits: decimalPtr(10),
	})
	b.sync(p)

	b.output("acme", "Video", p, 3, 1, "colleague-ben")
	return b.err
}

func loadCarryForwardScenario(ctx context.Context, h *Handler, p credits.Period) error {
	b := newScenarioBuilder(ctx, h)
	b.catalog()

	prev := p.Previous()
	b.client("acme", "Acme", "Acme Brand", credits.EngagementStatusActive, prev, &credits.EngagementService{})
	b.sync(prev)
	if b.err != nil {
		return b.err
	}

	// Negotiated last month: 40 credits at 1000, handled by Ana
	m, err := h.Service.GetClientMonthByClientID(ctx, "acme", prev)
	if err != nil {
		return err
	}
	if m == nil {
		return fmt.Errorf("acme missing from %s after sync", prev)
	}
	colleague := "colleague-ana"
	if _, err := h.Service.UpdateClientMonth(ctx, credits.SystemActor, m.ID, credits.ClientMonthPatch{
		MaxCredits:     decimalPtr(40),
		PricePerCredit: decimalPtr(1000),
		ColleagueID:    &colleague,
	}); err != nil {
		return err
	}
	b.output("acme", "Design", prev, 6, 0, "")

	b.sync(p)
	b.output("acme", "Design", p, 2, 2, "")
	return b.err
}

func decimalPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}
