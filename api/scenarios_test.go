/*
scenarios_test.go - Scenario loading tests

Each scenario is loaded through the API into memory stores, then checked
through the summary endpoints the demo UI uses.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/creative-boost/credits"
	"github.com/warp/creative-boost/credits/store"
)

type memoryResetter struct {
	mem *store.Memory
	dir *store.Directory
}

func (r memoryResetter) Reset(ctx context.Context) error {
	if err := r.mem.Reset(ctx); err != nil {
		return err
	}
	return r.dir.Reset(ctx)
}

func newScenarioServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	dir := store.NewDirectory()
	svc := credits.NewService(mem, dir, dir, credits.DefaultOptions(), credits.WithSummaryCache(credits.NewSummaryCache(time.Minute)))
	h := NewHandler(svc, dir, nil)
	h.Resetter = memoryResetter{mem: mem, dir: dir}
	return &testServer{router: NewRouter(h, nil)}
}

func (s *testServer) loadScenario(t *testing.T, id string) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": id, "year": 2025, "month": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func (s *testServer) summaries(t *testing.T, query string) []ClientMonthSummaryDTO {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/client-month-summaries?"+query, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeBody[[]ClientMonthSummaryDTO](t, w)
}

func TestScenario_AgencyMonth(t *testing.T) {
	// GIVEN: The agency-month scenario for March 2025
	// WHEN: Listing March summaries
	// THEN: Acme and Globex are on the ledger, Initech (paused engagement) is not

	s := newScenarioServer(t)
	s.loadScenario(t, "agency-month")

	summaries := s.summaries(t, "year=2025&month=3")
	require.Len(t, summaries, 2)

	acme, globex := summaries[0], summaries[1]
	assert.Equal(t, "Acme", acme.ClientName)
	// 4 designs + 1 express design + 1 video = 8 + 3 + 5
	assert.Equal(t, "16", acme.UsedCredits.String())
	assert.Equal(t, 6, acme.ItemCount)

	assert.Equal(t, "Globex", globex.ClientName)
	assert.Equal(t, "80", globex.MaxCredits.String(), "billing line defaults")
	// 10 copy + 2 express videos = 10 + 15
	assert.Equal(t, "25", globex.UsedCredits.String())
	assert.Equal(t, "30000", globex.EstimatedInvoice.String())

	credit := decodeBody[ColleagueCreditsDTO](t, s.do(t, http.MethodGet, "/api/colleagues/colleague-ana/credits?year=2025", nil))
	assert.Equal(t, "26", credit.TotalCredits.String())

	current := decodeBody[ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios/current", nil))
	assert.Equal(t, "agency-month", current.ID)
}

func TestScenario_OverBudget(t *testing.T) {
	s := newScenarioServer(t)
	s.loadScenario(t, "over-budget")

	summaries := s.summaries(t, "year=2025&month=3")
	require.Len(t, summaries, 1)
	assert.Equal(t, "22.5", summaries[0].UsedCredits.String())
	assert.Equal(t, "-12.5", summaries[0].RemainingCredits.String())
}

func TestScenario_CarryForward(t *testing.T) {
	// GIVEN: February negotiated at 40 credits, 1000 each, handled by Ana
	// WHEN: The scenario syncs March
	// THEN: March inherits budget, price and colleague; March output is credited to Ana

	s := newScenarioServer(t)
	s.loadScenario(t, "carry-forward")

	march := s.summaries(t, "year=2025&month=3")
	require.Len(t, march, 1)
	assert.Equal(t, "40", march[0].MaxCredits.String())
	assert.Equal(t, "1000", march[0].PricePerCredit.String())

	month := decodeBody[ClientMonthDTO](t, s.do(t, http.MethodGet, "/api/clients/acme/months/2025/3", nil))
	require.NotNil(t, month.ColleagueID)
	assert.Equal(t, "colleague-ana", *month.ColleagueID)

	detail := decodeBody[[]ColleagueCreditDetailDTO](t, s.do(t, http.MethodGet, "/api/colleagues/colleague-ana/credits/detail", nil))
	require.Len(t, detail, 2)
	assert.Equal(t, 3, detail[0].Month, "newest period first")
}

func TestScenario_ReloadResets(t *testing.T) {
	s := newScenarioServer(t)
	s.loadScenario(t, "agency-month")
	s.loadScenario(t, "over-budget")

	assert.Len(t, s.summaries(t, "year=2025&month=3"), 1)

	types := decodeBody[[]OutputTypeDTO](t, s.do(t, http.MethodGet, "/api/output-types", nil))
	assert.Len(t, types, 3)
}

func TestScenario_Errors(t *testing.T) {
	s := newScenarioServer(t)

	w := s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	disabled := newTestServer(t, credits.DefaultOptions())
	w = disabled.do(t, http.MethodPost, "/api/scenarios/load", map[string]any{"scenario_id": "over-budget"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)

	list := decodeBody[[]ScenarioDTO](t, s.do(t, http.MethodGet, "/api/scenarios", nil))
	assert.Len(t, list, 3)

	w = s.do(t, http.MethodGet, "/api/scenarios/current", nil)
	assert.Equal(t, "null\n", w.Body.String(), "nothing loaded yet")
}
