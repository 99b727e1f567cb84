/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built data sets that populate the database with realistic
	allowance sheets. Each scenario sets a rate table and ingests records
	through the service, so the same validation and cache invalidation
	apply as for real uploads.

AVAILABLE SCENARIOS:

	single-employee:  One employee, one shift, one month
	multi-client:     Three clients over Q1 2024 with mixed shifts
	department-gap:   Acme has HR rows but none for IT in February
	year-boundary:    December work paid in January at the new year's rates

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Save the rate table
 3. Ingest the records as one batch

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "multi-client"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a scenarioData entry in scenarioLoaders

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Report endpoints to look at the loaded data
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/service"
	"go.uber.org/zap"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "single-employee",
		Name:        "Single Employee",
		Description: "One employee on shift A for two days in January 2024",
	},
	{
		ID:          "multi-client",
		Name:        "Multi-Client Quarter",
		Description: "Acme, Globex and Initech across Q1 2024 with every shift type",
	},
	{
		ID:          "department-gap",
		Name:        "Department Gap",
		Description: "Acme IT works in January only; HR works both months",
	},
	{
		ID:          "year-boundary",
		Name:        "Year Boundary",
		Description: "December 2024 shifts paid in January 2025 at 2025 rates",
	},
}

type scenarioData struct {
	rates   []allowance.Rate
	records []allowance.Record
}

func rate(st allowance.ShiftType, year int, amount string) allowance.Rate {
	return allowance.Rate{ShiftType: st, Year: year, Amount: decimal.RequireFromString(amount)}
}

func standardRates(year int) []allowance.Rate {
	return []allowance.Rate{
		rate(allowance.ShiftA, year, "500"),
		rate(allowance.ShiftB, year, "350"),
		rate(allowance.ShiftC, year, "100"),
		rate(allowance.ShiftPrime, year, "700"),
	}
}

func demoRecord(emp, name, client, dept, duration, payroll string, shifts map[allowance.ShiftType]string) allowance.Record {
	r := allowance.Record{
		EmployeeID:     emp,
		EmployeeName:   name,
		Client:         client,
		Department:     dept,
		AccountManager: "Dana Reyes",
		DurationMonth:  allowance.MustParseMonth(duration),
		PayrollMonth:   allowance.MustParseMonth(payroll),
		Shifts:         make(map[allowance.ShiftType]decimal.Decimal, len(shifts)),
	}
	for st, days := range shifts {
		r.Shifts[st] = decimal.RequireFromString(days)
	}
	return r
}

var scenarioLoaders = map[string]func() scenarioData{
	"single-employee": func() scenarioData {
		return scenarioData{
			rates: standardRates(2024),
			records: []allowance.Record{
				demoRecord("E1", "Ava Patel", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{allowance.ShiftA: "2"}),
			},
		}
	},
	"multi-client": func() scenarioData {
		var records []allowance.Record
		for _, m := range []struct{ duration, payroll string }{{"2024-01", "2024-02"}, {"2024-02", "2024-03"}, {"2024-03", "2024-04"}} {
			records = append(records,
				demoRecord("E1", "Ava Patel", "Acme", "IT", m.duration, m.payroll, map[allowance.ShiftType]string{allowance.ShiftA: "4", allowance.ShiftPrime: "1"}),
				demoRecord("E2", "Ben Okafor", "Acme", "HR", m.duration, m.payroll, map[allowance.ShiftType]string{allowance.ShiftC: "6.5"}),
				demoRecord("E3", "Chen Wei", "Globex", "Support", m.duration, m.payroll, map[allowance.ShiftType]string{allowance.ShiftB: "10"}),
				demoRecord("E4", "Dara Nolan", "Initech", "Ops", m.duration, m.payroll, map[allowance.ShiftType]string{allowance.ShiftPrime: "3", allowance.ShiftB: "2"}),
			)
		}
		return scenarioData{rates: standardRates(2024), records: records}
	},
	"department-gap": func() scenarioData {
		return scenarioData{
			rates: standardRates(2024),
			records: []allowance.Record{
				demoRecord("E1", "Ava Patel", "Acme", "IT", "2024-01", "2024-02", map[allowance.ShiftType]string{allowance.ShiftA: "3"}),
				demoRecord("E2", "Ben Okafor", "Acme", "HR", "2024-01", "2024-02", map[allowance.ShiftType]string{allowance.ShiftC: "5"}),
				demoRecord("E2", "Ben Okafor", "Acme", "HR", "2024-02", "2024-03", map[allowance.ShiftType]string{allowance.ShiftC: "4"}),
			},
		}
	},
	"year-boundary": func() scenarioData {
		rates := append(standardRates(2024),
			rate(allowance.ShiftA, 2025, "550"),
			rate(allowance.ShiftB, 2025, "400"),
			rate(allowance.ShiftC, 2025, "120"),
			rate(allowance.ShiftPrime, 2025, "750"),
		)
		return scenarioData{
			rates: rates,
			records: []allowance.Record{
				demoRecord("E1", "Ava Patel", "Acme", "IT", "2024-11", "2024-12", map[allowance.ShiftType]string{allowance.ShiftA: "2"}),
				demoRecord("E1", "Ava Patel", "Acme", "IT", "2024-12", "2025-01", map[allowance.ShiftType]string{allowance.ShiftA: "2"}),
			},
		}
	},
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	if _, ok := scenarioLoaders[req.ScenarioID]; !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	res, err := h.loadScenario(r.Context(), req.ScenarioID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"scenario": req.ScenarioID,
		"batch_id": res.BatchID,
		"records":  res.Inserted,
	})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) reset(ctx context.Context) error {
	if err := h.Store.Reset(ctx); err != nil {
		return err
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	_, _, err := h.Service.RefreshLatest(ctx)
	return err
}

func (h *Handler) loadScenario(ctx context.Context, id string) (service.IngestResult, error) {
	if err := h.reset(ctx); err != nil {
		return service.IngestResult{}, fmt.Errorf("reset: %w", err)
	}

	data := scenarioLoaders[id]()
	for _, rt := range data.rates {
		if err := h.Service.SetRate(ctx, rt); err != nil {
			return service.IngestResult{}, err
		}
	}
	res, err := h.Service.Ingest(ctx, service.IngestRequest{Source: "scenario:" + id, Records: data.records})
	if err != nil {
		return service.IngestResult{}, err
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()

	h.log.Info("scenario loaded", zap.String("scenario", id), zap.Int("records", res.Inserted))
	return res, nil
}
