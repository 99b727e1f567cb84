// Package store provides in-memory allowance.Store implementations.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	records map[allowance.RecordKey]allowance.Record
	rates   []allowance.Rate
	batches []allowance.Batch
}

var _ allowance.Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		records: make(map[allowance.RecordKey]allowance.Record),
	}
}

// Replace writes a batch with delete-then-insert per record key.
func (m *Memory) Replace(ctx context.Context, batch allowance.Batch) (allowance.ReplaceResult, error) {
	if err := ctx.Err(); err != nil {
		return allowance.ReplaceResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var res allowance.ReplaceResult
	for _, r := range batch.Records {
		r = r.Normalized()
		k := r.Key()
		if _, exists := m.records[k]; exists {
			res.Replaced++
		} else {
			res.Inserted++
		}
		m.records[k] = copyRecord(r)
	}

	summary := batch
	summary.Records = nil
	m.batches = append(m.batches, summary)
	return res, nil
}

// Batches returns the recorded batches without their records.
func (m *Memory) Batches() []allowance.Batch {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]allowance.Batch(nil), m.batches...)
}

func (m *Memory) Get(_ context.Context, key allowance.RecordKey) (allowance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[key]
	if !ok {
		return allowance.Record{}, allowance.ErrRecordNotFound
	}
	return copyRecord(r), nil
}

func (m *Memory) Records(_ context.Context, q allowance.RowQuery) ([]allowance.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	wanted := make(map[allowance.Month]bool, len(q.Months))
	for _, mo := range q.Months {
		wanted[mo] = true
	}

	var out []allowance.Record
	for _, r := range m.records {
		month := r.DurationMonth
		if q.By == allowance.ByPayrollMonth {
			month = r.PayrollMonth
		}
		if !wanted[month] {
			continue
		}
		if q.Client != "" && !strings.EqualFold(strings.TrimSpace(r.Client), strings.TrimSpace(q.Client)) {
			continue
		}
		out = append(out, copyRecord(r))
	}
	sortRecords(out)
	return out, nil
}

func (m *Memory) RowsFor(ctx context.Context, q allowance.RowQuery) ([]allowance.Assignment, error) {
	records, err := m.Records(ctx, q)
	if err != nil {
		return nil, err
	}
	return allowance.Flatten(records), nil
}

func (m *Memory) LatestMonth(ctx context.Context) (allowance.Month, bool, error) {
	return m.LatestMonthWhere(ctx, allowance.LatestQuery{})
}

func (m *Memory) LatestMonthWhere(_ context.Context, q allowance.LatestQuery) (allowance.Month, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest allowance.Month
	found := false
	for _, r := range m.records {
		if q.Client != "" && !strings.EqualFold(strings.TrimSpace(r.Client), strings.TrimSpace(q.Client)) {
			continue
		}
		if !q.Since.IsZero() && r.DurationMonth.Before(q.Since) {
			continue
		}
		if !found || r.DurationMonth.After(latest) {
			latest, found = r.DurationMonth, true
		}
	}
	return latest, found, nil
}

func (m *Memory) Clients(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var clients []string
	for _, r := range m.records {
		c := strings.TrimSpace(r.Client)
		if c == "" {
			c = allowance.UnknownClient
		}
		if !seen[c] {
			seen[c] = true
			clients = append(clients, c)
		}
	}
	sort.Strings(clients)
	return clients, nil
}

func (m *Memory) Departments(_ context.Context) (map[string][]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sets := make(map[string]map[string]bool)
	for _, r := range m.records {
		c := strings.TrimSpace(r.Client)
		if c == "" {
			c = allowance.UnknownClient
		}
		if sets[c] == nil {
			sets[c] = make(map[string]bool)
		}
		if d := strings.TrimSpace(r.Department); d != "" {
			sets[c][d] = true
		}
	}

	out := make(map[string][]string, len(sets))
	for c, set := range sets {
		depts := make([]string, 0, len(set))
		for d := range set {
			depts = append(depts, d)
		}
		sort.Strings(depts)
		out[c] = depts
	}
	return out, nil
}

// =============================================================================
// RATES
// =============================================================================

func (m *Memory) LoadRates(_ context.Context) (*allowance.RateTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return allowance.NewRateTable(m.rates...)
}

// SaveRate upserts the rate for (shift type, year).
func (m *Memory) SaveRate(_ context.Context, r allowance.Rate) error {
	st, ok := allowance.ParseShiftType(string(r.ShiftType))
	if !ok {
		return &allowance.UnknownShiftTypeError{Label: string(r.ShiftType)}
	}
	r.ShiftType = st

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.rates {
		if existing.ShiftType == st && existing.Year == r.Year {
			m.rates[i] = r
			return nil
		}
	}
	m.rates = append(m.rates, r)
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func copyRecord(r allowance.Record) allowance.Record {
	shifts := make(map[allowance.ShiftType]decimal.Decimal, len(r.Shifts))
	for k, v := range r.Shifts {
		shifts[k] = v
	}
	r.Shifts = shifts
	return r
}

func sortRecords(rs []allowance.Record) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.DurationMonth != b.DurationMonth {
			return a.DurationMonth.Before(b.DurationMonth)
		}
		if a.PayrollMonth != b.PayrollMonth {
			return a.PayrollMonth.Before(b.PayrollMonth)
		}
		return a.EmployeeID < b.EmployeeID
	})
}
