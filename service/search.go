package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
)

// =============================================================================
// SEARCH - Filtered, paginated employee rows with overall totals
// =============================================================================

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 500

	// searchLookback is how many months back the default search looks for data.
	searchLookback = 12
)

// SearchRequest filters are case-insensitive substrings. Empty filters
// match everything.
type SearchRequest struct {
	EmployeeID     string
	EmployeeName   string
	AccountManager string
	Department     string
	Client         string
	StartMonth     string
	EndMonth       string
	Start          int
	Limit          int
}

type SearchRow struct {
	allowance.Record
	ClientCode     string
	ShiftDays      map[string]decimal.Decimal // keyed by shift label
	TotalAllowance decimal.Decimal
}

type SearchResult struct {
	TotalRecords   int
	Months         []allowance.Month
	ShiftDays      map[string]decimal.Decimal // overall, keyed by shift label
	HeadCount      int
	TotalAllowance decimal.Decimal
	Employees      []SearchRow
}

// Search filters records by duration month and the text filters. Without
// months it uses the most recent month with data in the last twelve.
func (s *Service) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	if req.Start < 0 || req.Limit < 0 || req.Limit > MaxSearchLimit {
		return SearchResult{}, fmt.Errorf("%w: start must be >= 0 and limit between 1 and %d", allowance.ErrInvalidParameter, MaxSearchLimit)
	}
	if req.Limit == 0 {
		req.Limit = DefaultSearchLimit
	}

	months, err := s.searchMonths(ctx, req)
	if err != nil {
		return SearchResult{}, err
	}

	records, err := s.store.Records(ctx, allowance.RowQuery{Months: months})
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to load records: %w", err)
	}
	rates, err := s.store.LoadRates(ctx)
	if err != nil {
		return SearchResult{}, fmt.Errorf("failed to load rates: %w", err)
	}

	var matched []allowance.Record
	for _, r := range records {
		if s.matches(req, r) {
			matched = append(matched, r.Normalized())
		}
	}
	if len(matched) == 0 {
		return SearchResult{}, fmt.Errorf("%w: no records match the search", allowance.ErrNoDataAvailable)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.DurationMonth != b.DurationMonth {
			return a.DurationMonth.After(b.DurationMonth)
		}
		if a.EmployeeID != b.EmployeeID {
			return a.EmployeeID < b.EmployeeID
		}
		return a.PayrollMonth.Before(b.PayrollMonth)
	})

	res := SearchResult{
		TotalRecords: len(matched),
		Months:       months,
		ShiftDays:    make(map[string]decimal.Decimal),
	}
	ids := make(map[string]bool)
	for i, r := range matched {
		ids[r.EmployeeID] = true
		row := s.searchRow(r, rates)
		for label, days := range row.ShiftDays {
			res.ShiftDays[label] = res.ShiftDays[label].Add(days)
		}
		res.TotalAllowance = res.TotalAllowance.Add(row.TotalAllowance)
		if i >= req.Start && i < req.Start+req.Limit {
			res.Employees = append(res.Employees, row)
		}
	}
	res.HeadCount = len(ids)
	return res, nil
}

func (s *Service) searchMonths(ctx context.Context, req SearchRequest) ([]allowance.Month, error) {
	if req.StartMonth == "" && req.EndMonth == "" {
		since := s.currentMonth().AddMonths(-(searchLookback - 1))
		latest, ok, err := s.store.LatestMonthWhere(ctx, allowance.LatestQuery{Since: since})
		if err != nil {
			return nil, fmt.Errorf("failed to read latest month: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("%w: no data found in last %d months", allowance.ErrNoDataAvailable, searchLookback)
		}
		return []allowance.Month{latest}, nil
	}

	buckets, err := s.resolver().Resolve(ctx, allowance.Criteria{StartMonth: req.StartMonth, EndMonth: req.EndMonth})
	if err != nil {
		return nil, err
	}
	return allowance.BucketMonths(buckets), nil
}

func (s *Service) matches(req SearchRequest, r allowance.Record) bool {
	if req.EmployeeID != "" && !containsFold(r.EmployeeID, req.EmployeeID) {
		return false
	}
	if req.EmployeeName != "" && !containsFold(r.EmployeeName, req.EmployeeName) {
		return false
	}
	if req.AccountManager != "" && !containsFold(r.AccountManager, req.AccountManager) {
		return false
	}
	if req.Department != "" && !containsFold(r.Department, req.Department) {
		return false
	}
	if req.Client != "" {
		full := s.aliases.FullName(req.Client)
		if !containsFold(r.Client, req.Client) && !containsFold(r.Client, full) {
			return false
		}
	}
	return true
}

// searchRow prices one record in reporting mode.
func (s *Service) searchRow(r allowance.Record, rates *allowance.RateTable) SearchRow {
	row := SearchRow{
		Record:     r,
		ClientCode: s.aliases.Code(r.Client),
		ShiftDays:  make(map[string]decimal.Decimal),
	}
	for st, days := range r.Shifts {
		if !days.IsPositive() {
			continue
		}
		label, ok := allowance.ShiftLabels[st]
		if !ok {
			label = string(st)
		}
		row.ShiftDays[label] = row.ShiftDays[label].Add(days)
		rate := rates.RateOrZero(string(st), r.PayrollMonth.Year)
		row.TotalAllowance = row.TotalAllowance.Add(days.Mul(rate))
	}
	return row
}
