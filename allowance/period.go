package allowance

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// =============================================================================
// PERIOD RESOLUTION - Criteria -> ordered buckets of months
// =============================================================================

// Criteria selects the periods of a report. At most one form may be used:
//   - StartMonth (+ optional EndMonth)
//   - SelectedYear + SelectedMonths
//   - SelectedYear + SelectedQuarters
//
// An empty Criteria falls back to the latest month with data.
type Criteria struct {
	StartMonth       string   `json:"start_month,omitempty"`
	EndMonth         string   `json:"end_month,omitempty"`
	SelectedYear     int      `json:"selected_year,omitempty"`
	SelectedMonths   []string `json:"selected_months,omitempty"`
	SelectedQuarters []string `json:"selected_quarters,omitempty"`
}

func (c Criteria) IsEmpty() bool {
	return c.StartMonth == "" && c.EndMonth == "" && c.SelectedYear == 0 &&
		len(c.SelectedMonths) == 0 && len(c.SelectedQuarters) == 0
}

// Bucket is one output period: a single month, or a quarter grouping three.
type Bucket struct {
	Key    string
	Months []Month
}

func (b Bucket) Contains(m Month) bool {
	for _, bm := range b.Months {
		if bm == m {
			return true
		}
	}
	return false
}

func monthBucket(m Month) Bucket { return Bucket{Key: m.String(), Months: []Month{m}} }

// BucketMonths returns every month covered by the buckets, in order.
func BucketMonths(buckets []Bucket) []Month {
	var months []Month
	for _, b := range buckets {
		months = append(months, b.Months...)
	}
	return months
}

// LatestMonthSource answers "what is the most recent duration month with data".
type LatestMonthSource interface {
	LatestMonth(ctx context.Context) (Month, bool, error)
}

// LatestMonthFunc adapts a function to LatestMonthSource.
type LatestMonthFunc func(ctx context.Context) (Month, bool, error)

func (f LatestMonthFunc) LatestMonth(ctx context.Context) (Month, bool, error) { return f(ctx) }

// Resolver turns Criteria into buckets. Now defaults to time.Now.
type Resolver struct {
	Now    func() time.Time
	Latest LatestMonthSource
}

func (r Resolver) currentMonth() Month {
	if r.Now != nil {
		return MonthOf(r.Now())
	}
	return MonthOf(time.Now())
}

// Resolve validates the criteria and returns chronologically ordered buckets.
// Only the empty-criteria form touches Latest.
func (r Resolver) Resolve(ctx context.Context, c Criteria) ([]Bucket, error) {
	current := r.currentMonth()

	hasRange := c.StartMonth != "" || c.EndMonth != ""
	hasMonths := len(c.SelectedMonths) > 0
	hasQuarters := len(c.SelectedQuarters) > 0

	forms := 0
	for _, used := range []bool{hasRange, hasMonths, hasQuarters} {
		if used {
			forms++
		}
	}
	if forms > 1 {
		return nil, ErrConflictingCriteria
	}
	if hasRange && c.SelectedYear != 0 {
		return nil, ErrConflictingCriteria
	}

	switch {
	case hasRange:
		return resolveRange(c.StartMonth, c.EndMonth, current)
	case hasMonths:
		if c.SelectedYear == 0 {
			return nil, ErrYearRequired
		}
		return resolveMonths(c.SelectedYear, c.SelectedMonths, current)
	case hasQuarters:
		if c.SelectedYear == 0 {
			return nil, ErrYearRequired
		}
		return resolveQuarters(c.SelectedYear, c.SelectedQuarters, current)
	case c.SelectedYear != 0:
		if err := validateYear(c.SelectedYear, current); err != nil {
			return nil, err
		}
		return nil, ErrIncompleteCriteria
	}

	if r.Latest == nil {
		return nil, ErrNoDataAvailable
	}
	latest, ok, err := r.Latest.LatestMonth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest month: %w", err)
	}
	if !ok {
		return nil, ErrNoDataAvailable
	}
	return []Bucket{monthBucket(latest)}, nil
}

func resolveRange(startStr, endStr string, current Month) ([]Bucket, error) {
	if startStr == "" {
		return nil, ErrIncompleteCriteria
	}
	start, err := ParseMonth(startStr)
	if err != nil {
		return nil, err
	}
	end := start
	if endStr != "" {
		if end, err = ParseMonth(endStr); err != nil {
			return nil, err
		}
	}
	for _, m := range []Month{start, end} {
		if m.Year <= 0 {
			return nil, fmt.Errorf("%w: %s has a year before 1", ErrInvalidYear, m)
		}
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidRange, start, end)
	}
	if end.After(current) {
		return nil, fmt.Errorf("%w: %s is after %s", ErrFutureMonth, end, current)
	}

	months := MonthRange(start, end)
	buckets := make([]Bucket, len(months))
	for i, m := range months {
		buckets[i] = monthBucket(m)
	}
	return buckets, nil
}

func resolveMonths(year int, selected []string, current Month) ([]Bucket, error) {
	if err := validateYear(year, current); err != nil {
		return nil, err
	}
	seen := make(map[Month]bool)
	var months []Month
	for _, s := range selected {
		mm, err := parseMonthNumber(s)
		if err != nil {
			return nil, err
		}
		m := NewMonth(year, mm)
		if m.After(current) {
			return nil, fmt.Errorf("%w: %s is after %s", ErrFutureMonth, m, current)
		}
		if !seen[m] {
			seen[m] = true
			months = append(months, m)
		}
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	buckets := make([]Bucket, len(months))
	for i, m := range months {
		buckets[i] = monthBucket(m)
	}
	return buckets, nil
}

// resolveQuarters rolls each quarter into one bucket labelled
// "YYYY-MM - YYYY-MM". A quarter that has started but not ended keeps all
// three months; only quarters starting after the current month are rejected.
func resolveQuarters(year int, selected []string, current Month) ([]Bucket, error) {
	if err := validateYear(year, current); err != nil {
		return nil, err
	}
	seen := make(map[int]bool)
	var quarters []int
	for _, label := range selected {
		q, err := parseQuarter(label)
		if err != nil {
			return nil, err
		}
		first := NewMonth(year, time.Month((q-1)*3+1))
		if first.After(current) {
			return nil, fmt.Errorf("%w: Q%d %d starts after %s", ErrFutureMonth, q, year, current)
		}
		if !seen[q] {
			seen[q] = true
			quarters = append(quarters, q)
		}
	}
	sort.Ints(quarters)

	buckets := make([]Bucket, len(quarters))
	for i, q := range quarters {
		first := NewMonth(year, time.Month((q-1)*3+1))
		last := first.AddMonths(2)
		buckets[i] = Bucket{
			Key:    fmt.Sprintf("%s - %s", first, last),
			Months: MonthRange(first, last),
		}
	}
	return buckets, nil
}

func parseQuarter(label string) (int, error) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "Q1":
		return 1, nil
	case "Q2":
		return 2, nil
	case "Q3":
		return 3, nil
	case "Q4":
		return 4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidQuarter, label)
}

func validateYear(year int, current Month) error {
	if year <= 0 {
		return fmt.Errorf("%w: selected_year must be greater than 0", ErrInvalidYear)
	}
	if year > current.Year {
		return fmt.Errorf("%w: selected_year %d cannot be in the future", ErrInvalidYear, year)
	}
	return nil
}
