/*
Package allowance provides the shift allowance aggregation engine.

PURPOSE:
  This package turns raw shift assignments (employee, client, department,
  shift type, days, duration month, payroll month) into nested
  period -> client -> department -> employee rollups priced from a
  per-year rate table. It has no I/O of its own: rows, rates and the
  latest-month lookup are supplied by the caller.

KEY CONCEPTS IN THIS FILE (types.go):
  - ShiftType: A, B, C or PRIME
  - ShiftAmounts: one decimal per shift type (money or days)
  - Assignment: one (employee, shift type, days) row for a duration/payroll month

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal for days and money, never float
  2. Purity: Aggregate/Reconcile/Deltas are functions of their inputs
  3. Completeness: every requested period shows up, even with no rows

USAGE:
  rates, _ := allowance.NewRateTable(allowance.Rate{ShiftType: allowance.ShiftA, Year: 2024, Amount: decimal.NewFromInt(500)})
  agg := allowance.Aggregator{Rates: rates}
  forest, _ := agg.Aggregate(rows, buckets, allowance.AllClients())
  forest = allowance.Reconcile(forest, buckets, allowance.AllClients())

SEE ALSO:
  - period.go: Criteria -> buckets
  - rates.go: Rate lookups
  - rollup.go: The aggregator
  - reconcile.go: Zero-fill
  - delta.go: Period-over-period differences
*/
package allowance

import (
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SHIFT TYPE
// =============================================================================

type ShiftType string

const (
	ShiftA     ShiftType = "A"
	ShiftB     ShiftType = "B"
	ShiftC     ShiftType = "C"
	ShiftPrime ShiftType = "PRIME"
)

// ShiftTypes lists the known shift types in presentation order.
var ShiftTypes = []ShiftType{ShiftA, ShiftB, ShiftC, ShiftPrime}

// ShiftLabels are the display labels used by search results.
var ShiftLabels = map[ShiftType]string{
	ShiftA:     "A(9PM to 6AM)",
	ShiftB:     "B(4PM to 1AM)",
	ShiftC:     "C(6AM to 3PM)",
	ShiftPrime: "PRIME(12AM to 9AM)",
}

// ParseShiftType normalizes a label. Matching is case-insensitive and
// "PRIME SHIFT" is accepted as PRIME.
func ParseShiftType(label string) (ShiftType, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "A":
		return ShiftA, true
	case "B":
		return ShiftB, true
	case "C":
		return ShiftC, true
	case "PRIME", "PRIME SHIFT":
		return ShiftPrime, true
	}
	return "", false
}

// =============================================================================
// SHIFT AMOUNTS - One decimal per shift type
// =============================================================================

type ShiftAmounts struct {
	A     decimal.Decimal
	B     decimal.Decimal
	C     decimal.Decimal
	Prime decimal.Decimal
}

func (s ShiftAmounts) Get(t ShiftType) decimal.Decimal {
	switch t {
	case ShiftA:
		return s.A
	case ShiftB:
		return s.B
	case ShiftC:
		return s.C
	case ShiftPrime:
		return s.Prime
	}
	return decimal.Zero
}

func (s *ShiftAmounts) Add(t ShiftType, v decimal.Decimal) {
	switch t {
	case ShiftA:
		s.A = s.A.Add(v)
	case ShiftB:
		s.B = s.B.Add(v)
	case ShiftC:
		s.C = s.C.Add(v)
	case ShiftPrime:
		s.Prime = s.Prime.Add(v)
	}
}

func (s *ShiftAmounts) Merge(other ShiftAmounts) {
	for _, t := range ShiftTypes {
		s.Add(t, other.Get(t))
	}
}

func (s ShiftAmounts) Sum() decimal.Decimal {
	return s.A.Add(s.B).Add(s.C).Add(s.Prime)
}

// Round rounds a monetary or day value for presentation: two places,
// half away from zero. Accumulation never rounds.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// =============================================================================
// ASSIGNMENT - One shift-type row of the allowance sheet
// =============================================================================

const (
	UnknownClient     = "Unknown"
	UnknownDepartment = "UNKNOWN"
)

type Assignment struct {
	EmployeeID     string
	EmployeeName   string
	Client         string
	Department     string
	AccountManager string
	ShiftType      ShiftType
	Days           decimal.Decimal
	DurationMonth  Month
	PayrollMonth   Month
}

// Normalize trims names and replaces empty client/department with the
// Unknown placeholders.
func (a Assignment) Normalize() Assignment {
	a.EmployeeID = strings.TrimSpace(a.EmployeeID)
	a.Client = strings.TrimSpace(a.Client)
	if a.Client == "" {
		a.Client = UnknownClient
	}
	a.Department = strings.TrimSpace(a.Department)
	if a.Department == "" {
		a.Department = UnknownDepartment
	}
	return a
}
