package allowance

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE TABLE - (shift type, payroll year) -> amount per day
// =============================================================================

// Rate is the allowance paid per day of a shift type in a payroll year.
type Rate struct {
	ShiftType ShiftType
	Year      int
	Amount    decimal.Decimal
}

type rateKey struct {
	shift ShiftType
	year  int
}

// RateTable is immutable after construction and safe for concurrent reads.
type RateTable struct {
	rates map[rateKey]decimal.Decimal
}

// NewRateTable validates and indexes the given rates. Unknown shift labels,
// negative amounts and duplicate keys make the table corrupt.
func NewRateTable(rates ...Rate) (*RateTable, error) {
	t := &RateTable{rates: make(map[rateKey]decimal.Decimal, len(rates))}
	for _, r := range rates {
		st, ok := ParseShiftType(string(r.ShiftType))
		if !ok {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRateTable, &UnknownShiftTypeError{Label: string(r.ShiftType)})
		}
		if r.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: negative amount %s for %s/%d", ErrInvalidRateTable, r.Amount, st, r.Year)
		}
		k := rateKey{shift: st, year: r.Year}
		if _, dup := t.rates[k]; dup {
			return nil, fmt.Errorf("%w: duplicate rate for %s/%d", ErrInvalidRateTable, st, r.Year)
		}
		t.rates[k] = r.Amount
	}
	return t, nil
}

// Lookup returns the rate for a shift label and year.
func (t *RateTable) Lookup(shift string, year int) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	st, ok := ParseShiftType(shift)
	if !ok {
		return decimal.Zero, false
	}
	amount, ok := t.rates[rateKey{shift: st, year: year}]
	return amount, ok
}

// RateOrZero is the reporting access mode: anything absent prices at zero.
func (t *RateTable) RateOrZero(shift string, year int) decimal.Decimal {
	amount, _ := t.Lookup(shift, year)
	return amount
}

// RateOrFail is the mutation access mode.
func (t *RateTable) RateOrFail(shift string, year int) (decimal.Decimal, error) {
	st, ok := ParseShiftType(shift)
	if !ok {
		return decimal.Zero, &UnknownShiftTypeError{Label: shift}
	}
	amount, ok := t.Lookup(shift, year)
	if !ok {
		return decimal.Zero, &MissingRateError{ShiftType: st, Year: year}
	}
	return amount, nil
}

// Rates returns every rate ordered by year, then shift type.
func (t *RateTable) Rates() []Rate {
	if t == nil {
		return nil
	}
	out := make([]Rate, 0, len(t.rates))
	for k, amount := range t.rates {
		out = append(out, Rate{ShiftType: k.shift, Year: k.year, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return shiftOrder(out[i].ShiftType) < shiftOrder(out[j].ShiftType)
	})
	return out
}

func (t *RateTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rates)
}
