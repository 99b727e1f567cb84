package allowance

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// RecordKey identifies one allowance record. Re-ingesting the same key
// replaces the whole shift breakdown.
type RecordKey struct {
	EmployeeID    string
	DurationMonth Month
	PayrollMonth  Month
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.EmployeeID, k.DurationMonth, k.PayrollMonth)
}

// Record is one row of the allowance sheet with its shift breakdown.
type Record struct {
	EmployeeID     string
	EmployeeName   string
	Grade          string
	Client         string
	Department     string
	Project        string
	AccountManager string
	DurationMonth  Month
	PayrollMonth   Month
	Shifts         map[ShiftType]decimal.Decimal
}

func (r Record) Key() RecordKey {
	return RecordKey{
		EmployeeID:    strings.TrimSpace(r.EmployeeID),
		DurationMonth: r.DurationMonth,
		PayrollMonth:  r.PayrollMonth,
	}
}

var halfDay = decimal.RequireFromString("0.5")

// ValidDays reports whether d is a non-negative multiple of 0.5.
func ValidDays(d decimal.Decimal) bool {
	return !d.IsNegative() && d.Mod(halfDay).IsZero()
}

// Validate applies the ingestion rules.
func (r Record) Validate() error {
	if strings.TrimSpace(r.EmployeeID) == "" {
		return ErrMissingEmployee
	}
	if r.DurationMonth.IsZero() || r.PayrollMonth.IsZero() {
		return fmt.Errorf("%w: duration and payroll months are required", ErrInvalidMonth)
	}
	if !r.PayrollMonth.After(r.DurationMonth) {
		return fmt.Errorf("%w: duration %s, payroll %s", ErrPayrollBeforeDuration, r.DurationMonth, r.PayrollMonth)
	}
	positive := false
	for st, days := range r.Shifts {
		if _, ok := ParseShiftType(string(st)); !ok {
			return &UnknownShiftTypeError{Label: string(st)}
		}
		if !ValidDays(days) {
			return fmt.Errorf("%w: %s=%s", ErrInvalidDays, st, days)
		}
		if days.IsPositive() {
			positive = true
		}
	}
	if !positive {
		return ErrNoShiftDays
	}
	return nil
}

// Normalized returns a copy with canonical shift types and trimmed names.
// Zero-day shifts are dropped. Unknown labels are kept verbatim so strict
// callers can still reject them.
func (r Record) Normalized() Record {
	out := r
	out.EmployeeID = strings.TrimSpace(r.EmployeeID)
	out.Client = strings.TrimSpace(r.Client)
	out.Department = strings.TrimSpace(r.Department)
	out.Shifts = make(map[ShiftType]decimal.Decimal, len(r.Shifts))
	for label, days := range r.Shifts {
		if days.IsZero() {
			continue
		}
		st, ok := ParseShiftType(string(label))
		if !ok {
			st = label
		}
		out.Shifts[st] = out.Shifts[st].Add(days)
	}
	return out
}

// Assignments flattens the record into one Assignment per shift type,
// ordered by shift type.
func (r Record) Assignments() []Assignment {
	types := make([]ShiftType, 0, len(r.Shifts))
	for st := range r.Shifts {
		types = append(types, st)
	}
	sort.Slice(types, func(i, j int) bool { return shiftOrder(types[i]) < shiftOrder(types[j]) })

	out := make([]Assignment, 0, len(types))
	for _, st := range types {
		out = append(out, Assignment{
			EmployeeID:     r.EmployeeID,
			EmployeeName:   r.EmployeeName,
			Client:         r.Client,
			Department:     r.Department,
			AccountManager: r.AccountManager,
			ShiftType:      st,
			Days:           r.Shifts[st],
			DurationMonth:  r.DurationMonth,
			PayrollMonth:   r.PayrollMonth,
		}.Normalize())
	}
	return out
}

// Flatten is Assignments over a slice of records.
func Flatten(records []Record) []Assignment {
	var rows []Assignment
	for _, r := range records {
		rows = append(rows, r.Assignments()...)
	}
	return rows
}

func shiftOrder(t ShiftType) string {
	for i, known := range ShiftTypes {
		if t == known {
			return fmt.Sprintf("%d", i)
		}
	}
	return "9" + string(t)
}
