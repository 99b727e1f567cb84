package allowance

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// MONTH - Calendar month (duration and payroll months are month-granular)
// =============================================================================

// Month is a calendar month. The zero value means "no month".
type Month struct {
	Year  int
	Month time.Month
}

const monthLayout = "2006-01"

// Constructors
func NewMonth(year int, month time.Month) Month { return Month{Year: year, Month: month} }

func MonthOf(t time.Time) Month { return Month{Year: t.Year(), Month: t.Month()} }

// ParseMonth parses a YYYY-MM value. A full date (YYYY-MM-DD) is accepted and
// truncated to its month, since stores keep first-of-month dates.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("2006-01-02") {
		s = s[:len(monthLayout)]
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, fmt.Errorf("%w: %q (expected YYYY-MM)", ErrInvalidMonth, s)
	}
	return MonthOf(t), nil
}

// MustParseMonth is ParseMonth for literals in tests and seed data.
func MustParseMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Comparison
func (m Month) index() int              { return m.Year*12 + int(m.Month) - 1 }
func (m Month) Before(other Month) bool { return m.index() < other.index() }
func (m Month) After(other Month) bool  { return m.index() > other.index() }
func (m Month) IsZero() bool            { return m.Year == 0 && m.Month == 0 }

// Arithmetic
func (m Month) AddMonths(n int) Month {
	i := m.index() + n
	return Month{Year: i / 12, Month: time.Month(i%12 + 1)}
}

// Properties
func (m Month) Quarter() int        { return (int(m.Month)-1)/3 + 1 }
func (m Month) FirstDay() time.Time { return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC) }

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// MarshalText encodes the month as YYYY-MM.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes YYYY-MM. Empty input leaves the zero month.
func (m *Month) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*m = Month{}
		return nil
	}
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Value stores the month as YYYY-MM text.
func (m Month) Value() (driver.Value, error) {
	if m.IsZero() {
		return nil, nil
	}
	return m.String(), nil
}

// Scan reads YYYY-MM text, a first-of-month date string, or a time.
func (m *Month) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Month{}
		return nil
	case string:
		return m.UnmarshalText([]byte(v))
	case []byte:
		return m.UnmarshalText(v)
	case time.Time:
		*m = MonthOf(v)
		return nil
	}
	return fmt.Errorf("cannot scan %T into Month", src)
}

// MonthRange returns every month from start to end inclusive.
// Returns nil when end is before start.
func MonthRange(start, end Month) []Month {
	if end.Before(start) {
		return nil
	}
	months := make([]Month, 0, end.index()-start.index()+1)
	for m := start; !m.After(end); m = m.AddMonths(1) {
		months = append(months, m)
	}
	return months
}

// parseMonthNumber parses "1".."12" (with or without a leading zero).
func parseMonthNumber(s string) (time.Month, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 || n > 12 {
		return 0, fmt.Errorf("%w: %q (expected 01-12)", ErrInvalidMonth, s)
	}
	return time.Month(n), nil
}
