/*
errors.go - Centralized error types for the allowance engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Service and store packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Period errors - Bad period criteria (range, month, quarter, year, future)
  2. Rate errors - Missing or unknown rates in strict flows
  3. Ingestion errors - Records that violate the allowance sheet rules
  4. Lookup errors - No data to default against, unknown records
  5. Parameter errors - Paging, top-N, rate administration

USAGE:
  Callers classify errors instead of matching strings:

    if allowance.IsClientError(err) {
        // 400
    }

SEE ALSO:
  - period.go: Raises the period errors
  - rates.go: Raises MissingRateError / UnknownShiftTypeError
  - record.go: Raises ingestion errors
*/
package allowance

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidCriteria is the parent of every malformed-criteria error that is
	// not tied to a single field (conflicting forms, missing year).
	ErrInvalidCriteria = errors.New("invalid period criteria")

	// ErrConflictingCriteria is returned when more than one period form is given.
	ErrConflictingCriteria = fmt.Errorf("%w: use exactly one of start/end month, selected months or selected quarters", ErrInvalidCriteria)

	// ErrYearRequired is returned when months or quarters are given without a year.
	ErrYearRequired = fmt.Errorf("%w: selected_year is mandatory with selected_months or selected_quarters", ErrInvalidCriteria)

	// ErrIncompleteCriteria is returned when a year is given without months or quarters,
	// or an end month without a start month.
	ErrIncompleteCriteria = fmt.Errorf("%w: no valid date filter provided", ErrInvalidCriteria)

	// ErrInvalidRange is returned when the end month is before the start month.
	ErrInvalidRange = errors.New("invalid range: end month before start month")

	// ErrInvalidMonth is returned for a month outside 1-12 or a malformed YYYY-MM value.
	ErrInvalidMonth = errors.New("invalid month")

	// ErrInvalidQuarter is returned for a quarter label other than Q1-Q4.
	ErrInvalidQuarter = errors.New("invalid quarter (expected Q1-Q4)")

	// ErrInvalidYear is returned for a year <= 0 or after the current year.
	ErrInvalidYear = errors.New("invalid year")

	// ErrFutureMonth is returned when a requested month is after the current month.
	ErrFutureMonth = errors.New("future months are not allowed")

	// ErrNoDataAvailable is returned when there is no data to default against.
	ErrNoDataAvailable = errors.New("no data available")

	// ErrMissingRate is the sentinel behind MissingRateError.
	ErrMissingRate = errors.New("missing shift rate")

	// ErrUnknownShiftType is the sentinel behind UnknownShiftTypeError.
	ErrUnknownShiftType = errors.New("unknown shift type")

	// ErrInvalidRateTable is returned when rate reference data is corrupt.
	ErrInvalidRateTable = errors.New("invalid rate table")

	// ErrPayrollBeforeDuration is returned when the payroll month is not after the duration month.
	ErrPayrollBeforeDuration = errors.New("payroll month must be after duration month")

	// ErrInvalidDays is returned for negative days or days not in half-day steps.
	ErrInvalidDays = errors.New("days must be non-negative in steps of 0.5")

	// ErrNoShiftDays is returned when a record has no shift with days > 0.
	ErrNoShiftDays = errors.New("at least one shift must have days greater than zero")

	// ErrMissingEmployee is returned when a record has no employee id.
	ErrMissingEmployee = errors.New("employee id is required")

	// ErrRecordNotFound is returned when a record identity does not exist.
	ErrRecordNotFound = errors.New("allowance record not found")

	// ErrEmptyBatch is returned when an ingestion carries no records.
	ErrEmptyBatch = errors.New("no records provided")

	// ErrDuplicateRecord is returned when a batch repeats a record identity.
	ErrDuplicateRecord = errors.New("duplicate record in batch")

	// ErrInvalidRate is returned for a negative amount or a bad payroll year.
	ErrInvalidRate = errors.New("invalid shift rate")

	// ErrInvalidParameter is returned for bad paging, top-N or name parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingRateError is raised by strict rate lookups.
type MissingRateError struct {
	ShiftType ShiftType
	Year      int
}

func (e *MissingRateError) Error() string {
	return fmt.Sprintf("missing shift rate: %s for %d", e.ShiftType, e.Year)
}

func (e *MissingRateError) Unwrap() error {
	return ErrMissingRate
}

// UnknownShiftTypeError carries the label that did not match A, B, C or PRIME.
type UnknownShiftTypeError struct {
	Label string
}

func (e *UnknownShiftTypeError) Error() string {
	return fmt.Sprintf("unknown shift type %q", e.Label)
}

func (e *UnknownShiftTypeError) Unwrap() error {
	return ErrUnknownShiftType
}

// RowError ties an ingestion failure to the record that caused it.
type RowError struct {
	Index      int
	EmployeeID string
	Err        error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d (%s): %v", e.Index+1, e.EmployeeID, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ValidationErrors collects every RowError of a batch.
type ValidationErrors []*RowError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%d invalid rows: %s", len(v), strings.Join(msgs, "; "))
}

func (v ValidationErrors) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidCriteria) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidMonth) ||
		errors.Is(err, ErrInvalidQuarter) ||
		errors.Is(err, ErrInvalidYear) ||
		errors.Is(err, ErrFutureMonth) ||
		errors.Is(err, ErrMissingRate) ||
		errors.Is(err, ErrUnknownShiftType) ||
		errors.Is(err, ErrPayrollBeforeDuration) ||
		errors.Is(err, ErrInvalidDays) ||
		errors.Is(err, ErrNoShiftDays) ||
		errors.Is(err, ErrMissingEmployee) ||
		errors.Is(err, ErrEmptyBatch) ||
		errors.Is(err, ErrDuplicateRecord) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidParameter)
}

// IsNotFound returns true if the error indicates missing data.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoDataAvailable) ||
		errors.Is(err, ErrRecordNotFound)
}
