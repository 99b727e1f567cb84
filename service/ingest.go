package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
	"go.uber.org/zap"
)

// =============================================================================
// INGESTION - Uploads and corrections
// =============================================================================

type IngestRequest struct {
	Source  string
	Records []allowance.Record
}

type IngestResult struct {
	BatchID     string
	Inserted    int
	Replaced    int
	Invalidated bool
}

// Ingest validates every record, then writes the batch atomically with
// delete-then-insert per (employee, duration month, payroll month).
// Any invalid record rejects the whole batch with allowance.ValidationErrors.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	if len(req.Records) == 0 {
		return IngestResult{}, allowance.ErrEmptyBatch
	}
	if err := s.validateBatch(req.Records); err != nil {
		return IngestResult{}, err
	}

	batch := allowance.Batch{
		ID:         uuid.NewString(),
		Source:     req.Source,
		UploadedAt: s.now(),
		Records:    req.Records,
	}
	res, err := s.store.Replace(ctx, batch)
	if err != nil {
		return IngestResult{}, fmt.Errorf("failed to store batch: %w", err)
	}

	out := IngestResult{BatchID: batch.ID, Inserted: res.Inserted, Replaced: res.Replaced}
	out.Invalidated = s.invalidateFor(ctx, req.Records)

	s.log.Info("batch ingested",
		zap.String("batch_id", batch.ID),
		zap.String("source", req.Source),
		zap.Int("inserted", res.Inserted),
		zap.Int("replaced", res.Replaced),
		zap.Bool("latest_invalidated", out.Invalidated))
	return out, nil
}

func (s *Service) validateBatch(records []allowance.Record) error {
	current := s.currentMonth()
	seen := make(map[allowance.RecordKey]int, len(records))

	var errs allowance.ValidationErrors
	for i, r := range records {
		err := r.Validate()
		if err == nil && r.DurationMonth.After(current) {
			err = fmt.Errorf("%w: duration month %s", allowance.ErrFutureMonth, r.DurationMonth)
		}
		if err == nil {
			if first, dup := seen[r.Key()]; dup {
				err = fmt.Errorf("%w: same key as row %d", allowance.ErrDuplicateRecord, first+1)
			} else {
				seen[r.Key()] = i
			}
		}
		if err != nil {
			errs = append(errs, &allowance.RowError{Index: i, EmployeeID: r.EmployeeID, Err: err})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// invalidateFor drops the cached latest month when a write covers it.
// Cache failures are logged, never returned: the write already succeeded.
func (s *Service) invalidateFor(ctx context.Context, records []allowance.Record) bool {
	months := make([]allowance.Month, 0, len(records))
	for _, r := range records {
		months = append(months, r.DurationMonth)
	}
	invalidated, err := allowance.InvalidateIfCovered(ctx, s.cache, months)
	if err != nil {
		s.log.Warn("latest month invalidation failed", zap.Error(err))
	}
	return invalidated
}

// =============================================================================
// SHIFT CORRECTIONS
// =============================================================================

type ShiftDetail struct {
	ShiftType allowance.ShiftType
	Days      decimal.Decimal
	Rate      decimal.Decimal
	Allowance decimal.Decimal
}

type ShiftUpdate struct {
	Key            allowance.RecordKey
	Shifts         []ShiftDetail
	TotalDays      decimal.Decimal
	TotalAllowance decimal.Decimal
}

// UpdateShifts replaces the shift breakdown of one record. Every shift must
// have a rate for the payroll year; unlike reports, nothing prices at zero.
func (s *Service) UpdateShifts(ctx context.Context, key allowance.RecordKey, days map[string]decimal.Decimal) (ShiftUpdate, error) {
	shifts := make(map[allowance.ShiftType]decimal.Decimal, len(days))
	for label, d := range days {
		st, ok := allowance.ParseShiftType(label)
		if !ok {
			return ShiftUpdate{}, &allowance.UnknownShiftTypeError{Label: label}
		}
		if !allowance.ValidDays(d) {
			return ShiftUpdate{}, fmt.Errorf("%w: %s=%s", allowance.ErrInvalidDays, st, d)
		}
		if d.IsPositive() {
			shifts[st] = shifts[st].Add(d)
		}
	}
	if len(shifts) == 0 {
		return ShiftUpdate{}, allowance.ErrNoShiftDays
	}

	rec, err := s.store.Get(ctx, key)
	if err != nil {
		return ShiftUpdate{}, err
	}
	rates, err := s.store.LoadRates(ctx)
	if err != nil {
		return ShiftUpdate{}, fmt.Errorf("failed to load rates: %w", err)
	}

	out := ShiftUpdate{Key: rec.Key()}
	for _, st := range allowance.ShiftTypes {
		d, ok := shifts[st]
		if !ok {
			continue
		}
		rate, err := rates.RateOrFail(string(st), rec.PayrollMonth.Year)
		if err != nil {
			return ShiftUpdate{}, err
		}
		amount := d.Mul(rate)
		out.Shifts = append(out.Shifts, ShiftDetail{ShiftType: st, Days: d, Rate: rate, Allowance: amount})
		out.TotalDays = out.TotalDays.Add(d)
		out.TotalAllowance = out.TotalAllowance.Add(amount)
	}

	rec.Shifts = shifts
	if err := rec.Validate(); err != nil {
		return ShiftUpdate{}, err
	}
	if _, err := s.store.Replace(ctx, allowance.Batch{
		ID:         uuid.NewString(),
		Source:     "correction",
		UploadedAt: s.now(),
		Records:    []allowance.Record{rec},
	}); err != nil {
		return ShiftUpdate{}, fmt.Errorf("failed to store correction: %w", err)
	}
	s.invalidateFor(ctx, []allowance.Record{rec})

	s.log.Info("shifts updated",
		zap.String("key", out.Key.String()),
		zap.String("total_allowance", out.TotalAllowance.String()))
	return out, nil
}

// =============================================================================
// RATES
// =============================================================================

// SetRate creates or replaces the rate for (shift type, payroll year).
func (s *Service) SetRate(ctx context.Context, r allowance.Rate) error {
	if r.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must be non-negative", allowance.ErrInvalidRate)
	}
	if r.Year <= 0 {
		return fmt.Errorf("%w: payroll year must be greater than 0", allowance.ErrInvalidRate)
	}
	st, ok := allowance.ParseShiftType(string(r.ShiftType))
	if !ok {
		return &allowance.UnknownShiftTypeError{Label: string(r.ShiftType)}
	}
	r.ShiftType = st
	if err := s.store.SaveRate(ctx, r); err != nil {
		return fmt.Errorf("failed to save rate: %w", err)
	}
	s.log.Info("rate saved",
		zap.String("shift_type", string(st)),
		zap.Int("year", r.Year),
		zap.String("amount", r.Amount.String()))
	return nil
}

// Rates lists every rate ordered by year, then shift type. A year > 0
// narrows the list.
func (s *Service) Rates(ctx context.Context, year int) ([]allowance.Rate, error) {
	table, err := s.store.LoadRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}
	all := table.Rates()
	if year <= 0 {
		return all, nil
	}
	var out []allowance.Rate
	for _, r := range all {
		if r.Year == year {
			out = append(out, r)
		}
	}
	return out, nil
}

// =============================================================================
// LATEST MONTH
// =============================================================================

// LatestMonth returns the latest duration month with data, through the cache.
func (s *Service) LatestMonth(ctx context.Context) (allowance.Month, bool, error) {
	return s.latestSource().LatestMonth(ctx)
}

// RefreshLatest recomputes the cached latest month from the store.
func (s *Service) RefreshLatest(ctx context.Context) (allowance.Month, bool, error) {
	if err := s.cache.Invalidate(ctx); err != nil {
		return allowance.Month{}, false, fmt.Errorf("failed to invalidate latest month: %w", err)
	}
	return s.cache.GetOrCompute(ctx, s.store.LatestMonth)
}

// RowErrors returns the per-record failures of a rejected batch, sorted by
// row index. Nil when err is not a validation failure.
func RowErrors(err error) []*allowance.RowError {
	var v allowance.ValidationErrors
	if !errors.As(err, &v) {
		return nil
	}
	out := append([]*allowance.RowError(nil), v...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
