/*
Package service implements the shift allowance use cases.

PURPOSE:
  Each operation follows the same order:
    1. Validate and resolve the period criteria (no I/O on failure)
    2. Fetch rows and the rate table from the store
    3. Hand them to the pure engine (aggregate, reconcile, deltas)
    4. Shape the result for the caller

  The engine never touches the store. Only this package does.

OPERATIONS:
  summary.go:    ClientSummary, IntervalSummary
  comparison.go: ClientComparison
  dashboard.go:  TopClients, HorizontalBar, PieChart, VerticalBar, ClientGraph,
                 Clients, ClientDepartments
  search.go:     Search
  ingest.go:     Ingest, UpdateShifts, SetRate, Rates, RefreshLatest

LATEST MONTH:
  Defaults ("no criteria") read the latest duration month through the
  configured LatestMonthCache. Writes invalidate it when they land at or
  after the cached month.

SEE ALSO:
  - allowance/: The engine
  - api/handlers.go: HTTP callers
*/
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/shift-allowance/allowance"
	"go.uber.org/zap"
)

// Options configures a Service. Every field is optional.
type Options struct {
	// Cache fronts the latest-month lookup. Nil uses an in-process cache.
	Cache allowance.LatestMonthCache

	Logger *zap.Logger

	// Now defaults to time.Now.
	Now func() time.Time

	// Aliases maps short client codes to full client names.
	Aliases ClientAliases

	// StrictShiftTypes makes reports fail on unknown shift labels and
	// missing rates instead of skipping/pricing them at zero.
	StrictShiftTypes bool
}

// Service is safe for concurrent use.
type Service struct {
	store   allowance.Store
	cache   allowance.LatestMonthCache
	log     *zap.Logger
	now     func() time.Time
	aliases ClientAliases
	strict  bool
}

func New(store allowance.Store, opts Options) *Service {
	s := &Service{
		store:   store,
		cache:   opts.Cache,
		log:     opts.Logger,
		now:     opts.Now,
		aliases: opts.Aliases,
		strict:  opts.StrictShiftTypes,
	}
	if s.cache == nil {
		s.cache = allowance.NewMemoryCache()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	s.log = s.log.Named("service")
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Aliases returns the configured client code mapping.
func (s *Service) Aliases() ClientAliases { return s.aliases }

// =============================================================================
// SHARED STEPS
// =============================================================================

func (s *Service) currentMonth() allowance.Month {
	return allowance.MonthOf(s.now())
}

func (s *Service) latestSource() allowance.LatestMonthSource {
	return allowance.CachedLatest{Cache: s.cache, Source: s.store}
}

func (s *Service) resolver() allowance.Resolver {
	return allowance.Resolver{Now: s.now, Latest: s.latestSource()}
}

func (s *Service) aggregator(by allowance.MonthField) allowance.Aggregator {
	return allowance.Aggregator{Strict: s.strict, PeriodBy: by}
}

// forest runs fetch -> aggregate -> reconcile for already-resolved buckets.
func (s *Service) forest(ctx context.Context, buckets []allowance.Bucket, filter allowance.GroupFilter, q allowance.RowQuery) (allowance.Forest, error) {
	rates, err := s.store.LoadRates(ctx)
	if err != nil {
		return allowance.Forest{}, fmt.Errorf("failed to load rates: %w", err)
	}

	q.Months = allowance.BucketMonths(buckets)
	rows, err := s.store.RowsFor(ctx, q)
	if err != nil {
		return allowance.Forest{}, fmt.Errorf("failed to load rows: %w", err)
	}

	agg := s.aggregator(q.By)
	agg.Rates = rates
	f, err := agg.Aggregate(rows, buckets, filter)
	if err != nil {
		return allowance.Forest{}, err
	}

	s.log.Debug("aggregated",
		zap.Int("buckets", len(buckets)),
		zap.Int("rows", len(rows)),
		zap.Int("periods_with_data", len(f.Periods)))

	return allowance.Reconcile(f, buckets, filter), nil
}

// combined merges every resolved bucket into one so totals and head counts
// span the whole requested range.
func combined(buckets []allowance.Bucket) []allowance.Bucket {
	if len(buckets) <= 1 {
		return buckets
	}
	key := buckets[0].Key
	if last := buckets[len(buckets)-1].Key; last != key {
		key = fmt.Sprintf("%s - %s", buckets[0].Months[0], lastMonth(buckets))
	}
	return []allowance.Bucket{{Key: key, Months: allowance.BucketMonths(buckets)}}
}

func lastMonth(buckets []allowance.Bucket) allowance.Month {
	b := buckets[len(buckets)-1]
	return b.Months[len(b.Months)-1]
}
