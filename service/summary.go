package service

import (
	"context"

	"github.com/warp/shift-allowance/allowance"
)

// =============================================================================
// CLIENT SUMMARY
// =============================================================================

// SummaryRequest selects periods and clients for a client summary.
type SummaryRequest struct {
	Criteria allowance.Criteria
	Clients  allowance.GroupFilter

	// WithDeltas attaches client-level period-over-period changes.
	WithDeltas bool
}

type Summary struct {
	Forest allowance.Forest
	Deltas []allowance.PeriodDeltas
}

// ClientSummary is the main report: every requested period, each broken
// down by client, department and employee.
func (s *Service) ClientSummary(ctx context.Context, req SummaryRequest) (Summary, error) {
	buckets, err := s.resolver().Resolve(ctx, req.Criteria)
	if err != nil {
		return Summary{}, err
	}

	f, err := s.forest(ctx, buckets, req.Clients, allowance.RowQuery{By: allowance.ByDurationMonth})
	if err != nil {
		return Summary{}, err
	}

	out := Summary{Forest: f}
	if req.WithDeltas {
		out.Deltas = allowance.Deltas(f.TotalsBy(allowance.LevelClient))
	}
	return out, nil
}

// =============================================================================
// INTERVAL SUMMARY - Keyed by payroll month
// =============================================================================

// IntervalSummary aggregates by payroll month between start and end
// (YYYY-MM, end optional). Rates still come from the payroll year.
func (s *Service) IntervalSummary(ctx context.Context, start, end string) (allowance.Forest, error) {
	if start == "" {
		return allowance.Forest{}, allowance.ErrIncompleteCriteria
	}
	buckets, err := s.resolver().Resolve(ctx, allowance.Criteria{StartMonth: start, EndMonth: end})
	if err != nil {
		return allowance.Forest{}, err
	}
	return s.forest(ctx, buckets, allowance.AllClients(), allowance.RowQuery{By: allowance.ByPayrollMonth})
}
