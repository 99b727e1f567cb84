package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
)

// =============================================================================
// CLIENT COMPARISON - One client, month by month, department by department
// =============================================================================

type ComparisonRequest struct {
	Client     string
	StartMonth string
	EndMonth   string
}

// GroupTotal is a total allowance with its distinct head count.
type GroupTotal struct {
	TotalAllowance decimal.Decimal
	HeadCount      int
}

type EmployeeAllowance struct {
	EmployeeID   string
	EmployeeName string
	Allowance    allowance.ShiftAmounts
	Total        decimal.Decimal
}

type DepartmentComparison struct {
	Department string
	GroupTotal
	// Diff is this month's total minus the same department's total in the
	// closest earlier month that has data. Zero when the department was
	// absent from that month, and in the first month with data.
	Diff      decimal.Decimal
	Employees []EmployeeAllowance
}

type MonthComparison struct {
	Month         string
	Message       string
	Departments   []DepartmentComparison
	VerticalTotal GroupTotal
}

type Comparison struct {
	Client     string
	ClientCode string
	Months     []MonthComparison
	// HorizontalTotal is each department across every month, with employees
	// counted once.
	HorizontalTotal map[string]GroupTotal
}

// ClientComparison compares one client across months. Without a start
// month it uses the client's own latest month.
func (s *Service) ClientComparison(ctx context.Context, req ComparisonRequest) (Comparison, error) {
	client, _, err := s.lookupClient(ctx, req.Client)
	if err != nil {
		return Comparison{}, err
	}
	if client == "" {
		return Comparison{}, fmt.Errorf("%w: client is required", allowance.ErrInvalidParameter)
	}

	criteria := allowance.Criteria{StartMonth: req.StartMonth, EndMonth: req.EndMonth}
	var buckets []allowance.Bucket
	if criteria.IsEmpty() {
		latest, ok, err := s.store.LatestMonthWhere(ctx, allowance.LatestQuery{Client: client})
		if err != nil {
			return Comparison{}, fmt.Errorf("failed to read latest month for %s: %w", client, err)
		}
		if !ok {
			return Comparison{}, fmt.Errorf("%w: no records found for client %q", allowance.ErrNoDataAvailable, client)
		}
		criteria.StartMonth = latest.String()
	}
	if buckets, err = s.resolver().Resolve(ctx, criteria); err != nil {
		return Comparison{}, err
	}

	f, err := s.forest(ctx, buckets, allowance.SingleClient(client), allowance.RowQuery{Client: client})
	if err != nil {
		return Comparison{}, err
	}

	return buildComparison(client, s.aliases.Code(client), f), nil
}

func buildComparison(client, code string, f allowance.Forest) Comparison {
	out := Comparison{Client: client, ClientCode: code, HorizontalTotal: make(map[string]GroupTotal)}

	horizontalIDs := make(map[string]map[string]bool)
	var prev map[string]decimal.Decimal

	for _, p := range f.Periods {
		mc := MonthComparison{Month: p.Key}
		c, ok := p.Client(client)
		if !ok || len(c.Departments) == 0 {
			mc.Message = "No data found"
			out.Months = append(out.Months, mc)
			continue
		}

		mc.VerticalTotal = GroupTotal{TotalAllowance: c.Total, HeadCount: c.HeadCount}
		current := make(map[string]decimal.Decimal, len(c.Departments))
		for _, d := range c.Departments {
			current[d.Name] = d.Total
			dc := DepartmentComparison{
				Department: d.Name,
				GroupTotal: GroupTotal{TotalAllowance: d.Total, HeadCount: d.HeadCount},
				Diff:       decimal.Zero,
			}
			if before, ok := prev[d.Name]; ok {
				dc.Diff = d.Total.Sub(before)
			}
			if horizontalIDs[d.Name] == nil {
				horizontalIDs[d.Name] = make(map[string]bool)
			}
			h := out.HorizontalTotal[d.Name]
			h.TotalAllowance = h.TotalAllowance.Add(d.Total)
			for _, e := range d.Employees {
				horizontalIDs[d.Name][strings.TrimSpace(e.EmployeeID)] = true
				dc.Employees = append(dc.Employees, EmployeeAllowance{
					EmployeeID:   e.EmployeeID,
					EmployeeName: e.EmployeeName,
					Allowance:    e.Allowance,
					Total:        e.Total,
				})
			}
			out.HorizontalTotal[d.Name] = h
			mc.Departments = append(mc.Departments, dc)
		}
		prev = current
		out.Months = append(out.Months, mc)
	}

	for dept, ids := range horizontalIDs {
		h := out.HorizontalTotal[dept]
		h.HeadCount = len(ids)
		out.HorizontalTotal[dept] = h
	}
	return out
}
