package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
)

// =============================================================================
// DASHBOARD - Client-level rankings and charts
// =============================================================================

// DefaultTop is the number of clients TopClients returns when n is 0.
const DefaultTop = 5

// ClientTotal is one client's line in a dashboard chart.
type ClientTotal struct {
	Client         string
	ClientCode     string
	HeadCount      int
	Days           allowance.ShiftAmounts
	TotalDays      decimal.Decimal
	TotalAllowance decimal.Decimal
}

// PeriodClients is a ranking of clients inside one period.
type PeriodClients struct {
	Period  string
	Message string
	Clients []ClientTotal
}

func (s *Service) clientTotals(p allowance.PeriodNode) []ClientTotal {
	out := make([]ClientTotal, 0, len(p.Clients))
	for _, c := range p.Clients {
		out = append(out, ClientTotal{
			Client:         c.Name,
			ClientCode:     s.aliases.Code(c.Name),
			HeadCount:      c.HeadCount,
			Days:           c.Days,
			TotalDays:      c.TotalDays,
			TotalAllowance: c.Total,
		})
	}
	return out
}

func sortByAllowance(cs []ClientTotal) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].TotalAllowance.Equal(cs[j].TotalAllowance) {
			return cs[i].TotalAllowance.GreaterThan(cs[j].TotalAllowance)
		}
		return cs[i].Client < cs[j].Client
	})
}

func truncate(cs []ClientTotal, n int) []ClientTotal {
	if n > 0 && len(cs) > n {
		return cs[:n]
	}
	return cs
}

func validTop(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: top must be a positive integer", allowance.ErrInvalidParameter)
	}
	return nil
}

// TopClients ranks clients by allowance in every period. n == 0 uses
// DefaultTop.
func (s *Service) TopClients(ctx context.Context, c allowance.Criteria, n int) ([]PeriodClients, error) {
	if err := validTop(n); err != nil {
		return nil, err
	}
	if n == 0 {
		n = DefaultTop
	}
	buckets, err := s.resolver().Resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	f, err := s.forest(ctx, buckets, allowance.AllClients(), allowance.RowQuery{})
	if err != nil {
		return nil, err
	}

	out := make([]PeriodClients, 0, len(f.Periods))
	for _, p := range f.Periods {
		pc := PeriodClients{Period: p.Key, Message: p.Message}
		if p.HasData() {
			totals := s.clientTotals(p)
			sortByAllowance(totals)
			pc.Clients = truncate(totals, n)
		}
		out = append(out, pc)
	}
	return out, nil
}

// rangeTotals aggregates the whole resolved range as one period.
func (s *Service) rangeTotals(ctx context.Context, c allowance.Criteria) ([]ClientTotal, error) {
	buckets, err := s.resolver().Resolve(ctx, c)
	if err != nil {
		return nil, err
	}
	f, err := s.forest(ctx, combined(buckets), allowance.AllClients(), allowance.RowQuery{})
	if err != nil {
		return nil, err
	}
	if len(f.Periods) == 0 || !f.Periods[0].HasData() {
		return nil, fmt.Errorf("%w: no records found in the given month range", allowance.ErrNoDataAvailable)
	}
	return s.clientTotals(f.Periods[0]), nil
}

// HorizontalBar lists head count and days per shift for each client,
// largest head count first. top == 0 returns every client.
func (s *Service) HorizontalBar(ctx context.Context, c allowance.Criteria, top int) ([]ClientTotal, error) {
	if err := validTop(top); err != nil {
		return nil, err
	}
	totals, err := s.rangeTotals(ctx, c)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(totals, func(i, j int) bool {
		if totals[i].HeadCount != totals[j].HeadCount {
			return totals[i].HeadCount > totals[j].HeadCount
		}
		return totals[i].Client < totals[j].Client
	})
	return truncate(totals, top), nil
}

// PieChart lists total days and allowance per client, largest allowance
// first. top == 0 returns every client.
func (s *Service) PieChart(ctx context.Context, c allowance.Criteria, top int) ([]ClientTotal, error) {
	if err := validTop(top); err != nil {
		return nil, err
	}
	totals, err := s.rangeTotals(ctx, c)
	if err != nil {
		return nil, err
	}
	sortByAllowance(totals)
	return truncate(totals, top), nil
}

// VerticalBar is PieChart without the shift breakdown.
func (s *Service) VerticalBar(ctx context.Context, c allowance.Criteria, top int) ([]ClientTotal, error) {
	totals, err := s.PieChart(ctx, c, top)
	if err != nil {
		return nil, err
	}
	for i := range totals {
		totals[i].Days = allowance.ShiftAmounts{}
	}
	return totals, nil
}

// =============================================================================
// CLIENT GRAPH - One client, monthly totals for a year
// =============================================================================

type MonthTotal struct {
	Month string // "Jan"
	Key   string // "2024-01"
	Total decimal.Decimal
}

type ClientGraph struct {
	Client     string
	ClientCode string
	Year       int
	Months     []MonthTotal
}

// ClientGraph returns twelve monthly totals for one client. Months after
// the current month report zero. year == 0 means the current year.
func (s *Service) ClientGraph(ctx context.Context, client string, year int) (ClientGraph, error) {
	if strings.TrimSpace(client) == "" {
		return ClientGraph{}, fmt.Errorf("%w: client is required", allowance.ErrInvalidParameter)
	}
	current := s.currentMonth()
	if year == 0 {
		year = current.Year
	}
	if year <= 0 || year > current.Year {
		return ClientGraph{}, fmt.Errorf("%w: %d", allowance.ErrInvalidYear, year)
	}

	name, err := s.findClient(ctx, client)
	if err != nil {
		return ClientGraph{}, err
	}

	buckets := make([]allowance.Bucket, 0, 12)
	for m := time.January; m <= time.December; m++ {
		month := allowance.NewMonth(year, m)
		buckets = append(buckets, allowance.Bucket{Key: month.String(), Months: []allowance.Month{month}})
	}

	f, err := s.forest(ctx, buckets, allowance.SingleClient(name), allowance.RowQuery{Client: name})
	if err != nil {
		return ClientGraph{}, err
	}

	out := ClientGraph{Client: name, ClientCode: s.aliases.Code(name), Year: year}
	for i, p := range f.Periods {
		total := decimal.Zero
		if c, ok := p.Client(name); ok {
			total = c.Total
		}
		out.Months = append(out.Months, MonthTotal{
			Month: buckets[i].Months[0].FirstDay().Format("Jan"),
			Key:   p.Key,
			Total: total,
		})
	}
	return out, nil
}

// findClient returns the stored spelling of a client name.
func (s *Service) findClient(ctx context.Context, client string) (string, error) {
	name, ok, err := s.lookupClient(ctx, client)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: client %q not found", allowance.ErrNoDataAvailable, client)
	}
	return name, nil
}

// lookupClient resolves user input to a stored client name. An exact
// (case-insensitive) stored name wins over an alias code, so a client named
// like a code stays reachable. ok is false when nothing is stored under the
// input or its alias; name is then the alias-expanded input.
func (s *Service) lookupClient(ctx context.Context, input string) (name string, ok bool, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", false, nil
	}
	clients, err := s.store.Clients(ctx)
	if err != nil {
		return "", false, fmt.Errorf("failed to list clients: %w", err)
	}
	for _, c := range clients {
		if fold(c) == fold(input) {
			return c, true, nil
		}
	}
	full := s.aliases.FullName(input)
	for _, c := range clients {
		if fold(c) == fold(full) {
			return c, true, nil
		}
	}
	return full, false, nil
}

// =============================================================================
// CLIENT LISTS
// =============================================================================

func (s *Service) Clients(ctx context.Context) ([]string, error) {
	clients, err := s.store.Clients(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	return clients, nil
}

type ClientDepartments struct {
	Client      string
	Departments []string
}

// ClientDepartments lists departments per client. A non-empty client
// narrows the result to that client, which must exist.
func (s *Service) ClientDepartments(ctx context.Context, client string) ([]ClientDepartments, error) {
	all, err := s.store.Departments(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list departments: %w", err)
	}

	if client != "" {
		name, err := s.findClient(ctx, client)
		if err != nil {
			return nil, err
		}
		return []ClientDepartments{{Client: name, Departments: all[name]}}, nil
	}

	out := make([]ClientDepartments, 0, len(all))
	for _, name := range sortedNames(all) {
		out = append(out, ClientDepartments{Client: name, Departments: all[name]})
	}
	return out, nil
}

func sortedNames(m map[string][]string) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
