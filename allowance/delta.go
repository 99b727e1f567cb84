package allowance

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// DELTAS - Period-over-period change in total allowance
// =============================================================================

// GroupLevel selects the grouping key of PeriodTotals.
type GroupLevel int

const (
	LevelPeriod GroupLevel = iota
	LevelClient
	LevelDepartment
	LevelEmployee
)

// PeriodTotalKey is the only key used at LevelPeriod.
const PeriodTotalKey = "period_total"

// PeriodTotals maps a grouping key to its total allowance in one period.
type PeriodTotals struct {
	Period string
	Totals map[string]decimal.Decimal
}

// PeriodDeltas maps a grouping key to its change from the previous period.
type PeriodDeltas struct {
	Period string
	Deltas map[string]decimal.Decimal
}

// TotalsBy collapses the forest to one total per key per period.
// Department keys are summed across clients; use a single-client filter
// when departments must stay client-scoped.
func (f Forest) TotalsBy(level GroupLevel) []PeriodTotals {
	out := make([]PeriodTotals, 0, len(f.Periods))
	for _, p := range f.Periods {
		totals := make(map[string]decimal.Decimal)
		switch level {
		case LevelPeriod:
			totals[PeriodTotalKey] = p.Total.Total
		default:
			for _, c := range p.Clients {
				if level == LevelClient {
					totals[c.Name] = totals[c.Name].Add(c.Total)
					continue
				}
				for _, d := range c.Departments {
					if level == LevelDepartment {
						totals[d.Name] = totals[d.Name].Add(d.Total)
						continue
					}
					for _, e := range d.Employees {
						totals[e.EmployeeID] = totals[e.EmployeeID].Add(e.Total)
					}
				}
			}
		}
		out = append(out, PeriodTotals{Period: p.Key, Totals: totals})
	}
	return out
}

// Deltas computes, for each period, current minus previous total per key.
// The first period reports an explicit zero for every key it has. After
// that, a key absent from the previous period compares against zero and a
// key that disappeared reports minus its previous total.
func Deltas(seq []PeriodTotals) []PeriodDeltas {
	out := make([]PeriodDeltas, len(seq))
	for i, cur := range seq {
		deltas := make(map[string]decimal.Decimal, len(cur.Totals))
		if i == 0 {
			for k := range cur.Totals {
				deltas[k] = decimal.Zero
			}
			out[i] = PeriodDeltas{Period: cur.Period, Deltas: deltas}
			continue
		}
		prev := seq[i-1].Totals
		for k, v := range cur.Totals {
			deltas[k] = v.Sub(prev[k])
		}
		for k, v := range prev {
			if _, ok := cur.Totals[k]; !ok {
				deltas[k] = v.Neg()
			}
		}
		out[i] = PeriodDeltas{Period: cur.Period, Deltas: deltas}
	}
	return out
}
