package api

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/service"
)

// =============================================================================
// CLIENT SUMMARY RESPONSE
// =============================================================================
//
// Wire shape, periods in request order:
//
//	{
//	  "2024-01": {
//	    "clients": {
//	      "Acme": {
//	        "client_A": .., "client_B": .., "client_C": .., "client_PRIME": ..,
//	        "client_total": .., "client_head_count": ..,
//	        "departments": {
//	          "IT": {"dept_A": .., ..., "dept_total": .., "dept_head_count": ..,
//	                 "employees": [{"emp_id": .., "A": .., ..., "total": ..}]}
//	        }
//	      }
//	    },
//	    "period_total": {"A": .., "B": .., "C": .., "PRIME": ..,
//	                     "total_allowance": .., "total_head_count": ..}
//	  },
//	  "deltas": {"2024-01": {"Acme": "0"}}
//	}
//
// Money is rounded on employee shift amounts only. Every other figure is the
// sum of its rounded children, so the response adds up exactly.

// SummaryEmployeeDTO is one employee line inside a department.
type SummaryEmployeeDTO struct {
	EmployeeID     string          `json:"emp_id"`
	EmployeeName   string          `json:"emp_name"`
	AccountManager string          `json:"account_manager,omitempty"`
	A              decimal.Decimal `json:"A"`
	B              decimal.Decimal `json:"B"`
	C              decimal.Decimal `json:"C"`
	Prime          decimal.Decimal `json:"PRIME"`
	Total          decimal.Decimal `json:"total"`
	Days           ShiftAmountsDTO `json:"days"`
}

type SummaryDepartmentDTO struct {
	A         decimal.Decimal      `json:"dept_A"`
	B         decimal.Decimal      `json:"dept_B"`
	C         decimal.Decimal      `json:"dept_C"`
	Prime     decimal.Decimal      `json:"dept_PRIME"`
	Total     decimal.Decimal      `json:"dept_total"`
	HeadCount int                  `json:"dept_head_count"`
	Days      ShiftAmountsDTO      `json:"dept_days"`
	Message   string               `json:"message,omitempty"`
	Employees []SummaryEmployeeDTO `json:"employees"`
}

type SummaryClientDTO struct {
	ClientCode  string                          `json:"client_code,omitempty"`
	A           decimal.Decimal                 `json:"client_A"`
	B           decimal.Decimal                 `json:"client_B"`
	C           decimal.Decimal                 `json:"client_C"`
	Prime       decimal.Decimal                 `json:"client_PRIME"`
	Total       decimal.Decimal                 `json:"client_total"`
	HeadCount   int                             `json:"client_head_count"`
	Days        ShiftAmountsDTO                 `json:"client_days"`
	Message     string                          `json:"message,omitempty"`
	Departments map[string]SummaryDepartmentDTO `json:"departments"`
}

type PeriodTotalDTO struct {
	A              decimal.Decimal `json:"A"`
	B              decimal.Decimal `json:"B"`
	C              decimal.Decimal `json:"C"`
	Prime          decimal.Decimal `json:"PRIME"`
	TotalAllowance decimal.Decimal `json:"total_allowance"`
	HeadCount      int             `json:"total_head_count"`
	Days           ShiftAmountsDTO `json:"days"`
}

// PeriodDTO is one period. Period is the key it is written under.
type PeriodDTO struct {
	Period      string                      `json:"-"`
	Message     string                      `json:"message,omitempty"`
	Clients     map[string]SummaryClientDTO `json:"clients"`
	PeriodTotal PeriodTotalDTO              `json:"period_total"`
}

// ForestDTO is written as an object keyed by period, plus "deltas" when
// they were requested.
type ForestDTO struct {
	Periods []PeriodDTO
	// Deltas maps period -> client -> change in total allowance.
	Deltas map[string]map[string]decimal.Decimal
}

const deltasKey = "deltas"

func (f ForestDTO) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(val)
		return nil
	}

	for _, p := range f.Periods {
		if err := write(p.Period, p); err != nil {
			return nil, err
		}
	}
	if f.Deltas != nil {
		if err := write(deltasKey, f.Deltas); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON restores periods in key order, which is chronological for
// both monthly and quarter keys.
func (f *ForestDTO) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*f = ForestDTO{}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		if k == deltasKey {
			if err := json.Unmarshal(raw[k], &f.Deltas); err != nil {
				return err
			}
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		p := PeriodDTO{Period: k}
		if err := json.Unmarshal(raw[k], &p); err != nil {
			return err
		}
		f.Periods = append(f.Periods, p)
	}
	return nil
}

// =============================================================================
// CONVERSION
// =============================================================================

// money is a rounded shift breakdown plus its total.
type money struct {
	shifts allowance.ShiftAmounts
	total  decimal.Decimal
}

func (m *money) add(o money) {
	m.shifts.A = m.shifts.A.Add(o.shifts.A)
	m.shifts.B = m.shifts.B.Add(o.shifts.B)
	m.shifts.C = m.shifts.C.Add(o.shifts.C)
	m.shifts.Prime = m.shifts.Prime.Add(o.shifts.Prime)
	m.total = m.total.Add(o.total)
}

func leafMoney(s allowance.ShiftAmounts) money {
	r := allowance.ShiftAmounts{
		A:     allowance.Round(s.A),
		B:     allowance.Round(s.B),
		C:     allowance.Round(s.C),
		Prime: allowance.Round(s.Prime),
	}
	return money{shifts: r, total: r.A.Add(r.B).Add(r.C).Add(r.Prime)}
}

func toForestDTO(f allowance.Forest, deltas []allowance.PeriodDeltas, aliases service.ClientAliases) ForestDTO {
	out := ForestDTO{Periods: make([]PeriodDTO, 0, len(f.Periods))}
	for _, p := range f.Periods {
		pd := PeriodDTO{
			Period:  p.Key,
			Message: p.Message,
			Clients: make(map[string]SummaryClientDTO, len(p.Clients)),
		}
		var periodMoney money
		for _, c := range p.Clients {
			cd, cm := toSummaryClientDTO(c, aliases)
			pd.Clients[c.Name] = cd
			periodMoney.add(cm)
		}
		pd.PeriodTotal = PeriodTotalDTO{
			A:              periodMoney.shifts.A,
			B:              periodMoney.shifts.B,
			C:              periodMoney.shifts.C,
			Prime:          periodMoney.shifts.Prime,
			TotalAllowance: periodMoney.total,
			HeadCount:      p.Total.HeadCount,
			Days:           toShiftAmountsDTO(p.Total.Days),
		}
		out.Periods = append(out.Periods, pd)
	}

	if deltas != nil {
		out.Deltas = make(map[string]map[string]decimal.Decimal, len(deltas))
		for _, d := range deltas {
			out.Deltas[d.Period] = roundMap(d.Deltas)
		}
	}
	return out
}

func toSummaryClientDTO(c allowance.ClientNode, aliases service.ClientAliases) (SummaryClientDTO, money) {
	cd := SummaryClientDTO{
		ClientCode:  aliases.Code(c.Name),
		HeadCount:   c.HeadCount,
		Days:        toShiftAmountsDTO(c.Days),
		Message:     c.Message,
		Departments: make(map[string]SummaryDepartmentDTO, len(c.Departments)),
	}
	if cd.ClientCode == c.Name {
		cd.ClientCode = ""
	}

	var cm money
	for _, d := range c.Departments {
		dd := SummaryDepartmentDTO{
			HeadCount: d.HeadCount,
			Days:      toShiftAmountsDTO(d.Days),
			Message:   d.Message,
			Employees: make([]SummaryEmployeeDTO, 0, len(d.Employees)),
		}
		var dm money
		for _, e := range d.Employees {
			em := leafMoney(e.Allowance)
			dd.Employees = append(dd.Employees, SummaryEmployeeDTO{
				EmployeeID:     e.EmployeeID,
				EmployeeName:   e.EmployeeName,
				AccountManager: e.AccountManager,
				A:              em.shifts.A,
				B:              em.shifts.B,
				C:              em.shifts.C,
				Prime:          em.shifts.Prime,
				Total:          em.total,
				Days:           toShiftAmountsDTO(e.Days),
			})
			dm.add(em)
		}
		dd.A, dd.B, dd.C, dd.Prime, dd.Total = dm.shifts.A, dm.shifts.B, dm.shifts.C, dm.shifts.Prime, dm.total
		cd.Departments[d.Name] = dd
		cm.add(dm)
	}
	cd.A, cd.B, cd.C, cd.Prime, cd.Total = cm.shifts.A, cm.shifts.B, cm.shifts.C, cm.shifts.Prime, cm.total
	return cd, cm
}
