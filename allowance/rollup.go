/*
rollup.go - The allowance aggregator

PURPOSE:
  Builds the period -> client -> department -> employee forest from
  assignment rows. Each row contributes days x rate(shift, payroll year)
  to its employee leaf and every ancestor; employee ids are collected in
  sets so head counts never double count.

KEY CONCEPTS:
  Totals:     Allowance and days per shift, total, head count
  PeriodNode: One bucket (month or quarter) with its clients and period total
  Aggregator: Rate table + strictness + which month partitions rows

STRICT VS REPORTING:
  Reporting (Strict=false): unknown shift labels are ignored and missing
  rates price at zero. Strict: the first unknown label or missing rate
  aborts the call with a typed error.

ORDERING:
  Periods follow bucket order. Clients and departments sort by name,
  employees by id, so the same input always produces the same output.

SEE ALSO:
  - reconcile.go: Fills in periods/clients/departments with no rows
  - delta.go: Consumes Forest.TotalsBy
*/
package allowance

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ROLLUP NODES
// =============================================================================

// Totals is carried by every node of the forest.
type Totals struct {
	Allowance ShiftAmounts
	Days      ShiftAmounts
	Total     decimal.Decimal
	TotalDays decimal.Decimal
	HeadCount int
}

func (t *Totals) add(shift ShiftType, days, amount decimal.Decimal) {
	t.Allowance.Add(shift, amount)
	t.Days.Add(shift, days)
	t.Total = t.Total.Add(amount)
	t.TotalDays = t.TotalDays.Add(days)
}

type EmployeeNode struct {
	EmployeeID     string
	EmployeeName   string
	AccountManager string
	Totals
}

type DepartmentNode struct {
	Name      string
	Employees []EmployeeNode
	Message   string
	Totals
}

type ClientNode struct {
	Name        string
	Departments []DepartmentNode
	Message     string
	Totals
}

// PeriodNode is one bucket. Total is the "period total" across all clients.
type PeriodNode struct {
	Key     string
	Months  []Month
	Clients []ClientNode
	Message string
	Total   Totals
}

// HasData reports whether any row landed in the period.
func (p PeriodNode) HasData() bool { return len(p.Clients) > 0 && p.Message == "" }

func (p PeriodNode) Client(name string) (ClientNode, bool) {
	for _, c := range p.Clients {
		if sameName(c.Name, name) {
			return c, true
		}
	}
	return ClientNode{}, false
}

func (c ClientNode) Department(name string) (DepartmentNode, bool) {
	for _, d := range c.Departments {
		if sameName(d.Name, name) {
			return d, true
		}
	}
	return DepartmentNode{}, false
}

// Forest is the result of one aggregation, ordered by bucket.
type Forest struct {
	Periods []PeriodNode
}

func (f Forest) Period(key string) (PeriodNode, bool) {
	for _, p := range f.Periods {
		if p.Key == key {
			return p, true
		}
	}
	return PeriodNode{}, false
}

// =============================================================================
// AGGREGATOR
// =============================================================================

// MonthField selects which month of a row partitions it into buckets.
type MonthField int

const (
	ByDurationMonth MonthField = iota
	ByPayrollMonth
)

type Aggregator struct {
	Rates    *RateTable
	Strict   bool
	PeriodBy MonthField
}

// builders keep head-count sets next to the running totals
type employeeBuilder struct {
	node EmployeeNode
}

type departmentBuilder struct {
	totals    Totals
	employees map[string]*employeeBuilder
}

type clientBuilder struct {
	totals      Totals
	departments map[string]*departmentBuilder
	seen        map[string]bool
}

type periodBuilder struct {
	totals  Totals
	clients map[string]*clientBuilder
	seen    map[string]bool
}

// Aggregate prices every row and rolls it up. Rows that fall outside every
// bucket, carry zero days, or fail the filter are skipped.
func (a Aggregator) Aggregate(rows []Assignment, buckets []Bucket, filter GroupFilter) (Forest, error) {
	bucketOf := make(map[Month]int)
	for i, b := range buckets {
		for _, m := range b.Months {
			if _, dup := bucketOf[m]; !dup {
				bucketOf[m] = i
			}
		}
	}

	periods := make(map[int]*periodBuilder)

	for _, raw := range rows {
		row := raw.Normalize()

		month := row.DurationMonth
		if a.PeriodBy == ByPayrollMonth {
			month = row.PayrollMonth
		}
		idx, ok := bucketOf[month]
		if !ok {
			continue
		}
		if !row.Days.IsPositive() {
			continue
		}
		if !filter.Matches(row.Client, row.Department) {
			continue
		}

		shift, known := ParseShiftType(string(row.ShiftType))
		if !known {
			if a.Strict {
				return Forest{}, &UnknownShiftTypeError{Label: string(row.ShiftType)}
			}
			continue
		}

		var rate decimal.Decimal
		if a.Strict {
			r, err := a.Rates.RateOrFail(string(shift), row.PayrollMonth.Year)
			if err != nil {
				return Forest{}, err
			}
			rate = r
		} else {
			rate = a.Rates.RateOrZero(string(shift), row.PayrollMonth.Year)
		}
		amount := row.Days.Mul(rate)

		pb := periods[idx]
		if pb == nil {
			pb = &periodBuilder{clients: make(map[string]*clientBuilder), seen: make(map[string]bool)}
			periods[idx] = pb
		}
		cb := pb.clients[row.Client]
		if cb == nil {
			cb = &clientBuilder{departments: make(map[string]*departmentBuilder), seen: make(map[string]bool)}
			pb.clients[row.Client] = cb
		}
		db := cb.departments[row.Department]
		if db == nil {
			db = &departmentBuilder{employees: make(map[string]*employeeBuilder)}
			cb.departments[row.Department] = db
		}
		eb := db.employees[row.EmployeeID]
		if eb == nil {
			eb = &employeeBuilder{node: EmployeeNode{
				EmployeeID:     row.EmployeeID,
				EmployeeName:   row.EmployeeName,
				AccountManager: row.AccountManager,
			}}
			db.employees[row.EmployeeID] = eb
		}

		eb.node.add(shift, row.Days, amount)
		db.totals.add(shift, row.Days, amount)
		cb.totals.add(shift, row.Days, amount)
		pb.totals.add(shift, row.Days, amount)

		cb.seen[row.EmployeeID] = true
		pb.seen[row.EmployeeID] = true
	}

	var forest Forest
	for i, b := range buckets {
		pb, ok := periods[i]
		if !ok {
			continue
		}
		forest.Periods = append(forest.Periods, pb.build(b))
	}
	return forest, nil
}

func (pb *periodBuilder) build(b Bucket) PeriodNode {
	node := PeriodNode{Key: b.Key, Months: b.Months, Total: pb.totals}
	node.Total.HeadCount = len(pb.seen)

	for _, name := range sortedKeys(pb.clients) {
		cb := pb.clients[name]
		client := ClientNode{Name: name, Totals: cb.totals}
		client.HeadCount = len(cb.seen)

		for _, dname := range sortedKeys(cb.departments) {
			db := cb.departments[dname]
			dept := DepartmentNode{Name: dname, Totals: db.totals}
			dept.HeadCount = len(db.employees)

			for _, id := range sortedKeys(db.employees) {
				emp := db.employees[id].node
				emp.HeadCount = 1
				dept.Employees = append(dept.Employees, emp)
			}
			client.Departments = append(client.Departments, dept)
		}
		node.Clients = append(node.Clients, client)
	}
	return node
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
