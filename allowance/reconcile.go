package allowance

import (
	"fmt"
	"sort"
)

// =============================================================================
// ZERO-FILL - Every requested period (and filtered client/department) appears
// =============================================================================

// NoDataMessage is the marker carried by an empty period.
func NoDataMessage(periodKey string) string {
	return fmt.Sprintf("No data found for %s", periodKey)
}

func noClientMessage(client, periodKey string) string {
	return fmt.Sprintf("No data available for %s in %s", client, periodKey)
}

func noDepartmentMessage(client, dept, periodKey string) string {
	return fmt.Sprintf("No data available for %s - %s in %s", client, dept, periodKey)
}

// Reconcile returns a forest with one period per bucket, in bucket order.
// Periods without rows become placeholders with zero totals. With an
// explicit filter, every listed client and department is present in every
// period. No employee entries are ever added.
func Reconcile(f Forest, buckets []Bucket, filter GroupFilter) Forest {
	byKey := make(map[string]PeriodNode, len(f.Periods))
	for _, p := range f.Periods {
		byKey[p.Key] = p
	}

	out := Forest{Periods: make([]PeriodNode, 0, len(buckets))}
	for _, b := range buckets {
		p, ok := byKey[b.Key]
		if !ok {
			p = PeriodNode{Key: b.Key, Months: b.Months, Message: NoDataMessage(b.Key)}
		}
		if !filter.IsAll() {
			p.Clients = fillClients(p.Clients, filter, b.Key)
		}
		out.Periods = append(out.Periods, p)
	}
	return out
}

func fillClients(clients []ClientNode, filter GroupFilter, periodKey string) []ClientNode {
	filled := append([]ClientNode(nil), clients...)

	for _, cf := range filter.Entries() {
		idx := -1
		for i := range filled {
			if sameName(filled[i].Name, cf.Client) {
				idx = i
				break
			}
		}
		if idx < 0 {
			filled = append(filled, ClientNode{Name: cf.Client, Message: noClientMessage(cf.Client, periodKey)})
			idx = len(filled) - 1
		}

		client := &filled[idx]
		client.Departments = append([]DepartmentNode(nil), client.Departments...)
		for _, dept := range cf.Departments {
			if _, ok := client.Department(dept); ok {
				continue
			}
			client.Departments = append(client.Departments, DepartmentNode{
				Name:    dept,
				Message: noDepartmentMessage(cf.Client, dept, periodKey),
			})
		}
		sort.Slice(client.Departments, func(i, j int) bool { return client.Departments[i].Name < client.Departments[j].Name })
	}

	sort.Slice(filled, func(i, j int) bool { return filled[i].Name < filled[j].Name })
	return filled
}
