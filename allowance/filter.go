package allowance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// =============================================================================
// GROUP FILTER - "ALL" or client -> departments
// =============================================================================

// ClientFilter selects one client and, optionally, some of its departments.
// An empty Departments list selects every department.
type ClientFilter struct {
	Client      string
	Departments []string
}

// GroupFilter restricts an aggregation to some clients/departments.
// The zero value selects everything.
type GroupFilter struct {
	clients []ClientFilter
}

// AllClients is the "ALL" filter.
func AllClients() GroupFilter { return GroupFilter{} }

// NewGroupFilter builds an explicit filter. An empty map means ALL.
// Entries are kept in client-name order.
func NewGroupFilter(m map[string][]string) GroupFilter {
	var f GroupFilter
	for client, depts := range m {
		client = strings.TrimSpace(client)
		if client == "" {
			continue
		}
		cf := ClientFilter{Client: client}
		for _, d := range depts {
			if d = strings.TrimSpace(d); d != "" {
				cf.Departments = append(cf.Departments, d)
			}
		}
		f.clients = append(f.clients, cf)
	}
	sort.Slice(f.clients, func(i, j int) bool { return f.clients[i].Client < f.clients[j].Client })
	return f
}

// SingleClient selects every department of one client.
func SingleClient(client string) GroupFilter {
	return NewGroupFilter(map[string][]string{client: nil})
}

func (f GroupFilter) IsAll() bool { return len(f.clients) == 0 }

// Entries returns the explicit client filters (nil for ALL).
func (f GroupFilter) Entries() []ClientFilter { return f.clients }

// Matches reports whether a client/department pair passes the filter.
// Comparison is case-insensitive.
func (f GroupFilter) Matches(client, department string) bool {
	if f.IsAll() {
		return true
	}
	for _, cf := range f.clients {
		if !sameName(cf.Client, client) {
			continue
		}
		if len(cf.Departments) == 0 {
			return true
		}
		for _, d := range cf.Departments {
			if sameName(d, department) {
				return true
			}
		}
	}
	return false
}

// MarshalJSON encodes ALL as the string "ALL" and explicit filters as an object.
func (f GroupFilter) MarshalJSON() ([]byte, error) {
	if f.IsAll() {
		return json.Marshal("ALL")
	}
	m := make(map[string][]string, len(f.clients))
	for _, cf := range f.clients {
		depts := cf.Departments
		if depts == nil {
			depts = []string{}
		}
		m[cf.Client] = depts
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts "ALL" (any case), null, or {"client": ["dept", ...]}.
func (f *GroupFilter) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = AllClients()
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if !sameName(s, "ALL") {
			return fmt.Errorf("%w: clients must be 'ALL' or a mapping of client -> departments", ErrInvalidCriteria)
		}
		*f = AllClients()
		return nil
	}
	var m map[string][]string
	if err := json.Unmarshal(b, &m); err != nil {
		return fmt.Errorf("%w: clients must be 'ALL' or a mapping of client -> departments", ErrInvalidCriteria)
	}
	*f = NewGroupFilter(m)
	return nil
}

// sameName compares two names with Unicode case folding.
func sameName(a, b string) bool {
	return foldKey(a) == foldKey(b)
}

// foldKey is the case-folded form used for map keys. A Caser is stateful,
// so each call gets its own.
func foldKey(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
