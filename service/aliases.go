package service

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
)

// ClientAliases maps a short client code (e.g. "ATD") to the full client
// name stored on records. Lookups are case-insensitive.
//
// A code never shadows a stored client name: resolve user input with
// Service.lookupClient, which tries stored names first.
type ClientAliases map[string]string

// Code returns the short code for a full name, or the name itself when no
// alias matches.
func (a ClientAliases) Code(name string) string {
	for code, full := range a {
		if fold(full) == fold(name) {
			return code
		}
	}
	return name
}

// FullName expands a code to its full name. Unknown values pass through.
func (a ClientAliases) FullName(nameOrCode string) string {
	for code, full := range a {
		if fold(code) == fold(nameOrCode) {
			return full
		}
	}
	return strings.TrimSpace(nameOrCode)
}

// Codes lists the known codes in order.
func (a ClientAliases) Codes() []string {
	codes := make([]string, 0, len(a))
	for code := range a {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(fold(haystack), fold(needle))
}
