package valueobject

import (
	"fmt"
	"sort"
	"strings"
)

// CountryCode is an ISO 3166-1 alpha-2 country code.
type CountryCode string

// ParseCountryCode validates and upper-cases a two-letter country code.
// The VIES code "EL" is accepted as Greece.
func ParseCountryCode(s string) (CountryCode, error) {
	c := strings.ToUpper(strings.TrimSpace(s))
	if len(c) != 2 || c[0] < 'A' || c[0] > 'Z' || c[1] < 'A' || c[1] > 'Z' {
		return "", fmt.Errorf("country must be a 2-letter ISO 3166 code, got %q", s)
	}
	if c == "EL" {
		c = "GR"
	}
	return CountryCode(c), nil
}

// String returns the country code
func (c CountryCode) String() string {
	return string(c)
}

// EUMembership is the configured set of EU member states.
// It is data, not logic: the list comes from configuration.
type EUMembership struct {
	members map[CountryCode]struct{}
}

// NewEUMembership builds the set from a list of codes, ignoring invalid entries.
func NewEUMembership(codes []string) EUMembership {
	m := EUMembership{members: make(map[CountryCode]struct{}, len(codes))}
	for _, code := range codes {
		if c, err := ParseCountryCode(code); err == nil {
			m.members[c] = struct{}{}
		}
	}
	return m
}

// Contains reports whether c is a member state.
func (m EUMembership) Contains(c CountryCode) bool {
	_, ok := m.members[c]
	return ok
}

// Codes returns the member codes in sorted order.
func (m EUMembership) Codes() []string {
	out := make([]string, 0, len(m.members))
	for c := range m.members {
		out = append(out, string(c))
	}
	sort.Strings(out)
	return out
}

// Len returns the number of member states.
func (m EUMembership) Len() int {
	return len(m.members)
}
