package valueobject

import (
	"strings"
)

// Address is a postal address as it appears on an invoice.
type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Region     string `json:"region,omitempty"`
	Country    string `json:"country"`
}

// NewAddress creates a trimmed Address. Country is normalized to an upper-case code.
func NewAddress(street, city, postalCode, region, country string) Address {
	return Address{
		Street:     strings.TrimSpace(street),
		City:       strings.TrimSpace(city),
		PostalCode: strings.TrimSpace(postalCode),
		Region:     strings.TrimSpace(region),
		Country:    strings.ToUpper(strings.TrimSpace(country)),
	}
}

// IsComplete reports whether the address has every part required on a legal invoice.
// Region is optional.
func (a Address) IsComplete() bool {
	return a.Street != "" && a.City != "" && a.PostalCode != "" && a.Country != ""
}

// MissingFields lists the required parts that are empty.
func (a Address) MissingFields() []string {
	var missing []string
	if a.Street == "" {
		missing = append(missing, "street")
	}
	if a.City == "" {
		missing = append(missing, "city")
	}
	if a.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	if a.Country == "" {
		missing = append(missing, "country")
	}
	return missing
}

// String returns a single-line rendering of the address.
func (a Address) String() string {
	parts := make([]string, 0, 5)
	for _, p := range []string{a.Street, a.PostalCode + " " + a.City, a.Region, a.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Equals returns true if both addresses are identical
func (a Address) Equals(other Address) bool {
	return a == other
}
