package vatprovider

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/tax"
)

// standardRates lists EU standard VAT rates in percent as of 2025
var standardRates = map[valueobject.CountryCode]string{
	"AT": "20", "BE": "21", "BG": "20", "CY": "19", "CZ": "21",
	"DE": "19", "DK": "25", "EE": "24", "ES": "21", "FI": "25.5",
	"FR": "20", "GR": "24", "HR": "25", "HU": "27", "IE": "23",
	"IT": "22", "LT": "21", "LU": "17", "LV": "21", "MT": "18",
	"NL": "21", "PL": "23", "PT": "23", "RO": "21", "SE": "25",
	"SI": "22", "SK": "23",
}

// StaticRates serves standard rates from a built-in table
type StaticRates struct {
	rates map[valueobject.CountryCode]decimal.Decimal
}

// NewStaticRates builds the table, applying overrides on top of the defaults
func NewStaticRates(overrides map[string]string) (*StaticRates, error) {
	rates := make(map[valueobject.CountryCode]decimal.Decimal, len(standardRates))
	for cc, r := range standardRates {
		rates[cc] = decimal.RequireFromString(r)
	}
	for cc, r := range overrides {
		code, err := valueobject.ParseCountryCode(cc)
		if err != nil {
			return nil, err
		}
		d, err := decimal.NewFromString(r)
		if err != nil {
			return nil, err
		}
		rates[code] = d
	}
	return &StaticRates{rates: rates}, nil
}

// StandardRate returns the standard rate of country; ok is false for unknown countries
func (s *StaticRates) StandardRate(_ context.Context, country valueobject.CountryCode) (decimal.Decimal, bool, error) {
	r, ok := s.rates[country]
	return r, ok, nil
}

// All returns the table sorted by country
func (s *StaticRates) All() []CountryRate {
	out := make([]CountryRate, 0, len(s.rates))
	for cc, r := range s.rates {
		out = append(out, CountryRate{Country: cc, Rate: r})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Country < out[j].Country })
	return out
}

// CountryRate is one row of the table
type CountryRate struct {
	Country valueobject.CountryCode
	Rate    decimal.Decimal
}

var _ tax.RatesProvider = (*StaticRates)(nil)
