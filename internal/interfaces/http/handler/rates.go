package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ledgerly/invoicing/internal/infrastructure/vatprovider"
)

// RateResponse is one row of the standard-rate table
type RateResponse struct {
	Country string          `json:"country"`
	Rate    decimal.Decimal `json:"rate"`
}

// RatesHandler serves the informational standard-rate table
type RatesHandler struct {
	BaseHandler
	rates *vatprovider.StaticRates
}

// NewRatesHandler creates a new RatesHandler
func NewRatesHandler(rates *vatprovider.StaticRates) *RatesHandler {
	return &RatesHandler{rates: rates}
}

// List handles GET /rates
func (h *RatesHandler) List(c *gin.Context) {
	all := h.rates.All()
	out := make([]RateResponse, len(all))
	for i, r := range all {
		out[i] = RateResponse{Country: string(r.Country), Rate: r.Rate}
	}
	h.Success(c, out)
}
