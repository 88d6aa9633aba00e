// Package vatprovider holds the VAT identity validation providers: the EU
// VIES REST service and a deterministic fake for development and tests.
package vatprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

const (
	// DefaultVIESBaseURL is the public VIES REST endpoint
	DefaultVIESBaseURL = "https://ec.europa.eu/taxation_customs/vies/rest-api"
	checkPath          = "/check-vat-number"
	maxResponseBytes   = 1 << 20
)

// VIES user error codes that mean the answer is definitive
var viesInvalidCodes = map[string]bool{
	"INVALID":       true,
	"INVALID_INPUT": true,
}

// VIESConfig holds the VIES client settings
type VIESConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 = unlimited
	Burst     int
}

// DefaultVIESConfig returns the default configuration
func DefaultVIESConfig() VIESConfig {
	return VIESConfig{
		BaseURL:   DefaultVIESBaseURL,
		Timeout:   10 * time.Second,
		RateLimit: 2,
		Burst:     1,
	}
}

// VIESClient validates identifiers against the EU VIES REST API
type VIESClient struct {
	baseURL     string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewVIESClient creates a new VIES client
func NewVIESClient(cfg VIESConfig, logger *zap.Logger) *VIESClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultVIESBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VIESClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		rateLimiter: rate.NewLimiter(limit, cfg.Burst),
		logger:      logger,
	}
}

// Name returns the source tag stored on validated rows
func (c *VIESClient) Name() string {
	return "vies"
}

type viesRequest struct {
	CountryCode string `json:"countryCode"`
	VatNumber   string `json:"vatNumber"`
}

type viesResponse struct {
	CountryCode       string `json:"countryCode"`
	VatNumber         string `json:"vatNumber"`
	RequestDate       string `json:"requestDate"`
	Valid             bool   `json:"valid"`
	RequestIdentifier string `json:"requestIdentifier"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	UserError         string `json:"userError"`
}

// Validate checks one identifier. Member-state outages and throttling return
// an error so the cached status is left as it was.
func (c *VIESClient) Validate(ctx context.Context, country valueobject.CountryCode, identifier string) (vatid.ValidationResult, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return vatid.ValidationResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	payload, err := json.Marshal(viesRequest{
		CountryCode: viesCountryCode(country),
		VatNumber:   identifier,
	})
	if err != nil {
		return vatid.ValidationResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+checkPath, bytes.NewReader(payload))
	if err != nil {
		return vatid.ValidationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return vatid.ValidationResult{}, fmt.Errorf("VIES request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return vatid.ValidationResult{}, fmt.Errorf("read VIES response: %w", err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return vatid.ValidationResult{}, fmt.Errorf("VIES unavailable: HTTP %d", resp.StatusCode)
	}

	var out viesResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return vatid.ValidationResult{}, fmt.Errorf("parse VIES response (HTTP %d): %w", resp.StatusCode, err)
	}

	result, err := mapVIESResponse(out, time.Now().UTC())
	if err != nil {
		return vatid.ValidationResult{}, err
	}
	c.logger.Debug("VIES answered",
		zap.String("country", string(country)),
		zap.String("status", result.Status.String()),
		zap.String("request_identifier", out.RequestIdentifier))
	return result, nil
}

func mapVIESResponse(out viesResponse, now time.Time) (vatid.ValidationResult, error) {
	code := strings.ToUpper(strings.TrimSpace(out.UserError))
	result := vatid.ValidationResult{
		ConsultationNumber: out.RequestIdentifier,
		CheckedAt:          now,
	}

	switch {
	case out.Valid:
		result.Status = vatid.StatusValid
		result.CompanyName = viesText(out.Name)
		result.CompanyAddress = viesText(out.Address)
	case code == "" || code == "VALID" || viesInvalidCodes[code]:
		result.Status = vatid.StatusInvalid
	default:
		// MS_UNAVAILABLE, TIMEOUT, SERVICE_UNAVAILABLE, MS_MAX_CONCURRENT_REQ, ...
		return vatid.ValidationResult{}, fmt.Errorf("VIES returned %s", code)
	}
	return result, nil
}

// viesText drops the "---" placeholder VIES uses for undisclosed data
func viesText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" || s == "---" {
		return nil
	}
	return &s
}

// viesCountryCode maps ISO codes to the VIES member-state prefix
func viesCountryCode(c valueobject.CountryCode) string {
	if c == "GR" {
		return "EL"
	}
	return string(c)
}

var _ vatid.ValidationProvider = (*VIESClient)(nil)
