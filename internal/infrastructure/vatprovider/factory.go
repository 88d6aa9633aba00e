package vatprovider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerly/invoicing/internal/domain/vatid"
	"github.com/ledgerly/invoicing/internal/infrastructure/config"
)

const (
	KindFake = "fake"
	KindVIES = "vies"
)

// New returns the provider selected by configuration
func New(cfg config.VATConfig, logger *zap.Logger) (vatid.ValidationProvider, error) {
	switch cfg.Provider {
	case "", KindFake:
		return NewFakeProvider(), nil
	case KindVIES:
		return NewVIESClient(VIESConfig{
			BaseURL:   cfg.VIESBaseURL,
			Timeout:   cfg.VIESTimeout,
			RateLimit: cfg.VIESRateLimit,
			Burst:     cfg.VIESBurst,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown VAT provider %q", cfg.Provider)
	}
}
