// Package pricing converts marketplace KRW prices into the storefront currency.
package pricing

import (
	"fmt"
	"strings"

	"github.com/cuongbtq/catalog-bridge/internal/config"
	"github.com/shopspring/decimal"
)

// Quote is a converted price. Price is rounded to the converter's scale.
type Quote struct {
	KRWPrice decimal.Decimal
	Fee      decimal.Decimal
	Price    decimal.Decimal
	Currency string
}

// Converter applies a fixed exchange rate
type Converter struct {
	rate     decimal.Decimal
	currency string
	scale    int32
}

// NewConverter builds a converter from the pricing configuration
func NewConverter(cfg config.PricingConfig) (*Converter, error) {
	rate, err := decimal.NewFromString(cfg.ExchangeRate)
	if err != nil {
		return nil, fmt.Errorf("invalid exchange rate %q: %w", cfg.ExchangeRate, err)
	}
	if !rate.IsPositive() {
		return nil, fmt.Errorf("exchange rate must be positive, got %s", rate)
	}
	if cfg.Scale < 0 {
		return nil, fmt.Errorf("pricing scale must not be negative, got %d", cfg.Scale)
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "USD"
	}

	return &Converter{
		rate:     rate,
		currency: currency,
		scale:    cfg.Scale,
	}, nil
}

// Currency returns the ISO code prices are converted into
func (c *Converter) Currency() string {
	return c.currency
}

// Scale returns the number of decimal places prices are rounded to
func (c *Converter) Scale() int32 {
	return c.scale
}

// Preview converts krwPrice and adds fee, which is already in the target currency
func (c *Converter) Preview(krwPrice, fee decimal.Decimal) Quote {
	return Quote{
		KRWPrice: krwPrice,
		Fee:      fee,
		Price:    krwPrice.Mul(c.rate).Add(fee).Round(c.scale),
		Currency: c.currency,
	}
}
