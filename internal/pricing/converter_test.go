package pricing

import (
	"testing"

	"github.com/cuongbtq/catalog-bridge/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConverter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.PricingConfig
		wantErr string
	}{
		{name: "valid", cfg: config.PricingConfig{Currency: "usd", ExchangeRate: "0.00075", Scale: 2}},
		{name: "malformed rate", cfg: config.PricingConfig{ExchangeRate: "abc"}, wantErr: "invalid exchange rate"},
		{name: "zero rate", cfg: config.PricingConfig{ExchangeRate: "0"}, wantErr: "must be positive"},
		{name: "negative rate", cfg: config.PricingConfig{ExchangeRate: "-1"}, wantErr: "must be positive"},
		{name: "negative scale", cfg: config.PricingConfig{ExchangeRate: "1", Scale: -1}, wantErr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConverter(tt.cfg)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "USD", c.Currency())
			assert.Equal(t, int32(2), c.Scale())
		})
	}
}

func TestNewConverter_DefaultCurrency(t *testing.T) {
	c, err := NewConverter(config.PricingConfig{ExchangeRate: "0.00075"})
	require.NoError(t, err)
	assert.Equal(t, "USD", c.Currency())
}

func TestConverter_Preview(t *testing.T) {
	c, err := NewConverter(config.PricingConfig{Currency: "USD", ExchangeRate: "0.00075", Scale: 2})
	require.NoError(t, err)

	tests := []struct {
		name     string
		krwPrice string
		fee      string
		want     string
	}{
		{name: "no fee", krwPrice: "10000", fee: "0", want: "7.5"},
		{name: "with fee", krwPrice: "10000", fee: "1.25", want: "8.75"},
		{name: "rounds half up", krwPrice: "12345", fee: "0", want: "9.26"},
		{name: "rounds down", krwPrice: "1001", fee: "0", want: "0.75"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := c.Preview(decimal.RequireFromString(tt.krwPrice), decimal.RequireFromString(tt.fee))

			assert.True(t, decimal.RequireFromString(tt.want).Equal(quote.Price), "got %s", quote.Price)
			assert.Equal(t, "USD", quote.Currency)
			assert.True(t, decimal.RequireFromString(tt.krwPrice).Equal(quote.KRWPrice))
			assert.True(t, decimal.RequireFromString(tt.fee).Equal(quote.Fee))
		})
	}
}
