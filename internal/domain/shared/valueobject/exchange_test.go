package valueobject

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExchangeRate(t *testing.T) {
	tests := []struct {
		name    string
		home    Currency
		foreign Currency
		rate    decimal.Decimal
		wantErr bool
	}{
		{"valid", IDR, USD, decimal.NewFromInt(10000), false},
		{"same currency", USD, USD, decimal.NewFromInt(1), true},
		{"zero rate", IDR, USD, decimal.Zero, true},
		{"negative rate", IDR, USD, decimal.NewFromInt(-1), true},
		{"unknown currency", Currency("ZZZZ"), USD, decimal.NewFromInt(2), true},
		{"eight decimal places", USD, IDR, decimal.RequireFromString("0.00006452"), false},
		{"trailing zeros beyond the scale", IDR, USD, decimal.RequireFromString("15500.0000000000"), false},
		{"nine decimal places", USD, IDR, decimal.RequireFromString("0.000064516"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewExchangeRate(tt.home, tt.foreign, tt.rate)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateConverter_Convert(t *testing.T) {
	rate, err := NewExchangeRate(IDR, USD, decimal.NewFromInt(10000))
	require.NoError(t, err)
	conv := NewRateConverter()

	t.Run("foreign to home", func(t *testing.T) {
		got, err := conv.Convert(MustMoney("60", USD), IDR, rate)
		require.NoError(t, err)
		assert.True(t, got.Equals(MustMoney("600000", IDR)))
	})

	t.Run("home to foreign rounds to minor unit", func(t *testing.T) {
		got, err := conv.Convert(MustMoney("333333", IDR), USD, rate)
		require.NoError(t, err)
		assert.Equal(t, "33.33", got.Amount().String())
		assert.Equal(t, USD, got.Currency())
	})

	t.Run("identity", func(t *testing.T) {
		got, err := conv.Convert(MustMoney("7", USD), USD, rate)
		require.NoError(t, err)
		assert.True(t, got.Equals(MustMoney("7", USD)))
	})

	t.Run("currency outside the pair", func(t *testing.T) {
		_, err := conv.Convert(MustMoney("7", EUR), USD, rate)
		assert.Error(t, err)
	})
}

func TestExchangeRate_Counterpart(t *testing.T) {
	rate, err := NewExchangeRate(IDR, USD, decimal.NewFromInt(15000))
	require.NoError(t, err)

	c, err := rate.Counterpart(USD)
	require.NoError(t, err)
	assert.Equal(t, IDR, c)

	_, err = rate.Counterpart(EUR)
	assert.Error(t, err)
}
