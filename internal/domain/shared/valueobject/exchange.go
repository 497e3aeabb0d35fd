package valueobject

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// RateScale is the number of decimal places an exchange rate may carry; the
// invoices table stores rates as DECIMAL(20, 8)
const RateScale = 8

// ExchangeRate fixes how many home-currency units buy one foreign unit.
type ExchangeRate struct {
	Home    Currency
	Foreign Currency
	Rate    decimal.Decimal
}

// NewExchangeRate validates and builds an ExchangeRate
func NewExchangeRate(home, foreign Currency, rate decimal.Decimal) (ExchangeRate, error) {
	if !home.IsValid() || !foreign.IsValid() {
		return ExchangeRate{}, fmt.Errorf("invalid currency pair %s/%s", home, foreign)
	}
	if home == foreign {
		return ExchangeRate{}, errors.New("home and foreign currency must differ")
	}
	if !rate.IsPositive() {
		return ExchangeRate{}, errors.New("exchange rate must be positive")
	}
	if !rate.Round(RateScale).Equal(rate) {
		return ExchangeRate{}, fmt.Errorf("exchange rate %s has more than %d decimal places", rate, RateScale)
	}
	return ExchangeRate{Home: home, Foreign: foreign, Rate: rate}, nil
}

// Counterpart returns the other currency of the pair
func (r ExchangeRate) Counterpart(c Currency) (Currency, error) {
	switch c {
	case r.Home:
		return r.Foreign, nil
	case r.Foreign:
		return r.Home, nil
	default:
		return "", fmt.Errorf("currency %s is not part of %s/%s", c, r.Home, r.Foreign)
	}
}

// CurrencyConverter converts an amount into the other currency of a rate.
type CurrencyConverter interface {
	Convert(amount Money, to Currency, rate ExchangeRate) (Money, error)
}

// RateConverter converts with the supplied rate and rounds the result to the
// target currency's minor unit. It performs no rate discovery.
type RateConverter struct{}

// NewRateConverter creates a RateConverter
func NewRateConverter() RateConverter {
	return RateConverter{}
}

// Convert implements CurrencyConverter
func (RateConverter) Convert(amount Money, to Currency, rate ExchangeRate) (Money, error) {
	from := amount.Currency()
	if from == to {
		return amount, nil
	}
	switch {
	case from == rate.Foreign && to == rate.Home:
		return Money{amount: amount.Amount().Mul(rate.Rate), currency: to}.Rounded(), nil
	case from == rate.Home && to == rate.Foreign:
		return Money{amount: amount.Amount().Div(rate.Rate), currency: to}.Rounded(), nil
	default:
		return Money{}, fmt.Errorf("cannot convert %s to %s with rate %s/%s", from, to, rate.Home, rate.Foreign)
	}
}
