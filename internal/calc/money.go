package calc

import (
	"strings"

	"github.com/shopspring/decimal"
)

// zeroDecimalCurrencies lists ISO 4217 currencies without a minor unit.
var zeroDecimalCurrencies = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {},
	"KRW": {}, "PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {},
	"XAF": {}, "XOF": {}, "XPF": {},
}

// threeDecimalCurrencies lists ISO 4217 currencies with a thousandth minor unit.
var threeDecimalCurrencies = map[string]struct{}{
	"BHD": {}, "IQD": {}, "JOD": {}, "KWD": {}, "LYD": {}, "OMR": {}, "TND": {},
}

// MinorUnits returns the number of decimal places used for amounts in the
// given currency. Unknown codes fall back to two decimals.
func MinorUnits(currency string) int32 {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if _, ok := zeroDecimalCurrencies[code]; ok {
		return 0
	}
	if _, ok := threeDecimalCurrencies[code]; ok {
		return 3
	}
	return 2
}

// RoundAmount rounds a monetary amount to the currency's minor-unit precision
// using half-up rounding.
func RoundAmount(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.Round(MinorUnits(currency))
}

// roundingTolerance is one minor unit in the given currency. Explicit
// net/gross pairs are accepted when they agree with the tax rate within this
// bound.
func roundingTolerance(currency string) decimal.Decimal {
	return decimal.New(1, -MinorUnits(currency))
}

func one() decimal.Decimal {
	return decimal.NewFromInt(1)
}
