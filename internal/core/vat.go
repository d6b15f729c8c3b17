// Package core holds the domain model: dates, monetary amounts at a
// fixed precision, VAT computation and the ledger value types.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// VATRate is a fractional surcharge applied to a pre-tax amount. Only
// the enumerated rates are valid.
type VATRate string

const (
	RateZero     VATRate = "0"
	RateStandard VATRate = "0.15"
)

// ParseVATRate maps the accepted textual forms onto the enumerated set.
func ParseVATRate(s string) (VATRate, error) {
	switch strings.TrimSpace(s) {
	case "0", "0.0", "0.00", "0%":
		return RateZero, nil
	case "0.15", "15%":
		return RateStandard, nil
	}
	return "", ErrInvalidRate
}

func (r VATRate) Valid() bool {
	return r == RateZero || r == RateStandard
}

// Fraction returns the rate as a decimal fraction (0.15 for 15%).
func (r VATRate) Fraction() decimal.Decimal {
	d, err := decimal.NewFromString(string(r))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ComputeVAT derives the tax and total for a pre-tax amount:
//
//	vat   = round(amount * rate, MoneyScale)
//	total = round(amount + vat, MoneyScale)
//
// It is a pure function and performs no validation; callers reject
// non-positive amounts before invoking it.
func ComputeVAT(amount decimal.Decimal, rate VATRate) (vat, total decimal.Decimal) {
	vat = amount.Mul(rate.Fraction()).Round(MoneyScale)
	total = amount.Add(vat).Round(MoneyScale)
	return vat, total
}

// RoundAmount normalizes a monetary value to the fixed storage scale.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// ParseAmount converts a decimal string to a positive monetary amount
// at the fixed scale. It accepts both dot and comma separators and
// rejects empty, negative and zero values.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return d.Round(MoneyScale), nil
}
