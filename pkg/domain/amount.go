package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	dErrors "chariblock/pkg/domain-errors"
)

// AmountScale is the number of fractional digits stored for amounts
// (NUMERIC(20,8) in the schema).
const AmountScale = 8

// maxAmountDigits bounds the integer part so values fit NUMERIC(20,8).
const maxAmountDigits = 12

// ParseAmount parses a fixed-point decimal string. It rejects values with
// more than AmountScale fractional digits or an integer part that would not
// fit the column; it does not check the sign.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidInput, "amount cannot be empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, dErrors.New(dErrors.CodeInvalidInput, "amount must be a decimal number")
	}
	return d, CheckAmountPrecision(d)
}

// CheckAmountPrecision enforces the storage precision of amounts.
func CheckAmountPrecision(d decimal.Decimal) error {
	if -d.Exponent() > AmountScale && !d.Equal(d.Truncate(AmountScale)) {
		return dErrors.New(dErrors.CodeInvalidInput, "amount supports at most 8 decimal places")
	}
	if len(d.Abs().Truncate(0).String()) > maxAmountDigits {
		return dErrors.New(dErrors.CodeInvalidInput, "amount is too large")
	}
	return nil
}
