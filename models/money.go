package models

import (
	"github.com/shopspring/decimal"
)

// minorUnitExponent is the power of ten between major and minor currency units
const minorUnitExponent = -2

// FormatAmount renders an amount in minor units as a major-unit string, e.g. 1050 -> "10.50"
func FormatAmount(minor int64) string {
	return decimal.New(minor, minorUnitExponent).StringFixed(2)
}

// ParseAmount converts a major-unit string such as "10.50" into minor units.
// Amounts with more precision than the minor unit are rejected.
func ParseAmount(major string) (int64, error) {
	d, err := decimal.NewFromString(major)
	if err != nil {
		return 0, NewValidationError("amount", "not a number")
	}
	minor := d.Shift(-minorUnitExponent)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, NewValidationError("amount", "too many decimal places")
	}
	return minor.IntPart(), nil
}
