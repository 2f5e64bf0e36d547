package internal

import (
	"math"

	"github.com/shopspring/decimal"
)

func ValidScore(score int) bool {
	return score >= MinScore && score <= MaxScore
}

// ClampDeduction bounds a host supplied deduction to [0,10] and to two
// decimal places. NaN is treated as no deduction.
func ClampDeduction(d float64) float64 {
	if math.IsNaN(d) {
		return MinDeduction
	}
	if d < MinDeduction {
		d = MinDeduction
	} else if d > MaxDeduction {
		d = MaxDeduction
	}
	return Round2(d)
}

// Round2 rounds half away from zero to two decimals for wire transmission.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
