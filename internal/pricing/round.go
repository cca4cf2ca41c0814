package pricing

import "github.com/shopspring/decimal"

// DefaultDecimals is the report-time rounding precision.
const DefaultDecimals int32 = 3

// Round rounds v half away from zero to the given number of decimals.
// Derived prices are only rounded at report time, never mid-calculation.
func Round(v float64, decimals int32) float64 {
	return decimal.NewFromFloat(v).Round(decimals).InexactFloat64()
}

// Mean returns the arithmetic mean of vs. Returns 0 for an empty slice.
func Mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
