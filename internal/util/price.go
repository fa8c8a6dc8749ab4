// Package util provides common numeric helpers for the analytics packages.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	if tick <= 0 {
		return x
	}
	return math.Round(x/tick) * tick
}

// Round2 rounds to two decimals, half away from zero.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// SafeDiv returns num/denom, or 0 when the denominator is zero or the result is not finite.
func SafeDiv(num, denom float64) float64 {
	if denom == 0 {
		return 0
	}
	r := num / denom
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// Pct returns part/total*100 with SafeDiv semantics.
func Pct(part, total float64) float64 {
	return SafeDiv(part, total) * 100
}

// Clamp bounds x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// Finite replaces NaN and infinities with 0.
func Finite(x float64) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	return x
}
