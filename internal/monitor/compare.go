package monitor

import "github.com/shopspring/decimal"

// Comparison is the outcome of checking a fresh reading against the previous
// snapshot.
type Comparison struct {
	// Comparable is false when no usable previous value exists.
	Comparable bool
	// PctChange is (current - previous) / previous, as a fraction.
	PctChange decimal.Decimal
	// Breached reports whether PctChange met or exceeded the threshold.
	Breached bool
}

// Compare evaluates current against previous using a fractional threshold
// (0.5 means alert on a 50% increase).
//
// A previous value of zero (or below) is treated as non-comparable rather than
// dividing by it: the first observation for a metric never raises an alert.
func Compare(previous, current, threshold decimal.Decimal) Comparison {
	if previous.LessThanOrEqual(decimal.Zero) {
		return Comparison{}
	}

	pct := current.Sub(previous).Div(previous)
	return Comparison{
		Comparable: true,
		PctChange:  pct,
		Breached:   pct.GreaterThanOrEqual(threshold),
	}
}

// SideBreached reports whether current exceeds previous grown by the
// threshold fraction, the per-side check used for liquidation volumes.
func SideBreached(previous, current, threshold decimal.Decimal) bool {
	if previous.LessThanOrEqual(decimal.Zero) {
		return false
	}
	limit := previous.Mul(decimal.NewFromInt(1).Add(threshold))
	return current.GreaterThan(limit)
}
