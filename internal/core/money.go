// Package core holds the domain model shared by the ledger, the aggregation
// services and the HTTP boundary.
//
// This file contains money conversion helpers. Amounts cross the API as
// decimal floats and are converted to cents at the edge; everything inside
// operates on integer cents to avoid compounding floating-point error.
package core

import "math"

// CentsFromFloat converts a decimal amount (e.g. 12.34) to cents with
// half-up rounding on the sub-cent part. Returns an error for negative or
// non-finite values; zero is allowed, a budget limit may legitimately be 0.
func CentsFromFloat(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, ErrInvalidAmount
	}
	if amount < 0 {
		return 0, ErrInvalidAmount
	}
	const maxSafe = float64(1<<62) / 100
	if amount > maxSafe {
		return 0, ErrInvalidAmount
	}
	return int64(math.Round(amount * 100)), nil
}

// Amount returns the monetary value as a float64 for presentation.
// Cents are exact, so the result carries at most two decimal places.
func (m Money) Amount() float64 {
	return float64(m.Cents) / 100.0
}

// Sub returns m minus other. The result may be negative, e.g. the remaining
// head-room of an overspent budget.
func (m Money) Sub(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}
