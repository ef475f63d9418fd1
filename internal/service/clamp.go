package service

import (
	"math"

	"loto-issuer/internal/constants"
)

// ClampCount maps any requested count into [MinCount, MaxCount].
// Fractions truncate toward zero, non-finite input snaps to the nearest
// bound (NaN to the minimum). Idempotent.
func ClampCount(x float64) int {
	if math.IsNaN(x) {
		return constants.MinCount
	}
	if x < constants.MinCount {
		return constants.MinCount
	}
	if x > constants.MaxCount {
		return constants.MaxCount
	}
	return int(math.Trunc(x))
}
