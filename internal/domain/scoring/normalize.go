// Package scoring holds the pure math behind facility aggregates and the InTheTow score.
package scoring

import "math"

// NormalizeLinear maps value from [min, max] onto [0, 1]. min must differ from max.
func NormalizeLinear(min, max, value float64) float64 {
	return (value - min) / (max - min)
}

// NormalizeLogistic maps value onto (0, 1) along a logistic curve centred on midpoint.
// A positive slope makes the result fall as value grows; a negative slope makes it rise.
func NormalizeLogistic(value, midpoint, slope float64) float64 {
	return 1 / (1 + math.Exp(slope*(value-midpoint)))
}

// Blend moves prior toward value by confidence, which is expected in [0, 1].
func Blend(prior, confidence, value float64) float64 {
	return prior + confidence*(value-prior)
}

const (
	confidenceMidpoint = 3
	confidenceSlope    = -1.1
)

// Confidence turns a sample count into a weight in (0, 1); three samples give 0.5.
func Confidence(count int) float64 {
	return NormalizeLogistic(float64(count), confidenceMidpoint, confidenceSlope)
}
