// Package stats recomputes rolling keyword statistics when a stat-cache key
// expires.
package stats

import "math"

// Mean returns the arithmetic mean of values; 0 for an empty slice.
func Mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}

// StdDevPop returns the population standard deviation of values around mean.
func StdDevPop(values []int, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		d := float64(v) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}
