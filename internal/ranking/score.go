// Package ranking computes keyword trend scores from today/yesterday counts
// and rolling-window statistics.
package ranking

import (
	"math"

	"github.com/devpulse/devpulse/internal/models"
)

const (
	// Alpha damps the growth ratio for small counts.
	Alpha = 1.0
	// Eps is the threshold below which a standard deviation counts as unknown.
	Eps = 1e-6
	// MaxZ caps the standardized deviation.
	MaxZ = 5.0

	spikeThreshold  = 3.0
	risingThreshold = 1.5
)

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}

// Growth is the day-over-day growth ratio, clamped to [0, 1].
func Growth(today, yesterday int) float64 {
	return clamp(float64(today-yesterday)/(float64(today)+Alpha), 0, 1)
}

// Sigma picks the deviation used for standardization. With no real deviation
// on record it falls back to the Poisson approximation sqrt(mean).
func Sigma(mean, stdDev float64) float64 {
	if stdDev > Eps {
		return stdDev
	}
	return math.Sqrt(math.Max(mean, 1))
}

// ZScore standardizes today's count against the window, clamped to [0, MaxZ].
func ZScore(today int, mean, sigma float64) float64 {
	return clamp((float64(today)-mean)/math.Max(sigma, 1), 0, MaxZ)
}

// Score is the trend score: growth times deviation, weighted by volume.
// Pure: fixed inputs always produce the same score.
func Score(today, yesterday int, mean, stdDev float64) float64 {
	z := ZScore(today, mean, Sigma(mean, stdDev))
	return Growth(today, yesterday) * z * math.Log1p(float64(today))
}

// BadgeFor classifies a score. A keyword with no counts yesterday and any
// positive score is New; established keywords grade into Spike and Rising.
func BadgeFor(yesterday int, score float64) string {
	switch {
	case yesterday == 0 && score > Eps:
		return models.BadgeNew
	case score >= spikeThreshold:
		return models.BadgeSpike
	case score >= risingThreshold:
		return models.BadgeRising
	default:
		return ""
	}
}
