// Package indicator holds the pure calculation layer. Every function takes
// an ordered sample slice (oldest first, as returned by window snapshots)
// and returns nil when the window cannot support the calculation yet.
// Nothing here interpolates, extrapolates, or substitutes defaults.
package indicator

import (
	"math"

	"IndiStream/internal/domain/models"
)

// Defaults match the reference configuration; all are config knobs.
const (
	DefaultSMAPeriod        = 20
	DefaultEMAPeriod        = 20
	DefaultVolatilityPeriod = 20
	DefaultRSIPeriod        = 14
	DefaultMACDFast         = 12
	DefaultMACDSlow         = 26
)

func prices(samples []models.PriceSample) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.PriceFloat()
	}
	return out
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStdDev uses the n-1 denominator. Callers guarantee len(xs) >= 2.
func sampleStdDev(xs []float64) float64 {
	m := mean(xs)
	var sq float64
	for _, x := range xs {
		d := x - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)-1))
}
