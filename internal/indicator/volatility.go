package indicator

import "IndiStream/internal/domain/models"

// Volatility is the sample standard deviation of simple returns over the
// last period transitions. Fewer than two samples yield nil; a single
// return yields 0 (one observation has no dispersion).
func Volatility(samples []models.PriceSample, period int) *float64 {
	if period <= 0 || len(samples) < 2 {
		return nil
	}
	rets := returns(prices(samples))
	if len(rets) > period {
		rets = rets[len(rets)-period:]
	}
	v := 0.0
	if len(rets) > 1 {
		v = sampleStdDev(rets)
	}
	return &v
}

// returns computes simple returns p[i]/p[i-1] - 1. Prices are validated
// positive at ingest, so the division is safe.
func returns(ps []float64) []float64 {
	out := make([]float64, len(ps)-1)
	for i := 1; i < len(ps); i++ {
		out[i-1] = ps[i]/ps[i-1] - 1
	}
	return out
}
