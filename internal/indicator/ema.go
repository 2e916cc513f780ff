package indicator

import "IndiStream/internal/domain/models"

// EMA is recomputed from scratch on every call: seeded with the SMA of the
// first period prices, then folded across the rest of the retained window
// with multiplier 2/(period+1). With exactly period samples the seed is the
// whole calculation, so EMA equals SMA there.
func EMA(samples []models.PriceSample, period int) *float64 {
	if period <= 0 || len(samples) < period {
		return nil
	}
	v := emaOver(prices(samples), period)
	return &v
}

func emaOver(ps []float64, period int) float64 {
	ema := mean(ps[:period])
	k := 2.0 / (float64(period) + 1)
	for _, p := range ps[period:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}
