package indicator

import "IndiStream/internal/domain/models"

// RSI computes the Relative Strength Index over the last period price
// deltas, so it needs period+1 prices. With no losses in the lookback the
// index saturates at 100 (or 0 when there were no gains either).
func RSI(samples []models.PriceSample, period int) *float64 {
	if period <= 0 || len(samples) < period+1 {
		return nil
	}
	ps := prices(samples[len(samples)-period-1:])

	var gain, loss float64
	for i := 1; i < len(ps); i++ {
		d := ps[i] - ps[i-1]
		if d > 0 {
			gain += d
		} else {
			loss -= d
		}
	}
	avgGain := gain / float64(period)
	avgLoss := loss / float64(period)

	var rsi float64
	if avgLoss == 0 {
		if avgGain > 0 {
			rsi = 100
		}
		return &rsi
	}
	rs := avgGain / avgLoss
	rsi = 100 - 100/(1+rs)
	return &rsi
}

// MACD is the spread between the fast and slow EMAs over the retained
// window. Needs at least slowPeriod samples. No signal line: that would
// require a history of MACD values, which a single window cannot provide.
func MACD(samples []models.PriceSample, fastPeriod, slowPeriod int) *models.MACDValue {
	if fastPeriod <= 0 || slowPeriod <= fastPeriod || len(samples) < slowPeriod {
		return nil
	}
	ps := prices(samples)
	fast := emaOver(ps, fastPeriod)
	slow := emaOver(ps, slowPeriod)
	return &models.MACDValue{Line: fast - slow, Fast: fast, Slow: slow}
}
