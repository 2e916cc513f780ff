package indicator

import "IndiStream/internal/domain/models"

// SMA is the arithmetic mean of the last period prices.
func SMA(samples []models.PriceSample, period int) *float64 {
	if period <= 0 || len(samples) < period {
		return nil
	}
	v := mean(prices(samples[len(samples)-period:]))
	return &v
}
