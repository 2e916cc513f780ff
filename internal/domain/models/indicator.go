package models

import "time"

// MACDValue carries the MACD line together with the EMAs it was derived from.
type MACDValue struct {
	Line float64 `json:"line"`
	Fast float64 `json:"fast"`
	Slow float64 `json:"slow"`
}

// IndicatorSnapshot is the full derived state for one asset at one point in
// time. Nil pointers mean "not enough data yet" and are never substituted
// with zeros. Snapshots are immutable; recomputation builds a fresh one.
type IndicatorSnapshot struct {
	AssetID      string             `json:"asset_id"`
	SMA          *float64           `json:"sma,omitempty"`
	EMA          *float64           `json:"ema,omitempty"`
	Volatility   *float64           `json:"volatility,omitempty"`
	RSI          *float64           `json:"rsi,omitempty"`
	MACD         *MACDValue         `json:"macd,omitempty"`
	Correlations map[string]float64 `json:"correlations,omitempty"`
	SampleCount  int                `json:"sample_count"`
	ComputedAt   time.Time          `json:"computed_at"`
}

// Correlation returns the stored coefficient against the other asset,
// if one was computed in this snapshot.
func (s *IndicatorSnapshot) Correlation(other string) (float64, bool) {
	v, ok := s.Correlations[other]
	return v, ok
}
