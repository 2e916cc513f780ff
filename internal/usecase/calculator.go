package usecase

import (
	"time"

	"IndiStream/internal/domain/models"
	"IndiStream/internal/indicator"
	"IndiStream/internal/service/metrics"
	"IndiStream/internal/window"
)

// Pair names two assets whose price series are correlated against each other.
type Pair struct {
	Base  string
	Quote string
}

// CalcConfig carries the periods every calculator runs with. Zero values fall
// back to the calculator defaults.
type CalcConfig struct {
	SMAPeriod        int
	EMAPeriod        int
	VolatilityPeriod int
	RSIPeriod        int
	MACDFast         int
	MACDSlow         int

	CorrelationPeriod int
	AlignTolerance    time.Duration
	Pairs             []Pair
}

func (c *CalcConfig) fillDefaults() {
	if c.SMAPeriod <= 0 {
		c.SMAPeriod = indicator.DefaultSMAPeriod
	}
	if c.EMAPeriod <= 0 {
		c.EMAPeriod = indicator.DefaultEMAPeriod
	}
	if c.VolatilityPeriod <= 0 {
		c.VolatilityPeriod = indicator.DefaultVolatilityPeriod
	}
	if c.RSIPeriod <= 0 {
		c.RSIPeriod = indicator.DefaultRSIPeriod
	}
	if c.MACDFast <= 0 {
		c.MACDFast = indicator.DefaultMACDFast
	}
	if c.MACDSlow <= c.MACDFast {
		c.MACDSlow = indicator.DefaultMACDSlow
	}
	if c.CorrelationPeriod < 2 {
		c.CorrelationPeriod = indicator.DefaultCorrelationPeriod
	}
	if c.AlignTolerance <= 0 {
		c.AlignTolerance = indicator.DefaultAlignTolerance
	}
}

// Calculator derives full indicator snapshots from the window store. It holds
// no state of its own; every call reads fresh window snapshots, so it is safe
// to share across workers.
type Calculator struct {
	windows  *window.Store
	cfg      CalcConfig
	partners map[string][]string
}

// NewCalculator builds a calculator over the given windows. Correlation pairs
// are indexed both ways so either side's update refreshes the coefficient.
func NewCalculator(windows *window.Store, cfg CalcConfig) *Calculator {
	cfg.fillDefaults()

	partners := make(map[string][]string)
	add := func(a, b string) {
		for _, existing := range partners[a] {
			if existing == b {
				return
			}
		}
		partners[a] = append(partners[a], b)
	}
	for _, p := range cfg.Pairs {
		if p.Base == "" || p.Quote == "" || p.Base == p.Quote {
			continue
		}
		add(p.Base, p.Quote)
		add(p.Quote, p.Base)
	}

	metrics.Register()
	return &Calculator{windows: windows, cfg: cfg, partners: partners}
}

// Snapshot computes every indicator for the asset from its current window.
// Indicators without enough data stay nil. Returns nil when the asset has no
// window at all.
func (c *Calculator) Snapshot(assetID string) *models.IndicatorSnapshot {
	samples := c.windows.Snapshot(assetID)
	if len(samples) == 0 {
		return nil
	}

	start := time.Now()
	defer func() {
		metrics.ComputeLatency.WithLabelValues("snapshot").Observe(time.Since(start).Seconds())
	}()

	snap := &models.IndicatorSnapshot{
		AssetID:     assetID,
		SMA:         indicator.SMA(samples, c.cfg.SMAPeriod),
		EMA:         indicator.EMA(samples, c.cfg.EMAPeriod),
		Volatility:  indicator.Volatility(samples, c.cfg.VolatilityPeriod),
		RSI:         indicator.RSI(samples, c.cfg.RSIPeriod),
		MACD:        indicator.MACD(samples, c.cfg.MACDFast, c.cfg.MACDSlow),
		SampleCount: len(samples),
		ComputedAt:  time.Now().UTC(),
	}
	countIncomplete(snap)

	if others := c.partners[assetID]; len(others) > 0 {
		corrStart := time.Now()
		for _, other := range others {
			r := indicator.Correlation(samples, c.windows.Snapshot(other), c.cfg.CorrelationPeriod, c.cfg.AlignTolerance)
			if r == nil {
				metrics.ComputeIncomplete.WithLabelValues("correlation").Inc()
				continue
			}
			if snap.Correlations == nil {
				snap.Correlations = make(map[string]float64, len(others))
			}
			snap.Correlations[other] = *r
		}
		metrics.ComputeLatency.WithLabelValues("correlation").Observe(time.Since(corrStart).Seconds())
	}

	return snap
}

func countIncomplete(snap *models.IndicatorSnapshot) {
	for name, missing := range map[string]bool{
		"sma":        snap.SMA == nil,
		"ema":        snap.EMA == nil,
		"volatility": snap.Volatility == nil,
		"rsi":        snap.RSI == nil,
		"macd":       snap.MACD == nil,
	} {
		if missing {
			metrics.ComputeIncomplete.WithLabelValues(name).Inc()
		}
	}
}

// Partners returns the assets correlated against assetID, if any.
func (c *Calculator) Partners(assetID string) []string {
	return c.partners[assetID]
}
