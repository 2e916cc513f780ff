package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"IndiStream/internal/domain/models"
	"IndiStream/internal/window"
)

func mustIngest(t *testing.T, w *window.Store, asset string, price float64, at time.Time) {
	t.Helper()
	_, err := w.Ingest(models.PriceSample{
		AssetID:    asset,
		Price:      decimal.NewFromFloat(price),
		ObservedAt: at,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func newWindow(t *testing.T) *window.Store {
	t.Helper()
	w, err := window.New(window.Config{Capacity: 200, SkewTolerance: 5 * time.Minute})
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func TestCalculatorSnapshotLifecycle(t *testing.T) {
	w := newWindow(t)
	calc := NewCalculator(w, CalcConfig{})

	if snap := calc.Snapshot("BTC"); snap != nil {
		t.Fatalf("snapshot for unknown asset = %+v, want nil", snap)
	}

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		mustIngest(t, w, "BTC", 100+float64(i), base.Add(time.Duration(i)*time.Second))
	}

	snap := calc.Snapshot("BTC")
	if snap == nil {
		t.Fatal("snapshot nil after 25 samples")
	}
	if snap.SampleCount != 25 {
		t.Errorf("sample_count = %d", snap.SampleCount)
	}
	if snap.SMA == nil || snap.EMA == nil || snap.Volatility == nil || snap.RSI == nil {
		t.Errorf("indicators missing with 25 samples: %+v", snap)
	}
	if snap.MACD != nil {
		t.Error("macd computed with fewer samples than its slow period")
	}
	if snap.Correlations != nil {
		t.Errorf("correlations = %v without configured pairs", snap.Correlations)
	}

	mustIngest(t, w, "BTC", 130, base.Add(25*time.Second))
	snap = calc.Snapshot("BTC")
	if snap.MACD == nil {
		t.Fatal("macd still nil at 26 samples")
	}
	if snap.MACD.Line != snap.MACD.Fast-snap.MACD.Slow {
		t.Errorf("macd line = %v, want fast-slow", snap.MACD)
	}
}

func TestCalculatorPartnerIndex(t *testing.T) {
	calc := NewCalculator(newWindow(t), CalcConfig{Pairs: []Pair{
		{Base: "BTC", Quote: "ETH"},
		{Base: "ETH", Quote: "BTC"},
		{Base: "BTC", Quote: "ETH"},
		{Base: "SOL", Quote: "SOL"},
		{Base: "", Quote: "ADA"},
	}})

	if got := calc.Partners("BTC"); len(got) != 1 || got[0] != "ETH" {
		t.Errorf("Partners(BTC) = %v", got)
	}
	if got := calc.Partners("ETH"); len(got) != 1 || got[0] != "BTC" {
		t.Errorf("Partners(ETH) = %v", got)
	}
	if got := calc.Partners("SOL"); len(got) != 0 {
		t.Errorf("self pair indexed: %v", got)
	}
	if got := calc.Partners("ADA"); len(got) != 0 {
		t.Errorf("half-empty pair indexed: %v", got)
	}
}

func TestCalculatorCorrelationOnEitherSide(t *testing.T) {
	w := newWindow(t)
	calc := NewCalculator(w, CalcConfig{Pairs: []Pair{{Base: "BTC", Quote: "ETH"}}})

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 30; i++ {
		at := base.Add(time.Duration(i) * 10 * time.Second)
		mustIngest(t, w, "BTC", 100+float64(i), at)
		mustIngest(t, w, "ETH", 2000-5*float64(i), at.Add(time.Second))
	}

	btc := calc.Snapshot("BTC")
	r, ok := btc.Correlation("ETH")
	if !ok {
		t.Fatal("BTC snapshot missing ETH correlation")
	}
	if math.Abs(r+1) > 1e-6 {
		t.Errorf("correlation = %v, want -1 for inversely moving series", r)
	}

	// The quote side carries the same coefficient under the base's id.
	eth := calc.Snapshot("ETH")
	r2, ok := eth.Correlation("BTC")
	if !ok {
		t.Fatal("ETH snapshot missing BTC correlation")
	}
	if math.Abs(r2-r) > 1e-9 {
		t.Errorf("coefficients differ across sides: %v vs %v", r, r2)
	}
}

func TestCalculatorConfigDefaults(t *testing.T) {
	calc := NewCalculator(newWindow(t), CalcConfig{})
	if calc.cfg.SMAPeriod != 20 || calc.cfg.RSIPeriod != 14 {
		t.Errorf("defaults not applied: %+v", calc.cfg)
	}
	if calc.cfg.MACDFast != 12 || calc.cfg.MACDSlow != 26 {
		t.Errorf("macd defaults not applied: %+v", calc.cfg)
	}
	if calc.cfg.CorrelationPeriod != 30 || calc.cfg.AlignTolerance != time.Minute {
		t.Errorf("correlation defaults not applied: %+v", calc.cfg)
	}
}
