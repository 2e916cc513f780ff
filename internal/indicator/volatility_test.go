package indicator

import (
	"math"
	"testing"
)

func TestVolatilityHandComputed(t *testing.T) {
	// Returns: +10%, -5%. Sample stddev = 0.075 * sqrt(2).
	got := value(t, Volatility(series(100, 110, 104.5), 20))
	assertClose(t, got, 0.075*math.Sqrt2, 1e-12)
}

func TestVolatilityUsesLastPeriodReturns(t *testing.T) {
	// Full return series is 1.0, -0.5, 0.1, -0.1; period 2 keeps the last
	// two, which are symmetric around zero.
	got := value(t, Volatility(series(100, 200, 100, 110, 99), 2))
	assertClose(t, got, math.Sqrt(0.02), 1e-12)
}

func TestVolatilityNeverNegative(t *testing.T) {
	for _, prices := range [][]float64{
		{100, 100, 100, 100},
		{100, 90, 120, 80},
		{5, 5.1},
	} {
		v := value(t, Volatility(series(prices...), 20))
		if v < 0 {
			t.Fatalf("volatility %v < 0 for %v", v, prices)
		}
	}
}

func TestVolatilityFlatSeriesIsZero(t *testing.T) {
	assertClose(t, value(t, Volatility(series(100, 100, 100), 20)), 0, 0)
}

func TestVolatilitySingleReturnIsZero(t *testing.T) {
	assertClose(t, value(t, Volatility(series(100, 105), 20)), 0, 0)
}

func TestVolatilityInsufficientData(t *testing.T) {
	if Volatility(series(100), 20) != nil {
		t.Error("single sample should yield nil")
	}
	if Volatility(nil, 20) != nil {
		t.Error("empty series should yield nil")
	}
}
