package indicator

import (
	"testing"
	"time"
)

func linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	return out
}

func TestCorrelationIdenticalSeries(t *testing.T) {
	a := series(linear(30, 100, 1)...)
	got := value(t, Correlation(a, a, 30, time.Minute))
	assertClose(t, got, 1, 1e-6)
}

func TestCorrelationScaledSeries(t *testing.T) {
	// b = 2a + 3 is perfectly correlated with a.
	a := series(linear(30, 100, 1)...)
	b := series(linear(30, 203, 2)...)
	got := value(t, Correlation(a, b, 30, time.Minute))
	assertClose(t, got, 1, 1e-6)
}

func TestCorrelationInverseSeries(t *testing.T) {
	a := series(linear(20, 100, 1)...)
	b := series(linear(20, 500, -2)...)
	got := value(t, Correlation(a, b, 20, time.Minute))
	assertClose(t, got, -1, 1e-6)
}

func TestCorrelationWithinBounds(t *testing.T) {
	a := series(100, 103, 99, 108, 101, 97, 110, 104, 96, 102)
	b := series(50, 48, 55, 47, 52, 56, 45, 51, 58, 49)
	r := value(t, Correlation(a, b, 10, time.Minute))
	if r < -1 || r > 1 {
		t.Fatalf("correlation %v outside [-1, 1]", r)
	}
}

func TestCorrelationConstantSeriesIsNil(t *testing.T) {
	a := series(linear(10, 100, 1)...)
	flat := series(linear(10, 42, 0)...)
	if Correlation(a, flat, 10, time.Minute) != nil {
		t.Error("constant partner series must yield nil, not NaN")
	}
}

func TestCorrelationInsufficientPairs(t *testing.T) {
	a := series(linear(10, 100, 1)...)
	b := series(linear(10, 100, 1)...)
	if Correlation(a, b, 11, time.Minute) != nil {
		t.Error("fewer aligned pairs than period must yield nil")
	}
}

func TestCorrelationDesynchronizedFeeds(t *testing.T) {
	// Feeds offset by 30s still align pair-for-pair under a 1m tolerance
	// and stay perfectly correlated; a 10s tolerance aligns nothing.
	a := seriesEvery(t0, time.Minute, linear(30, 100, 1)...)
	b := seriesEvery(t0.Add(30*time.Second), time.Minute, linear(30, 200, 3)...)

	got := value(t, Correlation(a, b, 30, time.Minute))
	assertClose(t, got, 1, 1e-6)

	if Correlation(a, b, 2, 10*time.Second) != nil {
		t.Error("tolerance tighter than the offset should align no pairs")
	}
}

func TestAlignPairsMonotoneOneToOne(t *testing.T) {
	a := seriesEvery(t0, time.Minute, 1, 2, 3)
	b := seriesEvery(t0.Add(30*time.Second), time.Minute, 10, 20)

	pairs := AlignPairs(a, b, time.Minute)
	if len(pairs) != 2 {
		t.Fatalf("aligned %d pairs, want 2", len(pairs))
	}
	if pairs[0].A.PriceFloat() != 1 || pairs[0].B.PriceFloat() != 10 {
		t.Errorf("first pair = (%v, %v), want (1, 10)", pairs[0].A.PriceFloat(), pairs[0].B.PriceFloat())
	}
	if pairs[1].A.PriceFloat() != 2 || pairs[1].B.PriceFloat() != 20 {
		t.Errorf("second pair = (%v, %v), want (2, 20)", pairs[1].A.PriceFloat(), pairs[1].B.PriceFloat())
	}
}

func TestAlignPairsPrefersNearest(t *testing.T) {
	// A burst of three quick ticks against a single observation: only the
	// nearest tick pairs with it.
	a := seriesEvery(t0, time.Second, 1, 2, 3)
	b := seriesEvery(t0.Add(2*time.Second), time.Minute, 10)

	pairs := AlignPairs(a, b, time.Minute)
	if len(pairs) != 1 {
		t.Fatalf("aligned %d pairs, want 1", len(pairs))
	}
	if pairs[0].A.PriceFloat() != 3 {
		t.Errorf("paired tick price = %v, want 3 (the nearest)", pairs[0].A.PriceFloat())
	}
}

func TestAlignPairsOutsideTolerance(t *testing.T) {
	a := seriesEvery(t0, time.Minute, 1, 2)
	b := seriesEvery(t0.Add(10*time.Minute), time.Minute, 3, 4)
	if pairs := AlignPairs(a, b, time.Minute); len(pairs) != 0 {
		t.Fatalf("aligned %d pairs across a 10m gap, want 0", len(pairs))
	}
}
