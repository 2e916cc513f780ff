package indicator

import "testing"

func TestRSIAllGains(t *testing.T) {
	assertClose(t, value(t, RSI(series(linear(15, 100, 1)...), 14)), 100, 0)
}

func TestRSIAllLosses(t *testing.T) {
	assertClose(t, value(t, RSI(series(linear(15, 200, -1)...), 14)), 0, 0)
}

func TestRSIFlatSeries(t *testing.T) {
	assertClose(t, value(t, RSI(series(linear(15, 100, 0)...), 14)), 0, 0)
}

func TestRSIHandComputed(t *testing.T) {
	// Deltas +2 then -1: avg gain 1, avg loss 0.5, RS 2, RSI 66.67.
	got := value(t, RSI(series(100, 102, 101), 2))
	assertClose(t, got, 100-100.0/3, 1e-12)
}

func TestRSINeedsPeriodPlusOne(t *testing.T) {
	if RSI(series(linear(14, 100, 1)...), 14) != nil {
		t.Error("14 prices cannot support a 14-period RSI")
	}
}

func TestMACDHandComputed(t *testing.T) {
	// fast EMA(2) over [1..5] = 4.5, slow EMA(3) = 4.
	m := MACD(series(1, 2, 3, 4, 5), 2, 3)
	if m == nil {
		t.Fatal("MACD = nil, want a value")
	}
	assertClose(t, m.Fast, 4.5, 1e-12)
	assertClose(t, m.Slow, 4, 1e-12)
	assertClose(t, m.Line, 0.5, 1e-12)
}

func TestMACDInsufficientData(t *testing.T) {
	if MACD(series(1, 2), 2, 3) != nil {
		t.Error("fewer samples than the slow period should yield nil")
	}
	if MACD(series(1, 2, 3, 4), 3, 3) != nil {
		t.Error("fast period must be strictly below slow period")
	}
}
