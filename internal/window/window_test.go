package window

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"IndiStream/internal/domain/models"
)

var base = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func sample(asset string, price float64, at time.Time) models.PriceSample {
	return models.PriceSample{
		AssetID:    asset,
		Price:      decimal.NewFromFloat(price),
		Source:     "exchange_a",
		ObservedAt: at,
	}
}

func mustStore(t *testing.T, capacity int, skew time.Duration) *Store {
	t.Helper()
	s, err := New(Config{Capacity: capacity, SkewTolerance: skew})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Capacity: 0, SkewTolerance: time.Minute}); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := New(Config{Capacity: 10, SkewTolerance: -time.Second}); err == nil {
		t.Fatal("expected error for negative skew tolerance")
	}
}

func TestIngestBoundedFIFO(t *testing.T) {
	s := mustStore(t, 5, time.Hour)

	for i := 0; i < 8; i++ {
		ok, err := s.Ingest(sample("btc", 100+float64(i), base.Add(time.Duration(i)*time.Second)))
		if err != nil || !ok {
			t.Fatalf("ingest %d: ok=%v err=%v", i, ok, err)
		}
	}

	snap := s.Snapshot("btc")
	if len(snap) != 5 {
		t.Fatalf("window length = %d, want 5", len(snap))
	}
	// Exactly the 5 most recent survive, oldest first.
	for i, want := range []float64{103, 104, 105, 106, 107} {
		if got := snap[i].PriceFloat(); got != want {
			t.Errorf("snap[%d].Price = %v, want %v", i, got, want)
		}
	}
}

func TestIngestDuplicateIsIdempotent(t *testing.T) {
	s := mustStore(t, 10, time.Hour)
	p := sample("btc", 100, base)

	if ok, err := s.Ingest(p); !ok || err != nil {
		t.Fatalf("first ingest: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Ingest(p); ok || err != nil {
		t.Fatalf("duplicate ingest: ok=%v err=%v, want false,nil", ok, err)
	}
	if got := s.Len("btc"); got != 1 {
		t.Fatalf("window length = %d after duplicate, want 1", got)
	}

	// Same instant, different price is a distinct observation.
	if ok, err := s.Ingest(sample("btc", 101, base)); !ok || err != nil {
		t.Fatalf("same-instant different price: ok=%v err=%v", ok, err)
	}
	if got := s.Len("btc"); got != 2 {
		t.Fatalf("window length = %d, want 2", got)
	}

	st, _ := s.Stats("btc")
	if st.Duplicates != 1 || st.Ingested != 2 {
		t.Errorf("stats = %+v, want 1 duplicate, 2 ingested", st)
	}
}

func TestIngestStaleRejected(t *testing.T) {
	s := mustStore(t, 10, 5*time.Minute)

	if _, err := s.Ingest(sample("btc", 100, base)); err != nil {
		t.Fatalf("seed ingest: %v", err)
	}

	// Older than newest-5m: rejected, window untouched.
	ok, err := s.Ingest(sample("btc", 99, base.Add(-5*time.Minute-time.Second)))
	if ok || !errors.Is(err, ErrStaleSample) {
		t.Fatalf("stale ingest: ok=%v err=%v, want false,ErrStaleSample", ok, err)
	}
	if got := s.Len("btc"); got != 1 {
		t.Fatalf("window length = %d after stale reject, want 1", got)
	}

	// Exactly at the floor is still acceptable.
	if ok, err := s.Ingest(sample("btc", 98, base.Add(-5*time.Minute))); !ok || err != nil {
		t.Fatalf("floor ingest: ok=%v err=%v", ok, err)
	}

	st, _ := s.Stats("btc")
	if st.Stale != 1 {
		t.Errorf("stale counter = %d, want 1", st.Stale)
	}
}

func TestIngestOutOfOrderWithinSkew(t *testing.T) {
	s := mustStore(t, 10, 5*time.Minute)

	s.Ingest(sample("btc", 100, base))
	s.Ingest(sample("btc", 102, base.Add(2*time.Minute)))
	if ok, err := s.Ingest(sample("btc", 101, base.Add(time.Minute))); !ok || err != nil {
		t.Fatalf("late-but-tolerated ingest: ok=%v err=%v", ok, err)
	}

	snap := s.Snapshot("btc")
	want := []float64{100, 101, 102}
	for i := range want {
		if got := snap[i].PriceFloat(); got != want[i] {
			t.Errorf("snap[%d].Price = %v, want %v (ordered by observation time)", i, got, want[i])
		}
	}
}

func TestFullWindowRejectsOlderThanOldest(t *testing.T) {
	s := mustStore(t, 2, time.Hour)
	s.Ingest(sample("btc", 101, base.Add(time.Minute)))
	s.Ingest(sample("btc", 102, base.Add(2*time.Minute)))

	ok, err := s.Ingest(sample("btc", 100, base))
	if ok || !errors.Is(err, ErrStaleSample) {
		t.Fatalf("older-than-window ingest: ok=%v err=%v, want false,ErrStaleSample", ok, err)
	}
	if got := s.Len("btc"); got != 2 {
		t.Fatalf("window length = %d, want 2", got)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	s := mustStore(t, 10, time.Hour)
	s.Ingest(sample("btc", 100, base))

	snap := s.Snapshot("btc")
	s.Ingest(sample("btc", 200, base.Add(time.Second)))

	if len(snap) != 1 || snap[0].PriceFloat() != 100 {
		t.Fatalf("snapshot mutated by later ingest: %+v", snap)
	}

	// Writing through the snapshot must not reach the store.
	snap[0].Price = decimal.NewFromInt(999)
	if got := s.Snapshot("btc")[0].PriceFloat(); got != 100 {
		t.Fatalf("store visible price = %v after snapshot write, want 100", got)
	}
}

func TestSnapshotUnknownAsset(t *testing.T) {
	s := mustStore(t, 10, time.Hour)
	if snap := s.Snapshot("nope"); snap != nil {
		t.Fatalf("snapshot for unknown asset = %v, want nil", snap)
	}
	if _, ok := s.Stats("nope"); ok {
		t.Fatal("stats for unknown asset should report ok=false")
	}
}

func TestAssetsSorted(t *testing.T) {
	s := mustStore(t, 10, time.Hour)
	for _, id := range []string{"eth", "btc", "sol"} {
		s.Ingest(sample(id, 1, base))
	}
	got := s.Assets()
	want := []string{"btc", "eth", "sol"}
	if len(got) != len(want) {
		t.Fatalf("assets = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("assets = %v, want %v", got, want)
		}
	}
}
