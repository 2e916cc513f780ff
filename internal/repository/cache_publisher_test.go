package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"IndiStream/internal/domain/models"
	"IndiStream/internal/domain/repository"
	"IndiStream/pkg/cache"
	"IndiStream/pkg/logger"
)

// fakeCache implements the slice of cache.Service the publisher touches.
// Unused methods come from the embedded interface and panic if reached.
type fakeCache struct {
	cache.Service
	mu       sync.Mutex
	failures int
	calls    int
	batches  [][]cache.Entry
}

func (f *fakeCache) SetEntries(_ context.Context, entries []cache.Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return errors.New("cache unavailable")
	}
	cp := make([]cache.Entry, len(entries))
	copy(cp, entries)
	f.batches = append(f.batches, cp)
	return nil
}

type fakeMetrics struct {
	mu        sync.Mutex
	ingested  map[string]int
	rejected  map[string]int
	published map[string]int
	failures  map[string]int
	lastPrice map[string]float64
	lag       map[string]int64
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		ingested:  map[string]int{},
		rejected:  map[string]int{},
		published: map[string]int{},
		failures:  map[string]int{},
		lastPrice: map[string]float64{},
		lag:       map[string]int64{},
	}
}

func (m *fakeMetrics) RecordIngested(asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ingested[asset]++
}

func (m *fakeMetrics) RecordRejected(asset, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[asset+"/"+reason]++
}

func (m *fakeMetrics) RecordPublished(family, asset string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[family+"/"+asset]++
}

func (m *fakeMetrics) RecordPublishFailure(family string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[family]++
}

func (m *fakeMetrics) RecordLastPrice(asset string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPrice[asset] = price
}

func (m *fakeMetrics) RecordLatency(string, float64) {}

func (m *fakeMetrics) SetConsumerLag(topic string, lag int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lag[topic] = lag
}

func fptr(v float64) *float64 { return &v }

func fullSnapshot() *models.IndicatorSnapshot {
	return &models.IndicatorSnapshot{
		AssetID:      "BTC",
		SMA:          fptr(101.5),
		EMA:          fptr(102.2),
		Volatility:   fptr(0.013),
		RSI:          fptr(55),
		MACD:         &models.MACDValue{Line: 0.4, Fast: 102.2, Slow: 101.8},
		Correlations: map[string]float64{"ETH": 0.93},
		SampleCount:  42,
		ComputedAt:   time.Now(),
	}
}

func fastCfg() PublisherConfig {
	return PublisherConfig{
		RetryMax:   4,
		BackoffMin: time.Millisecond,
		BackoffMax: 4 * time.Millisecond,
		OpTimeout:  time.Second,
	}
}

func TestKeyFor(t *testing.T) {
	if got := KeyFor(repository.FamilySMA, "BTC"); got != "indicator:sma:BTC" {
		t.Fatalf("key = %q", got)
	}
	if got := KeyFor(repository.FamilySnapshot, "eth_usd"); got != "indicator:snapshot:eth_usd" {
		t.Fatalf("key = %q", got)
	}
}

func TestPublishWritesEveryFamilyInOneBatch(t *testing.T) {
	fc := &fakeCache{}
	m := newFakeMetrics()
	cfg := fastCfg()
	cfg.TTL = map[repository.Family]time.Duration{
		repository.FamilySMA:         15 * time.Second,
		repository.FamilyCorrelation: 420 * time.Second,
	}
	p := NewCachePublisher(fc, cfg, logger.Nop(), m)

	snap := fullSnapshot()
	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(fc.batches) != 1 {
		t.Fatalf("batches = %d, want one pipelined write", len(fc.batches))
	}
	byKey := map[string]cache.Entry{}
	for _, e := range fc.batches[0] {
		byKey[e.Key] = e
	}
	if len(byKey) != 7 {
		t.Fatalf("entries = %d, want 7 families", len(byKey))
	}

	sma, ok := byKey["indicator:sma:BTC"]
	if !ok {
		t.Fatal("sma entry missing")
	}
	if v, ok := sma.Value.(float64); !ok || v != 101.5 {
		t.Errorf("sma value = %#v", sma.Value)
	}
	if sma.TTL != 15*time.Second {
		t.Errorf("sma ttl = %s, want configured 15s", sma.TTL)
	}

	corr, ok := byKey["indicator:correlation:BTC"]
	if !ok {
		t.Fatal("correlation entry missing")
	}
	if vals, ok := corr.Value.(map[string]float64); !ok || vals["ETH"] != 0.93 {
		t.Errorf("correlation value = %#v", corr.Value)
	}
	if corr.TTL != 420*time.Second {
		t.Errorf("correlation ttl = %s", corr.TTL)
	}

	// Families without a configured TTL fall back to their defaults.
	if vol := byKey["indicator:volatility:BTC"]; vol.TTL != 120*time.Second {
		t.Errorf("volatility ttl = %s, want default 120s", vol.TTL)
	}

	full, ok := byKey["indicator:snapshot:BTC"]
	if !ok {
		t.Fatal("snapshot entry missing")
	}
	if s, ok := full.Value.(*models.IndicatorSnapshot); !ok || s.AssetID != "BTC" {
		t.Errorf("snapshot value = %#v", full.Value)
	}

	if m.published["sma/BTC"] != 1 || m.published["snapshot/BTC"] != 1 {
		t.Errorf("published counters = %v", m.published)
	}
	if len(m.failures) != 0 {
		t.Errorf("failure counters = %v, want none", m.failures)
	}
}

func TestPublishSkipsFamiliesWithoutValues(t *testing.T) {
	fc := &fakeCache{}
	p := NewCachePublisher(fc, fastCfg(), logger.Nop(), newFakeMetrics())

	snap := &models.IndicatorSnapshot{AssetID: "NEW", SampleCount: 3, ComputedAt: time.Now()}
	if err := p.Publish(context.Background(), snap); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(fc.batches[0]) != 1 {
		t.Fatalf("entries = %d, want only the snapshot document", len(fc.batches[0]))
	}
	if fc.batches[0][0].Key != "indicator:snapshot:NEW" {
		t.Errorf("key = %q", fc.batches[0][0].Key)
	}
}

func TestPublishRetriesUntilSuccess(t *testing.T) {
	fc := &fakeCache{failures: 2}
	m := newFakeMetrics()
	p := NewCachePublisher(fc, fastCfg(), logger.Nop(), m)

	if err := p.Publish(context.Background(), fullSnapshot()); err != nil {
		t.Fatalf("Publish after transient failures: %v", err)
	}
	if fc.calls != 3 {
		t.Errorf("calls = %d, want 2 failures then success", fc.calls)
	}
	if m.published["ema/BTC"] != 1 {
		t.Errorf("published counters = %v", m.published)
	}
}

func TestPublishExhaustionReturnsSentinel(t *testing.T) {
	fc := &fakeCache{failures: 100}
	m := newFakeMetrics()
	cfg := fastCfg()
	cfg.RetryMax = 3
	p := NewCachePublisher(fc, cfg, logger.Nop(), m)

	err := p.Publish(context.Background(), fullSnapshot())
	if !errors.Is(err, ErrPublishExhausted) {
		t.Fatalf("err = %v, want ErrPublishExhausted", err)
	}
	if fc.calls != 3 {
		t.Errorf("calls = %d, want exactly RetryMax attempts", fc.calls)
	}
	if m.failures["snapshot"] != 1 || m.failures["sma"] != 1 {
		t.Errorf("failure counters = %v", m.failures)
	}
	if len(m.published) != 0 {
		t.Errorf("published counters = %v, want none", m.published)
	}
}

func TestPublishStopsRetryingOnCancel(t *testing.T) {
	fc := &fakeCache{failures: 100}
	cfg := fastCfg()
	cfg.RetryMax = 5
	cfg.BackoffMin = 50 * time.Millisecond
	cfg.BackoffMax = 100 * time.Millisecond
	p := NewCachePublisher(fc, cfg, logger.Nop(), newFakeMetrics())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, fullSnapshot())
	if !errors.Is(err, ErrPublishExhausted) {
		t.Fatalf("err = %v, want ErrPublishExhausted", err)
	}
	if fc.calls != 1 {
		t.Errorf("calls = %d, want no retries after cancellation", fc.calls)
	}
}

func TestPublishRejectsAnonymousSnapshot(t *testing.T) {
	p := NewCachePublisher(&fakeCache{}, fastCfg(), logger.Nop(), newFakeMetrics())
	if err := p.Publish(context.Background(), nil); err == nil {
		t.Error("nil snapshot accepted")
	}
	if err := p.Publish(context.Background(), &models.IndicatorSnapshot{}); err == nil {
		t.Error("snapshot without asset accepted")
	}
}
