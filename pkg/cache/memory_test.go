package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	type payload struct {
		Name  string  `json:"name"`
		Value float64 `json:"value"`
	}

	if err := mc.Set(ctx, "k", payload{Name: "sma", Value: 101.5}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	if err := mc.Get(ctx, "k", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "sma" || got.Value != 101.5 {
		t.Errorf("got %+v", got)
	}

	var raw string
	if err := mc.Get(ctx, "k", &raw); err != nil {
		t.Fatalf("Get string: %v", err)
	}
	if raw == "" {
		t.Error("raw form should be the stored JSON")
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()

	var s string
	if err := mc.Get(context.Background(), "absent", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	if err := mc.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	var s string
	if err := mc.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expired key err = %v, want ErrCacheMiss", err)
	}
}

func TestMemoryCacheSetEntriesPerKeyTTL(t *testing.T) {
	mc := NewMemoryCache()
	defer mc.Close()
	ctx := context.Background()

	err := mc.SetEntries(ctx, []Entry{
		{Key: "short", Value: "a", TTL: 10 * time.Millisecond},
		{Key: "long", Value: "b", TTL: time.Minute},
	})
	if err != nil {
		t.Fatalf("SetEntries: %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	var s string
	if err := mc.Get(ctx, "short", &s); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("short key should have expired, got %v", err)
	}
	if err := mc.Get(ctx, "long", &s); err != nil || s != "b" {
		t.Errorf("long key: %q, %v", s, err)
	}
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	mc := NewMemoryCache(WithMemoryMaxSize(2))
	defer mc.Close()
	ctx := context.Background()

	mc.Set(ctx, "a", "1", time.Minute)
	time.Sleep(time.Millisecond)
	mc.Set(ctx, "b", "2", time.Minute)
	time.Sleep(time.Millisecond)

	// Touch "a" so "b" is the least recently used.
	var s string
	mc.Get(ctx, "a", &s)
	time.Sleep(time.Millisecond)

	mc.Set(ctx, "c", "3", time.Minute)

	if ok, _ := mc.Exists(ctx, "b"); ok {
		t.Error("b should have been evicted")
	}
	if ok, _ := mc.Exists(ctx, "a"); !ok {
		t.Error("a should survive, it was used most recently")
	}
}
