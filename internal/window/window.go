package window

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"IndiStream/internal/domain/models"
)

// ErrStaleSample marks samples older than the window's retention floor
// (newest retained observation minus the skew tolerance). Stale samples
// never mutate the window.
var ErrStaleSample = errors.New("sample older than retention floor")

const (
	DefaultCapacity      = 200
	DefaultSkewTolerance = 5 * time.Minute
)

type Config struct {
	Capacity      int
	SkewTolerance time.Duration
}

// Stats are per-asset ingest counters, exposed for the ops surface.
type Stats struct {
	Ingested   uint64 `json:"ingested"`
	Stale      uint64 `json:"stale"`
	Duplicates uint64 `json:"duplicates"`
	Len        int    `json:"len"`
}

// Store holds one bounded, time-ordered sample window per asset. Windows are
// created lazily on first ingest and never destroyed. The partition-pinned
// consumer worker is the only writer for a given asset; any goroutine may
// take snapshots concurrently.
type Store struct {
	capacity int
	skew     time.Duration

	mu      sync.RWMutex
	windows map[string]*assetWindow
}

type assetWindow struct {
	mu      sync.RWMutex
	samples []models.PriceSample // ordered by ObservedAt, oldest first

	ingested uint64
	stale    uint64
	dups     uint64
}

func New(cfg Config) (*Store, error) {
	if cfg.Capacity <= 0 {
		return nil, fmt.Errorf("window: capacity must be positive, got %d", cfg.Capacity)
	}
	if cfg.SkewTolerance < 0 {
		return nil, fmt.Errorf("window: skew tolerance must not be negative, got %s", cfg.SkewTolerance)
	}
	return &Store{
		capacity: cfg.Capacity,
		skew:     cfg.SkewTolerance,
		windows:  make(map[string]*assetWindow),
	}, nil
}

// Ingest applies one sample. It returns (true, nil) when the window changed,
// (false, nil) for duplicates, and (false, ErrStaleSample) for samples below
// the retention floor. Replayed messages therefore converge to a no-op.
func (s *Store) Ingest(sample models.PriceSample) (bool, error) {
	w := s.window(sample.AssetID)

	w.mu.Lock()
	defer w.mu.Unlock()

	if n := len(w.samples); n > 0 {
		floor := w.samples[n-1].ObservedAt.Add(-s.skew)
		if sample.ObservedAt.Before(floor) {
			w.stale++
			return false, fmt.Errorf("%w: %s is %s behind newest", ErrStaleSample,
				sample.ObservedAt.Format(time.RFC3339), w.samples[n-1].ObservedAt.Sub(sample.ObservedAt))
		}
	}

	// Insertion point past every retained sample with an equal or earlier
	// timestamp, so equal timestamps keep arrival order.
	idx := sort.Search(len(w.samples), func(i int) bool {
		return w.samples[i].ObservedAt.After(sample.ObservedAt)
	})

	for i := idx - 1; i >= 0 && w.samples[i].ObservedAt.Equal(sample.ObservedAt); i-- {
		if w.samples[i].Price.Equal(sample.Price) {
			w.dups++
			return false, nil
		}
	}

	// A full window would evict this sample right back out if it predates
	// everything retained; treat that like a retention-floor rejection.
	if idx == 0 && len(w.samples) >= s.capacity {
		w.stale++
		return false, fmt.Errorf("%w: older than every retained sample in a full window", ErrStaleSample)
	}

	w.samples = append(w.samples, models.PriceSample{})
	copy(w.samples[idx+1:], w.samples[idx:])
	w.samples[idx] = sample

	if len(w.samples) > s.capacity {
		copy(w.samples, w.samples[1:])
		w.samples = w.samples[:s.capacity]
	}

	w.ingested++
	return true, nil
}

// Snapshot returns a copy of the asset's window, oldest first. Nil for
// unknown assets. The returned slice is never a live view.
func (s *Store) Snapshot(assetID string) []models.PriceSample {
	s.mu.RLock()
	w, ok := s.windows[assetID]
	s.mu.RUnlock()
	if !ok {
		return nil
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]models.PriceSample, len(w.samples))
	copy(out, w.samples)
	return out
}

func (s *Store) Len(assetID string) int {
	s.mu.RLock()
	w, ok := s.windows[assetID]
	s.mu.RUnlock()
	if !ok {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.samples)
}

func (s *Store) Stats(assetID string) (Stats, bool) {
	s.mu.RLock()
	w, ok := s.windows[assetID]
	s.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Stats{Ingested: w.ingested, Stale: w.stale, Duplicates: w.dups, Len: len(w.samples)}, true
}

// Assets lists every asset with a window, sorted for stable output.
func (s *Store) Assets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.windows))
	for id := range s.windows {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) window(assetID string) *assetWindow {
	s.mu.RLock()
	w, ok := s.windows[assetID]
	s.mu.RUnlock()
	if ok {
		return w
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if w, ok = s.windows[assetID]; ok {
		return w
	}
	w = &assetWindow{samples: make([]models.PriceSample, 0, s.capacity+1)}
	s.windows[assetID] = w
	return w
}
