package repository

import (
	"fmt"
	"sync"
	"time"

	"IndiStream/internal/domain/models"
	"IndiStream/internal/domain/repository"
)

// DefaultStalenessCeiling bounds how old a retained snapshot may grow before
// reads refuse to serve it.
const DefaultStalenessCeiling = 10 * time.Minute

// LatestStore keeps the last successfully computed snapshot per asset in
// process memory. It is the read path's fallback when the cache is down:
// slightly stale answers beat no answers, up to the ceiling, past which
// callers get ErrNotAvailable instead of misleadingly old numbers.
type LatestStore struct {
	ceiling time.Duration
	now     func() time.Time

	mu    sync.RWMutex
	snaps map[string]*models.IndicatorSnapshot
}

// NewLatestStore creates an empty store with the given staleness ceiling.
func NewLatestStore(ceiling time.Duration) *LatestStore {
	if ceiling <= 0 {
		ceiling = DefaultStalenessCeiling
	}
	return &LatestStore{
		ceiling: ceiling,
		now:     time.Now,
		snaps:   make(map[string]*models.IndicatorSnapshot),
	}
}

var _ repository.SnapshotStore = (*LatestStore)(nil)

// Put replaces the retained snapshot for the asset. Snapshots are treated as
// immutable after this call.
func (s *LatestStore) Put(snap *models.IndicatorSnapshot) {
	if snap == nil || snap.AssetID == "" {
		return
	}
	s.mu.Lock()
	s.snaps[snap.AssetID] = snap
	s.mu.Unlock()
}

// Latest returns the retained snapshot for the asset, or ErrNotAvailable when
// none exists or the last one is past the staleness ceiling.
func (s *LatestStore) Latest(assetID string) (*models.IndicatorSnapshot, error) {
	s.mu.RLock()
	snap, ok := s.snaps[assetID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no snapshot for %s", repository.ErrNotAvailable, assetID)
	}
	if age := s.now().Sub(snap.ComputedAt); age > s.ceiling {
		return nil, fmt.Errorf("%w: snapshot for %s is %s old", repository.ErrNotAvailable, assetID, age.Round(time.Second))
	}
	return snap, nil
}

// Len reports how many assets currently have a retained snapshot.
func (s *LatestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}
