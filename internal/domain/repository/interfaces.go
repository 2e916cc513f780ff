package repository

import (
	"context"
	"errors"

	"IndiStream/internal/domain/models"
)

// ErrNotAvailable is returned by SnapshotReader when no usable snapshot
// exists for an asset, either because none was ever computed or because the
// last one is past the staleness ceiling.
var ErrNotAvailable = errors.New("indicator snapshot not available")

// SnapshotPublisher pushes a computed snapshot to the downstream read cache.
type SnapshotPublisher interface {
	Publish(ctx context.Context, snap *models.IndicatorSnapshot) error
}

// SnapshotReader serves the most recent usable snapshot for an asset.
type SnapshotReader interface {
	Latest(assetID string) (*models.IndicatorSnapshot, error)
}

// SnapshotStore retains last-known-good snapshots in memory so reads keep
// working while the cache cannot.
type SnapshotStore interface {
	SnapshotReader
	Put(snap *models.IndicatorSnapshot)
}

type Metrics interface {
	RecordIngested(asset string)
	RecordRejected(asset, reason string)
	RecordPublished(family, asset string)
	RecordPublishFailure(family string)
	RecordLastPrice(asset string, price float64)
	RecordLatency(op string, seconds float64)
	SetConsumerLag(topic string, lag int64)
}

// Rejection reasons used as the metric label for dropped samples.
const (
	ReasonMalformed = "malformed"
	ReasonStale     = "stale"
	ReasonDuplicate = "duplicate"
)
