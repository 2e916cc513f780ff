package usecase

import (
	"context"
	"errors"
	"time"

	"IndiStream/internal/domain/models"
	domrepo "IndiStream/internal/domain/repository"
	"IndiStream/internal/window"
	pkgkafka "IndiStream/pkg/kafka"
	"IndiStream/pkg/logger"
)

// PriceUpdateHandler is the pipeline core. For each consumed message it
// validates the payload, applies it to the asset's window, recomputes the
// indicator snapshot, retains it as last-known-good, and publishes it to the
// read cache.
//
// Handle returns nil for everything except failures worth redelivering.
// Malformed, stale, and duplicate updates are counted and dropped; a publish
// that exhausted its retries is logged and counted, because by then the
// snapshot is already retained in memory and a replay cannot revive a dead
// cache.
type PriceUpdateHandler struct {
	topic   string
	windows *window.Store
	calc    *Calculator
	latest  domrepo.SnapshotStore
	pub     domrepo.SnapshotPublisher
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewPriceUpdateHandler(
	topic string,
	windows *window.Store,
	calc *Calculator,
	latest domrepo.SnapshotStore,
	pub domrepo.SnapshotPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
) *PriceUpdateHandler {
	return &PriceUpdateHandler{
		topic:   topic,
		windows: windows,
		calc:    calc,
		latest:  latest,
		pub:     pub,
		metrics: metrics,
		log:     log,
	}
}

func (h *PriceUpdateHandler) Topic() string { return h.topic }

// Handle processes one raw price update. Replays of already-applied messages
// converge to counted no-ops, which is what makes at-least-once delivery safe
// upstream.
func (h *PriceUpdateHandler) Handle(ctx context.Context, payload []byte) error {
	start := time.Now()

	sample, err := models.ParsePriceUpdate(payload)
	if err != nil {
		// The asset id is untrusted on this path, so the label stays fixed.
		h.metrics.RecordRejected("unknown", domrepo.ReasonMalformed)
		h.log.Warn("dropping malformed price update",
			logger.String("topic", h.topic),
			logger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
			logger.Error(err))
		return nil
	}

	changed, err := h.windows.Ingest(sample)
	if err != nil {
		if errors.Is(err, window.ErrStaleSample) {
			h.metrics.RecordRejected(sample.AssetID, domrepo.ReasonStale)
			h.log.Debug("dropping stale sample",
				logger.String("asset", sample.AssetID),
				logger.Error(err))
			return nil
		}
		return err
	}
	if !changed {
		h.metrics.RecordRejected(sample.AssetID, domrepo.ReasonDuplicate)
		return nil
	}

	h.metrics.RecordIngested(sample.AssetID)
	h.metrics.RecordLastPrice(sample.AssetID, sample.PriceFloat())
	h.metrics.RecordLatency("ingest_e2e", time.Since(sample.ObservedAt).Seconds())

	snap := h.calc.Snapshot(sample.AssetID)
	if snap == nil {
		return nil
	}

	// Retain before publishing: the fallback must hold the fresh snapshot
	// even when the cache write fails below.
	h.latest.Put(snap)

	if err := h.pub.Publish(ctx, snap); err != nil {
		h.log.Error("snapshot publish failed, serving from memory until the cache recovers",
			logger.String("asset", sample.AssetID),
			logger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
			logger.Error(err))
	}

	h.metrics.RecordLatency("handle", time.Since(start).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*PriceUpdateHandler)(nil)
