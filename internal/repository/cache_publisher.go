package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"IndiStream/internal/domain/models"
	"IndiStream/internal/domain/repository"
	"IndiStream/pkg/cache"
	"IndiStream/pkg/logger"
)

// ErrPublishExhausted is returned once every write attempt for a snapshot
// failed. Callers treat it as a degradation signal; the message that produced
// the snapshot is still acknowledged.
var ErrPublishExhausted = errors.New("cache publish retries exhausted")

// KeyFor returns the cache key for one indicator family of one asset.
// External readers depend on this shape, so it never changes silently.
func KeyFor(family repository.Family, assetID string) string {
	return fmt.Sprintf("indicator:%s:%s", family, assetID)
}

// PublisherConfig tunes the retry schedule and per-family TTLs.
type PublisherConfig struct {
	RetryMax   int
	BackoffMin time.Duration
	BackoffMax time.Duration
	OpTimeout  time.Duration
	TTL        map[repository.Family]time.Duration
}

// CachePublisher writes computed snapshots into the read cache, one key per
// indicator family plus a combined snapshot document, each with its own TTL.
// The whole batch for an asset lands in a single pipelined write so readers
// never observe a half-updated asset.
type CachePublisher struct {
	cache   cache.Service
	cfg     PublisherConfig
	log     *logger.Logger
	metrics repository.Metrics
}

// NewCachePublisher creates a snapshot publisher backed by the given cache.
func NewCachePublisher(c cache.Service, cfg PublisherConfig, log *logger.Logger, m repository.Metrics) *CachePublisher {
	if cfg.RetryMax < 1 {
		cfg.RetryMax = 4
	}
	if cfg.BackoffMin <= 0 {
		cfg.BackoffMin = 100 * time.Millisecond
	}
	if cfg.BackoffMax < cfg.BackoffMin {
		cfg.BackoffMax = 2 * time.Second
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	return &CachePublisher{cache: c, cfg: cfg, log: log, metrics: m}
}

var _ repository.SnapshotPublisher = (*CachePublisher)(nil)

// Publish writes every populated family of the snapshot. Attempts are bounded
// and separated by jittered backoff; each attempt runs under its own timeout
// so a hung cache cannot stall the pipeline worker indefinitely.
func (p *CachePublisher) Publish(ctx context.Context, snap *models.IndicatorSnapshot) error {
	if snap == nil || snap.AssetID == "" {
		return fmt.Errorf("publish: snapshot has no asset")
	}

	families, entries := p.entriesFor(snap)
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= p.cfg.RetryMax; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, p.cfg.OpTimeout)
		err := p.cache.SetEntries(opCtx, entries)
		cancel()

		if err == nil {
			for _, f := range families {
				p.metrics.RecordPublished(string(f), snap.AssetID)
			}
			p.metrics.RecordLatency("publish", time.Since(start).Seconds())
			return nil
		}
		lastErr = err
		p.log.Warn("cache publish attempt failed",
			logger.String("asset", snap.AssetID),
			logger.Int("attempt", attempt),
			logger.Int("max_attempts", p.cfg.RetryMax),
			logger.Error(err))

		if attempt == p.cfg.RetryMax {
			break
		}
		select {
		case <-ctx.Done():
			lastErr = ctx.Err()
		case <-time.After(p.backoff(attempt)):
			continue
		}
		break
	}

	for _, f := range families {
		p.metrics.RecordPublishFailure(string(f))
	}
	return fmt.Errorf("%w for %s after %d attempts: %v", ErrPublishExhausted, snap.AssetID, p.cfg.RetryMax, lastErr)
}

// entriesFor flattens a snapshot into cache entries. Families without a value
// are skipped entirely so readers distinguish "not enough data" from zero.
func (p *CachePublisher) entriesFor(snap *models.IndicatorSnapshot) ([]repository.Family, []cache.Entry) {
	families := make([]repository.Family, 0, 7)
	entries := make([]cache.Entry, 0, 7)
	add := func(f repository.Family, v interface{}) {
		families = append(families, f)
		entries = append(entries, cache.Entry{
			Key:   KeyFor(f, snap.AssetID),
			Value: v,
			TTL:   p.ttl(f),
		})
	}

	if snap.SMA != nil {
		add(repository.FamilySMA, *snap.SMA)
	}
	if snap.EMA != nil {
		add(repository.FamilyEMA, *snap.EMA)
	}
	if snap.Volatility != nil {
		add(repository.FamilyVolatility, *snap.Volatility)
	}
	if snap.RSI != nil {
		add(repository.FamilyRSI, *snap.RSI)
	}
	if snap.MACD != nil {
		add(repository.FamilyMACD, snap.MACD)
	}
	if len(snap.Correlations) > 0 {
		add(repository.FamilyCorrelation, snap.Correlations)
	}
	add(repository.FamilySnapshot, snap)

	return families, entries
}

func (p *CachePublisher) ttl(f repository.Family) time.Duration {
	if d, ok := p.cfg.TTL[f]; ok && d > 0 {
		return d
	}
	return defaultTTL[f]
}

var defaultTTL = map[repository.Family]time.Duration{
	repository.FamilySMA:         30 * time.Second,
	repository.FamilyEMA:         30 * time.Second,
	repository.FamilyRSI:         30 * time.Second,
	repository.FamilyMACD:        60 * time.Second,
	repository.FamilyVolatility:  120 * time.Second,
	repository.FamilyCorrelation: 300 * time.Second,
	repository.FamilySnapshot:    30 * time.Second,
}

// backoff doubles from BackoffMin per attempt, capped at BackoffMax, with
// jitter in the upper half of the interval to spread concurrent retries.
func (p *CachePublisher) backoff(attempt int) time.Duration {
	d := p.cfg.BackoffMin << uint(attempt-1)
	if d > p.cfg.BackoffMax || d < p.cfg.BackoffMin {
		d = p.cfg.BackoffMax
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
