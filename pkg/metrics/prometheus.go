package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	samplesIngested *prometheus.CounterVec
	samplesRejected *prometheus.CounterVec
	published       *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
	consumerLag     *prometheus.GaugeVec
	latency         *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		samplesIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indistream_samples_ingested_total",
				Help: "Total price samples accepted into windows",
			},
			[]string{"asset"},
		),
		samplesRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indistream_samples_rejected_total",
				Help: "Total price samples dropped before ingestion",
			},
			[]string{"asset", "reason"},
		),
		published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indistream_snapshots_published_total",
				Help: "Total indicator entries written to the read cache",
			},
			[]string{"family", "asset"},
		),
		publishFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "indistream_publish_failures_total",
				Help: "Total cache publishes abandoned after retries",
			},
			[]string{"family"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indistream_last_price",
				Help: "Last ingested price for an asset",
			},
			[]string{"asset"},
		),
		consumerLag: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "indistream_consumer_lag",
				Help: "Messages between the newest offset and the committed offset",
			},
			[]string{"topic"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "indistream_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordIngested counts a sample accepted into an asset window.
func (r *Recorder) RecordIngested(asset string) {
	r.samplesIngested.WithLabelValues(asset).Inc()
}

// RecordRejected counts a dropped sample with its rejection reason.
func (r *Recorder) RecordRejected(asset, reason string) {
	r.samplesRejected.WithLabelValues(asset, reason).Inc()
}

// RecordPublished counts one cache entry write per indicator family.
func (r *Recorder) RecordPublished(family, asset string) {
	r.published.WithLabelValues(family, asset).Inc()
}

// RecordPublishFailure counts a publish abandoned after retry exhaustion.
func (r *Recorder) RecordPublishFailure(family string) {
	r.publishFailures.WithLabelValues(family).Inc()
}

// RecordLastPrice records the last price for an asset.
func (r *Recorder) RecordLastPrice(asset string, price float64) {
	r.lastPrice.WithLabelValues(asset).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// SetConsumerLag publishes the current consumer lag for a topic.
func (r *Recorder) SetConsumerLag(topic string, lag int64) {
	r.consumerLag.WithLabelValues(topic).Set(float64(lag))
}
