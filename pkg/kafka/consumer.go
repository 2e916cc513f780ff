package kafka

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic. Handle must return
// nil for every message that should be acknowledged, including ones the
// handler classified as unusable and dropped on purpose; errors are reserved
// for failures worth retrying.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// ConsumerOption configures Consumer.
type ConsumerOption func(*ConsumerConfig)

// ConsumerConfig holds consumer configuration.
type ConsumerConfig struct {
	Brokers          []string
	GroupID          string
	AutoOffsetReset  string
	WorkerCount      int
	BufferSize       int
	RetryMax         int
	BackoffMin       time.Duration
	BackoffMax       time.Duration
	DLQTopic         string
	MinBytes         int
	MaxBytes         int
	MaxFetchFailures int
}

// WithConsumerBrokers sets Kafka brokers.
func WithConsumerBrokers(brokers []string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.Brokers = brokers
	}
}

// WithConsumerGroupID sets consumer group ID.
func WithConsumerGroupID(groupID string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.GroupID = groupID
	}
}

// WithConsumerAutoOffsetReset sets where a fresh group starts: "earliest" or
// "latest". A group with committed offsets always resumes from them.
func WithConsumerAutoOffsetReset(autoOffsetReset string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.AutoOffsetReset = autoOffsetReset
	}
}

// WithConsumerWorkers sets number of worker goroutines.
func WithConsumerWorkers(count int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if count > 0 {
			c.WorkerCount = count
		}
	}
}

// WithConsumerRetry configures retry attempts and backoff range.
func WithConsumerRetry(max int, backoffMin, backoffMax time.Duration) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.RetryMax = max
		c.BackoffMin = backoffMin
		c.BackoffMax = backoffMax
	}
}

// WithConsumerDLQ sets a Kafka topic name for DLQ.
func WithConsumerDLQ(topic string) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.DLQTopic = topic
	}
}

// WithConsumerFetch sets fetch min/max bytes.
func WithConsumerFetch(minBytes, maxBytes int) ConsumerOption {
	return func(c *ConsumerConfig) {
		c.MinBytes = minBytes
		c.MaxBytes = maxBytes
	}
}

// WithConsumerBufferSize sets the per-worker channel buffer size.
func WithConsumerBufferSize(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// WithConsumerMaxFetchFailures sets how many consecutive fetch errors Run
// tolerates before giving up and returning to its supervisor.
func WithConsumerMaxFetchFailures(n int) ConsumerOption {
	return func(c *ConsumerConfig) {
		if n > 0 {
			c.MaxFetchFailures = n
		}
	}
}

// Consumer reads one topic through a consumer group and fans messages out to
// a fixed worker pool. Routing is partition-pinned: message for partition p
// always lands on worker p mod workers, so a worker exclusively owns the
// state for the assets keyed to its partitions and handles them in order
// without cross-worker locking.
//
// Offsets are fetched and committed explicitly. A commit happens only after
// the handler finished with the message, which makes delivery at-least-once;
// handlers are expected to be idempotent on replay.
type Consumer struct {
	cfg     *ConsumerConfig
	handler MessageHandler
	dlq     *kafka.Writer
	hook    ConsumerHook

	mu     sync.Mutex
	reader *kafka.Reader
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := &ConsumerConfig{
		GroupID:          "default",
		AutoOffsetReset:  "earliest",
		WorkerCount:      1,
		BufferSize:       10,
		RetryMax:         3,
		BackoffMin:       50 * time.Millisecond,
		BackoffMax:       2 * time.Second,
		MinBytes:         1,
		MaxBytes:         10e6, // 10MB
		MaxFetchFailures: 5,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:  cfg,
		hook: NoopHook{},
	}

	initConsumerMetricsOnce()

	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{Addr: kafka.TCP(cfg.Brokers...), Balancer: &kafka.LeastBytes{}}
	}

	return c, nil
}

// RegisterHandler registers the message handler. The consumer serves exactly
// one topic; a second registration is ignored.
func (c *Consumer) RegisterHandler(handler MessageHandler) {
	if c.handler != nil {
		log.Printf("warn: handler already registered for topic %s", c.handler.Topic())
		return
	}
	c.handler = handler
}

// Run fetches and dispatches until ctx is canceled or fetching breaks down.
// On cancellation it stops fetching, lets the workers drain everything
// already dispatched, and returns nil. Repeated fetch failures return an
// error so the owning supervisor can rebuild the consumer with backoff; the
// group's committed offsets make the restart resume where processing left
// off.
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	topic := c.handler.Topic()

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.cfg.Brokers,
		Topic:       topic,
		GroupID:     c.cfg.GroupID,
		MinBytes:    c.cfg.MinBytes,
		MaxBytes:    c.cfg.MaxBytes,
		StartOffset: startOffset(c.cfg.AutoOffsetReset),
	})
	c.setReader(reader)
	defer func() {
		c.setReader(nil)
		if err := reader.Close(); err != nil {
			log.Printf("error closing reader for topic %s: %v", topic, err)
		}
	}()

	chans := make([]chan kafka.Message, c.cfg.WorkerCount)
	var wg sync.WaitGroup
	for i := range chans {
		chans[i] = make(chan kafka.Message, c.cfg.BufferSize)
		wg.Add(1)
		go c.worker(reader, topic, chans[i], &wg)
	}
	log.Printf("kafka consumer: topic=%s group=%s workers=%d", topic, c.cfg.GroupID, c.cfg.WorkerCount)

	var runErr error
	failures := 0

fetch:
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			log.Printf("error fetching from topic %s (%d/%d): %v", topic, failures, c.cfg.MaxFetchFailures, err)
			if failures >= c.cfg.MaxFetchFailures {
				runErr = fmt.Errorf("kafka consumer: %d consecutive fetch failures on %s: %w", failures, topic, err)
				break
			}
			select {
			case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, failures)):
			case <-ctx.Done():
				break fetch
			}
			continue
		}
		failures = 0

		// Blocking send is the backpressure: per-partition ordering rules
		// out spilling to another worker. A message stranded here on
		// shutdown is simply redelivered, it was never committed.
		select {
		case chans[msg.Partition%len(chans)] <- msg:
			c.observeQueues(topic, chans)
		case <-ctx.Done():
			break fetch
		}
	}

	for _, ch := range chans {
		close(ch)
	}
	wg.Wait()
	return runErr
}

// Close releases resources held between runs.
func (c *Consumer) Close() error {
	if c.dlq != nil {
		return c.dlq.Close()
	}
	return nil
}

// Lag reports how far the group trails the head of the topic. Zero when the
// consumer is not currently running.
func (c *Consumer) Lag() int64 {
	c.mu.Lock()
	reader := c.reader
	c.mu.Unlock()
	if reader == nil {
		return 0
	}
	return reader.Stats().Lag
}

func (c *Consumer) setReader(r *kafka.Reader) {
	c.mu.Lock()
	c.reader = r
	c.mu.Unlock()
}

func (c *Consumer) worker(reader *kafka.Reader, topic string, ch <-chan kafka.Message, wg *sync.WaitGroup) {
	defer wg.Done()
	for msg := range ch {
		c.processMessage(reader, topic, msg)
	}
}

// processMessage runs the handler with bounded retries, then commits. The
// commit is unconditional once handling ends: offsets are high-water marks,
// so holding one back for a poison message would stall its whole partition.
// Messages that exhausted retries go to the DLQ when one is configured.
func (c *Consumer) processMessage(reader *kafka.Reader, topic string, km kafka.Message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic in message handler for topic %s: %v", topic, r)
		}
	}()

	var err error
	attempts := 0
	for {
		attempts++
		// Handling is detached from the run context so in-flight messages
		// finish cleanly during shutdown drain.
		hctx, hmsg, hdata, berr := c.hook.BeforeHandle(context.Background(), topic, km, km.Value)
		if berr != nil {
			err = berr
			break
		}

		err = c.handler.Handle(hctx, hdata)
		c.hook.AfterHandle(hctx, topic, hmsg, hdata, err)
		if err == nil || attempts > c.cfg.RetryMax {
			break
		}
		c.hook.OnError(hctx, topic, hmsg, hdata, err)
		time.Sleep(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts))
	}

	if err != nil {
		c.hook.OnError(context.Background(), topic, km, km.Value, err)
		log.Printf("error handling message topic=%s partition=%d offset=%d after %d attempts: %v",
			topic, km.Partition, km.Offset, attempts, err)
		if c.dlq != nil && c.cfg.DLQTopic != "" {
			if dlqErr := c.dlq.WriteMessages(context.Background(), kafka.Message{
				Topic: c.cfg.DLQTopic,
				Key:   km.Key,
				Value: km.Value,
				Time:  time.Now(),
				Headers: []kafka.Header{
					{Key: "source_topic", Value: []byte(topic)},
					{Key: "source_partition", Value: []byte(fmt.Sprintf("%d", km.Partition))},
					{Key: "source_offset", Value: []byte(fmt.Sprintf("%d", km.Offset))},
				},
			}); dlqErr != nil {
				log.Printf("error writing to DLQ topic %s: %v", c.cfg.DLQTopic, dlqErr)
			}
		}
	}

	_ = c.commitWithRetry(reader, km, 3)

	if consumerHandleLatency != nil {
		consumerHandleLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	}
}

// commitWithRetry commits a single message offset with bounded retries.
func (c *Consumer) commitWithRetry(reader *kafka.Reader, km kafka.Message, max int) error {
	if max <= 0 {
		max = 1
	}
	var err error
	for attempt := 1; attempt <= max; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = reader.CommitMessages(ctx, km)
		cancel()
		if err == nil {
			return nil
		}
		time.Sleep(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt))
	}
	log.Printf("error committing message after %d attempts: %v", max, err)
	return err
}

func (c *Consumer) observeQueues(topic string, chans []chan kafka.Message) {
	if consumerQueueDepth == nil {
		return
	}
	depth := 0
	for _, ch := range chans {
		depth += len(ch)
	}
	consumerQueueDepth.WithLabelValues(topic).Set(float64(depth))
	consumerQueueFullness.WithLabelValues(topic).Set(float64(depth) / float64(len(chans)*c.cfg.BufferSize))
}

func startOffset(autoOffsetReset string) int64 {
	if autoOffsetReset == "latest" {
		return kafka.LastOffset
	}
	return kafka.FirstOffset
}

func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	// exponential backoff base
	exp := min * time.Duration(1<<uint(attempt-1))
	if exp > max || exp < min {
		exp = max
	}
	// jitter up to 50%
	jitter := time.Duration(rand.Int63n(int64(exp) / 2))
	return exp - jitter
}

// Consumer metrics
var (
	consumerQueueDepth    *prometheus.GaugeVec
	consumerQueueFullness *prometheus.GaugeVec
	consumerHandleLatency *prometheus.HistogramVec
	consumerOnce          = make(chan struct{}, 1)
	consumerRegisterer    prometheus.Registerer
)

// SetConsumerMetricsRegisterer sets a custom Prometheus registerer for consumer metrics (useful for testing).
func SetConsumerMetricsRegisterer(reg prometheus.Registerer) { consumerRegisterer = reg }

func initConsumerMetricsOnce() {
	select {
	case consumerOnce <- struct{}{}:
		if consumerRegisterer != nil {
			consumerQueueDepth = prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Name: "indistream_kafka_consumer_queue_depth", Help: "Number of messages waiting in worker queues"},
				[]string{"topic"},
			)
			consumerQueueFullness = prometheus.NewGaugeVec(
				prometheus.GaugeOpts{Name: "indistream_kafka_consumer_queue_fullness", Help: "Worker queue utilization ratio (len/cap)"},
				[]string{"topic"},
			)
			consumerHandleLatency = prometheus.NewHistogramVec(
				prometheus.HistogramOpts{Name: "indistream_kafka_consumer_handle_seconds", Help: "Handling time per message"},
				[]string{"topic"},
			)
			consumerRegisterer.MustRegister(consumerQueueDepth, consumerQueueFullness, consumerHandleLatency)
		} else {
			consumerQueueDepth = promauto.NewGaugeVec(
				prometheus.GaugeOpts{Name: "indistream_kafka_consumer_queue_depth", Help: "Number of messages waiting in worker queues"},
				[]string{"topic"},
			)
			consumerQueueFullness = promauto.NewGaugeVec(
				prometheus.GaugeOpts{Name: "indistream_kafka_consumer_queue_fullness", Help: "Worker queue utilization ratio (len/cap)"},
				[]string{"topic"},
			)
			consumerHandleLatency = promauto.NewHistogramVec(
				prometheus.HistogramOpts{Name: "indistream_kafka_consumer_handle_seconds", Help: "Handling time per message"},
				[]string{"topic"},
			)
		}
	default:
		// already initialized
	}
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}
