package di

import (
	"fmt"
	"time"

	domrepo "IndiStream/internal/domain/repository"
	"IndiStream/internal/handler/api"
	internalrepo "IndiStream/internal/repository"
	"IndiStream/internal/supervisor"
	"IndiStream/internal/usecase"
	"IndiStream/internal/window"
	"IndiStream/pkg/cache"
	"IndiStream/pkg/config"
	pkgkafka "IndiStream/pkg/kafka"
	applogger "IndiStream/pkg/logger"
	"IndiStream/pkg/metrics"
	"IndiStream/pkg/server"
)

// ProvideLogger builds the process-wide structured logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideWindowStore creates the per-asset sample windows.
func ProvideWindowStore(cfg *config.Config) (*window.Store, error) {
	ws, err := window.New(window.Config{
		Capacity:      cfg.Window.Capacity,
		SkewTolerance: cfg.Window.SkewTolerance.Std(),
	})
	if err != nil {
		return nil, fmt.Errorf("window store: %w", err)
	}
	return ws, nil
}

// ProvideRedisCache connects to Redis and verifies connectivity. A dead cache
// at startup is a configuration problem, so this fails fast; outages later
// degrade to the in-process fallback instead.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideLatestStore creates the in-process last-known-good snapshot store.
func ProvideLatestStore(cfg *config.Config) *internalrepo.LatestStore {
	return internalrepo.NewLatestStore(cfg.Latest.StalenessCeiling.Std())
}

// ProvidePublisher assembles the snapshot publisher with per-family TTLs.
func ProvidePublisher(
	c cache.Service,
	cfg *config.Config,
	log *applogger.Logger,
	m domrepo.Metrics,
) domrepo.SnapshotPublisher {
	return internalrepo.NewCachePublisher(c, internalrepo.PublisherConfig{
		RetryMax:   cfg.Publish.RetryMax,
		BackoffMin: cfg.Publish.BackoffMin.Std(),
		BackoffMax: cfg.Publish.BackoffMax.Std(),
		OpTimeout:  cfg.Publish.OpTimeout.Std(),
		TTL: map[domrepo.Family]time.Duration{
			domrepo.FamilySMA:         cfg.Publish.TTL.SMA.Std(),
			domrepo.FamilyEMA:         cfg.Publish.TTL.EMA.Std(),
			domrepo.FamilyRSI:         cfg.Publish.TTL.RSI.Std(),
			domrepo.FamilyMACD:        cfg.Publish.TTL.MACD.Std(),
			domrepo.FamilyVolatility:  cfg.Publish.TTL.Volatility.Std(),
			domrepo.FamilyCorrelation: cfg.Publish.TTL.Correlation.Std(),
			domrepo.FamilySnapshot:    cfg.Publish.TTL.Snapshot.Std(),
		},
	}, log, m)
}

// ProvideCalculator binds indicator periods and indexes correlation pairs.
func ProvideCalculator(ws *window.Store, cfg *config.Config) *usecase.Calculator {
	pairs := make([]usecase.Pair, 0, len(cfg.Correlation.Pairs))
	for _, p := range cfg.Correlation.Pairs {
		pairs = append(pairs, usecase.Pair{Base: p.Base, Quote: p.Quote})
	}

	return usecase.NewCalculator(ws, usecase.CalcConfig{
		SMAPeriod:         cfg.Indicators.SMAPeriod,
		EMAPeriod:         cfg.Indicators.EMAPeriod,
		VolatilityPeriod:  cfg.Indicators.VolatilityPeriod,
		RSIPeriod:         cfg.Indicators.RSIPeriod,
		MACDFast:          cfg.Indicators.MACDFast,
		MACDSlow:          cfg.Indicators.MACDSlow,
		CorrelationPeriod: cfg.Correlation.Period,
		AlignTolerance:    cfg.Correlation.AlignTolerance.Std(),
		Pairs:             pairs,
	})
}

// ProvidePriceUpdateHandler builds the message handler for the price topic.
func ProvidePriceUpdateHandler(
	cfg *config.Config,
	ws *window.Store,
	calc *usecase.Calculator,
	latest domrepo.SnapshotStore,
	pub domrepo.SnapshotPublisher,
	m domrepo.Metrics,
	log *applogger.Logger,
) *usecase.PriceUpdateHandler {
	return usecase.NewPriceUpdateHandler(
		cfg.Kafka.Topic,
		ws,
		calc,
		latest,
		pub,
		m,
		log,
	)
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML, with
// the price handler registered and trace propagation hooked in.
func ProvideKafkaConsumer(cfg *config.Config, h *usecase.PriceUpdateHandler) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin.Std(), cfg.Kafka.Consumer.BackoffMax.Std()),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerMaxFetchFailures(cfg.Kafka.Consumer.MaxFetchFailures),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TracingHook()))
	consumer.RegisterHandler(h)
	return consumer, nil
}

// ProvideSupervisor wraps the consumer in the restart policy.
func ProvideSupervisor(
	consumer *pkgkafka.Consumer,
	cfg *config.Config,
	m domrepo.Metrics,
	log *applogger.Logger,
) *supervisor.Supervisor {
	return supervisor.New(consumer, supervisor.Config{
		BackoffBase:      cfg.Supervisor.BackoffBase.Std(),
		BackoffCap:       cfg.Supervisor.BackoffCap.Std(),
		StableReset:      cfg.Supervisor.StableReset.Std(),
		LagPollInterval:  cfg.Supervisor.LagPollInterval.Std(),
		LagWarnThreshold: cfg.Supervisor.LagWarnThreshold,
		Topic:            cfg.Kafka.Topic,
	}, m, log)
}

// ProvideIndicatorsHandler builds the HTTP read API.
func ProvideIndicatorsHandler(
	log *applogger.Logger,
	c cache.Service,
	latest *internalrepo.LatestStore,
	ws *window.Store,
	sup *supervisor.Supervisor,
) *api.IndicatorsHandler {
	return api.NewIndicatorsHandler(log, c, latest, ws, sup)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	sup *supervisor.Supervisor,
	consumer *pkgkafka.Consumer,
	redis *cache.RedisCache,
	handler *api.IndicatorsHandler,
) *server.App {
	return server.New(cfg, log, sup, consumer, redis, handler)
}
