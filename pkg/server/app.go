package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"IndiStream/internal/supervisor"
	"IndiStream/pkg/cache"
	"IndiStream/pkg/config"
	xhttp "IndiStream/pkg/http"
	pkgkafka "IndiStream/pkg/kafka"
	applogger "IndiStream/pkg/logger"
)

// App encapsulates the application lifecycle: the supervised consumer
// pipeline, the HTTP read API, and an orderly shutdown between them.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	sup        *supervisor.Supervisor
	consumer   *pkgkafka.Consumer
	redis      *cache.RedisCache
	handler    xhttp.Handler
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	sup *supervisor.Supervisor,
	consumer *pkgkafka.Consumer,
	redis *cache.RedisCache,
	handler xhttp.Handler,
) *App {
	return &App{
		cfg:      cfg,
		log:      log,
		sup:      sup,
		consumer: consumer,
		redis:    redis,
		handler:  handler,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout.Std(), a.cfg.Server.WriteTimeout.Std(), a.cfg.Server.ShutdownTimeout.Std()),
		xhttp.WithLogger(a.log),
	)

	supDone := make(chan error, 1)
	go func() { supDone <- a.sup.Run(ctx) }()
	a.log.Info("consumer supervisor started",
		applogger.String("topic", a.cfg.Kafka.Topic),
		applogger.String("group", a.cfg.Kafka.Consumer.GroupID),
		applogger.Int("workers", a.cfg.Kafka.Consumer.Workers),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		a.log.Info("shutdown signal received")
		// Stop consuming first; in-flight messages drain before the cache
		// connection goes away.
		cancel()
		select {
		case <-supDone:
		case <-time.After(a.cfg.Server.ShutdownTimeout.Std()):
			a.log.Warn("consumer drain timed out")
		}
	case err := <-supDone:
		// The supervisor absorbs failures, so reaching here means the
		// consumer stopped deliberately. Shut the rest down with it.
		if err != nil {
			a.log.Error("consumer supervisor exited", applogger.Error(err))
		} else {
			a.log.Warn("consumer supervisor exited")
		}
	}

	return a.shutdown()
}

// shutdown stops the read surface and releases infrastructure connections.
func (a *App) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout.Std())
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Close(); err != nil {
			a.log.Warn("kafka consumer close error", applogger.Error(err))
		}
	}

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
