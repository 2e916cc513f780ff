//go:build wireinject
// +build wireinject

package di

import (
	domrepo "IndiStream/internal/domain/repository"
	internalrepo "IndiStream/internal/repository"
	"IndiStream/pkg/cache"
	"IndiStream/pkg/config"
	"IndiStream/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideWindowStore,
		ProvideRedisCache,
		wire.Bind(new(cache.Service), new(*cache.RedisCache)),

		// Repositories
		ProvideLatestStore,
		wire.Bind(new(domrepo.SnapshotStore), new(*internalrepo.LatestStore)),
		ProvidePublisher,

		// Use cases
		ProvideCalculator,
		ProvidePriceUpdateHandler,

		// Consumer pipeline
		ProvideKafkaConsumer,
		ProvideSupervisor,

		// HTTP
		ProvideIndicatorsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
