//go:build wireinject
// +build wireinject

package di

import (
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideCacheService,
		ProvideRedisClient,
		ProvideKafkaConsumer,

		// Repositories
		ProvideMarketStore,
		ProvideSessionStore,
		ProvideBarStore,
		ProvideStatStore,
		ProvideQuoteSource,
		ProvideBarQueue,
		ProvideExtremesHash,
		ProvideActiveSet,
		ProvideBroadcaster,

		// Use cases
		ProvideYearly,
		ProvideCloser,
		ProvideCapture,
		ProvideSupervisor,
		ProvideGrader,
		ProvideGate,
		ProvideMonitor,
		ProvideFlusher,
		ProvideQuoteIngest,

		// HTTP
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
