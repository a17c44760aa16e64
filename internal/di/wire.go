//go:build wireinject
// +build wireinject

package di

import (
	"TradePulse/pkg/config"
	"TradePulse/pkg/server"

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
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisCache,

		// Gateways
		ProvideDecisionStore,
		ProvideDecisionPublisher,
		ProvideSampleCache,
		ProvideResponseCache,
		ProvideRetryQueue,
		ProvideAlerter,
		ProvideExecutor,
		ProvideWatchStream,

		// Engine core
		ProvideAutoTrading,
		ProvideBus,
		ProvideCorrelationEngine,
		ProvideWeightBook,
		ProvideScoreBoard,
		ProvideAggregator,
		ProvideGate,
		ProvideDispatcher,
		ProvideEngine,
		ProvideOptimizer,
		ProvideScheduler,

		// Intake
		ProvideKafkaSignalsHandler,
		ProvideSignalCollector,

		// HTTP + application server
		ProvideEngineHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
