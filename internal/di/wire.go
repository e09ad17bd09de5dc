//go:build wireinject
// +build wireinject

package di

import (
	"TradeGate/pkg/config"
	"TradeGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Risk state and telemetry
		ProvideDrawdownStore,
		ProvideTracker,
		ProvideExecutionLogStore,
		ProvideStreamer,

		// Dispatch and gating
		ProvideExecutionService,
		ProvideRiskCalculator,
		ProvideEngine,

		// Intake and operator surface
		ProvideEquityHandler,
		ProvideOpsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
