//go:build wireinject
// +build wireinject

package di

import (
	"FxPulse/pkg/config"
	"FxPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires every component from cfg.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideCorrelationStore,
		ProvideSignalJournal,
		ProvideAlertTransport,
		ProvideMarketStreamFactory,
		ProvideFallbackSource,

		// Services and use cases
		ProvideRiskBook,
		ProvideDispatcher,
		ProvideDispatchWorker,
		ProvideSupervisor,
		ProvideOutcomeHandler,

		// Transport
		ProvideAPIHandler,
		ProvideHTTPServer,

		ProvideClosers,
		server.New,
	)
	return &server.App{}, nil
}
