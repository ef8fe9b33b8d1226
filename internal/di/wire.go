//go:build wireinject
// +build wireinject

package di

import (
	"github.com/hislov/overdrive-bot/pkg/config"
	"github.com/hislov/overdrive-bot/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient infrastructure
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,
		ProvideHTTPClient,

		// Domain policy
		ProvidePolicy,
		ProvideClock,

		// External data services
		ProvideMarketData,
		ProvideRegimeSource,
		ProvideQuoteStream,

		// Repositories
		ProvideRunLog,
		ProvideReportPublisher,
		ProvideExclusionStore,

		// Decision services
		ProvideSelector,
		ProvideChartRenderer,
		ProvideNotifier,
		ProvidePenalizer,

		// Use cases
		ProvidePipeline,
		ProvideQueue,

		// HTTP front door
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
