//go:build wireinject
// +build wireinject

package di

import (
	"deckpack/internal"
	"deckpack/internal/controllers"
	"deckpack/internal/deck"
	"deckpack/internal/providers"
	"deckpack/internal/services"
	"deckpack/internal/structures"
	wire "github.com/google/wire"
)

var codecSet = wire.NewSet(
	providers.NewConfigProvider,
	providers.NewLogProvider,
	providers.NewMetricsProvider,

	deck.NewZstdCompressor,
	deck.NewCodecFromConfig,
	services.NewDeckService,
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		codecSet,
		providers.NewInstrumentedCacheProvider,

		controllers.NewDeckController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}

func InitTool(cfg *structures.CliFlags) (*internal.Tool, error) {

	wire.Build(
		codecSet,

		deck.NewFileManager,
		internal.NewTool,
	)

	return nil, nil
}
