package internal

import (
	"deckpack/internal/controllers"
	"deckpack/internal/providers"
	"net/http"
)

func InitRoutes(deckController *controllers.DeckController) providers.RouterProviderInterface {
	routers := providers.NewRouterProvider()

	routers.Post("/export", http.HandlerFunc(deckController.Export))
	routers.Post("/import", http.HandlerFunc(deckController.Import))
	return routers
}
