package api

import (
	"net/http"

	"github.com/dom/cardclash/internal/api/handlers"
	"github.com/dom/cardclash/internal/api/middleware"
	"github.com/dom/cardclash/internal/service"
	"github.com/dom/cardclash/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

func NewRouter(services *service.Services, hub *websocket.Hub, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	authHandler := handlers.NewAuthHandler(services.Auth, logger)
	cardHandler := handlers.NewCardHandler(services.Collection, logger)
	battleHandler := handlers.NewBattleHandler(services.Battle, services.Selection, services.Orchestrator, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, services.Auth, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(services.Auth, logger))
				r.Get("/me", authHandler.Me)
				r.Post("/logout", authHandler.Logout)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(services.Auth, logger))

			r.Route("/cards", func(r chi.Router) {
				r.Get("/", cardHandler.List)
				r.Post("/packs", cardHandler.OpenPack)
				r.Get("/{id}", cardHandler.Get)
			})

			r.Route("/battles", func(r chi.Router) {
				r.Post("/", battleHandler.Create)
				r.Get("/", battleHandler.List)
				r.Get("/{id}", battleHandler.Get)
				r.Post("/{id}/accept", battleHandler.Accept)
				r.Post("/{id}/decline", battleHandler.Decline)
				r.Post("/{id}/cancel", battleHandler.Cancel)
				r.Post("/{id}/selection", battleHandler.SelectCard)
				r.Post("/{id}/resolve", battleHandler.Resolve)
			})
		})

		r.Get("/ws", wsHandler.Handle)
	})

	return otelhttp.NewHandler(r, "cardclash")
}
