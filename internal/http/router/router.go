// Package router arma el árbol de rutas del servicio con chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	httpx "github.com/SWAN-community/owid/internal/http"
	"github.com/SWAN-community/owid/internal/http/handlers"
	"github.com/SWAN-community/owid/internal/http/middlewares"
	"github.com/SWAN-community/owid/internal/store"
)

// Config agrupa lo necesario para construir el router.
type Config struct {
	Deps           handlers.Deps
	Store          store.Store
	AdminJWTSecret string
	CORSOrigins    []string
	MetricsHandler http.Handler
}

// New construye el handler raíz: rutas públicas de OWID, área admin
// protegida, readyz y metrics, con la cadena estándar de middlewares.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Route("/owid/api/v1", func(r chi.Router) {
		r.Get("/signer", handlers.NewSignerHandler(cfg.Deps))
		r.Post("/sign", handlers.NewSignHandler(cfg.Deps))
		r.Post("/verify", handlers.NewVerifyHandler(cfg.Deps))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middlewares.WithAdminAuth(cfg.AdminJWTSecret))
			r.Post("/signer", handlers.NewAdminRegisterHandler(cfg.Deps))
			r.Post("/rotate", handlers.NewAdminRotateHandler(cfg.Deps))
		})
	})

	r.Get("/readyz", handlers.NewReadyzHandler(cfg.Store))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return middlewares.Chain(r,
		middlewares.WithRequestID(),
		middlewares.WithLogging(),
		middlewares.WithCORS(cfg.CORSOrigins),
		httpx.WithMetrics,
	)
}
