package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bcnelson/env-manager/internal/api/handler"
	"github.com/bcnelson/env-manager/internal/api/middleware"
	"github.com/bcnelson/env-manager/internal/metrics"
	"github.com/bcnelson/env-manager/internal/service"
	"github.com/bcnelson/env-manager/internal/storage"
)

// NewRouter creates a new HTTP router with all routes configured.
func NewRouter(
	store storage.Storage,
	vars *service.VariableService,
	switches *service.SwitchService,
	apiToken string,
	logger *slog.Logger,
) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))

	// Health check (no auth required)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	// API routes (JSON Content-Type, bearer token when configured)
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.ContentType)
		r.Use(middleware.Auth(apiToken))

		adminHandler := handler.NewAdminHandler(vars.Gate())
		r.Get("/admin", adminHandler.Get)

		// Live variables
		envHandler := handler.NewEnvHandler(vars)
		r.Get("/env", envHandler.List)
		r.Post("/env", envHandler.Upsert)
		r.Delete("/env", envHandler.Delete)
		r.Post("/env/batch", envHandler.Batch)
		r.Post("/env/prune", envHandler.Prune)

		// Groups
		groupHandler := handler.NewGroupHandler(store)
		r.Get("/envgroup", groupHandler.List)
		r.Post("/envgroup", groupHandler.Save)
		r.Delete("/envgroup", groupHandler.Delete)
		r.Get("/envgroup/{name}", groupHandler.Get)

		// Switching
		switchHandler := handler.NewSwitchHandler(switches)
		r.Put("/envgroupswitch", switchHandler.Activate)
		r.Post("/envgroupswitch/preview", switchHandler.Preview)
		r.Get("/activations", switchHandler.History)
	})

	return r
}
