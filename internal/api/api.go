package api

import (
	"context"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"asynccalc/internal/auth"
	"asynccalc/internal/models"
	"asynccalc/internal/orchestrator"
)

// CalculationService is the use-case API the handlers call.
type CalculationService interface {
	List(ctx context.Context, filter models.CalculationFilter, page models.Pagination) ([]models.Calculation, error)
	GetByID(ctx context.Context, id uuid.UUID) (models.Calculation, error)
	Create(ctx context.Context, expression string, user models.User) (models.Calculation, error)
	Cancel(ctx context.Context, id uuid.UUID, requestedBy models.User) (models.CalculationStatusUpdate, error)
	Stats() orchestrator.RegistryStats
}

// SetupRouter builds the HTTP API. Everything under /api/v1/calculations requires a
// bearer token.
func SetupRouter(svc CalculationService, tokens *auth.Tokens, tokenTTL time.Duration, logger zerolog.Logger) *chi.Mux {
	h := NewHandler(svc, logger)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", h.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/token-info", TokenInfoHandler(tokenTTL))

		r.Group(func(r chi.Router) {
			r.Use(tokens.Middleware)
			r.Get("/calculations", h.List)
			r.Post("/calculations", h.Create)
			r.Get("/calculations/{id}", h.Get)
			r.Post("/calculations/{id}/cancel", h.Cancel)
		})
	})

	return r
}
