package main

import (
	"log/slog"
	"net/http"

	"github.com/easybewerbung/bewerbung-api/internal/api"
	apiMiddleware "github.com/easybewerbung/bewerbung-api/internal/api/middleware"
	"github.com/easybewerbung/bewerbung-api/internal/service"
	"github.com/easybewerbung/bewerbung-api/internal/service/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// routerDeps are the collaborators the HTTP surface needs.
type routerDeps struct {
	logger     *slog.Logger
	jwtService auth.JWTService
	adminRole  string
	db         api.Pinger
	generation service.GenerationService
	matching   service.MatchingService
	credits    service.CreditService
	templates  api.TemplateAdmin
}

func (app *application) setupRouter() http.Handler {
	return newRouter(routerDeps{
		logger:     app.logger,
		jwtService: app.jwtService,
		adminRole:  app.config.Auth.AdminRole,
		db:         app.db,
		generation: app.generationService,
		matching:   app.matchingService,
		credits:    app.creditService,
		templates:  app.catalog,
	})
}

// newRouter registers every route. Everything except /health requires a
// valid bearer token; /admin additionally requires the admin role.
func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware(deps.logger))
	r.Use(middleware.Recoverer)

	authMiddleware := apiMiddleware.NewAuthMiddleware(deps.jwtService)
	generationHandler := api.NewGenerationHandler(deps.generation)
	matchingHandler := api.NewMatchingHandler(deps.matching)
	creditHandler := api.NewCreditHandler(deps.credits)
	templateHandler := api.NewTemplateHandler(deps.templates)
	healthHandler := api.NewHealthHandler(deps.db)

	r.Get("/health", healthHandler.Health)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)

		r.Route("/applications/{id}", func(r chi.Router) {
			r.Post("/generate", generationHandler.StartGeneration)
			r.Get("/generation-status/{task_id}", generationHandler.GetGenerationStatus)
			r.Get("/documents", generationHandler.ListDocuments)

			r.Post("/matching-score/calculate", matchingHandler.CalculateScore)
			r.Get("/matching-score/status/{task_id}", matchingHandler.GetScoreStatus)
			r.Get("/matching-score", matchingHandler.GetCurrentScore)
		})

		r.Get("/credits", creditHandler.GetCredits)
		r.Get("/credits/transactions", creditHandler.ListTransactions)

		r.Route("/admin/templates", func(r chi.Router) {
			r.Use(apiMiddleware.RequireRole(deps.adminRole))
			r.Get("/", templateHandler.ListTemplates)
			r.Post("/", templateHandler.CreateTemplate)
			r.Post("/seed", templateHandler.SeedTemplates)
			r.Get("/{doc_type}", templateHandler.GetTemplate)
			r.Put("/{doc_type}", templateHandler.UpdateTemplate)
			r.Delete("/{doc_type}", templateHandler.DeleteTemplate)
		})
	})

	return r
}
