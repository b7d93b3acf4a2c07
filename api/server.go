/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:      Unique ID per request for tracing
  2. RequestLogger:  zap request logging (carries the request ID)
  3. Recoverer:      Panic recovery (500 instead of crash)
  4. CORS:           Cross-origin requests for the frontend
  5. Actor:          X-Actor-ID / X-Actor-Name -> credits.Actor

ROUTE GROUPS:
  /health                       Liveness
  /metrics                      Prometheus
  /api/client-month-summaries   Summaries and XLSX export
  /api/client-months            Ledger
  /api/clients/{clientID}       Ledger and outputs by client and month
  /api/outputs                  Output log writes
  /api/colleagues               Colleague credits
  /api/sync                     Engagement reconciliation
  /api/output-types             Catalog
  /api/client-configs           Client default packages
  /api/directory                Directory seeding
  /api/scenarios                Demo scenarios

SECURITY NOTE:
  Authentication happens upstream. The API trusts the actor headers.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", HeaderActorID, HeaderActorName},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))
	r.Use(ActorMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Summary routes
		r.Route("/client-month-summaries", func(r chi.Router) {
			r.Get("/", h.ListSummaries)
			r.Get("/export", h.ExportSummaries)
		})
		r.Get("/engagement-services/{id}/summary", h.GetEngagementServiceSummary)

		// Ledger routes
		r.Route("/client-months", func(r chi.Router) {
			r.Get("/", h.ListClientMonths)
			r.Post("/", h.AddClientMonth)
			r.Get("/available", h.ListAvailableClients)
			r.Get("/{id}", h.GetClientMonth)
			r.Patch("/{id}", h.UpdateClientMonth)
			r.Get("/{id}/history", h.GetSettingsHistory)
		})
		r.Route("/clients/{clientID}/months/{year}/{month}", func(r chi.Router) {
			r.Get("/", h.GetClientMonthForClient)
			r.Delete("/", h.RemoveClientFromMonth)
			r.Get("/outputs", h.GetClientOutputs)
		})

		// Output routes
		r.Put("/outputs/{clientID}/{outputTypeID}/{year}/{month}", h.UpdateClientOutput)

		// Colleague routes
		r.Route("/colleagues/{id}/credits", func(r chi.Router) {
			r.Get("/", h.GetColleagueCredits)
			r.Get("/detail", h.GetColleagueCreditsDetail)
		})

		// Sync routes
		r.Post("/sync/engagements", h.SyncEngagements)

		// Catalog routes
		r.Route("/output-types", func(r chi.Router) {
			r.Get("/", h.ListOutputTypes)
			r.Post("/", h.CreateOutputType)
			r.Patch("/{id}", h.UpdateOutputType)
			r.Get("/{id}/credits", h.CalculateOutputCredits)
		})
		r.Route("/client-configs", func(r chi.Router) {
			r.Get("/", h.ListClientConfigs)
			r.Put("/{clientID}", h.UpsertClientConfig)
		})

		// Scenario routes
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
		})

		// Directory routes
		r.Route("/directory", func(r chi.Router) {
			r.Post("/clients", h.CreateClient)
			r.Post("/engagements", h.CreateEngagement)
			r.Post("/engagement-services", h.CreateEngagementService)
		})
	})

	return r
}
