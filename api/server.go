/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the dashboard frontend

ROUTE GROUPS:
  /api/client-summary*     Reports and downloads
  /api/client-comparison   One client month by month
  /api/dashboard/*         Charts and client lists
  /api/search              Employee search
  /api/uploads, /shifts    Writes
  /api/rates               Rate administration
  /api/scenarios/*         Demo data (dev only)

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultAllowedOrigins is used when RouterOptions.AllowedOrigins is empty.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

type RouterOptions struct {
	AllowedOrigins []string
	// EnableScenarios mounts /api/scenarios (which can wipe the database).
	EnableScenarios bool
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/latest-month", h.LatestMonth)

		// Report routes
		r.Route("/client-summary", func(r chi.Router) {
			r.Post("/", h.ClientSummary)
			r.Post("/download", h.DownloadClientSummary)
		})
		r.Post("/client-comparison", h.ClientComparison)
		r.Get("/interval-summary", h.IntervalSummary)

		// Dashboard routes
		r.Route("/dashboard", func(r chi.Router) {
			r.Post("/top-clients", h.TopClients)
			r.Post("/horizontal-bar", h.HorizontalBar)
			r.Post("/pie-chart", h.PieChart)
			r.Post("/vertical-bar", h.VerticalBar)
			r.Get("/graph", h.ClientGraph)
			r.Get("/clients", h.ListClients)
			r.Get("/departments", h.ClientDepartments)
		})

		r.Post("/search", h.Search)

		// Write routes
		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", h.ListUploads)
			r.Post("/", h.Upload)
		})
		r.Put("/shifts/{emp}/{duration}/{payroll}", h.UpdateShifts)
		r.Route("/rates", func(r chi.Router) {
			r.Get("/", h.ListRates)
			r.Put("/", h.SetRate)
		})

		// Scenario routes
		if opts.EnableScenarios {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
				r.Post("/reset", h.ResetDatabase)
			})
		}
	})

	return r
}
