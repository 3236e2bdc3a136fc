package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/finledger-go/internal/domain"
	"github.com/boddenberg/finledger-go/internal/infra/observability"
	"github.com/boddenberg/finledger-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the router dispatches to.
type Deps struct {
	Ledger      *service.LedgerService
	Profile     *service.ProfileService
	Auth        *service.AuthService
	Suggestions *service.SuggestionService
	Store       Pinger

	// CookieSecure marks the token cookie Secure (HTTPS only).
	CookieSecure bool
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Store))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Get("/metrics/summary", metricsSummaryHandler(metrics))

		// =============================================
		// Auth (public)
		// =============================================
		r.Route("/auth", func(r chi.Router) {
			if deps.Auth == nil {
				r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					writeError(w, http.StatusServiceUnavailable, "auth service unavailable")
				}))
				return
			}
			r.Post("/signup", signupHandler(deps.Auth, deps.CookieSecure, logger))
			r.Post("/login", loginHandler(deps.Auth, deps.CookieSecure, logger))
			r.Post("/logout", logoutHandler(deps.CookieSecure))
		})

		if deps.Auth == nil {
			return
		}

		// =============================================
		// Ledger (protected)
		// =============================================
		r.Group(func(r chi.Router) {
			r.Use(JWTAuthMiddleware(deps.Auth, logger))

			r.Get("/expenses", listExpensesHandler(deps.Ledger, logger))
			r.Post("/expenses", addExpenseHandler(deps.Ledger, logger))
			r.Get("/expenses/export", exportExpensesHandler(deps.Ledger, logger))
			r.Put("/expenses/{id}", updateExpenseHandler(deps.Ledger, logger))
			r.Delete("/expenses/{id}", deleteExpenseHandler(deps.Ledger, logger))

			r.Get("/credits", listCreditsHandler(deps.Ledger, logger))
			r.Post("/credits", addCreditHandler(deps.Ledger, logger))

			r.Get("/profile", getProfileHandler(deps.Profile, logger))
			r.Put("/profile", saveProfileHandler(deps.Profile, logger))
			r.Get("/profile/salary", getSalaryHandler(deps.Profile, logger))

			r.Get("/analytics/categories", categoriesHandler(deps.Ledger, logger))
			r.Get("/analytics/calendar", calendarHandler(deps.Ledger, logger))
			r.Get("/analytics/monthly", monthlyHandler(deps.Ledger, logger))
			r.Get("/analytics/savings", savingsHandler(deps.Ledger, logger))
			r.Get("/analytics/summary", summaryHandler(deps.Ledger, logger))

			if deps.Suggestions != nil {
				r.Post("/suggestions", suggestionsHandler(deps.Suggestions, logger))
			}
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(store Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: observability.ServiceName, Status: "healthy", LastChecked: now},
		}

		if store != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			start := time.Now()
			err := store.Ping(ctx)
			s := domain.ServiceHealth{
				Name:        "record-store",
				Status:      "healthy",
				LatencyMs:   time.Since(start).Milliseconds(),
				LastChecked: now,
			}
			if err != nil {
				s.Status = "unhealthy"
				s.Error = err.Error()
			}
			services = append(services, s)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		status := http.StatusOK
		if overallStatus == "unhealthy" {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func metricsSummaryHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
