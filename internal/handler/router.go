package handler

import (
	"net/http"
	"time"

	"github.com/gestorpj/fiscal-engine-go/internal/infra/observability"
	"github.com/gestorpj/fiscal-engine-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// Every data route is JWT-scoped to the company in the token subject.
func NewRouter(
	obligationSvc *service.ObligationService,
	periodSvc *service.PeriodService,
	taxSvc *service.TaxService,
	authSvc *service.AuthService,
	metrics *observability.Metrics,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(periodSvc, logger))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JWTAuthMiddleware(authSvc, logger))

		// =============================================
		// Obligations (payables / receivables)
		// =============================================
		r.Route("/obligations", func(r chi.Router) {
			r.With(RequirePrivileged(logger)).Post("/recompute", recomputeStatesHandler(obligationSvc, logger))

			r.Route("/{kind}", func(r chi.Router) {
				r.Get("/", listObligationsHandler(obligationSvc, logger))
				r.Post("/", createObligationHandler(obligationSvc, logger))
				r.Get("/window", upcomingWindowHandler(obligationSvc, logger))
				r.Get("/periods/{month}", obligationPeriodViewHandler(obligationSvc, logger))
				r.Get("/{obligationId}", getObligationHandler(obligationSvc, logger))
				r.Delete("/{obligationId}", deleteObligationHandler(obligationSvc, logger))
				r.Post("/{obligationId}/settle", settleObligationHandler(obligationSvc, logger))
			})
		})

		// =============================================
		// Period aggregation
		// =============================================
		r.Route("/periods", func(r chi.Router) {
			r.Get("/revenue/rolling", rollingRevenueHandler(periodSvc, logger))
			r.Get("/totals", rangeTotalsHandler(periodSvc, logger))
			r.Get("/{month}", getPeriodHandler(periodSvc, logger))
		})

		// =============================================
		// Tax regime comparison
		// =============================================
		r.Route("/tax", func(r chi.Router) {
			r.Post("/compare", taxCompareHandler(taxSvc, logger))
			r.Get("/outlook", taxOutlookHandler(taxSvc, logger))
		})

		// =============================================
		// Engine metrics snapshot
		// =============================================
		r.Get("/metrics/engine", engineMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Health & metrics
// ============================================================

type serviceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latency_ms"`
	LastChecked string `json:"last_checked"`
}

func healthzHandler(periodSvc *service.PeriodService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now().Format(time.RFC3339)

		services := []serviceHealth{
			{Name: "fiscal-engine", Status: "healthy", LastChecked: now},
		}

		overall := "healthy"
		if periodSvc != nil {
			start := time.Now()
			err := periodSvc.Ping(ctx)
			latency := time.Since(start).Milliseconds()
			status := "healthy"
			if err != nil {
				status = "degraded"
				overall = "degraded"
				logger.Warn("healthz: store degraded", zap.Error(err))
			}
			services = append(services, serviceHealth{
				Name: "supabase", Status: status, LatencyMs: latency, LastChecked: now,
			})
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"status":   overall,
			"services": services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func engineMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetEngineSnapshot())
	}
}
