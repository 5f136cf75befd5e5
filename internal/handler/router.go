package handler

import (
	"net/http"
	"time"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/infra/observability"
	"github.com/boddenberg/court-assistant-go/internal/port"
	"github.com/boddenberg/court-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// Deps groups what the router serves. Agent may be nil in demo mode.
type Deps struct {
	Chat       *service.ChatService
	Smoketest  *service.Smoketest
	Agent      port.AgentCaller
	Metrics    *observability.Metrics
	DebugToken string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(deps.Chat, deps.Smoketest))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Cases & conversations
		// =============================================
		r.Get("/cases", listCasesHandler(deps.Chat))
		r.Put("/cases/active", setActiveCaseHandler(deps.Chat, logger))
		r.Route("/cases/{caseId}", func(r chi.Router) {
			r.Get("/", getCaseHandler(deps.Chat, logger))
			r.Get("/messages", listMessagesHandler(deps.Chat, logger))
			r.Post("/messages", sendMessageHandler(deps.Chat, logger))
			r.Delete("/messages", resetMessagesHandler(deps.Chat, logger))
			r.Post("/actions/{action}", quickActionHandler(deps.Chat, logger))
		})

		// =============================================
		// 2. API status & diagnostics
		// =============================================
		r.Get("/status", getStatusHandler(deps.Smoketest))
		r.Post("/status/smoketest", runSmoketestHandler(deps.Smoketest))
		r.Get("/diagnostics", diagnosticsHandler(deps.Smoketest))
		r.Post("/diagnostics/probe", probeAllHandler(deps.Smoketest))

		// =============================================
		// 3. Debug
		// =============================================
		r.With(DebugAuthMiddleware(deps.DebugToken, logger)).
			Post("/debug/call", debugCallHandler(deps.Agent, logger))

		// =============================================
		// 4. Metrics
		// =============================================
		r.Get("/metrics/agent", agentMetricsHandler(deps.Metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(chat *service.ChatService, smoke *service.Smoketest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)

		services := []domain.ServiceHealth{
			{Name: "court-assistant", Status: "healthy", LastChecked: now},
		}

		mode := service.ModeDemo
		if chat != nil {
			mode = chat.Mode()
		}

		if smoke != nil {
			agent := domain.ServiceHealth{Name: "orchestrate", Status: "unknown"}
			if st := smoke.Status(); st != nil {
				agent.Message = st.Message
				agent.LastChecked = st.When.Format(time.RFC3339)
				switch {
				case mode == service.ModeDemo:
					agent.Status = "skipped"
				case st.OK:
					agent.Status = "healthy"
				default:
					agent.Status = "degraded"
				}
			}
			services = append(services, agent)
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Mode:     mode,
			Services: services,
		})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func agentMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetAgentSnapshot())
	}
}
