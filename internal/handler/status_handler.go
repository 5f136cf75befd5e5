package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/port"
	"github.com/boddenberg/court-assistant-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Status: GET /v1/status, POST /v1/status/smoketest
// ============================================================

func getStatusHandler(smoke *service.Smoketest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st := smoke.Status()
		if st == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": nil})
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func runSmoketestHandler(smoke *service.Smoketest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, smoke.Run(r.Context()))
	}
}

// ============================================================
// Diagnostics: GET /v1/diagnostics, POST /v1/diagnostics/probe
// ============================================================

func diagnosticsHandler(smoke *service.Smoketest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, smoke.Diagnostics())
	}
}

func probeAllHandler(smoke *service.Smoketest) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, smoke.ProbeAll(r.Context()))
	}
}

// ============================================================
// Debug: POST /v1/debug/call
// ============================================================

func debugCallHandler(agent port.AgentCaller, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/debug/call")
		defer span.End()

		var req domain.DebugCallRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Agent) == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "agent", Message: "is required"}, logger)
			return
		}
		if len(req.Messages) == 0 {
			req.Messages = []string{"ping"}
		}
		span.SetAttributes(attribute.String("agent.id", req.Agent))

		if agent == nil {
			handleServiceError(w, &domain.ErrConfig{Missing: []string{"SERVICE_INSTANCE_URL", "API_KEY"}}, logger)
			return
		}

		res, err := agent.CallDetailed(ctx, req.Agent, req.Messages)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
