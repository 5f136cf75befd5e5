package handler

import (
	"net/http"

	"github.com/boddenberg/court-assistant-go/internal/domain"
	"github.com/boddenberg/court-assistant-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// 1. Cases: GET /v1/cases, PUT /v1/cases/active
// ============================================================

func listCasesHandler(chat *service.ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, chat.Cases())
	}
}

type setActiveCaseRequest struct {
	CaseID string `json:"caseId"`
}

func setActiveCaseHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setActiveCaseRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if err := chat.SetActive(req.CaseID); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, chat.Cases())
	}
}

func getCaseHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := chat.View(chi.URLParam(r, "caseId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// ============================================================
// 2. Messages: /v1/cases/{caseId}/messages
// ============================================================

func listMessagesHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := chat.History(chi.URLParam(r, "caseId"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func sendMessageHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/cases/{caseId}/messages")
		defer span.End()

		caseID := chi.URLParam(r, "caseId")
		span.SetAttributes(attribute.String("case.id", caseID))

		var req domain.SendMessageRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		msg, err := chat.Send(ctx, caseID, req.Text)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, msg)
	}
}

func resetMessagesHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := chat.Reset(chi.URLParam(r, "caseId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// 3. Quick actions: POST /v1/cases/{caseId}/actions/{action}
// ============================================================

func quickActionHandler(chat *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		action := service.QuickAction(chi.URLParam(r, "action"))
		msg, err := chat.QuickAction(chi.URLParam(r, "caseId"), action)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}
