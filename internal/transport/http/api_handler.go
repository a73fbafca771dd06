package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"mocktest-service/internal/app"
	"mocktest-service/internal/domain"
)

// APIHandler serves the read side: leaderboards, history and attempt review.
type APIHandler struct {
	service *app.AttemptService
	log     *zap.Logger
}

func NewAPIHandler(service *app.AttemptService, logger *zap.Logger) *APIHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &APIHandler{service: service, log: logger}
}

func (h *APIHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "testID"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *APIHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	records, err := h.service.History(r.Context(), chi.URLParam(r, "userID"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"attempts": records})
}

func (h *APIHandler) Review(w http.ResponseWriter, r *http.Request) {
	review, err := h.service.Review(r.Context(), chi.URLParam(r, "attemptID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrAttemptNotFound) || errors.Is(err, domain.ErrDefinitionNotFound) {
		status = http.StatusNotFound
	} else {
		h.log.Error("api request failed", zap.Error(err))
	}
	writeJSON(w, status, errorPayload{Code: errorCode(err), Message: err.Error()})
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, errorPayload{Code: "invalid_request", Message: "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
