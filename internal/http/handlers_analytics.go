package http

import (
	"net/http"

	"scontrini/internal/core"
)

type budgetPayload struct {
	Category     string  `json:"category"`
	MonthlyLimit float64 `json:"monthly_limit"`
}

func (s *Server) handleSpendingSummary(w http.ResponseWriter, r *http.Request, userID string) {
	summary, err := s.reports.GetSummary(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCategoryBreakdown(w http.ResponseWriter, r *http.Request, userID string) {
	breakdown, err := s.reports.GetCategoryBreakdown(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, breakdown)
}

func (s *Server) handleBudgetStatus(w http.ResponseWriter, r *http.Request, userID string) {
	statuses, err := s.reports.GetBudgetStatus(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request, userID string) {
	var payload budgetPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	limitCents, err := core.CentsFromFloat(payload.MonthlyLimit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	status, err := s.reports.UpsertBudget(r.Context(), userID, payload.Category, core.Money{Cents: limitCents})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, userID string) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid budget id")
		return
	}

	if err := s.reports.DeleteBudget(r.Context(), userID, id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
