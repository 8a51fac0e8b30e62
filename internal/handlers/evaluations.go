package handlers

import (
	"net/http"
	"slices"

	"etender/internal/errs"
	"etender/internal/evaluation"
	"etender/internal/httpx"
	"etender/models"

	"github.com/go-chi/chi/v5"
)

type scoreRequest struct {
	TechnicalScore *float64 `json:"technicalScore"`
	FinancialScore *float64 `json:"financialScore"`
	Comments       string   `json:"comments"`
}

// ScoreBidHandler обрабатывает POST /bids/{id}/evaluations
func (h *Handler) ScoreBidHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req scoreRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if req.TechnicalScore == nil {
		httpx.WriteError(w, r, errs.Validation("technicalScore", "is required"))
		return
	}
	if req.FinancialScore == nil {
		httpx.WriteError(w, r, errs.Validation("financialScore", "is required"))
		return
	}
	ev, receipt, err := h.Evaluations.Score(r.Context(), a, evaluation.ScoreInput{
		BidID:          chi.URLParam(r, "id"),
		TechnicalScore: *req.TechnicalScore,
		FinancialScore: *req.FinancialScore,
		Comments:       req.Comments,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusCreated, ev, receipt)
}

// RankingHandler обрабатывает GET /tenders/{id}/ranking. Оценщик видит рейтинг
// только назначенных ему тендеров
func (h *Handler) RankingHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	t, err := h.Tenders.Get(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if a.Role == models.RoleEvaluator && !slices.Contains(t.Evaluators, a.ID) {
		httpx.WriteError(w, r, errs.Forbidden(a.ID, "evaluator is not assigned to this tender"))
		return
	}
	ranking, err := h.Evaluations.Rank(r.Context(), t.ID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ranking)
}
