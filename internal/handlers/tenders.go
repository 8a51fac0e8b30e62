package handlers

import (
	"context"
	"net/http"
	"time"

	"etender/internal/audit"
	"etender/internal/httpx"
	"etender/internal/tender"
	"etender/models"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type tenderRequest struct {
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Category           string          `json:"category"`
	EstimatedValue     decimal.Decimal `json:"estimatedValue"`
	Currency           string          `json:"currency"`
	BidDeadline        *time.Time      `json:"bidDeadline"`
	EvaluationDeadline *time.Time      `json:"evaluationDeadline"`
}

type tenderPatchRequest struct {
	Title              *string          `json:"title"`
	Description        *string          `json:"description"`
	Category           *string          `json:"category"`
	EstimatedValue     *decimal.Decimal `json:"estimatedValue"`
	Currency           *string          `json:"currency"`
	BidDeadline        *time.Time       `json:"bidDeadline"`
	EvaluationDeadline *time.Time       `json:"evaluationDeadline"`
}

type documentRequest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Size        int64  `json:"size"`
	ContentHash string `json:"contentHash"`
}

type evaluatorRequest struct {
	EvaluatorID string `json:"evaluatorId"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

// CreateTenderHandler обрабатывает POST /tenders
func (h *Handler) CreateTenderHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req tenderRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, receipt, err := h.Tenders.Create(r.Context(), a, tender.Input{
		Title:              req.Title,
		Description:        req.Description,
		Category:           req.Category,
		EstimatedValue:     req.EstimatedValue,
		Currency:           req.Currency,
		BidDeadline:        req.BidDeadline,
		EvaluationDeadline: req.EvaluationDeadline,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusCreated, t, receipt)
}

// EditTenderHandler обрабатывает PATCH /tenders/{id}, только для черновиков
func (h *Handler) EditTenderHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req tenderPatchRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, receipt, err := h.Tenders.Update(r.Context(), a, chi.URLParam(r, "id"), tender.Patch(req))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusOK, t, receipt)
}

// GetTendersHandler возвращает список тендеров с фильтрами status, category, search
func (h *Handler) GetTendersHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	mine, err := parseBool(r, "mine")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	q := r.URL.Query()
	tenders, err := h.Tenders.List(r.Context(), a, tender.ListFilter{
		Status:   models.TenderStatus(q.Get("status")),
		Category: q.Get("category"),
		Search:   q.Get("search"),
		Mine:     mine,
		Page:     parsePaginationParams(r),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, tenders)
}

func (h *Handler) GetTenderHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	t, err := h.Tenders.Get(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, t)
}

// transition - общий обработчик переходов без тела запроса
func (h *Handler) transition(
	do func(r *http.Request, a models.Actor, id string) (*models.Tender, audit.Receipt, error),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := actor(w, r)
		if !ok {
			return
		}
		t, receipt, err := do(r, a, chi.URLParam(r, "id"))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		httpx.WriteReceipt(w, http.StatusOK, t, receipt)
	}
}

// PublishTenderHandler обрабатывает POST /tenders/{id}/publish
func (h *Handler) PublishTenderHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, a models.Actor, id string) (*models.Tender, audit.Receipt, error) {
		return h.Tenders.Publish(r.Context(), a, id)
	})(w, r)
}

// CloseTenderHandler обрабатывает POST /tenders/{id}/close?force=true
func (h *Handler) CloseTenderHandler(w http.ResponseWriter, r *http.Request) {
	force, err := parseBool(r, "force")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	h.transition(func(r *http.Request, a models.Actor, id string) (*models.Tender, audit.Receipt, error) {
		return h.Tenders.CloseBidding(r.Context(), a, id, force)
	})(w, r)
}

// AwardTenderHandler обрабатывает POST /tenders/{id}/award
func (h *Handler) AwardTenderHandler(w http.ResponseWriter, r *http.Request) {
	h.transition(func(r *http.Request, a models.Actor, id string) (*models.Tender, audit.Receipt, error) {
		return h.Tenders.Award(r.Context(), a, id)
	})(w, r)
}

func (h *Handler) ArchiveTenderHandler(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.Tenders.Archive)
}

func (h *Handler) CancelTenderHandler(w http.ResponseWriter, r *http.Request) {
	h.withReason(w, r, h.Tenders.Cancel)
}

func (h *Handler) withReason(w http.ResponseWriter, r *http.Request,
	do func(ctx context.Context, a models.Actor, id, reason string) (*models.Tender, audit.Receipt, error),
) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req reasonRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, receipt, err := do(r.Context(), a, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusOK, t, receipt)
}

// AttachDocumentHandler обрабатывает POST /tenders/{id}/documents
func (h *Handler) AttachDocumentHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req documentRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, receipt, err := h.Tenders.AttachDocument(r.Context(), a, chi.URLParam(r, "id"), tender.DocumentInput{
		Name: req.Name, MimeType: req.Type, SizeBytes: req.Size, ContentHash: req.ContentHash,
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusCreated, t, receipt)
}

// AssignEvaluatorHandler обрабатывает POST /tenders/{id}/evaluators
func (h *Handler) AssignEvaluatorHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req evaluatorRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	t, receipt, err := h.Tenders.AssignEvaluator(r.Context(), a, chi.URLParam(r, "id"), req.EvaluatorID)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusOK, t, receipt)
}
