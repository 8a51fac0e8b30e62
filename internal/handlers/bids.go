package handlers

import (
	"net/http"

	"etender/internal/bidding"
	"etender/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type commitRequest struct {
	CommitHash string `json:"commitHash"`
}

type revealRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Nonce  string          `json:"nonce"`
}

// CommitBidHandler обрабатывает POST /tenders/{id}/bids. В теле только хеш
// обязательства, сумма до вскрытия на сервер не передается
func (h *Handler) CommitBidHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req commitRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	bid, receipt, err := h.Bids.Commit(r.Context(), a, chi.URLParam(r, "id"), req.CommitHash)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusCreated, bid, receipt)
}

// RevealBidHandler обрабатывает POST /bids/{id}/reveal
func (h *Handler) RevealBidHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req revealRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	bid, receipt, err := h.Bids.Reveal(r.Context(), a, bidding.RevealInput{
		BidID:  chi.URLParam(r, "id"),
		Amount: req.Amount,
		Nonce:  req.Nonce,
	})
	if err != nil {
		// при несовпадении отказ уже записан в журнал, клиент получает 422
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteReceipt(w, http.StatusOK, bid, receipt)
}

// GetBidsForTenderHandler: участник видит только свою заявку
func (h *Handler) GetBidsForTenderHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	bids, err := h.Bids.ListForTender(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bids)
}

func (h *Handler) GetBidHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	bid, err := h.Bids.Get(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bid)
}

// GetUserBidsHandler обрабатывает GET /bids/my
func (h *Handler) GetUserBidsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	bids, err := h.Bids.ListMine(r.Context(), a, parsePaginationParams(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, bids)
}
