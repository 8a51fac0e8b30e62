package handlers

import (
	"net/http"
	"strconv"

	"etender/db"
	"etender/internal/auth"
	"etender/internal/errs"
	"etender/internal/httpx"
	"etender/models"
)

// Handler собирает сервисы, которые обслуживают HTTP-запросы
type Handler struct {
	Tenders       TenderService
	Bids          BidService
	Evaluations   EvaluationService
	Audit         AuditService
	Notifications NotificationService
	Verify        VerifyService
	Auth          AuthService
	Store         Pinger
}

// PingHandler отвечает "ok", если база доступна
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) db.Page {
	page := db.Page{Limit: 5}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 50 {
		page.Limit = l
	}
	if o, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && o >= 0 {
		page.Offset = o
	}
	return page
}

// actor достает участника, положенного auth.Middleware
func actor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	a, ok := auth.ActorFrom(r.Context())
	if !ok {
		httpx.WriteError(w, r, &errs.UnauthorizedError{Reason: "not authenticated"})
	}
	return a, ok
}

func parseBool(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errs.Validation(name, "must be true or false")
	}
	return b, nil
}
