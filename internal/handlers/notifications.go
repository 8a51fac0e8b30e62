package handlers

import (
	"net/http"

	"etender/internal/errs"
	"etender/internal/httpx"

	"github.com/go-chi/chi/v5"
)

// GetNotificationsHandler обрабатывает GET /notifications?userId&unreadOnly.
// Чужие уведомления не отдаются никому, в том числе администратору
func (h *Handler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	if id := r.URL.Query().Get("userId"); id != "" && id != a.ID {
		httpx.WriteError(w, r, errs.Forbidden(a.ID, "notifications belong to their recipient"))
		return
	}
	unread, err := parseBool(r, "unreadOnly")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	list, err := h.Notifications.List(r.Context(), a, unread, parsePaginationParams(r))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, list)
}

func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	n, err := h.Notifications.MarkRead(r.Context(), a, chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, n)
}
