package handlers

import (
	"net/http"

	"etender/internal/httpx"

	"github.com/go-chi/chi/v5"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler обрабатывает POST /auth/login и выдает JWT
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Decode(w, r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	session, err := h.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, session)
}

// VerifyHashHandler обрабатывает GET /verify/{hash}
func (h *Handler) VerifyHashHandler(w http.ResponseWriter, r *http.Request) {
	res, err := h.Verify.Lookup(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}
