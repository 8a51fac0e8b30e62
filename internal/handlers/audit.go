package handlers

import (
	"net/http"
	"strconv"
	"time"

	"etender/db"
	"etender/internal/errs"
	"etender/internal/httpx"
	"etender/models"
)

func parseTime(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, errs.Validation(name, "must be an RFC 3339 timestamp")
	}
	return &t, nil
}

func parseEntity(v string) (models.EntityKind, error) {
	switch k := models.EntityKind(v); k {
	case "", models.EntityTender, models.EntityBid, models.EntityEvaluation:
		return k, nil
	default:
		return "", errs.Validation("entity", "must be tender, bid or evaluation")
	}
}

// GetAuditTrailHandler обрабатывает GET /audit?entity&entityId&user&from&to
func (h *Handler) GetAuditTrailHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := parseEntity(q.Get("entity"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	from, err := parseTime(r, "from")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	to, err := parseTime(r, "to")
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	if from != nil && to != nil && to.Before(*from) {
		httpx.WriteError(w, r, errs.Validation("to", "must not be before from"))
		return
	}

	entries, err := h.Audit.List(r.Context(), db.AuditFilter{
		EntityKind: kind,
		EntityID:   q.Get("entityId"),
		UserID:     q.Get("user"),
		From:       from,
		To:         to,
		Page:       parsePaginationParams(r),
	})
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, entries)
}

// VerifyChainHandler обрабатывает GET /audit/verify?fromSeq=N
func (h *Handler) VerifyChainHandler(w http.ResponseWriter, r *http.Request) {
	var from int64 = 1
	if v := r.URL.Query().Get("fromSeq"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			httpx.WriteError(w, r, errs.Validation("fromSeq", "must be a positive integer"))
			return
		}
		from = n
	}
	report, err := h.Audit.VerifyChain(r.Context(), from)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

// ResumeAuditHandler снимает остановку журнала, если цепочка снова сходится
func (h *Handler) ResumeAuditHandler(w http.ResponseWriter, r *http.Request) {
	report, err := h.Audit.Resume(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}
