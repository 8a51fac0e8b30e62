// Package httpx holds the JSON envelope shared by every endpoint.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"etender/internal/audit"
	"etender/internal/errs"

	"github.com/go-chi/chi/v5/middleware"
)

// ограничение размера тела запроса
const maxBody = 1 << 20

type ErrorBody struct {
	Kind    errs.Kind      `json:"kind"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// Data is the envelope of a successful write. AuditEntryID is the seq of the
// last entry the write appended, omitted when it appended none.
type Data struct {
	Data         any   `json:"data"`
	AuditEntryID int64 `json:"auditEntryId,omitempty"`
}

func Status(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindStateTransition, errs.KindDuplicateBid, errs.KindDuplicateEvaluation,
		errs.KindNoEligibleBids, errs.KindDeadlineExpired:
		return http.StatusConflict
	case errs.KindRevealMismatch:
		return http.StatusUnprocessableEntity
	case errs.KindAuditCorruption:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteReceipt answers a successful write with its audit receipt.
func WriteReceipt(w http.ResponseWriter, status int, data any, receipt audit.Receipt) {
	WriteJSON(w, status, Data{Data: data, AuditEntryID: receipt.Seq()})
}

// WriteError maps err to its status. Internal errors are logged and their
// text is not sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	body := ErrorBody{Kind: kind, Message: err.Error(), Detail: errs.DetailOf(err)}
	if kind == errs.KindInternal {
		slog.Default().Error("request failed",
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		body.Message = "internal error"
		body.Detail = nil
	}
	WriteJSON(w, Status(kind), body)
}

// Decode reads a JSON body of at most 1 MiB into dst.
func Decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errs.Validation("body", "request body too large")
		case errors.Is(err, io.EOF):
			return errs.Validation("body", "request body is empty")
		default:
			return errs.Validation("body", fmt.Sprintf("invalid JSON: %v", err))
		}
	}
	return nil
}
