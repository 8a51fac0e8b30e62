package auth

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"etender/internal/errs"
	"etender/internal/httpx"
	"etender/models"
)

type contextKey string

const actorKey contextKey = "actor"

// Middleware проверяет Bearer-токен и кладет участника в контекст
func (i *Issuer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			httpx.WriteError(w, r, &errs.UnauthorizedError{Reason: "missing bearer token"})
			return
		}
		actor, err := i.Parse(strings.TrimSpace(token))
		if err != nil {
			httpx.WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// RequireRole пропускает только перечисленные роли
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				httpx.WriteError(w, r, &errs.UnauthorizedError{Reason: "not authenticated"})
				return
			}
			if !slices.Contains(roles, actor.Role) {
				httpx.WriteError(w, r, errs.Forbidden(actor.ID, "role "+string(actor.Role)+" is not allowed here"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithActor(ctx context.Context, a models.Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

func ActorFrom(ctx context.Context) (models.Actor, bool) {
	a, ok := ctx.Value(actorKey).(models.Actor)
	return a, ok
}
