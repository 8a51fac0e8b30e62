// Package testutils собирает запросы для юнит-тестов обработчиков без роутера.
package testutils

import (
	"context"
	"net/http"

	"etender/internal/auth"
	"etender/models"

	"github.com/go-chi/chi/v5"
)

// WithChiURLParams подставляет параметры пути в контекст chi запроса для тестов.
func WithChiURLParams(req *http.Request, params map[string]string) *http.Request {
	chiCtx := chi.NewRouteContext()
	for k, v := range params {
		chiCtx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, chiCtx))
}

// AsActor кладет участника в контекст, как это делает auth.Middleware
func AsActor(req *http.Request, a models.Actor) *http.Request {
	return req.WithContext(auth.WithActor(req.Context(), a))
}
