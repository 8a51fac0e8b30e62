package handlers

import (
	"net/http"
	"time"

	"etender/internal/auth"
	"etender/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты /api. authn проверяет токен и кладет участника
// в контекст запроса
func NewRouter(h *Handler, authn func(http.Handler) http.Handler, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if timeout > 0 {
		r.Use(middleware.Timeout(timeout))
	}

	admin := auth.RequireRole(models.RoleAdmin)
	bidder := auth.RequireRole(models.RoleBidder)
	evaluator := auth.RequireRole(models.RoleEvaluator)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Post("/auth/login", h.LoginHandler)

		r.Group(func(r chi.Router) {
			r.Use(authn)

			// тендеры
			r.Get("/tenders", h.GetTendersHandler)
			r.Get("/tenders/{id}", h.GetTenderHandler)
			r.With(admin).Post("/tenders", h.CreateTenderHandler)
			r.With(admin).Patch("/tenders/{id}", h.EditTenderHandler)
			r.With(admin).Post("/tenders/{id}/publish", h.PublishTenderHandler)
			r.With(admin).Post("/tenders/{id}/documents", h.AttachDocumentHandler)
			r.With(admin).Post("/tenders/{id}/evaluators", h.AssignEvaluatorHandler)
			r.With(admin).Post("/tenders/{id}/close", h.CloseTenderHandler)
			r.With(admin).Post("/tenders/{id}/award", h.AwardTenderHandler)
			r.With(admin).Post("/tenders/{id}/archive", h.ArchiveTenderHandler)
			r.With(admin).Post("/tenders/{id}/cancel", h.CancelTenderHandler)
			r.With(auth.RequireRole(models.RoleAdmin, models.RoleEvaluator)).
				Get("/tenders/{id}/ranking", h.RankingHandler)

			// заявки (bids)
			r.With(bidder).Post("/tenders/{id}/bids", h.CommitBidHandler)
			r.Get("/tenders/{id}/bids", h.GetBidsForTenderHandler)
			r.With(bidder).Get("/bids/my", h.GetUserBidsHandler)
			r.Get("/bids/{id}", h.GetBidHandler)
			r.With(bidder).Post("/bids/{id}/reveal", h.RevealBidHandler)
			r.With(evaluator).Post("/bids/{id}/evaluations", h.ScoreBidHandler)

			// журнал аудита
			r.With(admin).Get("/audit", h.GetAuditTrailHandler)
			r.With(admin).Get("/audit/verify", h.VerifyChainHandler)
			r.With(admin).Post("/audit/resume", h.ResumeAuditHandler)

			r.Get("/notifications", h.GetNotificationsHandler)
			r.Post("/notifications/{id}/read", h.MarkNotificationReadHandler)
			r.Get("/verify/{hash}", h.VerifyHashHandler)
		})
	})
	return r
}
