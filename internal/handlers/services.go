package handlers

import (
	"context"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/auth"
	"etender/internal/bidding"
	"etender/internal/evaluation"
	"etender/internal/tender"
	"etender/internal/verify"
	"etender/models"
)

// Интерфейсы сервисов, которые использует HTTP-слой. В тестах подменяются моками

type TenderService interface {
	Create(ctx context.Context, actor models.Actor, in tender.Input) (*models.Tender, audit.Receipt, error)
	Update(ctx context.Context, actor models.Actor, id string, p tender.Patch) (*models.Tender, audit.Receipt, error)
	Publish(ctx context.Context, actor models.Actor, id string) (*models.Tender, audit.Receipt, error)
	AttachDocument(ctx context.Context, actor models.Actor, id string, in tender.DocumentInput) (*models.Tender, audit.Receipt, error)
	AssignEvaluator(ctx context.Context, actor models.Actor, id, evaluatorID string) (*models.Tender, audit.Receipt, error)
	CloseBidding(ctx context.Context, actor models.Actor, id string, force bool) (*models.Tender, audit.Receipt, error)
	Award(ctx context.Context, actor models.Actor, id string) (*models.Tender, audit.Receipt, error)
	Archive(ctx context.Context, actor models.Actor, id, reason string) (*models.Tender, audit.Receipt, error)
	Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.Tender, audit.Receipt, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Tender, error)
	List(ctx context.Context, actor models.Actor, f tender.ListFilter) ([]models.Tender, error)
}

type BidService interface {
	Commit(ctx context.Context, actor models.Actor, tenderID, commitHash string) (*models.Bid, audit.Receipt, error)
	Reveal(ctx context.Context, actor models.Actor, in bidding.RevealInput) (*models.Bid, audit.Receipt, error)
	Get(ctx context.Context, actor models.Actor, bidID string) (*models.Bid, error)
	ListForTender(ctx context.Context, actor models.Actor, tenderID string) ([]models.Bid, error)
	ListMine(ctx context.Context, actor models.Actor, page db.Page) ([]models.Bid, error)
}

type EvaluationService interface {
	Score(ctx context.Context, actor models.Actor, in evaluation.ScoreInput) (*models.Evaluation, audit.Receipt, error)
	Rank(ctx context.Context, tenderID string) ([]evaluation.Ranked, error)
}

type AuditService interface {
	List(ctx context.Context, f db.AuditFilter) ([]models.AuditEntry, error)
	VerifyChain(ctx context.Context, fromSeq int64) (audit.Report, error)
	Resume(ctx context.Context) (audit.Report, error)
}

type NotificationService interface {
	List(ctx context.Context, actor models.Actor, unreadOnly bool, page db.Page) ([]models.Notification, error)
	MarkRead(ctx context.Context, actor models.Actor, id string) (*models.Notification, error)
}

type VerifyService interface {
	Lookup(ctx context.Context, hash string) (verify.Result, error)
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.Session, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}
