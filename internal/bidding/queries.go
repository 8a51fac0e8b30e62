package bidding

import (
	"context"
	"slices"
	"time"

	"etender/db"
	"etender/internal/errs"
	"etender/models"
)

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// canSeeAll: the owning admin and assigned evaluators see every bid of a tender.
func canSeeAll(actor models.Actor, t *models.Tender) bool {
	switch actor.Role {
	case models.RoleAdmin:
		return actor.ID == t.CreatedBy
	case models.RoleEvaluator:
		return slices.Contains(t.Evaluators, actor.ID)
	}
	return false
}

func (l *Ledger) Get(ctx context.Context, actor models.Actor, bidID string) (*models.Bid, error) {
	b, err := l.store.GetBid(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if b.BidderID == actor.ID {
		return b, nil
	}
	t, err := l.store.GetTender(ctx, b.TenderID)
	if err != nil {
		return nil, err
	}
	if !canSeeAll(actor, t) {
		return nil, errs.NotFound("bid", bidID)
	}
	return b, nil
}

// ListForTender returns all bids to the owner and evaluators, and only the
// caller's own bid to a bidder.
func (l *Ledger) ListForTender(ctx context.Context, actor models.Actor, tenderID string) ([]models.Bid, error) {
	t, err := l.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	if canSeeAll(actor, t) {
		return l.store.ListBidsForTender(ctx, tenderID)
	}
	if actor.Role != models.RoleBidder {
		return nil, errs.Forbidden(actor.ID, "not allowed to list bids of this tender")
	}
	own, err := l.store.GetBidByBidder(ctx, tenderID, actor.ID)
	if errs.Is(err, errs.KindNotFound) {
		return []models.Bid{}, nil
	}
	if err != nil {
		return nil, err
	}
	return []models.Bid{*own}, nil
}

func (l *Ledger) ListMine(ctx context.Context, actor models.Actor, page db.Page) ([]models.Bid, error) {
	return l.store.ListBidsByBidder(ctx, actor.ID, page)
}
