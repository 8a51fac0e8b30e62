// Package bidding is the per-tender ledger of sealed bids.
//
// A bid is committed as a hash before the bid deadline and revealed with its
// amount and nonce in [bidDeadline, evaluationDeadline). Reveal opens at the
// bid deadline even if the sweep has not closed the tender yet: the first
// reveal applies the close itself in the same write. Commitments still
// unrevealed at the evaluation deadline are forfeited and never ranked.
package bidding

import (
	"context"
	"strings"
	"time"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/clock"
	"etender/internal/commitment"
	"etender/internal/errs"
	"etender/internal/lock"
	"etender/internal/tender"
	"etender/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Ledger struct {
	store *db.Storage
	log   *audit.Log
	clock clock.Clock
	locks *lock.Keyed
}

func NewLedger(store *db.Storage, log *audit.Log, clk clock.Clock, locks *lock.Keyed) *Ledger {
	return &Ledger{store: store, log: log, clock: clk, locks: locks}
}

func requireBidder(actor models.Actor) error {
	if actor.Role != models.RoleBidder {
		return errs.Forbidden(actor.ID, "bidder role required")
	}
	return nil
}

// Commit stores a sealed bid. The first commitment on an open tender also
// moves it to bidding.
func (l *Ledger) Commit(ctx context.Context, actor models.Actor, tenderID, commitHash string) (*models.Bid, audit.Receipt, error) {
	if err := requireBidder(actor); err != nil {
		return nil, nil, err
	}
	hash, err := commitment.Normalize("commitHash", commitHash)
	if err != nil {
		return nil, nil, err
	}

	// разные участники одного тендера не ждут друг друга
	unlock, err := l.locks.Lock(ctx, "commit:"+tenderID+"/"+actor.ID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var bid *models.Bid
	receipt, err := l.log.Write(ctx, func(tx *db.Storage) ([]audit.Record, error) {
		t, err := tx.GetTender(ctx, tenderID)
		if err != nil {
			return nil, err
		}
		now := l.clock.Now()
		if err := commitWindow(t, now); err != nil {
			return nil, err
		}

		existing, err := tx.GetBidByBidder(ctx, t.ID, actor.ID)
		if err == nil {
			return nil, &errs.DuplicateBidError{TenderID: t.ID, BidderID: actor.ID, ExistingBidID: existing.ID}
		}
		if !errs.Is(err, errs.KindNotFound) {
			return nil, err
		}

		bid = &models.Bid{
			ID:          uuid.NewString(),
			TenderID:    t.ID,
			BidderID:    actor.ID,
			CommitHash:  hash,
			Phase:       models.BidCommitted,
			SubmittedAt: now,
			UpdatedAt:   now,
		}
		if err := tx.CreateBid(ctx, bid); err != nil {
			return nil, err
		}

		records := []audit.Record{{
			EntityKind: models.EntityBid, EntityID: bid.ID, UserID: actor.ID,
			Payload: models.BidSubmitted{TenderID: t.ID, BidID: bid.ID, BidderID: actor.ID, CommitHash: hash},
		}}
		if t.Status == models.TenderOpen {
			started, err := tender.StartBidding(ctx, tx, t, actor, now, bid.ID)
			if err != nil {
				return nil, err
			}
			records = append(records, started...)
		}
		return records, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return bid, receipt, nil
}

func commitWindow(t *models.Tender, now time.Time) error {
	switch t.Status {
	case models.TenderOpen, models.TenderBidding:
		if !now.Before(*t.BidDeadline) {
			return &errs.DeadlineExpiredError{Action: "commit", Now: now, ClosesAt: *t.BidDeadline}
		}
		return nil
	case models.TenderEvaluation:
		if !now.Before(*t.BidDeadline) {
			return &errs.DeadlineExpiredError{Action: "commit", Now: now, ClosesAt: *t.BidDeadline}
		}
	}
	return &errs.StateTransitionError{
		Entity: "tender", EntityID: t.ID, From: string(t.Status), To: string(models.TenderBidding),
		Reason: "tender does not accept commitments",
	}
}

type RevealInput struct {
	BidID  string
	Amount decimal.Decimal
	Nonce  string
}

// Reveal discloses amount and nonce for a committed bid. A mismatch is
// recorded (failure counter and a Reveal Rejected entry) and then returned as
// RevealMismatchError; the bid stays committed.
func (l *Ledger) Reveal(ctx context.Context, actor models.Actor, in RevealInput) (*models.Bid, audit.Receipt, error) {
	if err := requireBidder(actor); err != nil {
		return nil, nil, err
	}
	if err := commitment.ValidateAmount(in.Amount); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(in.Nonce) == "" {
		return nil, nil, errs.Validation("nonce", "must not be empty")
	}

	unlock, err := l.locks.Lock(ctx, "bid:"+in.BidID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var (
		bid      *models.Bid
		mismatch *errs.RevealMismatchError
	)
	receipt, err := l.log.Write(ctx, func(tx *db.Storage) ([]audit.Record, error) {
		var err error
		bid, err = tx.GetBid(ctx, in.BidID)
		if err != nil {
			return nil, err
		}
		if bid.BidderID != actor.ID {
			return nil, errs.Forbidden(actor.ID, "only the bidder may reveal a bid")
		}
		t, err := tx.GetTender(ctx, bid.TenderID)
		if err != nil {
			return nil, err
		}
		now := l.clock.Now()
		if err := revealWindow(t, bid, now); err != nil {
			return nil, err
		}

		var records []audit.Record
		if t.Status == models.TenderOpen || t.Status == models.TenderBidding {
			closed, err := tender.Close(ctx, tx, t, models.SystemActor, now, false)
			if err != nil {
				return nil, err
			}
			records = append(records, closed...)
		}

		if !commitment.Verify(in.Amount, in.Nonce, bid.BidderID, bid.TenderID, bid.CommitHash) {
			bid.RevealFailures++
			bid.UpdatedAt = now
			if err := tx.UpdateBid(ctx, bid); err != nil {
				return nil, err
			}
			mismatch = &errs.RevealMismatchError{BidID: bid.ID, Failures: bid.RevealFailures}
			return append(records, audit.Record{
				EntityKind: models.EntityBid, EntityID: bid.ID, UserID: actor.ID,
				Payload: models.RevealRejected{TenderID: t.ID, BidID: bid.ID, BidderID: bid.BidderID, Failures: bid.RevealFailures},
			}), nil
		}

		revealHash, err := commitment.Commit(in.Amount, in.Nonce, bid.BidderID, bid.TenderID)
		if err != nil {
			return nil, err
		}
		nonce := in.Nonce
		bid.RevealHash = &revealHash
		bid.RevealNonce = &nonce
		bid.BidAmount = decimal.NewNullDecimal(in.Amount)
		bid.Phase = models.BidRevealed
		bid.RevealedAt = &now
		bid.UpdatedAt = now
		if err := tx.UpdateBid(ctx, bid); err != nil {
			return nil, err
		}
		return append(records, audit.Record{
			EntityKind: models.EntityBid, EntityID: bid.ID, UserID: actor.ID,
			Payload: models.BidRevealedEntry{TenderID: t.ID, BidID: bid.ID, BidderID: bid.BidderID, Amount: in.Amount, RevealHash: revealHash},
		}), nil
	})
	if err != nil {
		return nil, nil, err
	}
	if mismatch != nil {
		return bid, receipt, mismatch
	}
	return bid, receipt, nil
}

func revealWindow(t *models.Tender, b *models.Bid, now time.Time) error {
	switch t.Status {
	case models.TenderOpen, models.TenderBidding, models.TenderEvaluation:
	default:
		return &errs.StateTransitionError{
			Entity: "tender", EntityID: t.ID, From: string(t.Status), To: string(models.TenderEvaluation),
			Reason: "tender does not accept reveals",
		}
	}
	if now.Before(*t.BidDeadline) || !now.Before(*t.EvaluationDeadline) {
		return &errs.DeadlineExpiredError{Action: "reveal", Now: now, OpensAt: *t.BidDeadline, ClosesAt: *t.EvaluationDeadline}
	}
	if b.Phase != models.BidCommitted {
		return &errs.StateTransitionError{
			Entity: "bid", EntityID: b.ID, From: string(b.Phase), To: string(models.BidRevealed),
			Reason: "bid is not committed",
		}
	}
	return nil
}

// Forfeit marks every still-committed bid of a tender as forfeited once the
// evaluation deadline has passed. Re-running it is a no-op.
func (l *Ledger) Forfeit(ctx context.Context, tenderID string) (audit.Receipt, error) {
	unlock, err := l.locks.Lock(ctx, "tender:"+tenderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return l.log.Write(ctx, func(tx *db.Storage) ([]audit.Record, error) {
		t, err := tx.GetTender(ctx, tenderID)
		if err != nil {
			return nil, err
		}
		now := l.clock.Now()
		if t.EvaluationDeadline == nil || now.Before(*t.EvaluationDeadline) {
			return nil, &errs.DeadlineExpiredError{Action: "forfeit", Now: now, OpensAt: deref(t.EvaluationDeadline)}
		}
		pending, err := tx.ListBidsForTender(ctx, t.ID, models.BidCommitted)
		if err != nil {
			return nil, err
		}

		records := make([]audit.Record, 0, len(pending))
		for i := range pending {
			b := &pending[i]
			b.Phase = models.BidForfeited
			b.UpdatedAt = now
			if err := tx.UpdateBid(ctx, b); err != nil {
				return nil, err
			}
			records = append(records, audit.Record{
				EntityKind: models.EntityBid, EntityID: b.ID, UserID: models.SystemActor.ID,
				Payload: models.BidForfeitedEntry{TenderID: t.ID, BidID: b.ID, BidderID: b.BidderID},
			})
		}
		return records, nil
	})
}
