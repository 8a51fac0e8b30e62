package bidding_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"etender/db"
	"etender/db/dbtest"
	"etender/internal/audit"
	"etender/internal/bidding"
	"etender/internal/clock"
	"etender/internal/commitment"
	"etender/internal/errs"
	"etender/internal/evaluation"
	"etender/internal/lock"
	"etender/internal/tender"
	"etender/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 4, 6, 8, 0, 0, 0, time.UTC)

const (
	bidWindow  = 48 * time.Hour
	evalWindow = 96 * time.Hour
)

type world struct {
	store   *db.Storage
	clock   *clock.Manual
	log     *audit.Log
	tenders *tender.Service
	ledger  *bidding.Ledger
	engine  *evaluation.Engine

	admin     models.Actor
	evaluator models.Actor
}

func newWorld(t *testing.T) *world {
	t.Helper()
	store := dbtest.New(t)
	clk := clock.NewManual(start)
	log := audit.New(store, clk, nil, 5*time.Second)
	locks := lock.NewKeyed()

	admin := dbtest.User(t, store, models.RoleAdmin, "admin")
	eva := dbtest.User(t, store, models.RoleEvaluator, "eva")
	return &world{
		store:     store,
		clock:     clk,
		log:       log,
		tenders:   tender.NewService(store, log, clk, locks),
		ledger:    bidding.NewLedger(store, log, clk, locks),
		engine:    evaluation.NewEngine(store, log, clk, locks),
		admin:     models.Actor{ID: admin.ID, Role: models.RoleAdmin},
		evaluator: models.Actor{ID: eva.ID, Role: models.RoleEvaluator},
	}
}

func (w *world) bidder(t *testing.T, name string) models.Actor {
	t.Helper()
	u := dbtest.User(t, w.store, models.RoleBidder, name)
	return models.Actor{ID: u.ID, Role: models.RoleBidder}
}

// openTender публикует тендер и назначает оценщика
func (w *world) openTender(t *testing.T) *models.Tender {
	t.Helper()
	ctx := context.Background()
	bid := start.Add(bidWindow)
	eval := start.Add(evalWindow)
	created, _, err := w.tenders.Create(ctx, w.admin, tender.Input{
		Title:              "Hospital wing",
		Description:        "Construction of a 40-bed wing",
		Category:           "Healthcare",
		EstimatedValue:     decimal.NewFromInt(150),
		Currency:           "GBP",
		BidDeadline:        &bid,
		EvaluationDeadline: &eval,
	})
	require.NoError(t, err)
	_, _, err = w.tenders.Publish(ctx, w.admin, created.ID)
	require.NoError(t, err)
	tn, _, err := w.tenders.AssignEvaluator(ctx, w.admin, created.ID, w.evaluator.ID)
	require.NoError(t, err)
	return tn
}

func seal(t *testing.T, amount, nonce string, bidder models.Actor, tenderID string) string {
	t.Helper()
	hash, err := commitment.Commit(decimal.RequireFromString(amount), nonce, bidder.ID, tenderID)
	require.NoError(t, err)
	return hash
}

func (w *world) commit(t *testing.T, bidder models.Actor, tenderID, amount, nonce string) *models.Bid {
	t.Helper()
	bid, _, err := w.ledger.Commit(context.Background(), bidder, tenderID, seal(t, amount, nonce, bidder, tenderID))
	require.NoError(t, err)
	return bid
}

func (w *world) reveal(bidder models.Actor, bidID, amount, nonce string) (*models.Bid, audit.Receipt, error) {
	return w.ledger.Reveal(context.Background(), bidder, bidding.RevealInput{
		BidID: bidID, Amount: decimal.RequireFromString(amount), Nonce: nonce,
	})
}

func TestLedger_FullTenderLifecycle(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a, b, c := w.bidder(t, "alpha"), w.bidder(t, "beta"), w.bidder(t, "gamma")
	tn := w.openTender(t)

	// первое предложение переводит тендер в bidding
	bidA, receipt, err := w.ledger.Commit(ctx, a, tn.ID, seal(t, "100", "n-a", a, tn.ID))
	require.NoError(t, err)
	require.Len(t, receipt, 2)
	require.Equal(t, models.ActionBidSubmitted, receipt[0].Action)
	require.Equal(t, models.ActionBiddingStarted, receipt[1].Action)

	bidB := w.commit(t, b, tn.ID, "90", "n-b")
	bidC := w.commit(t, c, tn.ID, "80", "n-c")

	got, err := w.store.GetTender(ctx, tn.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderBidding, got.Status)

	_, _, err = w.ledger.Commit(ctx, a, tn.ID, seal(t, "95", "again", a, tn.ID))
	var dup *errs.DuplicateBidError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, bidA.ID, dup.ExistingBidID)

	// раскрытие до дедлайна запрещено
	_, _, err = w.reveal(a, bidA.ID, "100", "n-a")
	require.Equal(t, errs.KindDeadlineExpired, errs.KindOf(err))

	w.clock.Set(start.Add(bidWindow + time.Hour))

	late := w.bidder(t, "late")
	_, _, err = w.ledger.Commit(ctx, late, tn.ID, seal(t, "1", "x", late, tn.ID))
	require.Equal(t, errs.KindDeadlineExpired, errs.KindOf(err))

	// неверный nonce: счетчик растет, тендер закрывается тем же действием
	flagged, receipt, err := w.reveal(a, bidA.ID, "100", "wrong")
	var mismatch *errs.RevealMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 1, mismatch.Failures)
	require.Equal(t, models.BidCommitted, flagged.Phase)
	require.Len(t, receipt, 2)
	require.Equal(t, models.ActionBiddingClosed, receipt[0].Action)
	require.Equal(t, models.SystemActor.ID, receipt[0].UserID)
	require.Equal(t, models.ActionRevealRejected, receipt[1].Action)

	got, err = w.store.GetTender(ctx, tn.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderEvaluation, got.Status)

	revealedA, receipt, err := w.reveal(a, bidA.ID, "100", "n-a")
	require.NoError(t, err)
	require.Equal(t, models.BidRevealed, revealedA.Phase)
	require.Equal(t, 1, revealedA.RevealFailures)
	require.True(t, revealedA.BidAmount.Decimal.Equal(decimal.NewFromInt(100)))
	require.Equal(t, bidA.CommitHash, *revealedA.RevealHash)
	require.Len(t, receipt, 1)

	_, _, err = w.reveal(b, bidB.ID, "90", "n-b")
	require.NoError(t, err)

	_, _, err = w.reveal(b, bidB.ID, "90", "n-b")
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))
	_, _, err = w.reveal(a, bidB.ID, "90", "n-b")
	require.Equal(t, errs.KindForbidden, errs.KindOf(err))

	evalA, _, err := w.engine.Score(ctx, w.evaluator, evaluation.ScoreInput{BidID: bidA.ID, TechnicalScore: 70, FinancialScore: 80})
	require.NoError(t, err)
	require.Equal(t, 74.0, evalA.OverallScore)
	evalB, _, err := w.engine.Score(ctx, w.evaluator, evaluation.ScoreInput{BidID: bidB.ID, TechnicalScore: 90, FinancialScore: 60})
	require.NoError(t, err)
	require.Equal(t, 78.0, evalB.OverallScore)

	_, _, err = w.engine.Score(ctx, w.evaluator, evaluation.ScoreInput{BidID: bidC.ID, TechnicalScore: 50, FinancialScore: 50})
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))

	ranked, err := w.engine.Rank(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	require.Equal(t, bidB.ID, ranked[0].BidID)
	require.Equal(t, bidA.ID, ranked[1].BidID)

	// у C еще есть окно раскрытия
	_, _, err = w.tenders.Award(ctx, w.admin, tn.ID)
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))

	_, err = w.ledger.Forfeit(ctx, tn.ID)
	require.Equal(t, errs.KindDeadlineExpired, errs.KindOf(err))

	w.clock.Set(start.Add(evalWindow))

	_, _, err = w.reveal(c, bidC.ID, "80", "n-c")
	require.Equal(t, errs.KindDeadlineExpired, errs.KindOf(err))

	receipt, err = w.ledger.Forfeit(ctx, tn.ID)
	require.NoError(t, err)
	require.Len(t, receipt, 1)
	require.Equal(t, bidC.ID, receipt[0].EntityID)
	require.Equal(t, models.ActionBidForfeited, receipt[0].Action)

	receipt, err = w.ledger.Forfeit(ctx, tn.ID)
	require.NoError(t, err)
	require.Empty(t, receipt)

	awarded, receipt, err := w.tenders.Award(ctx, w.admin, tn.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderAwarded, awarded.Status)
	require.Equal(t, bidB.ID, *awarded.AwardedBidID)
	require.Equal(t, b.ID, *awarded.AwardedTo)
	require.True(t, awarded.AwardAmount.Decimal.Equal(decimal.NewFromInt(90)))
	require.Len(t, receipt, 1)

	payload, err := audit.Decode(receipt[0])
	require.NoError(t, err)
	award, ok := payload.(models.AwardFinalized)
	require.True(t, ok)
	require.Equal(t, bidB.ID, award.BidID)
	require.Equal(t, 78.0, award.Score)

	_, _, err = w.tenders.Award(ctx, w.admin, tn.ID)
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))

	bids, err := w.store.ListBidsForTender(ctx, tn.ID)
	require.NoError(t, err)
	phases := map[string]models.BidPhase{}
	winners := 0
	for _, bid := range bids {
		phases[bid.ID] = bid.Phase
		if bid.IsWinner {
			winners++
			require.Equal(t, bidB.ID, bid.ID)
		}
	}
	require.Equal(t, 1, winners)
	require.Equal(t, models.BidEvaluated, phases[bidA.ID])
	require.Equal(t, models.BidEvaluated, phases[bidB.ID])
	require.Equal(t, models.BidForfeited, phases[bidC.ID])

	entries, err := w.log.List(ctx, db.AuditFilter{})
	require.NoError(t, err)
	awards := 0
	for _, e := range entries {
		if e.Action == models.ActionAwardFinalized {
			awards++
		}
	}
	require.Equal(t, 1, awards)

	rep, err := w.log.VerifyChain(ctx, 0)
	require.NoError(t, err)
	require.True(t, rep.Valid)
	require.Equal(t, len(entries), rep.Checked)
}

func TestLedger_ConcurrentCommits(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	tn := w.openTender(t)

	const n = 8
	bidders := make([]models.Actor, n)
	hashes := make([]string, n)
	for i := range bidders {
		bidders[i] = w.bidder(t, fmt.Sprintf("bidder%d", i))
		hashes[i] = seal(t, "10", fmt.Sprintf("nonce-%d", i), bidders[i], tn.ID)
	}

	var wg sync.WaitGroup
	failures := make(chan error, 2*n)
	for i := range bidders {
		// каждый участник отправляет одно и то же предложение дважды
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, _, err := w.ledger.Commit(ctx, bidders[i], tn.ID, hashes[i]); err != nil {
					failures <- err
				}
			}()
		}
	}
	wg.Wait()
	close(failures)

	dups := 0
	for err := range failures {
		require.Equal(t, errs.KindDuplicateBid, errs.KindOf(err))
		dups++
	}
	require.Equal(t, n, dups)

	count, err := w.store.CountBids(ctx, tn.ID)
	require.NoError(t, err)
	require.Equal(t, n, count)

	entries, err := w.log.List(ctx, db.AuditFilter{EntityKind: models.EntityTender, EntityID: tn.ID})
	require.NoError(t, err)
	started := 0
	for _, e := range entries {
		if e.Action == models.ActionBiddingStarted {
			started++
		}
	}
	require.Equal(t, 1, started)

	rep, err := w.log.VerifyChain(ctx, 0)
	require.NoError(t, err)
	require.True(t, rep.Valid)
}

func TestLedger_CommitRules(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.bidder(t, "alpha")
	tn := w.openTender(t)

	_, _, err := w.ledger.Commit(ctx, a, tn.ID, "not-a-hash")
	require.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, _, err = w.ledger.Commit(ctx, w.admin, tn.ID, seal(t, "1", "x", w.admin, tn.ID))
	require.Equal(t, errs.KindForbidden, errs.KindOf(err))

	_, _, err = w.ledger.Commit(ctx, a, "missing", seal(t, "1", "x", a, "missing"))
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, _, err = w.tenders.Cancel(ctx, w.admin, tn.ID, "withdrawn")
	require.NoError(t, err)
	_, _, err = w.ledger.Commit(ctx, a, tn.ID, seal(t, "1", "x", a, tn.ID))
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))
}

func TestLedger_RevealValidation(t *testing.T) {
	w := newWorld(t)
	a := w.bidder(t, "alpha")

	_, _, err := w.reveal(a, "bid", "-1", "n")
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
	_, _, err = w.reveal(a, "bid", "1.00001", "n")
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
	_, _, err = w.reveal(a, "bid", "1", " ")
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}

// досрочное закрытие переводит тендер в evaluation, но раскрытие ждет bidDeadline
func TestLedger_ForcedCloseKeepsRevealWindow(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a := w.bidder(t, "alpha")
	tn := w.openTender(t)
	bid := w.commit(t, a, tn.ID, "120", "early-nonce")

	closed, _, err := w.tenders.CloseBidding(ctx, w.admin, tn.ID, true)
	require.NoError(t, err)
	require.Equal(t, models.TenderEvaluation, closed.Status)

	_, _, err = w.reveal(a, bid.ID, "120", "early-nonce")
	require.Equal(t, errs.KindDeadlineExpired, errs.KindOf(err))
	stored, err := w.store.GetBid(ctx, bid.ID)
	require.NoError(t, err)
	require.Equal(t, models.BidCommitted, stored.Phase)

	w.clock.Set(start.Add(bidWindow))
	revealed, _, err := w.reveal(a, bid.ID, "120", "early-nonce")
	require.NoError(t, err)
	require.Equal(t, models.BidRevealed, revealed.Phase)
}

func TestLedger_Visibility(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	a, b := w.bidder(t, "alpha"), w.bidder(t, "beta")
	tn := w.openTender(t)
	bidA := w.commit(t, a, tn.ID, "10", "na")
	w.commit(t, b, tn.ID, "20", "nb")

	_, err := w.ledger.Get(ctx, a, bidA.ID)
	require.NoError(t, err)
	_, err = w.ledger.Get(ctx, b, bidA.ID)
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))
	_, err = w.ledger.Get(ctx, w.evaluator, bidA.ID)
	require.NoError(t, err)

	own, err := w.ledger.ListForTender(ctx, a, tn.ID)
	require.NoError(t, err)
	require.Len(t, own, 1)
	require.Equal(t, bidA.ID, own[0].ID)

	all, err := w.ledger.ListForTender(ctx, w.admin, tn.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	mine, err := w.ledger.ListMine(ctx, b, db.Page{Limit: 5})
	require.NoError(t, err)
	require.Len(t, mine, 1)

	none, err := w.ledger.ListForTender(ctx, w.bidder(t, "gamma"), tn.ID)
	require.NoError(t, err)
	require.Empty(t, none)
}
