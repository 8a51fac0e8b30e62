package tender_test

import (
	"context"
	"testing"
	"time"

	"etender/db"
	"etender/db/dbtest"
	"etender/internal/audit"
	"etender/internal/clock"
	"etender/internal/errs"
	"etender/internal/lock"
	"etender/internal/tender"
	"etender/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store *db.Storage
	clock *clock.Manual
	log   *audit.Log
	svc   *tender.Service
	admin models.Actor
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store := dbtest.New(t)
	clk := clock.NewManual(start)
	log := audit.New(store, clk, nil, 5*time.Second)
	admin := dbtest.User(t, store, models.RoleAdmin, "admin")
	return &fixture{
		store: store,
		clock: clk,
		log:   log,
		svc:   tender.NewService(store, log, clk, lock.NewKeyed()),
		admin: models.Actor{ID: admin.ID, Role: models.RoleAdmin},
	}
}

func input() tender.Input {
	bid := start.Add(48 * time.Hour)
	eval := start.Add(96 * time.Hour)
	return tender.Input{
		Title:              "Bridge inspection <b>2026</b>",
		Description:        "Annual inspection of 30 bridges",
		Category:           "Transportation",
		EstimatedValue:     decimal.RequireFromString("120000.25"),
		Currency:           "eur",
		BidDeadline:        &bid,
		EvaluationDeadline: &eval,
	}
}

func (f *fixture) published(t *testing.T) *models.Tender {
	t.Helper()
	ctx := context.Background()
	created, _, err := f.svc.Create(ctx, f.admin, input())
	require.NoError(t, err)
	open, _, err := f.svc.Publish(ctx, f.admin, created.ID)
	require.NoError(t, err)
	return open
}

func TestService_CreateSanitizesAndAudits(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tn, receipt, err := f.svc.Create(ctx, f.admin, input())
	require.NoError(t, err)
	require.Equal(t, "Bridge inspection 2026", tn.Title)
	require.Equal(t, "EUR", tn.Currency)
	require.Equal(t, models.TenderDraft, tn.Status)
	require.Len(t, receipt, 1)
	require.Equal(t, models.ActionTenderCreated, receipt[0].Action)
	require.Equal(t, tn.ID, receipt[0].EntityID)
}

func TestService_CreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	in := input()
	in.Category = "Space"
	_, _, err := f.svc.Create(ctx, f.admin, in)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))

	in = input()
	in.EstimatedValue = decimal.RequireFromString("10.12345")
	_, _, err = f.svc.Create(ctx, f.admin, in)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))

	_, _, err = f.svc.Create(ctx, models.Actor{ID: "b", Role: models.RoleBidder}, input())
	require.Equal(t, errs.KindForbidden, errs.KindOf(err))
}

func TestService_PublishAndOwnership(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := dbtest.User(t, f.store, models.RoleAdmin, "other")

	created, _, err := f.svc.Create(ctx, f.admin, input())
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, models.Actor{ID: other.ID, Role: models.RoleAdmin}, created.ID)
	require.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, _, err = f.svc.Publish(ctx, models.Actor{ID: other.ID, Role: models.RoleAdmin}, created.ID)
	require.Equal(t, errs.KindForbidden, errs.KindOf(err))

	open, receipt, err := f.svc.Publish(ctx, f.admin, created.ID)
	require.NoError(t, err)
	require.Equal(t, models.TenderOpen, open.Status)
	require.True(t, open.PublishDate.Equal(start))
	require.Equal(t, models.ActionTenderPublished, receipt[0].Action)

	_, _, err = f.svc.Publish(ctx, f.admin, created.ID)
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))

	title := "New title"
	_, _, err = f.svc.Update(ctx, f.admin, created.ID, tender.Patch{Title: &title})
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))
}

func TestService_UpdateDraft(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	created, _, err := f.svc.Create(ctx, f.admin, input())
	require.NoError(t, err)

	title := "Bridge inspection, phase 2"
	updated, receipt, err := f.svc.Update(ctx, f.admin, created.ID, tender.Patch{Title: &title})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	payload, err := audit.Decode(receipt[0])
	require.NoError(t, err)
	require.Equal(t, models.TenderUpdated{TenderID: created.ID, Fields: []string{"title"}}, payload)

	_, _, err = f.svc.Update(ctx, f.admin, created.ID, tender.Patch{})
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestService_AssignEvaluatorIsIdempotent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	eva := dbtest.User(t, f.store, models.RoleEvaluator, "eva")
	bob := dbtest.User(t, f.store, models.RoleBidder, "bob")
	open := f.published(t)

	tn, receipt, err := f.svc.AssignEvaluator(ctx, f.admin, open.ID, eva.ID)
	require.NoError(t, err)
	require.Equal(t, []string{eva.ID}, tn.Evaluators)
	require.Len(t, receipt, 1)

	_, receipt, err = f.svc.AssignEvaluator(ctx, f.admin, open.ID, eva.ID)
	require.NoError(t, err)
	require.Empty(t, receipt)

	_, _, err = f.svc.AssignEvaluator(ctx, f.admin, open.ID, bob.ID)
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestService_AttachDocument(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	open := f.published(t)

	tn, _, err := f.svc.AttachDocument(ctx, f.admin, open.ID, tender.DocumentInput{
		Name: "terms.pdf", MimeType: "application/pdf", SizeBytes: 2048, ContentHash: "QmTerms",
	})
	require.NoError(t, err)
	require.Len(t, tn.Documents, 1)
	require.Equal(t, "QmTerms", tn.Documents[0].ContentHash)

	_, _, err = f.svc.AttachDocument(ctx, f.admin, open.ID, tender.DocumentInput{Name: "x"})
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestService_CloseBiddingNeedsDeadlineOrForce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	open := f.published(t)

	_, _, err := f.svc.CloseBidding(ctx, f.admin, open.ID, false)
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))

	closed, receipt, err := f.svc.CloseBidding(ctx, f.admin, open.ID, true)
	require.NoError(t, err)
	require.Equal(t, models.TenderEvaluation, closed.Status)
	payload, err := audit.Decode(receipt[0])
	require.NoError(t, err)
	require.Equal(t, models.BiddingClosed{TenderID: open.ID, From: "open", Forced: true}, payload)

	// нет раскрытых предложений: награждать нечего, архивировать можно
	_, _, err = f.svc.Award(ctx, f.admin, open.ID)
	require.Equal(t, errs.KindNoEligibleBids, errs.KindOf(err))

	archived, _, err := f.svc.Archive(ctx, f.admin, open.ID, "no bids")
	require.NoError(t, err)
	require.Equal(t, models.TenderArchived, archived.Status)
	require.Equal(t, "no bids", *archived.ClosingReason)
}

func TestService_CancelNeedsReason(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	open := f.published(t)

	_, _, err := f.svc.Cancel(ctx, f.admin, open.ID, "  ")
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))

	cancelled, _, err := f.svc.Cancel(ctx, f.admin, open.ID, "budget withdrawn")
	require.NoError(t, err)
	require.Equal(t, models.TenderCancelled, cancelled.Status)

	_, _, err = f.svc.Cancel(ctx, f.admin, open.ID, "again")
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))
}

func TestService_RemindDeadlineOnce(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	open := f.published(t)

	receipt, err := f.svc.RemindDeadline(ctx, open.ID, 24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, receipt)

	f.clock.Advance(30 * time.Hour)
	receipt, err = f.svc.RemindDeadline(ctx, open.ID, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, receipt, 1)
	require.Equal(t, models.ActionDeadlineReminder, receipt[0].Action)
	require.Equal(t, models.SystemActor.ID, receipt[0].UserID)

	receipt, err = f.svc.RemindDeadline(ctx, open.ID, 24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, receipt)
}

func TestService_ListHidesForeignDrafts(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	bidder := models.Actor{ID: "bidder", Role: models.RoleBidder}

	_, _, err := f.svc.Create(ctx, f.admin, input())
	require.NoError(t, err)
	open := f.published(t)

	mine, err := f.svc.List(ctx, f.admin, tender.ListFilter{Mine: true})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	visible, err := f.svc.List(ctx, bidder, tender.ListFilter{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	require.Equal(t, open.ID, visible[0].ID)

	_, err = f.svc.List(ctx, bidder, tender.ListFilter{Status: "pending"})
	require.Equal(t, errs.KindValidation, errs.KindOf(err))
}
