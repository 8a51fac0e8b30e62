package tender

import (
	"testing"
	"time"

	"etender/internal/errs"
	"etender/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func draft() *models.Tender {
	bid := t0.Add(48 * time.Hour)
	eval := t0.Add(96 * time.Hour)
	return &models.Tender{
		ID:                 "t1",
		Title:              "School roofs",
		Description:        "Replace roofs of 4 schools",
		Category:           "Education",
		EstimatedValue:     decimal.NewFromInt(400000),
		Currency:           "USD",
		Status:             models.TenderDraft,
		BidDeadline:        &bid,
		EvaluationDeadline: &eval,
		CreatedBy:          "admin",
	}
}

func withStatus(s models.TenderStatus) *models.Tender {
	t := draft()
	t.Status = s
	return t
}

func requireRefused(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, errs.KindStateTransition, errs.KindOf(err))
}

func TestAllowed(t *testing.T) {
	require.True(t, Allowed(models.TenderDraft, models.TenderOpen))
	require.True(t, Allowed(models.TenderOpen, models.TenderEvaluation))
	require.True(t, Allowed(models.TenderAwarded, models.TenderArchived))
	require.False(t, Allowed(models.TenderDraft, models.TenderBidding))
	require.False(t, Allowed(models.TenderEvaluation, models.TenderBidding))
	require.False(t, Allowed(models.TenderArchived, models.TenderOpen))
	require.Empty(t, Next(models.TenderCancelled))
}

func TestCheck_TerminalStatesRefuseEverything(t *testing.T) {
	for _, s := range []models.TenderStatus{models.TenderArchived, models.TenderCancelled} {
		for _, to := range []models.TenderStatus{models.TenderOpen, models.TenderCancelled, models.TenderArchived} {
			requireRefused(t, Check(withStatus(s), to, t0, Facts{Reason: "x"}))
		}
	}
}

func TestCheck_Publish(t *testing.T) {
	require.NoError(t, Check(draft(), models.TenderOpen, t0, Facts{}))

	noDesc := draft()
	noDesc.Description = "  "
	requireRefused(t, Check(noDesc, models.TenderOpen, t0, Facts{}))

	noDeadline := draft()
	noDeadline.BidDeadline = nil
	requireRefused(t, Check(noDeadline, models.TenderOpen, t0, Facts{}))

	// дедлайн уже прошел
	requireRefused(t, Check(draft(), models.TenderOpen, t0.Add(49*time.Hour), Facts{}))

	inverted := draft()
	inverted.EvaluationDeadline = &t0
	requireRefused(t, Check(inverted, models.TenderOpen, t0.Add(-time.Hour), Facts{}))
}

func TestCheck_Bidding(t *testing.T) {
	open := withStatus(models.TenderOpen)
	requireRefused(t, Check(open, models.TenderBidding, t0, Facts{}))
	require.NoError(t, Check(open, models.TenderBidding, t0, Facts{Commitments: 1}))
	requireRefused(t, Check(open, models.TenderBidding, *open.BidDeadline, Facts{Commitments: 1}))
}

func TestCheck_CloseBidding(t *testing.T) {
	bidding := withStatus(models.TenderBidding)
	requireRefused(t, Check(bidding, models.TenderEvaluation, t0, Facts{}))
	require.NoError(t, Check(bidding, models.TenderEvaluation, t0, Facts{Forced: true}))
	require.NoError(t, Check(bidding, models.TenderEvaluation, *bidding.BidDeadline, Facts{}))

	// открытый тендер без предложений тоже закрывается по дедлайну
	require.NoError(t, Check(withStatus(models.TenderOpen), models.TenderEvaluation, *bidding.BidDeadline, Facts{}))
}

func TestCheck_Award(t *testing.T) {
	ev := withStatus(models.TenderEvaluation)
	mid := t0.Add(72 * time.Hour)

	err := Check(ev, models.TenderAwarded, mid, Facts{})
	require.Equal(t, errs.KindNoEligibleBids, errs.KindOf(err))

	require.NoError(t, Check(ev, models.TenderAwarded, mid, Facts{Eligible: 2}))
	requireRefused(t, Check(ev, models.TenderAwarded, mid, Facts{Eligible: 2, Pending: 1}))
	require.NoError(t, Check(ev, models.TenderAwarded, *ev.EvaluationDeadline, Facts{Eligible: 2, Pending: 1}))

	requireRefused(t, Check(withStatus(models.TenderBidding), models.TenderAwarded, mid, Facts{Eligible: 1}))
}

func TestCheck_ArchiveAndCancel(t *testing.T) {
	ev := withStatus(models.TenderEvaluation)
	requireRefused(t, Check(ev, models.TenderArchived, t0, Facts{Revealed: 1}))
	require.NoError(t, Check(ev, models.TenderArchived, t0, Facts{}))
	require.NoError(t, Check(withStatus(models.TenderAwarded), models.TenderArchived, t0, Facts{Revealed: 3}))
	requireRefused(t, Check(withStatus(models.TenderOpen), models.TenderArchived, t0, Facts{}))

	requireRefused(t, Check(draft(), models.TenderCancelled, t0, Facts{}))
	require.NoError(t, Check(draft(), models.TenderCancelled, t0, Facts{Reason: "budget withdrawn"}))
}

func TestApply_SetsPublishDate(t *testing.T) {
	tn := draft()
	apply(tn, models.TenderOpen, t0)
	require.Equal(t, models.TenderOpen, tn.Status)
	require.NotNil(t, tn.PublishDate)
	require.True(t, tn.PublishDate.Equal(t0))
}
