package evaluation

import (
	"context"
	"sort"
	"time"

	"etender/db"
	"etender/internal/errs"
	"etender/models"

	"github.com/shopspring/decimal"
)

var (
	technicalWeight = decimal.RequireFromString("0.6")
	financialWeight = decimal.RequireFromString("0.4")
)

// Overall is the single place the weighting lives:
// round(0.6*technical + 0.4*financial, 1), computed in decimal.
func Overall(technical, financial float64) float64 {
	v := decimal.NewFromFloat(technical).Mul(technicalWeight).
		Add(decimal.NewFromFloat(financial).Mul(financialWeight)).
		Round(1)
	return v.InexactFloat64()
}

// mean of overall scores, rounded to one decimal
func mean(evals []models.Evaluation) float64 {
	sum := decimal.Zero
	for _, e := range evals {
		sum = sum.Add(decimal.NewFromFloat(e.OverallScore))
	}
	return sum.Div(decimal.NewFromInt(int64(len(evals)))).Round(1).InexactFloat64()
}

// Ranked is one eligible bid in a ranking.
type Ranked struct {
	Position    int             `json:"position"`
	BidID       string          `json:"bidId"`
	BidderID    string          `json:"bidderId"`
	Score       float64         `json:"overallScore"`
	Amount      decimal.Decimal `json:"bidAmount"`
	Evaluations int             `json:"evaluations"`
	SubmittedAt time.Time       `json:"submittedAt"`
}

// Sort orders by score descending, then earlier submission, then bid id.
func Sort(r []Ranked) {
	sort.SliceStable(r, func(i, j int) bool {
		if r[i].Score != r[j].Score {
			return r[i].Score > r[j].Score
		}
		if !r[i].SubmittedAt.Equal(r[j].SubmittedAt) {
			return r[i].SubmittedAt.Before(r[j].SubmittedAt)
		}
		return r[i].BidID < r[j].BidID
	})
	for i := range r {
		r[i].Position = i + 1
	}
}

// RankIn ranks the eligible bids of a tender through q, which may be a transaction.
// Eligible: revealed (or already evaluated at award) with at least one evaluation.
func RankIn(ctx context.Context, q *db.Storage, tenderID string) ([]Ranked, error) {
	bids, err := q.ListBidsForTender(ctx, tenderID, models.BidRevealed, models.BidEvaluated)
	if err != nil {
		return nil, err
	}
	evals, err := q.ListEvaluationsForTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}

	byBid := make(map[string][]models.Evaluation, len(bids))
	for _, e := range evals {
		byBid[e.BidID] = append(byBid[e.BidID], e)
	}

	ranked := make([]Ranked, 0, len(bids))
	for _, b := range bids {
		scored := byBid[b.ID]
		if len(scored) == 0 {
			continue
		}
		ranked = append(ranked, Ranked{
			BidID:       b.ID,
			BidderID:    b.BidderID,
			Score:       mean(scored),
			Amount:      b.BidAmount.Decimal,
			Evaluations: len(scored),
			SubmittedAt: b.SubmittedAt,
		})
	}
	Sort(ranked)
	return ranked, nil
}

// Winner is the top of a ranking, or NoEligibleBidsError when it is empty.
func Winner(tenderID string, ranked []Ranked) (Ranked, error) {
	if len(ranked) == 0 {
		return Ranked{}, &errs.NoEligibleBidsError{TenderID: tenderID}
	}
	return ranked[0], nil
}
