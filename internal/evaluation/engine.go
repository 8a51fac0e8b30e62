package evaluation

import (
	"context"
	"math"
	"strings"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/clock"
	"etender/internal/commitment"
	"etender/internal/errs"
	"etender/internal/lock"
	"etender/models"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

const maxComments = 2000

type Engine struct {
	store    *db.Storage
	log      *audit.Log
	clock    clock.Clock
	locks    *lock.Keyed
	sanitize *bluemonday.Policy
}

// locks must be the same instance the bid ledger uses, so that scoring and
// revealing one bid are linearized.
func NewEngine(store *db.Storage, log *audit.Log, clk clock.Clock, locks *lock.Keyed) *Engine {
	return &Engine{store: store, log: log, clock: clk, locks: locks, sanitize: bluemonday.StrictPolicy()}
}

type ScoreInput struct {
	BidID          string
	TechnicalScore float64
	FinancialScore float64
	Comments       string
}

func validScore(field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 100 {
		return errs.Validation(field, "must be between 0 and 100")
	}
	return nil
}

// Score records one evaluator's scores for a revealed bid.
func (e *Engine) Score(ctx context.Context, actor models.Actor, in ScoreInput) (*models.Evaluation, audit.Receipt, error) {
	if actor.Role != models.RoleEvaluator {
		return nil, nil, errs.Forbidden(actor.ID, "only evaluators score bids")
	}
	if err := validScore("technicalScore", in.TechnicalScore); err != nil {
		return nil, nil, err
	}
	if err := validScore("financialScore", in.FinancialScore); err != nil {
		return nil, nil, err
	}
	comments := strings.TrimSpace(e.sanitize.Sanitize(in.Comments))
	if len(comments) > maxComments {
		return nil, nil, errs.Validation("comments", "too long")
	}

	unlock, err := e.locks.Lock(ctx, "bid:"+in.BidID)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var eval *models.Evaluation
	receipt, err := e.log.Write(ctx, func(tx *db.Storage) ([]audit.Record, error) {
		bid, err := tx.GetBid(ctx, in.BidID)
		if err != nil {
			return nil, err
		}
		t, err := tx.GetTender(ctx, bid.TenderID)
		if err != nil {
			return nil, err
		}
		if t.Status != models.TenderEvaluation {
			return nil, &errs.StateTransitionError{
				Entity: "tender", EntityID: t.ID, From: string(t.Status), To: "scored",
				Reason: "evaluations are accepted only during evaluation",
			}
		}
		if bid.Phase != models.BidRevealed {
			return nil, &errs.StateTransitionError{
				Entity: "bid", EntityID: bid.ID, From: string(bid.Phase), To: string(models.BidEvaluated),
				Reason: "only revealed bids can be scored",
			}
		}
		assigned, err := tx.IsEvaluator(ctx, t.ID, actor.ID)
		if err != nil {
			return nil, err
		}
		if !assigned {
			return nil, errs.Forbidden(actor.ID, "evaluator is not assigned to this tender")
		}
		done, err := tx.HasEvaluation(ctx, bid.ID, actor.ID)
		if err != nil {
			return nil, err
		}
		if done {
			return nil, &errs.DuplicateEvaluationError{BidID: bid.ID, EvaluatorID: actor.ID}
		}

		now := e.clock.Now()
		eval = &models.Evaluation{
			ID:             uuid.NewString(),
			TenderID:       t.ID,
			BidID:          bid.ID,
			EvaluatorID:    actor.ID,
			TechnicalScore: in.TechnicalScore,
			FinancialScore: in.FinancialScore,
			OverallScore:   Overall(in.TechnicalScore, in.FinancialScore),
			Comments:       comments,
			EvaluatedAt:    now,
		}
		eval.IntegrityHash = commitment.EvaluationHash(Fields(eval))
		if err := tx.CreateEvaluation(ctx, eval); err != nil {
			return nil, err
		}

		return []audit.Record{{
			EntityKind: models.EntityEvaluation,
			EntityID:   eval.ID,
			UserID:     actor.ID,
			Payload: models.EvaluationCompleted{
				TenderID:       t.ID,
				BidID:          bid.ID,
				EvaluationID:   eval.ID,
				EvaluatorID:    actor.ID,
				TechnicalScore: eval.TechnicalScore,
				FinancialScore: eval.FinancialScore,
				OverallScore:   eval.OverallScore,
				IntegrityHash:  eval.IntegrityHash,
			},
		}}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return eval, receipt, nil
}

// Fields lists what the integrity hash of an evaluation covers.
func Fields(e *models.Evaluation) commitment.EvaluationFields {
	return commitment.EvaluationFields{
		EvaluationID:   e.ID,
		TenderID:       e.TenderID,
		BidID:          e.BidID,
		EvaluatorID:    e.EvaluatorID,
		TechnicalScore: e.TechnicalScore,
		FinancialScore: e.FinancialScore,
		OverallScore:   e.OverallScore,
		Comments:       e.Comments,
		EvaluatedAt:    e.EvaluatedAt,
	}
}

func (e *Engine) Rank(ctx context.Context, tenderID string) ([]Ranked, error) {
	if _, err := e.store.GetTender(ctx, tenderID); err != nil {
		return nil, err
	}
	return RankIn(ctx, e.store, tenderID)
}

func (e *Engine) SelectWinner(ctx context.Context, tenderID string) (Ranked, error) {
	ranked, err := e.Rank(ctx, tenderID)
	if err != nil {
		return Ranked{}, err
	}
	return Winner(tenderID, ranked)
}
