package tender

import (
	"slices"
	"strings"
	"time"

	"etender/internal/errs"
	"etender/models"
)

var transitions = map[models.TenderStatus][]models.TenderStatus{
	models.TenderDraft:      {models.TenderOpen, models.TenderCancelled},
	models.TenderOpen:       {models.TenderBidding, models.TenderEvaluation, models.TenderCancelled},
	models.TenderBidding:    {models.TenderEvaluation, models.TenderCancelled},
	models.TenderEvaluation: {models.TenderAwarded, models.TenderArchived, models.TenderCancelled},
	models.TenderAwarded:    {models.TenderArchived, models.TenderCancelled},
}

// Allowed reports whether the table has an edge from -> to.
func Allowed(from, to models.TenderStatus) bool {
	return slices.Contains(transitions[from], to)
}

func Next(from models.TenderStatus) []models.TenderStatus {
	return slices.Clone(transitions[from])
}

// Facts are the bid counts a transition precondition may depend on.
type Facts struct {
	Commitments int // all bids
	Pending     int // still committed
	Revealed    int // revealed or evaluated
	Eligible    int // revealed and evaluated at least once
	Forced      bool
	Reason      string
}

func refuse(t *models.Tender, to models.TenderStatus, reason string) error {
	return &errs.StateTransitionError{
		Entity:   "tender",
		EntityID: t.ID,
		From:     string(t.Status),
		To:       string(to),
		Reason:   reason,
	}
}

// Check validates the move of t to `to` at now. It never mutates t.
func Check(t *models.Tender, to models.TenderStatus, now time.Time, f Facts) error {
	if t.Status.Terminal() {
		return refuse(t, to, "tender is "+string(t.Status))
	}
	if !Allowed(t.Status, to) {
		return refuse(t, to, "transition not allowed")
	}

	switch to {
	case models.TenderOpen:
		if err := Publishable(t, now); err != nil {
			return refuse(t, to, err.Error())
		}
	case models.TenderBidding:
		if f.Commitments == 0 {
			return refuse(t, to, "no commitment accepted yet")
		}
		if !now.Before(*t.BidDeadline) {
			return refuse(t, to, "bid deadline passed")
		}
	case models.TenderEvaluation:
		if !f.Forced && now.Before(*t.BidDeadline) {
			return refuse(t, to, "bid deadline not reached")
		}
	case models.TenderAwarded:
		if f.Eligible == 0 {
			return &errs.NoEligibleBidsError{TenderID: t.ID}
		}
		if f.Pending > 0 && now.Before(*t.EvaluationDeadline) {
			return refuse(t, to, "reveal window still open for unrevealed commitments")
		}
	case models.TenderArchived:
		if t.Status == models.TenderEvaluation && f.Revealed > 0 {
			return refuse(t, to, "revealed bids must be awarded")
		}
	case models.TenderCancelled:
		if strings.TrimSpace(f.Reason) == "" {
			return refuse(t, to, "reason is required")
		}
	}
	return nil
}

// Publishable checks every requirement for draft -> open.
func Publishable(t *models.Tender, now time.Time) error {
	switch {
	case strings.TrimSpace(t.Title) == "":
		return errs.Validation("title", "is required")
	case strings.TrimSpace(t.Description) == "":
		return errs.Validation("description", "is required")
	case !slices.Contains(models.Categories, t.Category):
		return errs.Validation("category", "unknown category")
	case !t.EstimatedValue.IsPositive():
		return errs.Validation("estimatedValue", "must be positive")
	case t.BidDeadline == nil:
		return errs.Validation("bidDeadline", "is required")
	case t.EvaluationDeadline == nil:
		return errs.Validation("evaluationDeadline", "is required")
	case !t.BidDeadline.After(now):
		return errs.Validation("bidDeadline", "must be in the future")
	case !t.EvaluationDeadline.After(*t.BidDeadline):
		return errs.Validation("evaluationDeadline", "must be after bidDeadline")
	}
	return nil
}

// apply moves t to `to`. Callers run Check first.
func apply(t *models.Tender, to models.TenderStatus, now time.Time) {
	if to == models.TenderOpen {
		t.PublishDate = &now
	}
	t.Status = to
	t.UpdatedAt = now
}
