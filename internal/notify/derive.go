// Package notify turns audit entries into per-user notifications.
//
// Derive is pure: the same entry and audience always produce the same
// notifications, with ids derived from (entry id, user id). Storage enforces
// UNIQUE(entry_id, user_id), so replaying an entry never duplicates anything.
package notify

import (
	"fmt"
	"slices"

	"etender/models"

	"github.com/google/uuid"
)

// namespace for name-based notification ids
var namespace = uuid.MustParse("6f1c2b1e-8a53-4c8e-9a57-0d3f6e0c2a41")

// Audience is everyone interested in one tender.
type Audience struct {
	Owner      string
	Title      string
	Bidders    []string
	Evaluators []string
}

type target struct {
	users []string
	kind  models.NotificationType
	title string
	msg   string
}

func one(id string) []string {
	if id == "" {
		return nil
	}
	return []string{id}
}

func join(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		for _, id := range l {
			if id != "" && !slices.Contains(out, id) {
				out = append(out, id)
			}
		}
	}
	return out
}

// Derive maps an entry to the notifications it causes.
func Derive(e models.AuditEntry, p models.AuditPayload, a Audience) []models.Notification {
	var targets []target
	name := a.Title
	if name == "" {
		name = p.TenderRef()
	}

	switch v := p.(type) {
	case models.TenderPublished:
		targets = []target{{join(one(a.Owner), a.Evaluators), models.NotifyStatusChange,
			"Tender published", fmt.Sprintf("%q is open for bids until %s", name, v.BidDeadline.Format("2006-01-02 15:04 MST"))}}
	case models.EvaluatorAssigned:
		targets = []target{{one(v.EvaluatorID), models.NotifyEvaluation,
			"Evaluator assignment", fmt.Sprintf("You were assigned to evaluate %q", name)}}
	case models.BiddingStarted:
		targets = []target{{one(a.Owner), models.NotifyStatusChange,
			"Bidding started", fmt.Sprintf("%q received its first commitment", name)}}
	case models.BidSubmitted:
		targets = []target{{join(one(v.BidderID), one(a.Owner)), models.NotifyStatusChange,
			"Bid committed", fmt.Sprintf("A sealed bid was committed on %q", name)}}
	case models.BiddingClosed:
		targets = []target{
			{join(one(a.Owner), a.Bidders), models.NotifyStatusChange,
				"Bidding closed", fmt.Sprintf("Bidding on %q is closed; reveal your bids before the evaluation deadline", name)},
			{a.Evaluators, models.NotifyEvaluation,
				"Evaluation started", fmt.Sprintf("%q is ready for evaluation", name)},
		}
	case models.BidRevealedEntry:
		targets = []target{{join(one(v.BidderID), one(a.Owner)), models.NotifyStatusChange,
			"Bid revealed", fmt.Sprintf("A bid on %q was revealed for %s", name, v.Amount.String())}}
	case models.RevealRejected:
		targets = []target{{join(one(v.BidderID), one(a.Owner)), models.NotifyStatusChange,
			"Reveal rejected", fmt.Sprintf("A reveal on %q did not match its commitment (attempt %d)", name, v.Failures)}}
	case models.BidForfeitedEntry:
		targets = []target{{one(v.BidderID), models.NotifyStatusChange,
			"Bid forfeited", fmt.Sprintf("Your bid on %q was not revealed in time and is forfeited", name)}}
	case models.EvaluationCompleted:
		targets = []target{{one(a.Owner), models.NotifyEvaluation,
			"Evaluation completed", fmt.Sprintf("A bid on %q was scored %.1f", name, v.OverallScore)}}
	case models.AwardFinalized:
		targets = []target{{join(one(a.Owner), a.Bidders, a.Evaluators), models.NotifyAward,
			"Tender awarded", fmt.Sprintf("%q was awarded for %s", name, v.Amount.String())}}
	case models.TenderArchivedEntry:
		targets = []target{{join(one(a.Owner), a.Bidders, a.Evaluators), models.NotifyStatusChange,
			"Tender archived", fmt.Sprintf("%q was archived", name)}}
	case models.TenderCancelledEntry:
		targets = []target{{join(one(a.Owner), a.Bidders, a.Evaluators), models.NotifyStatusChange,
			"Tender cancelled", fmt.Sprintf("%q was cancelled: %s", name, v.Reason)}}
	case models.DeadlineReminder:
		targets = []target{{join(one(a.Owner), a.Bidders), models.NotifyDeadline,
			"Bid deadline approaching", fmt.Sprintf("Bidding on %q closes at %s", name, v.BidDeadline.Format("2006-01-02 15:04 MST"))}}
	case models.TenderCreated, models.TenderUpdated, models.DocumentAttached:
		// только для журнала
	}

	var out []models.Notification
	seen := map[string]bool{}
	for _, tg := range targets {
		for _, u := range tg.users {
			if seen[u] {
				continue
			}
			seen[u] = true
			out = append(out, models.Notification{
				ID:          ID(e.ID, u),
				UserID:      u,
				Type:        tg.kind,
				Title:       tg.title,
				Message:     tg.msg,
				EntryID:     e.ID,
				RelatedType: e.EntityKind,
				RelatedID:   e.EntityID,
				CreatedAt:   e.Timestamp,
			})
		}
	}
	return out
}

// ID is the deterministic notification id for (entry, user).
func ID(entryID, userID string) string {
	return uuid.NewSHA1(namespace, []byte(entryID+"/"+userID)).String()
}
