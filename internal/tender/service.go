package tender

import (
	"context"
	"slices"
	"strings"
	"time"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/clock"
	"etender/internal/errs"
	"etender/internal/evaluation"
	"etender/internal/lock"
	"etender/models"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/shopspring/decimal"
)

const (
	maxTitle       = 200
	maxDescription = 5000
	maxReason      = 1000
)

// Service drives the lifecycle of tenders. Every transition goes through
// Check and is appended to the audit log in the same write.
type Service struct {
	store    *db.Storage
	log      *audit.Log
	clock    clock.Clock
	locks    *lock.Keyed
	sanitize *bluemonday.Policy
}

func NewService(store *db.Storage, log *audit.Log, clk clock.Clock, locks *lock.Keyed) *Service {
	return &Service{store: store, log: log, clock: clk, locks: locks, sanitize: bluemonday.StrictPolicy()}
}

type Input struct {
	Title              string
	Description        string
	Category           string
	EstimatedValue     decimal.Decimal
	Currency           string
	BidDeadline        *time.Time
	EvaluationDeadline *time.Time
}

// Patch changes only the non-nil fields of a draft.
type Patch struct {
	Title              *string
	Description        *string
	Category           *string
	EstimatedValue     *decimal.Decimal
	Currency           *string
	BidDeadline        *time.Time
	EvaluationDeadline *time.Time
}

type DocumentInput struct {
	Name        string
	MimeType    string
	SizeBytes   int64
	ContentHash string
}

func (s *Service) clean(v string) string {
	return strings.TrimSpace(s.sanitize.Sanitize(v))
}

func normalizeTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	n := clock.Normalize(*t)
	return &n
}

func validateFields(t *models.Tender) error {
	if t.Title == "" || len(t.Title) > maxTitle {
		return errs.Validation("title", "is required and at most 200 characters")
	}
	if len(t.Description) > maxDescription {
		return errs.Validation("description", "too long")
	}
	if !slices.Contains(models.Categories, t.Category) {
		return errs.Validation("category", "must be one of "+strings.Join(models.Categories, ", "))
	}
	if !slices.Contains(models.Currencies, t.Currency) {
		return errs.Validation("currency", "must be one of "+strings.Join(models.Currencies, ", "))
	}
	if !t.EstimatedValue.IsPositive() {
		return errs.Validation("estimatedValue", "must be positive")
	}
	if !t.EstimatedValue.Equal(t.EstimatedValue.Truncate(4)) {
		return errs.Validation("estimatedValue", "at most 4 fractional digits")
	}
	if t.BidDeadline != nil && t.EvaluationDeadline != nil && !t.BidDeadline.Before(*t.EvaluationDeadline) {
		return errs.Validation("evaluationDeadline", "must be after bidDeadline")
	}
	return nil
}

func requireAdmin(actor models.Actor) error {
	if actor.Role != models.RoleAdmin {
		return errs.Forbidden(actor.ID, "admin role required")
	}
	return nil
}

func requireOwner(actor models.Actor, t *models.Tender) error {
	if actor.IsSystem() || actor.ID == t.CreatedBy {
		return nil
	}
	return errs.Forbidden(actor.ID, "only the owning admin may change this tender")
}

func (s *Service) Create(ctx context.Context, actor models.Actor, in Input) (*models.Tender, audit.Receipt, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	now := s.clock.Now()
	t := &models.Tender{
		ID:                 uuid.NewString(),
		Title:              s.clean(in.Title),
		Description:        s.clean(in.Description),
		Category:           in.Category,
		EstimatedValue:     in.EstimatedValue,
		Currency:           strings.ToUpper(strings.TrimSpace(in.Currency)),
		Status:             models.TenderDraft,
		BidDeadline:        normalizeTime(in.BidDeadline),
		EvaluationDeadline: normalizeTime(in.EvaluationDeadline),
		CreatedBy:          actor.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
		Documents:          []models.TenderDocument{},
		Evaluators:         []string{},
	}
	if err := validateFields(t); err != nil {
		return nil, nil, err
	}

	receipt, err := s.log.Write(ctx, func(tx *db.Storage) ([]audit.Record, error) {
		if err := tx.CreateTender(ctx, t); err != nil {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender,
			EntityID:   t.ID,
			UserID:     actor.ID,
			Payload: models.TenderCreated{
				TenderID:       t.ID,
				Title:          t.Title,
				Category:       t.Category,
				EstimatedValue: t.EstimatedValue,
				Currency:       t.Currency,
			},
		}}, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return t, receipt, nil
}

// mutate loads the tender under its key lock and inside the audit write.
func (s *Service) mutate(ctx context.Context, actor models.Actor, id string,
	fn func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error),
) (*models.Tender, audit.Receipt, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	unlock, err := s.locks.Lock(ctx, "tender:"+id)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var out *models.Tender
	receipt, err := s.log.Write(ctx, func(tx *db.Storage) ([]audit.Record, error) {
		t, err := tx.GetTender(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := requireOwner(actor, t); err != nil {
			return nil, err
		}
		records, err := fn(tx, t, s.clock.Now())
		if err != nil {
			return nil, err
		}
		out, err = tx.GetTender(ctx, id)
		return records, err
	})
	if err != nil {
		return nil, nil, err
	}
	return out, receipt, nil
}

func (s *Service) Update(ctx context.Context, actor models.Actor, id string, p Patch) (*models.Tender, audit.Receipt, error) {
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		if t.Status != models.TenderDraft {
			return nil, refuse(t, t.Status, "only drafts can be edited")
		}
		var fields []string
		if p.Title != nil {
			t.Title = s.clean(*p.Title)
			fields = append(fields, "title")
		}
		if p.Description != nil {
			t.Description = s.clean(*p.Description)
			fields = append(fields, "description")
		}
		if p.Category != nil {
			t.Category = *p.Category
			fields = append(fields, "category")
		}
		if p.EstimatedValue != nil {
			t.EstimatedValue = *p.EstimatedValue
			fields = append(fields, "estimatedValue")
		}
		if p.Currency != nil {
			t.Currency = strings.ToUpper(strings.TrimSpace(*p.Currency))
			fields = append(fields, "currency")
		}
		if p.BidDeadline != nil {
			t.BidDeadline = normalizeTime(p.BidDeadline)
			fields = append(fields, "bidDeadline")
		}
		if p.EvaluationDeadline != nil {
			t.EvaluationDeadline = normalizeTime(p.EvaluationDeadline)
			fields = append(fields, "evaluationDeadline")
		}
		if len(fields) == 0 {
			return nil, errs.Validation("", "nothing to update")
		}
		if err := validateFields(t); err != nil {
			return nil, err
		}
		t.UpdatedAt = now
		if err := tx.UpdateTender(ctx, t); err != nil {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
			Payload: models.TenderUpdated{TenderID: t.ID, Fields: fields},
		}}, nil
	})
}

func (s *Service) Publish(ctx context.Context, actor models.Actor, id string) (*models.Tender, audit.Receipt, error) {
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		if err := Check(t, models.TenderOpen, now, Facts{}); err != nil {
			return nil, err
		}
		apply(t, models.TenderOpen, now)
		if err := tx.UpdateTender(ctx, t); err != nil {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
			Payload: models.TenderPublished{
				TenderID:           t.ID,
				Title:              t.Title,
				BidDeadline:        *t.BidDeadline,
				EvaluationDeadline: *t.EvaluationDeadline,
			},
		}}, nil
	})
}

func (s *Service) AttachDocument(ctx context.Context, actor models.Actor, id string, in DocumentInput) (*models.Tender, audit.Receipt, error) {
	name := s.clean(in.Name)
	if name == "" {
		return nil, nil, errs.Validation("name", "is required")
	}
	if strings.TrimSpace(in.ContentHash) == "" {
		return nil, nil, errs.Validation("contentHash", "is required")
	}
	if in.SizeBytes < 0 {
		return nil, nil, errs.Validation("size", "must not be negative")
	}
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		if t.Status != models.TenderDraft && t.Status != models.TenderOpen {
			return nil, refuse(t, t.Status, "documents can be attached only to draft or open tenders")
		}
		doc := &models.TenderDocument{
			ID:          uuid.NewString(),
			TenderID:    t.ID,
			Name:        name,
			MimeType:    strings.TrimSpace(in.MimeType),
			SizeBytes:   in.SizeBytes,
			ContentHash: strings.TrimSpace(in.ContentHash),
			UploadedBy:  actor.ID,
			UploadedAt:  now,
		}
		if err := tx.AddDocument(ctx, doc); err != nil {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
			Payload: models.DocumentAttached{TenderID: t.ID, DocumentID: doc.ID, Name: doc.Name, ContentHash: doc.ContentHash},
		}}, nil
	})
}

func (s *Service) AssignEvaluator(ctx context.Context, actor models.Actor, id, evaluatorID string) (*models.Tender, audit.Receipt, error) {
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		if t.Status.Terminal() || t.Status == models.TenderAwarded {
			return nil, refuse(t, t.Status, "evaluators cannot be assigned now")
		}
		u, err := tx.GetUser(ctx, evaluatorID)
		if err != nil {
			return nil, err
		}
		if u.Role != models.RoleEvaluator {
			return nil, errs.Validation("evaluatorId", "user is not an evaluator")
		}
		added, err := tx.AssignEvaluator(ctx, t.ID, u.ID, now)
		if err != nil || !added {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
			Payload: models.EvaluatorAssigned{TenderID: t.ID, EvaluatorID: u.ID},
		}}, nil
	})
}

// CloseBidding moves an open or bidding tender to evaluation. Without force
// the bid deadline must have passed.
func (s *Service) CloseBidding(ctx context.Context, actor models.Actor, id string, force bool) (*models.Tender, audit.Receipt, error) {
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		return Close(ctx, tx, t, actor, now, force)
	})
}

// Close applies open/bidding -> evaluation inside an existing write.
// Shared by the sweep, the admin close and the first reveal.
func Close(ctx context.Context, tx *db.Storage, t *models.Tender, actor models.Actor, now time.Time, forced bool) ([]audit.Record, error) {
	commitments, err := tx.CountBids(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	if err := Check(t, models.TenderEvaluation, now, Facts{Commitments: commitments, Forced: forced}); err != nil {
		return nil, err
	}
	from := t.Status
	apply(t, models.TenderEvaluation, now)
	if err := tx.UpdateTender(ctx, t); err != nil {
		return nil, err
	}
	return []audit.Record{{
		EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
		Payload: models.BiddingClosed{TenderID: t.ID, From: string(from), Forced: forced, Commitments: commitments},
	}}, nil
}

// StartBidding applies open -> bidding after the first accepted commitment.
func StartBidding(ctx context.Context, tx *db.Storage, t *models.Tender, actor models.Actor, now time.Time, firstBidID string) ([]audit.Record, error) {
	if err := Check(t, models.TenderBidding, now, Facts{Commitments: 1}); err != nil {
		return nil, err
	}
	apply(t, models.TenderBidding, now)
	if err := tx.UpdateTender(ctx, t); err != nil {
		return nil, err
	}
	return []audit.Record{{
		EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
		Payload: models.BiddingStarted{TenderID: t.ID, FirstBidID: firstBidID},
	}}, nil
}

func facts(ctx context.Context, tx *db.Storage, tenderID string) (Facts, error) {
	var f Facts
	var err error
	if f.Commitments, err = tx.CountBids(ctx, tenderID); err != nil {
		return f, err
	}
	if f.Pending, err = tx.CountBids(ctx, tenderID, models.BidCommitted); err != nil {
		return f, err
	}
	if f.Revealed, err = tx.CountBids(ctx, tenderID, models.BidRevealed, models.BidEvaluated); err != nil {
		return f, err
	}
	return f, nil
}

// Award finalizes the top-ranked bid. Ranked bids move to evaluated and the
// winner is flagged; exactly one Award Finalized entry is appended.
func (s *Service) Award(ctx context.Context, actor models.Actor, id string) (*models.Tender, audit.Receipt, error) {
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		f, err := facts(ctx, tx, t.ID)
		if err != nil {
			return nil, err
		}
		ranked, err := evaluation.RankIn(ctx, tx, t.ID)
		if err != nil {
			return nil, err
		}
		f.Eligible = len(ranked)
		if err := Check(t, models.TenderAwarded, now, f); err != nil {
			return nil, err
		}
		winner, err := evaluation.Winner(t.ID, ranked)
		if err != nil {
			return nil, err
		}

		for _, r := range ranked {
			b, err := tx.GetBid(ctx, r.BidID)
			if err != nil {
				return nil, err
			}
			b.Phase = models.BidEvaluated
			b.IsWinner = r.BidID == winner.BidID
			b.UpdatedAt = now
			if err := tx.UpdateBid(ctx, b); err != nil {
				return nil, err
			}
		}

		apply(t, models.TenderAwarded, now)
		t.AwardedBidID = &winner.BidID
		t.AwardedTo = &winner.BidderID
		t.AwardAmount = decimal.NewNullDecimal(winner.Amount)
		t.AwardScore = &winner.Score
		t.AwardedAt = &now
		if err := tx.UpdateTender(ctx, t); err != nil {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
			Payload: models.AwardFinalized{
				TenderID: t.ID,
				BidID:    winner.BidID,
				WinnerID: winner.BidderID,
				Amount:   winner.Amount,
				Score:    winner.Score,
			},
		}}, nil
	})
}

func (s *Service) reason(r string) (string, error) {
	r = s.clean(r)
	if len(r) > maxReason {
		return "", errs.Validation("reason", "too long")
	}
	return r, nil
}

func (s *Service) Archive(ctx context.Context, actor models.Actor, id, reason string) (*models.Tender, audit.Receipt, error) {
	reason, err := s.reason(reason)
	if err != nil {
		return nil, nil, err
	}
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		f, err := facts(ctx, tx, t.ID)
		if err != nil {
			return nil, err
		}
		if err := Check(t, models.TenderArchived, now, f); err != nil {
			return nil, err
		}
		from := t.Status
		apply(t, models.TenderArchived, now)
		if reason != "" {
			t.ClosingReason = &reason
		}
		if err := tx.UpdateTender(ctx, t); err != nil {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
			Payload: models.TenderArchivedEntry{TenderID: t.ID, From: string(from), Reason: reason},
		}}, nil
	})
}

func (s *Service) Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.Tender, audit.Receipt, error) {
	reason, err := s.reason(reason)
	if err != nil {
		return nil, nil, err
	}
	return s.mutate(ctx, actor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		if err := Check(t, models.TenderCancelled, now, Facts{Reason: reason}); err != nil {
			return nil, err
		}
		from := t.Status
		apply(t, models.TenderCancelled, now)
		t.ClosingReason = &reason
		if err := tx.UpdateTender(ctx, t); err != nil {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: actor.ID,
			Payload: models.TenderCancelledEntry{TenderID: t.ID, From: string(from), Reason: reason},
		}}, nil
	})
}

// RemindDeadline appends one Deadline Reminder per tender once the bid
// deadline is within lead. Returns an empty receipt when nothing is due.
func (s *Service) RemindDeadline(ctx context.Context, id string, lead time.Duration) (audit.Receipt, error) {
	_, receipt, err := s.mutate(ctx, models.SystemActor, id, func(tx *db.Storage, t *models.Tender, now time.Time) ([]audit.Record, error) {
		if t.Status != models.TenderOpen && t.Status != models.TenderBidding {
			return nil, nil
		}
		if !now.Before(*t.BidDeadline) || t.BidDeadline.Sub(now) > lead {
			return nil, nil
		}
		sent, err := tx.HasAuditAction(ctx, t.ID, models.ActionDeadlineReminder)
		if err != nil || sent {
			return nil, err
		}
		return []audit.Record{{
			EntityKind: models.EntityTender, EntityID: t.ID, UserID: models.SystemActor.ID,
			Payload: models.DeadlineReminder{TenderID: t.ID, BidDeadline: *t.BidDeadline},
		}}, nil
	})
	return receipt, err
}

// Get hides drafts from everyone except the owner.
func (s *Service) Get(ctx context.Context, actor models.Actor, id string) (*models.Tender, error) {
	t, err := s.store.GetTender(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status == models.TenderDraft && t.CreatedBy != actor.ID {
		return nil, errs.NotFound("tender", id)
	}
	return t, nil
}

type ListFilter struct {
	Status   models.TenderStatus
	Category string
	Search   string
	Mine     bool
	db.Page
}

func (s *Service) List(ctx context.Context, actor models.Actor, f ListFilter) ([]models.Tender, error) {
	if f.Status != "" && !models.ValidTenderStatus(f.Status) {
		return nil, errs.Validation("status", "unknown status")
	}
	if f.Category != "" && !slices.Contains(models.Categories, f.Category) {
		return nil, errs.Validation("category", "unknown category")
	}
	filter := db.TenderFilter{
		Category:   f.Category,
		Search:     strings.TrimSpace(f.Search),
		HideDrafts: !f.Mine,
		OwnerID:    actor.ID,
		Page:       f.Page,
	}
	if f.Status != "" {
		filter.Statuses = []models.TenderStatus{f.Status}
	}
	return s.store.ListTenders(ctx, filter)
}
