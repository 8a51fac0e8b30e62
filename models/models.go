package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type TenderStatus string

const (
	TenderDraft      TenderStatus = "draft"
	TenderOpen       TenderStatus = "open"
	TenderBidding    TenderStatus = "bidding"
	TenderEvaluation TenderStatus = "evaluation"
	TenderAwarded    TenderStatus = "awarded"
	TenderArchived   TenderStatus = "archived"
	TenderCancelled  TenderStatus = "cancelled"
)

func ValidTenderStatus(s TenderStatus) bool {
	switch s {
	case TenderDraft, TenderOpen, TenderBidding, TenderEvaluation, TenderAwarded, TenderArchived, TenderCancelled:
		return true
	default:
		return false
	}
}

// Terminal сообщает, что из статуса больше нет переходов
func (s TenderStatus) Terminal() bool {
	return s == TenderArchived || s == TenderCancelled
}

type BidPhase string

const (
	BidCommitted BidPhase = "committed"
	BidRevealed  BidPhase = "revealed"
	BidEvaluated BidPhase = "evaluated"
	BidForfeited BidPhase = "forfeited"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleBidder    Role = "bidder"
	RoleEvaluator Role = "evaluator"
)

func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleBidder, RoleEvaluator:
		return true
	default:
		return false
	}
}

type EntityKind string

const (
	EntityTender     EntityKind = "tender"
	EntityBid        EntityKind = "bid"
	EntityEvaluation EntityKind = "evaluation"
)

var Categories = []string{"Infrastructure", "Technology", "Education", "Healthcare", "Transportation", "Environment"}

var Currencies = []string{"USD", "EUR", "GBP"}

// Сущность Пользователя
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	Name         string    `db:"name" json:"name"`
	Role         Role      `db:"role" json:"role"`
	Organization string    `db:"organization" json:"organization"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Сущность Тендера
type Tender struct {
	ID                 string              `db:"id" json:"id"`
	Title              string              `db:"title" json:"title"`
	Description        string              `db:"description" json:"description"`
	Category           string              `db:"category" json:"category"`
	EstimatedValue     decimal.Decimal     `db:"estimated_value" json:"estimatedValue"`
	Currency           string              `db:"currency" json:"currency"`
	Status             TenderStatus        `db:"status" json:"status"`
	PublishDate        *time.Time          `db:"publish_date" json:"publishDate,omitempty"`
	BidDeadline        *time.Time          `db:"bid_deadline" json:"bidDeadline,omitempty"`
	EvaluationDeadline *time.Time          `db:"evaluation_deadline" json:"evaluationDeadline,omitempty"`
	CreatedBy          string              `db:"created_by" json:"createdBy"`
	AwardedBidID       *string             `db:"awarded_bid_id" json:"awardedBidId,omitempty"`
	AwardedTo          *string             `db:"awarded_to" json:"awardedTo,omitempty"`
	AwardAmount        decimal.NullDecimal `db:"award_amount" json:"awardAmount"`
	AwardScore         *float64            `db:"award_score" json:"awardScore,omitempty"`
	AwardedAt          *time.Time          `db:"awarded_at" json:"awardedAt,omitempty"`
	ClosingReason      *string             `db:"closing_reason" json:"closingReason,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt          time.Time           `db:"updated_at" json:"-"`

	Documents  []TenderDocument `db:"-" json:"documents"`
	Evaluators []string         `db:"-" json:"evaluators"`
}

// Ссылка на документ тендера. ContentHash непрозрачен (вместо IPFS-хэша)
type TenderDocument struct {
	ID          string    `db:"id" json:"id"`
	TenderID    string    `db:"tender_id" json:"tenderId"`
	Name        string    `db:"name" json:"name"`
	MimeType    string    `db:"mime_type" json:"type"`
	SizeBytes   int64     `db:"size_bytes" json:"size"`
	ContentHash string    `db:"content_hash" json:"contentHash"`
	UploadedBy  string    `db:"uploaded_by" json:"uploadedBy"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploadedAt"`
}

// Сущность Предложения (commit/reveal)
type Bid struct {
	ID             string              `db:"id" json:"id"`
	TenderID       string              `db:"tender_id" json:"tenderId"`
	BidderID       string              `db:"bidder_id" json:"bidderId"`
	CommitHash     string              `db:"commit_hash" json:"commitHash"`
	RevealHash     *string             `db:"reveal_hash" json:"revealHash,omitempty"`
	RevealNonce    *string             `db:"reveal_nonce" json:"revealNonce,omitempty"`
	BidAmount      decimal.NullDecimal `db:"bid_amount" json:"bidAmount"`
	Phase          BidPhase            `db:"phase" json:"status"`
	RevealFailures int                 `db:"reveal_failures" json:"revealFailures"`
	IsWinner       bool                `db:"is_winner" json:"isWinner"`
	SubmittedAt    time.Time           `db:"submitted_at" json:"submittedAt"`
	RevealedAt     *time.Time          `db:"revealed_at" json:"revealedAt,omitempty"`
	UpdatedAt      time.Time           `db:"updated_at" json:"-"`
}

// Сущность Оценки
type Evaluation struct {
	ID             string    `db:"id" json:"id"`
	TenderID       string    `db:"tender_id" json:"tenderId"`
	BidID          string    `db:"bid_id" json:"bidId"`
	EvaluatorID    string    `db:"evaluator_id" json:"evaluatorId"`
	TechnicalScore float64   `db:"technical_score" json:"technicalScore"`
	FinancialScore float64   `db:"financial_score" json:"financialScore"`
	OverallScore   float64   `db:"overall_score" json:"overallScore"`
	Comments       string    `db:"comments" json:"comments"`
	EvaluatedAt    time.Time `db:"evaluated_at" json:"evaluatedAt"`
	IntegrityHash  string    `db:"integrity_hash" json:"integrityHash"`
}

// Запись журнала аудита. Payload хранится как есть и входит в хэш
type AuditEntry struct {
	ID         string      `db:"id" json:"id"`
	Seq        int64       `db:"seq" json:"seq"`
	Action     AuditAction `db:"action" json:"action"`
	EntityKind EntityKind  `db:"entity_kind" json:"entity"`
	EntityID   string      `db:"entity_id" json:"entityId"`
	UserID     string      `db:"user_id" json:"userId"`
	Timestamp  time.Time   `db:"recorded_at" json:"timestamp"`
	Payload    string      `db:"payload" json:"-"`
	PrevHash   string      `db:"prev_hash" json:"prevHash"`
	Hash       string      `db:"hash" json:"hash"`
}

func (e AuditEntry) MarshalJSON() ([]byte, error) {
	type plain AuditEntry
	details := json.RawMessage(e.Payload)
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}
	return json.Marshal(struct {
		plain
		Details json.RawMessage `json:"details"`
	}{plain(e), details})
}

type NotificationType string

const (
	NotifyDeadline     NotificationType = "deadline"
	NotifyStatusChange NotificationType = "status_change"
	NotifyEvaluation   NotificationType = "evaluation"
	NotifyAward        NotificationType = "award"
)

// Уведомление пользователю. Меняется только флаг прочтения
type Notification struct {
	ID          string           `db:"id" json:"id"`
	UserID      string           `db:"user_id" json:"userId"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	IsRead      bool             `db:"is_read" json:"isRead"`
	EntryID     string           `db:"entry_id" json:"auditEntryId"`
	RelatedType EntityKind       `db:"related_type" json:"relatedType"`
	RelatedID   string           `db:"related_id" json:"relatedId"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID   string
	Role Role
}

// SystemActor drives deadline transitions from the background sweep.
var SystemActor = Actor{ID: "system", Role: RoleAdmin}

func (a Actor) IsSystem() bool { return a.ID == SystemActor.ID }
