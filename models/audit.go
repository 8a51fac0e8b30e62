package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type AuditAction string

const (
	ActionTenderCreated       AuditAction = "Tender Created"
	ActionTenderUpdated       AuditAction = "Tender Updated"
	ActionDocumentAttached    AuditAction = "Document Attached"
	ActionEvaluatorAssigned   AuditAction = "Evaluator Assigned"
	ActionTenderPublished     AuditAction = "Tender Published"
	ActionBiddingStarted      AuditAction = "Bidding Started"
	ActionBidSubmitted        AuditAction = "Bid Submitted"
	ActionBiddingClosed       AuditAction = "Bidding Closed"
	ActionBidRevealed         AuditAction = "Bid Revealed"
	ActionRevealRejected      AuditAction = "Reveal Rejected"
	ActionBidForfeited        AuditAction = "Bid Forfeited"
	ActionEvaluationCompleted AuditAction = "Evaluation Completed"
	ActionAwardFinalized      AuditAction = "Award Finalized"
	ActionTenderArchived      AuditAction = "Tender Archived"
	ActionTenderCancelled     AuditAction = "Tender Cancelled"
	ActionDeadlineReminder    AuditAction = "Deadline Reminder"
)

// AuditPayload is the fixed field set stored with one audit action.
// Every action has exactly one payload type.
type AuditPayload interface {
	Action() AuditAction
	// TenderRef reports the tender the entry belongs to, for audience lookup.
	TenderRef() string
}

type TenderCreated struct {
	TenderID       string          `json:"tenderId"`
	Title          string          `json:"title"`
	Category       string          `json:"category"`
	EstimatedValue decimal.Decimal `json:"estimatedValue"`
	Currency       string          `json:"currency"`
}

type TenderUpdated struct {
	TenderID string   `json:"tenderId"`
	Fields   []string `json:"fields"`
}

type DocumentAttached struct {
	TenderID    string `json:"tenderId"`
	DocumentID  string `json:"documentId"`
	Name        string `json:"name"`
	ContentHash string `json:"contentHash"`
}

type EvaluatorAssigned struct {
	TenderID    string `json:"tenderId"`
	EvaluatorID string `json:"evaluatorId"`
}

type TenderPublished struct {
	TenderID           string    `json:"tenderId"`
	Title              string    `json:"title"`
	BidDeadline        time.Time `json:"bidDeadline"`
	EvaluationDeadline time.Time `json:"evaluationDeadline"`
}

type BiddingStarted struct {
	TenderID   string `json:"tenderId"`
	FirstBidID string `json:"firstBidId"`
}

type BidSubmitted struct {
	TenderID   string `json:"tenderId"`
	BidID      string `json:"bidId"`
	BidderID   string `json:"bidderId"`
	CommitHash string `json:"commitHash"`
}

type BiddingClosed struct {
	TenderID    string `json:"tenderId"`
	From        string `json:"from"`
	Forced      bool   `json:"forced"`
	Commitments int    `json:"commitments"`
}

type BidRevealedEntry struct {
	TenderID   string          `json:"tenderId"`
	BidID      string          `json:"bidId"`
	BidderID   string          `json:"bidderId"`
	Amount     decimal.Decimal `json:"amount"`
	RevealHash string          `json:"revealHash"`
}

type RevealRejected struct {
	TenderID string `json:"tenderId"`
	BidID    string `json:"bidId"`
	BidderID string `json:"bidderId"`
	Failures int    `json:"failures"`
}

type BidForfeitedEntry struct {
	TenderID string `json:"tenderId"`
	BidID    string `json:"bidId"`
	BidderID string `json:"bidderId"`
}

type EvaluationCompleted struct {
	TenderID       string  `json:"tenderId"`
	BidID          string  `json:"bidId"`
	EvaluationID   string  `json:"evaluationId"`
	EvaluatorID    string  `json:"evaluatorId"`
	TechnicalScore float64 `json:"technicalScore"`
	FinancialScore float64 `json:"financialScore"`
	OverallScore   float64 `json:"overallScore"`
	IntegrityHash  string  `json:"integrityHash"`
}

type AwardFinalized struct {
	TenderID string          `json:"tenderId"`
	BidID    string          `json:"bidId"`
	WinnerID string          `json:"winnerId"`
	Amount   decimal.Decimal `json:"amount"`
	Score    float64         `json:"score"`
}

type TenderArchivedEntry struct {
	TenderID string `json:"tenderId"`
	From     string `json:"from"`
	Reason   string `json:"reason"`
}

type TenderCancelledEntry struct {
	TenderID string `json:"tenderId"`
	From     string `json:"from"`
	Reason   string `json:"reason"`
}

type DeadlineReminder struct {
	TenderID    string    `json:"tenderId"`
	BidDeadline time.Time `json:"bidDeadline"`
}

func (TenderCreated) Action() AuditAction       { return ActionTenderCreated }
func (TenderUpdated) Action() AuditAction       { return ActionTenderUpdated }
func (DocumentAttached) Action() AuditAction    { return ActionDocumentAttached }
func (EvaluatorAssigned) Action() AuditAction   { return ActionEvaluatorAssigned }
func (TenderPublished) Action() AuditAction     { return ActionTenderPublished }
func (BiddingStarted) Action() AuditAction      { return ActionBiddingStarted }
func (BidSubmitted) Action() AuditAction        { return ActionBidSubmitted }
func (BiddingClosed) Action() AuditAction       { return ActionBiddingClosed }
func (BidRevealedEntry) Action() AuditAction         { return ActionBidRevealed }
func (RevealRejected) Action() AuditAction      { return ActionRevealRejected }
func (BidForfeitedEntry) Action() AuditAction        { return ActionBidForfeited }
func (EvaluationCompleted) Action() AuditAction { return ActionEvaluationCompleted }
func (AwardFinalized) Action() AuditAction      { return ActionAwardFinalized }
func (TenderArchivedEntry) Action() AuditAction      { return ActionTenderArchived }
func (TenderCancelledEntry) Action() AuditAction     { return ActionTenderCancelled }
func (DeadlineReminder) Action() AuditAction    { return ActionDeadlineReminder }

func (p TenderCreated) TenderRef() string       { return p.TenderID }
func (p TenderUpdated) TenderRef() string       { return p.TenderID }
func (p DocumentAttached) TenderRef() string    { return p.TenderID }
func (p EvaluatorAssigned) TenderRef() string   { return p.TenderID }
func (p TenderPublished) TenderRef() string     { return p.TenderID }
func (p BiddingStarted) TenderRef() string      { return p.TenderID }
func (p BidSubmitted) TenderRef() string        { return p.TenderID }
func (p BiddingClosed) TenderRef() string       { return p.TenderID }
func (p BidRevealedEntry) TenderRef() string         { return p.TenderID }
func (p RevealRejected) TenderRef() string      { return p.TenderID }
func (p BidForfeitedEntry) TenderRef() string        { return p.TenderID }
func (p EvaluationCompleted) TenderRef() string { return p.TenderID }
func (p AwardFinalized) TenderRef() string      { return p.TenderID }
func (p TenderArchivedEntry) TenderRef() string      { return p.TenderID }
func (p TenderCancelledEntry) TenderRef() string     { return p.TenderID }
func (p DeadlineReminder) TenderRef() string    { return p.TenderID }

// DecodePayload разбирает сохраненный payload по метке действия.
// Возвращает значение (не указатель), как и при записи
func DecodePayload(action AuditAction, raw []byte) (AuditPayload, error) {
	switch action {
	case ActionTenderCreated:
		return decode[TenderCreated](action, raw)
	case ActionTenderUpdated:
		return decode[TenderUpdated](action, raw)
	case ActionDocumentAttached:
		return decode[DocumentAttached](action, raw)
	case ActionEvaluatorAssigned:
		return decode[EvaluatorAssigned](action, raw)
	case ActionTenderPublished:
		return decode[TenderPublished](action, raw)
	case ActionBiddingStarted:
		return decode[BiddingStarted](action, raw)
	case ActionBidSubmitted:
		return decode[BidSubmitted](action, raw)
	case ActionBiddingClosed:
		return decode[BiddingClosed](action, raw)
	case ActionBidRevealed:
		return decode[BidRevealedEntry](action, raw)
	case ActionRevealRejected:
		return decode[RevealRejected](action, raw)
	case ActionBidForfeited:
		return decode[BidForfeitedEntry](action, raw)
	case ActionEvaluationCompleted:
		return decode[EvaluationCompleted](action, raw)
	case ActionAwardFinalized:
		return decode[AwardFinalized](action, raw)
	case ActionTenderArchived:
		return decode[TenderArchivedEntry](action, raw)
	case ActionTenderCancelled:
		return decode[TenderCancelledEntry](action, raw)
	case ActionDeadlineReminder:
		return decode[DeadlineReminder](action, raw)
	default:
		return nil, fmt.Errorf("unknown audit action %q", action)
	}
}

func decode[T AuditPayload](action AuditAction, raw []byte) (AuditPayload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", action, err)
	}
	return v, nil
}
