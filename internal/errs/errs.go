// Package errs holds the error taxonomy shared by every tendering component.
// Each error reports a stable Kind used by the HTTP layer for status mapping
// and a Detail map that ends up in the error envelope.
package errs

import (
	"errors"
	"fmt"
	"time"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindStateTransition     Kind = "state_transition"
	KindRevealMismatch      Kind = "reveal_mismatch"
	KindDuplicateBid        Kind = "duplicate_bid"
	KindDuplicateEvaluation Kind = "duplicate_evaluation"
	KindDeadlineExpired     Kind = "deadline_expired"
	KindNoEligibleBids      Kind = "no_eligible_bids"
	KindAuditCorruption     Kind = "audit_chain_corruption"
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindUnauthorized        Kind = "unauthorized"
	KindInternal            Kind = "internal"
)

type kinded interface {
	error
	Kind() Kind
	Detail() map[string]any
}

// KindOf returns the kind of the first typed error in the chain, or KindInternal.
func KindOf(err error) Kind {
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

func DetailOf(err error) map[string]any {
	var k kinded
	if errors.As(err, &k) {
		return k.Detail()
	}
	return nil
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

type ValidationError struct {
	Field  string
	Reason string
}

func Validation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
func (e *ValidationError) Kind() Kind { return KindValidation }
func (e *ValidationError) Detail() map[string]any {
	return map[string]any{"field": e.Field, "reason": e.Reason}
}

// StateTransitionError names the entity, the current and attempted states
// and the precondition that was not met.
type StateTransitionError struct {
	Entity   string
	EntityID string
	From     string
	To       string
	Reason   string
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s: %s", e.Entity, e.EntityID, e.From, e.To, e.Reason)
}
func (e *StateTransitionError) Kind() Kind { return KindStateTransition }
func (e *StateTransitionError) Detail() map[string]any {
	return map[string]any{"entity": e.Entity, "entityId": e.EntityID, "from": e.From, "to": e.To, "reason": e.Reason}
}

type RevealMismatchError struct {
	BidID    string
	Failures int
}

func (e *RevealMismatchError) Error() string {
	return fmt.Sprintf("reveal for bid %s does not match its commitment", e.BidID)
}
func (e *RevealMismatchError) Kind() Kind { return KindRevealMismatch }
func (e *RevealMismatchError) Detail() map[string]any {
	return map[string]any{"bidId": e.BidID, "failures": e.Failures}
}

type DuplicateBidError struct {
	TenderID      string
	BidderID      string
	ExistingBidID string
}

func (e *DuplicateBidError) Error() string {
	return fmt.Sprintf("bidder %s already has a bid on tender %s", e.BidderID, e.TenderID)
}
func (e *DuplicateBidError) Kind() Kind { return KindDuplicateBid }
func (e *DuplicateBidError) Detail() map[string]any {
	return map[string]any{"tenderId": e.TenderID, "bidderId": e.BidderID, "existingBidId": e.ExistingBidID}
}

type DuplicateEvaluationError struct {
	BidID       string
	EvaluatorID string
}

func (e *DuplicateEvaluationError) Error() string {
	return fmt.Sprintf("evaluator %s already scored bid %s", e.EvaluatorID, e.BidID)
}
func (e *DuplicateEvaluationError) Kind() Kind { return KindDuplicateEvaluation }
func (e *DuplicateEvaluationError) Detail() map[string]any {
	return map[string]any{"bidId": e.BidID, "evaluatorId": e.EvaluatorID}
}

// DeadlineExpiredError is returned when an action falls outside [OpensAt, ClosesAt).
// A zero bound means the window is open on that side.
type DeadlineExpiredError struct {
	Action   string
	Now      time.Time
	OpensAt  time.Time
	ClosesAt time.Time
}

func (e *DeadlineExpiredError) Error() string {
	if !e.OpensAt.IsZero() && e.Now.Before(e.OpensAt) {
		return fmt.Sprintf("%s not allowed before %s", e.Action, e.OpensAt.Format(time.RFC3339))
	}
	return fmt.Sprintf("%s not allowed after %s", e.Action, e.ClosesAt.Format(time.RFC3339))
}
func (e *DeadlineExpiredError) Kind() Kind { return KindDeadlineExpired }
func (e *DeadlineExpiredError) Detail() map[string]any {
	d := map[string]any{"action": e.Action, "now": e.Now}
	if !e.OpensAt.IsZero() {
		d["opensAt"] = e.OpensAt
	}
	if !e.ClosesAt.IsZero() {
		d["closesAt"] = e.ClosesAt
	}
	return d
}

type NoEligibleBidsError struct {
	TenderID string
}

func (e *NoEligibleBidsError) Error() string {
	return fmt.Sprintf("tender %s has no revealed and evaluated bids", e.TenderID)
}
func (e *NoEligibleBidsError) Kind() Kind             { return KindNoEligibleBids }
func (e *NoEligibleBidsError) Detail() map[string]any { return map[string]any{"tenderId": e.TenderID} }

// AuditChainCorruptionError is fatal: the log refuses writes until resumed.
type AuditChainCorruptionError struct {
	EntryID string
	Seq     int64
	Reason  string
}

func (e *AuditChainCorruptionError) Error() string {
	return fmt.Sprintf("audit chain corrupted at seq %d (%s): %s", e.Seq, e.EntryID, e.Reason)
}
func (e *AuditChainCorruptionError) Kind() Kind { return KindAuditCorruption }
func (e *AuditChainCorruptionError) Detail() map[string]any {
	return map[string]any{"entryId": e.EntryID, "seq": e.Seq, "reason": e.Reason}
}

type NotFoundError struct {
	Entity string
	ID     string
}

func NotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }
func (e *NotFoundError) Kind() Kind    { return KindNotFound }
func (e *NotFoundError) Detail() map[string]any {
	return map[string]any{"entity": e.Entity, "id": e.ID}
}

type ForbiddenError struct {
	UserID string
	Reason string
}

func Forbidden(userID, reason string) *ForbiddenError {
	return &ForbiddenError{UserID: userID, Reason: reason}
}

func (e *ForbiddenError) Error() string { return "forbidden: " + e.Reason }
func (e *ForbiddenError) Kind() Kind    { return KindForbidden }
func (e *ForbiddenError) Detail() map[string]any {
	return map[string]any{"userId": e.UserID, "reason": e.Reason}
}

type UnauthorizedError struct {
	Reason string
}

func (e *UnauthorizedError) Error() string          { return "unauthorized: " + e.Reason }
func (e *UnauthorizedError) Kind() Kind             { return KindUnauthorized }
func (e *UnauthorizedError) Detail() map[string]any { return map[string]any{"reason": e.Reason} }
