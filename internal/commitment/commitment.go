// Package commitment computes the hash commitments used by sealed bids and
// the integrity hashes stored with evaluations.
//
// A bid commitment binds (amount, nonce, bidder, tender) without revealing the
// amount. The bidder computes it offline, submits only the hash before the bid
// deadline and discloses amount and nonce in the reveal window.
//
// Formula: "0x" + hex(SHA256("v1" + "|" + len(f1) + ":" + f1 + "|" + ...))
//
// Fields are length-prefixed so that no two distinct inputs share a preimage.
// The amount is rendered with exactly 4 fractional digits, so 100, 100.0 and
// 100.0000 commit to the same value.
package commitment

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"etender/internal/errs"

	"github.com/shopspring/decimal"
)

const (
	version     = "v1"
	prefix      = "0x"
	AmountScale = 4
	MaxNonceLen = 256
	hashHexLen  = sha256.Size * 2
)

// canonical joins fields with their lengths so that "a|b" and "a", "b" differ.
func canonical(fields ...string) []byte {
	var b strings.Builder
	b.WriteString(version)
	for _, f := range fields {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}
	return []byte(b.String())
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return prefix + hex.EncodeToString(sum[:])
}

// ValidateAmount rejects negative amounts and amounts finer than AmountScale.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errs.Validation("amount", "must not be negative")
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return errs.Validation("amount", fmt.Sprintf("at most %d fractional digits", AmountScale))
	}
	return nil
}

func validate(amount decimal.Decimal, nonce, bidderID, tenderID string) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if nonce == "" {
		return errs.Validation("nonce", "must not be empty")
	}
	if len(nonce) > MaxNonceLen {
		return errs.Validation("nonce", fmt.Sprintf("longer than %d bytes", MaxNonceLen))
	}
	if bidderID == "" {
		return errs.Validation("bidderId", "must not be empty")
	}
	if tenderID == "" {
		return errs.Validation("tenderId", "must not be empty")
	}
	return nil
}

// Commit returns the commitment hash for a sealed bid.
// Malformed input is rejected before anything is hashed.
func Commit(amount decimal.Decimal, nonce, bidderID, tenderID string) (string, error) {
	if err := validate(amount, nonce, bidderID, tenderID); err != nil {
		return "", err
	}
	return digest(canonical(amount.StringFixed(AmountScale), nonce, bidderID, tenderID)), nil
}

// Verify recomputes the commitment and compares it in constant time.
// Malformed input or a malformed hash never verifies.
func Verify(amount decimal.Decimal, nonce, bidderID, tenderID, hash string) bool {
	if !WellFormed(hash) {
		return false
	}
	got, err := Commit(amount, nonce, bidderID, tenderID)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(hash))) == 1
}

// WellFormed reports whether s looks like a commitment: 0x followed by 64 hex digits.
func WellFormed(s string) bool {
	if len(s) != len(prefix)+hashHexLen || !strings.HasPrefix(s, prefix) {
		return false
	}
	_, err := hex.DecodeString(s[len(prefix):])
	return err == nil
}

// Normalize lowercases a well-formed hash or fails with a validation error.
func Normalize(field, s string) (string, error) {
	s = strings.TrimSpace(s)
	if !WellFormed(strings.ToLower(s)) {
		return "", errs.Validation(field, "expected 0x followed by 64 hex digits")
	}
	return strings.ToLower(s), nil
}

// EvaluationFields are the scored fields covered by an evaluation integrity hash.
type EvaluationFields struct {
	EvaluationID   string
	TenderID       string
	BidID          string
	EvaluatorID    string
	TechnicalScore float64
	FinancialScore float64
	OverallScore   float64
	Comments       string
	EvaluatedAt    time.Time
}

// EvaluationHash tags the preimage with "evaluation" so it can never collide
// with a bid commitment. Scores use the shortest exact float rendering.
func EvaluationHash(f EvaluationFields) string {
	return digest(canonical(
		"evaluation",
		f.EvaluationID,
		f.TenderID,
		f.BidID,
		f.EvaluatorID,
		strconv.FormatFloat(f.TechnicalScore, 'f', -1, 64),
		strconv.FormatFloat(f.FinancialScore, 'f', -1, 64),
		strconv.FormatFloat(f.OverallScore, 'f', -1, 64),
		f.Comments,
		f.EvaluatedAt.UTC().Format(time.RFC3339Nano),
	))
}
