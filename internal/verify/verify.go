// Package verify answers "what is this hash and does it still check out".
//
// A hash may be an audit entry hash, a bid commitment (or its reveal hash), an
// evaluation integrity hash or a document content hash. Every match is
// recomputed from stored data; nothing is trusted as-is.
package verify

import (
	"context"
	"strings"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/commitment"
	"etender/internal/errs"
	"etender/internal/evaluation"
	"etender/models"
)

type MatchKind string

const (
	MatchAuditEntry MatchKind = "audit_entry"
	MatchBid        MatchKind = "bid"
	MatchEvaluation MatchKind = "evaluation"
	MatchDocument   MatchKind = "document"
)

type Match struct {
	Kind     MatchKind `json:"kind"`
	ID       string    `json:"id"`
	TenderID string    `json:"tenderId,omitempty"`
	Verified bool      `json:"verified"`
	Reason   string    `json:"reason,omitempty"`
	Record   any       `json:"record"`
}

type Result struct {
	Hash    string  `json:"hash"`
	Matches []Match `json:"matches"`
}

type Verifier struct {
	store *db.Storage
}

func New(store *db.Storage) *Verifier {
	return &Verifier{store: store}
}

// Lookup fails with NotFoundError when nothing carries the hash.
func (v *Verifier) Lookup(ctx context.Context, hash string) (Result, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return Result{}, errs.Validation("hash", "is required")
	}
	res := Result{Hash: hash, Matches: []Match{}}

	// содержимое документов непрозрачно, поэтому регистр сохраняем
	docs, err := v.store.FindDocumentsByHash(ctx, hash)
	if err != nil {
		return Result{}, err
	}
	for _, d := range docs {
		res.Matches = append(res.Matches, Match{
			Kind: MatchDocument, ID: d.ID, TenderID: d.TenderID, Verified: true,
			Reason: "content hash registered at upload", Record: d,
		})
	}

	if commitment.WellFormed(strings.ToLower(hash)) {
		h := strings.ToLower(hash)
		res.Hash = h
		if err := v.digests(ctx, h, &res); err != nil {
			return Result{}, err
		}
	}

	if len(res.Matches) == 0 {
		return Result{}, errs.NotFound("hash", hash)
	}
	return res, nil
}

func (v *Verifier) digests(ctx context.Context, hash string, res *Result) error {
	entry, err := v.store.FindAuditEntryByHash(ctx, hash)
	switch {
	case err == nil:
		m, err := v.entry(ctx, *entry)
		if err != nil {
			return err
		}
		res.Matches = append(res.Matches, m)
	case !errs.Is(err, errs.KindNotFound):
		return err
	}

	bids, err := v.store.FindBidsByHash(ctx, hash)
	if err != nil {
		return err
	}
	for _, b := range bids {
		res.Matches = append(res.Matches, bid(b))
	}

	evals, err := v.store.FindEvaluationsByHash(ctx, hash)
	if err != nil {
		return err
	}
	for _, e := range evals {
		ok := commitment.EvaluationHash(evaluation.Fields(&e)) == e.IntegrityHash
		m := Match{Kind: MatchEvaluation, ID: e.ID, TenderID: e.TenderID, Verified: ok, Record: e}
		if !ok {
			m.Reason = "scored fields no longer match the integrity hash"
		}
		res.Matches = append(res.Matches, m)
	}
	return nil
}

func (v *Verifier) entry(ctx context.Context, e models.AuditEntry) (Match, error) {
	m := Match{Kind: MatchAuditEntry, ID: e.ID, Verified: true, Record: e}
	if p, err := audit.Decode(e); err == nil {
		m.TenderID = p.TenderRef()
	}

	want, err := audit.EntryHash(e)
	if err != nil {
		return Match{}, err
	}
	if want != e.Hash {
		m.Verified, m.Reason = false, "entry fields do not match its hash"
		return m, nil
	}

	prev := audit.GenesisHash
	if e.Seq > 1 {
		p, err := v.store.GetAuditEntryBySeq(ctx, e.Seq-1)
		if errs.Is(err, errs.KindNotFound) {
			m.Verified, m.Reason = false, "predecessor entry is missing"
			return m, nil
		}
		if err != nil {
			return Match{}, err
		}
		prev = p.Hash
	}
	if prev != e.PrevHash {
		m.Verified, m.Reason = false, "entry is not chained to its predecessor"
	}
	return m, nil
}

func bid(b models.Bid) Match {
	m := Match{Kind: MatchBid, ID: b.ID, TenderID: b.TenderID, Record: b}
	if b.RevealNonce == nil || !b.BidAmount.Valid {
		m.Reason = "commitment not revealed yet"
		return m
	}
	m.Verified = commitment.Verify(b.BidAmount.Decimal, *b.RevealNonce, b.BidderID, b.TenderID, b.CommitHash)
	if !m.Verified {
		m.Reason = "revealed amount and nonce do not reproduce the commitment"
	}
	return m
}
