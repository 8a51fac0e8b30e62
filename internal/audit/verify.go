package audit

import (
	"context"
	"fmt"
	"log/slog"

	"etender/internal/errs"
	"etender/models"
)

const verifyBatch = 500

// Report is the outcome of a chain verification.
type Report struct {
	Valid     bool   `json:"valid"`
	BrokenAt  string `json:"brokenAt,omitempty"`
	BrokenSeq int64  `json:"brokenSeq,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Checked   int    `json:"checked"`
	HeadSeq   int64  `json:"headSeq"`
}

// VerifyChain recomputes every entry from fromSeq (1 when <= 1) to the head
// and reports the first mismatch. Finding corruption halts the log.
func (l *Log) VerifyChain(ctx context.Context, fromSeq int64) (Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rep, err := l.verify(ctx, fromSeq)
	if err != nil {
		return Report{}, err
	}
	if !rep.Valid {
		l.halt(&errs.AuditChainCorruptionError{EntryID: rep.BrokenAt, Seq: rep.BrokenSeq, Reason: rep.Reason})
	}
	return rep, nil
}

// Resume re-verifies the whole chain and clears the halt only if it is valid.
func (l *Log) Resume(ctx context.Context) (Report, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rep, err := l.verify(ctx, 1)
	if err != nil {
		return Report{}, err
	}
	if !rep.Valid {
		l.halt(&errs.AuditChainCorruptionError{EntryID: rep.BrokenAt, Seq: rep.BrokenSeq, Reason: rep.Reason})
		return rep, l.halted
	}
	if l.halted != nil {
		l.log.Info("audit log resumed", slog.Int64("head", rep.HeadSeq))
	}
	l.halted = nil
	return rep, nil
}

func (l *Log) verify(ctx context.Context, fromSeq int64) (Report, error) {
	if fromSeq < 1 {
		fromSeq = 1
	}

	expectPrev := GenesisHash
	if fromSeq > 1 {
		prev, err := l.store.GetAuditEntryBySeq(ctx, fromSeq-1)
		if err != nil {
			return Report{}, fmt.Errorf("verify from %d: %w", fromSeq, err)
		}
		expectPrev = prev.Hash
	}

	rep := Report{Valid: true}
	expectSeq := fromSeq
	after := fromSeq - 1
	for {
		batch, err := l.store.AuditEntriesAfter(ctx, after, verifyBatch)
		if err != nil {
			return Report{}, err
		}
		for _, e := range batch {
			if reason := check(e, expectSeq, expectPrev); reason != "" {
				rep.Valid = false
				rep.BrokenAt = e.ID
				rep.BrokenSeq = e.Seq
				rep.Reason = reason
				return rep, nil
			}
			rep.Checked++
			rep.HeadSeq = e.Seq
			expectSeq = e.Seq + 1
			expectPrev = e.Hash
			after = e.Seq
		}
		if len(batch) < verifyBatch {
			return rep, nil
		}
	}
}

func check(e models.AuditEntry, expectSeq int64, expectPrev string) string {
	if e.Seq != expectSeq {
		return fmt.Sprintf("expected seq %d, found %d", expectSeq, e.Seq)
	}
	if e.PrevHash != expectPrev {
		return "prev hash does not match predecessor"
	}
	if _, err := models.DecodePayload(e.Action, []byte(e.Payload)); err != nil {
		return "undecodable payload: " + err.Error()
	}
	got, err := EntryHash(e)
	if err != nil {
		return err.Error()
	}
	if got != e.Hash {
		return "hash mismatch"
	}
	return ""
}
