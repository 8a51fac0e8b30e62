// Package audit keeps the append-only, hash-chained log of every state change.
//
// There is exactly one writer per process. Write runs the caller's business
// mutation and the append of the resulting entries in one storage transaction,
// so a caller never sees success for a change that was not logged. Across
// processes the UNIQUE seq and prev_hash columns turn a concurrent append into
// a failed insert instead of a fork.
//
// Before every append the current head is re-hashed. A mismatch means the
// stored log was modified outside this package; the log then halts and every
// write fails with AuditChainCorruptionError until Resume finds the full chain
// valid again.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"etender/db"
	"etender/internal/clock"
	"etender/internal/errs"
	"etender/models"

	"github.com/google/uuid"
)

// Record is one entry to append; the action comes from the payload type.
type Record struct {
	EntityKind models.EntityKind
	EntityID   string
	UserID     string
	Payload    models.AuditPayload
}

// Receipt lists the entries appended by one write, in seq order.
type Receipt []models.AuditEntry

// Seq returns the last appended seq, or 0 when nothing was appended.
func (r Receipt) Seq() int64 {
	if len(r) == 0 {
		return 0
	}
	return r[len(r)-1].Seq
}

// Hook is called after commit with the appended entries.
type Hook func(ctx context.Context, entries []models.AuditEntry)

type Log struct {
	store   *db.Storage
	clock   clock.Clock
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	halted *errs.AuditChainCorruptionError

	hooksMu sync.RWMutex
	hooks   []Hook
}

func New(store *db.Storage, clk clock.Clock, log *slog.Logger, timeout time.Duration) *Log {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Log{store: store, clock: clk, log: log.With(slog.String("component", "audit")), timeout: timeout}
}

func (l *Log) Subscribe(h Hook) {
	l.hooksMu.Lock()
	defer l.hooksMu.Unlock()
	l.hooks = append(l.hooks, h)
}

// Halted returns the corruption that stopped the log, if any.
func (l *Log) Halted() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.halted == nil {
		return nil
	}
	return l.halted
}

// Write runs fn inside a transaction and appends the records it returns,
// chained to the current head. Nothing is committed if fn or the append fails.
func (l *Log) Write(ctx context.Context, fn func(tx *db.Storage) ([]Record, error)) (Receipt, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	receipt, err := l.write(ctx, fn)
	if err != nil {
		return nil, err
	}
	l.notify(ctx, receipt)
	return receipt, nil
}

func (l *Log) write(ctx context.Context, fn func(tx *db.Storage) ([]Record, error)) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.halted != nil {
		return nil, l.halted
	}

	var receipt Receipt
	err := l.store.InTx(ctx, func(tx *db.Storage) error {
		records, err := fn(tx)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		head, err := tx.LastAuditEntry(ctx)
		if err != nil {
			return err
		}
		if head != nil {
			if err := l.checkHead(*head); err != nil {
				return err
			}
		}

		for _, rec := range records {
			entry, err := l.chain(head, rec)
			if err != nil {
				return err
			}
			if err := tx.AppendAuditEntry(ctx, &entry); err != nil {
				return err
			}
			receipt = append(receipt, entry)
			head = &receipt[len(receipt)-1]
		}
		return nil
	})
	if err != nil {
		var corrupt *errs.AuditChainCorruptionError
		if errors.As(err, &corrupt) {
			l.halt(corrupt)
		}
		return nil, err
	}
	return receipt, nil
}

// Append is Write for a single record with no business mutation.
func (l *Log) Append(ctx context.Context, rec Record) (models.AuditEntry, error) {
	receipt, err := l.Write(ctx, func(*db.Storage) ([]Record, error) {
		return []Record{rec}, nil
	})
	if err != nil {
		return models.AuditEntry{}, err
	}
	return receipt[0], nil
}

func (l *Log) checkHead(head models.AuditEntry) error {
	want, err := EntryHash(head)
	if err != nil {
		return err
	}
	if want != head.Hash {
		return &errs.AuditChainCorruptionError{EntryID: head.ID, Seq: head.Seq, Reason: "head hash mismatch"}
	}
	return nil
}

func (l *Log) chain(head *models.AuditEntry, rec Record) (models.AuditEntry, error) {
	if rec.Payload == nil {
		return models.AuditEntry{}, fmt.Errorf("audit record for %s %s has no payload", rec.EntityKind, rec.EntityID)
	}
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return models.AuditEntry{}, fmt.Errorf("encode %s payload: %w", rec.Payload.Action(), err)
	}

	entry := models.AuditEntry{
		ID:         uuid.NewString(),
		Seq:        1,
		Action:     rec.Payload.Action(),
		EntityKind: rec.EntityKind,
		EntityID:   rec.EntityID,
		UserID:     rec.UserID,
		Timestamp:  clock.Normalize(l.clock.Now()),
		Payload:    string(payload),
		PrevHash:   GenesisHash,
	}
	if head != nil {
		entry.Seq = head.Seq + 1
		entry.PrevHash = head.Hash
		// порядок по времени совпадает с порядком seq
		if entry.Timestamp.Before(head.Timestamp) {
			entry.Timestamp = head.Timestamp
		}
	}

	entry.Hash, err = EntryHash(entry)
	if err != nil {
		return models.AuditEntry{}, err
	}
	return entry, nil
}

func (l *Log) halt(err *errs.AuditChainCorruptionError) {
	if l.halted == nil {
		l.log.Error("audit log halted", slog.Int64("seq", err.Seq), slog.String("entry", err.EntryID), slog.String("reason", err.Reason))
	}
	l.halted = err
}

func (l *Log) notify(ctx context.Context, entries []models.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	l.hooksMu.RLock()
	hooks := append([]Hook(nil), l.hooks...)
	l.hooksMu.RUnlock()

	// хуки не должны зависеть от таймаута записи
	ctx = context.WithoutCancel(ctx)
	for _, h := range hooks {
		h(ctx, entries)
	}
}

// List returns entries ordered by timestamp, then seq.
func (l *Log) List(ctx context.Context, f db.AuditFilter) ([]models.AuditEntry, error) {
	return l.store.ListAuditEntries(ctx, f)
}

// Decode returns the typed payload of a stored entry.
func Decode(e models.AuditEntry) (models.AuditPayload, error) {
	return models.DecodePayload(e.Action, []byte(e.Payload))
}
