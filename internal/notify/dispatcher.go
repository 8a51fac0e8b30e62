package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/errs"
	"etender/models"
)

const (
	cursorName = "notifications"
	batchSize  = 200
)

// Dispatcher persists derived notifications. It reads the audit log from a
// stored cursor, so entries committed while the process was down are
// delivered by the next CatchUp.
type Dispatcher struct {
	store *db.Storage
	log   *slog.Logger

	mu sync.Mutex
}

func NewDispatcher(store *db.Storage, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{store: store, log: log.With(slog.String("component", "notify"))}
}

// Handle is the audit subscriber. The committed entries are already past the
// cursor, so it simply catches up.
func (d *Dispatcher) Handle(ctx context.Context, entries []models.AuditEntry) {
	if len(entries) == 0 {
		return
	}
	if _, err := d.CatchUp(ctx); err != nil {
		d.log.Error("notification dispatch failed",
			slog.Int64("seq", entries[len(entries)-1].Seq), slog.String("error", err.Error()))
	}
}

// CatchUp delivers every entry after the cursor and returns how many
// notifications were inserted.
func (d *Dispatcher) CatchUp(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	after, err := d.store.GetCursor(ctx, cursorName)
	if err != nil {
		return 0, err
	}
	inserted := 0
	for {
		entries, err := d.store.AuditEntriesAfter(ctx, after, batchSize)
		if err != nil {
			return inserted, err
		}
		if len(entries) == 0 {
			return inserted, nil
		}
		audiences := map[string]*Audience{}
		for _, e := range entries {
			n, err := d.deliver(ctx, e, audiences)
			if err != nil {
				return inserted, fmt.Errorf("dispatch entry %d: %w", e.Seq, err)
			}
			inserted += n
			after = e.Seq
		}
		if err := d.store.AdvanceCursor(ctx, cursorName, after); err != nil {
			return inserted, err
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e models.AuditEntry, cache map[string]*Audience) (int, error) {
	payload, err := audit.Decode(e)
	if err != nil {
		return 0, err
	}
	tenderID := payload.TenderRef()
	a, ok := cache[tenderID]
	if !ok {
		a, err = d.audience(ctx, tenderID)
		if errs.Is(err, errs.KindNotFound) {
			d.log.Warn("entry refers to unknown tender", slog.Int64("seq", e.Seq), slog.String("tender", tenderID))
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		cache[tenderID] = a
	}

	inserted := 0
	for _, n := range Derive(e, payload, *a) {
		ok, err := d.store.InsertNotification(ctx, &n)
		if err != nil {
			return inserted, err
		}
		if ok {
			inserted++
		}
	}
	return inserted, nil
}

func (d *Dispatcher) audience(ctx context.Context, tenderID string) (*Audience, error) {
	t, err := d.store.GetTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	bids, err := d.store.ListBidsForTender(ctx, tenderID)
	if err != nil {
		return nil, err
	}
	a := &Audience{Owner: t.CreatedBy, Title: t.Title, Evaluators: t.Evaluators}
	for _, b := range bids {
		a.Bidders = append(a.Bidders, b.BidderID)
	}
	return a, nil
}

func (d *Dispatcher) List(ctx context.Context, actor models.Actor, unreadOnly bool, page db.Page) ([]models.Notification, error) {
	return d.store.ListNotifications(ctx, actor.ID, unreadOnly, page)
}

// MarkRead flips the read flag of the caller's own notification.
func (d *Dispatcher) MarkRead(ctx context.Context, actor models.Actor, id string) (*models.Notification, error) {
	return d.store.MarkNotificationRead(ctx, id, actor.ID)
}
