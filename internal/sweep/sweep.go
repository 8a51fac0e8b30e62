// Package sweep applies deadline-driven transitions in the background.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"etender/db"
	"etender/internal/audit"
	"etender/internal/clock"
	"etender/models"
)

type Tenders interface {
	CloseBidding(ctx context.Context, actor models.Actor, id string, force bool) (*models.Tender, audit.Receipt, error)
	RemindDeadline(ctx context.Context, id string, lead time.Duration) (audit.Receipt, error)
}

type Bids interface {
	Forfeit(ctx context.Context, tenderID string) (audit.Receipt, error)
}

type Notifications interface {
	CatchUp(ctx context.Context) (int, error)
}

// Summary counts what one pass changed.
type Summary struct {
	Closed    int
	Reminded  int
	Forfeited int
	Notified  int
	Failures  int
}

type Sweeper struct {
	store   *db.Storage
	tenders Tenders
	bids    Bids
	notify  Notifications
	clock   clock.Clock
	lead    time.Duration
	log     *slog.Logger
}

func New(store *db.Storage, tenders Tenders, bids Bids, notify Notifications, clk clock.Clock, lead time.Duration, log *slog.Logger) *Sweeper {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Sweeper{
		store:   store,
		tenders: tenders,
		bids:    bids,
		notify:  notify,
		clock:   clk,
		lead:    lead,
		log:     log.With(slog.String("component", "sweep")),
	}
}

// Run makes a pass immediately and then every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Pass(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("sweep pass failed", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Pass closes bidding past the bid deadline, sends due reminders, forfeits
// unrevealed bids past the evaluation deadline and catches up notifications.
// A failure on one tender is logged and the pass goes on. The returned error
// is only for failures to list tenders.
func (s *Sweeper) Pass(ctx context.Context) (Summary, error) {
	var sum Summary
	now := s.clock.Now()

	active, err := s.store.TendersByStatus(ctx, models.TenderOpen, models.TenderBidding)
	if err != nil {
		return sum, err
	}
	for _, t := range active {
		if t.BidDeadline == nil {
			continue
		}
		switch {
		case !now.Before(*t.BidDeadline):
			if _, _, err := s.tenders.CloseBidding(ctx, models.SystemActor, t.ID, false); err != nil {
				s.fail(&sum, "close bidding", t.ID, err)
				continue
			}
			sum.Closed++
		case t.BidDeadline.Sub(now) <= s.lead:
			receipt, err := s.tenders.RemindDeadline(ctx, t.ID, s.lead)
			if err != nil {
				s.fail(&sum, "deadline reminder", t.ID, err)
				continue
			}
			sum.Reminded += len(receipt)
		}
	}

	closed, err := s.store.TendersByStatus(ctx, models.TenderEvaluation, models.TenderAwarded, models.TenderArchived)
	if err != nil {
		return sum, err
	}
	for _, t := range closed {
		if t.EvaluationDeadline == nil || now.Before(*t.EvaluationDeadline) {
			continue
		}
		pending, err := s.store.CountBids(ctx, t.ID, models.BidCommitted)
		if err != nil {
			s.fail(&sum, "count pending bids", t.ID, err)
			continue
		}
		if pending == 0 {
			continue
		}
		receipt, err := s.bids.Forfeit(ctx, t.ID)
		if err != nil {
			s.fail(&sum, "forfeit", t.ID, err)
			continue
		}
		sum.Forfeited += len(receipt)
	}

	n, err := s.notify.CatchUp(ctx)
	if err != nil {
		s.fail(&sum, "notification catch-up", "", err)
	}
	sum.Notified = n

	if sum.Closed+sum.Reminded+sum.Forfeited+sum.Failures > 0 {
		s.log.Info("sweep pass",
			slog.Int("closed", sum.Closed),
			slog.Int("reminded", sum.Reminded),
			slog.Int("forfeited", sum.Forfeited),
			slog.Int("notified", sum.Notified),
			slog.Int("failures", sum.Failures))
	}
	return sum, nil
}

func (s *Sweeper) fail(sum *Summary, step, tenderID string, err error) {
	sum.Failures++
	s.log.Warn("sweep step failed",
		slog.String("step", step), slog.String("tender", tenderID), slog.String("error", err.Error()))
}
