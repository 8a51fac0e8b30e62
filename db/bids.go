package db

import (
	"context"
	"database/sql"
	"fmt"

	"etender/internal/errs"
	"etender/models"
)

// CreateBid сохраняет обязательство. Второе предложение того же участника
// по тому же тендеру отклоняется уникальным индексом
func (s *Storage) CreateBid(ctx context.Context, b *models.Bid) error {
	query := `
        INSERT INTO bids
            (id, tender_id, bidder_id, commit_hash, phase, reveal_failures, is_winner, submitted_at, updated_at)
        VALUES
            (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, query,
		b.ID, b.TenderID, b.BidderID, b.CommitHash, b.Phase, b.RevealFailures, b.IsWinner, b.SubmittedAt, b.UpdatedAt)
	if isUniqueViolation(err) {
		return &errs.DuplicateBidError{TenderID: b.TenderID, BidderID: b.BidderID}
	}
	if err != nil {
		return fmt.Errorf("insert bid: %w", err)
	}
	return nil
}

func (s *Storage) GetBid(ctx context.Context, id string) (*models.Bid, error) {
	b := &models.Bid{}
	if err := s.get(ctx, b, `SELECT * FROM bids WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "bid", id)
	}
	return b, nil
}

func (s *Storage) GetBidByBidder(ctx context.Context, tenderID, bidderID string) (*models.Bid, error) {
	b := &models.Bid{}
	if err := s.get(ctx, b, `SELECT * FROM bids WHERE tender_id = ? AND bidder_id = ?`, tenderID, bidderID); err != nil {
		return nil, notFound(err, "bid", tenderID+"/"+bidderID)
	}
	return b, nil
}

func (s *Storage) UpdateBid(ctx context.Context, b *models.Bid) error {
	query := `
        UPDATE bids
        SET reveal_hash = ?, reveal_nonce = ?, bid_amount = ?, phase = ?,
            reveal_failures = ?, is_winner = ?, revealed_at = ?, updated_at = ?
        WHERE id = ?`
	res, err := s.exec(ctx, query,
		b.RevealHash, b.RevealNonce, b.BidAmount, b.Phase,
		b.RevealFailures, b.IsWinner, b.RevealedAt, b.UpdatedAt, b.ID)
	if err != nil {
		return fmt.Errorf("update bid %s: %w", b.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, "bid", b.ID)
	}
	return nil
}

// ListBidsForTender возвращает предложения в порядке подачи
func (s *Storage) ListBidsForTender(ctx context.Context, tenderID string, phases ...models.BidPhase) ([]models.Bid, error) {
	query := `SELECT * FROM bids WHERE tender_id = ?`
	args := []any{tenderID}
	if len(phases) > 0 {
		query += ` AND phase IN (` + placeholders(len(phases)) + `)`
		for _, p := range phases {
			args = append(args, p)
		}
	}
	query += ` ORDER BY submitted_at ASC, id ASC`

	bids := []models.Bid{}
	if err := s.selectAll(ctx, &bids, query, args...); err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	return bids, nil
}

func (s *Storage) ListBidsByBidder(ctx context.Context, bidderID string, page Page) ([]models.Bid, error) {
	query := `SELECT * FROM bids WHERE bidder_id = ? ORDER BY submitted_at DESC, id ASC` + page.clause()
	bids := []models.Bid{}
	if err := s.selectAll(ctx, &bids, query, bidderID); err != nil {
		return nil, fmt.Errorf("list user bids: %w", err)
	}
	return bids, nil
}

func (s *Storage) CountBids(ctx context.Context, tenderID string, phases ...models.BidPhase) (int, error) {
	query := `SELECT COUNT(1) FROM bids WHERE tender_id = ?`
	args := []any{tenderID}
	if len(phases) > 0 {
		query += ` AND phase IN (` + placeholders(len(phases)) + `)`
		for _, p := range phases {
			args = append(args, p)
		}
	}
	var count int
	if err := s.get(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count bids: %w", err)
	}
	return count, nil
}

// FindBidsByHash ищет по хэшу обязательства или раскрытия
func (s *Storage) FindBidsByHash(ctx context.Context, hash string) ([]models.Bid, error) {
	bids := []models.Bid{}
	query := `SELECT * FROM bids WHERE commit_hash = ? OR reveal_hash = ? ORDER BY submitted_at ASC`
	if err := s.selectAll(ctx, &bids, query, hash, hash); err != nil {
		return nil, fmt.Errorf("find bids: %w", err)
	}
	return bids, nil
}
