package db

import (
	"context"
	"fmt"

	"etender/internal/errs"
	"etender/models"
)

func (s *Storage) CreateEvaluation(ctx context.Context, e *models.Evaluation) error {
	query := `
        INSERT INTO evaluations
            (id, tender_id, bid_id, evaluator_id, technical_score, financial_score,
             overall_score, comments, evaluated_at, integrity_hash)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, query,
		e.ID, e.TenderID, e.BidID, e.EvaluatorID, e.TechnicalScore, e.FinancialScore,
		e.OverallScore, e.Comments, e.EvaluatedAt, e.IntegrityHash)
	if isUniqueViolation(err) {
		return &errs.DuplicateEvaluationError{BidID: e.BidID, EvaluatorID: e.EvaluatorID}
	}
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

func (s *Storage) GetEvaluation(ctx context.Context, id string) (*models.Evaluation, error) {
	e := &models.Evaluation{}
	if err := s.get(ctx, e, `SELECT * FROM evaluations WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "evaluation", id)
	}
	return e, nil
}

func (s *Storage) HasEvaluation(ctx context.Context, bidID, evaluatorID string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM evaluations WHERE bid_id = ? AND evaluator_id = ?`
	if err := s.get(ctx, &count, query, bidID, evaluatorID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Storage) ListEvaluationsForTender(ctx context.Context, tenderID string) ([]models.Evaluation, error) {
	evals := []models.Evaluation{}
	query := `SELECT * FROM evaluations WHERE tender_id = ? ORDER BY evaluated_at ASC, id ASC`
	if err := s.selectAll(ctx, &evals, query, tenderID); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evals, nil
}

func (s *Storage) FindEvaluationsByHash(ctx context.Context, hash string) ([]models.Evaluation, error) {
	evals := []models.Evaluation{}
	if err := s.selectAll(ctx, &evals, `SELECT * FROM evaluations WHERE integrity_hash = ?`, hash); err != nil {
		return nil, fmt.Errorf("find evaluations: %w", err)
	}
	return evals, nil
}
