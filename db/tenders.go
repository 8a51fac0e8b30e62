package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"etender/models"
)

const tenderColumns = `id, title, description, category, estimated_value, currency, status,
        publish_date, bid_deadline, evaluation_deadline, created_by,
        awarded_bid_id, awarded_to, award_amount, award_score, awarded_at,
        closing_reason, created_at, updated_at`

func (s *Storage) CreateTender(ctx context.Context, t *models.Tender) error {
	query := `INSERT INTO tenders (` + tenderColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, query,
		t.ID, t.Title, t.Description, t.Category, t.EstimatedValue, t.Currency, t.Status,
		t.PublishDate, t.BidDeadline, t.EvaluationDeadline, t.CreatedBy,
		t.AwardedBidID, t.AwardedTo, t.AwardAmount, t.AwardScore, t.AwardedAt,
		t.ClosingReason, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert tender: %w", err)
	}
	return nil
}

// GetTender загружает тендер вместе с документами и назначенными экспертами
func (s *Storage) GetTender(ctx context.Context, id string) (*models.Tender, error) {
	t := &models.Tender{}
	if err := s.get(ctx, t, `SELECT `+tenderColumns+` FROM tenders WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "tender", id)
	}
	if err := s.loadTenderRefs(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Storage) loadTenderRefs(ctx context.Context, t *models.Tender) error {
	docs, err := s.ListDocuments(ctx, t.ID)
	if err != nil {
		return err
	}
	evaluators, err := s.ListEvaluators(ctx, t.ID)
	if err != nil {
		return err
	}
	t.Documents = docs
	t.Evaluators = evaluators
	return nil
}

// UpdateTender сохраняет все изменяемые поля тендера
func (s *Storage) UpdateTender(ctx context.Context, t *models.Tender) error {
	query := `
        UPDATE tenders
        SET title = ?, description = ?, category = ?, estimated_value = ?, currency = ?,
            status = ?, publish_date = ?, bid_deadline = ?, evaluation_deadline = ?,
            awarded_bid_id = ?, awarded_to = ?, award_amount = ?, award_score = ?,
            awarded_at = ?, closing_reason = ?, updated_at = ?
        WHERE id = ?`
	res, err := s.exec(ctx, query,
		t.Title, t.Description, t.Category, t.EstimatedValue, t.Currency,
		t.Status, t.PublishDate, t.BidDeadline, t.EvaluationDeadline,
		t.AwardedBidID, t.AwardedTo, t.AwardAmount, t.AwardScore,
		t.AwardedAt, t.ClosingReason, t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("update tender %s: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound(sql.ErrNoRows, "tender", t.ID)
	}
	return nil
}

type TenderFilter struct {
	Statuses []models.TenderStatus
	Category string
	Search   string
	// HideDrafts скрывает черновики от всех, кроме автора
	HideDrafts bool
	OwnerID    string
	Page
}

func (s *Storage) ListTenders(ctx context.Context, f TenderFilter) ([]models.Tender, error) {
	var where []string
	var args []any

	if len(f.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, st)
		}
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Search != "" {
		where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
		like := "%" + strings.ToLower(f.Search) + "%"
		args = append(args, like, like)
	}
	if f.HideDrafts {
		where = append(where, "(status <> ? OR created_by = ?)")
		args = append(args, models.TenderDraft, f.OwnerID)
	} else if f.OwnerID != "" {
		where = append(where, "created_by = ?")
		args = append(args, f.OwnerID)
	}

	query := `SELECT ` + tenderColumns + ` FROM tenders`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC" + f.Page.clause()

	tenders := []models.Tender{}
	if err := s.selectAll(ctx, &tenders, query, args...); err != nil {
		return nil, fmt.Errorf("list tenders: %w", err)
	}
	for i := range tenders {
		if err := s.loadTenderRefs(ctx, &tenders[i]); err != nil {
			return nil, err
		}
	}
	return tenders, nil
}

// TendersByStatus используется фоновым обходом дедлайнов; документы не загружаются
func (s *Storage) TendersByStatus(ctx context.Context, statuses ...models.TenderStatus) ([]models.Tender, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = st
	}
	query := `SELECT ` + tenderColumns + ` FROM tenders
        WHERE status IN (` + placeholders(len(statuses)) + `)
        ORDER BY bid_deadline ASC, id ASC`
	tenders := []models.Tender{}
	if err := s.selectAll(ctx, &tenders, query, args...); err != nil {
		return nil, fmt.Errorf("tenders by status: %w", err)
	}
	return tenders, nil
}

func (s *Storage) AddDocument(ctx context.Context, d *models.TenderDocument) error {
	query := `
        INSERT INTO tender_documents (id, tender_id, name, mime_type, size_bytes, content_hash, uploaded_by, uploaded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, query, d.ID, d.TenderID, d.Name, d.MimeType, d.SizeBytes, d.ContentHash, d.UploadedBy, d.UploadedAt)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

func (s *Storage) ListDocuments(ctx context.Context, tenderID string) ([]models.TenderDocument, error) {
	docs := []models.TenderDocument{}
	query := `SELECT * FROM tender_documents WHERE tender_id = ? ORDER BY uploaded_at ASC, id ASC`
	if err := s.selectAll(ctx, &docs, query, tenderID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *Storage) FindDocumentsByHash(ctx context.Context, hash string) ([]models.TenderDocument, error) {
	docs := []models.TenderDocument{}
	if err := s.selectAll(ctx, &docs, `SELECT * FROM tender_documents WHERE content_hash = ?`, hash); err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	return docs, nil
}

// AssignEvaluator возвращает false, если эксперт уже назначен
func (s *Storage) AssignEvaluator(ctx context.Context, tenderID, evaluatorID string, at time.Time) (bool, error) {
	query := `
        INSERT INTO tender_evaluators (tender_id, evaluator_id, assigned_at)
        VALUES (?, ?, ?)
        ON CONFLICT (tender_id, evaluator_id) DO NOTHING`
	res, err := s.exec(ctx, query, tenderID, evaluatorID, at)
	if err != nil {
		return false, fmt.Errorf("assign evaluator: %w", err)
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (s *Storage) ListEvaluators(ctx context.Context, tenderID string) ([]string, error) {
	ids := []string{}
	query := `SELECT evaluator_id FROM tender_evaluators WHERE tender_id = ? ORDER BY assigned_at ASC, evaluator_id ASC`
	if err := s.selectAll(ctx, &ids, query, tenderID); err != nil {
		return nil, fmt.Errorf("list evaluators: %w", err)
	}
	return ids, nil
}

func (s *Storage) IsEvaluator(ctx context.Context, tenderID, evaluatorID string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM tender_evaluators WHERE tender_id = ? AND evaluator_id = ?`
	if err := s.get(ctx, &count, query, tenderID, evaluatorID); err != nil {
		return false, err
	}
	return count > 0, nil
}
