package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"etender/models"
)

// ErrChainConflict: другая запись уже продолжила цепочку от того же хэша
var ErrChainConflict = errors.New("audit chain head moved")

func (s *Storage) AppendAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	query := `
        INSERT INTO audit_entries
            (id, seq, action, entity_kind, entity_id, user_id, recorded_at, payload, prev_hash, hash)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.exec(ctx, query,
		e.ID, e.Seq, e.Action, e.EntityKind, e.EntityID, e.UserID, e.Timestamp, e.Payload, e.PrevHash, e.Hash)
	if isUniqueViolation(err) {
		return fmt.Errorf("append seq %d: %w", e.Seq, ErrChainConflict)
	}
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// LastAuditEntry возвращает голову цепочки или nil для пустого журнала
func (s *Storage) LastAuditEntry(ctx context.Context) (*models.AuditEntry, error) {
	e := &models.AuditEntry{}
	err := s.get(ctx, e, `SELECT * FROM audit_entries ORDER BY seq DESC LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("audit head: %w", err)
	}
	return e, nil
}

func (s *Storage) GetAuditEntryBySeq(ctx context.Context, seq int64) (*models.AuditEntry, error) {
	e := &models.AuditEntry{}
	if err := s.get(ctx, e, `SELECT * FROM audit_entries WHERE seq = ?`, seq); err != nil {
		return nil, notFound(err, "audit entry", fmt.Sprint(seq))
	}
	return e, nil
}

// AuditEntriesAfter возвращает до limit записей с seq > after по возрастанию
func (s *Storage) AuditEntriesAfter(ctx context.Context, after int64, limit int) ([]models.AuditEntry, error) {
	entries := []models.AuditEntry{}
	query := `SELECT * FROM audit_entries WHERE seq > ? ORDER BY seq ASC` + Page{Limit: limit}.clause()
	if err := s.selectAll(ctx, &entries, query, after); err != nil {
		return nil, fmt.Errorf("audit entries after %d: %w", after, err)
	}
	return entries, nil
}

type AuditFilter struct {
	EntityKind models.EntityKind
	EntityID   string
	UserID     string
	From       *time.Time
	To         *time.Time
	Page
}

// ListAuditEntries: порядок по времени, затем по seq
func (s *Storage) ListAuditEntries(ctx context.Context, f AuditFilter) ([]models.AuditEntry, error) {
	var where []string
	var args []any
	if f.EntityKind != "" {
		where = append(where, "entity_kind = ?")
		args = append(args, f.EntityKind)
	}
	if f.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, f.EntityID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.From != nil {
		where = append(where, "recorded_at >= ?")
		args = append(args, *f.From)
	}
	if f.To != nil {
		where = append(where, "recorded_at <= ?")
		args = append(args, *f.To)
	}

	query := `SELECT * FROM audit_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY recorded_at ASC, seq ASC" + f.Page.clause()

	entries := []models.AuditEntry{}
	if err := s.selectAll(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

func (s *Storage) HasAuditAction(ctx context.Context, entityID string, action models.AuditAction) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM audit_entries WHERE entity_id = ? AND action = ?`
	if err := s.get(ctx, &count, query, entityID, action); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Storage) FindAuditEntryByHash(ctx context.Context, hash string) (*models.AuditEntry, error) {
	e := &models.AuditEntry{}
	if err := s.get(ctx, e, `SELECT * FROM audit_entries WHERE hash = ?`, hash); err != nil {
		return nil, notFound(err, "audit entry", hash)
	}
	return e, nil
}
