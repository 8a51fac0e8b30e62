package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"etender/models"
)

// InsertNotification идемпотентна по (entry_id, user_id); вернет false для повтора
func (s *Storage) InsertNotification(ctx context.Context, n *models.Notification) (bool, error) {
	query := `
        INSERT INTO notifications
            (id, user_id, type, title, message, is_read, entry_id, related_type, related_id, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (entry_id, user_id) DO NOTHING`
	res, err := s.exec(ctx, query,
		n.ID, n.UserID, n.Type, n.Title, n.Message, n.IsRead, n.EntryID, n.RelatedType, n.RelatedID, n.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	affected, err := res.RowsAffected()
	return affected == 1, err
}

func (s *Storage) ListNotifications(ctx context.Context, userID string, unreadOnly bool, page Page) ([]models.Notification, error) {
	query := `SELECT * FROM notifications WHERE user_id = ?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id ASC` + page.clause()

	list := []models.Notification{}
	if err := s.selectAll(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return list, nil
}

// MarkNotificationRead меняет только флаг прочтения и только у владельца
func (s *Storage) MarkNotificationRead(ctx context.Context, id, userID string) (*models.Notification, error) {
	if _, err := s.exec(ctx, `UPDATE notifications SET is_read = ? WHERE id = ? AND user_id = ?`, true, id, userID); err != nil {
		return nil, fmt.Errorf("mark notification %s: %w", id, err)
	}
	n := &models.Notification{}
	if err := s.get(ctx, n, `SELECT * FROM notifications WHERE id = ? AND user_id = ?`, id, userID); err != nil {
		return nil, notFound(err, "notification", id)
	}
	return n, nil
}

func (s *Storage) GetCursor(ctx context.Context, name string) (int64, error) {
	var seq int64
	err := s.get(ctx, &seq, `SELECT seq FROM dispatch_cursors WHERE name = ?`, name)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor %s: %w", name, err)
	}
	return seq, nil
}

// AdvanceCursor никогда не сдвигает курсор назад
func (s *Storage) AdvanceCursor(ctx context.Context, name string, seq int64) error {
	query := `
        INSERT INTO dispatch_cursors (name, seq) VALUES (?, ?)
        ON CONFLICT (name) DO UPDATE SET seq = excluded.seq
        WHERE dispatch_cursors.seq < excluded.seq`
	if _, err := s.exec(ctx, query, name, seq); err != nil {
		return fmt.Errorf("advance cursor %s: %w", name, err)
	}
	return nil
}
