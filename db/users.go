package db

import (
	"context"
	"fmt"

	"etender/models"
)

// CreateUser добавляет пользователя. Повторный email не считается ошибкой:
// возвращается false, а запись остается прежней
func (s *Storage) CreateUser(ctx context.Context, u *models.User) (bool, error) {
	query := `
        INSERT INTO users (id, email, name, role, organization, password_hash, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (email) DO NOTHING`
	res, err := s.exec(ctx, query, u.ID, u.Email, u.Name, u.Role, u.Organization, u.PasswordHash, u.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert user %s: %w", u.Email, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	u := &models.User{}
	if err := s.get(ctx, u, `SELECT * FROM users WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "user", id)
	}
	return u, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := &models.User{}
	if err := s.get(ctx, u, `SELECT * FROM users WHERE email = ?`, email); err != nil {
		return nil, notFound(err, "user", email)
	}
	return u, nil
}

func (s *Storage) ListUsers(ctx context.Context, role models.Role) ([]models.User, error) {
	users := []models.User{}
	query := `SELECT * FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, role)
	}
	query += ` ORDER BY email ASC`
	if err := s.selectAll(ctx, &users, query, args...); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}
