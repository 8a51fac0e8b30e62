package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"etender/internal/errs"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Storage хранит все коллекции (тендеры, предложения, оценки, журнал, уведомления).
// Внутри транзакции тот же тип работает поверх *sqlx.Tx
type Storage struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	tx  *sqlx.Tx
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db, ext: db}
}

func (s *Storage) DB() *sqlx.DB { return s.db }

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx выполняет fn в одной транзакции. Если транзакция уже открыта, fn
// выполняется в ней же
func (s *Storage) InTx(ctx context.Context, fn func(tx *Storage) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = errors.Join(err, fmt.Errorf("rollback failed: %w", rbErr))
			}
			return
		}
		if cErr := tx.Commit(); cErr != nil {
			err = fmt.Errorf("commit failed: %w", cErr)
		}
	}()

	err = fn(&Storage{db: s.db, ext: tx, tx: tx})
	return err
}

func (s *Storage) get(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.GetContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
}

func (s *Storage) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
}

func (s *Storage) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.ext.ExecContext(ctx, s.ext.Rebind(query), args...)
}

// notFound переводит sql.ErrNoRows в NotFoundError
func notFound(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errs.NotFound(entity, id)
	}
	return fmt.Errorf("get %s %s: %w", entity, id, err)
}

// isUniqueViolation распознает нарушение уникальности в Postgres и SQLite
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// Page задает limit/offset для списков
type Page struct {
	Limit  int
	Offset int
}

func (p Page) clause() string {
	if p.Limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", p.Limit, p.Offset)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open подключается к базе. Для SQLite оставляем одно соединение:
// in-memory база живет, пока оно открыто, а писатель всегда один
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	conn, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		conn.SetMaxOpenConns(1)
	}
	return conn, nil
}
