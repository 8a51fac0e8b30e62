package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var embedMigrations embed.FS

// goose держит диалект и FS в глобальных переменных
var mu sync.Mutex

// Run применяет все встроенные миграции. dialect: "postgres" или "sqlite3"
func Run(db *sql.DB, dialect string, log *slog.Logger) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(embedMigrations)
	if log != nil {
		goose.SetLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	} else {
		goose.SetLogger(goose.NopLogger())
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
