// Package dbtest opens a migrated in-memory SQLite storage for package tests.
package dbtest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"etender/db"
	"etender/db/migrations"
	"etender/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func New(t testing.TB) *db.Storage {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=1&_loc=UTC", uuid.NewString())
	conn, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrations.Run(conn.DB, db.DriverSQLite, nil))
	return db.NewStorage(conn)
}

// User создает пользователя с паролем "secret"
func User(t testing.TB, store *db.Storage, role models.Role, name string) models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	u := models.User{
		ID:           uuid.NewString(),
		Email:        name + "@example.gov",
		Name:         name,
		Role:         role,
		Organization: "Ministry of " + name,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
	}
	created, err := store.CreateUser(context.Background(), &u)
	require.NoError(t, err)
	require.True(t, created)
	return u
}
