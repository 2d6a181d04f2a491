package auth

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"
)

// newPureGoDB opens an in-memory database on modernc.org/sqlite, the driver
// sqliteshim picks on common platforms.
func newPureGoDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, CreateSchema(context.Background(), db))
	return db
}

func TestIsUniqueViolationPureGoDriver(t *testing.T) {
	db := newPureGoDB(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, "CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT NOT NULL UNIQUE)")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, "INSERT INTO things (id, name) VALUES (1, 'a')")
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, "INSERT INTO things (id, name) VALUES (2, 'a')")
	require.Error(t, err)
	var liteErr *sqlite.Error
	require.True(t, errors.As(err, &liteErr))
	assert.Equal(t, sqlitelib.SQLITE_CONSTRAINT_UNIQUE, liteErr.Code())
	assert.True(t, isUniqueViolation(err))

	_, err = db.ExecContext(ctx, "INSERT INTO things (id, name) VALUES (1, 'b')")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	_, err = db.ExecContext(ctx, "INSERT INTO things (id, name) VALUES (3, NULL)")
	require.Error(t, err)
	assert.False(t, isUniqueViolation(err), "not null is not a unique violation")
}

func TestIsUniqueViolationIgnoresMessageText(t *testing.T) {
	assert.False(t, isUniqueViolation(nil))
	assert.False(t, isUniqueViolation(fmt.Errorf("UNIQUE constraint failed: users.username")))
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgUniqueViolation})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23502"}))
}

func TestCreateWithRolePureGoDriver(t *testing.T) {
	db := newPureGoDB(t)
	ctx := context.Background()
	users := NewUsersRepository(db)

	_, err := users.CreateWithRole(ctx, &User{Username: "alice", Email: "alice@example.com", PasswordHash: "x"}, RoleUser)
	require.NoError(t, err)

	_, err = users.CreateWithRole(ctx, &User{Username: "alice", Email: "second@example.com", PasswordHash: "x"}, RoleUser)
	require.Error(t, err)
	assert.True(t, token.IsKind(err, token.KindValidationFailed))
	assert.Equal(t, ErrAccountTaken.Message, errorMessage(err))
}

func errorMessage(err error) string {
	var rich *errors.Error
	if errors.As(err, &rich) {
		return rich.Message
	}
	return err.Error()
}
