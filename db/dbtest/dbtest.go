// Package dbtest opens migrated sqlite databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/milanbella/storyboard/config"
	"github.com/milanbella/storyboard/db"
)

// New returns a fresh, fully migrated sqlite database that is closed when
// the test ends.
func New(t testing.TB) *sql.DB {
	t.Helper()

	cfg := config.DBConfig{
		Driver:       config.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "storyboard.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}

	conn, err := db.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, db.Migrate(context.Background(), conn, config.DriverSQLite))
	return conn
}

// InsertUser creates a user row and returns its id.
func InsertUser(t testing.TB, conn *sql.DB, openid string) int64 {
	t.Helper()

	res, err := conn.Exec(
		`INSERT INTO users (username, full_name, email, openid) VALUES (?, ?, ?, ?)`,
		openid, "User "+openid, openid+"@example.org", "https://login.example.org/+id/"+openid,
	)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}
