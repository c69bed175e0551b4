package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

// schemaVersion is the number of the newest migration under migrations/.
const schemaVersion = 2

// openMemory opens one connection pool on the in-memory database named by dsn.
func openMemory(t *testing.T, dsn string, maxConns int) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "open in-memory db")
	conn.SetMaxOpenConns(maxConns)
	require.NoError(t, conn.PingContext(context.Background()), "ping in-memory db")
	return conn
}

// setupTestDB returns a migrated in-memory DB private to the calling test. The
// writer and reader pools share it through cache=shared; journal_mode is left
// unset since WAL does not apply in memory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)",
		url.PathEscape(t.Name()),
	)
	db := &DB{
		Writer: openMemory(t, dsn, 1),
		Reader: openMemory(t, dsn, 2),
		path:   dsn,
	}
	t.Cleanup(func() { _ = db.Close() })

	version, err := RunMigrations(db.Writer)
	require.NoError(t, err, "migrate test db")
	require.Equal(t, uint(schemaVersion), version)

	return db
}
