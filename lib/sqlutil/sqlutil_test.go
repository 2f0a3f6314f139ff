package sqlutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE IF NOT EXISTS things (
    id INTEGER PRIMARY KEY,
    name TEXT NOT NULL
);
`

func TestOpenSqliteAndApplySchema(t *testing.T) {
	db, err := Open(DriverSqlite, ":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, ApplySchema(db, testSchema))
	// re-applying must be a no-op
	require.NoError(t, ApplySchema(db, testSchema))

	_, err = db.Exec("INSERT INTO things (id, name) VALUES (1, 'a')")
	require.NoError(t, err)

	require.NoError(t, WaitReady(context.Background(), db))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "whatever")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	testCases := []struct {
		driver   string
		query    string
		expected string
	}{
		{
			driver:   DriverSqlite,
			query:    "SELECT * FROM courses WHERE subject_code = ?",
			expected: "SELECT * FROM courses WHERE subject_code = ?",
		},
		{
			driver:   DriverLibsql,
			query:    "SELECT * FROM courses WHERE subject_code = ?",
			expected: "SELECT * FROM courses WHERE subject_code = ?",
		},
		{
			driver:   DriverPostgres,
			query:    "SELECT * FROM courses WHERE subject_code = ?",
			expected: "SELECT * FROM courses WHERE subject_code = $1",
		},
		{
			driver:   DriverPostgres,
			query:    "INSERT INTO things (id, name) VALUES (?, ?)",
			expected: "INSERT INTO things (id, name) VALUES ($1, $2)",
		},
		{
			driver:   DriverPostgres,
			query:    "SELECT 1",
			expected: "SELECT 1",
		},
	}
	for _, c := range testCases {
		require.Equal(t, c.expected, Rebind(c.driver, c.query), "driver=%s query=%s", c.driver, c.query)
	}
}
