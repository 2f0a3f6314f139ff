package sqlutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

// Drivers this package registers. "sqlite" is the zero-config default;
// "libsql" talks to a turso/sqld endpoint; "pgx" takes a postgres DSN.
// Connection parameters always come from the caller.
const (
	DriverSqlite   = "sqlite"
	DriverLibsql   = "libsql"
	DriverPostgres = "pgx"
)

func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSqlite:
		return openSqlite(dsn)
	case DriverLibsql, DriverPostgres:
		db, err := sql.Open(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("open db: unknown driver %q", driver)
	}
}

func openSqlite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		os.MkdirAll(filepath.Dir(path), 0777)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// see this stackoverflow post for information on why the following
	// lines exist: https://stackoverflow.com/questions/35804884/sqlite-concurrent-writing-performance
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	return db, nil
}

// WaitReady pings the database with exponential backoff until it
// responds or ctx expires. Network-attached databases (libsql, pgx)
// routinely need a few attempts right after the service comes up.
func WaitReady(ctx context.Context, db *sql.DB) error {
	policy := backoff.WithContext(backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(time.Second*30),
	), ctx)
	return backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, policy)
}

// ApplySchema executes a CREATE-IF-NOT-EXISTS style schema, one
// statement at a time because the pgx driver refuses multi-statement
// strings. Re-running against an already-migrated database is a no-op.
func ApplySchema(db *sql.DB, schema string) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		_, err := db.Exec(stmt)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// Rebind rewrites ?-style placeholders into the $n form the pgx driver
// expects. sqlite and libsql take ? as-is.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
