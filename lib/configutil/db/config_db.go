package configdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"bulletin-scraper/lib/sqlutil"
)

// Struct is the database section of a config file. Driver is one of
// the sqlutil constants; empty means sqlite. DSN is a file path for
// sqlite or a connection URL for libsql/pgx, and falls back to the
// BULLETIN_DB_DSN environment variable so credentials can stay out of
// checked-in config files.
type Struct struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn"`
}

func (config Struct) ResolvedDriver() string {
	if config.Driver == "" {
		return sqlutil.DriverSqlite
	}
	return config.Driver
}

func (config Struct) OpenDB(schema string) (*sql.DB, error) {
	dsn := config.DSN
	if dsn == "" {
		dsn = os.Getenv("BULLETIN_DB_DSN")
	}
	if dsn == "" {
		return nil, fmt.Errorf("a database dsn was not specified")
	}

	db, err := sqlutil.Open(config.ResolvedDriver(), dsn)
	if err != nil {
		return nil, err
	}
	err = sqlutil.WaitReady(context.Background(), db)
	if err != nil {
		return nil, err
	}
	err = sqlutil.ApplySchema(db, schema)
	if err != nil {
		return nil, err
	}
	return db, nil
}
