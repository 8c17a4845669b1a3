package shared

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"             // sqlite driver

	"github.com/peterldowns/rollcheck"
)

// OpenDB connects to the configured database with the driver of the
// configured dialect.
func OpenDB(dialect rollcheck.Dialect) (*sql.DB, error) {
	dbVar := State.Database()
	if err := Validate(dbVar); err != nil {
		return nil, err
	}
	dbStr := dbVar.Value()
	if dialect.Driver() == "sqlite" {
		db, err := sql.Open("sqlite", strings.TrimPrefix(dbStr, "sqlite://"))
		if err != nil {
			return nil, err
		}
		// Every statement has to see the same connection, or a database
		// like ":memory:" would be a different database for each one.
		db.SetMaxOpenConns(1)
		return db, nil
	}
	dbStr, err := setDefaultStatementCachingParameter(dbStr)
	if err != nil {
		return nil, err
	}
	return sql.Open(dialect.Driver(), dbStr)
}

// InferDriver guesses the driver from the scheme of a connection string.
// Anything that isn't a postgres URL is treated as a path to a sqlite file.
func InferDriver(database string) string {
	if database == "" {
		return ""
	}
	eurl, err := url.Parse(database)
	if err == nil {
		switch eurl.Scheme {
		case "postgres", "postgresql":
			return "pgx"
		case "sqlite", "file":
			return "sqlite"
		}
	}
	return "sqlite"
}

// If the user has not explicitly specified a pgx statement caching
// parameter in their connection string, set it to "exec", which will work
// correctly even when connecting to bouncers/poolers like Pgbouncer. The
// default pgx chooses is "cache_statement", which breaks behind a pooler.
//
// https://pkg.go.dev/github.com/jackc/pgx/v5#QueryExecMode
func setDefaultStatementCachingParameter(connstr string) (string, error) {
	eurl, err := url.Parse(connstr)
	if err != nil {
		return "", fmt.Errorf("failed to parse 'database' URL: %w", err)
	}
	query := eurl.Query()
	// hardcoded query parameter name comes from the pgx code:
	// https://github.com/jackc/pgx/blob/672c4a3a24849b1f34857817e6ed76f6581bbe90/conn.go#L191
	queryModeParam := "default_query_exec_mode"
	execModeValue := "exec"
	if !query.Has(queryModeParam) {
		query.Add(queryModeParam, execModeValue)
	}
	eurl.RawQuery = query.Encode()
	return eurl.String(), nil
}
