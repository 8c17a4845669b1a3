package withdb_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for postgres
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/rollcheck/internal/withdb"
)

func TestWithDB(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithDB(ctx, "pgx", func(db *sql.DB) error {
		_, err := db.Exec("select 1")
		return err
	})
	assert.Nil(t, err)
}

func TestWithSQLite(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, "CREATE TABLE things (id INTEGER PRIMARY KEY)"); err != nil {
			return err
		}
		var count int
		if err := db.QueryRowContext(ctx, "SELECT count(*) FROM things").Scan(&count); err != nil {
			return err
		}
		check.Equal(t, 0, count)
		return nil
	})
	assert.Nil(t, err)
}

func TestWithSQLiteReturnsCallbackErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	err := withdb.WithSQLite(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, "select broken query")
		return err
	})
	check.Error(t, err)
}
