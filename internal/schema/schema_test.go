package schema_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver for postgres
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/peterldowns/rollcheck/internal/schema"
	"github.com/peterldowns/rollcheck/internal/withdb"
)

// query is a helper for writing sql queries that look nice in vscode when using
// the "Inline SQL for go" extension by @jhnj, which gives syntax highlighting
// for strings that begin with `--sql`.
//
// https://marketplace.visualstudio.com/items?itemName=jhnj.vscode-go-inline-sql
func query(x string) string {
	return strings.TrimSpace(strings.TrimPrefix(x, "--sql"))
}

// dbtest is a helper for creating a new database,
// running some sql statements, and then running tests against
// that database.
func dbtest(t *testing.T, statements string, cb func(*sql.DB) error) {
	t.Helper()
	ctx := context.Background()
	err := withdb.WithDB(ctx, "pgx", func(db *sql.DB) error {
		if statements != "" {
			if _, err := db.ExecContext(ctx, statements); err != nil {
				return err
			}
		}
		return cb(db)
	})
	check.Nil(t, err)
}

func TestParseEmptyDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbtest(t, "", func(db *sql.DB) error {
		result, err := schema.Parse(ctx, db, schema.Config{})
		if err != nil {
			return err
		}
		check.Equal(t, []string{"public"}, result.Config.Schemas)
		check.Equal(t, 0, len(result.Tables))
		check.Equal(t, "CREATE SCHEMA IF NOT EXISTS public;", result.String())
		return nil
	})
}

func TestParseSimpleExample(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbtest(t, query(`--sql
CREATE TYPE mood AS ENUM ('sad', 'ok', 'happy');
CREATE TABLE users (
	id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	email TEXT NOT NULL UNIQUE,
	feeling mood DEFAULT 'ok'
);
CREATE TABLE posts (
	id SERIAL PRIMARY KEY,
	author_id BIGINT NOT NULL REFERENCES users (id),
	body TEXT CHECK (length(body) > 0)
);
CREATE INDEX posts_author_idx ON posts (author_id);
CREATE VIEW authors AS SELECT DISTINCT author_id FROM posts;
	`), func(db *sql.DB) error {
		result, err := schema.Parse(ctx, db, schema.Config{Schemas: []string{"public"}})
		if err != nil {
			return err
		}
		assert.Equal(t, 2, len(result.Tables))
		check.Equal(t, "posts", result.Tables[0].Name)
		check.Equal(t, "users", result.Tables[1].Name)
		check.Equal(t, query(`--sql
CREATE TABLE public.users (
  id bigint NOT NULL GENERATED ALWAYS AS IDENTITY,
  email text NOT NULL,
  feeling mood DEFAULT 'ok'::mood
);
		`), result.Tables[1].String())

		assert.Equal(t, 1, len(result.Enums))
		check.Equal(t, []string{"sad", "ok", "happy"}, result.Enums[0].Elements)

		assert.Equal(t, 1, len(result.Views))
		check.Equal(t, "authors", result.Views[0].Name)

		var names []string
		for _, con := range result.Constraints {
			names = append(names, con.Name)
		}
		check.Equal(t, []string{
			"posts_author_id_fkey",
			"posts_body_check",
			"posts_pkey",
			"users_email_key",
			"users_pkey",
		}, names)
		check.Equal(t, []string{"author_id"}, result.Constraints[0].Columns)

		text := result.String()
		check.True(t, strings.Contains(text, "CREATE INDEX posts_author_idx ON public.posts USING btree (author_id);"))
		check.True(t, strings.Contains(text, "CREATE SEQUENCE public.posts_id_seq AS integer"))
		return nil
	})
}

func TestSnapshotIsStableAcrossAddAndDropColumn(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbtest(t, query(`--sql
CREATE TABLE things (id BIGINT PRIMARY KEY, name TEXT NOT NULL);
	`), func(db *sql.DB) error {
		before, err := schema.Postgres(ctx, db, schema.Config{})
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, "ALTER TABLE things ADD COLUMN extra INTEGER"); err != nil {
			return err
		}
		during, err := schema.Postgres(ctx, db, schema.Config{})
		if err != nil {
			return err
		}
		check.NotEqual(t, before, during)
		check.True(t, strings.Contains(during, "extra integer"))

		if _, err := db.ExecContext(ctx, "ALTER TABLE things DROP COLUMN extra"); err != nil {
			return err
		}
		after, err := schema.Postgres(ctx, db, schema.Config{})
		if err != nil {
			return err
		}
		check.Equal(t, before, after)
		return nil
	})
}

func TestSnapshotIgnoresData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbtest(t, query(`--sql
CREATE TABLE counters (id SERIAL PRIMARY KEY, n INTEGER NOT NULL);
	`), func(db *sql.DB) error {
		before, err := schema.Postgres(ctx, db, schema.Config{})
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, "INSERT INTO counters (n) VALUES (1), (2), (3)"); err != nil {
			return err
		}
		after, err := schema.Postgres(ctx, db, schema.Config{})
		if err != nil {
			return err
		}
		check.Equal(t, before, after)
		return nil
	})
}

func TestFunctionsAndTriggers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbtest(t, query(`--sql
CREATE TABLE events (id BIGINT PRIMARY KEY, updated_at TIMESTAMPTZ);
CREATE FUNCTION touch() RETURNS trigger LANGUAGE plpgsql AS $$
BEGIN
	NEW.updated_at = now();
	RETURN NEW;
END;
$$;
CREATE TRIGGER events_touch BEFORE UPDATE ON events FOR EACH ROW EXECUTE FUNCTION touch();
	`), func(db *sql.DB) error {
		result, err := schema.Parse(ctx, db, schema.Config{})
		if err != nil {
			return err
		}
		assert.Equal(t, 1, len(result.Functions))
		check.Equal(t, "public.touch()", result.Functions[0].SortKey())
		check.True(t, strings.HasSuffix(result.Functions[0].String(), ";"))
		assert.Equal(t, 1, len(result.Triggers))
		check.Equal(t, "events_touch", result.Triggers[0].Name)
		check.True(t, strings.HasPrefix(result.Triggers[0].String(), "CREATE TRIGGER events_touch BEFORE UPDATE ON events"))
		return nil
	})
}

func TestMultipleSchemas(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbtest(t, query(`--sql
CREATE SCHEMA other;
CREATE TABLE public.a (id INTEGER);
CREATE TABLE other.b (id INTEGER);
	`), func(db *sql.DB) error {
		onlyPublic, err := schema.Parse(ctx, db, schema.Config{Schemas: []string{"public"}})
		if err != nil {
			return err
		}
		check.Equal(t, 1, len(onlyPublic.Tables))

		both, err := schema.Parse(ctx, db, schema.Config{Schemas: []string{"public", "other"}})
		if err != nil {
			return err
		}
		assert.Equal(t, 2, len(both.Tables))
		check.Equal(t, "other.b", both.Tables[0].SortKey())
		check.Equal(t, "public.a", both.Tables[1].SortKey())
		return nil
	})
}
