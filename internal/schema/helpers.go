package schema

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"golang.org/x/exp/constraints"
)

// Querier is satisfied by *sql.DB, *sql.Conn, and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Object is a database object that can be rendered as DDL.
type Object interface {
	Sortable[string]
	String() string
}

// Sortable objects are ordered by their SortKey, ascending.
type Sortable[K constraints.Ordered] interface {
	SortKey() K
}

// Sort orders a slice in-place by SortKey and returns it. Objects with the
// same key keep their relative order.
func Sort[K constraints.Ordered, T Sortable[K]](objects []T) []T {
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].SortKey() < objects[j].SortKey()
	})
	return objects
}

// query is a helper for writing sql queries that look nice in vscode when using
// the "Inline SQL for go" extension by @jhnj, which gives syntax highlighting
// for strings that begin with `--sql`.
//
// https://marketplace.visualstudio.com/items?itemName=jhnj.vscode-go-inline-sql
func query(x string) string {
	return strings.TrimSpace(strings.TrimPrefix(x, "--sql"))
}

// statement makes sure a definition ends with exactly one semicolon.
func statement(def string) string {
	return strings.TrimRight(strings.TrimSpace(def), ";") + ";"
}

// load runs q and calls scan for each row. The rows are always drained and
// closed before load returns, so callers may issue another query right away
// even on a single-connection pool.
func load(ctx context.Context, db Querier, q string, scan func(*sql.Rows) error, args ...any) error {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// render writes each object followed by a blank line.
func render[T Object](out *strings.Builder, objects []T) {
	for _, obj := range objects {
		out.WriteString(obj.String())
		out.WriteString("\n\n")
	}
}
