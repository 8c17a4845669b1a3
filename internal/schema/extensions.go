package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

// Extension omits the version: upgrading an extension is not something a
// migration's rollback is expected to undo.
type Extension struct {
	Schema string
	Name   string
}

func (e Extension) SortKey() string {
	return e.Name
}

func (e Extension) String() string {
	return fmt.Sprintf(
		"CREATE EXTENSION IF NOT EXISTS %s WITH SCHEMA %s;",
		pgtools.Identifier(e.Name),
		pgtools.Identifier(e.Schema),
	)
}

func LoadExtensions(ctx context.Context, db Querier, config Config) ([]*Extension, error) {
	var extensions []*Extension
	err := load(ctx, db, extensionsQuery, func(rows *sql.Rows) error {
		var ext Extension
		if err := rows.Scan(&ext.Schema, &ext.Name); err != nil {
			return err
		}
		extensions = append(extensions, &ext)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(extensions), nil
}

var extensionsQuery = query(`--sql
select
	n.nspname as "schema",
	e.extname as "name"
from pg_catalog.pg_extension e
join pg_catalog.pg_namespace n
	on n.oid = e.extnamespace
where
	e.extname != 'plpgsql'
	and n.nspname = ANY($1)
order by 2
`)
