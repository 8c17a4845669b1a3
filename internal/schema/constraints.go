package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

type Constraint struct {
	Schema     string
	TableName  string
	Name       string
	Type       string
	Definition string
	Columns    []string
}

func (c Constraint) SortKey() string {
	return pgtools.Identifier(c.Schema, c.TableName, c.Name)
}

func (c Constraint) String() string {
	return fmt.Sprintf(
		"ALTER TABLE %s ADD CONSTRAINT %s %s;",
		pgtools.Identifier(c.Schema, c.TableName),
		pgtools.Identifier(c.Name),
		c.Definition,
	)
}

func LoadConstraints(ctx context.Context, db Querier, config Config) ([]*Constraint, error) {
	var constraints []*Constraint
	err := load(ctx, db, constraintsQuery, func(rows *sql.Rows) error {
		var con Constraint
		if err := rows.Scan(
			&con.Schema,
			&con.TableName,
			&con.Name,
			&con.Type,
			&con.Definition,
			pq.Array(&con.Columns),
		); err != nil {
			return err
		}
		constraints = append(constraints, &con)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(constraints), nil
}

var constraintsQuery = query(`--sql
select
	n.nspname as "schema",
	c.relname as "table_name",
	con.conname as "name",
	case con.contype
		when 'c' then 'check'
		when 'f' then 'foreign_key'
		when 'p' then 'primary_key'
		when 'u' then 'unique'
		when 'x' then 'exclude'
	end as "type",
	pg_catalog.pg_get_constraintdef(con.oid) as "definition",
	coalesce((
		select array_agg(a.attname order by k.n)
		from unnest(con.conkey) with ordinality k(attnum, n)
		join pg_catalog.pg_attribute a
			on a.attrelid = con.conrelid and a.attnum = k.attnum
	), '{}')::text[] as "columns"
from pg_catalog.pg_constraint con
join pg_catalog.pg_class c
	on c.oid = con.conrelid
join pg_catalog.pg_namespace n
	on n.oid = c.relnamespace
where
	con.contype in ('c', 'f', 'p', 'u', 'x')
	and n.nspname = ANY($1)
order by 1, 2, 3
`)
