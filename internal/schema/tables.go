package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

type Table struct {
	Schema  string
	Name    string
	Columns []*Column
}

type Column struct {
	Name       string
	DataType   string
	NotNull    bool
	Identity   string // "a" (always), "d" (by default), or ""
	Generated  string // "s" (stored) or ""
	DefaultDef sql.NullString
}

func (t Table) SortKey() string {
	return pgtools.Identifier(t.Schema, t.Name)
}

func (t Table) String() string {
	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, c.String())
	}
	if len(defs) == 0 {
		return fmt.Sprintf("CREATE TABLE %s ();", pgtools.Identifier(t.Schema, t.Name))
	}
	return fmt.Sprintf(
		"CREATE TABLE %s (\n  %s\n);",
		pgtools.Identifier(t.Schema, t.Name),
		strings.Join(defs, ",\n  "),
	)
}

func (c Column) String() string {
	def := fmt.Sprintf("%s %s", pgtools.Identifier(c.Name), c.DataType)
	if c.NotNull {
		def += " NOT NULL"
	}
	switch c.Identity {
	case "a":
		def += " GENERATED ALWAYS AS IDENTITY"
	case "d":
		def += " GENERATED BY DEFAULT AS IDENTITY"
	}
	if c.Generated == "s" && c.DefaultDef.Valid {
		def += fmt.Sprintf(" GENERATED ALWAYS AS (%s) STORED", c.DefaultDef.String)
	} else if c.DefaultDef.Valid {
		def += " DEFAULT " + c.DefaultDef.String
	}
	return def
}

func LoadTables(ctx context.Context, db Querier, config Config) ([]*Table, error) {
	var tables []*Table
	var current *Table
	err := load(ctx, db, tablesQuery, func(rows *sql.Rows) error {
		var schema, name string
		var colName, dataType sql.NullString
		var notNull sql.NullBool
		var column Column
		if err := rows.Scan(
			&schema,
			&name,
			&colName,
			&dataType,
			&notNull,
			&column.Identity,
			&column.Generated,
			&column.DefaultDef,
		); err != nil {
			return err
		}
		if current == nil || current.Schema != schema || current.Name != name {
			current = &Table{Schema: schema, Name: name}
			tables = append(tables, current)
		}
		if colName.Valid {
			column.Name = colName.String
			column.DataType = dataType.String
			column.NotNull = notNull.Bool
			current.Columns = append(current.Columns, &column)
		}
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(tables), nil
}

// Columns are listed in attnum order. Dropped columns keep their attnum, so
// adding and then dropping a column leaves the order of the others intact.
var tablesQuery = query(`--sql
select
	n.nspname as "schema",
	c.relname as "name",
	a.attname as "column_name",
	pg_catalog.format_type(a.atttypid, a.atttypmod) as "data_type",
	a.attnotnull as "not_null",
	coalesce(a.attidentity::text, '') as "identity",
	coalesce(a.attgenerated::text, '') as "generated",
	pg_catalog.pg_get_expr(d.adbin, d.adrelid) as "default_def"
from pg_catalog.pg_class c
join pg_catalog.pg_namespace n
	on n.oid = c.relnamespace
left join pg_catalog.pg_attribute a
	on a.attrelid = c.oid
	and a.attnum > 0
	and not a.attisdropped
left join pg_catalog.pg_attrdef d
	on d.adrelid = c.oid
	and d.adnum = a.attnum
where
	c.relkind in ('r', 'p')
	and n.nspname = ANY($1)
	and not exists (
		select 1 from pg_catalog.pg_depend dep
		where dep.objid = c.oid and dep.deptype = 'e'
	)
order by n.nspname, c.relname, a.attnum
`)
