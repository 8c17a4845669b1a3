package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

type Enum struct {
	Schema   string
	Name     string
	Elements []string
}

func (e Enum) SortKey() string {
	return pgtools.Identifier(e.Schema, e.Name)
}

func (e Enum) String() string {
	def := fmt.Sprintf("CREATE TYPE %s AS ENUM (", pgtools.Identifier(e.Schema, e.Name))
	lastIndex := len(e.Elements) - 1
	for i, element := range e.Elements {
		def = fmt.Sprintf("%s\n  %s", def, pgtools.Literal(element))
		if i != lastIndex {
			def += ","
		}
	}
	return def + "\n);"
}

func LoadEnums(ctx context.Context, db Querier, config Config) ([]*Enum, error) {
	var enums []*Enum
	err := load(ctx, db, enumsQuery, func(rows *sql.Rows) error {
		var enum Enum
		if err := rows.Scan(
			&enum.Schema,
			&enum.Name,
			pq.Array(&enum.Elements),
		); err != nil {
			return err
		}
		enums = append(enums, &enum)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(enums), nil
}

var enumsQuery = query(`--sql
select
	n.nspname as "schema",
	t.typname as "name",
	array_agg(e.enumlabel order by e.enumsortorder)::text[] as "elements"
from pg_catalog.pg_type t
join pg_catalog.pg_namespace n
	on n.oid = t.typnamespace
join pg_catalog.pg_enum e
	on e.enumtypid = t.oid
where n.nspname = ANY($1)
group by 1, 2
order by 1, 2
`)
