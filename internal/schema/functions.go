package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

type Function struct {
	Schema     string
	Name       string
	Arguments  string
	Definition string
}

// SortKey includes the arguments because functions can be overloaded.
func (f Function) SortKey() string {
	return fmt.Sprintf("%s(%s)", pgtools.Identifier(f.Schema, f.Name), f.Arguments)
}

func (f Function) String() string {
	return statement(f.Definition)
}

func LoadFunctions(ctx context.Context, db Querier, config Config) ([]*Function, error) {
	var functions []*Function
	err := load(ctx, db, functionsQuery, func(rows *sql.Rows) error {
		var function Function
		if err := rows.Scan(
			&function.Schema,
			&function.Name,
			&function.Arguments,
			&function.Definition,
		); err != nil {
			return err
		}
		functions = append(functions, &function)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(functions), nil
}

// Aggregates and window functions are skipped; pg_get_functiondef doesn't
// support them.
var functionsQuery = query(`--sql
select
	n.nspname as "schema",
	p.proname as "name",
	coalesce(pg_catalog.pg_get_function_identity_arguments(p.oid), '') as "arguments",
	pg_catalog.pg_get_functiondef(p.oid) as "definition"
from pg_catalog.pg_proc p
join pg_catalog.pg_namespace n
	on n.oid = p.pronamespace
where
	p.prokind in ('f', 'p')
	and n.nspname = ANY($1)
	and not exists (
		select 1 from pg_catalog.pg_depend d
		where d.objid = p.oid and d.deptype = 'e'
	)
order by 1, 2, 3
`)
