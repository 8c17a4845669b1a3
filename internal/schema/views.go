package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

type View struct {
	Schema       string
	Name         string
	Definition   string
	Materialized bool
}

func (v View) SortKey() string {
	return pgtools.Identifier(v.Schema, v.Name)
}

func (v View) String() string {
	kind := "VIEW"
	if v.Materialized {
		kind = "MATERIALIZED VIEW"
	}
	return fmt.Sprintf("CREATE %s %s AS\n%s", kind, pgtools.Identifier(v.Schema, v.Name), statement(v.Definition))
}

func LoadViews(ctx context.Context, db Querier, config Config) ([]*View, error) {
	var views []*View
	err := load(ctx, db, viewsQuery, func(rows *sql.Rows) error {
		var view View
		if err := rows.Scan(
			&view.Schema,
			&view.Name,
			&view.Definition,
			&view.Materialized,
		); err != nil {
			return err
		}
		views = append(views, &view)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(views), nil
}

var viewsQuery = query(`--sql
select schemaname, viewname, definition, false
from pg_catalog.pg_views
where schemaname = ANY($1)
union all
select schemaname, matviewname, definition, true
from pg_catalog.pg_matviews
where schemaname = ANY($1)
order by 1, 2
`)
