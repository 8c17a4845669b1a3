package schema

import (
	"context"
	"database/sql"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

type Index struct {
	Schema     string
	TableName  string
	Name       string
	Definition string
}

func (i Index) SortKey() string {
	return pgtools.Identifier(i.Schema, i.TableName, i.Name)
}

func (i Index) String() string {
	return statement(i.Definition)
}

func LoadIndexes(ctx context.Context, db Querier, config Config) ([]*Index, error) {
	var indexes []*Index
	err := load(ctx, db, indexesQuery, func(rows *sql.Rows) error {
		var index Index
		if err := rows.Scan(
			&index.Schema,
			&index.TableName,
			&index.Name,
			&index.Definition,
		); err != nil {
			return err
		}
		indexes = append(indexes, &index)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(indexes), nil
}

var indexesQuery = query(`--sql
select
	schemaname as "schema",
	tablename as "table_name",
	indexname as "name",
	indexdef as "definition"
from pg_catalog.pg_indexes
where schemaname = ANY($1)
order by 1, 2, 3
`)
