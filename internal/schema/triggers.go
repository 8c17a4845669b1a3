package schema

import (
	"context"
	"database/sql"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

type Trigger struct {
	Schema     string
	TableName  string
	Name       string
	Definition string
}

func (t Trigger) SortKey() string {
	// Triggers on different tables may have the same name
	return pgtools.Identifier(t.Schema, t.TableName, t.Name)
}

func (t Trigger) String() string {
	return statement(t.Definition)
}

func LoadTriggers(ctx context.Context, db Querier, config Config) ([]*Trigger, error) {
	var triggers []*Trigger
	err := load(ctx, db, triggersQuery, func(rows *sql.Rows) error {
		var trigger Trigger
		if err := rows.Scan(
			&trigger.Schema,
			&trigger.TableName,
			&trigger.Name,
			&trigger.Definition,
		); err != nil {
			return err
		}
		triggers = append(triggers, &trigger)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(triggers), nil
}

var triggersQuery = query(`--sql
select
	n.nspname as "schema",
	c.relname as "table_name",
	t.tgname as "name",
	pg_catalog.pg_get_triggerdef(t.oid, true) as "definition"
from pg_catalog.pg_trigger t
join pg_catalog.pg_class c
	on c.oid = t.tgrelid
join pg_catalog.pg_namespace n
	on n.oid = c.relnamespace
where
	not t.tgisinternal
	and n.nspname = ANY($1)
order by 1, 2, 3
`)
