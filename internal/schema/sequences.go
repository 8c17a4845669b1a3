package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

// Sequence omits the current value: using a sequence is not a schema change.
type Sequence struct {
	Schema    string
	Name      string
	DataType  string
	Start     int64
	Min       int64
	Max       int64
	Increment int64
	Cycle     bool
}

func (s Sequence) SortKey() string {
	return pgtools.Identifier(s.Schema, s.Name)
}

func (s Sequence) String() string {
	cycle := "NO CYCLE"
	if s.Cycle {
		cycle = "CYCLE"
	}
	return fmt.Sprintf(
		"CREATE SEQUENCE %s AS %s START WITH %d INCREMENT BY %d MINVALUE %d MAXVALUE %d %s;",
		pgtools.Identifier(s.Schema, s.Name),
		s.DataType,
		s.Start,
		s.Increment,
		s.Min,
		s.Max,
		cycle,
	)
}

func LoadSequences(ctx context.Context, db Querier, config Config) ([]*Sequence, error) {
	var sequences []*Sequence
	err := load(ctx, db, sequencesQuery, func(rows *sql.Rows) error {
		var seq Sequence
		if err := rows.Scan(
			&seq.Schema,
			&seq.Name,
			&seq.DataType,
			&seq.Start,
			&seq.Min,
			&seq.Max,
			&seq.Increment,
			&seq.Cycle,
		); err != nil {
			return err
		}
		sequences = append(sequences, &seq)
		return nil
	}, config.Schemas)
	if err != nil {
		return nil, err
	}
	return Sort(sequences), nil
}

var sequencesQuery = query(`--sql
select
	schemaname,
	sequencename,
	data_type::text,
	start_value,
	min_value,
	max_value,
	increment_by,
	cycle
from pg_catalog.pg_sequences
where schemaname = ANY($1)
order by 1, 2
`)
