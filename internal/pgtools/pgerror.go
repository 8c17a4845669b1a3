package pgtools

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorData returns as much information as possible about an error reported
// by the Postgres server, keyed for structured logging. Errors that did not
// come from the server produce an empty map.
func ErrorData(err error) map[string]any {
	data := make(map[string]any)
	var perr *pgconn.PgError
	if !errors.As(err, &perr) {
		return data
	}
	data["pg_code"] = perr.Code
	optional := map[string]string{
		"pg_detail":     perr.Detail,
		"pg_hint":       perr.Hint,
		"pg_schema":     perr.SchemaName,
		"pg_table":      perr.TableName,
		"pg_column":     perr.ColumnName,
		"pg_constraint": perr.ConstraintName,
		"pg_where":      perr.Where,
		"pg_severity":   perr.Severity,
	}
	for key, value := range optional {
		if value != "" {
			data[key] = value
		}
	}
	if perr.Position != 0 {
		data["pg_position"] = perr.Position
	}
	return data
}
