package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteTable is rendered column by column from pragma_table_info rather than
// from the CREATE TABLE text stored in sqlite_master, because sqlite rewrites
// that text in place on ALTER TABLE: a table that had a column added and
// dropped again has the same structure but different text.
type SQLiteTable struct {
	Name        string
	Columns     []SQLiteColumn
	ForeignKeys []SQLiteForeignKey
	Uniques     []SQLiteUnique
}

type SQLiteColumn struct {
	Name       string
	Type       string
	NotNull    bool
	DefaultDef sql.NullString
	PK         int // 1-based position in the primary key, 0 if not part of it
}

type SQLiteForeignKey struct {
	ID       int
	Table    string
	From     []string
	To       []string
	OnUpdate string
	OnDelete string
}

// SQLiteUnique is a UNIQUE or PRIMARY KEY constraint backed by an automatic
// index.
type SQLiteUnique struct {
	Origin  string // "u" or "pk"
	Columns []string
}

func (t SQLiteTable) SortKey() string {
	return t.Name
}

func (t SQLiteTable) String() string {
	var defs []string
	var pk []string
	for _, c := range t.Columns {
		def := sqliteIdentifier(c.Name)
		if c.Type != "" {
			def += " " + c.Type
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		if c.DefaultDef.Valid {
			def += " DEFAULT " + c.DefaultDef.String
		}
		defs = append(defs, def)
		if c.PK > 0 {
			for len(pk) < c.PK {
				pk = append(pk, "")
			}
			pk[c.PK-1] = sqliteIdentifier(c.Name)
		}
	}
	if len(pk) > 0 {
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pk, ", ")))
	}
	for _, u := range t.Uniques {
		if u.Origin == "u" {
			defs = append(defs, fmt.Sprintf("UNIQUE (%s)", joinIdentifiers(u.Columns)))
		}
	}
	for _, fk := range t.ForeignKeys {
		def := fmt.Sprintf(
			"FOREIGN KEY (%s) REFERENCES %s (%s)",
			joinIdentifiers(fk.From),
			sqliteIdentifier(fk.Table),
			joinIdentifiers(fk.To),
		)
		if fk.OnUpdate != "" && fk.OnUpdate != "NO ACTION" {
			def += " ON UPDATE " + fk.OnUpdate
		}
		if fk.OnDelete != "" && fk.OnDelete != "NO ACTION" {
			def += " ON DELETE " + fk.OnDelete
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n);", sqliteIdentifier(t.Name), strings.Join(defs, ",\n  "))
}

// SQLiteObject is an index, view, or trigger, rendered with the SQL that
// created it.
type SQLiteObject struct {
	Type  string
	Name  string
	Table string
	SQL   string
}

func (o SQLiteObject) SortKey() string {
	return o.Type + " " + o.Name
}

func (o SQLiteObject) String() string {
	return statement(o.SQL)
}

// SQLiteSchema is everything captured from a sqlite database.
type SQLiteSchema struct {
	Tables  []*SQLiteTable
	Objects []*SQLiteObject
}

func (s *SQLiteSchema) String() string {
	out := strings.Builder{}
	render(&out, Sort(s.Tables))
	render(&out, Sort(s.Objects))
	return strings.TrimSpace(out.String())
}

// SQLite returns the text snapshot of a sqlite database.
func SQLite(ctx context.Context, db Querier) (string, error) {
	s, err := ParseSQLite(ctx, db)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// ParseSQLite loads every table, index, view, and trigger except sqlite's
// own internal objects.
func ParseSQLite(ctx context.Context, db Querier) (*SQLiteSchema, error) {
	s := SQLiteSchema{}
	var tableNames []string
	err := load(ctx, db, sqliteMasterQuery, func(rows *sql.Rows) error {
		var obj SQLiteObject
		var text sql.NullString
		if err := rows.Scan(&obj.Type, &obj.Name, &obj.Table, &text); err != nil {
			return err
		}
		if obj.Type == "table" {
			tableNames = append(tableNames, obj.Name)
			return nil
		}
		if !text.Valid {
			return nil
		}
		obj.SQL = text.String
		s.Objects = append(s.Objects, &obj)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite_master: %w", err)
	}
	for _, name := range tableNames {
		table, err := loadSQLiteTable(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		s.Tables = append(s.Tables, table)
	}
	Sort(s.Tables)
	Sort(s.Objects)
	return &s, nil
}

func loadSQLiteTable(ctx context.Context, db Querier, name string) (*SQLiteTable, error) {
	table := SQLiteTable{Name: name}
	err := load(ctx, db, sqliteColumnsQuery, func(rows *sql.Rows) error {
		var col SQLiteColumn
		if err := rows.Scan(&col.Name, &col.Type, &col.NotNull, &col.DefaultDef, &col.PK); err != nil {
			return err
		}
		table.Columns = append(table.Columns, col)
		return nil
	}, name)
	if err != nil {
		return nil, err
	}

	var current *SQLiteForeignKey
	err = load(ctx, db, sqliteForeignKeysQuery, func(rows *sql.Rows) error {
		var id int
		var ref, from, onUpdate, onDelete string
		var to sql.NullString
		if err := rows.Scan(&id, &ref, &from, &to, &onUpdate, &onDelete); err != nil {
			return err
		}
		if current == nil || current.ID != id {
			table.ForeignKeys = append(table.ForeignKeys, SQLiteForeignKey{
				ID:       id,
				Table:    ref,
				OnUpdate: onUpdate,
				OnDelete: onDelete,
			})
			current = &table.ForeignKeys[len(table.ForeignKeys)-1]
		}
		current.From = append(current.From, from)
		if to.Valid {
			current.To = append(current.To, to.String)
		}
		return nil
	}, name)
	if err != nil {
		return nil, err
	}

	type autoIndex struct{ name, origin string }
	var autos []autoIndex
	err = load(ctx, db, sqliteIndexListQuery, func(rows *sql.Rows) error {
		var idx autoIndex
		if err := rows.Scan(&idx.name, &idx.origin); err != nil {
			return err
		}
		autos = append(autos, idx)
		return nil
	}, name)
	if err != nil {
		return nil, err
	}
	for _, idx := range autos {
		unique := SQLiteUnique{Origin: idx.origin}
		err := load(ctx, db, sqliteIndexInfoQuery, func(rows *sql.Rows) error {
			var col sql.NullString
			if err := rows.Scan(&col); err != nil {
				return err
			}
			unique.Columns = append(unique.Columns, col.String)
			return nil
		}, idx.name)
		if err != nil {
			return nil, err
		}
		table.Uniques = append(table.Uniques, unique)
	}
	// Automatic index names are numbered in declaration order, which is not
	// part of the structure.
	Sort(table.Uniques)
	return &table, nil
}

func (u SQLiteUnique) SortKey() string {
	return u.Origin + "(" + strings.Join(u.Columns, ",") + ")"
}

func sqliteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func joinIdentifiers(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, name := range names {
		quoted = append(quoted, sqliteIdentifier(name))
	}
	return strings.Join(quoted, ", ")
}

var sqliteMasterQuery = query(`--sql
select type, name, tbl_name, sql
from sqlite_master
where
	type in ('table', 'index', 'view', 'trigger')
	and name not like 'sqlite\_%' escape '\'
order by type, name
`)

var sqliteColumnsQuery = query(`--sql
select name, type, "notnull", dflt_value, pk
from pragma_table_info(?)
order by cid
`)

var sqliteForeignKeysQuery = query(`--sql
select id, "table", "from", "to", on_update, on_delete
from pragma_foreign_key_list(?)
order by id, seq
`)

// Only automatic indexes: explicit ones are in sqlite_master with their SQL.
var sqliteIndexListQuery = query(`--sql
select name, origin
from pragma_index_list(?)
where origin in ('u', 'pk')
order by name
`)

var sqliteIndexInfoQuery = query(`--sql
select name
from pragma_index_info(?)
order by seqno
`)
