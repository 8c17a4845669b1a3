// schema captures the structure of a database as deterministic DDL text, so
// that two captures can be compared byte-for-byte and diffed line-by-line.
//
// A snapshot never includes row data, object ids, or sequence positions:
// only things that a migration is expected to change and its rollback to
// restore.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/peterldowns/rollcheck/internal/pgtools"
)

const DefaultSchema = "public"

// Config selects what a Postgres snapshot covers.
type Config struct {
	// The names of the schemas whose contents should be captured. Defaults
	// to [DefaultSchema].
	Schemas []string `yaml:"schemas"`
}

// Schema is everything captured from a Postgres database.
type Schema struct {
	Config      Config
	Extensions  []*Extension
	Enums       []*Enum
	Functions   []*Function
	Sequences   []*Sequence
	Tables      []*Table
	Views       []*View
	Indexes     []*Index
	Constraints []*Constraint
	Triggers    []*Trigger
}

// Postgres returns the text snapshot of a Postgres database.
func Postgres(ctx context.Context, db Querier, config Config) (string, error) {
	s, err := Parse(ctx, db, config)
	if err != nil {
		return "", err
	}
	return s.String(), nil
}

// Parse loads every supported kind of object from the configured schemas.
func Parse(ctx context.Context, db Querier, config Config) (*Schema, error) {
	if len(config.Schemas) == 0 {
		config.Schemas = []string{DefaultSchema}
	}
	s := Schema{Config: config}
	var err error
	if s.Extensions, err = LoadExtensions(ctx, db, config); err != nil {
		return nil, fmt.Errorf("extensions: %w", err)
	}
	if s.Enums, err = LoadEnums(ctx, db, config); err != nil {
		return nil, fmt.Errorf("enums: %w", err)
	}
	if s.Functions, err = LoadFunctions(ctx, db, config); err != nil {
		return nil, fmt.Errorf("functions: %w", err)
	}
	if s.Sequences, err = LoadSequences(ctx, db, config); err != nil {
		return nil, fmt.Errorf("sequences: %w", err)
	}
	if s.Tables, err = LoadTables(ctx, db, config); err != nil {
		return nil, fmt.Errorf("tables: %w", err)
	}
	if s.Views, err = LoadViews(ctx, db, config); err != nil {
		return nil, fmt.Errorf("views: %w", err)
	}
	if s.Indexes, err = LoadIndexes(ctx, db, config); err != nil {
		return nil, fmt.Errorf("indexes: %w", err)
	}
	if s.Constraints, err = LoadConstraints(ctx, db, config); err != nil {
		return nil, fmt.Errorf("constraints: %w", err)
	}
	if s.Triggers, err = LoadTriggers(ctx, db, config); err != nil {
		return nil, fmt.Errorf("triggers: %w", err)
	}
	return &s, nil
}

// String renders the snapshot. Objects are grouped by kind, in a fixed order,
// and sorted by name within each group.
func (s *Schema) String() string {
	out := strings.Builder{}
	render(&out, Sort(s.Extensions))
	for _, name := range s.Config.Schemas {
		out.WriteString(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;\n\n", pgtools.Identifier(name)))
	}
	render(&out, Sort(s.Enums))
	render(&out, Sort(s.Functions))
	render(&out, Sort(s.Sequences))
	render(&out, Sort(s.Tables))
	render(&out, Sort(s.Views))
	render(&out, Sort(s.Indexes))
	render(&out, Sort(s.Constraints))
	render(&out, Sort(s.Triggers))
	return strings.TrimSpace(out.String())
}
