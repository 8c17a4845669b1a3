package rollcheck

import (
	"context"
	"database/sql"
	"fmt"
)

// Snapshot is a structural description of a database schema. Two snapshots
// are compared only through their text form.
type Snapshot interface {
	String() string
}

// TextSnapshot is a [Snapshot] that is already text.
type TextSnapshot string

func (s TextSnapshot) String() string {
	return string(s)
}

// StateProvider captures the current schema.
type StateProvider interface {
	Capture(ctx context.Context) (Snapshot, error)
}

// StateComparer decides whether two snapshots describe the same schema.
type StateComparer interface {
	Equal(a, b Snapshot) bool
}

// TextComparer considers two snapshots equal when their text forms are
// byte-for-byte identical.
type TextComparer struct{}

func (TextComparer) Equal(a, b Snapshot) bool {
	return a.String() == b.String()
}

// SQLStates captures snapshots of a live database through its [Dialect].
type SQLStates struct {
	DB      *sql.DB
	Dialect Dialect
}

func (s SQLStates) Capture(ctx context.Context) (Snapshot, error) {
	text, err := s.Dialect.Capture(ctx, s.DB)
	if err != nil {
		return nil, fmt.Errorf("capture %s schema: %w", s.Dialect.Name(), err)
	}
	return TextSnapshot(text), nil
}
