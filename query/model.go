// Package query builds filtered, sorted and marker-paginated list queries.
package query

import (
	"context"
	"database/sql"
)

// Strategy is how a filter value is compared against a column.
type Strategy int

const (
	// NoFilter marks a field that can be sorted on but not filtered by.
	NoFilter Strategy = iota
	// Exact compares a single value for equality; several values match any of them.
	Exact
	// Substring matches case-insensitively anywhere in the column.
	Substring
	// Set matches when the column equals any supplied value.
	Set
)

// Kind is the type filter values are converted to before binding.
type Kind int

const (
	String Kind = iota
	Int
)

type Field struct {
	Column   string
	Strategy Strategy
	Kind     Kind
	Sortable bool
}

// Model describes one list endpoint's table. Columns are table-qualified so
// they stay unambiguous when a resource adds joins.
type Model struct {
	Table  string
	ID     string
	Fields map[string]Field
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
