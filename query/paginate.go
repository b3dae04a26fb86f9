package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"

	defaultSortField = "id"
)

// PageRequest selects one page of a list. Marker is the id of the last item
// of the previous page.
type PageRequest struct {
	SortField string
	SortDir   string
	Marker    *int64
	Limit     *int
}

func (p PageRequest) normalized() PageRequest {
	if p.SortField == "" {
		p.SortField = defaultSortField
	}
	if p.SortDir == "" {
		p.SortDir = SortAsc
	}
	return p
}

// Paginate orders b by the requested field with id as an ascending
// tie-break, restricts it to rows after the marker and applies the limit.
// The returned flag is false when the marker does not name an existing row,
// in which case the marker is ignored.
func Paginate(ctx context.Context, q Querier, b sq.SelectBuilder, m *Model, p PageRequest) (sq.SelectBuilder, bool, error) {
	p = p.normalized()

	sortColumn, err := m.sortColumn(p.SortField)
	if err != nil {
		return b, false, err
	}

	var op string
	switch strings.ToLower(p.SortDir) {
	case SortAsc:
		op = ">"
	case SortDesc:
		op = "<"
	default:
		return b, false, ErrInvalidSortDir
	}
	dir := strings.ToUpper(p.SortDir)

	if sortColumn == m.ID {
		b = b.OrderBy(m.ID + " " + dir)
	} else {
		b = b.OrderBy(sortColumn+" "+dir, m.ID+" ASC")
	}

	markerApplied := false
	if p.Marker != nil {
		exists, err := m.exists(ctx, q, *p.Marker)
		if err != nil {
			return b, false, err
		}
		if exists {
			b = b.Where(m.after(sortColumn, op, *p.Marker))
			markerApplied = true
		}
	}

	if p.Limit != nil {
		b = b.Limit(uint64(*p.Limit))
	}

	return b, markerApplied, nil
}

func (m *Model) sortColumn(name string) (string, error) {
	if name == defaultSortField {
		return m.ID, nil
	}
	field, ok := m.Fields[name]
	if !ok || !field.Sortable {
		return "", &InvalidSortKeyError{Field: name}
	}
	return field.Column, nil
}

// after selects rows strictly past the marker row in (sortColumn, id) order.
// The marker's sort value is read by sub-select so it is compared in the
// column's own type.
func (m *Model) after(sortColumn, op string, marker int64) sq.Sqlizer {
	if sortColumn == m.ID {
		return sq.Expr(fmt.Sprintf("%s %s ?", m.ID, op), marker)
	}
	sub := fmt.Sprintf("(SELECT %s FROM %s WHERE %s = ?)", sortColumn, m.Table, m.ID)
	return sq.Expr(
		fmt.Sprintf("(%s %s %s OR (%s = %s AND %s > ?))", sortColumn, op, sub, sortColumn, sub, m.ID),
		marker, marker, marker,
	)
}

func (m *Model) exists(ctx context.Context, q Querier, id int64) (bool, error) {
	sqlStr, args, err := sq.Select("1").From(m.Table).Where(sq.Eq{m.ID: id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build marker lookup: %w", err)
	}

	var one int
	err = q.QueryRowContext(ctx, sqlStr, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up marker %d in %s: %w", id, m.Table, err)
	}
	return true, nil
}
