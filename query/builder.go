package query

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"
)

// Builder produces list queries for one resource type.
type Builder[T any] struct {
	DB      Querier
	Model   *Model
	Columns []string
	Scan    func(sq.RowScanner) (T, error)
	ID      func(T) int64
}

// Query is a filtered query over the builder's model. Count and List share
// every condition added to it.
type Query[T any] struct {
	b     *Builder[T]
	joins []join
	where []sq.Sqlizer
}

type join struct {
	clause string
	args   []any
}

type PageResult[T any] struct {
	Items      []T
	Total      int64
	Marker     *int64
	Limit      *int
	NextMarker *int64
}

func (b *Builder[T]) Query(filters Filters) (*Query[T], error) {
	conds, err := b.Model.Conditions(filters)
	if err != nil {
		return nil, err
	}
	return &Query[T]{b: b, where: conds}, nil
}

// Join adds an inner join, e.g. "project_group_mapping ON ...".
func (q *Query[T]) Join(clause string, args ...any) *Query[T] {
	q.joins = append(q.joins, join{clause: clause, args: args})
	return q
}

func (q *Query[T]) Where(pred sq.Sqlizer) *Query[T] {
	q.where = append(q.where, pred)
	return q
}

func (q *Query[T]) selecting(columns ...string) sq.SelectBuilder {
	sb := sq.Select(columns...).From(q.b.Model.Table)
	for _, j := range q.joins {
		sb = sb.Join(j.clause, j.args...)
	}
	for _, w := range q.where {
		sb = sb.Where(w)
	}
	return sb
}

// Count returns the number of matching rows, ignoring limit and marker.
func (q *Query[T]) Count(ctx context.Context) (int64, error) {
	sqlStr, args, err := q.selecting(fmt.Sprintf("COUNT(DISTINCT %s)", q.b.Model.ID)).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s count: %w", q.b.Model.Table, err)
	}

	var total int64
	if err := q.b.DB.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.b.Model.Table, err)
	}
	return total, nil
}

// List returns one page of matching rows and whether the marker was applied.
func (q *Query[T]) List(ctx context.Context, p PageRequest) ([]T, bool, error) {
	sel := q.selecting(q.b.Columns...)
	if len(q.joins) > 0 {
		// a row matching several joined rows is listed once
		sel = sel.Distinct()
	}
	sb, markerApplied, err := Paginate(ctx, q.b.DB, sel, q.b.Model, p)
	if err != nil {
		return nil, false, err
	}

	sqlStr, args, err := sb.ToSql()
	if err != nil {
		return nil, false, fmt.Errorf("build %s list: %w", q.b.Model.Table, err)
	}

	rows, err := q.b.DB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list %s: %w", q.b.Model.Table, err)
	}
	defer rows.Close()

	items := []T{}
	for rows.Next() {
		item, err := q.b.Scan(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan %s: %w", q.b.Model.Table, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate %s: %w", q.b.Model.Table, err)
	}

	return items, markerApplied, nil
}

// Page runs List and Count concurrently.
func (q *Query[T]) Page(ctx context.Context, p PageRequest) (*PageResult[T], error) {
	res := &PageResult[T]{Limit: p.Limit}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		total, err := q.Count(gctx)
		res.Total = total
		return err
	})

	var markerApplied bool
	g.Go(func() error {
		items, applied, err := q.List(gctx, p)
		res.Items = items
		markerApplied = applied
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if markerApplied {
		res.Marker = p.Marker
	}
	if p.Limit != nil && len(res.Items) > 0 && len(res.Items) == *p.Limit && q.b.ID != nil {
		next := q.b.ID(res.Items[len(res.Items)-1])
		res.NextMarker = &next
	}
	return res, nil
}
