package query

import (
	"maps"
	"slices"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// Filters maps a filter name to the values supplied for it, in request order.
type Filters map[string][]string

// Apply adds a condition to b for every known, non-empty filter. Unknown
// names are ignored.
func Apply(b sq.SelectBuilder, m *Model, filters Filters) (sq.SelectBuilder, error) {
	conds, err := m.Conditions(filters)
	if err != nil {
		return b, err
	}
	for _, c := range conds {
		b = b.Where(c)
	}
	return b, nil
}

// Conditions converts filters into squirrel predicates.
func (m *Model) Conditions(filters Filters) ([]sq.Sqlizer, error) {
	var conds []sq.Sqlizer
	for _, name := range slices.Sorted(maps.Keys(filters)) {
		field, ok := m.Fields[name]
		if !ok || field.Strategy == NoFilter {
			continue
		}

		values := nonEmpty(filters[name])
		if len(values) == 0 {
			continue
		}

		cond, err := field.condition(name, values)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

func (f Field) condition(name string, values []string) (sq.Sqlizer, error) {
	switch f.Strategy {
	case Substring:
		if len(values) == 1 {
			return like(f.Column, values[0]), nil
		}
		or := sq.Or{}
		for _, v := range values {
			or = append(or, like(f.Column, v))
		}
		return or, nil
	default:
		args := make([]any, 0, len(values))
		for _, v := range values {
			arg, err := f.convert(name, v)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
		}
		if len(args) == 1 && f.Strategy == Exact {
			return sq.Eq{f.Column: args[0]}, nil
		}
		// several values match any of them
		return sq.Eq{f.Column: args}, nil
	}
}

// IDs parses every non-empty value of an id filter.
func IDs(name string, values []string) ([]int64, error) {
	values = nonEmpty(values)
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &InvalidFilterError{Field: name, Value: v}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f Field) convert(name, v string) (any, error) {
	if f.Kind != Int {
		return v, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, &InvalidFilterError{Field: name, Value: v}
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// like matches case-insensitively for ASCII letters only. sqlite's LOWER
// leaves other letters alone, so the pattern must too.
func like(column, value string) sq.Sqlizer {
	pattern := "%" + likeEscaper.Replace(asciiLower(value)) + "%"
	return sq.Expr("LOWER("+column+") LIKE ? ESCAPE '!'", pattern)
}

func nonEmpty(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
