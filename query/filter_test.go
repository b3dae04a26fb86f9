package query

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModel = &Model{
	Table: "stories",
	ID:    "stories.id",
	Fields: map[string]Field{
		"title":      {Column: "stories.title", Strategy: Substring, Sortable: true},
		"status":     {Column: "stories.status", Strategy: Set, Sortable: true},
		"creator_id": {Column: "stories.creator_id", Strategy: Exact, Kind: Int},
		"created_at": {Column: "stories.created_at", Sortable: true},
	},
}

func applied(t *testing.T, filters Filters) (string, []any) {
	t.Helper()
	b, err := Apply(sq.Select("stories.id").From("stories"), testModel, filters)
	require.NoError(t, err)
	sqlStr, args, err := b.ToSql()
	require.NoError(t, err)
	return sqlStr, args
}

func TestApplySetMatchesAnyValue(t *testing.T) {
	sqlStr, args := applied(t, Filters{"status": {"active", "merged"}})
	assert.Equal(t, "SELECT stories.id FROM stories WHERE stories.status IN (?,?)", sqlStr)
	assert.Equal(t, []any{"active", "merged"}, args)
}

func TestApplySubstringIsCaseInsensitiveAndEscaped(t *testing.T) {
	sqlStr, args := applied(t, Filters{"title": {"Fix 100%"}})
	assert.Contains(t, sqlStr, "LOWER(stories.title) LIKE ? ESCAPE '!'")
	assert.Equal(t, []any{"%fix 100!%%"}, args)
}

func TestApplyExact(t *testing.T) {
	sqlStr, args := applied(t, Filters{"creator_id": {"7"}})
	assert.Equal(t, "SELECT stories.id FROM stories WHERE stories.creator_id = ?", sqlStr)
	assert.Equal(t, []any{int64(7)}, args)

	sqlStr, args = applied(t, Filters{"creator_id": {"7", "", "8"}})
	assert.Equal(t, "SELECT stories.id FROM stories WHERE stories.creator_id IN (?,?)", sqlStr)
	assert.Equal(t, []any{int64(7), int64(8)}, args)
}

func TestApplySubstringLowersASCIIOnly(t *testing.T) {
	_, args := applied(t, Filters{"title": {"École ABC"}})
	assert.Equal(t, []any{"%École abc%"}, args)
}

func TestIDs(t *testing.T) {
	ids, err := IDs("project_id", []string{"1", " 2 ", ""})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	ids, err = IDs("project_id", nil)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = IDs("project_id", []string{"1", "two"})
	var filterErr *InvalidFilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, "project_id", filterErr.Field)
	assert.Equal(t, "two", filterErr.Value)
}

func TestApplyIgnoresUnknownAndEmptyFilters(t *testing.T) {
	sqlStr, args := applied(t, Filters{
		"colour":     {"red"},
		"status":     {""},
		"title":      {"  "},
		"created_at": {"2024-01-01"},
	})
	assert.Equal(t, "SELECT stories.id FROM stories", sqlStr)
	assert.Empty(t, args)
}

func TestApplyRejectsNonNumericIDs(t *testing.T) {
	_, err := Apply(sq.Select("stories.id").From("stories"), testModel, Filters{"creator_id": {"bob"}})

	var filterErr *InvalidFilterError
	require.ErrorAs(t, err, &filterErr)
	assert.Equal(t, "creator_id", filterErr.Field)
	assert.True(t, IsClientError(err))
}
