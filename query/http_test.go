package query

import (
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	values := url.Values{
		"sort_field": {"title"},
		"sort_dir":   {"desc"},
		"marker":     {"12"},
		"limit":      {"5000"},
		"status":     {"active", "merged"},
	}

	p, filters, err := ParseRequest(values, 500)
	require.NoError(t, err)

	assert.Equal(t, "title", p.SortField)
	assert.Equal(t, "desc", p.SortDir)
	require.NotNil(t, p.Marker)
	assert.Equal(t, int64(12), *p.Marker)
	require.NotNil(t, p.Limit)
	assert.Equal(t, 500, *p.Limit)
	assert.Equal(t, Filters{"status": {"active", "merged"}}, filters)
}

func TestParseRequestRejectsBadPaging(t *testing.T) {
	for _, values := range []url.Values{
		{"limit": {"0"}},
		{"limit": {"-3"}},
		{"limit": {"ten"}},
		{"marker": {"abc"}},
	} {
		_, _, err := ParseRequest(values, 500)
		assert.Error(t, err, values.Encode())
		assert.True(t, IsClientError(err), values.Encode())
	}
}

func TestSetHeaders(t *testing.T) {
	limit, marker := 2, int64(4)

	rec := httptest.NewRecorder()
	SetHeaders(rec, &PageResult[int]{Total: 9, Limit: &limit, Marker: &marker})
	assert.Equal(t, "9", rec.Header().Get("X-Total"))
	assert.Equal(t, "2", rec.Header().Get("X-Limit"))
	assert.Equal(t, "4", rec.Header().Get("X-Marker"))

	rec = httptest.NewRecorder()
	SetHeaders(rec, &PageResult[int]{Total: 0})
	assert.Equal(t, "0", rec.Header().Get("X-Total"))
	assert.Empty(t, rec.Header().Values("X-Limit"))
	assert.Empty(t, rec.Header().Values("X-Marker"))
}
