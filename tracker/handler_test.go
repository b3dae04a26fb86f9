package tracker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/milanbella/storyboard/metrics"
	"github.com/milanbella/storyboard/session"
)

const testToken = "valid_superuser_token"

func newServer(t *testing.T) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t)

	_, err := f.conn.Exec(
		`INSERT INTO access_tokens (access_token, user_id, expires_in, expires_at) VALUES (?, ?, ?, ?)`,
		testToken, f.user, 3600, time.Now().UTC().Add(time.Hour).Truncate(time.Second),
	)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(session.NewManager(f.conn).Middleware)
	NewHandler(f.store, 3, metrics.New()).Routes(r, session.RequireUser)
	return f, r
}

func do(t *testing.T, h http.Handler, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeIDs(t *testing.T, rec *httptest.ResponseRecorder) []int64 {
	t.Helper()
	var items []struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	out := []int64{}
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestStorySearchEndpoint(t *testing.T) {
	_, srv := newServer(t)

	tests := []struct {
		name       string
		query      string
		want       []int64
		total      string
		limit      string
		marker     string
		wantStatus int
	}{
		{name: "all", query: "", want: []int64{1, 2, 3, 4, 5}, total: "5", wantStatus: http.StatusOK},
		{name: "statuses union", query: "status=active&status=merged", want: []int64{1, 2}, total: "2", wantStatus: http.StatusOK},
		{name: "title limit", query: "title=foo&limit=1", want: []int64{1}, total: "2", limit: "1", wantStatus: http.StatusOK},
		{name: "title marker", query: "title=foo&marker=1", want: []int64{3}, total: "2", marker: "1", wantStatus: http.StatusOK},
		{name: "unknown marker", query: "marker=77", want: []int64{1, 2, 3, 4, 5}, total: "5", wantStatus: http.StatusOK},
		{name: "title asc", query: "sort_field=title&sort_dir=asc", want: []int64{5, 4, 3, 2, 1}, total: "5", wantStatus: http.StatusOK},
		{name: "title desc", query: "sort_field=title&sort_dir=desc", want: []int64{1, 2, 3, 4, 5}, total: "5", wantStatus: http.StatusOK},
		{name: "paged status", query: "limit=2&sort_field=id&status=invalid", want: []int64{3, 4}, total: "3", limit: "2", wantStatus: http.StatusOK},
		{name: "empty", query: "title=grumpycat", want: []int64{}, total: "0", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/stories?"+tt.query, "", false)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			assert.Equal(t, tt.want, decodeIDs(t, rec))
			assert.Equal(t, tt.total, rec.Header().Get("X-Total"))
			assert.Equal(t, tt.limit, rec.Header().Get("X-Limit"))
			assert.Equal(t, tt.marker, rec.Header().Get("X-Marker"))
		})
	}
}

func TestListClampsLimit(t *testing.T) {
	_, srv := newServer(t)

	rec := do(t, srv, http.MethodGet, "/stories?limit=100", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1, 2, 3}, decodeIDs(t, rec))
	assert.Equal(t, "3", rec.Header().Get("X-Limit"))
}

func TestListClientErrors(t *testing.T) {
	_, srv := newServer(t)

	for _, target := range []string{
		"/stories?sort_field=bogus",
		"/stories?sort_dir=up",
		"/stories?limit=0",
		"/stories?marker=abc",
		"/tasks?story_id=x",
		"/stories?assignee_id=me",
	} {
		rec := do(t, srv, http.MethodGet, target, "", false)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
		assert.Contains(t, rec.Body.String(), `"faultcode":"Client"`, target)
	}

	rec := do(t, srv, http.MethodGet, "/stories?sort_field=bogus", "", false)
	assert.Contains(t, rec.Body.String(), "Invalid sort_field [bogus]")
}

func TestStoryCreateGetUpdate(t *testing.T) {
	f, srv := newServer(t)

	rec := do(t, srv, http.MethodPost, "/stories", `{"title":"StoryBoard","description":"Awesome Task Tracker"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv, http.MethodPost, "/stories", `{"title":"StoryBoard","description":"Awesome Task Tracker"}`, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created Story
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotNil(t, created.CreatorID)
	assert.Equal(t, f.user, *created.CreatorID)

	rec = do(t, srv, http.MethodGet, "/stories/6", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched Story
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fetched))
	assert.Equal(t, "StoryBoard", fetched.Title)
	assert.Len(t, fetched.TaskStatuses, 5)

	rec = do(t, srv, http.MethodPut, "/stories/6", `{"title":"new title","description":"new description"}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var updated Story
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, created.ID, updated.ID)
	assert.NotEqual(t, created.Title, updated.Title)

	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/stories/600", "", false).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/stories/abc", "", false).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPut, "/stories/6", `{"title":`, true).Code)
}

func TestProjectGroupProjectsEndpoint(t *testing.T) {
	_, srv := newServer(t)

	rec := do(t, srv, http.MethodGet, "/project_groups/2/projects", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int64{1, 2}, decodeIDs(t, rec))
	assert.Equal(t, "2", rec.Header().Get("X-Total"))

	rec = do(t, srv, http.MethodPut, "/project_groups/2/projects/3", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, srv, http.MethodGet, "/project_groups/2/projects?sort_dir=desc", "", false)
	assert.Equal(t, []int64{3, 2, 1}, decodeIDs(t, rec))

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/project_groups/2/projects/3", "", true).Code)
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/project_groups/9/projects", "", false).Code)

	rec = do(t, srv, http.MethodPost, "/projects", `{"name":"nova"}`, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
