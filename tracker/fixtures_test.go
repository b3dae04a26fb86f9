package tracker

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/milanbella/storyboard/db/dbtest"
)

func ptr[T any](v T) *T { return &v }

// fixture loads:
//
//	user 1
//	projects 1..3; group 1 = {3}, group 2 = {1, 2}
//	stories 1..5; "foo" in title and description of 1 and 3
//	tasks linking story 1 to project 1, story 2 to project 2 (both assigned
//	to user 1) and story 3 to project 3
type fixture struct {
	conn  *sql.DB
	store *Store
	user  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	conn := dbtest.New(t)
	f := &fixture{conn: conn, store: NewStore(conn), user: dbtest.InsertUser(t, conn, "superuser")}

	for _, name := range []string{"storyboard", "nova", "swift"} {
		_, err := f.store.CreateProject(ctx, ProjectInput{Name: ptr(name), Description: ptr("the " + name + " project")})
		require.NoError(t, err)
	}

	for _, g := range []struct {
		name     string
		projects []int64
	}{
		{"infra", []int64{3}},
		{"core", []int64{1, 2}},
	} {
		group, err := f.store.CreateProjectGroup(ctx, ProjectGroupInput{Name: ptr(g.name), Title: ptr("Group " + g.name)})
		require.NoError(t, err)
		for _, p := range g.projects {
			require.NoError(t, f.store.AddProjectToGroup(ctx, group.ID, p))
		}
	}

	for _, s := range []StoryInput{
		{Title: ptr("E foo story"), Description: ptr("foo bar"), Status: ptr(StoryActive)},
		{Title: ptr("D bar story"), Description: ptr("bar"), Status: ptr(StoryMerged)},
		{Title: ptr("C foo story"), Description: ptr("foo"), Status: ptr(StoryInvalid)},
		{Title: ptr("B bar story"), Description: ptr("bar"), Status: ptr(StoryInvalid)},
		{Title: ptr("A bar story"), Description: ptr("bar"), Status: ptr(StoryInvalid)},
	} {
		_, err := f.store.CreateStory(ctx, s, f.user)
		require.NoError(t, err)
	}

	for _, task := range []TaskInput{
		{Title: ptr("task 1"), StoryID: ptr(int64(1)), ProjectID: ptr(int64(1)), AssigneeID: ptr(f.user)},
		{Title: ptr("task 2"), StoryID: ptr(int64(1)), ProjectID: ptr(int64(1)), Status: ptr("review")},
		{Title: ptr("task 3"), StoryID: ptr(int64(2)), ProjectID: ptr(int64(2)), AssigneeID: ptr(f.user), Status: ptr("merged")},
		{Title: ptr("task 4"), StoryID: ptr(int64(3)), ProjectID: ptr(int64(3))},
	} {
		_, err := f.store.CreateTask(ctx, task)
		require.NoError(t, err)
	}

	return f
}
