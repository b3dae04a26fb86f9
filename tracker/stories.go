package tracker

import (
	"context"
	"fmt"
	"maps"
	"slices"

	sq "github.com/Masterminds/squirrel"

	"github.com/milanbella/storyboard/query"
	"github.com/milanbella/storyboard/stringutils"
)

var storyModel = &query.Model{
	Table: "stories",
	ID:    "stories.id",
	Fields: map[string]query.Field{
		"title":       {Column: "stories.title", Strategy: query.Substring, Sortable: true},
		"description": {Column: "stories.description", Strategy: query.Substring},
		"status":      {Column: "stories.status", Strategy: query.Set, Sortable: true},
		"creator_id":  {Column: "stories.creator_id", Strategy: query.Exact, Kind: query.Int},
		"created_at":  {Column: "stories.created_at", Sortable: true},
		"updated_at":  {Column: "stories.updated_at", Sortable: true},
	},
}

var storyColumns = []string{
	"stories.id", "stories.title", "stories.description", "stories.status",
	"stories.creator_id", "stories.created_at", "stories.updated_at",
}

func scanStory(row sq.RowScanner) (Story, error) {
	var st Story
	err := row.Scan(&st.ID, &st.Title, &st.Description, &st.Status, &st.CreatorID, &st.CreatedAt, &st.UpdatedAt)
	return st, err
}

// storyTaskFilters select stories through their tasks. A story matches
// when any of its tasks matches any of the ids.
var storyTaskFilters = map[string]func(ids []int64) sq.SelectBuilder{
	"project_id": func(ids []int64) sq.SelectBuilder {
		return sq.Select("tasks.story_id").From("tasks").Where(sq.Eq{"tasks.project_id": ids})
	},
	"assignee_id": func(ids []int64) sq.SelectBuilder {
		return sq.Select("tasks.story_id").From("tasks").Where(sq.Eq{"tasks.assignee_id": ids})
	},
	"project_group_id": func(ids []int64) sq.SelectBuilder {
		return sq.Select("tasks.story_id").From("tasks").
			Join("project_group_mapping ON project_group_mapping.project_id = tasks.project_id").
			Where(sq.Eq{"project_group_mapping.project_group_id": ids})
	},
}

type storyRepo struct {
	store   *Store
	builder *query.Builder[Story]
}

func newStoryRepo(s *Store) *storyRepo {
	return &storyRepo{
		store: s,
		builder: &query.Builder[Story]{
			DB:      s.db,
			Model:   storyModel,
			Columns: storyColumns,
			Scan:    scanStory,
			ID:      func(st Story) int64 { return st.ID },
		},
	}
}

func (s *Store) ListStories(ctx context.Context, filters query.Filters, page query.PageRequest) (*query.PageResult[Story], error) {
	q, err := s.stories.builder.Query(filters)
	if err != nil {
		return nil, err
	}

	for _, name := range slices.Sorted(maps.Keys(storyTaskFilters)) {
		ids, err := query.IDs(name, filters[name])
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			continue
		}
		sub, args, err := storyTaskFilters[name](ids).ToSql()
		if err != nil {
			return nil, fmt.Errorf("build %s filter: %w", name, err)
		}
		q.Where(sq.Expr("stories.id IN ("+sub+")", args...))
	}

	res, err := q.Page(ctx, page)
	if err != nil {
		return nil, err
	}
	if err := s.stories.attachTaskStatuses(ctx, res.Items); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) GetStory(ctx context.Context, id int64) (*Story, error) {
	st, err := getOne(ctx, s.db, sq.Select(storyColumns...).From("stories").Where(sq.Eq{"stories.id": id}), scanStory)
	if err != nil {
		return nil, err
	}
	stories := []Story{st}
	if err := s.stories.attachTaskStatuses(ctx, stories); err != nil {
		return nil, err
	}
	return &stories[0], nil
}

// CreateStory stores a new story; creatorID is zero when unknown.
func (s *Store) CreateStory(ctx context.Context, in StoryInput, creatorID int64) (*Story, error) {
	title, ok := stringutils.Trimmed(in.Title)
	if !ok {
		return nil, invalid("title is required")
	}
	status := StoryActive
	if in.Status != nil {
		if !storyStatuses[*in.Status] {
			return nil, invalid("invalid story status %q", *in.Status)
		}
		status = *in.Status
	}

	var creator any
	if creatorID > 0 {
		creator = creatorID
	}

	ts := now()
	id, err := s.insert(ctx, sq.Insert("stories").
		Columns("title", "description", "status", "creator_id", "created_at", "updated_at").
		Values(title, stringutils.NullIfBlank(in.Description), status, creator, ts, ts))
	if err != nil {
		return nil, fmt.Errorf("create story: %w", err)
	}
	return s.GetStory(ctx, id)
}

func (s *Store) UpdateStory(ctx context.Context, id int64, in StoryInput) (*Story, error) {
	if _, err := s.GetStory(ctx, id); err != nil {
		return nil, err
	}

	set := map[string]any{}
	if in.Title != nil {
		title, ok := stringutils.Trimmed(in.Title)
		if !ok {
			return nil, invalid("title must not be empty")
		}
		set["title"] = title
	}
	if in.Description != nil {
		set["description"] = stringutils.NullIfBlank(in.Description)
	}
	if in.Status != nil {
		if !storyStatuses[*in.Status] {
			return nil, invalid("invalid story status %q", *in.Status)
		}
		set["status"] = *in.Status
	}
	if len(set) > 0 {
		set["updated_at"] = now()
	}

	if err := s.update(ctx, "stories", id, set); err != nil {
		return nil, fmt.Errorf("update story %d: %w", id, err)
	}
	return s.GetStory(ctx, id)
}

// attachTaskStatuses fills TaskStatuses on every story with a count for
// each known task status, zero included.
func (r *storyRepo) attachTaskStatuses(ctx context.Context, stories []Story) error {
	if len(stories) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(stories))
	for _, st := range stories {
		ids = append(ids, st.ID)
	}

	sqlStr, args, err := sq.Select("story_id", "status", "COUNT(*)").
		From("tasks").
		Where(sq.Eq{"story_id": ids}).
		GroupBy("story_id", "status").
		ToSql()
	if err != nil {
		return fmt.Errorf("build task status counts: %w", err)
	}

	rows, err := r.store.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return fmt.Errorf("count task statuses: %w", err)
	}
	defer rows.Close()

	counts := map[int64]map[string]int{}
	for rows.Next() {
		var (
			storyID int64
			status  string
			n       int
		)
		if err := rows.Scan(&storyID, &status, &n); err != nil {
			return fmt.Errorf("scan task status count: %w", err)
		}
		if counts[storyID] == nil {
			counts[storyID] = map[string]int{}
		}
		counts[storyID][status] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate task status counts: %w", err)
	}

	for i := range stories {
		statuses := make([]TaskStatusCount, 0, len(taskStatuses))
		for _, ts := range taskStatuses {
			statuses = append(statuses, TaskStatusCount{Key: ts.Key, Name: ts.Name, Count: counts[stories[i].ID][ts.Key]})
		}
		stories[i].TaskStatuses = statuses
	}
	return nil
}
