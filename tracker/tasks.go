package tracker

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/milanbella/storyboard/query"
	"github.com/milanbella/storyboard/stringutils"
)

var taskModel = &query.Model{
	Table: "tasks",
	ID:    "tasks.id",
	Fields: map[string]query.Field{
		"title":       {Column: "tasks.title", Strategy: query.Substring, Sortable: true},
		"status":      {Column: "tasks.status", Strategy: query.Set, Sortable: true},
		"story_id":    {Column: "tasks.story_id", Strategy: query.Exact, Kind: query.Int, Sortable: true},
		"project_id":  {Column: "tasks.project_id", Strategy: query.Exact, Kind: query.Int, Sortable: true},
		"assignee_id": {Column: "tasks.assignee_id", Strategy: query.Exact, Kind: query.Int},
		"created_at":  {Column: "tasks.created_at", Sortable: true},
		"updated_at":  {Column: "tasks.updated_at", Sortable: true},
	},
}

var taskColumns = []string{
	"tasks.id", "tasks.title", "tasks.status", "tasks.story_id", "tasks.project_id",
	"tasks.assignee_id", "tasks.created_at", "tasks.updated_at",
}

func scanTask(row sq.RowScanner) (Task, error) {
	var t Task
	err := row.Scan(&t.ID, &t.Title, &t.Status, &t.StoryID, &t.ProjectID, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

type taskRepo struct {
	builder *query.Builder[Task]
}

func newTaskRepo(s *Store) *taskRepo {
	return &taskRepo{
		builder: &query.Builder[Task]{
			DB:      s.db,
			Model:   taskModel,
			Columns: taskColumns,
			Scan:    scanTask,
			ID:      func(t Task) int64 { return t.ID },
		},
	}
}

func (s *Store) ListTasks(ctx context.Context, filters query.Filters, page query.PageRequest) (*query.PageResult[Task], error) {
	q, err := s.tasks.builder.Query(filters)
	if err != nil {
		return nil, err
	}
	return q.Page(ctx, page)
}

func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	t, err := getOne(ctx, s.db, sq.Select(taskColumns...).From("tasks").Where(sq.Eq{"tasks.id": id}), scanTask)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) CreateTask(ctx context.Context, in TaskInput) (*Task, error) {
	title, ok := stringutils.Trimmed(in.Title)
	if !ok {
		return nil, invalid("title is required")
	}
	if in.StoryID == nil {
		return nil, invalid("story_id is required")
	}
	if in.ProjectID == nil {
		return nil, invalid("project_id is required")
	}
	status := taskStatuses[0].Key
	if in.Status != nil {
		if !validTaskStatus(*in.Status) {
			return nil, invalid("invalid task status %q", *in.Status)
		}
		status = *in.Status
	}
	if err := s.checkTaskReferences(ctx, in); err != nil {
		return nil, err
	}

	ts := now()
	id, err := s.insert(ctx, sq.Insert("tasks").
		Columns("title", "status", "story_id", "project_id", "assignee_id", "created_at", "updated_at").
		Values(title, status, *in.StoryID, *in.ProjectID, in.AssigneeID, ts, ts))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return s.GetTask(ctx, id)
}

func (s *Store) UpdateTask(ctx context.Context, id int64, in TaskInput) (*Task, error) {
	if _, err := s.GetTask(ctx, id); err != nil {
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
	if in.Status != nil {
		if !validTaskStatus(*in.Status) {
			return nil, invalid("invalid task status %q", *in.Status)
		}
		set["status"] = *in.Status
	}
	if err := s.checkTaskReferences(ctx, in); err != nil {
		return nil, err
	}
	if in.StoryID != nil {
		set["story_id"] = *in.StoryID
	}
	if in.ProjectID != nil {
		set["project_id"] = *in.ProjectID
	}
	if in.AssigneeID != nil {
		set["assignee_id"] = *in.AssigneeID
	}
	if len(set) > 0 {
		set["updated_at"] = now()
	}

	if err := s.update(ctx, "tasks", id, set); err != nil {
		return nil, fmt.Errorf("update task %d: %w", id, err)
	}
	return s.GetTask(ctx, id)
}

func (s *Store) checkTaskReferences(ctx context.Context, in TaskInput) error {
	if in.StoryID != nil {
		if err := s.mustExist(ctx, "stories", "story_id", *in.StoryID); err != nil {
			return err
		}
	}
	if in.ProjectID != nil {
		if err := s.mustExist(ctx, "projects", "project_id", *in.ProjectID); err != nil {
			return err
		}
	}
	if in.AssigneeID != nil {
		if err := s.mustExist(ctx, "users", "assignee_id", *in.AssigneeID); err != nil {
			return err
		}
	}
	return nil
}
