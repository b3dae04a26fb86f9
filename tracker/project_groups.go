package tracker

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/milanbella/storyboard/db"
	"github.com/milanbella/storyboard/query"
	"github.com/milanbella/storyboard/stringutils"
)

var projectGroupModel = &query.Model{
	Table: "project_groups",
	ID:    "project_groups.id",
	Fields: map[string]query.Field{
		"name":       {Column: "project_groups.name", Strategy: query.Substring, Sortable: true},
		"title":      {Column: "project_groups.title", Strategy: query.Substring, Sortable: true},
		"created_at": {Column: "project_groups.created_at", Sortable: true},
	},
}

var projectGroupColumns = []string{
	"project_groups.id", "project_groups.name", "project_groups.title", "project_groups.created_at",
}

func scanProjectGroup(row sq.RowScanner) (ProjectGroup, error) {
	var g ProjectGroup
	err := row.Scan(&g.ID, &g.Name, &g.Title, &g.CreatedAt)
	return g, err
}

type projectGroupRepo struct {
	builder *query.Builder[ProjectGroup]
}

func newProjectGroupRepo(s *Store) *projectGroupRepo {
	return &projectGroupRepo{
		builder: &query.Builder[ProjectGroup]{
			DB:      s.db,
			Model:   projectGroupModel,
			Columns: projectGroupColumns,
			Scan:    scanProjectGroup,
			ID:      func(g ProjectGroup) int64 { return g.ID },
		},
	}
}

func (s *Store) ListProjectGroups(ctx context.Context, filters query.Filters, page query.PageRequest) (*query.PageResult[ProjectGroup], error) {
	q, err := s.projectGroups.builder.Query(filters)
	if err != nil {
		return nil, err
	}
	return q.Page(ctx, page)
}

func (s *Store) GetProjectGroup(ctx context.Context, id int64) (*ProjectGroup, error) {
	g, err := getOne(ctx, s.db, sq.Select(projectGroupColumns...).From("project_groups").Where(sq.Eq{"project_groups.id": id}), scanProjectGroup)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) CreateProjectGroup(ctx context.Context, in ProjectGroupInput) (*ProjectGroup, error) {
	name, ok := stringutils.Trimmed(in.Name)
	if !ok {
		return nil, invalid("name is required")
	}
	title, ok := stringutils.Trimmed(in.Title)
	if !ok {
		return nil, invalid("title is required")
	}

	id, err := s.insert(ctx, sq.Insert("project_groups").
		Columns("name", "title", "created_at").
		Values(name, title, now()))
	if err != nil {
		return nil, fmt.Errorf("create project group: %w", err)
	}
	return s.GetProjectGroup(ctx, id)
}

func (s *Store) UpdateProjectGroup(ctx context.Context, id int64, in ProjectGroupInput) (*ProjectGroup, error) {
	if _, err := s.GetProjectGroup(ctx, id); err != nil {
		return nil, err
	}

	set := map[string]any{}
	if in.Name != nil {
		name, ok := stringutils.Trimmed(in.Name)
		if !ok {
			return nil, invalid("name must not be empty")
		}
		set["name"] = name
	}
	if in.Title != nil {
		title, ok := stringutils.Trimmed(in.Title)
		if !ok {
			return nil, invalid("title must not be empty")
		}
		set["title"] = title
	}

	if err := s.update(ctx, "project_groups", id, set); err != nil {
		return nil, fmt.Errorf("update project group %d: %w", id, err)
	}
	return s.GetProjectGroup(ctx, id)
}

// AddProjectToGroup is idempotent.
func (s *Store) AddProjectToGroup(ctx context.Context, groupID, projectID int64) error {
	if _, err := s.GetProjectGroup(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.GetProject(ctx, projectID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO project_group_mapping (project_id, project_group_id) VALUES (?, ?)`,
		projectID, groupID)
	if err != nil && !db.IsUniqueViolation(err) {
		return fmt.Errorf("add project %d to group %d: %w", projectID, groupID, err)
	}
	return nil
}

func (s *Store) RemoveProjectFromGroup(ctx context.Context, groupID, projectID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM project_group_mapping WHERE project_id = ? AND project_group_id = ?`,
		projectID, groupID)
	if err != nil {
		return fmt.Errorf("remove project %d from group %d: %w", projectID, groupID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
