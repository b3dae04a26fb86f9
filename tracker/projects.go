package tracker

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/milanbella/storyboard/query"
	"github.com/milanbella/storyboard/stringutils"
)

var projectModel = &query.Model{
	Table: "projects",
	ID:    "projects.id",
	Fields: map[string]query.Field{
		"name":        {Column: "projects.name", Strategy: query.Substring, Sortable: true},
		"description": {Column: "projects.description", Strategy: query.Substring},
		"created_at":  {Column: "projects.created_at", Sortable: true},
		"updated_at":  {Column: "projects.updated_at", Sortable: true},
	},
}

var projectColumns = []string{
	"projects.id", "projects.name", "projects.description", "projects.created_at", "projects.updated_at",
}

func scanProject(row sq.RowScanner) (Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type projectRepo struct {
	builder *query.Builder[Project]
}

func newProjectRepo(s *Store) *projectRepo {
	return &projectRepo{
		builder: &query.Builder[Project]{
			DB:      s.db,
			Model:   projectModel,
			Columns: projectColumns,
			Scan:    scanProject,
			ID:      func(p Project) int64 { return p.ID },
		},
	}
}

// ListProjects pages through projects. The project_group_id filter limits
// results to members of any of the given groups.
func (s *Store) ListProjects(ctx context.Context, filters query.Filters, page query.PageRequest) (*query.PageResult[Project], error) {
	q, err := s.projects.builder.Query(filters)
	if err != nil {
		return nil, err
	}

	groupIDs, err := query.IDs("project_group_id", filters["project_group_id"])
	if err != nil {
		return nil, err
	}
	if len(groupIDs) > 0 {
		q.Join("project_group_mapping ON project_group_mapping.project_id = projects.id").
			Where(sq.Eq{"project_group_mapping.project_group_id": groupIDs})
	}

	return q.Page(ctx, page)
}

func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	p, err := getOne(ctx, s.db, sq.Select(projectColumns...).From("projects").Where(sq.Eq{"projects.id": id}), scanProject)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	name, ok := stringutils.Trimmed(in.Name)
	if !ok {
		return nil, invalid("name is required")
	}

	ts := now()
	id, err := s.insert(ctx, sq.Insert("projects").
		Columns("name", "description", "created_at", "updated_at").
		Values(name, stringutils.NullIfBlank(in.Description), ts, ts))
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	return s.GetProject(ctx, id)
}

func (s *Store) UpdateProject(ctx context.Context, id int64, in ProjectInput) (*Project, error) {
	if _, err := s.GetProject(ctx, id); err != nil {
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
	if in.Description != nil {
		set["description"] = stringutils.NullIfBlank(in.Description)
	}
	if len(set) > 0 {
		set["updated_at"] = now()
	}

	if err := s.update(ctx, "projects", id, set); err != nil {
		return nil, fmt.Errorf("update project %d: %w", id, err)
	}
	return s.GetProject(ctx, id)
}

