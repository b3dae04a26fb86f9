package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/milanbella/storyboard/db"
)

var (
	ErrNotFound = errors.New("resource not found")
	ErrConflict = errors.New("resource already exists")
)

// ValidationError is a rejected field value on create or update.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// Store provides database-backed access to projects, groups, stories and tasks.
type Store struct {
	db *sql.DB

	projects      *projectRepo
	projectGroups *projectGroupRepo
	stories       *storyRepo
	tasks         *taskRepo
}

func NewStore(conn *sql.DB) *Store {
	s := &Store{db: conn}
	s.projects = newProjectRepo(s)
	s.projectGroups = newProjectGroupRepo(s)
	s.stories = newStoryRepo(s)
	s.tasks = newTaskRepo(s)
	return s
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

func (s *Store) insert(ctx context.Context, b sq.InsertBuilder) (int64, error) {
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrConflict
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) update(ctx context.Context, table string, id int64, set map[string]any) error {
	if len(set) == 0 {
		return nil
	}
	sqlStr, args, err := sq.Update(table).SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		if db.IsUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	return nil
}

// exists reports whether table has a row with the given id.
func (s *Store) exists(ctx context.Context, table string, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("look up %s %d: %w", table, id, err)
	}
	return true, nil
}

func (s *Store) mustExist(ctx context.Context, table, field string, id int64) error {
	ok, err := s.exists(ctx, table, id)
	if err != nil {
		return err
	}
	if !ok {
		return invalid("%s %d does not exist", field, id)
	}
	return nil
}

func getOne[T any](ctx context.Context, conn *sql.DB, b sq.SelectBuilder, scan func(sq.RowScanner) (T, error)) (T, error) {
	var zero T
	sqlStr, args, err := b.ToSql()
	if err != nil {
		return zero, fmt.Errorf("build select: %w", err)
	}
	item, err := scan(conn.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return zero, ErrNotFound
	}
	return item, err
}
