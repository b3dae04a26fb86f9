package tracker

import "time"

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProjectGroup struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

type Story struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Description  *string           `json:"description"`
	Status       string            `json:"status"`
	CreatorID    *int64            `json:"creator_id"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	TaskStatuses []TaskStatusCount `json:"task_statuses"`
}

// TaskStatusCount is how many of a story's tasks are in one status.
type TaskStatusCount struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type Task struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	StoryID    int64     `json:"story_id"`
	ProjectID  int64     `json:"project_id"`
	AssigneeID *int64    `json:"assignee_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Inputs carry the fields of a create or a partial update; nil means unset.

type ProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type ProjectGroupInput struct {
	Name  *string `json:"name"`
	Title *string `json:"title"`
}

type StoryInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type TaskInput struct {
	Title      *string `json:"title"`
	Status     *string `json:"status"`
	StoryID    *int64  `json:"story_id"`
	ProjectID  *int64  `json:"project_id"`
	AssigneeID *int64  `json:"assignee_id"`
}

const (
	StoryActive  = "active"
	StoryMerged  = "merged"
	StoryInvalid = "invalid"
)

var storyStatuses = map[string]bool{
	StoryActive:  true,
	StoryMerged:  true,
	StoryInvalid: true,
}

// taskStatuses is ordered as task_statuses are reported.
var taskStatuses = []struct{ Key, Name string }{
	{"todo", "Todo"},
	{"inprogress", "Progress"},
	{"review", "Review"},
	{"merged", "Merged"},
	{"invalid", "Invalid"},
}

func validTaskStatus(s string) bool {
	for _, st := range taskStatuses {
		if st.Key == s {
			return true
		}
	}
	return false
}
