package tabs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/dashboard"
)

// TasksAPI is the task collection.
type TasksAPI interface {
	ListTasks(ctx context.Context, projectID apiclient.ID) ([]apiclient.Task, error)
	CreateTask(ctx context.Context, projectID apiclient.ID, in apiclient.TaskInput) (*apiclient.Task, error)
	UpdateTask(ctx context.Context, projectID, taskID apiclient.ID, patch apiclient.TaskPatch) (*apiclient.Task, error)
	DeleteTask(ctx context.Context, projectID, taskID apiclient.ID) error
}

// Column is one kanban column.
type Column struct {
	Status apiclient.TaskStatus
	Tasks  []apiclient.Task
}

// TasksTab is the kanban board.
type TasksTab struct {
	*Tab[apiclient.Task, apiclient.TaskInput, apiclient.TaskPatch]
	now func() time.Time
}

// NewTasksTab creates the tasks tab of a project.
func NewTasksTab(api TasksAPI, projectID apiclient.ID, logger *slog.Logger) *TasksTab {
	return &TasksTab{
		Tab: NewTab(projectID, Ops[apiclient.Task, apiclient.TaskInput, apiclient.TaskPatch]{
			Noun:   "task",
			List:   api.ListTasks,
			Create: api.CreateTask,
			Update: api.UpdateTask,
			Delete: api.DeleteTask,
			ID:     func(t apiclient.Task) apiclient.ID { return t.ID },
			Fields: func(t apiclient.Task) []string { return []string{t.Title} },
		}, logger),
		now: time.Now,
	}
}

// Add creates a task due today. Blank status and priority default to todo
// and medium.
func (t *TasksTab) Add(ctx context.Context, title string, status apiclient.TaskStatus, priority apiclient.Priority) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return ErrEmptyTitle
	}
	if status == "" {
		status = apiclient.StatusTodo
	}
	if priority == "" {
		priority = apiclient.PriorityMedium
	}
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	if !priority.Valid() {
		return fmt.Errorf("unknown priority %q", priority)
	}
	return t.Create(ctx, apiclient.TaskInput{
		Title:    title,
		Status:   status,
		Priority: priority,
		DueDate:  dashboard.Today(t.now()),
	})
}

// Move puts a task in another column. Any column may follow any other.
func (t *TasksTab) Move(ctx context.Context, id apiclient.ID, status apiclient.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	return t.Update(ctx, id, apiclient.TaskPatch{Status: &status})
}

// Columns groups the tasks matching query by status, in board order.
// Tasks with an unknown status are in no column.
func (t *TasksTab) Columns(query string) []Column {
	tasks := t.Filter(query)
	cols := make([]Column, len(apiclient.TaskStatuses))
	for i, s := range apiclient.TaskStatuses {
		cols[i].Status = s
		for _, task := range tasks {
			if task.Status == s {
				cols[i].Tasks = append(cols[i].Tasks, task)
			}
		}
	}
	return cols
}

// Overdue reports whether a task would be flagged late today.
func (t *TasksTab) Overdue(task apiclient.Task) bool {
	return task.Status != apiclient.StatusDone && dashboard.IsOverdue(task.DueDate, dashboard.Today(t.now()))
}
