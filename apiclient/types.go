package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ID identifies a server-owned entity. The API is free to send ids as JSON
// numbers or strings; both decode to the same textual form.
type ID string

// String returns the id text.
func (id ID) String() string { return string(id) }

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// User is an account known to the API.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// UnmarshalJSON reads the id from "id", falling back to "user_id" as sent
// by the user directory listing.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var v struct {
		plain
		UserID ID `json:"user_id"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*u = User(v.plain)
	if u.ID == "" {
		u.ID = v.UserID
	}
	return nil
}

// AuthResponse is returned by login and signup.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}

// SignupRequest registers a new account.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Project is a workspace owned by one user.
type Project struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	OwnerID     ID     `json:"owner_id,omitempty"`
}

// ProjectInput creates or updates a project. An empty description is sent as null.
type ProjectInput struct {
	Name        string
	Description string
}

// MarshalJSON sends a blank description as null, matching the API contract.
func (p ProjectInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"name":        strings.TrimSpace(p.Name),
		"description": nullable(p.Description),
	})
}

// Role is a caller's role inside a project.
type Role string

// Project roles.
const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Access is the server's verdict on the caller's relationship to a project.
type Access struct {
	CanAccess         bool `json:"canAccess"`
	Role              Role `json:"role,omitempty"`
	HasPendingRequest bool `json:"hasPendingRequest"`
}

// JoinRequest is a pending ask for project access.
type JoinRequest struct {
	ID        ID     `json:"id"`
	UserID    ID     `json:"user_id,omitempty"`
	Username  string `json:"username"`
	ProjectID ID     `json:"project_id"`
}

// Member is a user with a role in a project.
type Member struct {
	UserID   ID     `json:"user_id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// TaskStatus is a kanban column.
type TaskStatus string

// Task statuses in column order.
const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusInReview   TaskStatus = "in_review"
	StatusDone       TaskStatus = "done"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	for _, known := range TaskStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Priority ranks a task.
type Priority string

// Task priorities from most to least urgent.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Priorities lists every priority in display order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	for _, known := range Priorities {
		if p == known {
			return true
		}
	}
	return false
}

// Task is a unit of work on the kanban board. DueDate is an ISO YYYY-MM-DD date.
type Task struct {
	ID       ID         `json:"id"`
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Priority Priority   `json:"priority"`
	DueDate  string     `json:"due_date,omitempty"`
}

// TaskInput creates a task.
type TaskInput struct {
	Title    string     `json:"title"`
	Status   TaskStatus `json:"status"`
	Priority Priority   `json:"priority"`
	DueDate  string     `json:"due_date,omitempty"`
}

// TaskPatch carries the task fields to change; nil fields are left alone.
type TaskPatch struct {
	Title    *string     `json:"title,omitempty"`
	Status   *TaskStatus `json:"status,omitempty"`
	Priority *Priority   `json:"priority,omitempty"`
	DueDate  *string     `json:"due_date,omitempty"`
}

// Milestone marks a dated goal. CompletedAt is the server's timestamp text,
// empty (or null on the wire) while incomplete.
type Milestone struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	DueDate     string `json:"due_date,omitempty"`
	Description string `json:"description,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// Completed reports whether the milestone carries a completion timestamp.
func (m Milestone) Completed() bool { return m.CompletedAt != "" }

// MilestoneInput creates a milestone. Blank optional fields are sent as null.
type MilestoneInput struct {
	Title       string
	DueDate     string
	Description string
}

// MarshalJSON implements json.Marshaler.
func (m MilestoneInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"title":       strings.TrimSpace(m.Title),
		"due_date":    nullable(m.DueDate),
		"description": nullable(m.Description),
	})
}

// MilestonePatch carries milestone changes. Completion is a toggle: set
// CompletedAt to complete, set ClearCompleted to send completed_at as null.
type MilestonePatch struct {
	Title          *string
	DueDate        *string
	Description    *string
	CompletedAt    *time.Time
	ClearCompleted bool
}

// MarshalJSON implements json.Marshaler.
func (p MilestonePatch) MarshalJSON() ([]byte, error) {
	m := map[string]any{}
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.DueDate != nil {
		m["due_date"] = nullable(*p.DueDate)
	}
	if p.Description != nil {
		m["description"] = nullable(*p.Description)
	}
	switch {
	case p.ClearCompleted:
		m["completed_at"] = nil
	case p.CompletedAt != nil:
		m["completed_at"] = p.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return json.Marshal(m)
}

// Note is a free-form project note.
type Note struct {
	ID    ID     `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body,omitempty"`
}

// NoteInput creates or replaces a note.
type NoteInput struct {
	Title string
	Body  string
}

// MarshalJSON implements json.Marshaler.
func (n NoteInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"title": n.Title,
		"body":  nullable(n.Body),
	})
}

// Document is a titled project document.
type Document struct {
	ID      ID     `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

// DocumentInput creates or replaces a document.
type DocumentInput struct {
	Title   string
	Content string
}

// MarshalJSON implements json.Marshaler.
func (d DocumentInput) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"title":   strings.TrimSpace(d.Title),
		"content": nullable(d.Content),
	})
}

// ProjectFile is an uploaded file. Content retrieval is not offered by this client.
type ProjectFile struct {
	ID           ID     `json:"id"`
	OriginalName string `json:"original_name"`
}

// ChatMessage is one entry of a project's chat.
type ChatMessage struct {
	ID        ID     `json:"id"`
	Username  string `json:"username,omitempty"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at,omitempty"`
}

// RAGHealth reports whether the research service is reachable.
type RAGHealth struct {
	OK bool `json:"ok"`
}

// ResearchSession is returned when opening a research session.
type ResearchSession struct {
	SessionID string `json:"session_id"`
}

// ResearchRequest runs one research query.
type ResearchRequest struct {
	SessionID     string `json:"session_id"`
	Query         string `json:"query"`
	Filename      string `json:"filename,omitempty"`
	UseFourAgents bool   `json:"use_4_agents"`
}

// ResearchResult holds the agent outputs of a research run.
type ResearchResult struct {
	Outputs map[string]json.RawMessage `json:"outputs"`
	Raw     json.RawMessage            `json:"-"`
}

// Research agent output names, in answer preference order.
const (
	OutputSynthesis = "synthesis"
	OutputResearch  = "research"
	OutputAnalysis  = "analysis"
)

// Output returns one agent's output as text. Non-string outputs are
// returned as their JSON text; missing or null outputs are empty.
func (r *ResearchResult) Output(name string) string {
	raw, ok := r.Outputs[name]
	if !ok {
		return ""
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Answer picks the synthesis, then research, then analysis output, falling
// back to the indented raw response.
func (r *ResearchResult) Answer() string {
	for _, name := range []string{OutputSynthesis, OutputResearch, OutputAnalysis} {
		if out := r.Output(name); out != "" {
			return out
		}
	}
	var out bytes.Buffer
	if err := json.Indent(&out, r.Raw, "", "  "); err != nil {
		return string(r.Raw)
	}
	return out.String()
}

// SearchRequest is a plain retrieval query.
type SearchRequest struct {
	Query    string `json:"query"`
	Filename string `json:"filename,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// nullable maps a blank string to JSON null.
func nullable(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}
