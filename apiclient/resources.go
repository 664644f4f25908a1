package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
)

// Collection names double as URL segments and list envelope keys.
const (
	collTasks      = "tasks"
	collMilestones = "milestones"
	collDocuments  = "documents"
	collNotes      = "notes"
	collFiles      = "files"
	collChat       = "chat"
)

// listCollection fetches GET /api/projects/{id}/{coll} and unwraps the
// {"<key>": [...]} envelope. A missing key is an empty list.
func listCollection[T any](ctx context.Context, c *Client, projectID ID, coll, key string) ([]T, error) {
	var env map[string]json.RawMessage
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/projects/:id/" + coll,
		path:   projectPath(projectID, coll),
		out:    &env,
	})
	if err != nil {
		return nil, err
	}
	raw, ok := env[key]
	if !ok || string(raw) == "null" {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, &Error{Kind: KindDecode, Status: http.StatusOK, Method: http.MethodGet, Path: projectPath(projectID, coll), err: err}
	}
	return items, nil
}

func createInCollection[T any](ctx context.Context, c *Client, projectID ID, coll string, body any) (*T, error) {
	var out T
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/projects/:id/" + coll,
		path:   projectPath(projectID, coll),
		body:   body,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func updateInCollection[T any](ctx context.Context, c *Client, projectID ID, coll string, id ID, body any) (*T, error) {
	var out T
	err := c.do(ctx, call{
		method: http.MethodPatch,
		route:  "/api/projects/:id/" + coll + "/:item",
		path:   projectPath(projectID, coll, id.String()),
		body:   body,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func deleteFromCollection(ctx context.Context, c *Client, projectID ID, coll string, id ID) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		route:  "/api/projects/:id/" + coll + "/:item",
		path:   projectPath(projectID, coll, id.String()),
	})
}

// ListTasks returns every task of a project.
func (c *Client) ListTasks(ctx context.Context, projectID ID) ([]Task, error) {
	return listCollection[Task](ctx, c, projectID, collTasks, "tasks")
}

// CreateTask adds a task.
func (c *Client) CreateTask(ctx context.Context, projectID ID, in TaskInput) (*Task, error) {
	return createInCollection[Task](ctx, c, projectID, collTasks, in)
}

// UpdateTask applies a partial update to a task.
func (c *Client) UpdateTask(ctx context.Context, projectID, taskID ID, patch TaskPatch) (*Task, error) {
	return updateInCollection[Task](ctx, c, projectID, collTasks, taskID, patch)
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, projectID, taskID ID) error {
	return deleteFromCollection(ctx, c, projectID, collTasks, taskID)
}

// ListMilestones returns every milestone of a project.
func (c *Client) ListMilestones(ctx context.Context, projectID ID) ([]Milestone, error) {
	return listCollection[Milestone](ctx, c, projectID, collMilestones, "milestones")
}

// CreateMilestone adds a milestone.
func (c *Client) CreateMilestone(ctx context.Context, projectID ID, in MilestoneInput) (*Milestone, error) {
	return createInCollection[Milestone](ctx, c, projectID, collMilestones, in)
}

// UpdateMilestone applies a partial update to a milestone.
func (c *Client) UpdateMilestone(ctx context.Context, projectID, milestoneID ID, patch MilestonePatch) (*Milestone, error) {
	return updateInCollection[Milestone](ctx, c, projectID, collMilestones, milestoneID, patch)
}

// DeleteMilestone removes a milestone.
func (c *Client) DeleteMilestone(ctx context.Context, projectID, milestoneID ID) error {
	return deleteFromCollection(ctx, c, projectID, collMilestones, milestoneID)
}

// ListDocuments returns every document of a project.
func (c *Client) ListDocuments(ctx context.Context, projectID ID) ([]Document, error) {
	return listCollection[Document](ctx, c, projectID, collDocuments, "documents")
}

// CreateDocument adds a document.
func (c *Client) CreateDocument(ctx context.Context, projectID ID, in DocumentInput) (*Document, error) {
	return createInCollection[Document](ctx, c, projectID, collDocuments, in)
}

// UpdateDocument replaces a document's title and content.
func (c *Client) UpdateDocument(ctx context.Context, projectID, docID ID, in DocumentInput) (*Document, error) {
	return updateInCollection[Document](ctx, c, projectID, collDocuments, docID, in)
}

// DeleteDocument removes a document.
func (c *Client) DeleteDocument(ctx context.Context, projectID, docID ID) error {
	return deleteFromCollection(ctx, c, projectID, collDocuments, docID)
}

// ListNotes returns every note of a project.
func (c *Client) ListNotes(ctx context.Context, projectID ID) ([]Note, error) {
	return listCollection[Note](ctx, c, projectID, collNotes, "notes")
}

// CreateNote adds a note.
func (c *Client) CreateNote(ctx context.Context, projectID ID, in NoteInput) (*Note, error) {
	return createInCollection[Note](ctx, c, projectID, collNotes, in)
}

// UpdateNote replaces a note's title and body.
func (c *Client) UpdateNote(ctx context.Context, projectID, noteID ID, in NoteInput) (*Note, error) {
	return updateInCollection[Note](ctx, c, projectID, collNotes, noteID, in)
}

// DeleteNote removes a note.
func (c *Client) DeleteNote(ctx context.Context, projectID, noteID ID) error {
	return deleteFromCollection(ctx, c, projectID, collNotes, noteID)
}

// ListChat returns the chat history of a project.
func (c *Client) ListChat(ctx context.Context, projectID ID) ([]ChatMessage, error) {
	return listCollection[ChatMessage](ctx, c, projectID, collChat, "messages")
}

// SendChat posts a chat message.
func (c *Client) SendChat(ctx context.Context, projectID ID, body string) (*ChatMessage, error) {
	return createInCollection[ChatMessage](ctx, c, projectID, collChat, map[string]string{"body": body})
}
