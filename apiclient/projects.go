package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// ListProjects returns every project visible in the global list. Visibility
// does not imply access; see GetAccess.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var out struct {
		Projects []Project `json:"projects"`
	}
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/projects",
		path:   "/api/projects",
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out.Projects, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID ID) (*Project, error) {
	var out Project
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/projects/:id",
		path:   projectPath(projectID),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAccess asks the API for the caller's relationship to a project.
func (c *Client) GetAccess(ctx context.Context, projectID ID) (*Access, error) {
	var out Access
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/projects/:id/access",
		path:   projectPath(projectID, "access"),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProject creates a project owned by the caller.
func (c *Client) CreateProject(ctx context.Context, in ProjectInput) (*Project, error) {
	var out Project
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/projects",
		path:   "/api/projects",
		body:   in,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProject renames or re-describes a project.
func (c *Client) UpdateProject(ctx context.Context, projectID ID, in ProjectInput) (*Project, error) {
	var out Project
	err := c.do(ctx, call{
		method: http.MethodPatch,
		route:  "/api/projects/:id",
		path:   projectPath(projectID),
		body:   in,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, projectID ID) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		route:  "/api/projects/:id",
		path:   projectPath(projectID),
	})
}

// RequestJoin asks the owner of a project for access.
func (c *Client) RequestJoin(ctx context.Context, projectID ID) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/projects/:id/request",
		path:   projectPath(projectID, "request"),
	})
}

// ListRequests returns the pending join requests of a project. Owner only.
func (c *Client) ListRequests(ctx context.Context, projectID ID) ([]JoinRequest, error) {
	var out struct {
		Requests []JoinRequest `json:"requests"`
	}
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/projects/:id/requests",
		path:   projectPath(projectID, "requests"),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out.Requests, nil
}

// ApproveRequest turns a pending request into a membership. Owner only.
func (c *Client) ApproveRequest(ctx context.Context, projectID, requestID ID) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/projects/:id/requests/:rid/approve",
		path:   projectPath(projectID, "requests", requestID.String(), "approve"),
	})
}

// RejectRequest discards a pending request. Owner only.
func (c *Client) RejectRequest(ctx context.Context, projectID, requestID ID) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/projects/:id/requests/:rid/reject",
		path:   projectPath(projectID, "requests", requestID.String(), "reject"),
	})
}

// ListMembers returns the members of a project, owner included.
func (c *Client) ListMembers(ctx context.Context, projectID ID) ([]Member, error) {
	var out struct {
		Members []Member `json:"members"`
	}
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/projects/:id/members",
		path:   projectPath(projectID, "members"),
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out.Members, nil
}

// AddMember adds a user by username, bypassing the request step. Owner only.
func (c *Client) AddMember(ctx context.Context, projectID ID, username string) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/projects/:id/members",
		path:   projectPath(projectID, "members"),
		body:   map[string]string{"username": strings.TrimSpace(username)},
	})
}

// RemoveMember removes a member. Owner only; the owner cannot be removed.
func (c *Client) RemoveMember(ctx context.Context, projectID, userID ID) error {
	return c.do(ctx, call{
		method: http.MethodDelete,
		route:  "/api/projects/:id/members/:uid",
		path:   projectPath(projectID, "members", userID.String()),
	})
}

// ListUsers returns known users. With a project id the API narrows the list
// to users that can still be added to that project.
func (c *Client) ListUsers(ctx context.Context, projectID ID) ([]User, error) {
	var query url.Values
	if projectID != "" {
		query = url.Values{"projectId": []string{projectID.String()}}
	}
	var out struct {
		Users []User `json:"users"`
	}
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/users",
		path:   "/api/users",
		query:  query,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return out.Users, nil
}
