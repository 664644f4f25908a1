// Package access decides what the signed-in user may do with a project.
//
// Resolution always asks the API: a user's role or a pending approval can
// change between two visits, so nothing is cached. When the check itself
// fails the answer is "no access, no pending request".
package access

import (
	"context"
	"log/slog"

	"github.com/c360studio/maneger/apiclient"
)

// Relation is the caller's standing in a project.
type Relation int

// Relations, from weakest to strongest.
const (
	RelationNone Relation = iota
	RelationPending
	RelationMember
	RelationOwner
)

func (r Relation) String() string {
	switch r {
	case RelationPending:
		return "pending"
	case RelationMember:
		return "member"
	case RelationOwner:
		return "owner"
	default:
		return "none"
	}
}

// Grant is the resolved access for one (user, project) pair.
type Grant struct {
	CanAccess         bool
	Role              apiclient.Role
	HasPendingRequest bool
}

// Relation maps the grant onto a Relation.
func (g Grant) Relation() Relation {
	switch {
	case g.CanAccess && g.Role == apiclient.RoleOwner:
		return RelationOwner
	case g.CanAccess:
		return RelationMember
	case g.HasPendingRequest:
		return RelationPending
	default:
		return RelationNone
	}
}

// IsOwner reports whether the grant carries the owner role.
func (g Grant) IsOwner() bool {
	return g.Relation() == RelationOwner
}

// Checker is the API call the resolver depends on.
type Checker interface {
	GetAccess(ctx context.Context, projectID apiclient.ID) (*apiclient.Access, error)
}

// Resolver resolves grants against the API.
type Resolver struct {
	api    Checker
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(api Checker, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{api: api, logger: logger}
}

// Resolve returns the caller's grant for projectID. It never fails: any
// error yields the zero Grant.
func (r *Resolver) Resolve(ctx context.Context, projectID apiclient.ID) Grant {
	a, err := r.api.GetAccess(ctx, projectID)
	if err != nil {
		r.logger.Warn("Access check failed, denying access",
			"project_id", projectID, "error", err)
		return Grant{}
	}
	if a == nil {
		return Grant{}
	}
	g := Grant{
		CanAccess:         a.CanAccess,
		HasPendingRequest: a.HasPendingRequest,
	}
	if a.CanAccess {
		g.Role = a.Role
	}
	return g
}

// Decision is what happens when the user tries to open a project.
type Decision int

// Decisions.
const (
	// PromptRequest shows the gate with the request action enabled.
	PromptRequest Decision = iota
	// PromptPending shows the gate stating a request is already waiting.
	PromptPending
	// Enter opens the project workspace.
	Enter
)

func (d Decision) String() string {
	switch d {
	case Enter:
		return "enter"
	case PromptPending:
		return "pending"
	default:
		return "request"
	}
}

// Gate is the outcome of an attempt to open a project.
type Gate struct {
	Project  apiclient.Project
	Grant    Grant
	Decision Decision
}

// Open resolves access for project and decides whether the caller enters it
// or is shown the join prompt.
func (r *Resolver) Open(ctx context.Context, project apiclient.Project) Gate {
	g := r.Resolve(ctx, project.ID)
	gate := Gate{Project: project, Grant: g}
	switch {
	case g.CanAccess:
		gate.Decision = Enter
	case g.HasPendingRequest:
		gate.Decision = PromptPending
	default:
		gate.Decision = PromptRequest
	}
	return gate
}
