// Package membership implements the join-request lifecycle and the owner's
// member management for a project.
//
// A user without access moves NONE -> PENDING by sending a request. The owner
// approves (PENDING -> MEMBER) or rejects (PENDING -> NONE, a new request may
// follow). Ownership is fixed at project creation. After every owner action
// the request and member lists are fetched again from the API; nothing is
// merged locally.
package membership

import (
	"errors"
	"log/slog"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/events"
)

// Errors returned by the workflow.
var (
	ErrNotOwner      = errors.New("only the project owner can manage membership")
	ErrInFlight      = errors.New("an action on this row is already in progress")
	ErrEmptyUsername = errors.New("username is required")
	ErrAlreadyMember = errors.New("user is already a member")
	ErrUserNotFound  = errors.New("user not found")
	ErrCannotRemove  = errors.New("member cannot be removed")
	ErrNoSuchMember  = errors.New("no such member")
	ErrNoSuchRequest = errors.New("no such request")

	// ErrStale means the action was applied by the API but the lists could
	// not be fetched again; they still show the state before the action.
	ErrStale = errors.New("action applied, membership lists are stale")
)

// State is a user's position in the membership lifecycle.
type State int

// Lifecycle states.
const (
	StateNone State = iota
	StatePending
	StateMember
	StateOwner
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateMember:
		return "MEMBER"
	case StateOwner:
		return "OWNER"
	default:
		return "NONE"
	}
}

// StateOf derives the lifecycle state from a resolved grant.
func StateOf(g access.Grant) State {
	switch g.Relation() {
	case access.RelationOwner:
		return StateOwner
	case access.RelationMember:
		return StateMember
	case access.RelationPending:
		return StatePending
	default:
		return StateNone
	}
}

type options struct {
	publisher events.Publisher
	logger    *slog.Logger
}

// Option configures a Prompt or a Manager.
type Option func(*options)

// WithPublisher sets where transition events go.
func WithPublisher(p events.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func buildOptions(opts []Option) options {
	o := options{publisher: events.Nop{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.publisher == nil {
		o.publisher = events.Nop{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
