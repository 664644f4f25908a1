package membership

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/events"
	"github.com/c360studio/maneger/inflight"
)

// API is the set of calls the manager depends on.
type API interface {
	ListRequests(ctx context.Context, projectID apiclient.ID) ([]apiclient.JoinRequest, error)
	ApproveRequest(ctx context.Context, projectID, requestID apiclient.ID) error
	RejectRequest(ctx context.Context, projectID, requestID apiclient.ID) error
	ListMembers(ctx context.Context, projectID apiclient.ID) ([]apiclient.Member, error)
	AddMember(ctx context.Context, projectID apiclient.ID, username string) error
	RemoveMember(ctx context.Context, projectID, userID apiclient.ID) error
	ListUsers(ctx context.Context, projectID apiclient.ID) ([]apiclient.User, error)
}

// Manager holds the membership view of one project for the acting user.
type Manager struct {
	api       API
	projectID apiclient.ID
	grant     access.Grant
	self      apiclient.User
	opts      options
	acting    inflight.Set

	mu       sync.RWMutex
	stale    bool
	requests []apiclient.JoinRequest
	members  []apiclient.Member
	addable  []apiclient.User
}

// NewManager creates a manager for projectID. grant is the acting user's
// resolved access; self is the acting user.
func NewManager(api API, projectID apiclient.ID, grant access.Grant, self apiclient.User, opts ...Option) *Manager {
	return &Manager{
		api:       api,
		projectID: projectID,
		grant:     grant,
		self:      self,
		opts:      buildOptions(opts),
	}
}

// IsOwner reports whether the acting user owns the project.
func (m *Manager) IsOwner() bool {
	return m.grant.IsOwner()
}

// Load fetches members and, for the owner, pending requests concurrently.
// The list of users that could be added is also fetched for the owner; a
// failure there leaves it empty without failing the load.
func (m *Manager) Load(ctx context.Context) error {
	var (
		members  []apiclient.Member
		requests []apiclient.JoinRequest
		addable  []apiclient.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = m.api.ListMembers(gctx, m.projectID)
		if err != nil {
			return fmt.Errorf("load members: %w", err)
		}
		return nil
	})
	if m.IsOwner() {
		g.Go(func() error {
			var err error
			requests, err = m.api.ListRequests(gctx, m.projectID)
			if err != nil {
				return fmt.Errorf("load requests: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if m.IsOwner() {
		users, err := m.api.ListUsers(ctx, m.projectID)
		if err != nil {
			m.opts.logger.Warn("Failed to load addable users", "project_id", m.projectID, "error", err)
		} else {
			addable = users
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.members = members
	m.requests = requests
	m.addable = addable
	m.stale = false
	m.mu.Unlock()
	return nil
}

// Stale reports whether an applied action could not be followed by a
// reload. It clears on the next successful Load.
func (m *Manager) Stale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stale
}

// Members returns the last loaded members.
func (m *Manager) Members() []apiclient.Member {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.members)
}

// Requests returns the last loaded pending requests.
func (m *Manager) Requests() []apiclient.JoinRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.requests)
}

// Addable returns users that are not yet members.
func (m *Manager) Addable() []apiclient.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.addable)
}

// Busy reports whether an action on the row identified by id is in flight.
func (m *Manager) Busy(id apiclient.ID) bool {
	return m.acting.Active(requestKey(id)) || m.acting.Active(memberKey(id))
}

// CanRemove reports whether the remove action is offered for member: only
// plain members, never the acting user.
func (m *Manager) CanRemove(member apiclient.Member) bool {
	return m.IsOwner() && member.Role == apiclient.RoleMember && member.UserID != m.self.ID
}

// Approve grants a pending request.
func (m *Manager) Approve(ctx context.Context, requestID apiclient.ID) error {
	username := m.requestUsername(requestID)
	err := m.mutate(ctx, requestKey(requestID), func(ctx context.Context) error {
		return m.api.ApproveRequest(ctx, m.projectID, requestID)
	}, events.RequestApproved, username)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return err
		}
		return fmt.Errorf("approve request: %w", err)
	}
	return nil
}

// Reject discards a pending request. The requester may ask again.
func (m *Manager) Reject(ctx context.Context, requestID apiclient.ID) error {
	username := m.requestUsername(requestID)
	err := m.mutate(ctx, requestKey(requestID), func(ctx context.Context) error {
		return m.api.RejectRequest(ctx, m.projectID, requestID)
	}, events.RequestRejected, username)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return err
		}
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

// AddMember adds a user by username without a request.
func (m *Manager) AddMember(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrEmptyUsername
	}
	if m.IsOwner() && m.isMember(username) {
		return ErrAlreadyMember
	}

	err := m.mutate(ctx, "add", func(ctx context.Context) error {
		err := m.api.AddMember(ctx, m.projectID, username)
		switch {
		case err == nil:
			return nil
		case isUserNotFound(err):
			return fmt.Errorf("%w: %w", ErrUserNotFound, err)
		case isConflict(err):
			return fmt.Errorf("%w: %w", ErrAlreadyMember, err)
		default:
			return err
		}
	}, events.MemberAdded, username)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return err
		}
		return fmt.Errorf("add member %s: %w", username, err)
	}
	return nil
}

// RemoveMember removes a member. The owner and the acting user are refused
// before any call is made; the API still has the final say.
func (m *Manager) RemoveMember(ctx context.Context, userID apiclient.ID) error {
	if !m.IsOwner() {
		return ErrNotOwner
	}
	member, ok := m.member(userID)
	if !ok {
		return fmt.Errorf("remove member %s: %w", userID, ErrNoSuchMember)
	}
	if !m.CanRemove(member) {
		return fmt.Errorf("remove member %s: %w", member.Username, ErrCannotRemove)
	}

	err := m.mutate(ctx, memberKey(userID), func(ctx context.Context) error {
		return m.api.RemoveMember(ctx, m.projectID, userID)
	}, events.MemberRemoved, member.Username)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return err
		}
		return fmt.Errorf("remove member %s: %w", member.Username, err)
	}
	return nil
}

// mutate runs one owner action guarded per row, then refetches everything.
func (m *Manager) mutate(ctx context.Context, key string, call func(context.Context) error, typ events.Type, subject string) error {
	if !m.IsOwner() {
		return ErrNotOwner
	}
	if !m.acting.Begin(key) {
		return ErrInFlight
	}
	defer m.acting.End(key)

	if err := call(ctx); err != nil {
		return err
	}

	ev := events.New(typ, m.projectID, m.self.Username, subject)
	if err := m.opts.publisher.Publish(ctx, ev); err != nil {
		m.opts.logger.Warn("Failed to publish event", "type", ev.Type, "error", err)
	}

	if err := m.Load(ctx); err != nil {
		m.mu.Lock()
		m.stale = true
		m.mu.Unlock()
		m.opts.logger.Warn("Membership reload failed after applied action", "project_id", m.projectID, "type", typ, "error", err)
		return fmt.Errorf("%w: %w", ErrStale, err)
	}
	return nil
}

func (m *Manager) requestUsername(id apiclient.ID) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.requests {
		if r.ID == id {
			return r.Username
		}
	}
	return ""
}

func (m *Manager) member(userID apiclient.ID) (apiclient.Member, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.members {
		if mem.UserID == userID {
			return mem, true
		}
	}
	return apiclient.Member{}, false
}

func (m *Manager) isMember(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, mem := range m.members {
		if strings.EqualFold(mem.Username, username) {
			return true
		}
	}
	return false
}

func isUserNotFound(err error) bool {
	if apiclient.IsNotFound(err) {
		return true
	}
	var apiErr *apiclient.Error
	return errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "not found")
}

func isConflict(err error) bool {
	var apiErr *apiclient.Error
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict
}

func requestKey(id apiclient.ID) string { return "request:" + id.String() }

func memberKey(id apiclient.ID) string { return "member:" + id.String() }
