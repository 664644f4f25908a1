package membership_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/apiclient/apitest"
	"github.com/c360studio/maneger/events"
	"github.com/c360studio/maneger/membership"
)

type fixture struct {
	srv     *apitest.Server
	project apiclient.Project
	owner   apiclient.User
	alice   apiclient.User
	bob     apiclient.User
	carol   apiclient.User
	rec     *events.Recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	f := &fixture{
		srv:   srv,
		owner: srv.AddUser("owner", "pw"),
		alice: srv.AddUser("alice", "pw"),
		bob:   srv.AddUser("bob", "pw"),
		carol: srv.AddUser("carol", "pw"),
		rec:   &events.Recorder{},
	}
	f.project = srv.AddProject("owner", "Apollo", "moon")
	return f
}

func (f *fixture) manager(t *testing.T, user apiclient.User) *membership.Manager {
	t.Helper()
	client := f.srv.Client(f.srv.Token(user.Username))
	grant := access.NewResolver(client, nil).Resolve(context.Background(), f.project.ID)
	m := membership.NewManager(client, f.project.ID, grant, user, membership.WithPublisher(f.rec))
	require.NoError(t, m.Load(context.Background()))
	return m
}

func usernames(members []apiclient.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Username
	}
	return out
}

func TestStateOf(t *testing.T) {
	assert.Equal(t, membership.StateNone, membership.StateOf(access.Grant{}))
	assert.Equal(t, membership.StatePending, membership.StateOf(access.Grant{HasPendingRequest: true}))
	assert.Equal(t, membership.StateMember, membership.StateOf(access.Grant{CanAccess: true, Role: apiclient.RoleMember}))
	assert.Equal(t, membership.StateOwner, membership.StateOf(access.Grant{CanAccess: true, Role: apiclient.RoleOwner}))
	assert.Equal(t, "PENDING", membership.StatePending.String())
}

func TestManager_LoadOwner(t *testing.T) {
	f := newFixture(t)
	f.srv.AddMember(f.project.ID, "alice")
	f.srv.AddRequest(f.project.ID, "bob")

	m := f.manager(t, f.owner)

	assert.True(t, m.IsOwner())
	assert.Equal(t, []string{"owner", "alice"}, usernames(m.Members()))
	require.Len(t, m.Requests(), 1)
	assert.Equal(t, "bob", m.Requests()[0].Username)

	var addable []string
	for _, u := range m.Addable() {
		addable = append(addable, u.Username)
	}
	assert.ElementsMatch(t, []string{"bob", "carol"}, addable)
}

func TestManager_LoadMemberSkipsRequests(t *testing.T) {
	f := newFixture(t)
	f.srv.AddMember(f.project.ID, "alice")
	f.srv.AddRequest(f.project.ID, "bob")

	m := f.manager(t, f.alice)

	assert.False(t, m.IsOwner())
	assert.Len(t, m.Members(), 2)
	assert.Empty(t, m.Requests())
	assert.Zero(t, f.srv.Calls(apitest.RouteRequests))
	assert.Zero(t, f.srv.Calls(apitest.RouteUsers))
}

func TestManager_LoadToleratesUsersFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.Fail(apitest.RouteUsers, http.StatusInternalServerError)

	m := f.manager(t, f.owner)
	assert.Empty(t, m.Addable())
	assert.Len(t, m.Members(), 1)
}

func TestManager_LoadFailsOnMembers(t *testing.T) {
	f := newFixture(t)
	client := f.srv.Client(f.srv.Token("owner"))
	m := membership.NewManager(client, f.project.ID, access.Grant{CanAccess: true, Role: apiclient.RoleOwner}, f.owner)

	f.srv.Fail(apitest.RouteMembers, http.StatusInternalServerError)
	err := m.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load members")
}

func TestManager_ApproveRefetches(t *testing.T) {
	f := newFixture(t)
	req := f.srv.AddRequest(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	membersBefore := f.srv.Calls(apitest.RouteMembers)
	requestsBefore := f.srv.Calls(apitest.RouteRequests)

	require.NoError(t, m.Approve(context.Background(), req.ID))

	assert.Equal(t, membersBefore+1, f.srv.Calls(apitest.RouteMembers))
	assert.Equal(t, requestsBefore+1, f.srv.Calls(apitest.RouteRequests))
	assert.Contains(t, usernames(m.Members()), "alice")
	assert.Empty(t, m.Requests())
	assert.Equal(t, []events.Type{events.RequestApproved}, f.rec.Types())
	assert.Equal(t, "alice", f.rec.Events()[0].Subject)
	assert.Equal(t, "owner", f.rec.Events()[0].Actor)
}

func TestManager_RejectReturnsToNone(t *testing.T) {
	f := newFixture(t)
	req := f.srv.AddRequest(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	require.NoError(t, m.Reject(context.Background(), req.ID))
	assert.Empty(t, m.Requests())
	assert.NotContains(t, usernames(m.Members()), "alice")

	aliceClient := f.srv.Client(f.srv.Token("alice"))
	grant := access.NewResolver(aliceClient, nil).Resolve(context.Background(), f.project.ID)
	assert.Equal(t, membership.StateNone, membership.StateOf(grant))

	// A rejected user may ask again.
	require.NoError(t, aliceClient.RequestJoin(context.Background(), f.project.ID))
	require.NoError(t, m.Load(context.Background()))
	assert.Len(t, m.Requests(), 1)
}

func TestManager_OwnerOnly(t *testing.T) {
	f := newFixture(t)
	f.srv.AddMember(f.project.ID, "alice")
	req := f.srv.AddRequest(f.project.ID, "bob")
	m := f.manager(t, f.alice)

	assert.ErrorIs(t, m.Approve(context.Background(), req.ID), membership.ErrNotOwner)
	assert.ErrorIs(t, m.Reject(context.Background(), req.ID), membership.ErrNotOwner)
	assert.ErrorIs(t, m.AddMember(context.Background(), "carol"), membership.ErrNotOwner)
	assert.ErrorIs(t, m.RemoveMember(context.Background(), f.owner.ID), membership.ErrNotOwner)
	assert.Zero(t, f.srv.Calls(apitest.RouteApprove))
	assert.Zero(t, f.srv.Calls(apitest.RouteAddMember))
}

func TestManager_AddMember(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t, f.owner)

	require.NoError(t, m.AddMember(context.Background(), "  carol  "))
	assert.Contains(t, usernames(m.Members()), "carol")
	assert.Equal(t, []events.Type{events.MemberAdded}, f.rec.Types())
}

func TestManager_AddMemberValidation(t *testing.T) {
	f := newFixture(t)
	f.srv.AddMember(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	assert.ErrorIs(t, m.AddMember(context.Background(), "   "), membership.ErrEmptyUsername)
	assert.ErrorIs(t, m.AddMember(context.Background(), "Alice"), membership.ErrAlreadyMember)
	assert.Zero(t, f.srv.Calls(apitest.RouteAddMember))

	err := m.AddMember(context.Background(), "nobody")
	require.ErrorIs(t, err, membership.ErrUserNotFound)
	assert.True(t, apiclient.IsNotFound(err), "the API error stays reachable")
	assert.Empty(t, f.rec.Types())
}

func TestManager_AddMemberServerConflict(t *testing.T) {
	f := newFixture(t)
	m := f.manager(t, f.owner)

	// Alice joins behind the manager's back; its member list is stale.
	f.srv.AddMember(f.project.ID, "alice")
	assert.ErrorIs(t, m.AddMember(context.Background(), "alice"), membership.ErrAlreadyMember)
	assert.Equal(t, 1, f.srv.Calls(apitest.RouteAddMember))
}

func TestManager_RemoveMember(t *testing.T) {
	f := newFixture(t)
	f.srv.AddMember(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	require.NoError(t, m.RemoveMember(context.Background(), f.alice.ID))
	assert.Equal(t, []string{"owner"}, usernames(m.Members()))
	assert.Equal(t, []events.Type{events.MemberRemoved}, f.rec.Types())
}

func TestManager_RemoveGuards(t *testing.T) {
	f := newFixture(t)
	f.srv.AddMember(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	members := m.Members()
	require.Len(t, members, 2)
	assert.False(t, m.CanRemove(members[0]), "owner row")
	assert.True(t, m.CanRemove(members[1]), "member row")

	assert.ErrorIs(t, m.RemoveMember(context.Background(), f.owner.ID), membership.ErrCannotRemove)
	assert.ErrorIs(t, m.RemoveMember(context.Background(), f.carol.ID), membership.ErrNoSuchMember)
	assert.Zero(t, f.srv.Calls(apitest.RouteRemoveMember))
}

func TestManager_CanRemoveNotSelf(t *testing.T) {
	f := newFixture(t)
	f.srv.AddMember(f.project.ID, "alice")
	client := f.srv.Client(f.srv.Token("owner"))
	// Acting as alice with owner rights: her own row is still not removable.
	m := membership.NewManager(client, f.project.ID, access.Grant{CanAccess: true, Role: apiclient.RoleOwner}, f.alice)
	require.NoError(t, m.Load(context.Background()))

	for _, mem := range m.Members() {
		if mem.UserID == f.alice.ID {
			assert.False(t, m.CanRemove(mem))
		}
	}
	assert.ErrorIs(t, m.RemoveMember(context.Background(), f.alice.ID), membership.ErrCannotRemove)
}

func TestManager_OneActionPerRow(t *testing.T) {
	f := newFixture(t)
	req := f.srv.AddRequest(f.project.ID, "alice")
	other := f.srv.AddRequest(f.project.ID, "bob")
	m := f.manager(t, f.owner)

	entered, release := f.srv.Hold(apitest.RouteApprove)
	done := make(chan error, 1)
	go func() { done <- m.Approve(context.Background(), req.ID) }()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("approve never reached the server")
	}

	assert.True(t, m.Busy(req.ID))
	assert.False(t, m.Busy(other.ID))
	assert.ErrorIs(t, m.Approve(context.Background(), req.ID), membership.ErrInFlight)
	assert.ErrorIs(t, m.Reject(context.Background(), req.ID), membership.ErrInFlight)

	release()
	require.NoError(t, <-done)
	assert.False(t, m.Busy(req.ID))
	assert.Equal(t, 1, f.srv.Calls(apitest.RouteApprove))
	assert.Zero(t, f.srv.Calls(apitest.RouteReject))
}

func TestManager_ServerErrorKeepsState(t *testing.T) {
	f := newFixture(t)
	req := f.srv.AddRequest(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	f.srv.Fail(apitest.RouteApprove, http.StatusInternalServerError)
	err := m.Approve(context.Background(), req.ID)
	require.Error(t, err)

	kind, ok := apiclient.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, apiclient.KindServer, kind)
	assert.Len(t, m.Requests(), 1)
	assert.False(t, m.Busy(req.ID))
	assert.Empty(t, f.rec.Types())
}

func TestManager_ReloadFailureAfterApproveIsStale(t *testing.T) {
	f := newFixture(t)
	req := f.srv.AddRequest(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	f.srv.Fail(apitest.RouteMembers, http.StatusInternalServerError)
	err := m.Approve(context.Background(), req.ID)
	require.ErrorIs(t, err, membership.ErrStale)
	assert.NotContains(t, err.Error(), "approve request")
	assert.True(t, m.Stale())
	assert.False(t, m.Busy(req.ID))

	// The approval itself went through.
	assert.Contains(t, usernames(f.srv.Members(f.project.ID)), "alice")
	assert.Empty(t, f.srv.Requests(f.project.ID))
	assert.Equal(t, []events.Type{events.RequestApproved}, f.rec.Types())

	f.srv.Recover(apitest.RouteMembers)
	require.NoError(t, m.Load(context.Background()))
	assert.False(t, m.Stale())
	assert.Empty(t, m.Requests())
	assert.Contains(t, usernames(m.Members()), "alice")
}

func TestManager_ActionFailureIsNotStale(t *testing.T) {
	f := newFixture(t)
	req := f.srv.AddRequest(f.project.ID, "alice")
	m := f.manager(t, f.owner)

	f.srv.Fail(apitest.RouteReject, http.StatusInternalServerError)
	err := m.Reject(context.Background(), req.ID)
	require.Error(t, err)
	assert.NotErrorIs(t, err, membership.ErrStale)
	assert.False(t, m.Stale())
}
