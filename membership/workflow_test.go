package membership_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/apiclient/apitest"
	"github.com/c360studio/maneger/membership"
)

// A user with no relation opens a project, sends a request, and opening the
// project again shows the pending state without another request.
func TestWorkflow_RequestIsSentOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	client := f.srv.Client(f.srv.Token("alice"))
	resolver := access.NewResolver(client, nil)

	gate := resolver.Open(ctx, f.project)
	require.Equal(t, access.PromptRequest, gate.Decision)

	prompt := membership.NewPrompt(gate, client, "alice")
	require.True(t, prompt.CanSend())

	sent, err := prompt.Send(ctx)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.True(t, prompt.Pending())

	sent, err = prompt.Send(ctx)
	require.NoError(t, err)
	assert.False(t, sent)

	gate = resolver.Open(ctx, f.project)
	assert.Equal(t, access.PromptPending, gate.Decision)
	again := membership.NewPrompt(gate, client, "alice")
	assert.False(t, again.CanSend())
	_, err = again.Send(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, f.srv.Calls(apitest.RouteRequestJoin))
	assert.Len(t, f.srv.Requests(f.project.ID), 1)
}

// The owner approves alice, who then resolves as a member.
func TestWorkflow_ApprovalGrantsAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	aliceClient := f.srv.Client(f.srv.Token("alice"))

	prompt := membership.NewPrompt(access.NewResolver(aliceClient, nil).Open(ctx, f.project), aliceClient, "alice")
	_, err := prompt.Send(ctx)
	require.NoError(t, err)

	m := f.manager(t, f.owner)
	require.Len(t, m.Requests(), 1)
	require.NoError(t, m.Approve(ctx, m.Requests()[0].ID))

	assert.Contains(t, usernames(m.Members()), "alice")
	for _, r := range m.Requests() {
		assert.NotEqual(t, "alice", r.Username)
	}

	grant := access.NewResolver(aliceClient, nil).Resolve(ctx, f.project.ID)
	assert.True(t, grant.CanAccess)
	assert.Equal(t, apiclient.RoleMember, grant.Role)
	assert.Equal(t, access.Enter, access.NewResolver(aliceClient, nil).Open(ctx, f.project).Decision)
}
