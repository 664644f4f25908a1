package membership_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/apiclient/apitest"
	"github.com/c360studio/maneger/events"
	"github.com/c360studio/maneger/membership"
)

type blockingRequester struct {
	calls   int
	started chan struct{}
	finish  chan struct{}
}

func (b *blockingRequester) RequestJoin(context.Context, apiclient.ID) error {
	b.calls++
	close(b.started)
	<-b.finish
	return nil
}

func TestPrompt_StartsPendingFromGate(t *testing.T) {
	gate := access.Gate{Project: apiclient.Project{ID: "1"}, Decision: access.PromptPending}
	p := membership.NewPrompt(gate, nil, "alice")

	assert.True(t, p.Pending())
	assert.False(t, p.CanSend())

	sent, err := p.Send(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)
}

type countingRequester struct {
	calls int
}

func (c *countingRequester) RequestJoin(context.Context, apiclient.ID) error {
	c.calls++
	return nil
}

func TestPrompt_NothingToRequestWhenEntered(t *testing.T) {
	for _, role := range []apiclient.Role{apiclient.RoleMember, apiclient.RoleOwner} {
		t.Run(string(role), func(t *testing.T) {
			req := &countingRequester{}
			gate := access.Gate{
				Project:  apiclient.Project{ID: "1"},
				Grant:    access.Grant{CanAccess: true, Role: role},
				Decision: access.Enter,
			}
			p := membership.NewPrompt(gate, req, "alice")

			assert.False(t, p.CanSend())
			assert.False(t, p.Pending())

			sent, err := p.Send(context.Background())
			require.NoError(t, err)
			assert.False(t, sent)
			assert.Zero(t, req.calls)
		})
	}
}

func TestPrompt_NoSecondSendWhileInFlight(t *testing.T) {
	req := &blockingRequester{started: make(chan struct{}), finish: make(chan struct{})}
	gate := access.Gate{Project: apiclient.Project{ID: "1"}, Decision: access.PromptRequest}
	p := membership.NewPrompt(gate, req, "alice")

	done := make(chan bool, 1)
	go func() {
		sent, _ := p.Send(context.Background())
		done <- sent
	}()
	<-req.started

	assert.False(t, p.CanSend())
	sent, err := p.Send(context.Background())
	require.NoError(t, err)
	assert.False(t, sent)

	close(req.finish)
	assert.True(t, <-done)
	assert.True(t, p.Pending())
	assert.Equal(t, 1, req.calls)
}

func TestPrompt_FailureLeavesSendEnabled(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("owner", "pw")
	srv.AddUser("alice", "pw")
	project := srv.AddProject("owner", "Apollo", "")
	client := srv.Client(srv.Token("alice"))
	rec := &events.Recorder{}

	gate := access.NewResolver(client, nil).Open(context.Background(), project)
	p := membership.NewPrompt(gate, client, "alice", membership.WithPublisher(rec))

	srv.Fail(apitest.RouteRequestJoin, http.StatusInternalServerError)
	sent, err := p.Send(context.Background())
	require.Error(t, err)
	assert.False(t, sent)
	assert.True(t, p.CanSend())
	assert.Empty(t, rec.Types())

	srv.Recover(apitest.RouteRequestJoin)
	sent, err = p.Send(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, []events.Type{events.JoinRequested}, rec.Types())
}
