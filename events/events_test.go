package events

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/apiclient"
)

func TestNew(t *testing.T) {
	ev := New(MemberAdded, "42", "owner", "alice")

	_, err := uuid.Parse(ev.ID)
	require.NoError(t, err)
	assert.Equal(t, MemberAdded, ev.Type)
	assert.Equal(t, "42", ev.ProjectID.String())
	assert.Equal(t, "owner", ev.Actor)
	assert.Equal(t, "alice", ev.Subject)
	assert.False(t, ev.At.IsZero())
	assert.NotEqual(t, ev.ID, New(MemberAdded, "42", "owner", "alice").ID)
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		project string
		typ     Type
		want    string
	}{
		{"plain", "maneger", "7", RequestApproved, "maneger.project.7.request.approved"},
		{"dotted id", "acme", "a.b", MemberRemoved, "acme.project.a_b.member.removed"},
		{"wildcards", "maneger", "*>", JoinRequested, "maneger.project.__.join.requested"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := Event{Type: tt.typ, ProjectID: apiclient.ID(tt.project)}
			assert.Equal(t, tt.want, Subject(tt.prefix, ev))
		})
	}
}

func TestNewNATSPublisher_DefaultPrefix(t *testing.T) {
	p := NewNATSPublisher(nil, "", nil)
	assert.Equal(t, "maneger.project.1.member.added", p.Subject(Event{ProjectID: "1", Type: MemberAdded}))

	p = NewNATSPublisher(nil, "custom.", nil)
	assert.Equal(t, "custom.project.1.member.added", p.Subject(Event{ProjectID: "1", Type: MemberAdded}))
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	p := NewNATSPublisher(nil, "", nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.Publish(ctx, New(MemberAdded, "1", "", ""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnect_Unreachable(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "", nil)
	assert.Error(t, err)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var p Publisher = &r

	require.NoError(t, p.Publish(context.Background(), New(JoinRequested, "1", "alice", "")))
	require.NoError(t, p.Publish(context.Background(), New(RequestApproved, "1", "owner", "alice")))

	assert.Equal(t, []Type{JoinRequested, RequestApproved}, r.Types())
	assert.Len(t, r.Events(), 2)
	assert.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
