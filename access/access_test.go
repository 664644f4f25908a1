package access_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/apiclient/apitest"
)

type stubChecker struct {
	access *apiclient.Access
	err    error
	calls  int
}

func (s *stubChecker) GetAccess(context.Context, apiclient.ID) (*apiclient.Access, error) {
	s.calls++
	return s.access, s.err
}

func TestGrant_Relation(t *testing.T) {
	tests := []struct {
		name  string
		grant access.Grant
		want  access.Relation
	}{
		{"none", access.Grant{}, access.RelationNone},
		{"pending", access.Grant{HasPendingRequest: true}, access.RelationPending},
		{"member", access.Grant{CanAccess: true, Role: apiclient.RoleMember}, access.RelationMember},
		{"member without role", access.Grant{CanAccess: true}, access.RelationMember},
		{"owner", access.Grant{CanAccess: true, Role: apiclient.RoleOwner}, access.RelationOwner},
		{"role without access", access.Grant{Role: apiclient.RoleOwner}, access.RelationNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.grant.Relation())
			assert.Equal(t, tt.want.String(), tt.grant.Relation().String())
		})
	}
}

func TestResolve_FailsClosed(t *testing.T) {
	errs := []error{
		errors.New("connection refused"),
		&apiclient.Error{Kind: apiclient.KindServer, Status: 500},
		&apiclient.Error{Kind: apiclient.KindForbidden, Status: 403},
		context.DeadlineExceeded,
	}
	for _, err := range errs {
		t.Run(err.Error(), func(t *testing.T) {
			stub := &stubChecker{
				access: &apiclient.Access{CanAccess: true, Role: apiclient.RoleOwner},
				err:    err,
			}
			g := access.NewResolver(stub, nil).Resolve(context.Background(), "1")
			assert.Equal(t, access.Grant{}, g)
		})
	}
}

func TestResolve_NilAccess(t *testing.T) {
	g := access.NewResolver(&stubChecker{}, nil).Resolve(context.Background(), "1")
	assert.False(t, g.CanAccess)
}

func TestResolve_DropsRoleWithoutAccess(t *testing.T) {
	stub := &stubChecker{access: &apiclient.Access{Role: apiclient.RoleMember, HasPendingRequest: true}}
	g := access.NewResolver(stub, nil).Resolve(context.Background(), "1")
	assert.Empty(t, g.Role)
	assert.Equal(t, access.RelationPending, g.Relation())
}

func TestResolve_NeverCaches(t *testing.T) {
	stub := &stubChecker{access: &apiclient.Access{CanAccess: true}}
	r := access.NewResolver(stub, nil)

	r.Resolve(context.Background(), "1")
	r.Resolve(context.Background(), "1")
	assert.Equal(t, 2, stub.calls)
}

func TestOpen_Decisions(t *testing.T) {
	tests := []struct {
		name   string
		access *apiclient.Access
		err    error
		want   access.Decision
	}{
		{"member enters", &apiclient.Access{CanAccess: true, Role: apiclient.RoleMember}, nil, access.Enter},
		{"owner enters", &apiclient.Access{CanAccess: true, Role: apiclient.RoleOwner}, nil, access.Enter},
		{"pending", &apiclient.Access{HasPendingRequest: true}, nil, access.PromptPending},
		{"stranger", &apiclient.Access{}, nil, access.PromptRequest},
		{"failure", nil, errors.New("boom"), access.PromptRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := access.NewResolver(&stubChecker{access: tt.access, err: tt.err}, nil)
			gate := r.Open(context.Background(), apiclient.Project{ID: "9", Name: "Apollo"})
			assert.Equal(t, tt.want, gate.Decision)
			assert.Equal(t, "Apollo", gate.Project.Name)
		})
	}
}

func TestResolve_AgainstAPI(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("owner", "pw")
	srv.AddUser("alice", "pw")
	srv.AddUser("bob", "pw")
	p := srv.AddProject("owner", "Apollo", "")
	srv.AddMember(p.ID, "alice")
	srv.AddRequest(p.ID, "bob")

	resolve := func(user string) access.Grant {
		return access.NewResolver(srv.Client(srv.Token(user)), nil).Resolve(context.Background(), p.ID)
	}

	assert.Equal(t, access.RelationOwner, resolve("owner").Relation())
	assert.Equal(t, access.RelationMember, resolve("alice").Relation())
	assert.Equal(t, access.RelationPending, resolve("bob").Relation())

	srv.Fail(apitest.RouteAccess, http.StatusInternalServerError)
	g := resolve("owner")
	require.False(t, g.CanAccess)
	assert.False(t, g.HasPendingRequest)
}
