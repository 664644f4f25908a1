package session_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/apiclient/apitest"
	"github.com/c360studio/maneger/session"
)

func clientFor(srv *apitest.Server, store *session.Store) *apiclient.Client {
	return apiclient.New(srv.URL,
		apiclient.WithTokenSource(store),
		apiclient.WithSessionInvalidated(store.Invalidate),
	)
}

func writeRaw(t *testing.T, path string, sess session.Session) {
	t.Helper()
	data, err := json.Marshal(sess)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, data, 0600))
}

func TestRehydrate_ValidTokenRefreshesUser(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "pw")
	token := srv.Token("alice")

	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), nil)
	writeRaw(t, store.Path(), session.Session{Token: token, User: &apiclient.User{ID: "stale", Username: "old-name"}})

	sess, err := session.Rehydrate(context.Background(), store, clientFor(srv, store), nil)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
	assert.Equal(t, token, sess.Token)
	assert.Equal(t, "alice", sess.User.Username)
	assert.Equal(t, 1, srv.Calls(apitest.RouteMe))
}

func TestRehydrate_TokenWithoutUserIsCompleted(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "pw")
	token := srv.Token("alice")

	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), nil)
	writeRaw(t, store.Path(), session.Session{Token: token})

	sess, err := session.Rehydrate(context.Background(), store, clientFor(srv, store), nil)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
	assert.Equal(t, "alice", sess.User.Username)
}

func TestRehydrate_RejectedTokenClears(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "pw")
	token := srv.Token("alice")
	srv.RevokeTokens("alice")

	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), nil)
	writeRaw(t, store.Path(), session.Session{Token: token, User: &apiclient.User{ID: "1", Username: "alice"}})

	sess, err := session.Rehydrate(context.Background(), store, clientFor(srv, store), nil)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, store.Token())

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestRehydrate_ServerErrorClears(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("alice", "pw")
	token := srv.Token("alice")
	srv.Fail(apitest.RouteMe, 500)

	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), nil)
	writeRaw(t, store.Path(), session.Session{Token: token, User: &apiclient.User{ID: "1", Username: "alice"}})

	sess, err := session.Rehydrate(context.Background(), store, clientFor(srv, store), nil)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, store.Token())
}

func TestRehydrate_UserWithoutTokenIsDropped(t *testing.T) {
	srv := apitest.New(t)
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), nil)
	writeRaw(t, store.Path(), session.Session{User: &apiclient.User{ID: "1", Username: "alice"}})

	sess, err := session.Rehydrate(context.Background(), store, clientFor(srv, store), nil)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Nil(t, store.Current().User)
	assert.Zero(t, srv.Calls(apitest.RouteMe))
}

func TestRehydrate_NoSession(t *testing.T) {
	srv := apitest.New(t)
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"), nil)

	sess, err := session.Rehydrate(context.Background(), store, clientFor(srv, store), nil)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Zero(t, srv.Calls(apitest.RouteMe))
}
