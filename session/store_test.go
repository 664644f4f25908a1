package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/apiclient"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "maneger", "session.json"), nil)
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := newTestStore(t)

	sess, err := s.Load()
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, s.Token())
}

func TestStore_SetPersists(t *testing.T) {
	s := newTestStore(t)
	user := &apiclient.User{ID: "1", Username: "alice"}

	require.NoError(t, s.Set("tok", user))
	assert.Equal(t, "tok", s.Token())
	assert.True(t, s.Current().Authenticated())

	info, err := os.Stat(s.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	reloaded := NewStore(s.Path(), nil)
	sess, err := reloaded.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok", sess.Token)
	require.NotNil(t, sess.User)
	assert.Equal(t, "alice", sess.User.Username)
}

func TestStore_SetCopiesUser(t *testing.T) {
	s := newTestStore(t)
	user := &apiclient.User{ID: "1", Username: "alice"}
	require.NoError(t, s.Set("tok", user))

	user.Username = "mallory"
	assert.Equal(t, "alice", s.Current().User.Username)
}

func TestStore_SetRejectsPartialSession(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.Set("", &apiclient.User{Username: "alice"}), ErrIncomplete)
	assert.ErrorIs(t, s.Set("tok", nil), ErrIncomplete)

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.Token())
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("tok", &apiclient.User{ID: "1", Username: "alice"}))

	require.NoError(t, s.Clear())
	assert.Empty(t, s.Token())
	assert.Nil(t, s.Current().User)

	_, err := os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	require.NoError(t, s.Clear())
}

func TestStore_LoadDiscardsCorruptFile(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(s.Path()), 0700))
	require.NoError(t, os.WriteFile(s.Path(), []byte("{not json"), 0600))

	sess, err := s.Load()
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())

	_, err = os.Stat(s.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestStore_Invalidate(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Set("tok", &apiclient.User{ID: "1", Username: "alice"}))

	s.Invalidate()
	assert.Empty(t, s.Token())
	assert.Nil(t, s.Current().User)
}
