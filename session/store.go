// Package session persists the signed-in identity between runs.
//
// A Session is a bearer token together with the user it belongs to. The
// Store keeps the two in step: they are written and cleared together, and the
// Store is the apiclient.TokenSource for every call the client makes.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/c360studio/maneger/apiclient"
)

// ErrIncomplete is returned when a token is stored without a user or the reverse.
var ErrIncomplete = errors.New("session requires both a token and a user")

// Session is the persisted identity.
type Session struct {
	Token string          `json:"token,omitempty"`
	User  *apiclient.User `json:"user,omitempty"`
}

// Authenticated reports whether both halves of the session are present.
func (s Session) Authenticated() bool {
	return s.Token != "" && s.User != nil
}

// Store is a file-backed session holder. It is safe for concurrent use.
type Store struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	current Session
}

// NewStore creates a store persisting to path. Nothing is read until Load.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the session file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted session. A missing file is an empty session; an
// unreadable one is discarded.
func (s *Store) Load() (Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.replace(Session{})
		return Session{}, nil
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.logger.Warn("Discarding unreadable session file", "path", s.path, "error", err)
		if err := s.Clear(); err != nil {
			return Session{}, err
		}
		return Session{}, nil
	}

	s.replace(sess)
	return sess, nil
}

// Set stores a token and its user together.
func (s *Store) Set(token string, user *apiclient.User) error {
	if token == "" || user == nil {
		return ErrIncomplete
	}
	u := *user
	sess := Session{Token: token, User: &u}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace session: %w", err)
	}

	s.replace(sess)
	s.logger.Debug("Session stored", "username", u.Username)
	return nil
}

// Clear forgets the token and the user.
func (s *Store) Clear() error {
	s.replace(Session{})
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

// Invalidate clears the session after the API rejected its token. It is
// meant as the apiclient session-invalidated callback.
func (s *Store) Invalidate() {
	s.logger.Warn("Session rejected by the API, signing out")
	if err := s.Clear(); err != nil {
		s.logger.Error("Failed to clear session", "error", err)
	}
}

// Current returns the in-memory session.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Token implements apiclient.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Token
}

func (s *Store) replace(sess Session) {
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
}
