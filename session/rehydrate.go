package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/maneger/apiclient"
)

// Validator confirms a token with the API.
type Validator interface {
	Me(ctx context.Context) (*apiclient.User, error)
}

// Rehydrate loads the persisted session and re-validates its token. A token
// the API does not accept, for any reason, clears the session. A stored user
// without a token is not a session and is cleared too. On success the stored
// user is refreshed from the API's answer.
//
// The returned error reports store failures only; a rejected token yields an
// empty session and a nil error.
func Rehydrate(ctx context.Context, store *Store, v Validator, logger *slog.Logger) (Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sess, err := store.Load()
	if err != nil {
		return Session{}, err
	}

	if sess.Token == "" {
		if sess.User != nil {
			logger.Debug("Dropping stored user without a token")
			if err := store.Clear(); err != nil {
				return Session{}, err
			}
		}
		return Session{}, nil
	}

	me, err := v.Me(ctx)
	if err != nil {
		logger.Info("Stored session is no longer valid", "error", err)
		if err := store.Clear(); err != nil {
			return Session{}, err
		}
		return Session{}, nil
	}

	if err := store.Set(sess.Token, me); err != nil {
		return Session{}, fmt.Errorf("refresh session: %w", err)
	}
	return store.Current(), nil
}
