package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle.
const DefaultDebounce = 100 * time.Millisecond

// Watcher reloads the store when another process changes the session file
// (a login or logout in a second terminal) and emits the new session.
type Watcher struct {
	store    *Store
	fsw      *fsnotify.Watcher
	logger   *slog.Logger
	debounce time.Duration
	events   chan Session
}

// NewWatcher watches the directory holding the store's session file.
func NewWatcher(store *Store, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	dir := filepath.Dir(store.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		store:    store,
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		events:   make(chan Session, 1),
	}, nil
}

// Events returns the channel of changed sessions. It is closed when the
// watcher stops.
func (w *Watcher) Events() <-chan Session {
	return w.events
}

// Start begins processing file events until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
	w.logger.Debug("Session watcher started", "path", w.store.Path())
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer close(w.events)
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	target := filepath.Clean(w.store.Path())
	last := w.store.Current().Token
	pending := false

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == target {
				pending = true
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Error("Session watcher error", "error", err)

		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false

			sess, err := w.store.Load()
			if err != nil {
				w.logger.Warn("Failed to reload session", "error", err)
				continue
			}
			if sess.Token == last {
				continue
			}
			last = sess.Token

			select {
			case w.events <- sess:
			case <-ctx.Done():
				return
			}
		}
	}
}
