// Package tabs implements the per-project resource views: tasks,
// milestones, notes, documents, files, RAG questions and chat.
//
// Every list tab follows one pattern. Load replaces the local list with the
// server's. Create, Update and Delete call the API and then load again;
// nothing is inserted or patched locally. Delete needs a confirmation first.
// Search is a case-insensitive substring match over what was loaded and is
// never sent to the server.
package tabs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/inflight"
)

// Errors shared by the tabs.
var (
	ErrNotConfirmed = errors.New("action not confirmed")
	ErrInFlight     = errors.New("an action on this item is already in progress")
	ErrEmptyTitle   = errors.New("title is required")
	ErrUnsupported  = errors.New("operation not supported")
	ErrNotFound     = errors.New("item not found")
)

// Confirmer asks the user to confirm a destructive action.
type Confirmer interface {
	Confirm(prompt string) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(prompt string) bool

// Confirm implements Confirmer.
func (f ConfirmFunc) Confirm(prompt string) bool { return f(prompt) }

// Always confirms without asking.
var Always = ConfirmFunc(func(string) bool { return true })

// Ops binds a Tab to one API collection.
type Ops[T, C, P any] struct {
	// Noun names one item in messages, e.g. "task".
	Noun string

	List   func(ctx context.Context, projectID apiclient.ID) ([]T, error)
	Create func(ctx context.Context, projectID apiclient.ID, in C) (*T, error)
	Update func(ctx context.Context, projectID, id apiclient.ID, patch P) (*T, error)
	Delete func(ctx context.Context, projectID, id apiclient.ID) error

	// ID returns an item's id.
	ID func(T) apiclient.ID
	// Fields returns the searchable text of an item.
	Fields func(T) []string
}

// Tab is a list view over one collection of one project.
type Tab[T, C, P any] struct {
	ops       Ops[T, C, P]
	projectID apiclient.ID
	logger    *slog.Logger
	acting    inflight.Set

	mu     sync.RWMutex
	items  []T
	loaded bool
}

// NewTab creates a tab.
func NewTab[T, C, P any](projectID apiclient.ID, ops Ops[T, C, P], logger *slog.Logger) *Tab[T, C, P] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tab[T, C, P]{ops: ops, projectID: projectID, logger: logger}
}

// ProjectID returns the project the tab shows.
func (t *Tab[T, C, P]) ProjectID() apiclient.ID {
	return t.projectID
}

// Load replaces the local list with the server's. A response that arrives
// after ctx is done is discarded.
func (t *Tab[T, C, P]) Load(ctx context.Context) error {
	items, err := t.ops.List(ctx, t.projectID)
	if err != nil {
		return fmt.Errorf("load %ss: %w", t.ops.Noun, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	t.items = items
	t.loaded = true
	t.mu.Unlock()
	return nil
}

// Loaded reports whether a load has completed.
func (t *Tab[T, C, P]) Loaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

// Items returns the loaded list.
func (t *Tab[T, C, P]) Items() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.items)
}

// Find returns the loaded item with id.
func (t *Tab[T, C, P]) Find(id apiclient.ID) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, item := range t.items {
		if t.ops.ID(item) == id {
			return item, true
		}
	}
	var zero T
	return zero, false
}

// Filter returns the loaded items with any searchable field containing
// query, ignoring case. A blank query returns everything.
func (t *Tab[T, C, P]) Filter(query string) []T {
	items := t.Items()
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := items[:0]
	for _, item := range items {
		if matches(t.ops.Fields(item), q) {
			out = append(out, item)
		}
	}
	return out
}

func matches(fields []string, q string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// Busy reports whether an action on id is in flight. The zero id is the
// create action.
func (t *Tab[T, C, P]) Busy(id apiclient.ID) bool {
	return t.acting.Active(actionKey(id))
}

// Create adds an item, then reloads.
func (t *Tab[T, C, P]) Create(ctx context.Context, in C) error {
	if t.ops.Create == nil {
		return ErrUnsupported
	}
	return t.guard(ctx, "", func(ctx context.Context) error {
		if _, err := t.ops.Create(ctx, t.projectID, in); err != nil {
			return fmt.Errorf("create %s: %w", t.ops.Noun, err)
		}
		return nil
	})
}

// Update changes an item, then reloads.
func (t *Tab[T, C, P]) Update(ctx context.Context, id apiclient.ID, patch P) error {
	if t.ops.Update == nil {
		return ErrUnsupported
	}
	return t.guard(ctx, id, func(ctx context.Context) error {
		if _, err := t.ops.Update(ctx, t.projectID, id, patch); err != nil {
			return fmt.Errorf("update %s: %w", t.ops.Noun, err)
		}
		return nil
	})
}

// Delete removes an item once confirm agrees, then reloads.
func (t *Tab[T, C, P]) Delete(ctx context.Context, id apiclient.ID, confirm Confirmer) error {
	if t.ops.Delete == nil {
		return ErrUnsupported
	}
	if confirm == nil || !confirm.Confirm(fmt.Sprintf("Delete this %s?", t.ops.Noun)) {
		return ErrNotConfirmed
	}
	return t.guard(ctx, id, func(ctx context.Context) error {
		if err := t.ops.Delete(ctx, t.projectID, id); err != nil {
			return fmt.Errorf("delete %s: %w", t.ops.Noun, err)
		}
		t.logger.Info("Deleted", "kind", t.ops.Noun, "project_id", t.projectID, "id", id)
		return nil
	})
}

// guard runs mutate with id held and reloads once it succeeds.
func (t *Tab[T, C, P]) guard(ctx context.Context, id apiclient.ID, mutate func(context.Context) error) error {
	key := actionKey(id)
	if !t.acting.Begin(key) {
		return ErrInFlight
	}
	defer t.acting.End(key)

	if err := mutate(ctx); err != nil {
		return err
	}
	return t.Load(ctx)
}

func actionKey(id apiclient.ID) string {
	if id == "" {
		return "create"
	}
	return "item:" + id.String()
}
