package tabs

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/dashboard"
)

// MilestonesAPI is the milestone collection.
type MilestonesAPI interface {
	ListMilestones(ctx context.Context, projectID apiclient.ID) ([]apiclient.Milestone, error)
	CreateMilestone(ctx context.Context, projectID apiclient.ID, in apiclient.MilestoneInput) (*apiclient.Milestone, error)
	UpdateMilestone(ctx context.Context, projectID, milestoneID apiclient.ID, patch apiclient.MilestonePatch) (*apiclient.Milestone, error)
	DeleteMilestone(ctx context.Context, projectID, milestoneID apiclient.ID) error
}

// SortKey orders milestones.
type SortKey string

// Milestone orderings.
const (
	SortByDate  SortKey = "date"
	SortByTitle SortKey = "title"
)

// MilestonesTab lists dated goals.
type MilestonesTab struct {
	*Tab[apiclient.Milestone, apiclient.MilestoneInput, apiclient.MilestonePatch]
	now func() time.Time
}

// NewMilestonesTab creates the milestones tab of a project.
func NewMilestonesTab(api MilestonesAPI, projectID apiclient.ID, logger *slog.Logger) *MilestonesTab {
	return &MilestonesTab{
		Tab: NewTab(projectID, Ops[apiclient.Milestone, apiclient.MilestoneInput, apiclient.MilestonePatch]{
			Noun:   "milestone",
			List:   api.ListMilestones,
			Create: api.CreateMilestone,
			Update: api.UpdateMilestone,
			Delete: api.DeleteMilestone,
			ID:     func(m apiclient.Milestone) apiclient.ID { return m.ID },
			Fields: func(m apiclient.Milestone) []string { return []string{m.Title, m.Description} },
		}, logger),
		now: time.Now,
	}
}

// Add creates a milestone. Due date and description are optional.
func (t *MilestonesTab) Add(ctx context.Context, title, dueDate, description string) error {
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return t.Create(ctx, apiclient.MilestoneInput{Title: title, DueDate: dueDate, Description: description})
}

// Sorted filters by query and orders by due date or title, comparing
// strings. Milestones without a due date sort first by date.
func (t *MilestonesTab) Sorted(query string, by SortKey) []apiclient.Milestone {
	list := t.Filter(query)
	slices.SortStableFunc(list, func(a, b apiclient.Milestone) int {
		if by == SortByTitle {
			return strings.Compare(a.Title, b.Title)
		}
		return strings.Compare(a.DueDate, b.DueDate)
	})
	return list
}

// ToggleComplete completes an open milestone now, or reopens a completed one.
func (t *MilestonesTab) ToggleComplete(ctx context.Context, id apiclient.ID) error {
	m, ok := t.Find(id)
	if !ok {
		return ErrNotFound
	}
	var patch apiclient.MilestonePatch
	if m.Completed() {
		patch.ClearCompleted = true
	} else {
		now := t.now()
		patch.CompletedAt = &now
	}
	return t.Update(ctx, id, patch)
}

// Overdue reports whether an open milestone is past its due date.
func (t *MilestonesTab) Overdue(m apiclient.Milestone) bool {
	return !m.Completed() && dashboard.IsOverdue(m.DueDate, dashboard.Today(t.now()))
}
