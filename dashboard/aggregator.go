// Package dashboard builds the project overview: it fetches tasks,
// milestones, notes and files together and derives progress, histograms,
// overdue tasks and upcoming milestones from that snapshot.
//
// Every figure is a pure function of the snapshot. Nothing is updated
// incrementally; reloading any list means computing everything again.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/c360studio/maneger/apiclient"
)

// DefaultUpcomingLimit caps the upcoming milestone list.
const DefaultUpcomingLimit = 5

// Section names one of the four fetched collections.
type Section string

// Snapshot sections.
const (
	SectionTasks      Section = "tasks"
	SectionMilestones Section = "milestones"
	SectionNotes      Section = "notes"
	SectionFiles      Section = "files"
)

// Policy decides what a failed section does to the whole load.
type Policy string

const (
	// FailAll fails the load when any section fails.
	FailAll Policy = "all"
	// Degrade keeps the sections that loaded and reports the others in
	// Snapshot.Errors. The load fails only when every section fails.
	Degrade Policy = "degrade"
)

// API is the set of list calls the aggregator depends on.
type API interface {
	ListTasks(ctx context.Context, projectID apiclient.ID) ([]apiclient.Task, error)
	ListMilestones(ctx context.Context, projectID apiclient.ID) ([]apiclient.Milestone, error)
	ListNotes(ctx context.Context, projectID apiclient.ID) ([]apiclient.Note, error)
	ListFiles(ctx context.Context, projectID apiclient.ID) ([]apiclient.ProjectFile, error)
}

// Snapshot holds the four collections as fetched.
type Snapshot struct {
	Tasks      []apiclient.Task
	Milestones []apiclient.Milestone
	Notes      []apiclient.Note
	Files      []apiclient.ProjectFile

	// Errors holds the sections that failed under the Degrade policy.
	Errors map[Section]error
}

// Failed reports whether section could not be loaded.
func (s *Snapshot) Failed(section Section) bool {
	return s.Errors[section] != nil
}

// Aggregator loads snapshots.
type Aggregator struct {
	api    API
	policy Policy
	logger *slog.Logger
}

// NewAggregator creates an aggregator. An empty policy means FailAll.
func NewAggregator(api API, policy Policy, logger *slog.Logger) *Aggregator {
	if policy == "" {
		policy = FailAll
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{api: api, policy: policy, logger: logger}
}

// Load fetches the four collections of projectID concurrently.
func (a *Aggregator) Load(ctx context.Context, projectID apiclient.ID) (*Snapshot, error) {
	var (
		snap Snapshot
		mu   sync.Mutex
		errs = make(map[Section]error)
	)

	g, gctx := errgroup.WithContext(ctx)
	if a.policy == Degrade {
		// Sections must not cancel each other.
		g, gctx = &errgroup.Group{}, ctx
	}

	fetch := func(section Section, load func(context.Context) error) {
		g.Go(func() error {
			if err := load(gctx); err != nil {
				err = fmt.Errorf("load %s: %w", section, err)
				mu.Lock()
				errs[section] = err
				mu.Unlock()
				return err
			}
			return nil
		})
	}

	fetch(SectionTasks, func(ctx context.Context) (err error) {
		snap.Tasks, err = a.api.ListTasks(ctx, projectID)
		return err
	})
	fetch(SectionMilestones, func(ctx context.Context) (err error) {
		snap.Milestones, err = a.api.ListMilestones(ctx, projectID)
		return err
	})
	fetch(SectionNotes, func(ctx context.Context) (err error) {
		snap.Notes, err = a.api.ListNotes(ctx, projectID)
		return err
	})
	fetch(SectionFiles, func(ctx context.Context) (err error) {
		snap.Files, err = a.api.ListFiles(ctx, projectID)
		return err
	})

	firstErr := g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if a.policy != Degrade {
		if firstErr != nil {
			return nil, firstErr
		}
		return &snap, nil
	}

	if len(errs) == 4 {
		joined := make([]error, 0, len(errs))
		for _, s := range []Section{SectionTasks, SectionMilestones, SectionNotes, SectionFiles} {
			joined = append(joined, errs[s])
		}
		return nil, errors.Join(joined...)
	}
	if len(errs) > 0 {
		for section, err := range errs {
			a.logger.Warn("Dashboard section failed", "project_id", projectID, "section", section, "error", err)
		}
		snap.Errors = errs
	}
	return &snap, nil
}

// Summary is the computed overview of a snapshot.
type Summary struct {
	Today string

	TaskCount int
	DoneCount int
	Progress  int
	Status    Histogram[apiclient.TaskStatus]
	Priority  Histogram[apiclient.Priority]
	Overdue   []apiclient.Task

	MilestoneCount    int
	MilestonesDone    int
	MilestoneProgress int
	Upcoming          []apiclient.Milestone

	NoteCount int
	FileCount int

	Errors map[Section]error
}

// Compute derives the overview of s for the given date, listing up to
// DefaultUpcomingLimit upcoming milestones.
func Compute(s *Snapshot, today string) Summary {
	return ComputeWithLimit(s, today, DefaultUpcomingLimit)
}

// ComputeWithLimit is Compute with a custom upcoming milestone cap.
func ComputeWithLimit(s *Snapshot, today string, upcomingLimit int) Summary {
	status := StatusHistogram(s.Tasks)
	done := 0
	for _, m := range s.Milestones {
		if m.Completed() {
			done++
		}
	}
	return Summary{
		Today:             today,
		TaskCount:         len(s.Tasks),
		DoneCount:         status.Count(apiclient.StatusDone),
		Progress:          Progress(s.Tasks),
		Status:            status,
		Priority:          PriorityHistogram(s.Tasks),
		Overdue:           Overdue(s.Tasks, today),
		MilestoneCount:    len(s.Milestones),
		MilestonesDone:    done,
		MilestoneProgress: MilestoneProgress(s.Milestones),
		Upcoming:          Upcoming(s.Milestones, upcomingLimit),
		NoteCount:         len(s.Notes),
		FileCount:         len(s.Files),
		Errors:            s.Errors,
	}
}
