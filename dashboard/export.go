package dashboard

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/c360studio/maneger/apiclient"
)

var unsafeFilename = regexp.MustCompile(`[^\w\s-]`)

// SummaryFilename is the export file name for a project:
// its name without punctuation, suffixed with _summary.txt.
func SummaryFilename(projectName string) string {
	name := unsafeFilename.ReplaceAllString(projectName, "")
	if strings.TrimSpace(name) == "" {
		name = "project"
	}
	return name + "_summary.txt"
}

// WriteSummary writes the plain-text export of a project: every task with
// its status, priority and due date, then every milestone with a completion
// mark.
func WriteSummary(w io.Writer, project apiclient.Project, s *Snapshot) error {
	name := project.Name
	if name == "" {
		name = "project"
	}

	lines := []string{name, project.Description, "", "--- Tasks ---"}
	for _, t := range s.Tasks {
		line := fmt.Sprintf("[%s] %s %s", t.Status, t.Priority, t.Title)
		if t.DueDate != "" {
			line += " (" + t.DueDate + ")"
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", "--- Milestones ---")
	for _, m := range s.Milestones {
		mark := "[ ]"
		if m.Completed() {
			mark = "[x]"
		}
		line := mark + " " + m.Title
		if m.DueDate != "" {
			line += " - " + m.DueDate
		}
		if m.Description != "" {
			line += "\n  " + m.Description
		}
		lines = append(lines, line)
	}

	if _, err := io.WriteString(w, strings.Join(lines, "\n")); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

// WriteReport renders a computed summary for a terminal. At most
// overdueLimit overdue tasks are listed; the rest are counted.
func WriteReport(w io.Writer, project apiclient.Project, sum Summary, overdueLimit int) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n", project.Name)
	if project.Description != "" {
		fmt.Fprintf(&b, "%s\n", project.Description)
	}
	fmt.Fprintf(&b, "\nProgress: %d%% (%d/%d tasks done)\n", sum.Progress, sum.DoneCount, sum.TaskCount)
	fmt.Fprintf(&b, "Milestones: %d%% (%d/%d completed)\n", sum.MilestoneProgress, sum.MilestonesDone, sum.MilestoneCount)
	fmt.Fprintf(&b, "Notes: %d  Files: %d\n", sum.NoteCount, sum.FileCount)

	b.WriteString("\nBy status:\n")
	for _, bucket := range sum.Status.Buckets {
		fmt.Fprintf(&b, "  %-12s %3d %s\n", bucket.Key, bucket.Count, bar(sum.Status.Scale(bucket.Key)))
	}
	b.WriteString("\nBy priority:\n")
	for _, bucket := range sum.Priority.Buckets {
		fmt.Fprintf(&b, "  %-12s %3d %s\n", bucket.Key, bucket.Count, bar(sum.Priority.Scale(bucket.Key)))
	}

	switch {
	case len(sum.Overdue) > 0:
		fmt.Fprintf(&b, "\nOverdue (%d):\n", len(sum.Overdue))
		shown := sum.Overdue
		if overdueLimit > 0 && len(shown) > overdueLimit {
			shown = shown[:overdueLimit]
		}
		for _, t := range shown {
			fmt.Fprintf(&b, "  %s - %s\n", t.Title, t.DueDate)
		}
		if extra := len(sum.Overdue) - len(shown); extra > 0 {
			fmt.Fprintf(&b, "  +%d more\n", extra)
		}
	case sum.TaskCount > sum.DoneCount:
		b.WriteString("\nNo overdue tasks.\n")
	}

	switch {
	case len(sum.Upcoming) > 0:
		b.WriteString("\nUpcoming milestones:\n")
		for _, m := range sum.Upcoming {
			fmt.Fprintf(&b, "  %s - %s\n", m.Title, m.DueDate)
		}
	case sum.MilestoneCount > 0:
		b.WriteString("\nNo upcoming milestones.\n")
	}

	if len(sum.Errors) > 0 {
		b.WriteString("\nUnavailable:\n")
		for _, s := range []Section{SectionTasks, SectionMilestones, SectionNotes, SectionFiles} {
			if err := sum.Errors[s]; err != nil {
				fmt.Fprintf(&b, "  %s: %s\n", s, apiclient.Message(err))
			}
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

const barWidth = 20

func bar(scale float64) string {
	return strings.Repeat("#", int(scale*barWidth+0.5))
}
