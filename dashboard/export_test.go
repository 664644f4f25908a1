package dashboard

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/apiclient"
)

func TestSummaryFilename(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Apollo", "Apollo_summary.txt"},
		{"Moon: phase 2!", "Moon phase 2_summary.txt"},
		{"a-b_c", "a-b_c_summary.txt"},
		{"", "project_summary.txt"},
		{"???", "project_summary.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SummaryFilename(tt.name))
		})
	}
}

func TestWriteSummary(t *testing.T) {
	snap := &Snapshot{
		Tasks: []apiclient.Task{
			{Title: "Ship", Status: apiclient.StatusDone, Priority: apiclient.PriorityHigh, DueDate: "2024-01-02"},
			{Title: "Test", Status: apiclient.StatusTodo, Priority: apiclient.PriorityLow},
		},
		Milestones: []apiclient.Milestone{
			{Title: "Beta", DueDate: "2024-06-01", Description: "public"},
			{Title: "Alpha", CompletedAt: "2024-02-02"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, apiclient.Project{Name: "Apollo", Description: "moon"}, snap))

	want := "Apollo\nmoon\n\n--- Tasks ---\n" +
		"[done] high Ship (2024-01-02)\n" +
		"[todo] low Test\n" +
		"\n--- Milestones ---\n" +
		"[ ] Beta - 2024-06-01\n  public\n" +
		"[x] Alpha"
	assert.Equal(t, want, buf.String())
}

func TestWriteReport(t *testing.T) {
	snap := &Snapshot{
		Tasks: []apiclient.Task{
			{Title: "a", Status: apiclient.StatusTodo, DueDate: "2020-01-01"},
			{Title: "b", Status: apiclient.StatusTodo, DueDate: "2020-01-02"},
			{Title: "c", Status: apiclient.StatusTodo, DueDate: "2020-01-03"},
			{Title: "d", Status: apiclient.StatusDone},
		},
		Milestones: []apiclient.Milestone{{Title: "M1", DueDate: "2030-01-01"}},
		Errors:     map[Section]error{SectionFiles: errors.New("boom")},
	}
	sum := Compute(snap, "2024-01-01")

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, apiclient.Project{Name: "Apollo"}, sum, 2))
	out := buf.String()

	assert.Contains(t, out, "Progress: 25% (1/4 tasks done)")
	assert.Contains(t, out, "Overdue (3):")
	assert.Contains(t, out, "  a - 2020-01-01\n  b - 2020-01-02\n  +1 more\n")
	assert.NotContains(t, out, "  c - 2020-01-03")
	assert.Contains(t, out, "Upcoming milestones:\n  M1 - 2030-01-01")
	assert.Contains(t, out, "files:")
}

func TestWriteReport_NoOverdue(t *testing.T) {
	sum := Compute(&Snapshot{
		Tasks:      []apiclient.Task{{Status: apiclient.StatusTodo}},
		Milestones: []apiclient.Milestone{{Title: "done", CompletedAt: "x"}},
	}, "2024-01-01")

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, apiclient.Project{Name: "P"}, sum, 8))
	assert.Contains(t, buf.String(), "No overdue tasks.")
	assert.Contains(t, buf.String(), "No upcoming milestones.")
}
