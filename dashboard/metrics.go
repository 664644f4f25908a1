package dashboard

import (
	"math"
	"slices"
	"strings"
	"time"

	"github.com/c360studio/maneger/apiclient"
)

// DateLayout is the fixed-width date format used for due dates.
const DateLayout = "2006-01-02"

// Today returns the current UTC date as YYYY-MM-DD.
func Today(now time.Time) string {
	return now.UTC().Format(DateLayout)
}

// Bucket is one histogram bar.
type Bucket[K ~string] struct {
	Key   K
	Count int
}

// Histogram counts items over a fixed, ordered set of keys. Max is never
// below 1 so bars can always be scaled against it.
type Histogram[K ~string] struct {
	Buckets []Bucket[K]
	Max     int
}

// Count returns the count for key, or 0 for an unknown key.
func (h Histogram[K]) Count(key K) int {
	for _, b := range h.Buckets {
		if b.Key == key {
			return b.Count
		}
	}
	return 0
}

// Total returns the sum of all buckets.
func (h Histogram[K]) Total() int {
	total := 0
	for _, b := range h.Buckets {
		total += b.Count
	}
	return total
}

// Scale returns the bar length of key relative to the largest bucket, in [0,1].
func (h Histogram[K]) Scale(key K) float64 {
	if h.Max <= 0 {
		return 0
	}
	return float64(h.Count(key)) / float64(h.Max)
}

func histogram[K ~string](order []K, values []K) Histogram[K] {
	h := Histogram[K]{Buckets: make([]Bucket[K], len(order)), Max: 1}
	for i, k := range order {
		h.Buckets[i].Key = k
	}
	for _, v := range values {
		if i := slices.Index(order, v); i >= 0 {
			h.Buckets[i].Count++
		}
	}
	for _, b := range h.Buckets {
		h.Max = max(h.Max, b.Count)
	}
	return h
}

func percent(n, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(n) / float64(total) * 100))
}

// Progress is the rounded percentage of tasks that are done; 0 for no tasks.
func Progress(tasks []apiclient.Task) int {
	done := 0
	for _, t := range tasks {
		if t.Status == apiclient.StatusDone {
			done++
		}
	}
	return percent(done, len(tasks))
}

// StatusHistogram counts tasks per kanban column. Unknown statuses are skipped.
func StatusHistogram(tasks []apiclient.Task) Histogram[apiclient.TaskStatus] {
	values := make([]apiclient.TaskStatus, len(tasks))
	for i, t := range tasks {
		values[i] = t.Status
	}
	return histogram(apiclient.TaskStatuses, values)
}

// PriorityHistogram counts tasks per priority, high first. Unknown
// priorities are skipped.
func PriorityHistogram(tasks []apiclient.Task) Histogram[apiclient.Priority] {
	values := make([]apiclient.Priority, len(tasks))
	for i, t := range tasks {
		values[i] = t.Priority
	}
	return histogram(apiclient.Priorities, values)
}

// IsOverdue reports whether a due date lies before today. Dates are compared
// as YYYY-MM-DD strings; an empty date is never overdue.
func IsOverdue(due, today string) bool {
	return due != "" && due < today
}

// Overdue returns the tasks not done whose due date is before today.
func Overdue(tasks []apiclient.Task, today string) []apiclient.Task {
	var out []apiclient.Task
	for _, t := range tasks {
		if t.Status != apiclient.StatusDone && IsOverdue(t.DueDate, today) {
			out = append(out, t)
		}
	}
	return out
}

// MilestoneProgress is the rounded percentage of completed milestones.
func MilestoneProgress(milestones []apiclient.Milestone) int {
	done := 0
	for _, m := range milestones {
		if m.Completed() {
			done++
		}
	}
	return percent(done, len(milestones))
}

// Upcoming returns incomplete milestones with a due date, earliest first,
// capped at limit. A limit of 0 or less means no cap.
func Upcoming(milestones []apiclient.Milestone, limit int) []apiclient.Milestone {
	var out []apiclient.Milestone
	for _, m := range milestones {
		if !m.Completed() && m.DueDate != "" {
			out = append(out, m)
		}
	}
	slices.SortStableFunc(out, func(a, b apiclient.Milestone) int {
		return strings.Compare(a.DueDate, b.DueDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
