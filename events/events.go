// Package events publishes membership transitions so other tools can follow
// who joined, left or was turned away from a project.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/maneger/apiclient"
)

// Type names a membership transition.
type Type string

// Membership transitions.
const (
	JoinRequested   Type = "join.requested"
	RequestApproved Type = "request.approved"
	RequestRejected Type = "request.rejected"
	MemberAdded     Type = "member.added"
	MemberRemoved   Type = "member.removed"
)

// Event describes one transition.
type Event struct {
	ID        string       `json:"id"`
	Type      Type         `json:"type"`
	ProjectID apiclient.ID `json:"project_id"`
	Actor     string       `json:"actor,omitempty"`
	Subject   string       `json:"subject,omitempty"`
	At        time.Time    `json:"at"`
}

// New builds an event with a fresh id and the current time.
func New(typ Type, projectID apiclient.ID, actor, subject string) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      typ,
		ProjectID: projectID,
		Actor:     actor,
		Subject:   subject,
		At:        time.Now().UTC(),
	}
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of everything published so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the type of each published event in order.
func (r *Recorder) Types() []Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
