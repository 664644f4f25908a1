package membership

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/events"
)

// Requester sends join requests.
type Requester interface {
	RequestJoin(ctx context.Context, projectID apiclient.ID) error
}

// Prompt is the gate shown to a user who cannot enter a project.
type Prompt struct {
	api     Requester
	project apiclient.Project
	actor   string
	opts    options

	// entered is set when the gate let the user in; there is nothing to request.
	entered bool

	mu      sync.Mutex
	pending bool
	sending bool
}

// NewPrompt builds the prompt for a gate that did not let the user in.
// actor is the requesting username, used for events.
func NewPrompt(gate access.Gate, api Requester, actor string, opts ...Option) *Prompt {
	return &Prompt{
		api:     api,
		project: gate.Project,
		actor:   actor,
		opts:    buildOptions(opts),
		entered: gate.Decision == access.Enter,
		pending: gate.Decision == access.PromptPending,
	}
}

// Project returns the gated project.
func (p *Prompt) Project() apiclient.Project {
	return p.project
}

// Pending reports whether a request is known to be waiting.
func (p *Prompt) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// CanSend reports whether the send action is enabled.
func (p *Prompt) CanSend() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.entered && !p.pending && !p.sending
}

// Send submits a join request. It does nothing and returns false when the
// user already has access or a request is already pending or being sent.
func (p *Prompt) Send(ctx context.Context) (bool, error) {
	p.mu.Lock()
	if p.entered || p.pending || p.sending {
		p.mu.Unlock()
		return false, nil
	}
	p.sending = true
	p.mu.Unlock()

	err := p.api.RequestJoin(ctx, p.project.ID)

	p.mu.Lock()
	p.sending = false
	if err == nil {
		p.pending = true
	}
	p.mu.Unlock()

	if err != nil {
		return false, fmt.Errorf("request access to %s: %w", p.project.Name, err)
	}

	p.opts.logger.Info("Join request sent", "project_id", p.project.ID)
	ev := events.New(events.JoinRequested, p.project.ID, p.actor, p.actor)
	if err := p.opts.publisher.Publish(ctx, ev); err != nil {
		p.opts.logger.Warn("Failed to publish event", "type", ev.Type, "error", err)
	}
	return true, nil
}
