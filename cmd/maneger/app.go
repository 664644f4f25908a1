package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360studio/maneger/access"
	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/config"
	"github.com/c360studio/maneger/events"
	"github.com/c360studio/maneger/session"
)

var errNotSignedIn = errors.New("not signed in; run 'maneger login' first")

type globalOptions struct {
	configPath string
	apiURL     string
	logLevel   string
	yes        bool
}

// App holds the components shared by every command.
type App struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *session.Store
	client    *apiclient.Client
	registry  *prometheus.Registry
	publisher events.Publisher
	confirm   *promptConfirmer
	streams   streams
}

func newApp(opts globalOptions, s streams) (*App, error) {
	logger := newLogger(s.errOut, opts.logLevel)
	slog.SetDefault(logger)

	cfg, err := config.NewLoader(logger).Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.apiURL != "" {
		cfg.API.BaseURL = strings.TrimSuffix(opts.apiURL, "/")
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	store := session.NewStore(cfg.Session.Path, logger)
	registry := prometheus.NewRegistry()

	client := apiclient.New(cfg.API.BaseURL,
		apiclient.WithTokenSource(store),
		apiclient.WithSessionInvalidated(store.Invalidate),
		apiclient.WithLogger(logger),
		apiclient.WithMetrics(apiclient.NewMetrics(registry)),
		apiclient.WithTimeouts(apiclient.Timeouts{
			Default:    cfg.API.Timeout,
			Upload:     cfg.API.UploadTimeout,
			RAGRun:     cfg.API.RAGTimeout,
			RAGSession: cfg.API.RAGSessionTimeout,
		}),
	)

	var publisher events.Publisher = events.Nop{}
	if cfg.Events.NATSURL != "" {
		p, err := events.Connect(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, logger)
		if err != nil {
			logger.Warn("Membership events disabled", "error", err)
		} else {
			publisher = p
		}
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		client:    client,
		registry:  registry,
		publisher: publisher,
		confirm:   &promptConfirmer{in: bufio.NewReader(s.in), out: s.errOut, yes: opts.yes},
		streams:   s,
	}, nil
}

func newLogger(w io.Writer, level string) *slog.Logger {
	l := slog.LevelWarn
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "error":
		l = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

// Close releases the event connection and logs request totals.
func (a *App) Close() {
	if c, ok := a.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("Failed to close event publisher", "error", err)
		}
	}

	families, err := a.registry.Gather()
	if err != nil {
		return
	}
	for _, mf := range families {
		if mf.GetName() != "maneger_api_requests_total" {
			continue
		}
		var total float64
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		a.logger.Debug("API requests", "total", total)
	}
}

// session re-validates the stored session and fails when nobody is signed in.
func (a *App) session(ctx context.Context) (session.Session, error) {
	sess, err := session.Rehydrate(ctx, a.store, a.client, a.logger)
	if err != nil {
		return session.Session{}, err
	}
	if !sess.Authenticated() {
		return session.Session{}, errNotSignedIn
	}
	return sess, nil
}

// enter signs in, resolves access to the project and refuses to continue
// unless the caller may enter it.
func (a *App) enter(ctx context.Context, projectID string) (session.Session, access.Gate, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return session.Session{}, access.Gate{}, err
	}
	project, err := a.project(ctx, projectID)
	if err != nil {
		return sess, access.Gate{}, err
	}

	gate := access.NewResolver(a.client, a.logger).Open(ctx, project)
	switch gate.Decision {
	case access.Enter:
		return sess, gate, nil
	case access.PromptPending:
		return sess, gate, fmt.Errorf("no access to %s: your join request is pending", project.Name)
	default:
		return sess, gate, fmt.Errorf("no access to %s: run 'maneger request %s' to ask the owner", project.Name, projectID)
	}
}

// project fetches a project. A caller without access is refused the project
// itself, so it is then looked up in the global list instead.
func (a *App) project(ctx context.Context, projectID string) (apiclient.Project, error) {
	id := apiclient.ID(projectID)
	p, err := a.client.GetProject(ctx, id)
	if err == nil {
		return *p, nil
	}
	if !apiclient.IsForbidden(err) {
		return apiclient.Project{}, fmt.Errorf("get project: %w", err)
	}
	all, err := a.client.ListProjects(ctx)
	if err != nil {
		return apiclient.Project{}, fmt.Errorf("list projects: %w", err)
	}
	for _, candidate := range all {
		if candidate.ID == id {
			return candidate, nil
		}
	}
	return apiclient.Project{ID: id, Name: projectID}, nil
}

func (a *App) out() io.Writer {
	return a.streams.out
}

// userMessage is the one-line text shown for a failed command.
func userMessage(err error) string {
	if _, ok := apiclient.KindOf(err); ok {
		return apiclient.Message(err)
	}
	return err.Error()
}

// promptConfirmer asks on the terminal unless --yes was given.
type promptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
	yes bool
}

// Confirm implements tabs.Confirmer.
func (c *promptConfirmer) Confirm(prompt string) bool {
	if c.yes {
		return true
	}
	fmt.Fprintf(c.out, "%s [y/N]: ", prompt)
	line, err := c.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
