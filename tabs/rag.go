package tabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/inflight"
	"github.com/c360studio/maneger/markdown"
)

// RAG tab constants.
const (
	// NoteTitleLimit caps a saved answer's title, in characters.
	NoteTitleLimit = 80
	// DefaultQuestionTitle names a saved answer whose question was blank.
	DefaultQuestionTitle = "Question"
)

// RAG errors.
var (
	ErrEmptyQuery = errors.New("query is empty")
	ErrNoAnswer   = errors.New("no answer to save")
)

// RAGAPI is the research service plus note creation for saving answers.
type RAGAPI interface {
	RAGHealth(ctx context.Context) (*apiclient.RAGHealth, error)
	NewResearchSession(ctx context.Context) (*apiclient.ResearchSession, error)
	RunResearch(ctx context.Context, req apiclient.ResearchRequest) (*apiclient.ResearchResult, error)
	Search(ctx context.Context, req apiclient.SearchRequest) (json.RawMessage, error)
	CreateNote(ctx context.Context, projectID apiclient.ID, in apiclient.NoteInput) (*apiclient.Note, error)
}

// Answer is the outcome of one question.
type Answer struct {
	Query    string
	Filename string
	// Text is the answer as markdown.
	Text   string
	Result *apiclient.ResearchResult
}

// RAGTab asks questions about a project's documents.
type RAGTab struct {
	api       RAGAPI
	projectID apiclient.ID
	conv      *markdown.Converter
	logger    *slog.Logger
	acting    inflight.Set

	mu   sync.RWMutex
	last *Answer
}

// NewRAGTab creates the RAG tab of a project.
func NewRAGTab(api RAGAPI, projectID apiclient.ID, logger *slog.Logger) *RAGTab {
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGTab{api: api, projectID: projectID, conv: markdown.NewConverter(), logger: logger}
}

// Health reports whether the research service is reachable. Any failure
// counts as not connected.
func (t *RAGTab) Health(ctx context.Context) bool {
	h, err := t.api.RAGHealth(ctx)
	if err != nil {
		t.logger.Debug("RAG health check failed", "error", err)
		return false
	}
	return h != nil && h.OK
}

// Ask opens a research session and runs query in it, optionally scoped to
// one uploaded file. Only one question runs at a time.
func (t *RAGTab) Ask(ctx context.Context, query, filename string) (*Answer, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if !t.acting.Begin("ask") {
		return nil, ErrInFlight
	}
	defer t.acting.End("ask")

	sess, err := t.api.NewResearchSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open research session: %w", err)
	}

	res, err := t.api.RunResearch(ctx, apiclient.ResearchRequest{
		SessionID:     sess.SessionID,
		Query:         query,
		Filename:      filename,
		UseFourAgents: true,
	})
	if err != nil {
		return nil, fmt.Errorf("run research: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ans := &Answer{
		Query:    query,
		Filename: filename,
		Text:     t.conv.Normalize(res.Answer()),
		Result:   res,
	}
	t.mu.Lock()
	t.last = ans
	t.mu.Unlock()
	return ans, nil
}

// Busy reports whether a question is running.
func (t *RAGTab) Busy() bool {
	return t.acting.Active("ask")
}

// Last returns the most recent answer, or nil.
func (t *RAGTab) Last() *Answer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

// Search runs a plain retrieval query without the research agents.
func (t *RAGTab) Search(ctx context.Context, query, filename string, limit int) (json.RawMessage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	raw, err := t.api.Search(ctx, apiclient.SearchRequest{Query: query, Filename: filename, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return raw, nil
}

// SaveAsNote stores the last answer as a project note titled after its
// question.
func (t *RAGTab) SaveAsNote(ctx context.Context) (*apiclient.Note, error) {
	ans := t.Last()
	if ans == nil || ans.Text == "" {
		return nil, ErrNoAnswer
	}
	note, err := t.api.CreateNote(ctx, t.projectID, apiclient.NoteInput{
		Title: NoteTitle(ans.Query),
		Body:  ans.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("save answer: %w", err)
	}
	return note, nil
}

// NoteTitle is the first NoteTitleLimit characters of query, or
// DefaultQuestionTitle when it is blank.
func NoteTitle(query string) string {
	runes := []rune(strings.TrimSpace(query))
	if len(runes) == 0 {
		return DefaultQuestionTitle
	}
	if len(runes) > NoteTitleLimit {
		runes = runes[:NoteTitleLimit]
	}
	return string(runes)
}
