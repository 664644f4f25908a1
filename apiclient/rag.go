package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
)

// RAGHealth checks whether the research service is up.
func (c *Client) RAGHealth(ctx context.Context) (*RAGHealth, error) {
	var out RAGHealth
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/rag/health",
		path:   "/api/rag/health",
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// NewResearchSession opens a research session.
func (c *Client) NewResearchSession(ctx context.Context) (*ResearchSession, error) {
	var out ResearchSession
	err := c.do(ctx, call{
		method:  http.MethodPost,
		route:   "/api/rag/research/session",
		path:    "/api/rag/research/session",
		body:    struct{}{},
		out:     &out,
		timeout: c.timeouts.RAGSession,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RunResearch runs one query inside a session. The raw response is kept so
// callers can fall back to it when no agent output is present.
func (c *Client) RunResearch(ctx context.Context, req ResearchRequest) (*ResearchResult, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		method:  http.MethodPost,
		route:   "/api/rag/research/run",
		path:    "/api/rag/research/run",
		body:    req,
		out:     &raw,
		timeout: c.timeouts.RAGRun,
	})
	if err != nil {
		return nil, err
	}
	out := &ResearchResult{Raw: raw}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return nil, &Error{Kind: KindDecode, Status: http.StatusOK, Method: http.MethodPost, Path: "/api/rag/research/run", err: err}
		}
	}
	return out, nil
}

// Search runs a plain retrieval query and returns the raw result.
func (c *Client) Search(ctx context.Context, req SearchRequest) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/rag/search",
		path:   "/api/rag/search",
		body:   req,
		out:    &raw,
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}
