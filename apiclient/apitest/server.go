// Package apitest provides an in-memory implementation of the maneger REST
// API for tests. It enforces the server-side rules the client relies on
// (ownership, membership, token validity) and counts calls per route so tests
// can assert how many requests a workflow issued.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/c360studio/maneger/apiclient"
)

// Route patterns, usable with Calls, Fail and Hold.
const (
	RouteLogin         = "POST /api/auth/login"
	RouteSignup        = "POST /api/auth/signup"
	RouteMe            = "GET /api/auth/me"
	RouteUsers         = "GET /api/users"
	RouteProjects      = "GET /api/projects"
	RouteCreateProject = "POST /api/projects"
	RouteProject       = "GET /api/projects/{id}"
	RouteUpdateProject = "PATCH /api/projects/{id}"
	RouteDeleteProject = "DELETE /api/projects/{id}"
	RouteAccess        = "GET /api/projects/{id}/access"
	RouteRequestJoin   = "POST /api/projects/{id}/request"
	RouteRequests      = "GET /api/projects/{id}/requests"
	RouteApprove       = "POST /api/projects/{id}/requests/{rid}/approve"
	RouteReject        = "POST /api/projects/{id}/requests/{rid}/reject"
	RouteMembers       = "GET /api/projects/{id}/members"
	RouteAddMember     = "POST /api/projects/{id}/members"
	RouteRemoveMember  = "DELETE /api/projects/{id}/members/{uid}"
	RouteRAGHealth     = "GET /api/rag/health"
	RouteRAGSession    = "POST /api/rag/research/session"
	RouteRAGRun        = "POST /api/rag/research/run"
	RouteRAGSearch     = "POST /api/rag/search"
)

// ListRoute returns the pattern for listing a collection (tasks, milestones,
// notes, documents, files, chat).
func ListRoute(coll string) string { return "GET /api/projects/{id}/" + coll }

// CreateRoute returns the pattern for creating in a collection.
func CreateRoute(coll string) string { return "POST /api/projects/{id}/" + coll }

// UpdateRoute returns the pattern for patching a collection item.
func UpdateRoute(coll string) string { return "PATCH /api/projects/{id}/" + coll + "/{item}" }

// DeleteRoute returns the pattern for deleting a collection item.
func DeleteRoute(coll string) string { return "DELETE /api/projects/{id}/" + coll + "/{item}" }

// collections served under /api/projects/{id}/..., with their envelope keys.
var collections = map[string]string{
	"tasks":      "tasks",
	"milestones": "milestones",
	"notes":      "notes",
	"documents":  "documents",
	"files":      "files",
	"chat":       "messages",
}

type account struct {
	user     apiclient.User
	password string
}

type project struct {
	info     apiclient.Project
	members  []apiclient.Member
	requests []apiclient.JoinRequest
	colls    map[string][]map[string]any
}

type hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Server is a running fake API.
type Server struct {
	URL string

	srv *httptest.Server

	mu          sync.Mutex
	nextID      int
	users       map[string]*account
	tokens      map[string]string
	projects    []*project
	calls       map[string]int
	failures    map[string]int
	holds       map[string]*hold
	ragHealthy  bool
	ragOutputs  map[string]any
	lastRequest apiclient.ResearchRequest
}

// New starts a fake API and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		users:      make(map[string]*account),
		tokens:     make(map[string]string),
		calls:      make(map[string]int),
		failures:   make(map[string]int),
		holds:      make(map[string]*hold),
		ragHealthy: true,
	}
	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close stops the server, releasing any held routes first.
func (s *Server) Close() {
	s.mu.Lock()
	for _, h := range s.holds {
		h.once.Do(func() { close(h.release) })
	}
	s.mu.Unlock()
	s.srv.Close()
}

// Client returns an apiclient for this server authenticated with token.
func (s *Server) Client(token string, opts ...apiclient.Option) *apiclient.Client {
	opts = append([]apiclient.Option{apiclient.WithTokenSource(apiclient.StaticToken(token))}, opts...)
	return apiclient.New(s.URL, opts...)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.handle(mux, RouteLogin, false, s.handleLogin)
	s.handle(mux, RouteSignup, false, s.handleSignup)
	s.handle(mux, RouteMe, true, s.handleMe)
	s.handle(mux, RouteUsers, true, s.handleUsers)

	s.handle(mux, RouteProjects, true, s.handleListProjects)
	s.handle(mux, RouteCreateProject, true, s.handleCreateProject)
	s.handle(mux, RouteProject, true, s.handleGetProject)
	s.handle(mux, RouteUpdateProject, true, s.handleUpdateProject)
	s.handle(mux, RouteDeleteProject, true, s.handleDeleteProject)
	s.handle(mux, RouteAccess, true, s.handleAccess)

	s.handle(mux, RouteRequestJoin, true, s.handleRequestJoin)
	s.handle(mux, RouteRequests, true, s.handleListRequests)
	s.handle(mux, RouteApprove, true, s.handleApprove)
	s.handle(mux, RouteReject, true, s.handleReject)
	s.handle(mux, RouteMembers, true, s.handleListMembers)
	s.handle(mux, RouteAddMember, true, s.handleAddMember)
	s.handle(mux, RouteRemoveMember, true, s.handleRemoveMember)

	for coll := range collections {
		coll := coll
		s.handle(mux, ListRoute(coll), true, func(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
			s.handleListItems(w, r, u, coll)
		})
		s.handle(mux, CreateRoute(coll), true, func(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
			s.handleCreateItem(w, r, u, coll)
		})
		s.handle(mux, UpdateRoute(coll), true, func(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
			s.handleUpdateItem(w, r, u, coll)
		})
		s.handle(mux, DeleteRoute(coll), true, func(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
			s.handleDeleteItem(w, r, u, coll)
		})
	}

	s.handle(mux, RouteRAGHealth, true, s.handleRAGHealth)
	s.handle(mux, RouteRAGSession, true, s.handleRAGSession)
	s.handle(mux, RouteRAGRun, true, s.handleRAGRun)
	s.handle(mux, RouteRAGSearch, true, s.handleRAGSearch)

	return mux
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, u *apiclient.User)

// handle registers pattern with call counting, forced failures, holds and
// bearer authentication.
func (s *Server) handle(mux *http.ServeMux, pattern string, auth bool, h handlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[pattern]++
		hd := s.holds[pattern]
		s.mu.Unlock()

		if hd != nil {
			select {
			case hd.entered <- struct{}{}:
			default:
			}
			<-hd.release
		}

		s.mu.Lock()
		defer s.mu.Unlock()

		if status, ok := s.failures[pattern]; ok {
			writeError(w, status, "forced failure")
			return
		}

		var user *apiclient.User
		if auth {
			user = s.authenticate(r)
			if user == nil {
				writeError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
		}
		h(w, r, user)
	})
}

func (s *Server) authenticate(r *http.Request) *apiclient.User {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil
	}
	username, ok := s.tokens[token]
	if !ok {
		return nil
	}
	acc, ok := s.users[username]
	if !ok {
		return nil
	}
	u := acc.user
	return &u
}

// Test setup and inspection helpers.

// AddUser registers an account directly.
func (s *Server) AddUser(username, password string) apiclient.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, password, "")
}

func (s *Server) addUserLocked(username, password, email string) apiclient.User {
	u := apiclient.User{ID: s.newID(), Username: username, Email: email}
	s.users[username] = &account{user: u, password: password}
	return u
}

// Token issues a fresh token for username.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokenLocked(username)
}

func (s *Server) issueTokenLocked(username string) string {
	token := "token-" + username + "-" + string(s.newID())
	s.tokens[token] = username
	return token
}

// RevokeTokens invalidates every token of username.
func (s *Server) RevokeTokens(username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, owner := range s.tokens {
		if owner == username {
			delete(s.tokens, token)
		}
	}
}

// AddProject creates a project owned by ownerUsername.
func (s *Server) AddProject(ownerUsername, name, description string) apiclient.Project {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner := s.users[ownerUsername].user
	return s.addProjectLocked(owner, name, description).info
}

func (s *Server) addProjectLocked(owner apiclient.User, name, description string) *project {
	p := &project{
		info: apiclient.Project{ID: s.newID(), Name: name, Description: description, OwnerID: owner.ID},
		members: []apiclient.Member{
			{UserID: owner.ID, Username: owner.Username, Role: apiclient.RoleOwner},
		},
		colls: make(map[string][]map[string]any),
	}
	s.projects = append(s.projects, p)
	return p
}

// AddMember makes username a member of the project.
func (s *Server) AddMember(projectID apiclient.ID, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findProject(projectID)
	u := s.users[username].user
	p.members = append(p.members, apiclient.Member{UserID: u.ID, Username: u.Username, Role: apiclient.RoleMember})
}

// AddRequest files a pending join request for username.
func (s *Server) AddRequest(projectID apiclient.ID, username string) apiclient.JoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findProject(projectID)
	return s.addRequestLocked(p, s.users[username].user)
}

func (s *Server) addRequestLocked(p *project, u apiclient.User) apiclient.JoinRequest {
	req := apiclient.JoinRequest{ID: s.newID(), UserID: u.ID, Username: u.Username, ProjectID: p.info.ID}
	p.requests = append(p.requests, req)
	return req
}

// Seed inserts an item into a project collection and returns its id.
func (s *Server) Seed(projectID apiclient.ID, coll string, item map[string]any) apiclient.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findProject(projectID)
	copied := make(map[string]any, len(item)+1)
	for k, v := range item {
		copied[k] = v
	}
	id := s.newID()
	copied["id"] = string(id)
	p.colls[coll] = append(p.colls[coll], copied)
	return id
}

// Items returns a copy of a project collection.
func (s *Server) Items(projectID apiclient.ID, coll string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.findProject(projectID)
	out := make([]map[string]any, 0, len(p.colls[coll]))
	for _, item := range p.colls[coll] {
		c := make(map[string]any, len(item))
		for k, v := range item {
			c[k] = v
		}
		out = append(out, c)
	}
	return out
}

// Members returns the project's members, owner first.
func (s *Server) Members(projectID apiclient.ID) []apiclient.Member {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apiclient.Member(nil), s.findProject(projectID).members...)
}

// Requests returns the project's pending join requests.
func (s *Server) Requests(projectID apiclient.ID) []apiclient.JoinRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]apiclient.JoinRequest(nil), s.findProject(projectID).requests...)
}

// Calls returns how many times a route pattern was hit.
func (s *Server) Calls(pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[pattern]
}

// Fail makes every call to pattern answer with status until Recover.
func (s *Server) Fail(pattern string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[pattern] = status
}

// Recover removes a forced failure.
func (s *Server) Recover(pattern string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failures, pattern)
}

// Hold parks calls to pattern until release is called. entered receives one
// value each time a call is parked.
func (s *Server) Hold(pattern string) (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}, 16), release: make(chan struct{})}
	s.mu.Lock()
	s.holds[pattern] = h
	s.mu.Unlock()
	return h.entered, func() {
		s.mu.Lock()
		delete(s.holds, pattern)
		s.mu.Unlock()
		h.once.Do(func() { close(h.release) })
	}
}

// SetRAGHealthy controls the health check answer.
func (s *Server) SetRAGHealthy(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ragHealthy = ok
}

// SetRAGOutputs replaces the outputs object returned by research runs.
func (s *Server) SetRAGOutputs(outputs map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ragOutputs = outputs
}

// LastResearch returns the body of the most recent research run.
func (s *Server) LastResearch() apiclient.ResearchRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequest
}

// Internal helpers; callers hold s.mu.

func (s *Server) newID() apiclient.ID {
	s.nextID++
	return apiclient.ID(strconv.Itoa(s.nextID))
}

func (s *Server) findProject(id apiclient.ID) *project {
	for _, p := range s.projects {
		if p.info.ID == id {
			return p
		}
	}
	return nil
}

func (p *project) roleOf(userID apiclient.ID) apiclient.Role {
	for _, m := range p.members {
		if m.UserID == userID {
			return m.Role
		}
	}
	return ""
}

func (p *project) hasPending(userID apiclient.ID) bool {
	for _, r := range p.requests {
		if r.UserID == userID {
			return true
		}
	}
	return false
}

// projectFor resolves {id} and writes 404 when it is unknown.
func (s *Server) projectFor(w http.ResponseWriter, r *http.Request) *project {
	p := s.findProject(apiclient.ID(r.PathValue("id")))
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found")
	}
	return p
}

// memberProject resolves {id} and requires the caller to be owner or member.
func (s *Server) memberProject(w http.ResponseWriter, r *http.Request, u *apiclient.User) *project {
	p := s.projectFor(w, r)
	if p == nil {
		return nil
	}
	if p.roleOf(u.ID) == "" {
		writeError(w, http.StatusForbidden, "no access to this project")
		return nil
	}
	return p
}

// ownedProject resolves {id} and requires the caller to be the owner.
func (s *Server) ownedProject(w http.ResponseWriter, r *http.Request, u *apiclient.User) *project {
	p := s.projectFor(w, r)
	if p == nil {
		return nil
	}
	if p.roleOf(u.ID) != apiclient.RoleOwner {
		writeError(w, http.StatusForbidden, "only the project owner can do this")
		return nil
	}
	return p
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func sortedUsers(users map[string]*account) []apiclient.User {
	out := make([]apiclient.User, 0, len(users))
	for _, acc := range users {
		out = append(out, acc.user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}
