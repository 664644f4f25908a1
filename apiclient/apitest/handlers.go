package apitest

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/c360studio/maneger/apiclient"
)

// Auth

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request, _ *apiclient.User) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}
	acc, ok := s.users[req.Username]
	if !ok || acc.password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid username or password")
		return
	}
	u := acc.user
	writeJSON(w, http.StatusOK, apiclient.AuthResponse{AccessToken: s.issueTokenLocked(req.Username), User: &u})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request, _ *apiclient.User) {
	var req apiclient.SignupRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password required")
		return
	}
	if _, exists := s.users[req.Username]; exists {
		writeError(w, http.StatusConflict, "username already taken")
		return
	}
	u := s.addUserLocked(req.Username, req.Password, req.Email)
	u.FullName = req.FullName
	s.users[req.Username].user = u
	writeJSON(w, http.StatusCreated, apiclient.AuthResponse{AccessToken: s.issueTokenLocked(req.Username), User: &u})
}

func (s *Server) handleMe(w http.ResponseWriter, _ *http.Request, u *apiclient.User) {
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, _ *apiclient.User) {
	all := sortedUsers(s.users)
	pid := r.URL.Query().Get("projectId")
	if pid == "" {
		writeJSON(w, http.StatusOK, map[string]any{"users": all})
		return
	}
	p := s.findProject(apiclient.ID(pid))
	if p == nil {
		writeError(w, http.StatusNotFound, "project not found")
		return
	}
	addable := make([]apiclient.User, 0, len(all))
	for _, u := range all {
		if p.roleOf(u.ID) == "" {
			addable = append(addable, u)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": addable})
}

// Projects

func (s *Server) handleListProjects(w http.ResponseWriter, _ *http.Request, _ *apiclient.User) {
	out := make([]apiclient.Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.info)
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": out})
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name required")
		return
	}
	desc := ""
	if req.Description != nil {
		desc = *req.Description
	}
	p := s.addProjectLocked(*u, req.Name, desc)
	writeJSON(w, http.StatusCreated, p.info)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.memberProject(w, r, u)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, p.info)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.ownedProject(w, r, u)
	if p == nil {
		return
	}
	var req struct {
		Name        string  `json:"name"`
		Description *string `json:"description"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Name != "" {
		p.info.Name = req.Name
	}
	p.info.Description = ""
	if req.Description != nil {
		p.info.Description = *req.Description
	}
	writeJSON(w, http.StatusOK, p.info)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.ownedProject(w, r, u)
	if p == nil {
		return
	}
	for i, candidate := range s.projects {
		if candidate == p {
			s.projects = append(s.projects[:i], s.projects[i+1:]...)
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.projectFor(w, r)
	if p == nil {
		return
	}
	role := p.roleOf(u.ID)
	writeJSON(w, http.StatusOK, apiclient.Access{
		CanAccess:         role != "",
		Role:              role,
		HasPendingRequest: role == "" && p.hasPending(u.ID),
	})
}

// Membership

// handleRequestJoin deliberately files a new request on every call so tests
// can observe duplicate submissions.
func (s *Server) handleRequestJoin(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.projectFor(w, r)
	if p == nil {
		return
	}
	if p.roleOf(u.ID) != "" {
		writeError(w, http.StatusBadRequest, "already a member of this project")
		return
	}
	req := s.addRequestLocked(p, *u)
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.ownedProject(w, r, u)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": append([]apiclient.JoinRequest{}, p.requests...)})
}

func (s *Server) takeRequest(w http.ResponseWriter, r *http.Request, p *project) (apiclient.JoinRequest, bool) {
	rid := apiclient.ID(r.PathValue("rid"))
	for i, req := range p.requests {
		if req.ID == rid {
			p.requests = append(p.requests[:i], p.requests[i+1:]...)
			return req, true
		}
	}
	writeError(w, http.StatusNotFound, "request not found")
	return apiclient.JoinRequest{}, false
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.ownedProject(w, r, u)
	if p == nil {
		return
	}
	req, ok := s.takeRequest(w, r, p)
	if !ok {
		return
	}
	// Drop any duplicate requests from the same user.
	kept := p.requests[:0]
	for _, other := range p.requests {
		if other.UserID != req.UserID {
			kept = append(kept, other)
		}
	}
	p.requests = kept
	if p.roleOf(req.UserID) == "" {
		p.members = append(p.members, apiclient.Member{UserID: req.UserID, Username: req.Username, Role: apiclient.RoleMember})
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.ownedProject(w, r, u)
	if p == nil {
		return
	}
	if _, ok := s.takeRequest(w, r, p); !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.memberProject(w, r, u)
	if p == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": append([]apiclient.Member{}, p.members...)})
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.ownedProject(w, r, u)
	if p == nil {
		return
	}
	var req struct {
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	acc, ok := s.users[req.Username]
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if p.roleOf(acc.user.ID) != "" {
		writeError(w, http.StatusConflict, "user is already a member")
		return
	}
	m := apiclient.Member{UserID: acc.user.ID, Username: acc.user.Username, Role: apiclient.RoleMember}
	p.members = append(p.members, m)
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request, u *apiclient.User) {
	p := s.ownedProject(w, r, u)
	if p == nil {
		return
	}
	uid := apiclient.ID(r.PathValue("uid"))
	for i, m := range p.members {
		if m.UserID != uid {
			continue
		}
		if m.Role == apiclient.RoleOwner {
			writeError(w, http.StatusBadRequest, "the project owner cannot be removed")
			return
		}
		p.members = append(p.members[:i], p.members[i+1:]...)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		return
	}
	writeError(w, http.StatusNotFound, "member not found")
}

// Collections

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request, u *apiclient.User, coll string) {
	p := s.memberProject(w, r, u)
	if p == nil {
		return
	}
	items := p.colls[coll]
	if items == nil {
		items = []map[string]any{}
	}
	writeJSON(w, http.StatusOK, map[string]any{collections[coll]: items})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request, u *apiclient.User, coll string) {
	p := s.memberProject(w, r, u)
	if p == nil {
		return
	}
	var item map[string]any
	if coll == "files" {
		item = s.readUpload(w, r)
		if item == nil {
			return
		}
	} else if !decode(w, r, &item) {
		return
	}
	switch coll {
	case "tasks":
		if _, ok := item["status"]; !ok {
			item["status"] = string(apiclient.StatusTodo)
		}
		if _, ok := item["priority"]; !ok {
			item["priority"] = string(apiclient.PriorityMedium)
		}
	case "chat":
		item["username"] = u.Username
		item["created_at"] = now()
	}
	if title, ok := item["title"]; ok && coll != "files" && coll != "chat" {
		if text, _ := title.(string); strings.TrimSpace(text) == "" {
			writeError(w, http.StatusBadRequest, "title required")
			return
		}
	}
	item["id"] = string(s.newID())
	p.colls[coll] = append(p.colls[coll], item)
	writeJSON(w, http.StatusCreated, item)
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) map[string]any {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "multipart form required")
		return nil
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file part required")
		return nil
	}
	defer file.Close()
	name := r.FormValue("originalName")
	if name == "" {
		name = header.Filename
	}
	return map[string]any{"original_name": name, "size": header.Size}
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request, u *apiclient.User, coll string) {
	p := s.memberProject(w, r, u)
	if p == nil {
		return
	}
	var patch map[string]json.RawMessage
	if !decode(w, r, &patch) {
		return
	}
	id := r.PathValue("item")
	for _, item := range p.colls[coll] {
		if item["id"] != id {
			continue
		}
		for k, raw := range patch {
			if k == "id" {
				continue
			}
			var v any
			if err := json.Unmarshal(raw, &v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid field "+k)
				return
			}
			if v == nil {
				delete(item, k)
			} else {
				item[k] = v
			}
		}
		writeJSON(w, http.StatusOK, item)
		return
	}
	writeError(w, http.StatusNotFound, "item not found")
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, u *apiclient.User, coll string) {
	p := s.memberProject(w, r, u)
	if p == nil {
		return
	}
	id := r.PathValue("item")
	items := p.colls[coll]
	for i, item := range items {
		if item["id"] == id {
			p.colls[coll] = append(items[:i], items[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, "item not found")
}

// RAG

func (s *Server) handleRAGHealth(w http.ResponseWriter, _ *http.Request, _ *apiclient.User) {
	writeJSON(w, http.StatusOK, apiclient.RAGHealth{OK: s.ragHealthy})
}

func (s *Server) handleRAGSession(w http.ResponseWriter, _ *http.Request, _ *apiclient.User) {
	writeJSON(w, http.StatusOK, apiclient.ResearchSession{SessionID: "session-" + string(s.newID())})
}

func (s *Server) handleRAGRun(w http.ResponseWriter, r *http.Request, _ *apiclient.User) {
	var req apiclient.ResearchRequest
	if !decode(w, r, &req) {
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}
	s.lastRequest = req
	outputs := s.ragOutputs
	if outputs == nil {
		outputs = map[string]any{"synthesis": "answer: " + req.Query}
	}
	writeJSON(w, http.StatusOK, map[string]any{"session_id": req.SessionID, "outputs": outputs})
}

func (s *Server) handleRAGSearch(w http.ResponseWriter, r *http.Request, _ *apiclient.User) {
	var req apiclient.SearchRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": []map[string]string{{"text": "match for " + req.Query}}})
}
