package main

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/apiclient/apitest"
	"github.com/c360studio/maneger/config"
	"github.com/c360studio/maneger/membership"
	"github.com/c360studio/maneger/tabs"
)

type cli struct {
	t    *testing.T
	srv  *apitest.Server
	home string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(config.EnvAPIURL, "")

	srv := apitest.New(t)
	srv.AddUser("owner", "secret")
	srv.AddUser("alice", "wonder")
	return &cli{t: t, srv: srv, home: home}
}

// run executes one command line and returns what it printed on stdout.
func (c *cli) run(stdin string, args ...string) (string, error) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd(streams{in: strings.NewReader(stdin), out: &out, errOut: &errOut})
	cmd.SetArgs(append([]string{"--api-url", c.srv.URL}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run("", args...)
	require.NoError(c.t, err, "maneger %s", strings.Join(args, " "))
	return out
}

func (c *cli) login(username, password string) {
	c.t.Helper()
	c.mustRun("login", "-u", username, "-p", password)
}

func (c *cli) sessionPath() string {
	return filepath.Join(c.home, config.UserConfigDir, config.SessionFile)
}

func TestLoginStoresSession(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("login", "-u", "owner", "-p", "secret")
	assert.Contains(t, out, "Signed in as owner")

	info, err := os.Stat(c.sessionPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	assert.Equal(t, "owner\n", c.mustRun("whoami"))
}

func TestLoginReadsMissingCredentialsFromStdin(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("alice\nwonder\n", "login")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as alice")
}

func TestLoginRejected(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "login", "-u", "owner", "-p", "wrong")
	require.Error(t, err)
	assert.True(t, apiclient.IsUnauthorized(err))
	assert.Equal(t, "invalid username or password", userMessage(err))

	_, statErr := os.Stat(c.sessionPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestSignup(t *testing.T) {
	c := newCLI(t)

	out := c.mustRun("signup", "-u", "bob", "--email", "bob@example.com", "-p", "pw", "--name", "Bob B")
	assert.Contains(t, out, "signed in as bob")
	assert.Equal(t, "bob (Bob B)\n", c.mustRun("whoami"))
}

func TestWhoamiRequiresSession(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestRevokedSessionIsCleared(t *testing.T) {
	c := newCLI(t)
	c.login("alice", "wonder")
	c.srv.RevokeTokens("alice")

	_, err := c.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)

	_, statErr := os.Stat(c.sessionPath())
	assert.True(t, os.IsNotExist(statErr))
}

func TestLogout(t *testing.T) {
	c := newCLI(t)
	c.login("owner", "secret")

	assert.Contains(t, c.mustRun("logout"), "Signed out")
	_, err := c.run("", "whoami")
	assert.ErrorIs(t, err, errNotSignedIn)
}

func TestProjectsLifecycle(t *testing.T) {
	c := newCLI(t)
	c.login("owner", "secret")

	out := c.mustRun("projects", "create", "Apollo", "-d", "Moon shot")
	assert.Contains(t, out, "Created project Apollo")

	out = c.mustRun("projects", "list")
	assert.Contains(t, out, "Apollo")
	assert.Contains(t, out, "Moon shot")

	var id string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Apollo") {
			id = strings.Fields(line)[0]
		}
	}
	require.NotEmpty(t, id)

	c.mustRun("projects", "update", id, "--name", "Artemis")
	assert.Contains(t, c.mustRun("open", id), "Artemis: owner")

	_, err := c.run("n\n", "projects", "delete", id)
	assert.ErrorIs(t, err, tabs.ErrNotConfirmed)

	c.mustRun("--yes", "projects", "delete", id)
	assert.Contains(t, c.mustRun("projects", "list"), "No projects.")
}

func TestNonMemberRequestsAccessOnce(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("alice", "wonder")

	_, err := c.run("", "tasks", "list", p.ID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no access to Apollo")
	assert.Zero(t, c.srv.Calls(apitest.ListRoute("tasks")))

	assert.Contains(t, c.mustRun("request", p.ID.String()), "Request sent")
	assert.Contains(t, c.mustRun("request", p.ID.String()), "pending")
	assert.Len(t, c.srv.Requests(p.ID), 1)

	_, err = c.run("", "open", p.ID.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending")
}

func TestOwnerApprovesRequest(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	req := c.srv.AddRequest(p.ID, "alice")
	c.login("owner", "secret")

	assert.Contains(t, c.mustRun("requests", "list", p.ID.String()), "alice")
	assert.Contains(t, c.mustRun("requests", "approve", p.ID.String(), req.ID.String()), "approved")
	assert.Empty(t, c.srv.Requests(p.ID))

	out := c.mustRun("members", "list", p.ID.String())
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "member")
}

func TestMemberCannotReviewRequests(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.srv.AddMember(p.ID, "alice")
	c.login("alice", "wonder")

	_, err := c.run("", "requests", "list", p.ID.String())
	assert.ErrorIs(t, err, membership.ErrNotOwner)
}

func TestMembersAddAndRemove(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")

	out := c.mustRun("members", "list", p.ID.String())
	assert.Contains(t, out, "Can be added: alice")

	c.mustRun("members", "add", p.ID.String(), "  alice ")
	members := c.srv.Members(p.ID)
	require.Len(t, members, 2)

	_, err := c.run("", "members", "add", p.ID.String(), "nobody")
	assert.ErrorIs(t, err, membership.ErrUserNotFound)

	var aliceID string
	for _, m := range members {
		if m.Username == "alice" {
			aliceID = m.UserID.String()
		}
	}
	c.mustRun("-y", "members", "remove", p.ID.String(), aliceID)
	assert.Len(t, c.srv.Members(p.ID), 1)
}

func TestMembersRemoveRefusedBeforeConfirm(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.srv.AddMember(p.ID, "alice")
	c.login("owner", "secret")

	var ownerID, aliceID string
	for _, m := range c.srv.Members(p.ID) {
		switch m.Username {
		case "owner":
			ownerID = m.UserID.String()
		case "alice":
			aliceID = m.UserID.String()
		}
	}
	require.NotEmpty(t, ownerID)

	// No answer on stdin: a prompt would end in ErrNotConfirmed.
	_, err := c.run("", "members", "remove", p.ID.String(), ownerID)
	require.ErrorIs(t, err, membership.ErrCannotRemove)
	assert.NotErrorIs(t, err, tabs.ErrNotConfirmed)

	_, err = c.run("", "members", "remove", p.ID.String(), "999999")
	require.ErrorIs(t, err, membership.ErrNoSuchMember)

	_, err = c.run("", "members", "remove", p.ID.String(), aliceID)
	require.ErrorIs(t, err, tabs.ErrNotConfirmed)
	assert.Len(t, c.srv.Members(p.ID), 2)

	_, err = c.run("y\n", "members", "remove", p.ID.String(), aliceID)
	require.NoError(t, err)
	assert.Len(t, c.srv.Members(p.ID), 1)
}

func TestRequestsApproveReportsStaleReload(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	req := c.srv.AddRequest(p.ID, "alice")
	c.login("owner", "secret")

	// The listing is loaded before the approve; fail only what follows.
	entered, release := c.srv.Hold(apitest.RouteApprove)
	done := make(chan error, 1)
	var out string
	go func() {
		var err error
		out, err = c.run("", "requests", "approve", p.ID.String(), req.ID.String())
		done <- err
	}()
	<-entered
	c.srv.Fail(apitest.RouteMembers, http.StatusInternalServerError)
	release()

	require.NoError(t, <-done)
	assert.Contains(t, out, "approved")
	assert.Contains(t, usernamesOf(c.srv.Members(p.ID)), "alice")
}

func usernamesOf(members []apiclient.Member) []string {
	out := make([]string, len(members))
	for i, m := range members {
		out[i] = m.Username
	}
	return out
}

func TestTasksBoard(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")
	pid := p.ID.String()

	c.mustRun("tasks", "add", pid, "Write docs", "--priority", "high")
	items := c.srv.Items(p.ID, "tasks")
	require.Len(t, items, 1)
	assert.Equal(t, "todo", items[0]["status"])
	assert.Equal(t, "high", items[0]["priority"])

	taskID := items[0]["id"].(string)
	c.mustRun("tasks", "move", pid, taskID, "in_review")
	assert.Equal(t, "in_review", c.srv.Items(p.ID, "tasks")[0]["status"])

	out := c.mustRun("tasks", "list", pid)
	assert.Contains(t, out, "in_review (1)")
	assert.Contains(t, out, "todo (0)")
	assert.Contains(t, out, "Write docs")

	out = c.mustRun("tasks", "list", pid, "--search", "nothing")
	assert.NotContains(t, out, "Write docs")

	_, err := c.run("", "tasks", "move", pid, taskID, "blocked")
	assert.Error(t, err)

	c.mustRun("-y", "tasks", "delete", pid, taskID)
	assert.Empty(t, c.srv.Items(p.ID, "tasks"))
}

func TestMilestonesToggle(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")
	pid := p.ID.String()

	c.mustRun("milestones", "add", pid, "Launch", "--due", "2030-01-01")
	id := c.srv.Items(p.ID, "milestones")[0]["id"].(string)

	assert.Contains(t, c.mustRun("milestones", "toggle", pid, id), "completed")
	assert.NotNil(t, c.srv.Items(p.ID, "milestones")[0]["completed_at"])
	assert.Contains(t, c.mustRun("milestones", "list", pid), "[x]")

	assert.Contains(t, c.mustRun("milestones", "toggle", pid, id), "reopened")
	assert.NotContains(t, c.srv.Items(p.ID, "milestones")[0], "completed_at")
}

func TestNotesAndDocuments(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")
	pid := p.ID.String()

	c.mustRun("notes", "add", pid, "--body", "remember the milk")
	notes := c.srv.Items(p.ID, "notes")
	require.Len(t, notes, 1)
	assert.Equal(t, tabs.UntitledNote, notes[0]["title"])

	c.mustRun("notes", "edit", pid, notes[0]["id"].(string), "--title", "Groceries")
	assert.Equal(t, "Groceries", c.srv.Items(p.ID, "notes")[0]["title"])
	assert.Equal(t, "remember the milk", c.srv.Items(p.ID, "notes")[0]["body"])

	page := filepath.Join(t.TempDir(), "guide.html")
	require.NoError(t, os.WriteFile(page, []byte(`<html><head><title>Field Guide</title></head>
<body><main><h1>Field Guide</h1><p>Some <strong>bold</strong> text.</p></main></body></html>`), 0644))
	c.mustRun("docs", "import", pid, page)

	docs := c.srv.Items(p.ID, "documents")
	require.Len(t, docs, 1)
	assert.Equal(t, "Field Guide", docs[0]["title"])
	assert.Contains(t, docs[0]["content"], "**bold**")

	_, err := c.run("", "docs", "add", pid, "   ")
	assert.ErrorIs(t, err, tabs.ErrEmptyTitle)
}

func TestFilesUpload(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")
	pid := p.ID.String()

	dir := t.TempDir()
	report := filepath.Join(dir, "report.pdf")
	require.NoError(t, os.WriteFile(report, []byte("%PDF-1.4"), 0644))
	binary := filepath.Join(dir, "tool.exe")
	require.NoError(t, os.WriteFile(binary, []byte("MZ"), 0644))

	_, err := c.run("", "files", "upload", pid, binary)
	assert.ErrorIs(t, err, tabs.ErrUnsupportedFile)

	c.mustRun("files", "upload", pid, "--glob", filepath.Join(dir, "**", "*"))
	files := c.srv.Items(p.ID, "files")
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0]["original_name"])

	assert.Contains(t, c.mustRun("files", "list", pid), "report.pdf")
}

func TestDashboardReportAndExport(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.srv.Seed(p.ID, "tasks", map[string]any{"title": "Ship", "status": "done", "priority": "high", "due_date": "2020-01-01"})
	c.srv.Seed(p.ID, "tasks", map[string]any{"title": "Write docs", "status": "todo", "priority": "low", "due_date": "2020-01-02"})
	c.srv.Seed(p.ID, "milestones", map[string]any{"title": "Launch", "due_date": "2099-01-01"})
	c.login("owner", "secret")

	dir := t.TempDir()
	out := c.mustRun("dashboard", p.ID.String(), "--export", dir)
	assert.Contains(t, out, "Progress: 50% (1/2 tasks done)")
	assert.Contains(t, out, "Overdue (1):")
	assert.Contains(t, out, "Write docs - 2020-01-02")
	assert.Contains(t, out, "Launch - 2099-01-01")

	data, err := os.ReadFile(filepath.Join(dir, "Apollo_summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[done] high Ship (2020-01-01)")
	assert.Contains(t, string(data), "[ ] Launch - 2099-01-01")
}

func TestDashboardDegradedPolicy(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")
	c.srv.Fail(apitest.ListRoute("files"), 500)

	_, err := c.run("", "dashboard", p.ID.String())
	require.Error(t, err)

	out := c.mustRun("dashboard", p.ID.String(), "--policy", "degrade")
	assert.Contains(t, out, "Unavailable:")
	assert.Contains(t, out, "files: the server failed to handle the request")
}

func TestRAGAskAndSave(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")

	assert.Equal(t, "RAG service: connected\n", c.mustRun("rag", "health"))

	out := c.mustRun("rag", "ask", p.ID.String(), "what is due?", "--save")
	assert.Contains(t, out, "answer: what is due?")
	assert.Contains(t, out, `Saved as note "what is due?"`)

	notes := c.srv.Items(p.ID, "notes")
	require.Len(t, notes, 1)
	assert.Equal(t, "answer: what is due?", notes[0]["body"])
	assert.True(t, c.srv.LastResearch().UseFourAgents)

	out = c.mustRun("rag", "search", p.ID.String(), "milk")
	assert.Contains(t, out, "match for milk")
}

func TestChatSendAndList(t *testing.T) {
	c := newCLI(t)
	p := c.srv.AddProject("owner", "Apollo", "")
	c.login("owner", "secret")

	c.mustRun("chat", "send", p.ID.String(), "hello", "team")
	assert.Contains(t, c.mustRun("chat", "list", p.ID.String()), "owner: hello team")

	_, err := c.run("", "chat", "send", p.ID.String(), "  ")
	assert.ErrorIs(t, err, tabs.ErrEmptyMessage)
}

func TestVersion(t *testing.T) {
	c := newCLI(t)
	assert.Contains(t, c.mustRun("version"), "maneger version "+Version)
}

func TestPromptConfirmer(t *testing.T) {
	var prompts bytes.Buffer
	c := &promptConfirmer{in: bufioReader("y\nno\n"), out: &prompts}
	assert.True(t, c.Confirm("Delete?"))
	assert.False(t, c.Confirm("Delete?"))
	assert.False(t, c.Confirm("Delete?"))
	assert.Equal(t, 3, strings.Count(prompts.String(), "Delete? [y/N]: "))

	yes := &promptConfirmer{in: bufioReader(""), out: &prompts, yes: true}
	assert.True(t, yes.Confirm("Delete?"))
}

func bufioReader(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}
