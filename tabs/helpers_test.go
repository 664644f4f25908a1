package tabs_test

import (
	"testing"

	"github.com/c360studio/maneger/apiclient"
	"github.com/c360studio/maneger/apiclient/apitest"
)

type env struct {
	srv     *apitest.Server
	client  *apiclient.Client
	project apiclient.Project
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("owner", "pw")
	p := srv.AddProject("owner", "Apollo", "")
	return &env{srv: srv, client: srv.Client(srv.Token("owner")), project: p}
}

type countingConfirmer struct {
	answer  bool
	prompts []string
}

func (c *countingConfirmer) Confirm(prompt string) bool {
	c.prompts = append(c.prompts, prompt)
	return c.answer
}
