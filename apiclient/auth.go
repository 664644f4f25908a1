package apiclient

import (
	"context"
	"net/http"
	"strings"
)

// Login exchanges credentials for a token and the user's identity.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	var out AuthResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/auth/login",
		path:   "/api/auth/login",
		body: map[string]string{
			"username": strings.TrimSpace(username),
			"password": password,
		},
		out: &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Signup registers an account and returns its token and identity.
func (c *Client) Signup(ctx context.Context, req SignupRequest) (*AuthResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	var out AuthResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		route:  "/api/auth/signup",
		path:   "/api/auth/signup",
		body:   req,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the identity bound to the current token.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	err := c.do(ctx, call{
		method: http.MethodGet,
		route:  "/api/auth/me",
		path:   "/api/auth/me",
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
