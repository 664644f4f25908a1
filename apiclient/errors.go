package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed API call.
type Kind int

// Error kinds.
const (
	// KindNetwork covers transport failures and timeouts.
	KindNetwork Kind = iota
	// KindUnauthorized is a 401; the session is no longer valid.
	KindUnauthorized
	// KindForbidden is a 403; the session stays, the action is refused.
	KindForbidden
	// KindNotFound is a 404.
	KindNotFound
	// KindValidation is any other 4xx, usually carrying a server message.
	KindValidation
	// KindServer is a 5xx.
	KindServer
	// KindDecode means the response body could not be decoded.
	KindDecode
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	case KindDecode:
		return "decode"
	default:
		return "unknown"
	}
}

// Error is the normalized form of every failed call.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Method  string
	Path    string
	err     error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		if e.Message != "" {
			return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, e.Message)
		}
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.Status)
	}
	if e.err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Method, e.Path, e.Kind, e.err)
	}
	return fmt.Sprintf("%s %s: %s", e.Method, e.Path, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.err
}

// kindForStatus maps an HTTP status (>= 400) to a Kind.
func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 500:
		return KindServer
	default:
		return KindValidation
	}
}

// KindOf returns the Kind of an API error, and false for any other error.
func KindOf(err error) (Kind, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind, true
	}
	return 0, false
}

// IsUnauthorized returns true if err is a 401 from the API.
func IsUnauthorized(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindUnauthorized
}

// IsForbidden returns true if err is a 403 from the API.
func IsForbidden(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindForbidden
}

// IsNotFound returns true if err is a 404 from the API.
func IsNotFound(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindNotFound
}

// Message returns the text to show a user for err: the server's own message
// for client errors, a generic line for server and transport failures.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	switch apiErr.Kind {
	case KindNetwork:
		return "could not reach the server"
	case KindServer:
		return "the server failed to handle the request"
	case KindDecode:
		return "the server sent an unreadable response"
	}
	if apiErr.Message != "" {
		return apiErr.Message
	}
	switch apiErr.Kind {
	case KindUnauthorized:
		return "session expired, please log in again"
	case KindForbidden:
		return "you do not have permission for this action"
	case KindNotFound:
		return "not found"
	}
	return http.StatusText(apiErr.Status)
}
