package tabs

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/c360studio/maneger/apiclient"
)

// ErrEmptyMessage is returned when sending a blank chat message.
var ErrEmptyMessage = errors.New("message is empty")

// ChatAPI is the project chat.
type ChatAPI interface {
	ListChat(ctx context.Context, projectID apiclient.ID) ([]apiclient.ChatMessage, error)
	SendChat(ctx context.Context, projectID apiclient.ID, body string) (*apiclient.ChatMessage, error)
}

// ChatTab is the project chat. Messages cannot be edited or deleted.
type ChatTab struct {
	*Tab[apiclient.ChatMessage, string, struct{}]
}

// NewChatTab creates the chat tab of a project.
func NewChatTab(api ChatAPI, projectID apiclient.ID, logger *slog.Logger) *ChatTab {
	return &ChatTab{
		Tab: NewTab(projectID, Ops[apiclient.ChatMessage, string, struct{}]{
			Noun:   "message",
			List:   api.ListChat,
			Create: api.SendChat,
			ID:     func(m apiclient.ChatMessage) apiclient.ID { return m.ID },
			Fields: func(m apiclient.ChatMessage) []string { return []string{m.Username, m.Body} },
		}, logger),
	}
}

// Send posts a message, then reloads.
func (t *ChatTab) Send(ctx context.Context, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return ErrEmptyMessage
	}
	return t.Create(ctx, body)
}

// Since returns the loaded messages after the one with id. An unknown or
// empty id returns everything.
func (t *ChatTab) Since(id apiclient.ID) []apiclient.ChatMessage {
	items := t.Items()
	for i, m := range items {
		if m.ID == id {
			return items[i+1:]
		}
	}
	return items
}
