// Package store keeps the message history of chats, scoped by the tenant and
// chat IDs of the chat context.
package store

import (
	"context"
	"time"

	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mcpagent", "store")

// DefaultMaxMessages is the number of most recent messages kept per chat.
const DefaultMaxMessages = 50

// DefaultChatTitle is the title of a chat created on first use.
const DefaultChatTitle = "New Chat"

// MessageStore is the conversation memory of an assistant.
type MessageStore interface {
	// Messages returns the history of the chat in ctx.
	Messages(ctx context.Context) ([]llms.Message, error)
	// Add appends messages to the history of the chat in ctx.
	Add(ctx context.Context, msgs ...llms.Message) error
	// Reset deletes the chat in ctx.
	Reset(ctx context.Context) error
}

// MessageStoreManager manages chats of tenants.
type MessageStoreManager interface {
	MessageStore
	// UpdateChat creates or updates the chat in ctx.
	UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error)
	// GetChatInfo returns the chat by ID, or the chat in ctx when id is empty.
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
	// ListChats returns the chat IDs of the tenant in ctx.
	ListChats(ctx context.Context) ([]string, error)
	// ListTenants returns all tenants with chats.
	ListTenants(ctx context.Context) ([]string, error)
	// Cleanup deletes chats of the tenant not updated within olderThan.
	Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error)
}

// ChatInfo describes a chat.
type ChatInfo struct {
	TenantID  string         `json:"tenant_id"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Messages []llms.Message `json:"messages,omitempty"`
}

// Option configures a store.
type Option func(*options)

type options struct {
	maxMessages int
}

// WithMaxMessages sets the number of most recent messages kept per chat.
func WithMaxMessages(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxMessages = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{maxMessages: DefaultMaxMessages}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newChatInfo(tenantID, chatID string) *ChatInfo {
	now := time.Now()
	return &ChatInfo{
		TenantID:  tenantID,
		ChatID:    chatID,
		Title:     DefaultChatTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

func (c *ChatInfo) update(title string, metadata map[string]any) {
	if title != "" {
		c.Title = title
	}
	if len(metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any)
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
	c.UpdatedAt = time.Now()
}

// TrimHistory returns at most limit of the latest messages, starting at a
// human message so that no tool response is kept without its call.
// A zero limit keeps all messages.
func TrimHistory(msgs []llms.Message, limit int) []llms.Message {
	if over := len(msgs) - limit; limit > 0 && over > 0 {
		msgs = msgs[over:]
	}
	for i, msg := range msgs {
		if msg.Role == llms.RoleHuman {
			return msgs[i:]
		}
	}
	return nil
}
