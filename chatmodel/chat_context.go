// Package chatmodel carries the chat identity through context.Context and
// defines errors shared by assistants, tools and stores.
package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// DefaultTenantID is used when the chat is created without a tenant.
const DefaultTenantID = "default"

// ChatContext identifies a conversation.
type ChatContext interface {
	GetTenantID() string
	GetChatID() string
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
}

type chatContext struct {
	tenantID string
	chatID   string
	metadata sync.Map
}

func (c *chatContext) GetTenantID() string {
	return c.tenantID
}

func (c *chatContext) GetChatID() string {
	return c.chatID
}

func (c *chatContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

// NewChatContext returns a chat context, empty IDs are replaced by
// DefaultTenantID and a new chat ID.
func NewChatContext(tenantID, chatID string) ChatContext {
	return &chatContext{
		tenantID: values.StringsCoalesce(tenantID, DefaultTenantID),
		chatID:   values.StringsCoalesce(chatID, NewChatID()),
	}
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// GetChatID returns the chat ID, or empty string if ctx has no ChatContext.
func GetChatID(ctx context.Context) string {
	if v := GetChatContext(ctx); v != nil {
		return v.GetChatID()
	}
	return ""
}

// NewChatID generates a new chat ID using the flake ID generator.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}

// GetTenantAndChatID returns the IDs of the ChatContext in ctx,
// or ErrInvalidChatContext.
func GetTenantAndChatID(ctx context.Context) (tenantID, chatID string, err error) {
	cc := GetChatContext(ctx)
	if cc == nil || cc.GetChatID() == "" {
		return "", "", ErrInvalidChatContext
	}
	return cc.GetTenantID(), cc.GetChatID(), nil
}
