package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
)

type memoryChat struct {
	info     *ChatInfo
	messages []llms.Message
}

type inMemory struct {
	opts options

	mu sync.RWMutex
	// tenant => chat => chat
	tenants map[string]map[string]*memoryChat
}

// NewMemoryStore returns a process local store.
func NewMemoryStore(opts ...Option) MessageStoreManager {
	return &inMemory{
		opts:    newOptions(opts),
		tenants: make(map[string]map[string]*memoryChat),
	}
}

func (m *inMemory) chat(tenantID, chatID string, create bool) *memoryChat {
	chats := m.tenants[tenantID]
	if chats == nil {
		if !create {
			return nil
		}
		chats = make(map[string]*memoryChat)
		m.tenants[tenantID] = chats
	}
	c := chats[chatID]
	if c == nil && create {
		c = &memoryChat{info: newChatInfo(tenantID, chatID)}
		chats[chatID] = c
	}
	return c
}

func (m *inMemory) Messages(ctx context.Context) ([]llms.Message, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.chat(tenantID, chatID, false)
	if c == nil {
		return nil, nil
	}
	return slices.Clone(c.messages), nil
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chat(tenantID, chatID, true)
	c.messages = slices.Clone(TrimHistory(append(c.messages, msgs...), m.opts.maxMessages))
	c.info.UpdatedAt = time.Now()
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if chats := m.tenants[tenantID]; chats != nil {
		delete(chats, chatID)
	}
	return nil
}

func (m *inMemory) UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.chat(tenantID, chatID, true)
	c.info.update(title, metadata)
	info := *c.info
	return &info, nil
}

func (m *inMemory) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c := m.chat(tenantID, id, false)
	if c == nil {
		return nil, errors.Newf("chat not found: %s", id)
	}
	info := *c.info
	info.Messages = slices.Clone(c.messages)
	return &info, nil
}

func (m *inMemory) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.tenants[tenantID] {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *inMemory) ListTenants(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id, chats := range m.tenants {
		if len(chats) > 0 {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *inMemory) Cleanup(_ context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	var deleted uint32
	for id, c := range m.tenants[tenantID] {
		if c.info.UpdatedAt.Before(cutoff) {
			delete(m.tenants[tenantID], id)
			deleted++
		}
	}
	return deleted, nil
}
