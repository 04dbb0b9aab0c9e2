package store

import (
	"context"
	"encoding/json"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mcpagent/chatmodel"
	"github.com/effective-security/mcpagent/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The keys namespace is organized as follows:
//   - `<prefix>/chatstore/<tenantID>/messages/<chatID>` list of JSON messages
//   - `<prefix>/chatstore/<tenantID>/info/<chatID>` JSON ChatInfo
//   - `<prefix>/chatstore/<tenantID>/chats` set of chat IDs of the tenant

type redisStore struct {
	client redis.UniversalClient
	prefix string
	opts   options
}

// NewRedisStore returns a store backed by Redis.
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...Option) MessageStoreManager {
	return &redisStore{
		client: client,
		prefix: prefix,
		opts:   newOptions(opts),
	}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}
	client := redis.NewClient(o)
	if err = client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return client, nil
}

func (m *redisStore) root() string {
	return path.Join(m.prefix, "chatstore")
}

func (m *redisStore) messagesKey(tenantID, chatID string) string {
	return path.Join(m.root(), tenantID, "messages", chatID)
}

func (m *redisStore) infoKey(tenantID, chatID string) string {
	return path.Join(m.root(), tenantID, "info", chatID)
}

func (m *redisStore) chatsKey(tenantID string) string {
	return path.Join(m.root(), tenantID, "chats")
}

func (m *redisStore) Messages(ctx context.Context) ([]llms.Message, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	return m.messages(ctx, tenantID, chatID)
}

func (m *redisStore) messages(ctx context.Context, tenantID, chatID string) ([]llms.Message, error) {
	data, err := m.client.LRange(ctx, m.messagesKey(tenantID, chatID), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get messages from Redis")
	}

	messages := make([]llms.Message, 0, len(data))
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "reason", "unmarshal_message", "chat", chatID, "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	// LTRIM cuts at any message, drop a broken leading turn
	return TrimHistory(messages, 0), nil
}

func (m *redisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	values := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		values = append(values, data)
	}

	key := m.messagesKey(tenantID, chatID)
	pipe := m.client.Pipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-m.opts.maxMessages), -1)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store messages in Redis")
	}

	_, err = m.UpdateChat(ctx, "", nil)
	return err
}

func (m *redisStore) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.Del(ctx, m.messagesKey(tenantID, chatID))
	pipe.Del(ctx, m.infoKey(tenantID, chatID))
	pipe.SRem(ctx, m.chatsKey(tenantID), chatID)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}

func (m *redisStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	chat, err := m.getChatInfo(ctx, tenantID, chatID)
	if err != nil {
		return nil, err
	}
	isNew := chat == nil
	if isNew {
		chat = newChatInfo(tenantID, chatID)
	}
	chat.update(title, metadata)

	if err = m.saveChat(ctx, chat, isNew); err != nil {
		return nil, err
	}
	return chat, nil
}

func (m *redisStore) saveChat(ctx context.Context, chat *ChatInfo, isNew bool) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}

	pipe := m.client.Pipeline()
	pipe.Set(ctx, m.infoKey(chat.TenantID, chat.ChatID), data, 0)
	if isNew {
		pipe.SAdd(ctx, m.chatsKey(chat.TenantID), chat.ChatID)
	}
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}
	return nil
}

// getChatInfo returns nil if the chat does not exist
func (m *redisStore) getChatInfo(ctx context.Context, tenantID, chatID string) (*ChatInfo, error) {
	data, err := m.client.Get(ctx, m.infoKey(tenantID, chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get chat info from Redis")
	}

	chat := &ChatInfo{}
	if err = json.Unmarshal([]byte(data), chat); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, nil
}

func (m *redisStore) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	chat, err := m.getChatInfo(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		return nil, errors.Newf("chat not found: %s", id)
	}
	chat.Messages, err = m.messages(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (m *redisStore) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := m.client.SMembers(ctx, m.chatsKey(tenantID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *redisStore) ListTenants(ctx context.Context) ([]string, error) {
	root := m.root() + "/"
	// SCAN does not block the server as KEYS does
	iter := m.client.Scan(ctx, 0, root+"*", 0).Iterator()
	tenants := make(map[string]struct{})
	for iter.Next(ctx) {
		tenant, _, _ := strings.Cut(strings.TrimPrefix(iter.Val(), root), "/")
		if tenant != "" {
			tenants[tenant] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan tenants from Redis")
	}

	res := make([]string, 0, len(tenants))
	for tenant := range tenants {
		res = append(res, tenant)
	}
	slices.Sort(res)
	return res, nil
}

func (m *redisStore) Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	ids, err := m.client.SMembers(ctx, m.chatsKey(tenantID)).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	var deleted uint32
	cutoff := time.Now().Add(-olderThan)
	for _, chatID := range ids {
		chat, err := m.getChatInfo(ctx, tenantID, chatID)
		if err != nil {
			return deleted, err
		}
		if chat != nil && !chat.UpdatedAt.Before(cutoff) {
			continue
		}

		pipe := m.client.Pipeline()
		pipe.Del(ctx, m.infoKey(tenantID, chatID))
		pipe.Del(ctx, m.messagesKey(tenantID, chatID))
		pipe.SRem(ctx, m.chatsKey(tenantID), chatID)
		if _, err = pipe.Exec(ctx); err != nil {
			return deleted, errors.Wrap(err, "failed to delete chat from Redis")
		}
		deleted++
	}

	logger.ContextKV(ctx, xlog.DEBUG, "tenant", tenantID, "deleted", deleted)
	return deleted, nil
}
