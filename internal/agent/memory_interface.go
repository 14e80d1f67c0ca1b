package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// ChatMemory 定义了会话历史存储的接口
// 历史只追加，不修改，仅在会话显式重置时整体清空
type ChatMemory interface {
	// GetHistory 获取指定会话的历史记录。
	// 会话不存在时返回空切片和 nil 错误。
	GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error)

	// AddMessage 向指定会话追加一条消息。
	AddMessage(ctx context.Context, sessionID string, message *schema.Message) error

	// AddMessages 向指定会话批量追加消息。
	AddMessages(ctx context.Context, sessionID string, messages []*schema.Message) error

	// ClearHistory 清空指定会话的历史。会话不存在时静默成功。
	ClearHistory(ctx context.Context, sessionID string) error
}

// InMemoryChatMemory 是 ChatMemory 的内存实现
// 不持久化，用于测试和单实例场景
type InMemoryChatMemory struct {
	mu        sync.RWMutex
	histories map[string][]*schema.Message
}

// NewInMemoryChatMemory 创建内存版会话历史存储
func NewInMemoryChatMemory() *InMemoryChatMemory {
	return &InMemoryChatMemory{
		histories: make(map[string][]*schema.Message),
	}
}

// GetHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) GetHistory(_ context.Context, sessionID string) ([]*schema.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history, ok := m.histories[sessionID]
	if !ok {
		return []*schema.Message{}, nil
	}
	// 返回浅拷贝，约定调用方不修改消息内容
	cpy := make([]*schema.Message, len(history))
	copy(cpy, history)
	return cpy, nil
}

// AddMessage 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessage(_ context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[sessionID] = append(m.histories[sessionID], message)
	return nil
}

// AddMessages 实现 ChatMemory 接口
func (m *InMemoryChatMemory) AddMessages(ctx context.Context, sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	for _, msg := range messages {
		if msg == nil {
			return fmt.Errorf("会话 %s 批量追加中包含空消息", sessionID)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.histories[sessionID] = append(m.histories[sessionID], messages...)
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (m *InMemoryChatMemory) ClearHistory(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.histories, sessionID)
	return nil
}
