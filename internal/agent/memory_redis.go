package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"career-agent-go/internal/constants"

	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
)

// RedisChatMemory 实现了 ChatMemory 接口，使用 Redis LIST 持久化会话历史
// 键格式见 constants.KeyChatHistory
type RedisChatMemory struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisChatMemory 创建一个新的 RedisChatMemory 实例
// ttl 为历史记录的过期时间，0 表示不过期
func NewRedisChatMemory(redisClient *redis.Client, ttl time.Duration) (*RedisChatMemory, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis客户端不能为空")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis连通性检查失败: %w", err)
	}

	return &RedisChatMemory{
		redisClient: redisClient,
		ttl:         ttl,
	}, nil
}

func (rcm *RedisChatMemory) buildKey(sessionID string) string {
	return fmt.Sprintf(constants.KeyChatHistory, sessionID)
}

// GetHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) GetHistory(ctx context.Context, sessionID string) ([]*schema.Message, error) {
	key := rcm.buildKey(sessionID)

	serialized, err := rcm.redisClient.LRange(ctx, key, 0, -1).Result()
	if errors.Is(err, redis.Nil) {
		return []*schema.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("读取会话 %s 历史失败: %w", sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(serialized))
	for _, sm := range serialized {
		var msg schema.Message
		if err := json.Unmarshal([]byte(sm), &msg); err != nil {
			return nil, fmt.Errorf("反序列化会话 %s 消息失败: %w", sessionID, err)
		}
		messages = append(messages, &msg)
	}
	return messages, nil
}

// AddMessage 实现 ChatMemory 接口
func (rcm *RedisChatMemory) AddMessage(ctx context.Context, sessionID string, message *schema.Message) error {
	if message == nil {
		return fmt.Errorf("会话 %s 不能追加空消息", sessionID)
	}
	return rcm.AddMessages(ctx, sessionID, []*schema.Message{message})
}

// AddMessages 实现 ChatMemory 接口
// RPush 与 Expire 在同一个事务管道中执行
func (rcm *RedisChatMemory) AddMessages(ctx context.Context, sessionID string, messages []*schema.Message) error {
	if len(messages) == 0 {
		return nil
	}
	key := rcm.buildKey(sessionID)

	pipe := rcm.redisClient.TxPipeline()
	for _, message := range messages {
		if message == nil {
			return fmt.Errorf("会话 %s 批量追加中包含空消息", sessionID)
		}
		serialized, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("序列化会话 %s 消息失败: %w", sessionID, err)
		}
		pipe.RPush(ctx, key, serialized)
	}
	if rcm.ttl > 0 {
		pipe.Expire(ctx, key, rcm.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("写入会话 %s 历史失败: %w", sessionID, err)
	}
	return nil
}

// ClearHistory 实现 ChatMemory 接口
func (rcm *RedisChatMemory) ClearHistory(ctx context.Context, sessionID string) error {
	key := rcm.buildKey(sessionID)
	if err := rcm.redisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("清空会话 %s 历史失败: %w", sessionID, err)
	}
	return nil
}
