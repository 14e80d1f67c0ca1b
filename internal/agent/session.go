package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"career-agent-go/internal/parser"
	"career-agent-go/internal/types"
)

// DefaultMaxRetries 瞬时故障的默认重试上限
const DefaultMaxRetries = 3

// RetryStatusFunc 重试等待期间的状态回调，用于向调用方透出进度提示
type RetryStatusFunc func(message string)

// ConversationSession 封装一次测评对话：系统指令、聊天记录、模型调用与响应归一化。
// 调用方负责保证同一会话同时只有一个 Send 在执行。
type ConversationSession struct {
	sessionID    string
	mode         types.SessionMode
	systemPrompt string
	chatModel    model.ToolCallingChatModel
	memory       ChatMemory
	normalizer   *parser.ResponseNormalizer
	maxRetries   int
	backoffBase  time.Duration
	onRetry      RetryStatusFunc
	logger       zerolog.Logger
}

// SessionOption ConversationSession 的配置选项
type SessionOption func(*ConversationSession)

// WithMaxRetries 设置瞬时故障重试上限
func WithMaxRetries(n int) SessionOption {
	return func(cs *ConversationSession) {
		if n > 0 {
			cs.maxRetries = n
		}
	}
}

// WithBackoffBase 设置退避基准时长，第 N 次失败后等待 base * 2^N
func WithBackoffBase(d time.Duration) SessionOption {
	return func(cs *ConversationSession) {
		if d > 0 {
			cs.backoffBase = d
		}
	}
}

// WithRetryStatus 设置重试状态回调
func WithRetryStatus(fn RetryStatusFunc) SessionOption {
	return func(cs *ConversationSession) {
		cs.onRetry = fn
	}
}

// WithSessionLogger 注入会话日志器
func WithSessionLogger(logger zerolog.Logger) SessionOption {
	return func(cs *ConversationSession) {
		cs.logger = logger
	}
}

// NewConversationSession 创建新的对话会话。
// systemPrompt 作为每次模型调用的第一条消息注入，不写入聊天记录。
func NewConversationSession(sessionID string, mode types.SessionMode, systemPrompt string, chatModel model.ToolCallingChatModel, memory ChatMemory, opts ...SessionOption) *ConversationSession {
	if memory == nil {
		memory = NewInMemoryChatMemory()
	}
	cs := &ConversationSession{
		sessionID:    sessionID,
		mode:         mode,
		systemPrompt: systemPrompt,
		chatModel:    chatModel,
		memory:       memory,
		normalizer:   parser.NewResponseNormalizer(),
		maxRetries:   DefaultMaxRetries,
		backoffBase:  time.Second,
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// SessionID 返回会话标识
func (cs *ConversationSession) SessionID() string {
	return cs.sessionID
}

// Mode 返回会话模式
func (cs *ConversationSession) Mode() types.SessionMode {
	return cs.mode
}

// History 返回当前会话的聊天记录
func (cs *ConversationSession) History(ctx context.Context) ([]*schema.Message, error) {
	return cs.memory.GetHistory(ctx, cs.sessionID)
}

// Send 发送一条用户消息并返回归一化后的模型响应。
// 仅 TransientServiceError 会触发重试，第 N 次失败后等待 2^N 秒；
// 其他错误立即返回。解析失败不视为错误，会话保持可用。
func (cs *ConversationSession) Send(ctx context.Context, userText string) (*parser.NormalizedResponse, error) {
	userMsg := schema.UserMessage(userText)
	if err := cs.memory.AddMessage(ctx, cs.sessionID, userMsg); err != nil {
		return nil, fmt.Errorf("会话 '%s': 写入用户消息失败: %w", cs.sessionID, err)
	}

	history, err := cs.memory.GetHistory(ctx, cs.sessionID)
	if err != nil {
		return nil, fmt.Errorf("会话 '%s': 读取聊天记录失败: %w", cs.sessionID, err)
	}

	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(cs.systemPrompt))
	messages = append(messages, history...)

	reply, err := cs.generateWithRetry(ctx, messages)
	if err != nil {
		return nil, err
	}

	if err := cs.memory.AddMessage(ctx, cs.sessionID, reply); err != nil {
		return nil, fmt.Errorf("会话 '%s': 写入模型回复失败: %w", cs.sessionID, err)
	}

	normalized := cs.normalizer.Normalize(reply.Content, cs.mode)
	if normalized.Kind == parser.KindParseFailure {
		cs.logger.Warn().Str("session_id", cs.sessionID).Msg("模型响应无法归一化，返回解析失败占位消息")
	}
	return normalized, nil
}

// generateWithRetry 带瞬时故障重试的模型调用
func (cs *ConversationSession) generateWithRetry(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	var lastErr error
	for attempt := 1; attempt <= cs.maxRetries; attempt++ {
		reply, err := cs.chatModel.Generate(ctx, messages)
		if err == nil {
			return reply, nil
		}

		classified := ClassifyModelError(err)
		if _, transient := classified.(*TransientServiceError); !transient {
			return nil, classified
		}
		lastErr = classified

		if attempt == cs.maxRetries {
			break
		}

		wait := cs.backoffBase * (1 << attempt)
		cs.logger.Warn().
			Str("session_id", cs.sessionID).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("AI 服务过载，等待后重试")
		if cs.onRetry != nil {
			cs.onRetry(fmt.Sprintf("The AI service is busy. Retrying in %d seconds... (Attempt %d/%d)", int(wait.Seconds()), attempt, cs.maxRetries))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}
