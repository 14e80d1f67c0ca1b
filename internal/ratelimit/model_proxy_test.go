package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatModel struct {
	calls int
	err   error
}

func (s *stubChatModel) Generate(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (s *stubChatModel) Stream(ctx context.Context, messages []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("stream not supported in stub")
}

func (s *stubChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return s, nil
}

func (s *stubChatModel) BindTools(tools []*schema.ToolInfo) error {
	return nil
}

func TestRateLimitedGenerate(t *testing.T) {
	stub := &stubChatModel{}
	limited := NewRateLimitedChatModel(stub, 600)

	resp, err := limited.Generate(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 1, stub.calls)
}

func TestRateLimitedGenerateRetriesTransient(t *testing.T) {
	stub := &stubChatModel{err: errors.New("429 Too Many Requests")}
	limited := NewRateLimitedChatModel(stub, 600)
	limited.WithRetryPolicy(time.Millisecond, 2)

	_, err := limited.Generate(context.Background(), []*schema.Message{schema.UserMessage("hello")})
	require.Error(t, err)
	// 初次调用加2次重试
	assert.Equal(t, 3, stub.calls)
}

func TestWrapWithRateLimitQPMSelection(t *testing.T) {
	stub := &stubChatModel{}

	// 命中模型限额时取其90%
	wrapped := WrapWithRateLimit(stub, "gemini-2.5-flash", map[string]int{"gemini-2.5-flash": 100}, 30, 3, time.Second)
	limited, ok := wrapped.(*RateLimitedChatModel)
	require.True(t, ok)
	assert.InDelta(t, 90.0/60.0, limited.rateLimiter.rate, 0.001)

	// 未命中时使用默认QPM
	wrapped = WrapWithRateLimit(stub, "unknown-model", nil, 60, 3, time.Second)
	limited, ok = wrapped.(*RateLimitedChatModel)
	require.True(t, ok)
	assert.InDelta(t, 1.0, limited.rateLimiter.rate, 0.001)
}
