package ratelimit

import (
	"context"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// RateLimitedChatModel 对聊天模型的调用进行限流的代理。
// 学生、家长与市场数据三路模型共用网关限额时，各自包一层代理即可独立控速。
type RateLimitedChatModel struct {
	original    model.ToolCallingChatModel
	rateLimiter *TokenBucket
}

// NewRateLimitedChatModel 创建一个新的限流聊天模型代理
func NewRateLimitedChatModel(original model.ToolCallingChatModel, qpm int) *RateLimitedChatModel {
	// 容量设为QPM的一半，允许一定的突发流量
	return &RateLimitedChatModel{
		original:    original,
		rateLimiter: NewTokenBucket(qpm, qpm/2),
	}
}

// WithRetryPolicy 设置重试策略
func (rl *RateLimitedChatModel) WithRetryPolicy(waitTime time.Duration, maxRetries int) *RateLimitedChatModel {
	rl.rateLimiter.WithRetryPolicy(waitTime, maxRetries)
	return rl
}

// Generate 代理Generate方法，增加限流和重试逻辑
func (rl *RateLimitedChatModel) Generate(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.Message, error) {
	var response *schema.Message
	var err error

	err = rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var genErr error
		response, genErr = rl.original.Generate(ctx, messages, options...)
		return genErr
	})

	return response, err
}

// Stream 代理Stream方法，增加限流和重试逻辑
func (rl *RateLimitedChatModel) Stream(ctx context.Context, messages []*schema.Message, options ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	var stream *schema.StreamReader[*schema.Message]
	var err error

	err = rl.rateLimiter.RetryWithBackoff(ctx, func() error {
		var streamErr error
		stream, streamErr = rl.original.Stream(ctx, messages, options...)
		return streamErr
	})

	return stream, err
}

// WithTools 代理WithTools方法，新模型共享同一个限流桶
func (rl *RateLimitedChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	newModel, err := rl.original.WithTools(tools)
	if err != nil {
		return nil, err
	}

	return &RateLimitedChatModel{
		original:    newModel,
		rateLimiter: rl.rateLimiter,
	}, nil
}

// WrapWithRateLimit 根据模型名与QPM配置包装原始模型。
// modelQPM按模型名提供限额，命中时取其90%作为安全值；未命中时使用defaultQPM。
func WrapWithRateLimit(original model.ToolCallingChatModel, modelName string, modelQPM map[string]int, defaultQPM int, maxRetries int, retryWaitTime time.Duration) model.ToolCallingChatModel {
	qpm := defaultQPM

	if modelQPM != nil && modelName != "" {
		if limit, ok := modelQPM[modelName]; ok && limit > 0 {
			qpm = int(float64(limit) * 0.9)
		}
	}

	if qpm <= 0 {
		qpm = 30
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}

	limited := NewRateLimitedChatModel(original, qpm)
	limited.WithRetryPolicy(retryWaitTime, maxRetries)

	return limited
}
