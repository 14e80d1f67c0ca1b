package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucketAllow(t *testing.T) {
	// 容量为2，初始即有2个令牌
	tb := NewTokenBucket(60, 2)

	assert.True(t, tb.Allow(), "第一个请求应该被允许")
	assert.True(t, tb.Allow(), "第二个请求应该被允许")
	assert.False(t, tb.Allow(), "令牌耗尽后应该被拒绝")
}

func TestTokenBucketDefaultCapacity(t *testing.T) {
	// 未指定容量时取QPM的一半
	tb := NewTokenBucket(10, 0)
	assert.InDelta(t, 5.0, tb.capacity, 0.001)

	// QPM过小时容量至少为1
	tb = NewTokenBucket(1, 0)
	assert.InDelta(t, 1.0, tb.capacity, 0.001)
}

func TestWaitRespectsContextCancellation(t *testing.T) {
	// 极低速率，令牌耗尽后Wait必须阻塞
	tb := NewTokenBucket(1, 1)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := tb.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryWithBackoffNonRetryableError(t *testing.T) {
	tb := NewTokenBucket(600, 10)
	tb.WithRetryPolicy(time.Millisecond, 3)

	callCount := 0
	permanent := errors.New("invalid request payload")

	err := tb.RetryWithBackoff(context.Background(), func() error {
		callCount++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, callCount, "不可重试的错误不应该触发重试")
}

func TestRetryWithBackoffRetriesTransientError(t *testing.T) {
	tb := NewTokenBucket(600, 10)
	tb.WithRetryPolicy(time.Millisecond, 3)

	callCount := 0
	err := tb.RetryWithBackoff(context.Background(), func() error {
		callCount++
		if callCount < 3 {
			return errors.New("503 service UNAVAILABLE")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, callCount)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, isRetryableError(nil))
	assert.False(t, isRetryableError(errors.New("invalid api key")))
	assert.True(t, isRetryableError(errors.New("429 Too Many Requests")))
	assert.True(t, isRetryableError(errors.New("RESOURCE_EXHAUSTED: quota exceeded")))
	assert.True(t, isRetryableError(errors.New("context deadline exceeded")))
	assert.True(t, isRetryableError(errors.New("the model is overloaded")))
}
