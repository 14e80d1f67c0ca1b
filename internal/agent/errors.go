package agent

import (
	"errors"
	"fmt"
	"strings"
)

// 用户可见的错误文案，按错误类别区分
const (
	MsgServiceOverloaded = "The AI service is currently overloaded. Please wait a few minutes and try again."
	MsgQuotaExceeded     = "API quota exceeded. Please try again later."
	MsgNetworkError      = "Network error. Please check your connection and try again."
	MsgGenericError      = "Something went wrong. Please try again."
)

// TransientServiceError 服务端过载类错误（503等价），唯一可重试的类别
type TransientServiceError struct {
	Err error
}

func (e *TransientServiceError) Error() string {
	return fmt.Sprintf("AI服务暂时过载: %v", e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// QuotaExceededError 配额耗尽，不重试
type QuotaExceededError struct {
	Err error
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("API配额已耗尽: %v", e.Err)
}

func (e *QuotaExceededError) Unwrap() error { return e.Err }

// NetworkError 网络层失败，不重试
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("网络请求失败: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ClassifyModelError 按错误文本把模型边界返回的原始错误归入分类
// 已分类过的错误原样返回
func ClassifyModelError(err error) error {
	if err == nil {
		return nil
	}

	var transient *TransientServiceError
	var quota *QuotaExceededError
	var network *NetworkError
	if errors.As(err, &transient) || errors.As(err, &quota) || errors.As(err, &network) {
		return err
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "503") || strings.Contains(errStr, "overloaded") ||
		strings.Contains(errStr, "unavailable"):
		return &TransientServiceError{Err: err}
	case strings.Contains(errStr, "quota") || strings.Contains(errStr, "resource_exhausted") ||
		strings.Contains(errStr, "429"):
		return &QuotaExceededError{Err: err}
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") || strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "eof"):
		return &NetworkError{Err: err}
	default:
		return err
	}
}

// UserFacingMessage 把分类后的错误映射为展示给用户的文案
// 未分类错误落到通用兜底文案
func UserFacingMessage(err error) string {
	var transient *TransientServiceError
	var quota *QuotaExceededError
	var network *NetworkError
	switch {
	case errors.As(err, &transient):
		return MsgServiceOverloaded
	case errors.As(err, &quota):
		return MsgQuotaExceeded
	case errors.As(err, &network):
		return MsgNetworkError
	default:
		return MsgGenericError
	}
}
