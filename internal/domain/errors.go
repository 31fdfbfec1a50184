package domain

import (
	"errors"
	"fmt"
	"time"
)

// 错误分类：
//   - ValidationError  输入格式错误，直接返回调用方，不重试
//   - AuthError        凭证无效，直接返回调用方，不重试
//   - QuotaExceededError 配额用尽，携带重置时间，不自动重试
//   - TransportError   外部收发/推送失败，按操作隔离并记录日志
//   - EncryptionError  公钥格式或长度错误，返回请求加密的调用方

// ValidationError 输入校验失败。
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// NewValidationError 构造输入校验错误。
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// AuthError 凭证无效。
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth failed: %s", e.Reason)
}

// QuotaExceededError 当日发送配额已用尽。
type QuotaExceededError struct {
	Limit   int
	ResetAt time.Time // 配额重置时间（当日 UTC 结束）
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily send quota of %d exceeded, resets at %s",
		e.Limit, e.ResetAt.Format(time.RFC3339))
}

// TransportError 外部协作方调用失败（邮件收发、Webhook 推送、链上验证）。
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error in %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError 包装外部协作方错误。
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

// EncryptionError 加密请求无法满足（公钥格式或长度错误）。
type EncryptionError struct {
	Reason string
}

func (e *EncryptionError) Error() string {
	return fmt.Sprintf("encryption failed: %s", e.Reason)
}

// IsQuotaExceeded 判断错误是否为配额用尽。
func IsQuotaExceeded(err error) bool {
	var qe *QuotaExceededError
	return errors.As(err, &qe)
}
