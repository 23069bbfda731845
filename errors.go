package lotto

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"math/rand/v2"
	"runtime"
	"strings"
	"time"
)

// ErrorCode 错误代码类型
type ErrorCode string

// 错误代码常量
const (
	// 系统级错误 (1000-1999)
	ErrCodeSystem          ErrorCode = "LOTTERY_1000"
	ErrCodeRedisConnection ErrorCode = "LOTTERY_1001"
	ErrCodeStorage         ErrorCode = "LOTTERY_1003"
	ErrCodeConfigInvalid   ErrorCode = "LOTTERY_1004"

	// 业务级错误 (2000-2999)
	ErrCodeInvalidParameters ErrorCode = "LOTTERY_2000"
	ErrCodeInvalidDraw       ErrorCode = "LOTTERY_2001"
	ErrCodeInvalidWeights    ErrorCode = "LOTTERY_2002"
	ErrCodeDuplicateDraw     ErrorCode = "LOTTERY_2003"
	ErrCodeHistoryReadOnly   ErrorCode = "LOTTERY_2004"
	ErrCodePortfolioNotFound ErrorCode = "LOTTERY_2005"

	// 锁相关错误 (3000-3999)
	ErrCodeLockAcquisitionFailed ErrorCode = "LOTTERY_3000"
	ErrCodeLockTimeout           ErrorCode = "LOTTERY_3001"
	ErrCodeLockReleaseFailure    ErrorCode = "LOTTERY_3002"

	// 限流相关错误 (5000-5999)
	ErrCodeCircuitBreakerOpen ErrorCode = "LOTTERY_5000"

	// 状态相关错误 (6000-6999)
	ErrCodeSerializationFailed   ErrorCode = "LOTTERY_6000"
	ErrCodeDeserializationFailed ErrorCode = "LOTTERY_6001"
	ErrCodeHistoryCorrupted      ErrorCode = "LOTTERY_6002"
)

// ErrorSeverity 错误严重程度
type ErrorSeverity string

const (
	SeverityCritical ErrorSeverity = "critical"
	SeverityHigh     ErrorSeverity = "high"
	SeverityMedium   ErrorSeverity = "medium"
	SeverityLow      ErrorSeverity = "low"
	SeverityInfo     ErrorSeverity = "info"
)

// LotteryError is the error type returned by every exported operation of the package.
// Two LotteryErrors match under errors.Is when their codes are equal, so callers test
// against the predefined values (ErrConfigInvalid, ErrInvalidDraw, ...).
type LotteryError struct {
	Code       ErrorCode      `json:"code"`
	Message    string         `json:"message"`
	Details    string         `json:"details,omitempty"`
	Severity   ErrorSeverity  `json:"severity"`
	Timestamp  time.Time      `json:"timestamp"`
	Operation  string         `json:"operation,omitempty"`
	StackTrace string         `json:"stack_trace,omitempty"`
	Cause      error          `json:"-"`
	Retryable  bool           `json:"retryable"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Error 实现 error 接口
func (e *LotteryError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap 接口
func (e *LotteryError) Unwrap() error { return e.Cause }

// Is 实现 errors.Is 接口
func (e *LotteryError) Is(target error) bool {
	if t, ok := target.(*LotteryError); ok {
		return e.Code == t.Code
	}
	return false
}

// clone returns a shallow copy so the predefined errors are never mutated by builders.
func (e *LotteryError) clone() *LotteryError {
	c := *e
	if e.Metadata != nil {
		c.Metadata = maps.Clone(e.Metadata)
	}
	return &c
}

// WithCause 添加原因错误
func (e *LotteryError) WithCause(cause error) *LotteryError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithDetails 添加详细信息
func (e *LotteryError) WithDetails(details string) *LotteryError {
	c := e.clone()
	c.Details = details
	return c
}

// WithDetailsf 添加格式化的详细信息
func (e *LotteryError) WithDetailsf(format string, args ...any) *LotteryError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithOperation 添加操作信息
func (e *LotteryError) WithOperation(operation string) *LotteryError {
	c := e.clone()
	c.Operation = operation
	return c
}

// WithMetadata 添加元数据
func (e *LotteryError) WithMetadata(key string, value any) *LotteryError {
	c := e.clone()
	if c.Metadata == nil {
		c.Metadata = make(map[string]any)
	}
	c.Metadata[key] = value
	return c
}

// WithStackTrace 添加堆栈跟踪
func (e *LotteryError) WithStackTrace() *LotteryError {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	c := e.clone()
	c.StackTrace = string(buf[:n])
	return c
}

// NewError 创建新的错误
func NewError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: false,
	}
}

// NewRetryableError 创建可重试的错误
func NewRetryableError(code ErrorCode, message string) *LotteryError {
	return &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityMedium,
		Timestamp: time.Now(),
		Retryable: true,
	}
}

// NewCriticalError 创建严重错误
func NewCriticalError(code ErrorCode, message string) *LotteryError {
	err := &LotteryError{
		Code:      code,
		Message:   message,
		Severity:  SeverityCritical,
		Timestamp: time.Now(),
		Retryable: false,
	}
	return err.WithStackTrace()
}

// 预定义的错误实例
var (
	// 系统级错误
	ErrSystemError           = NewCriticalError(ErrCodeSystem, "system error occurred")
	ErrRedisConnectionFailed = NewRetryableError(ErrCodeRedisConnection, "Redis connection failed")
	ErrStorageFailure        = NewError(ErrCodeStorage, "history storage failure")
	ErrConfigInvalid         = NewError(ErrCodeConfigInvalid, "configuration is invalid")

	// 业务级错误
	ErrInvalidParameters = NewError(ErrCodeInvalidParameters, "invalid parameters provided")
	ErrInvalidDraw       = NewError(ErrCodeInvalidDraw, "invalid draw")
	ErrInvalidWeights    = NewError(ErrCodeInvalidWeights, "invalid frequency weights")
	ErrDuplicateDraw     = NewError(ErrCodeDuplicateDraw, "draw already recorded")
	ErrHistoryReadOnly   = NewError(ErrCodeHistoryReadOnly, "history provider does not accept new draws")
	ErrPortfolioNotFound = NewError(ErrCodePortfolioNotFound, "portfolio not found")

	// 锁相关错误
	ErrLockAcquisitionFailed = NewRetryableError(ErrCodeLockAcquisitionFailed, "failed to acquire distributed lock")
	ErrLockTimeout           = NewRetryableError(ErrCodeLockTimeout, "lock acquisition timeout")
	ErrLockReleaseFailure    = NewError(ErrCodeLockReleaseFailure, "failed to release lock")

	// 限流相关错误
	ErrCircuitBreakerOpen = NewRetryableError(ErrCodeCircuitBreakerOpen, "circuit breaker is open")

	// 状态相关错误
	ErrSerializationFailed   = NewError(ErrCodeSerializationFailed, "serialization failed")
	ErrDeserializationFailed = NewError(ErrCodeDeserializationFailed, "deserialization failed")
	ErrHistoryCorrupted      = NewError(ErrCodeHistoryCorrupted, "stored history is corrupted")
)

// newConfigError builds a ConfigurationError naming the offending field.
func newConfigError(format string, args ...any) *LotteryError {
	return ErrConfigInvalid.WithDetailsf(format, args...)
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool { return errors.Is(err, ErrConfigInvalid) }

// ErrorHandler 错误处理器接口
type ErrorHandler interface {
	HandleError(ctx context.Context, err error) error
	ShouldRetry(err error) bool
	GetRetryDelay(attempt int, err error) time.Duration
}

// DefaultErrorHandler 默认错误处理器
type DefaultErrorHandler struct {
	logger        Logger
	baseDelay     time.Duration
	maxDelay      time.Duration
	backoffFactor float64
}

// NewDefaultErrorHandler 创建默认错误处理器
func NewDefaultErrorHandler(logger Logger) *DefaultErrorHandler {
	return NewErrorHandlerWithDelay(logger, DefaultRetryInterval)
}

// NewErrorHandlerWithDelay 创建指定基础延迟的错误处理器
func NewErrorHandlerWithDelay(logger Logger, baseDelay time.Duration) *DefaultErrorHandler {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return &DefaultErrorHandler{
		logger:        logger,
		baseDelay:     baseDelay,
		maxDelay:      5 * time.Second,
		backoffFactor: 2.0,
	}
}

// HandleError 处理错误
func (h *DefaultErrorHandler) HandleError(_ context.Context, err error) error {
	if err == nil {
		return nil
	}

	var lotteryErr *LotteryError
	if !errors.As(err, &lotteryErr) {
		// 包装普通错误, 保留网络类错误的可重试性
		lotteryErr = NewError(ErrCodeSystem, err.Error()).WithCause(err)
		lotteryErr.Retryable = IsRetryableError(err)
	}

	h.logError(lotteryErr)
	return lotteryErr
}

// ShouldRetry 判断是否应该重试
func (h *DefaultErrorHandler) ShouldRetry(err error) bool {
	var lotteryErr *LotteryError
	if errors.As(err, &lotteryErr) {
		return lotteryErr.Retryable
	}
	return IsRetryableError(err)
}

// GetRetryDelay 获取重试延迟
func (h *DefaultErrorHandler) GetRetryDelay(attempt int, _ error) time.Duration {
	if attempt <= 0 {
		return h.baseDelay
	}

	// 指数退避算法
	delay := time.Duration(float64(h.baseDelay) * math.Pow(h.backoffFactor, float64(attempt-1)))

	// 添加抖动 (±25%)
	jitter := time.Duration(float64(delay) * 0.25 * (2*rand.Float64() - 1))
	delay += jitter

	if delay > h.maxDelay {
		delay = h.maxDelay
	}
	return delay
}

// logError 记录错误日志
func (h *DefaultErrorHandler) logError(err *LotteryError) {
	switch err.Severity {
	case SeverityCritical, SeverityHigh:
		h.logger.Error("%s error: %s", err.Severity, err.Error())
	case SeverityMedium:
		h.logger.Warn("%s error: %s", err.Severity, err.Error())
	default:
		h.logger.Debug("%s error: %s", err.Severity, err.Error())
	}
}

// IsRetryableError 检查是否为可重试错误
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"connection refused",
		"connection reset",
		"timeout",
		"network is unreachable",
		"temporary failure",
		"server closed",
		"broken pipe",
		"i/o timeout",
		"dial tcp",
		"read tcp",
		"write tcp",
		"connection timed out",
		"no route to host",
		"connection aborted",
		"redis: connection pool timeout",
		"redis: client is closed",
		"context deadline exceeded",
		"database is locked",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}

// ErrorRecovery 错误恢复策略
type ErrorRecovery struct {
	handler    ErrorHandler
	maxRetries int
	logger     Logger
}

// NewErrorRecovery 创建错误恢复策略
func NewErrorRecovery(handler ErrorHandler, maxRetries int, logger Logger) *ErrorRecovery {
	if logger == nil {
		logger = NewSilentLogger()
	}
	return &ErrorRecovery{
		handler:    handler,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// ExecuteWithRetry runs operation until it succeeds, returns a non-retryable error,
// or maxRetries retries are exhausted.
func (r *ErrorRecovery) ExecuteWithRetry(ctx context.Context, name string, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return NewError(ErrCodeSystem, "operation cancelled").WithOperation(name).WithCause(ctx.Err())
		default:
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("%s succeeded after %d retries", name, attempt)
			}
			return nil
		}

		lastErr = r.handler.HandleError(ctx, err)
		if !r.handler.ShouldRetry(lastErr) {
			r.logger.Debug("%s: error is not retryable: %v", name, lastErr)
			return lastErr
		}

		if attempt < r.maxRetries {
			delay := r.handler.GetRetryDelay(attempt+1, lastErr)
			r.logger.Debug("Retrying %s in %v (attempt %d/%d)", name, delay, attempt+1, r.maxRetries)

			select {
			case <-ctx.Done():
				return NewError(ErrCodeSystem, "operation cancelled during retry").WithOperation(name).WithCause(ctx.Err())
			case <-time.After(delay):
			}
		}
	}

	return NewError(ErrCodeSystem, fmt.Sprintf("operation failed after %d attempts", r.maxRetries+1)).
		WithOperation(name).WithCause(lastErr)
}
