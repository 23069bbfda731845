package lotto

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// CircuitBreakerProvider 带熔断器的历史数据源
//
// It wraps any HistoryProvider; when the provider also records draws or stores
// portfolios, those calls go through the same breaker.
type CircuitBreakerProvider struct {
	provider HistoryProvider

	mu      sync.RWMutex
	breaker *gobreaker.CircuitBreaker
	logger  Logger
	config  *CircuitBreakerConfig
}

// NewCircuitBreakerProvider 创建带熔断器的历史数据源
func NewCircuitBreakerProvider(provider HistoryProvider, config *CircuitBreakerConfig, logger Logger) *CircuitBreakerProvider {
	if config == nil {
		config = DefaultCircuitBreakerConfig()
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	c := &CircuitBreakerProvider{
		provider: provider,
		logger:   logger,
		config:   config,
	}
	// 未启用时透传
	if config.Enabled {
		c.breaker = c.newBreaker()
	}
	return c
}

func (c *CircuitBreakerProvider) newBreaker() *gobreaker.CircuitBreaker {
	config := c.config
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 当请求数达到最小要求且失败率超过阈值时触发熔断
			return counts.Requests >= config.MinRequests &&
				float64(counts.TotalFailures)/float64(counts.Requests) >= config.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if config.OnStateChange {
				c.logger.Warn("Circuit breaker '%s' state changed from %s to %s", name, from, to)
			}
		},
		IsSuccessful: isHealthyOutcome,
	})
}

// isHealthyOutcome treats rejections of the caller's input as successes so only
// storage faults trip the breaker.
func isHealthyOutcome(err error) bool {
	if err == nil {
		return true
	}
	for _, domain := range []error{
		ErrDuplicateDraw, ErrInvalidDraw, ErrPortfolioNotFound, ErrInvalidParameters, ErrHistoryReadOnly,
	} {
		if errors.Is(err, domain) {
			return true
		}
	}
	return false
}

// executeWithBreaker 使用熔断器执行操作
func (c *CircuitBreakerProvider) executeWithBreaker(operation func() (any, error)) (any, error) {
	c.mu.RLock()
	breaker := c.breaker
	c.mu.RUnlock()

	if breaker == nil {
		// 熔断器未启用，直接执行
		return operation()
	}

	result, err := breaker.Execute(operation)
	switch {
	case errors.Is(err, gobreaker.ErrOpenState):
		return nil, ErrCircuitBreakerOpen.WithDetails("history source is failing, requests are being rejected")
	case errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, ErrCircuitBreakerOpen.WithDetails("too many requests, circuit breaker is half-open")
	}
	return result, err
}

// LoadHistory 读取历史记录
func (c *CircuitBreakerProvider) LoadHistory(ctx context.Context) (HistoricalRecord, error) {
	result, err := c.executeWithBreaker(func() (any, error) {
		return c.provider.LoadHistory(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(HistoricalRecord), nil
}

// AppendDraw 追加开奖结果
func (c *CircuitBreakerProvider) AppendDraw(ctx context.Context, d Draw) error {
	recorder, ok := c.provider.(HistoryRecorder)
	if !ok {
		return ErrHistoryReadOnly
	}
	_, err := c.executeWithBreaker(func() (any, error) {
		return nil, recorder.AppendDraw(ctx, d)
	})
	return err
}

// SavePortfolio 保存号码组合
func (c *CircuitBreakerProvider) SavePortfolio(ctx context.Context, p *Portfolio) error {
	store, ok := c.provider.(PortfolioStore)
	if !ok {
		return ErrStorageFailure.WithDetails("history source cannot store portfolios")
	}
	_, err := c.executeWithBreaker(func() (any, error) {
		return nil, store.SavePortfolio(ctx, p)
	})
	return err
}

// LoadPortfolio 读取号码组合
func (c *CircuitBreakerProvider) LoadPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	store, ok := c.provider.(PortfolioStore)
	if !ok {
		return nil, ErrStorageFailure.WithDetails("history source cannot store portfolios")
	}
	result, err := c.executeWithBreaker(func() (any, error) {
		return store.LoadPortfolio(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Portfolio), nil
}

// SetPerformanceMonitor passes monitor to the wrapped provider when it reports metrics
func (c *CircuitBreakerProvider) SetPerformanceMonitor(monitor *PerformanceMonitor) {
	if m, ok := c.provider.(monitored); ok {
		m.SetPerformanceMonitor(monitor)
	}
}

// GetCircuitBreakerState 获取熔断器状态
func (c *CircuitBreakerProvider) GetCircuitBreakerState() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.breaker == nil {
		return "disabled"
	}

	switch c.breaker.State() {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// GetCircuitBreakerCounts 获取熔断器统计信息
func (c *CircuitBreakerProvider) GetCircuitBreakerCounts() gobreaker.Counts {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.breaker == nil {
		return gobreaker.Counts{}
	}
	return c.breaker.Counts()
}

// ResetCircuitBreaker 重置熔断器 (gobreaker 没有 Reset 方法, 重新创建实例)
func (c *CircuitBreakerProvider) ResetCircuitBreaker() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.breaker != nil {
		c.breaker = c.newBreaker()
		c.logger.Info("Circuit breaker '%s' has been reset (recreated)", c.config.Name)
	}
}

// HealthCheck 执行健康检查
func (c *CircuitBreakerProvider) HealthCheck() map[string]any {
	result := map[string]any{
		"circuit_breaker_enabled": c.config.Enabled,
		"timestamp":               time.Now().Unix(),
	}

	state := c.GetCircuitBreakerState()
	if state == "disabled" {
		result["state"] = state
		result["healthy"] = true
		return result
	}

	counts := c.GetCircuitBreakerCounts()
	result["state"] = state
	result["requests"] = counts.Requests
	result["total_successes"] = counts.TotalSuccesses
	result["total_failures"] = counts.TotalFailures
	result["consecutive_failures"] = counts.ConsecutiveFailures

	// 计算成功率
	if counts.Requests > 0 {
		result["success_rate"] = float64(counts.TotalSuccesses) / float64(counts.Requests)
		result["failure_rate"] = float64(counts.TotalFailures) / float64(counts.Requests)
	} else {
		result["success_rate"] = 0.0
		result["failure_rate"] = 0.0
	}

	// 健康状态判断
	healthy := true
	switch state {
	case "open":
		healthy = false
	case "half-open":
		// 半开状态下，如果连续失败次数过多，认为不健康
		healthy = counts.ConsecutiveFailures <= 2
	}
	result["healthy"] = healthy
	return result
}
