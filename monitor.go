package lotto

import (
	"sync"
	"sync/atomic"
	"time"
)

// PerformanceMetrics 性能指标收集器
type PerformanceMetrics struct {
	// 组合生成统计
	TotalPortfolios      int64 `json:"total_portfolios"`      // 生成请求次数
	SuccessfulPortfolios int64 `json:"successful_portfolios"` // 成功次数
	FailedPortfolios     int64 `json:"failed_portfolios"`     // 失败次数
	TicketsGenerated     int64 `json:"tickets_generated"`     // 生成的号码组数
	DuplicatesAccepted   int64 `json:"duplicates_accepted"`   // 重试后仍保留的重复组数

	// 权重计算统计
	WeightComputations int64 `json:"weight_computations"` // 权重计算次数
	UniformFallbacks   int64 `json:"uniform_fallbacks"`   // 空历史回退次数
	WeightTime         int64 `json:"weight_time"`         // 权重计算总时间(纳秒)
	CacheHits          int64 `json:"cache_hits"`          // 权重缓存命中
	CacheMisses        int64 `json:"cache_misses"`        // 权重缓存未命中

	// 锁操作统计
	LockAcquisitions    int64 `json:"lock_acquisitions"`     // 锁获取次数
	LockAcquisitionTime int64 `json:"lock_acquisition_time"` // 锁获取总时间(纳秒)
	LockFailures        int64 `json:"lock_failures"`         // 锁获取失败次数

	// 性能统计
	AveragePortfolioTime int64 `json:"average_portfolio_time"` // 平均生成时间(纳秒)
	TotalPortfolioTime   int64 `json:"total_portfolio_time"`   // 总生成时间(纳秒)

	// 存储统计
	StorageErrors int64 `json:"storage_errors"` // 历史数据源错误数

	// 时间戳
	StartTime      int64 `json:"start_time"`       // 开始时间
	LastUpdateTime int64 `json:"last_update_time"` // 最后更新时间
}

// GetSuccessRate 获取成功率
func (pm *PerformanceMetrics) GetSuccessRate() float64 {
	total := atomic.LoadInt64(&pm.TotalPortfolios)
	if total == 0 {
		return 0.0
	}
	successful := atomic.LoadInt64(&pm.SuccessfulPortfolios)
	return float64(successful) / float64(total) * 100.0
}

// GetCacheHitRate 获取权重缓存命中率
func (pm *PerformanceMetrics) GetCacheHitRate() float64 {
	hits := atomic.LoadInt64(&pm.CacheHits)
	total := hits + atomic.LoadInt64(&pm.CacheMisses)
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}

// GetAverageLockTime 获取平均锁获取时间
func (pm *PerformanceMetrics) GetAverageLockTime() time.Duration {
	acquisitions := atomic.LoadInt64(&pm.LockAcquisitions)
	if acquisitions == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&pm.LockAcquisitionTime) / acquisitions)
}

// GetThroughput 获取吞吐量(每秒生成的号码组数)
func (pm *PerformanceMetrics) GetThroughput() float64 {
	startTime := atomic.LoadInt64(&pm.StartTime)
	lastUpdate := atomic.LoadInt64(&pm.LastUpdateTime)
	if startTime == 0 || lastUpdate <= startTime {
		return 0.0
	}

	duration := time.Duration(lastUpdate - startTime)
	return float64(atomic.LoadInt64(&pm.TicketsGenerated)) / duration.Seconds()
}

// Reset 重置性能指标
func (pm *PerformanceMetrics) Reset() {
	for _, p := range []*int64{
		&pm.TotalPortfolios, &pm.SuccessfulPortfolios, &pm.FailedPortfolios,
		&pm.TicketsGenerated, &pm.DuplicatesAccepted,
		&pm.WeightComputations, &pm.UniformFallbacks, &pm.WeightTime, &pm.CacheHits, &pm.CacheMisses,
		&pm.LockAcquisitions, &pm.LockAcquisitionTime, &pm.LockFailures,
		&pm.AveragePortfolioTime, &pm.TotalPortfolioTime, &pm.StorageErrors,
	} {
		atomic.StoreInt64(p, 0)
	}
	now := time.Now().UnixNano()
	atomic.StoreInt64(&pm.StartTime, now)
	atomic.StoreInt64(&pm.LastUpdateTime, now)
}

// ================================================================================

// PerformanceMonitor 性能监控器
type PerformanceMonitor struct {
	metrics *PerformanceMetrics
	mu      sync.RWMutex
	enabled bool
}

// NewPerformanceMonitor 创建新的性能监控器
func NewPerformanceMonitor() *PerformanceMonitor {
	pm := &PerformanceMonitor{
		metrics: &PerformanceMetrics{},
		enabled: true,
	}
	pm.metrics.Reset()
	return pm
}

// Enable 启用性能监控
func (pm *PerformanceMonitor) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Disable 禁用性能监控
func (pm *PerformanceMonitor) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// IsEnabled 检查是否启用了性能监控
func (pm *PerformanceMonitor) IsEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

func (pm *PerformanceMonitor) touch() {
	atomic.StoreInt64(&pm.metrics.LastUpdateTime, time.Now().UnixNano())
}

// RecordPortfolio 记录组合生成操作
func (pm *PerformanceMonitor) RecordPortfolio(success bool, tickets, duplicates int, duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}

	atomic.AddInt64(&pm.metrics.TotalPortfolios, 1)
	atomic.AddInt64(&pm.metrics.TotalPortfolioTime, int64(duration))

	if success {
		atomic.AddInt64(&pm.metrics.SuccessfulPortfolios, 1)
		atomic.AddInt64(&pm.metrics.TicketsGenerated, int64(tickets))
		atomic.AddInt64(&pm.metrics.DuplicatesAccepted, int64(duplicates))
	} else {
		atomic.AddInt64(&pm.metrics.FailedPortfolios, 1)
	}

	// 更新平均生成时间
	total := atomic.LoadInt64(&pm.metrics.TotalPortfolios)
	totalTime := atomic.LoadInt64(&pm.metrics.TotalPortfolioTime)
	atomic.StoreInt64(&pm.metrics.AveragePortfolioTime, totalTime/total)

	pm.touch()
}

// RecordWeights 记录权重计算
func (pm *PerformanceMonitor) RecordWeights(duration time.Duration, uniform bool) {
	if !pm.IsEnabled() {
		return
	}

	atomic.AddInt64(&pm.metrics.WeightComputations, 1)
	atomic.AddInt64(&pm.metrics.WeightTime, int64(duration))
	if uniform {
		atomic.AddInt64(&pm.metrics.UniformFallbacks, 1)
	}
	pm.touch()
}

// RecordCache 记录权重缓存访问
func (pm *PerformanceMonitor) RecordCache(hit bool) {
	if !pm.IsEnabled() {
		return
	}

	if hit {
		atomic.AddInt64(&pm.metrics.CacheHits, 1)
	} else {
		atomic.AddInt64(&pm.metrics.CacheMisses, 1)
	}
	pm.touch()
}

// RecordLockAcquisition 记录锁获取操作
func (pm *PerformanceMonitor) RecordLockAcquisition(success bool, duration time.Duration) {
	if !pm.IsEnabled() {
		return
	}

	if success {
		atomic.AddInt64(&pm.metrics.LockAcquisitions, 1)
		atomic.AddInt64(&pm.metrics.LockAcquisitionTime, int64(duration))
	} else {
		atomic.AddInt64(&pm.metrics.LockFailures, 1)
	}
	pm.touch()
}

// RecordStorageError 记录历史数据源错误
func (pm *PerformanceMonitor) RecordStorageError() {
	if !pm.IsEnabled() {
		return
	}

	atomic.AddInt64(&pm.metrics.StorageErrors, 1)
	pm.touch()
}

// GetMetrics 获取性能指标的副本
func (pm *PerformanceMonitor) GetMetrics() PerformanceMetrics {
	m := pm.metrics
	return PerformanceMetrics{
		TotalPortfolios:      atomic.LoadInt64(&m.TotalPortfolios),
		SuccessfulPortfolios: atomic.LoadInt64(&m.SuccessfulPortfolios),
		FailedPortfolios:     atomic.LoadInt64(&m.FailedPortfolios),
		TicketsGenerated:     atomic.LoadInt64(&m.TicketsGenerated),
		DuplicatesAccepted:   atomic.LoadInt64(&m.DuplicatesAccepted),
		WeightComputations:   atomic.LoadInt64(&m.WeightComputations),
		UniformFallbacks:     atomic.LoadInt64(&m.UniformFallbacks),
		WeightTime:           atomic.LoadInt64(&m.WeightTime),
		CacheHits:            atomic.LoadInt64(&m.CacheHits),
		CacheMisses:          atomic.LoadInt64(&m.CacheMisses),
		LockAcquisitions:     atomic.LoadInt64(&m.LockAcquisitions),
		LockAcquisitionTime:  atomic.LoadInt64(&m.LockAcquisitionTime),
		LockFailures:         atomic.LoadInt64(&m.LockFailures),
		AveragePortfolioTime: atomic.LoadInt64(&m.AveragePortfolioTime),
		TotalPortfolioTime:   atomic.LoadInt64(&m.TotalPortfolioTime),
		StorageErrors:        atomic.LoadInt64(&m.StorageErrors),
		StartTime:            atomic.LoadInt64(&m.StartTime),
		LastUpdateTime:       atomic.LoadInt64(&m.LastUpdateTime),
	}
}

// ResetMetrics 重置性能指标
func (pm *PerformanceMonitor) ResetMetrics() { pm.metrics.Reset() }
