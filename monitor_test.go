package lotto

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPerformanceMonitor(t *testing.T) {
	t.Run("record_portfolios", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		pm.RecordPortfolio(true, 10, 1, 2*time.Millisecond)
		pm.RecordPortfolio(true, 5, 0, time.Millisecond)
		pm.RecordPortfolio(false, 0, 0, time.Millisecond)

		m := pm.GetMetrics()
		assert.Equal(t, int64(3), m.TotalPortfolios)
		assert.Equal(t, int64(2), m.SuccessfulPortfolios)
		assert.Equal(t, int64(1), m.FailedPortfolios)
		assert.Equal(t, int64(15), m.TicketsGenerated)
		assert.Equal(t, int64(1), m.DuplicatesAccepted)
		assert.InDelta(t, 66.67, m.GetSuccessRate(), 0.01)
	})

	t.Run("cache_hit_rate", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		m := pm.GetMetrics()
		assert.Equal(t, 0.0, m.GetCacheHitRate())

		pm.RecordCache(true)
		pm.RecordCache(true)
		pm.RecordCache(true)
		pm.RecordCache(false)
		m = pm.GetMetrics()
		assert.Equal(t, 75.0, m.GetCacheHitRate())
	})

	t.Run("lock_metrics", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		pm.RecordLockAcquisition(true, 10*time.Millisecond)
		pm.RecordLockAcquisition(true, 30*time.Millisecond)
		pm.RecordLockAcquisition(false, time.Second)

		m := pm.GetMetrics()
		assert.Equal(t, int64(2), m.LockAcquisitions)
		assert.Equal(t, int64(1), m.LockFailures)
		assert.Equal(t, 20*time.Millisecond, m.GetAverageLockTime())
	})

	t.Run("禁用后不记录", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		pm.Disable()
		assert.False(t, pm.IsEnabled())

		pm.RecordPortfolio(true, 10, 0, time.Millisecond)
		pm.RecordWeights(time.Millisecond, true)
		pm.RecordStorageError()
		m := pm.GetMetrics()
		assert.Equal(t, int64(0), m.TotalPortfolios)
		assert.Equal(t, int64(0), m.WeightComputations)
		assert.Equal(t, int64(0), m.StorageErrors)

		pm.Enable()
		pm.RecordWeights(time.Millisecond, true)
		m = pm.GetMetrics()
		assert.Equal(t, int64(1), m.WeightComputations)
		assert.Equal(t, int64(1), m.UniformFallbacks)
	})

	t.Run("reset", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		pm.RecordPortfolio(true, 10, 0, time.Millisecond)
		pm.ResetMetrics()

		m := pm.GetMetrics()
		assert.Equal(t, int64(0), m.TotalPortfolios)
		assert.Equal(t, int64(0), m.TicketsGenerated)
		assert.NotZero(t, m.StartTime)
	})

	t.Run("concurrent_recording", func(t *testing.T) {
		pm := NewPerformanceMonitor()
		var wg sync.WaitGroup
		for range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					pm.RecordPortfolio(true, 1, 0, time.Microsecond)
				}
			}()
		}
		wg.Wait()

		m := pm.GetMetrics()
		assert.Equal(t, int64(1000), m.TotalPortfolios)
		assert.Equal(t, int64(1000), m.TicketsGenerated)
	})
}
