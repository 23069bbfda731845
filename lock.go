package lotto

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Locks are taken with SET NX (one round trip) and released with a Lua script
// that deletes the key only when it still holds the caller's token.
const (
	// releaseLockScript ensures only the lock owner can release the lock, so an
	// expired holder cannot delete a lock since granted to another process.
	releaseLockScript = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
)

// DistributedLockManager manages Redis distributed locks
type DistributedLockManager struct {
	redisClient   redis.Cmdable
	lockTimeout   time.Duration
	retryAttempts int
	retryInterval time.Duration

	performanceMonitor *PerformanceMonitor
}

// NewLockManagerWithRetry creates a new distributed lock manager with custom retry settings
func NewLockManagerWithRetry(
	redisClient redis.Cmdable, lockTimeout time.Duration, retryAttempts int, retryInterval time.Duration,
) *DistributedLockManager {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}
	return &DistributedLockManager{
		redisClient:   redisClient,
		lockTimeout:   lockTimeout,
		retryAttempts: retryAttempts,
		retryInterval: retryInterval,

		performanceMonitor: NewPerformanceMonitor(),
	}
}

// NewLockManagerFromConfig creates a lock manager from a LockConfig
func NewLockManagerFromConfig(redisClient redis.Cmdable, cfg *LockConfig) *DistributedLockManager {
	if cfg == nil {
		cfg = DefaultLockConfig()
	}
	return NewLockManagerWithRetry(redisClient, cfg.LockTimeout, cfg.RetryAttempts, cfg.RetryInterval)
}

func validateLockArgs(lockKey, lockValue string) error {
	if lockKey == "" {
		return ErrInvalidParameters.WithDetails("lock key is empty")
	}
	if lockValue == "" {
		return ErrInvalidParameters.WithDetails("lock value is empty")
	}
	return nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AcquireLock attempts to acquire a distributed lock, retrying retryAttempts times
func (m *DistributedLockManager) AcquireLock(ctx context.Context, lockKey, lockValue string, expireTime time.Duration) (bool, error) {
	if err := validateLockArgs(lockKey, lockValue); err != nil {
		return false, err
	}
	if expireTime <= 0 {
		expireTime = DefaultLockExpiration
	}

	fullLockKey := LockKeyPrefix + lockKey
	start := time.Now()
	fail := func(err error) (bool, error) {
		m.performanceMonitor.RecordLockAcquisition(false, time.Since(start))
		return false, err
	}

	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		acquired, err := m.redisClient.SetNX(ctx, fullLockKey, lockValue, expireTime).Result()
		if err != nil {
			if attempt == m.retryAttempts {
				return fail(ErrRedisConnectionFailed.WithCause(err))
			}
		} else if acquired {
			m.performanceMonitor.RecordLockAcquisition(true, time.Since(start))
			return true, nil
		}

		if attempt < m.retryAttempts {
			if err := sleepCtx(ctx, m.retryInterval); err != nil {
				return fail(err)
			}
		}
	}

	return fail(ErrLockAcquisitionFailed.WithDetailsf("key %s", lockKey))
}

// AcquireLockWithTimeout is AcquireLock bounded by timeout; running out of time
// is reported as ErrLockTimeout. A timeout <= 0 uses the manager's lock timeout.
func (m *DistributedLockManager) AcquireLockWithTimeout(
	ctx context.Context, lockKey, lockValue string, expireTime, timeout time.Duration,
) (bool, error) {
	if timeout <= 0 {
		timeout = m.lockTimeout
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	acquired, err := m.AcquireLock(timeoutCtx, lockKey, lockValue, expireTime)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return false, ErrLockTimeout.WithDetailsf("key %s after %v", lockKey, timeout)
	}
	return acquired, err
}

// ReleaseLock releases the lock if it is still held with lockValue. It returns
// false without error when the lock expired or belongs to someone else.
func (m *DistributedLockManager) ReleaseLock(ctx context.Context, lockKey, lockValue string) (bool, error) {
	if err := validateLockArgs(lockKey, lockValue); err != nil {
		return false, err
	}

	fullLockKey := LockKeyPrefix + lockKey

	var lastErr error
	for attempt := 0; attempt <= m.retryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		result, err := m.redisClient.Eval(ctx, releaseLockScript, []string{fullLockKey}, lockValue).Result()
		if err != nil {
			lastErr = err
			if attempt < m.retryAttempts {
				if err := sleepCtx(ctx, m.retryInterval); err != nil {
					return false, err
				}
			}
			continue
		}

		n, ok := result.(int64)
		return ok && n == 1, nil
	}

	return false, ErrLockReleaseFailure.WithCause(lastErr)
}

// WithLock runs fn while holding lockKey and releases the lock afterwards.
// Acquisition gives up after the manager's lock timeout.
func (m *DistributedLockManager) WithLock(
	ctx context.Context, lockKey string, expireTime time.Duration, logger Logger, fn func() error,
) error {
	if logger == nil {
		logger = NewSilentLogger()
	}

	lockValue := generateLockValue()
	acquired, err := m.AcquireLockWithTimeout(ctx, lockKey, lockValue, expireTime, m.lockTimeout)
	if err != nil {
		logger.Error("Lock acquisition error for key %s: %v", lockKey, err)
		return err
	}
	if !acquired {
		return ErrLockAcquisitionFailed.WithDetailsf("key %s", lockKey)
	}
	logger.Debug("Acquired lock for key %s", lockKey)

	defer func() {
		// release even when ctx was cancelled during fn
		released, releaseErr := m.ReleaseLock(context.WithoutCancel(ctx), lockKey, lockValue)
		switch {
		case releaseErr != nil:
			logger.Error("Failed to release lock for key %s: %v", lockKey, releaseErr)
		case released:
			logger.Debug("Released lock for key %s", lockKey)
		default:
			logger.Debug("Lock for key %s was already released or expired", lockKey)
		}
	}()

	return fn()
}

// SetPerformanceMonitor 设置性能监控器, 锁统计计入其中
func (m *DistributedLockManager) SetPerformanceMonitor(monitor *PerformanceMonitor) {
	if monitor != nil {
		m.performanceMonitor = monitor
	}
}
