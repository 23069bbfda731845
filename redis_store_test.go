package lotto

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastLockConfig() *LockConfig {
	return &LockConfig{
		LockTimeout:    time.Second,
		RetryAttempts:  2,
		RetryInterval:  time.Millisecond,
		LockExpiration: 10 * time.Second,
	}
}

func drawJSON(t testing.TB, d Draw) string {
	t.Helper()
	data, err := json.Marshal(d)
	require.NoError(t, err)
	return string(data)
}

func TestRedisHistoryStore_LoadHistory(t *testing.T) {
	ctx := context.Background()
	key := HistoryKeyPrefix + "test"

	t.Run("加载历史", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		h := sampleHistory()
		mock.ExpectLRange(key, 0, -1).SetVal([]string{
			drawJSON(t, h[0]), drawJSON(t, h[1]), drawJSON(t, h[2]),
		})

		got, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Equal(t, h, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing_key_is_empty", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		mock.ExpectLRange(key, 0, -1).SetVal([]string{})

		got, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("transient_error_retried", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		h := sampleHistory()
		mock.ExpectLRange(key, 0, -1).SetErr(errors.New("read tcp 127.0.0.1:6379: i/o timeout"))
		mock.ExpectLRange(key, 0, -1).SetVal([]string{drawJSON(t, h[0])})

		got, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Len(t, got, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("permanent_error_not_retried", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		mock.ExpectLRange(key, 0, -1).SetErr(errors.New("WRONGTYPE Operation against a key holding the wrong kind of value"))

		_, err := store.LoadHistory(ctx)
		assert.ErrorIs(t, err, ErrStorageFailure)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("数据损坏", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		mock.ExpectLRange(key, 0, -1).SetVal([]string{drawJSON(t, sampleHistory()[0]), "{not json"})

		_, err := store.LoadHistory(ctx)
		assert.ErrorIs(t, err, ErrHistoryCorrupted)
		assert.Contains(t, err.Error(), key+"[1]")
	})
}

func TestRedisHistoryStore_AppendDraw(t *testing.T) {
	ctx := context.Background()
	historyKey := HistoryKeyPrefix + "test"
	lockKey := LockKeyPrefix + "history:test"

	expectLock := func(mock redismock.ClientMock) {
		mock.Regexp().ExpectSetNX(lockKey, `.+`, 10*time.Second).SetVal(true)
	}
	expectUnlock := func(mock redismock.ClientMock) {
		mock.Regexp().ExpectEval(regexp.QuoteMeta(releaseLockScript), []string{lockKey}, `.+`).SetVal(int64(1))
	}
	encoded := func(h HistoricalRecord) []string {
		out := make([]string, len(h))
		for i, d := range h {
			out[i] = drawJSON(t, d)
		}
		return out
	}

	t.Run("追加新一期", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		next := Draw{Round: 4, Date: "2025-01-14", Numbers: []int{49, 2, 17, 9, 30, 38, 21}}

		expectLock(mock)
		mock.ExpectLRange(historyKey, 0, -1).SetVal(encoded(sampleHistory()))
		mock.ExpectRPush(historyKey, drawJSON(t, next.Sorted())).SetVal(4)
		expectUnlock(mock)

		require.NoError(t, store.AppendDraw(ctx, next))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("重复期号", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		expectLock(mock)
		mock.ExpectLRange(historyKey, 0, -1).SetVal(encoded(sampleHistory()[:2]))
		expectUnlock(mock)

		err := store.AppendDraw(ctx, Draw{Round: 2, Numbers: []int{1, 2, 3, 4, 5, 6, 7}})
		assert.ErrorIs(t, err, ErrDuplicateDraw)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("older_round_rejected", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		expectLock(mock)
		mock.ExpectLRange(historyKey, 0, -1).SetVal(encoded(HistoricalRecord{{Round: 10, Numbers: []int{1, 2, 3, 4, 5, 6, 7}}}))
		expectUnlock(mock)

		err := store.AppendDraw(ctx, Draw{Round: 3, Numbers: []int{8, 9, 10, 11, 12, 13, 14}})
		assert.ErrorIs(t, err, ErrInvalidDraw)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("push_applied_despite_timeout", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		next := Draw{Round: 4, Numbers: []int{1, 2, 3, 4, 5, 6, 7}}
		h := sampleHistory()

		expectLock(mock)
		mock.ExpectLRange(historyKey, 0, -1).SetVal(encoded(h))
		mock.ExpectRPush(historyKey, drawJSON(t, next)).SetErr(errors.New("read tcp 127.0.0.1:6379: i/o timeout"))
		mock.ExpectLRange(historyKey, 0, -1).SetVal(encoded(h.Append(next)))
		expectUnlock(mock)

		// 只推送一次, 不会重复写入
		require.NoError(t, store.AppendDraw(ctx, next))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("push_failed", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		next := Draw{Round: 1, Numbers: []int{1, 2, 3, 4, 5, 6, 7}}
		expectLock(mock)
		mock.ExpectLRange(historyKey, 0, -1).SetVal([]string{})
		mock.ExpectRPush(historyKey, drawJSON(t, next)).SetErr(errors.New("read tcp 127.0.0.1:6379: i/o timeout"))
		mock.ExpectLRange(historyKey, 0, -1).SetVal([]string{})
		expectUnlock(mock)

		assert.ErrorIs(t, store.AppendDraw(ctx, next), ErrStorageFailure)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock_held_elsewhere", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		cfg := fastLockConfig()
		cfg.RetryAttempts = 1
		store := NewRedisHistoryStoreWithConfig(db, "test", cfg, nil)

		monitor := NewPerformanceMonitor()
		store.SetPerformanceMonitor(monitor)

		mock.Regexp().ExpectSetNX(lockKey, `.+`, 10*time.Second).SetVal(false)
		mock.Regexp().ExpectSetNX(lockKey, `.+`, 10*time.Second).SetVal(false)

		err := store.AppendDraw(ctx, Draw{Round: 1, Numbers: []int{1, 2, 3, 4, 5, 6, 7}})
		assert.ErrorIs(t, err, ErrLockAcquisitionFailed)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, int64(1), monitor.GetMetrics().LockFailures)
	})
}

func TestRedisHistoryStore_Portfolio(t *testing.T) {
	ctx := context.Background()

	p := &Portfolio{
		ID:        "5f0c7a0e-8b1e-4d1a-9a43-0e6f3c1d2b7a",
		Tickets:   []Ticket{{1, 5, 9, 14, 22, 37, 48}, {3, 8, 19, 27, 33, 41, 50}},
		MixRatio:  0.7,
		CreatedAt: time.Date(2025, 1, 10, 21, 30, 0, 0, time.UTC),
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	key := PortfolioKeyPrefix + p.ID

	t.Run("save_and_load", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)
		store.SetPortfolioTTL(time.Hour)

		mock.ExpectSet(key, data, time.Hour).SetVal("OK")
		mock.ExpectGet(key).SetVal(string(data))

		require.NoError(t, store.SavePortfolio(ctx, p))
		got, err := store.LoadPortfolio(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Tickets, got.Tickets)
		assert.True(t, p.CreatedAt.Equal(got.CreatedAt))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not_found", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		mock.ExpectGet(PortfolioKeyPrefix + "missing").RedisNil()

		_, err := store.LoadPortfolio(ctx, "missing")
		assert.ErrorIs(t, err, ErrPortfolioNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("corrupted", func(t *testing.T) {
		db, mock := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		mock.ExpectGet(key).SetVal("{oops")

		_, err := store.LoadPortfolio(ctx, p.ID)
		assert.ErrorIs(t, err, ErrDeserializationFailed)
	})

	t.Run("missing_id", func(t *testing.T) {
		db, _ := redismock.NewClientMock()
		store := NewRedisHistoryStoreWithConfig(db, "test", fastLockConfig(), nil)

		assert.ErrorIs(t, store.SavePortfolio(ctx, &Portfolio{}), ErrInvalidParameters)
		assert.ErrorIs(t, store.SavePortfolio(ctx, nil), ErrInvalidParameters)
	})
}
