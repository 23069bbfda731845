package lotto

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteHistoryStore {
	t.Helper()
	store, err := NewSQLiteHistoryStore(filepath.Join(t.TempDir(), "lotto.db"), NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteHistoryStore_Draws(t *testing.T) {
	ctx := context.Background()

	t.Run("empty_database", func(t *testing.T) {
		store := newTestSQLiteStore(t)
		h, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Empty(t, h)
	})

	t.Run("按期号排序", func(t *testing.T) {
		store := newTestSQLiteStore(t)
		h := sampleHistory()
		for _, d := range h {
			require.NoError(t, store.AppendDraw(ctx, d))
		}

		got, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Equal(t, h, got)
	})

	t.Run("older_round_rejected", func(t *testing.T) {
		store := newTestSQLiteStore(t)
		require.NoError(t, store.AppendDraw(ctx, Draw{Round: 10, Numbers: []int{1, 2, 3, 4, 5, 6, 7}}))
		assert.ErrorIs(t, store.AppendDraw(ctx, Draw{Round: 3, Numbers: []int{8, 9, 10, 11, 12, 13, 14}}), ErrInvalidDraw)

		got, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		latest, ok := got.Latest()
		require.True(t, ok)
		assert.Equal(t, 10, latest.Round)
		assert.Len(t, got.Window(1), 1)
	})

	t.Run("pragmas_on_every_connection", func(t *testing.T) {
		store := newTestSQLiteStore(t)

		// 同时持有两个连接, 连接池必须新建第二个
		first, err := store.db.Conn(ctx)
		require.NoError(t, err)
		defer first.Close()
		second, err := store.db.Conn(ctx)
		require.NoError(t, err)
		defer second.Close()

		for _, conn := range []*sql.Conn{first, second} {
			var timeout int
			require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout))
			assert.Equal(t, 5000, timeout)

			var mode string
			require.NoError(t, conn.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode))
			assert.Equal(t, "wal", mode)
		}
	})

	t.Run("duplicate_round", func(t *testing.T) {
		store := newTestSQLiteStore(t)
		d := sampleHistory()[0]

		require.NoError(t, store.AppendDraw(ctx, d))
		assert.ErrorIs(t, store.AppendDraw(ctx, d), ErrDuplicateDraw)
	})

	t.Run("numbers_stored_sorted", func(t *testing.T) {
		store := newTestSQLiteStore(t)
		require.NoError(t, store.AppendDraw(ctx, Draw{Round: 9, Numbers: []int{40, 2, 33, 7, 19, 25, 11}}))

		got, err := store.LoadHistory(ctx)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, []int{2, 7, 11, 19, 25, 33, 40}, got[0].Numbers)
	})

	t.Run("persists_across_reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lotto.db")
		store, err := NewSQLiteHistoryStore(path, nil)
		require.NoError(t, err)
		require.NoError(t, store.AppendDraw(ctx, sampleHistory()[0]))
		require.NoError(t, store.Close())

		reopened, err := NewSQLiteHistoryStore(path, nil)
		require.NoError(t, err)
		defer reopened.Close()

		h, err := reopened.LoadHistory(ctx)
		require.NoError(t, err)
		assert.Len(t, h, 1)
	})
}

func TestSQLiteHistoryStore_Portfolios(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	base := time.Date(2025, 1, 10, 21, 30, 0, 0, time.UTC)
	portfolios := []*Portfolio{
		{ID: "p-1", Tickets: []Ticket{{1, 2, 3, 4, 5, 6, 7}}, MixRatio: 0.7, CreatedAt: base},
		{ID: "p-2", Tickets: []Ticket{{8, 9, 10, 11, 12, 13, 14}}, MixRatio: 0.5, EmptyHistory: true, CreatedAt: base.Add(time.Hour)},
		{ID: "p-3", Tickets: []Ticket{{1, 2, 3, 4, 5, 6, 7}, {1, 2, 3, 4, 5, 6, 7}}, MixRatio: 1, DuplicatesAccepted: 1, CreatedAt: base.Add(2 * time.Hour)},
	}
	for _, p := range portfolios {
		require.NoError(t, store.SavePortfolio(ctx, p))
	}

	t.Run("load", func(t *testing.T) {
		got, err := store.LoadPortfolio(ctx, "p-2")
		require.NoError(t, err)
		assert.Equal(t, portfolios[1].Tickets, got.Tickets)
		assert.Equal(t, 0.5, got.MixRatio)
		assert.True(t, got.EmptyHistory)
		assert.True(t, base.Add(time.Hour).Equal(got.CreatedAt))
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := store.LoadPortfolio(ctx, "nope")
		assert.ErrorIs(t, err, ErrPortfolioNotFound)
	})

	t.Run("list_newest_first", func(t *testing.T) {
		all, err := store.ListPortfolios(ctx, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "p-3", all[0].ID)
		assert.Equal(t, 1, all[0].DuplicatesAccepted)

		limited, err := store.ListPortfolios(ctx, 2)
		require.NoError(t, err)
		require.Len(t, limited, 2)
		assert.Equal(t, "p-2", limited[1].ID)
	})

	t.Run("replace", func(t *testing.T) {
		updated := *portfolios[0]
		updated.MixRatio = 0.3
		require.NoError(t, store.SavePortfolio(ctx, &updated))

		got, err := store.LoadPortfolio(ctx, "p-1")
		require.NoError(t, err)
		assert.Equal(t, 0.3, got.MixRatio)
	})

	t.Run("invalid", func(t *testing.T) {
		assert.ErrorIs(t, store.SavePortfolio(ctx, &Portfolio{}), ErrInvalidParameters)
	})
}
