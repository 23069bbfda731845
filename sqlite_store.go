package lotto

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteHistoryStore persists draws and generated portfolios in a local SQLite database.
type SQLiteHistoryStore struct {
	db       *sql.DB
	mu       sync.Mutex
	recovery *ErrorRecovery
	logger   Logger
}

// NewSQLiteHistoryStore opens (or creates) the database at path and runs migrations.
func NewSQLiteHistoryStore(path string, logger Logger) (*SQLiteHistoryStore, error) {
	if logger == nil {
		logger = NewSilentLogger()
	}

	// pragmas in the DSN apply to every pooled connection
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, ErrStorageFailure.WithDetailsf("open sqlite %s", path).WithCause(err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, ErrStorageFailure.WithDetailsf("open sqlite %s", path).WithCause(err)
	}

	s := &SQLiteHistoryStore{
		db:       db,
		recovery: NewErrorRecovery(NewDefaultErrorHandler(logger), DefaultRetryAttempts, logger),
		logger:   logger,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, ErrStorageFailure.WithDetails("migrate").WithCause(err)
	}

	logger.Info("sqlite history store opened: %s", path)
	return s, nil
}

func sqliteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func (s *SQLiteHistoryStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS draws (
			round      INTEGER PRIMARY KEY,
			draw_date  TEXT NOT NULL DEFAULT '',
			numbers    TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS portfolios (
			id                  TEXT PRIMARY KEY,
			created_at          INTEGER NOT NULL,
			mix_ratio           REAL NOT NULL,
			empty_history       INTEGER NOT NULL,
			duplicates_accepted INTEGER NOT NULL,
			tickets             TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_portfolios_created ON portfolios(created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// Close closes the database
func (s *SQLiteHistoryStore) Close() error { return s.db.Close() }

// LoadHistory returns all draws ordered by round, oldest first.
func (s *SQLiteHistoryStore) LoadHistory(ctx context.Context) (HistoricalRecord, error) {
	var history HistoricalRecord
	err := s.recovery.ExecuteWithRetry(ctx, "load draws", func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT round, draw_date, numbers FROM draws ORDER BY round ASC`)
		if err != nil {
			return err
		}
		defer rows.Close()

		history = HistoricalRecord{}
		for rows.Next() {
			var (
				d       Draw
				numbers string
			)
			if err := rows.Scan(&d.Round, &d.Date, &numbers); err != nil {
				return err
			}
			if err := json.Unmarshal([]byte(numbers), &d.Numbers); err != nil {
				return ErrHistoryCorrupted.WithDetailsf("round %d", d.Round).WithCause(err)
			}
			history = append(history, d)
		}
		return rows.Err()
	})
	if err != nil {
		s.logger.Error("Failed to load draws from sqlite: %v", err)
		if errors.Is(err, ErrHistoryCorrupted) {
			return nil, err
		}
		return nil, ErrStorageFailure.WithOperation("LoadHistory").WithCause(err)
	}
	return history, nil
}

// AppendDraw inserts d. A round already present is rejected with ErrDuplicateDraw,
// one older than the latest recorded round with ErrInvalidDraw.
func (s *SQLiteHistoryStore) AppendDraw(ctx context.Context, d Draw) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	numbers, err := json.Marshal(sortedCopy(d.Numbers))
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}
	defer tx.Rollback()

	var exists, latest int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(CASE WHEN round = ? THEN 1 END), COALESCE(MAX(round), 0) FROM draws`, d.Round,
	).Scan(&exists, &latest); err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}
	if exists > 0 {
		return ErrDuplicateDraw.WithDetailsf("round %d", d.Round)
	}
	if d.Round < latest {
		return ErrInvalidDraw.WithDetailsf("round %d is older than the latest round %d", d.Round, latest)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO draws (round, draw_date, numbers, created_at) VALUES (?,?,?,?)`,
		d.Round, d.Date, string(numbers), time.Now().Unix(),
	); err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}
	if err := tx.Commit(); err != nil {
		return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
	}

	s.logger.Info("Appended draw round=%d to sqlite", d.Round)
	return nil
}

// SavePortfolio stores p, replacing any portfolio with the same id.
func (s *SQLiteHistoryStore) SavePortfolio(ctx context.Context, p *Portfolio) error {
	if p == nil || p.ID == "" {
		return ErrInvalidParameters.WithDetails("portfolio without id")
	}

	tickets, err := json.Marshal(p.Tickets)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.recovery.ExecuteWithRetry(ctx, "save portfolio", func() error {
		_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO portfolios
			(id, created_at, mix_ratio, empty_history, duplicates_accepted, tickets)
			VALUES (?,?,?,?,?,?)`,
			p.ID, p.CreatedAt.UnixNano(), p.MixRatio, p.EmptyHistory, p.DuplicatesAccepted, string(tickets),
		)
		return err
	})
	if err != nil {
		return ErrStorageFailure.WithOperation("SavePortfolio").WithCause(err)
	}

	s.logger.Debug("Saved portfolio %s with %d tickets", p.ID, len(p.Tickets))
	return nil
}

// LoadPortfolio loads a saved portfolio; an unknown id is ErrPortfolioNotFound.
func (s *SQLiteHistoryStore) LoadPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, created_at, mix_ratio, empty_history, duplicates_accepted, tickets
		FROM portfolios WHERE id = ?`, id)

	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPortfolioNotFound.WithDetailsf("id %s", id)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPortfolios returns up to limit portfolios, newest first. A limit <= 0 returns all.
func (s *SQLiteHistoryStore) ListPortfolios(ctx context.Context, limit int) ([]*Portfolio, error) {
	query := `SELECT id, created_at, mix_ratio, empty_history, duplicates_accepted, tickets
		FROM portfolios ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ErrStorageFailure.WithOperation("ListPortfolios").WithCause(err)
	}
	defer rows.Close()

	var out []*Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, ErrStorageFailure.WithOperation("ListPortfolios").WithCause(err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPortfolio(row rowScanner) (*Portfolio, error) {
	var (
		p         Portfolio
		createdAt int64
		tickets   string
	)
	if err := row.Scan(&p.ID, &createdAt, &p.MixRatio, &p.EmptyHistory, &p.DuplicatesAccepted, &tickets); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, ErrStorageFailure.WithOperation("scan portfolio").WithCause(err)
	}
	if err := json.Unmarshal([]byte(tickets), &p.Tickets); err != nil {
		return nil, ErrDeserializationFailed.WithDetailsf("portfolio %s", p.ID).WithCause(err)
	}
	p.CreatedAt = time.Unix(0, createdAt)
	return &p, nil
}
