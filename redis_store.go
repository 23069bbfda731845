package lotto

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisHistoryStore keeps the draw record of one game in a Redis list, oldest first,
// so several processes can share it. Appends are serialized by a distributed lock.
type RedisHistoryStore struct {
	redisClient    redis.Cmdable
	game           string
	lockManager    *DistributedLockManager
	lockExpiration time.Duration
	recovery       *ErrorRecovery
	portfolioTTL   time.Duration
	logger         Logger
}

// NewRedisHistoryStore creates a store with the default lock and retry settings
func NewRedisHistoryStore(redisClient redis.Cmdable, game string, logger Logger) *RedisHistoryStore {
	return NewRedisHistoryStoreWithConfig(redisClient, game, DefaultLockConfig(), logger)
}

// NewRedisHistoryStoreWithConfig creates a store whose lock and retry settings come from cfg
func NewRedisHistoryStoreWithConfig(
	redisClient redis.Cmdable, game string, cfg *LockConfig, logger Logger,
) *RedisHistoryStore {
	if logger == nil {
		logger = NewSilentLogger()
	}
	if cfg == nil {
		cfg = DefaultLockConfig()
	}
	if game == "" {
		game = DefaultGameName
	}

	handler := NewErrorHandlerWithDelay(logger, cfg.RetryInterval)
	return &RedisHistoryStore{
		redisClient:    redisClient,
		game:           game,
		lockManager:    NewLockManagerFromConfig(redisClient, cfg),
		lockExpiration: cfg.LockExpiration,
		recovery:       NewErrorRecovery(handler, cfg.RetryAttempts, logger),
		portfolioTTL:   DefaultPortfolioTTL,
		logger:         logger,
	}
}

// SetPortfolioTTL sets how long saved portfolios are kept
func (s *RedisHistoryStore) SetPortfolioTTL(ttl time.Duration) {
	if ttl > 0 {
		s.portfolioTTL = ttl
	}
}

// SetPerformanceMonitor records lock statistics into monitor
func (s *RedisHistoryStore) SetPerformanceMonitor(monitor *PerformanceMonitor) {
	s.lockManager.SetPerformanceMonitor(monitor)
}

func (s *RedisHistoryStore) historyKey() string { return HistoryKeyPrefix + s.game }
func (s *RedisHistoryStore) lockKey() string    { return "history:" + s.game }

// LoadHistory reads the whole record. A missing key is an empty record.
func (s *RedisHistoryStore) LoadHistory(ctx context.Context) (HistoricalRecord, error) {
	key := s.historyKey()
	s.logger.Debug("Loading history from Redis: key=%s", key)

	var raw []string
	err := s.recovery.ExecuteWithRetry(ctx, "lrange["+key+"]", func() error {
		var err error
		raw, err = s.redisClient.LRange(ctx, key, 0, -1).Result()
		return err
	})
	if err != nil {
		s.logger.Error("Failed to load history from Redis: key=%s, error=%v", key, err)
		return nil, ErrStorageFailure.WithOperation("LoadHistory").WithCause(err)
	}

	history := make(HistoricalRecord, 0, len(raw))
	for i, item := range raw {
		var d Draw
		if err := json.Unmarshal([]byte(item), &d); err != nil {
			s.logger.Error("Corrupted draw at %s[%d]: %v", key, i, err)
			return nil, ErrHistoryCorrupted.WithDetailsf("%s[%d]", key, i).WithCause(err)
		}
		history = append(history, d)
	}

	s.logger.Debug("Loaded %d draws from Redis: key=%s", len(history), key)
	return history, nil
}

// AppendDraw appends d under the history lock. A round already present is
// rejected with ErrDuplicateDraw, one older than the latest with ErrInvalidDraw.
//
// RPUSH is not idempotent, so it is sent once. When it fails the list is read
// again: a push that landed before the error counts as success.
func (s *RedisHistoryStore) AppendDraw(ctx context.Context, d Draw) error {
	data, err := json.Marshal(d.Sorted())
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}

	return s.lockManager.WithLock(ctx, s.lockKey(), s.lockExpiration, s.logger, func() error {
		history, err := s.LoadHistory(ctx)
		if err != nil {
			return err
		}
		if err := history.CheckNext(d); err != nil {
			return err
		}

		key := s.historyKey()
		if err := s.redisClient.RPush(ctx, key, string(data)).Err(); err != nil {
			after, loadErr := s.LoadHistory(ctx)
			if loadErr != nil || !after.HasRound(d.Round) {
				s.logger.Error("Failed to append draw %d to %s: %v", d.Round, key, err)
				return ErrStorageFailure.WithOperation("AppendDraw").WithCause(err)
			}
			s.logger.Warn("RPUSH of round %d to %s reported %v but the draw is stored", d.Round, key, err)
		}

		s.logger.Info("Appended draw round=%d to %s", d.Round, key)
		return nil
	})
}

// SavePortfolio stores p as JSON with the portfolio TTL
func (s *RedisHistoryStore) SavePortfolio(ctx context.Context, p *Portfolio) error {
	if p == nil || p.ID == "" {
		return ErrInvalidParameters.WithDetails("portfolio without id")
	}

	data, err := json.Marshal(p)
	if err != nil {
		return ErrSerializationFailed.WithCause(err)
	}
	if len(data) > MaxSerializationSize {
		return ErrSerializationFailed.WithDetailsf("portfolio %s is %d bytes, limit %d", p.ID, len(data), MaxSerializationSize)
	}

	key := PortfolioKeyPrefix + p.ID
	err = s.recovery.ExecuteWithRetry(ctx, "set["+key+"]", func() error {
		return s.redisClient.Set(ctx, key, data, s.portfolioTTL).Err()
	})
	if err != nil {
		s.logger.Error("Failed to save portfolio %s: %v", p.ID, err)
		return ErrStorageFailure.WithOperation("SavePortfolio").WithCause(err)
	}

	s.logger.Debug("Saved portfolio: key=%s, size=%d bytes, ttl=%v", key, len(data), s.portfolioTTL)
	return nil
}

// LoadPortfolio loads a saved portfolio; an unknown or expired id is ErrPortfolioNotFound
func (s *RedisHistoryStore) LoadPortfolio(ctx context.Context, id string) (*Portfolio, error) {
	key := PortfolioKeyPrefix + id

	var data []byte
	err := s.recovery.ExecuteWithRetry(ctx, "get["+key+"]", func() error {
		var err error
		data, err = s.redisClient.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			// Key doesn't exist - this is not an error condition, don't retry
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, ErrStorageFailure.WithOperation("LoadPortfolio").WithCause(err)
	}
	if len(data) == 0 {
		return nil, ErrPortfolioNotFound.WithDetailsf("id %s", id)
	}

	var p Portfolio
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrDeserializationFailed.WithDetailsf("portfolio %s", id).WithCause(err)
	}
	return &p, nil
}
