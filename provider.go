package lotto

import (
	"io"
)

// nopCloser is returned for providers that hold no resources.
type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenHistoryProvider builds the provider selected by cfg.History, wrapped in a
// circuit breaker when one is enabled. The returned closer releases connections.
func OpenHistoryProvider(cfg *Config, logger Logger) (HistoryProvider, io.Closer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	var (
		provider HistoryProvider
		closer   io.Closer = nopCloser{}
	)
	switch cfg.History.Source {
	case HistorySourceFile:
		provider = NewFileHistoryStore(cfg.History.Path, logger)
	case HistorySourceSQLite:
		store, err := NewSQLiteHistoryStore(cfg.History.Path, logger)
		if err != nil {
			return nil, nil, err
		}
		provider, closer = store, store
	case HistorySourceRedis:
		client := NewRedisClientFromConfig(cfg.Redis)
		provider = NewRedisHistoryStoreWithConfig(client, cfg.History.Game, cfg.Lock, logger)
		closer = client
	}

	if cfg.CircuitBreaker != nil && cfg.CircuitBreaker.Enabled {
		provider = NewCircuitBreakerProvider(provider, cfg.CircuitBreaker, logger)
	}

	logger.Debug("Opened %s history provider", cfg.History.Source)
	return provider, closer, nil
}
