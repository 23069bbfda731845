package lotto

import "time"

const (
	// DefaultMaxNumber is the default upper bound N of the valid number range [1, N]
	DefaultMaxNumber = 50

	// DefaultDrawSize is the default number of distinct numbers K in a draw or ticket
	DefaultDrawSize = 7

	// DefaultPortfolioSize is the default number of tickets per portfolio
	DefaultPortfolioSize = 10

	// DefaultMixRatio is the default fraction of a ticket chosen by weighted sampling
	DefaultMixRatio = 0.7

	// DefaultSmoothing is the default Laplace smoothing constant added to every count
	DefaultSmoothing = 1.0

	// DefaultMaxDuplicateRetries bounds regeneration of duplicate tickets in a portfolio
	DefaultMaxDuplicateRetries = 10

	// DefaultDecayFactor weights every draw equally
	DefaultDecayFactor = 1.0

	// DefaultWindowSize of zero uses the full history
	DefaultWindowSize = 0

	// DefaultRecentWindow is the number of recent draws used for hot/cold classification
	DefaultRecentWindow = 20

	// ProbabilityTolerance is the tolerance for probability sum validation
	ProbabilityTolerance = 0.0001

	// MaxDuplicateRetries is the maximum configurable duplicate retry count
	MaxDuplicateRetries = 1000

	// DefaultSecureCacheSize is the default number of cached floats for SecureRandomGenerator
	DefaultSecureCacheSize = 256
)

// 回测
const (
	// MinTrainingDraws is the number of draws that always precede the first backtested draw
	MinTrainingDraws = 10

	// DefaultBacktestDraws is the default number of held-out draws replayed by Backtest
	DefaultBacktestDraws = 100

	// DefaultBacktestTickets is the default number of tickets per backtested draw
	DefaultBacktestTickets = 6

	// DefaultBacktestSeed is the default seed of a backtest
	DefaultBacktestSeed = 42

	// BacktestSignificance is the p-value below which strategies are considered different
	BacktestSignificance = 0.05
)

const (
	// DefaultLockTimeout is the default timeout for acquiring distributed locks
	DefaultLockTimeout = 30 * time.Second

	// DefaultRetryAttempts is the default number of retry attempts
	DefaultRetryAttempts = 3

	// DefaultRetryInterval is the default interval between retry attempts
	DefaultRetryInterval = 100 * time.Millisecond

	// DefaultLockExpiration is the default expiration time for locks
	DefaultLockExpiration = 30 * time.Second

	// MaxRetryAttempts is the maximum number of retry attempts allowed
	MaxRetryAttempts = 10

	// LockKeyPrefix is the prefix for Redis lock keys
	LockKeyPrefix = "lotto:lock:"

	// HistoryKeyPrefix is the prefix for Redis history lists
	HistoryKeyPrefix = "lotto:history:"

	// DefaultGameName is the default game key used by shared history stores
	DefaultGameName = "default"
)

const (
	// DefaultCircuitBreakerName is the default name for Circuit Breaker
	DefaultCircuitBreakerName = "lotto-history"

	// DefaultCircuitBreakerMaxRequests is the default max requests
	DefaultCircuitBreakerMaxRequests = 3

	// DefaultCircuitBreakerInterval is the default interval
	DefaultCircuitBreakerInterval = 60 * time.Second

	// DefaultCircuitBreakerTimeout is the default timeout
	DefaultCircuitBreakerTimeout = 30 * time.Second

	// DefaultCircuitBreakerFailureRatio is the default failure ratio
	DefaultCircuitBreakerFailureRatio = 0.6

	// DefaultCircuitBreakerMinRequests is the default min requests
	DefaultCircuitBreakerMinRequests = 3

	// DefaultCircuitBreakerOnStateChange is the default on state change
	DefaultCircuitBreakerOnStateChange = true
)

const (
	DefaultRedisAddr         = "localhost:6379"
	DefaultRedisPassword     = ""
	DefaultRedisDB           = 0
	DefaultRedisPoolSize     = 10
	DefaultRedisMinIdleConns = 2
	DefaultRedisMaxRetries   = 3
	DefaultRedisDialTimeout  = 5 * time.Second
	DefaultRedisReadTimeout  = 3 * time.Second
	DefaultRedisWriteTimeout = 3 * time.Second
	DefaultRedisPoolTimeout  = 4 * time.Second
)

const (
	// HistorySourceFile reads draws from a YAML file
	HistorySourceFile = "file"

	// HistorySourceRedis reads draws from a Redis list
	HistorySourceRedis = "redis"

	// HistorySourceSQLite reads draws from a SQLite database
	HistorySourceSQLite = "sqlite"

	// DefaultHistorySource is the default history source
	DefaultHistorySource = HistorySourceFile

	// DefaultHistoryPath is the default history file path
	DefaultHistoryPath = "draws.yaml"
)

// DefaultScheduleCron fires at 21:30 on Tuesday, Thursday and Friday, after the draws.
const DefaultScheduleCron = "0 30 21 * * 2,4,5"

const (
	// PortfolioKeyPrefix is the prefix for Redis portfolio keys
	PortfolioKeyPrefix = "lotto:portfolio:"

	// DefaultPortfolioTTL keeps saved portfolios long enough to evaluate them against the next draws
	DefaultPortfolioTTL = 30 * 24 * time.Hour

	// MaxSerializationSize is the maximum allowed size for a serialized portfolio (1MB)
	MaxSerializationSize = 1024 * 1024
)
