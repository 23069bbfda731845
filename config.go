package lotto

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
)

// Config 完整配置结构
type Config struct {
	// 生成器配置
	Generator *GeneratorConfig `mapstructure:"generator"`

	// 历史数据源配置
	History *HistoryConfig `mapstructure:"history"`

	// 分布式锁配置
	Lock *LockConfig `mapstructure:"lock"`

	// Redis 配置
	Redis *RedisConfig `mapstructure:"redis"`

	// 熔断器配置
	CircuitBreaker *CircuitBreakerConfig `mapstructure:"circuit_breaker"`

	// 日志配置
	Log *LogConfig `mapstructure:"log"`

	// 定时任务配置
	Schedule *ScheduleConfig `mapstructure:"schedule"`
}

// Validate validates every section. Nil sections are reported as invalid.
func (c *Config) Validate() error {
	if c.Generator == nil {
		return newConfigError("generator section is missing")
	}
	if err := c.Generator.Validate(); err != nil {
		return err
	}
	if c.History == nil {
		return newConfigError("history section is missing")
	}
	if err := c.History.Validate(); err != nil {
		return err
	}
	if c.Lock != nil {
		if err := c.Lock.Validate(); err != nil {
			return err
		}
	}

	// 验证 Redis 配置
	if c.History.Source == HistorySourceRedis {
		if c.Redis == nil || c.Redis.Addr == "" {
			return newConfigError("redis.addr is required for the redis history source")
		}
		if c.Redis.PoolSize <= 0 {
			return newConfigError("redis.pool_size must be positive, got %d", c.Redis.PoolSize)
		}
	}

	if c.CircuitBreaker != nil && c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureRatio <= 0 || c.CircuitBreaker.FailureRatio > 1 {
			return newConfigError("circuit_breaker.failure_ratio must be in (0, 1], got %v",
				c.CircuitBreaker.FailureRatio)
		}
	}
	return nil
}

// GeneratorConfig configures ticket generation.
type GeneratorConfig struct {
	// MaxNumber is N, the upper bound of the valid range [1, N]
	MaxNumber int `mapstructure:"max_number" json:"max_number"`

	// DrawSize is K, the count of distinct numbers in a draw and in a ticket
	DrawSize int `mapstructure:"draw_size" json:"draw_size"`

	PortfolioSize int     `mapstructure:"portfolio_size" json:"portfolio_size"`
	MixRatio      float64 `mapstructure:"mix_ratio" json:"mix_ratio"`

	// Smoothing is the additive constant applied to every count, so that a number
	// never seen still has a positive weight
	Smoothing float64 `mapstructure:"smoothing" json:"smoothing"`

	// UniqueTickets enables regeneration of exact duplicate tickets in a portfolio
	UniqueTickets       bool `mapstructure:"unique_tickets" json:"unique_tickets"`
	MaxDuplicateRetries int  `mapstructure:"max_duplicate_retries" json:"max_duplicate_retries"`

	// WindowSize limits frequency counting to the most recent draws, 0 for all
	WindowSize int `mapstructure:"window_size" json:"window_size"`

	// DecayFactor multiplies a draw's contribution once per newer draw; 1 disables decay
	DecayFactor float64 `mapstructure:"decay_factor" json:"decay_factor"`

	// Seed makes generation reproducible when set
	Seed *int64 `mapstructure:"seed" json:"seed,omitempty"`
}

// DefaultGeneratorConfig returns the default 7-of-50 configuration.
func DefaultGeneratorConfig() *GeneratorConfig {
	return &GeneratorConfig{
		MaxNumber:           DefaultMaxNumber,
		DrawSize:            DefaultDrawSize,
		PortfolioSize:       DefaultPortfolioSize,
		MixRatio:            DefaultMixRatio,
		Smoothing:           DefaultSmoothing,
		UniqueTickets:       false,
		MaxDuplicateRetries: DefaultMaxDuplicateRetries,
		WindowSize:          DefaultWindowSize,
		DecayFactor:         DefaultDecayFactor,
	}
}

// Validate returns a ConfigurationError for the first invalid field. Values are never clamped.
func (c *GeneratorConfig) Validate() error {
	switch {
	case c.MaxNumber <= 0:
		return newConfigError("max_number must be positive, got %d", c.MaxNumber)
	case c.DrawSize <= 0:
		return newConfigError("draw_size must be positive, got %d", c.DrawSize)
	case c.DrawSize > c.MaxNumber:
		return newConfigError("draw_size %d exceeds max_number %d", c.DrawSize, c.MaxNumber)
	case c.PortfolioSize <= 0:
		return newConfigError("portfolio_size must be positive, got %d", c.PortfolioSize)
	}
	if err := validateMixRatio(c.MixRatio); err != nil {
		return err
	}
	switch {
	case c.Smoothing <= 0:
		return newConfigError("smoothing must be positive, got %v", c.Smoothing)
	case c.MaxDuplicateRetries < 0 || c.MaxDuplicateRetries > MaxDuplicateRetries:
		return newConfigError("max_duplicate_retries must be in [0, %d], got %d",
			MaxDuplicateRetries, c.MaxDuplicateRetries)
	case c.WindowSize < 0:
		return newConfigError("window_size cannot be negative, got %d", c.WindowSize)
	case c.DecayFactor <= 0 || c.DecayFactor > 1:
		return newConfigError("decay_factor must be in (0, 1], got %v", c.DecayFactor)
	}
	return nil
}

// clone returns a copy that does not share Seed with c.
func (c *GeneratorConfig) clone() GeneratorConfig {
	out := *c
	if c.Seed != nil {
		seed := *c.Seed
		out.Seed = &seed
	}
	return out
}

func validateMixRatio(mix float64) error {
	// NaN fails both comparisons
	if !(mix >= 0 && mix <= 1) {
		return newConfigError("mix_ratio must be in [0, 1], got %v", mix)
	}
	return nil
}

// HistoryConfig selects where draws are read from.
type HistoryConfig struct {
	Source string `mapstructure:"source"`

	// Path is the YAML file for the file source and the database file for sqlite
	Path string `mapstructure:"path"`

	// Game namespaces Redis keys when several games share one server
	Game string `mapstructure:"game"`
}

// Validate validates the history configuration
func (c *HistoryConfig) Validate() error {
	switch c.Source {
	case HistorySourceFile, HistorySourceSQLite:
		if c.Path == "" {
			return newConfigError("history.path is required for the %s source", c.Source)
		}
	case HistorySourceRedis:
		if c.Game == "" {
			return newConfigError("history.game is required for the redis source")
		}
	default:
		return newConfigError("unknown history.source %q", c.Source)
	}
	return nil
}

// LockConfig configures the distributed lock guarding shared history appends.
type LockConfig struct {
	LockTimeout    time.Duration `mapstructure:"lock_timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryInterval  time.Duration `mapstructure:"retry_interval"`
	LockExpiration time.Duration `mapstructure:"lock_expiration"`
}

// DefaultLockConfig returns the default lock configuration
func DefaultLockConfig() *LockConfig {
	return &LockConfig{
		LockTimeout:    DefaultLockTimeout,
		RetryAttempts:  DefaultRetryAttempts,
		RetryInterval:  DefaultRetryInterval,
		LockExpiration: DefaultLockExpiration,
	}
}

// Validate validates the lock configuration
func (c *LockConfig) Validate() error {
	if c.LockTimeout <= 0 {
		return newConfigError("lock.lock_timeout must be positive, got %v", c.LockTimeout)
	}
	if c.RetryAttempts < 0 || c.RetryAttempts > MaxRetryAttempts {
		return newConfigError("lock.retry_attempts must be in [0, %d], got %d", MaxRetryAttempts, c.RetryAttempts)
	}
	if c.RetryInterval < 0 {
		return newConfigError("lock.retry_interval cannot be negative, got %v", c.RetryInterval)
	}
	if c.LockExpiration <= 0 {
		return newConfigError("lock.lock_expiration must be positive, got %v", c.LockExpiration)
	}
	return nil
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 连接配置
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// 连接池配置
	PoolSize     int `mapstructure:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries"`

	// 超时配置
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
}

// DefaultRedisConfig 返回默认的Redis配置
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         DefaultRedisAddr,
		Password:     DefaultRedisPassword,
		DB:           DefaultRedisDB,
		PoolSize:     DefaultRedisPoolSize,
		MinIdleConns: DefaultRedisMinIdleConns,
		MaxRetries:   DefaultRedisMaxRetries,
		DialTimeout:  DefaultRedisDialTimeout,
		ReadTimeout:  DefaultRedisReadTimeout,
		WriteTimeout: DefaultRedisWriteTimeout,
		PoolTimeout:  DefaultRedisPoolTimeout,
	}
}

// NewRedisClientFromConfig 从配置创建Redis客户端
func NewRedisClientFromConfig(config *RedisConfig) *redis.Client {
	if config == nil {
		config = DefaultRedisConfig()
	}

	return redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolTimeout:  config.PoolTimeout,
	})
}

// CircuitBreakerConfig 熔断器配置
type CircuitBreakerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Name          string        `mapstructure:"name"`
	MaxRequests   uint32        `mapstructure:"max_requests"`
	Interval      time.Duration `mapstructure:"interval"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FailureRatio  float64       `mapstructure:"failure_ratio"`
	MinRequests   uint32        `mapstructure:"min_requests"`
	OnStateChange bool          `mapstructure:"on_state_change"`
}

// DefaultCircuitBreakerConfig 返回默认熔断器配置
func DefaultCircuitBreakerConfig() *CircuitBreakerConfig {
	return &CircuitBreakerConfig{
		Enabled:       true,
		Name:          DefaultCircuitBreakerName,
		MaxRequests:   DefaultCircuitBreakerMaxRequests,
		Interval:      DefaultCircuitBreakerInterval,
		Timeout:       DefaultCircuitBreakerTimeout,
		FailureRatio:  DefaultCircuitBreakerFailureRatio,
		MinRequests:   DefaultCircuitBreakerMinRequests,
		OnStateChange: DefaultCircuitBreakerOnStateChange,
	}
}

// LogConfig 日志配置
type LogConfig struct {
	Level   string `mapstructure:"level"`
	NoColor bool   `mapstructure:"no_color"`
}

// ScheduleConfig 定时任务配置
type ScheduleConfig struct {
	// Cron is a six-field (seconds first) cron expression
	Cron string `mapstructure:"cron"`
}

// DefaultConfig returns a configuration equal to the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Generator: DefaultGeneratorConfig(),
		History: &HistoryConfig{
			Source: DefaultHistorySource,
			Path:   DefaultHistoryPath,
			Game:   DefaultGameName,
		},
		Lock:           DefaultLockConfig(),
		Redis:          DefaultRedisConfig(),
		CircuitBreaker: DefaultCircuitBreakerConfig(),
		Log:            &LogConfig{Level: "info"},
		Schedule:       &ScheduleConfig{Cron: DefaultScheduleCron},
	}
}

// ConfigManager 配置管理器
type ConfigManager struct {
	viper  *viper.Viper
	mu     sync.RWMutex
	config *Config
	logger Logger
}

// NewConfigManager 创建配置管理器
func NewConfigManager() *ConfigManager {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/lotto")
	v.AddConfigPath("$HOME/.lotto")

	// 设置环境变量前缀
	v.SetEnvPrefix("LOTTO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cm := &ConfigManager{viper: v, logger: NewSilentLogger()}
	cm.setDefaults()
	return cm
}

// NewConfigManagerWithFile 创建使用指定配置文件的配置管理器
func NewConfigManagerWithFile(path string) *ConfigManager {
	cm := NewConfigManager()
	if path != "" {
		cm.viper.SetConfigFile(path)
	}
	return cm
}

// SetLogger sets the logger used for reload diagnostics
func (cm *ConfigManager) SetLogger(logger Logger) {
	if logger != nil {
		cm.logger = logger
	}
}

// Viper exposes the underlying viper instance, e.g. for binding CLI flags.
func (cm *ConfigManager) Viper() *viper.Viper { return cm.viper }

// LoadConfig 加载配置
func (cm *ConfigManager) LoadConfig() (*Config, error) {
	// 读取配置文件
	if err := cm.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// 配置文件不存在时使用默认配置
	}

	config, err := cm.unmarshal()
	if err != nil {
		return nil, err
	}

	cm.mu.Lock()
	cm.config = config
	cm.mu.Unlock()
	return config, nil
}

func (cm *ConfigManager) unmarshal() (*Config, error) {
	config := DefaultConfig()
	if err := cm.viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

// setDefaults 设置默认配置值
func (cm *ConfigManager) setDefaults() {
	// 生成器默认配置
	cm.viper.SetDefault("generator.max_number", DefaultMaxNumber)
	cm.viper.SetDefault("generator.draw_size", DefaultDrawSize)
	cm.viper.SetDefault("generator.portfolio_size", DefaultPortfolioSize)
	cm.viper.SetDefault("generator.mix_ratio", DefaultMixRatio)
	cm.viper.SetDefault("generator.smoothing", DefaultSmoothing)
	cm.viper.SetDefault("generator.unique_tickets", false)
	cm.viper.SetDefault("generator.max_duplicate_retries", DefaultMaxDuplicateRetries)
	cm.viper.SetDefault("generator.window_size", DefaultWindowSize)
	cm.viper.SetDefault("generator.decay_factor", DefaultDecayFactor)

	// 历史数据默认配置
	cm.viper.SetDefault("history.source", DefaultHistorySource)
	cm.viper.SetDefault("history.path", DefaultHistoryPath)
	cm.viper.SetDefault("history.game", DefaultGameName)

	// 锁默认配置
	cm.viper.SetDefault("lock.lock_timeout", "30s")
	cm.viper.SetDefault("lock.retry_attempts", DefaultRetryAttempts)
	cm.viper.SetDefault("lock.retry_interval", "100ms")
	cm.viper.SetDefault("lock.lock_expiration", "30s")

	// Redis 默认配置
	cm.viper.SetDefault("redis.addr", DefaultRedisAddr)
	cm.viper.SetDefault("redis.password", "")
	cm.viper.SetDefault("redis.db", 0)
	cm.viper.SetDefault("redis.pool_size", DefaultRedisPoolSize)
	cm.viper.SetDefault("redis.min_idle_conns", DefaultRedisMinIdleConns)
	cm.viper.SetDefault("redis.max_retries", DefaultRedisMaxRetries)
	cm.viper.SetDefault("redis.dial_timeout", "5s")
	cm.viper.SetDefault("redis.read_timeout", "3s")
	cm.viper.SetDefault("redis.write_timeout", "3s")
	cm.viper.SetDefault("redis.pool_timeout", "4s")

	// 熔断器默认配置
	cm.viper.SetDefault("circuit_breaker.enabled", true)
	cm.viper.SetDefault("circuit_breaker.name", DefaultCircuitBreakerName)
	cm.viper.SetDefault("circuit_breaker.max_requests", DefaultCircuitBreakerMaxRequests)
	cm.viper.SetDefault("circuit_breaker.interval", "60s")
	cm.viper.SetDefault("circuit_breaker.timeout", "30s")
	cm.viper.SetDefault("circuit_breaker.failure_ratio", DefaultCircuitBreakerFailureRatio)
	cm.viper.SetDefault("circuit_breaker.min_requests", DefaultCircuitBreakerMinRequests)
	cm.viper.SetDefault("circuit_breaker.on_state_change", true)

	// 日志和定时任务默认配置
	cm.viper.SetDefault("log.level", "info")
	cm.viper.SetDefault("log.no_color", false)
	cm.viper.SetDefault("schedule.cron", DefaultScheduleCron)
}

// WatchConfig 监听配置变化. Invalid edits are logged and ignored; the previous
// configuration stays in effect.
func (cm *ConfigManager) WatchConfig(callback func(*Config)) {
	cm.viper.OnConfigChange(func(e fsnotify.Event) {
		config, err := cm.unmarshal()
		if err != nil {
			// 记录错误但不中断服务
			cm.logger.Error("Ignoring config change from %s: %v", e.Name, err)
			return
		}

		cm.mu.Lock()
		cm.config = config
		cm.mu.Unlock()

		cm.logger.Info("Config reloaded from %s", e.Name)
		if callback != nil {
			callback(config)
		}
	})
	cm.viper.WatchConfig()
}

// GetConfig 获取当前配置
func (cm *ConfigManager) GetConfig() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// ReloadConfig 重新加载配置
func (cm *ConfigManager) ReloadConfig() (*Config, error) { return cm.LoadConfig() }
