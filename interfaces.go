package lotto

import "context"

// RandomSource is the randomness injected into ticket generation.
// A seeded source makes generation reproducible.
type RandomSource interface {
	// Float64 returns a value in [0.0, 1.0)
	Float64() float64

	// IntN returns a value in [0, n). n must be positive.
	IntN(n int) int
}

// HistoryProvider supplies the chronological draw record, most recent draw last.
type HistoryProvider interface {
	LoadHistory(ctx context.Context) (HistoricalRecord, error)
}

// HistoryRecorder is implemented by providers that can store newly published draws.
type HistoryRecorder interface {
	AppendDraw(ctx context.Context, draw Draw) error
}

// PortfolioStore persists generated portfolios for later evaluation.
type PortfolioStore interface {
	SavePortfolio(ctx context.Context, p *Portfolio) error
	LoadPortfolio(ctx context.Context, id string) (*Portfolio, error)
}

// monitored is implemented by providers that report into a PerformanceMonitor.
type monitored interface {
	SetPerformanceMonitor(monitor *PerformanceMonitor)
}

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}
