package lotto

import (
	"context"
	"sync"
	"time"
)

// SuggestRequest describes one portfolio request. Nil or zero fields fall back
// to the generator configuration.
type SuggestRequest struct {
	PortfolioSize int
	MixRatio      *float64
	Seed          *int64
}

// Advisor loads history from a provider, keeps the weights for the current
// record cached and produces portfolios. It is safe for concurrent use.
type Advisor struct {
	provider  HistoryProvider
	generator *Generator
	logger    Logger

	mu           sync.RWMutex
	cached       *FrequencyWeights
	cachedParams weightParams
}

// weightParams are the configuration fields a weights table depends on.
type weightParams struct {
	maxNumber  int
	drawSize   int
	smoothing  float64
	windowSize int
	decay      float64
}

func paramsOf(cfg GeneratorConfig) weightParams {
	return weightParams{cfg.MaxNumber, cfg.DrawSize, cfg.Smoothing, cfg.WindowSize, cfg.DecayFactor}
}

// NewAdvisor creates an advisor over provider
func NewAdvisor(provider HistoryProvider, generator *Generator) *Advisor {
	return NewAdvisorWithLogger(provider, generator, generator.GetLogger())
}

// NewAdvisorWithLogger creates an advisor with a custom logger. A provider that
// reports metrics (the Redis store's lock statistics) shares the generator's monitor.
func NewAdvisorWithLogger(provider HistoryProvider, generator *Generator, logger Logger) *Advisor {
	if logger == nil {
		logger = NewSilentLogger()
	}
	if m, ok := provider.(monitored); ok {
		m.SetPerformanceMonitor(generator.Monitor())
	}
	return &Advisor{
		provider:  provider,
		generator: generator,
		logger:    logger,
	}
}

// Generator returns the underlying generator
func (a *Advisor) Generator() *Generator { return a.generator }

// Provider returns the history provider
func (a *Advisor) Provider() HistoryProvider { return a.provider }

// History loads the current record from the provider.
func (a *Advisor) History(ctx context.Context) (HistoricalRecord, error) {
	history, err := a.provider.LoadHistory(ctx)
	if err != nil {
		a.generator.monitor.RecordStorageError()
		a.logger.Error("Failed to load history: %v", err)
		return nil, err
	}
	return history, nil
}

// Weights returns the weights for the provider's current record. The table is
// recomputed only when the record's fingerprint changed since the last call.
func (a *Advisor) Weights(ctx context.Context) (*FrequencyWeights, error) {
	history, err := a.History(ctx)
	if err != nil {
		return nil, err
	}
	return a.weightsFor(history)
}

func (a *Advisor) weightsFor(history HistoricalRecord) (*FrequencyWeights, error) {
	fp := history.Fingerprint()
	params := paramsOf(a.generator.GetConfig())
	monitor := a.generator.monitor

	a.mu.RLock()
	cached, cachedParams := a.cached, a.cachedParams
	a.mu.RUnlock()
	if cached != nil && cached.fingerprint == fp && cachedParams == params {
		monitor.RecordCache(true)
		a.logger.Debug("Weights cache hit for fingerprint %x", fp)
		return cached, nil
	}

	monitor.RecordCache(false)
	weights, err := a.generator.ComputeWeights(history)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.cached, a.cachedParams = weights, params
	a.mu.Unlock()
	return weights, nil
}

// Suggest generates a portfolio from the provider's current record.
func (a *Advisor) Suggest(ctx context.Context, req SuggestRequest) (*Portfolio, error) {
	cfg := a.generator.GetConfig()

	size := req.PortfolioSize
	if size == 0 {
		size = cfg.PortfolioSize
	}
	mix := cfg.MixRatio
	if req.MixRatio != nil {
		mix = *req.MixRatio
	}
	seed := req.Seed
	if seed == nil {
		seed = cfg.Seed
	}

	a.logger.Debug("Suggest called with size=%d, mix=%.2f, seeded=%t", size, mix, seed != nil)

	// reject bad parameters before touching the provider
	if size < 0 {
		return nil, newConfigError("portfolio_size must be positive, got %d", size)
	}
	if err := validateMixRatio(mix); err != nil {
		return nil, err
	}

	start := time.Now()
	weights, err := a.Weights(ctx)
	if err != nil {
		a.generator.monitor.RecordPortfolio(false, 0, 0, time.Since(start))
		return nil, err
	}

	p, err := a.generator.portfolioFromWeights(weights, size, mix, sourceFor(seed))
	if err != nil {
		a.generator.monitor.RecordPortfolio(false, 0, 0, time.Since(start))
		a.logger.Error("Suggest failed: %v", err)
		return nil, err
	}
	a.generator.monitor.RecordPortfolio(true, len(p.Tickets), p.DuplicatesAccepted, time.Since(start))

	if p.EmptyHistory {
		a.logger.Warn("Portfolio %s generated without history: numbers are uniformly random", p.ID)
	}
	a.logger.Info("Suggest successful: id=%s, tickets=%d, observations=%d",
		p.ID, len(p.Tickets), weights.Observations())
	return p, nil
}

// RecordDraw validates d and appends it through the provider, then drops the
// cached weights so the next request reflects the new draw.
func (a *Advisor) RecordDraw(ctx context.Context, d Draw) error {
	cfg := a.generator.GetConfig()
	a.logger.Debug("RecordDraw called with round=%d, numbers=%v", d.Round, d.Numbers)

	if d.Round <= 0 {
		return ErrInvalidDraw.WithDetailsf("round must be positive, got %d", d.Round)
	}
	if err := d.Validate(cfg.MaxNumber, cfg.DrawSize); err != nil {
		a.logger.Error("RecordDraw rejected draw %d: %v", d.Round, err)
		return err
	}

	recorder, ok := a.provider.(HistoryRecorder)
	if !ok {
		return ErrHistoryReadOnly
	}
	if err := recorder.AppendDraw(ctx, d); err != nil {
		if !isHealthyOutcome(err) {
			a.generator.monitor.RecordStorageError()
		}
		a.logger.Error("RecordDraw failed for round %d: %v", d.Round, err)
		return err
	}

	a.Invalidate()
	a.logger.Info("RecordDraw successful: round=%d", d.Round)
	return nil
}

// Invalidate drops the cached weights
func (a *Advisor) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

// Metrics returns a snapshot of the generation metrics
func (a *Advisor) Metrics() PerformanceMetrics { return a.generator.monitor.GetMetrics() }
