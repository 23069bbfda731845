package lotto

import (
	"maps"
	"math"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ticket is one suggested combination: K distinct numbers in ascending order.
type Ticket []int

// Key returns a comparable representation used for duplicate detection.
func (t Ticket) Key() string {
	b := make([]byte, 0, len(t)*3)
	for i, n := range t {
		if i > 0 {
			b = append(b, ',')
		}
		b = strconv.AppendInt(b, int64(n), 10)
	}
	return string(b)
}

// Portfolio is the ordered set of tickets produced by one generation request.
type Portfolio struct {
	ID       string   `json:"id"`
	Tickets  []Ticket `json:"tickets"`
	MixRatio float64  `json:"mix_ratio"`

	// EmptyHistory is set when the tickets were generated from uniform weights
	EmptyHistory bool `json:"empty_history"`

	// DuplicatesAccepted counts duplicate tickets kept after exhausting retries
	DuplicatesAccepted int       `json:"duplicates_accepted"`
	CreatedAt          time.Time `json:"created_at"`
}

// Generator produces frequency-weighted ticket portfolios. It holds no state
// between calls apart from its configuration.
type Generator struct {
	mu      sync.RWMutex
	config  GeneratorConfig
	logger  Logger
	monitor *PerformanceMonitor
}

// NewGenerator validates cfg and creates a generator. A nil cfg uses the defaults.
func NewGenerator(cfg *GeneratorConfig) (*Generator, error) {
	return NewGeneratorWithLogger(cfg, &DefaultLogger{})
}

// NewGeneratorWithLogger creates a generator with a custom logger
func NewGeneratorWithLogger(cfg *GeneratorConfig, logger Logger) (*Generator, error) {
	if cfg == nil {
		cfg = DefaultGeneratorConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = NewSilentLogger()
	}

	return &Generator{
		config:  cfg.clone(),
		logger:  logger,
		monitor: NewPerformanceMonitor(),
	}, nil
}

// GetConfig returns a copy of the generator configuration
func (g *Generator) GetConfig() GeneratorConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.config.clone()
}

// UpdateConfig validates and replaces the configuration
func (g *Generator) UpdateConfig(cfg *GeneratorConfig) error {
	if cfg == nil {
		return newConfigError("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		g.logger.Error("UpdateConfig rejected: %v", err)
		return err
	}

	g.mu.Lock()
	g.config = cfg.clone()
	g.mu.Unlock()

	g.logger.Info("Generator config updated: N=%d, K=%d, mix=%.2f", cfg.MaxNumber, cfg.DrawSize, cfg.MixRatio)
	return nil
}

// SetLogger sets the logger for the generator
func (g *Generator) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	g.mu.Lock()
	g.logger = logger
	g.mu.Unlock()
}

// GetLogger returns the generator logger
func (g *Generator) GetLogger() Logger {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.logger
}

// Monitor returns the generation performance monitor
func (g *Generator) Monitor() *PerformanceMonitor { return g.monitor }

// ComputeWeights derives the selection probability of every number from the record.
//
// An empty record yields uniform weights with EmptyHistory set and a warning logged.
// A record containing an invalid draw is rejected with ErrInvalidDraw.
func (g *Generator) ComputeWeights(history HistoricalRecord) (*FrequencyWeights, error) {
	cfg := g.GetConfig()
	logger := g.GetLogger()
	start := time.Now()
	logger.Debug("ComputeWeights called with %d draws, window=%d, decay=%v",
		len(history), cfg.WindowSize, cfg.DecayFactor)

	if len(history) == 0 {
		logger.Warn("Historical record is empty, falling back to uniform weights over [1, %d]", cfg.MaxNumber)
		g.monitor.RecordWeights(time.Since(start), true)
		return uniformWeights(cfg.MaxNumber), nil
	}

	if err := history.Validate(cfg.MaxNumber, cfg.DrawSize); err != nil {
		logger.Error("ComputeWeights rejected history: %v", err)
		return nil, err
	}

	window := history.Window(cfg.WindowSize)
	w := &FrequencyWeights{
		maxNumber:    cfg.MaxNumber,
		probs:        smoothedWeights(window, cfg.MaxNumber, cfg.Smoothing, cfg.DecayFactor),
		observations: len(window),
		fingerprint:  history.Fingerprint(),
	}

	g.monitor.RecordWeights(time.Since(start), false)
	logger.Debug("ComputeWeights done: %d observations", w.observations)
	return w, nil
}

// GenerateTicket draws one ticket: round(K*mixRatio) numbers by weighted sampling
// without replacement, the rest uniformly from the numbers not yet chosen.
func (g *Generator) GenerateTicket(weights *FrequencyWeights, mixRatio float64, rng RandomSource) (Ticket, error) {
	cfg := g.GetConfig()
	if err := validateMixRatio(mixRatio); err != nil {
		return nil, err
	}
	if weights == nil || weights.maxNumber != cfg.MaxNumber || len(weights.probs) != cfg.MaxNumber {
		return nil, ErrInvalidWeights.WithDetailsf("weights do not cover [1, %d]", cfg.MaxNumber)
	}
	if rng == nil {
		return nil, ErrInvalidParameters.WithDetails("random source is nil")
	}

	return sampleTicket(weights.probs, cfg.DrawSize, weightedCount(cfg.DrawSize, mixRatio), rng), nil
}

// weightedCount is the number of ticket positions filled by weighted sampling.
func weightedCount(drawSize int, mixRatio float64) int {
	return int(math.Round(float64(drawSize) * mixRatio))
}

// sampleTicket picks drawSize distinct numbers; the first weighted picks follow probs.
func sampleTicket(probs []float64, drawSize, weighted int, rng RandomSource) Ticket {
	pool := make([]int, len(probs))
	for i := range pool {
		pool[i] = i + 1
	}

	ticket := make(Ticket, 0, drawSize)
	cumulative := make([]float64, len(pool))
	for range weighted {
		var total float64
		for i, n := range pool {
			total += probs[n-1]
			cumulative[i] = total
		}

		var idx int
		if total <= 0 {
			idx = rng.IntN(len(pool))
		} else {
			r := rng.Float64() * total
			idx = sort.Search(len(pool), func(i int) bool { return cumulative[i] > r })
			if idx >= len(pool) {
				// floating point guard
				idx = len(pool) - 1
			}
		}

		ticket = append(ticket, pool[idx])
		pool = slices.Delete(pool, idx, idx+1)
		cumulative = cumulative[:len(pool)]
	}

	for len(ticket) < drawSize {
		idx := rng.IntN(len(pool))
		ticket = append(ticket, pool[idx])
		pool = slices.Delete(pool, idx, idx+1)
	}

	slices.Sort(ticket)
	return ticket
}

// GeneratePortfolio computes weights from history and draws portfolioSize tickets.
//
// With UniqueTickets configured, an exact duplicate of an earlier ticket is redrawn
// up to MaxDuplicateRetries times and then accepted.
func (g *Generator) GeneratePortfolio(
	history HistoricalRecord, portfolioSize int, mixRatio float64, rng RandomSource,
) (*Portfolio, error) {
	logger := g.GetLogger()
	logger.Debug("GeneratePortfolio called with size=%d, mix=%.2f, history=%d draws",
		portfolioSize, mixRatio, len(history))

	if portfolioSize <= 0 {
		err := newConfigError("portfolio_size must be positive, got %d", portfolioSize)
		logger.Error("GeneratePortfolio validation failed: %v", err)
		return nil, err
	}
	if err := validateMixRatio(mixRatio); err != nil {
		logger.Error("GeneratePortfolio validation failed: %v", err)
		return nil, err
	}
	if rng == nil {
		return nil, ErrInvalidParameters.WithDetails("random source is nil")
	}

	start := time.Now()
	weights, err := g.ComputeWeights(history)
	if err != nil {
		g.monitor.RecordPortfolio(false, 0, 0, time.Since(start))
		return nil, err
	}

	p, err := g.portfolioFromWeights(weights, portfolioSize, mixRatio, rng)
	if err != nil {
		g.monitor.RecordPortfolio(false, 0, 0, time.Since(start))
		return nil, err
	}
	g.monitor.RecordPortfolio(true, len(p.Tickets), p.DuplicatesAccepted, time.Since(start))

	logger.Info("GeneratePortfolio successful: id=%s, tickets=%d, duplicates=%d",
		p.ID, len(p.Tickets), p.DuplicatesAccepted)
	return p, nil
}

// portfolioFromWeights draws tickets from an already computed table.
func (g *Generator) portfolioFromWeights(
	weights *FrequencyWeights, portfolioSize int, mixRatio float64, rng RandomSource,
) (*Portfolio, error) {
	cfg := g.GetConfig()
	p := &Portfolio{
		ID:           uuid.NewString(),
		Tickets:      make([]Ticket, 0, portfolioSize),
		MixRatio:     mixRatio,
		EmptyHistory: weights.EmptyHistory(),
		CreatedAt:    time.Now(),
	}

	seen := make(map[string]struct{}, portfolioSize)
	for range portfolioSize {
		ticket, err := g.GenerateTicket(weights, mixRatio, rng)
		if err != nil {
			return nil, err
		}

		if cfg.UniqueTickets {
			for retry := 0; retry < cfg.MaxDuplicateRetries; retry++ {
				if _, dup := seen[ticket.Key()]; !dup {
					break
				}
				if ticket, err = g.GenerateTicket(weights, mixRatio, rng); err != nil {
					return nil, err
				}
			}
			if _, dup := seen[ticket.Key()]; dup {
				p.DuplicatesAccepted++
				g.GetLogger().Debug("Accepting duplicate ticket %v after %d retries", ticket, cfg.MaxDuplicateRetries)
			}
		}

		seen[ticket.Key()] = struct{}{}
		p.Tickets = append(p.Tickets, ticket)
	}
	return p, nil
}

// NumberSet returns the distinct numbers used anywhere in the portfolio, ascending.
func (p *Portfolio) NumberSet() []int {
	set := make(map[int]struct{})
	for _, t := range p.Tickets {
		for _, n := range t {
			set[n] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}
