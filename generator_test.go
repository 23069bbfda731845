package lotto

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource always returns the lowest value, so every weighted pick takes the
// first number with positive weight.
type fixedSource struct{}

func (fixedSource) Float64() float64 { return 0 }
func (fixedSource) IntN(int) int     { return 0 }

func newTestGenerator(t testing.TB, mutate func(*GeneratorConfig)) *Generator {
	t.Helper()
	cfg := DefaultGeneratorConfig()
	if mutate != nil {
		mutate(cfg)
	}
	g, err := NewGeneratorWithLogger(cfg, NewSilentLogger())
	require.NoError(t, err)
	return g
}

func repeatedHistory(numbers []int, times int) HistoricalRecord {
	h := make(HistoricalRecord, times)
	for i := range h {
		h[i] = Draw{Round: i + 1, Numbers: numbers}
	}
	return h
}

func randomHistory(t testing.TB, draws int, seed int64) HistoricalRecord {
	t.Helper()
	g := newTestGenerator(t, nil)
	rng := NewSeededSource(seed)
	uniform := uniformWeights(DefaultMaxNumber)

	h := make(HistoricalRecord, draws)
	for i := range h {
		ticket, err := g.GenerateTicket(uniform, 0, rng)
		require.NoError(t, err)
		h[i] = Draw{Round: i + 1, Numbers: ticket}
	}
	return h
}

func assertValidTicket(t *testing.T, ticket Ticket, maxNumber, drawSize int) {
	t.Helper()
	require.Len(t, ticket, drawSize)
	assert.True(t, isSortedStrict(ticket), "ticket %v must be sorted and distinct", ticket)
	for _, n := range ticket {
		assert.GreaterOrEqual(t, n, 1)
		assert.LessOrEqual(t, n, maxNumber)
	}
}

func isSortedStrict(nums []int) bool {
	for i := 1; i < len(nums); i++ {
		if nums[i] <= nums[i-1] {
			return false
		}
	}
	return true
}

func TestNewGenerator_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*GeneratorConfig)
	}{
		{"draw_size_exceeds_max_number", func(c *GeneratorConfig) { c.DrawSize = 60; c.MaxNumber = 50 }},
		{"zero_max_number", func(c *GeneratorConfig) { c.MaxNumber = 0 }},
		{"negative_max_number", func(c *GeneratorConfig) { c.MaxNumber = -1 }},
		{"zero_draw_size", func(c *GeneratorConfig) { c.DrawSize = 0 }},
		{"mix_above_one", func(c *GeneratorConfig) { c.MixRatio = 1.5 }},
		{"mix_below_zero", func(c *GeneratorConfig) { c.MixRatio = -0.1 }},
		{"mix_nan", func(c *GeneratorConfig) { c.MixRatio = math.NaN() }},
		{"zero_portfolio_size", func(c *GeneratorConfig) { c.PortfolioSize = 0 }},
		{"zero_smoothing", func(c *GeneratorConfig) { c.Smoothing = 0 }},
		{"negative_window", func(c *GeneratorConfig) { c.WindowSize = -1 }},
		{"zero_decay", func(c *GeneratorConfig) { c.DecayFactor = 0 }},
		{"decay_above_one", func(c *GeneratorConfig) { c.DecayFactor = 1.1 }},
		{"negative_retries", func(c *GeneratorConfig) { c.MaxDuplicateRetries = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultGeneratorConfig()
			tt.mutate(cfg)

			g, err := NewGeneratorWithLogger(cfg, NewSilentLogger())
			assert.Nil(t, g)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfigInvalid)
			assert.True(t, IsConfigurationError(err))

			var lotteryErr *LotteryError
			require.ErrorAs(t, err, &lotteryErr)
			assert.NotEmpty(t, lotteryErr.Details, "error must name the offending field")
		})
	}

	t.Run("nil_config_uses_defaults", func(t *testing.T) {
		g, err := NewGeneratorWithLogger(nil, nil)
		require.NoError(t, err)
		assert.Equal(t, *DefaultGeneratorConfig(), g.GetConfig())
	})

	t.Run("shared_error_not_mutated", func(t *testing.T) {
		_, err := NewGenerator(&GeneratorConfig{MaxNumber: 50, DrawSize: 60})
		require.Error(t, err)
		assert.Empty(t, ErrConfigInvalid.Details)
	})
}

func TestComputeWeights_Invariants(t *testing.T) {
	g := newTestGenerator(t, nil)

	histories := map[string]HistoricalRecord{
		"empty":    nil,
		"single":   {{Round: 1, Numbers: []int{1, 2, 3, 4, 5, 6, 7}}},
		"repeated": repeatedHistory([]int{1, 2, 3, 4, 5, 6, 7}, 100),
		"random":   randomHistory(t, 300, 7),
	}

	for name, h := range histories {
		t.Run(name, func(t *testing.T) {
			w, err := g.ComputeWeights(h)
			require.NoError(t, err)
			require.NoError(t, w.Validate())

			probs := w.Probabilities()
			require.Len(t, probs, DefaultMaxNumber)
			for _, p := range probs {
				assert.Greater(t, p, 0.0)
			}
			assert.InDelta(t, 1.0, w.Sum(), 1e-9)
			assert.Equal(t, h.Fingerprint(), w.Fingerprint())
		})
	}
}

func TestComputeWeights_EmptyHistoryIsUniform(t *testing.T) {
	g := newTestGenerator(t, nil)

	w, err := g.ComputeWeights(HistoricalRecord{})
	require.NoError(t, err)
	assert.True(t, w.EmptyHistory())
	assert.Equal(t, 0, w.Observations())
	for n := 1; n <= DefaultMaxNumber; n++ {
		assert.InDelta(t, 1.0/DefaultMaxNumber, w.Weight(n), 1e-12)
	}
	assert.Equal(t, int64(1), g.Monitor().GetMetrics().UniformFallbacks)
}

func TestComputeWeights_RepeatedDraw(t *testing.T) {
	g := newTestGenerator(t, nil)

	w, err := g.ComputeWeights(repeatedHistory([]int{1, 2, 3, 4, 5, 6, 7}, 100))
	require.NoError(t, err)
	assert.False(t, w.EmptyHistory())
	assert.Equal(t, 100, w.Observations())

	// (100 + 1) / (700 + 50) and (0 + 1) / (700 + 50)
	for n := 1; n <= 7; n++ {
		assert.InDelta(t, 101.0/750.0, w.Weight(n), 1e-12)
	}
	for n := 8; n <= 50; n++ {
		assert.InDelta(t, 1.0/750.0, w.Weight(n), 1e-12)
	}
	assert.Greater(t, w.Weight(1), w.Weight(8))
	assert.Equal(t, 0.0, w.Weight(0))
	assert.Equal(t, 0.0, w.Weight(51))

	ranked := w.Ranked()
	require.Len(t, ranked, 50)
	assert.Equal(t, 1, ranked[0].Number)
	assert.Equal(t, 8, ranked[7].Number)
}

func TestComputeWeights_Window(t *testing.T) {
	g := newTestGenerator(t, func(c *GeneratorConfig) { c.WindowSize = 10 })

	old := repeatedHistory([]int{1, 2, 3, 4, 5, 6, 7}, 50)
	recent := repeatedHistory([]int{44, 45, 46, 47, 48, 49, 50}, 10)
	h := append(old, recent...)

	w, err := g.ComputeWeights(h)
	require.NoError(t, err)
	assert.Equal(t, 10, w.Observations())
	// only the last 10 draws count
	assert.InDelta(t, 1.0/120.0, w.Weight(1), 1e-12)
	assert.InDelta(t, 11.0/120.0, w.Weight(50), 1e-12)
}

func TestComputeWeights_Decay(t *testing.T) {
	g := newTestGenerator(t, func(c *GeneratorConfig) { c.DecayFactor = 0.5 })

	h := HistoricalRecord{
		{Round: 1, Numbers: []int{1, 2, 3, 4, 5, 6, 7}},
		{Round: 2, Numbers: []int{8, 9, 10, 11, 12, 13, 14}},
	}
	w, err := g.ComputeWeights(h)
	require.NoError(t, err)
	require.NoError(t, w.Validate())

	// most recent draw counts 1, the one before 0.5: total 10.5
	assert.InDelta(t, 2.0/60.5, w.Weight(8), 1e-12)
	assert.InDelta(t, 1.5/60.5, w.Weight(1), 1e-12)
	assert.Greater(t, w.Weight(8), w.Weight(1))
}

func TestComputeWeights_InvalidDraw(t *testing.T) {
	g := newTestGenerator(t, nil)

	tests := map[string][]int{
		"out_of_range": {1, 2, 3, 4, 5, 6, 51},
		"repeated":     {1, 1, 2, 3, 4, 5, 6},
		"too_short":    {1, 2, 3},
	}
	for name, nums := range tests {
		t.Run(name, func(t *testing.T) {
			h := HistoricalRecord{
				{Round: 1, Numbers: []int{1, 2, 3, 4, 5, 6, 7}},
				{Round: 2, Numbers: nums},
			}
			_, err := g.ComputeWeights(h)
			assert.ErrorIs(t, err, ErrInvalidDraw)
		})
	}
}

func TestComputeWeights_Deterministic(t *testing.T) {
	g := newTestGenerator(t, nil)
	h := randomHistory(t, 100, 3)

	a, err := g.ComputeWeights(h)
	require.NoError(t, err)
	b, err := g.ComputeWeights(h)
	require.NoError(t, err)
	assert.Equal(t, a.Probabilities(), b.Probabilities())
}

func TestGenerateTicket(t *testing.T) {
	g := newTestGenerator(t, nil)
	w, err := g.ComputeWeights(randomHistory(t, 200, 11))
	require.NoError(t, err)

	t.Run("valid_tickets", func(t *testing.T) {
		rng := NewSeededSource(1)
		for _, mix := range []float64{0, 0.3, 0.7, 1} {
			for range 200 {
				ticket, err := g.GenerateTicket(w, mix, rng)
				require.NoError(t, err)
				assertValidTicket(t, ticket, DefaultMaxNumber, DefaultDrawSize)
			}
		}
	})

	t.Run("invalid_mix_rejected_before_sampling", func(t *testing.T) {
		for _, mix := range []float64{-0.01, 1.01, math.NaN()} {
			_, err := g.GenerateTicket(w, mix, NewSeededSource(1))
			assert.ErrorIs(t, err, ErrConfigInvalid)
		}
	})

	t.Run("mismatched_weights", func(t *testing.T) {
		_, err := g.GenerateTicket(uniformWeights(39), 0.7, NewSeededSource(1))
		assert.ErrorIs(t, err, ErrInvalidWeights)

		_, err = g.GenerateTicket(nil, 0.7, NewSeededSource(1))
		assert.ErrorIs(t, err, ErrInvalidWeights)
	})

	t.Run("nil_source", func(t *testing.T) {
		_, err := g.GenerateTicket(w, 0.7, nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})
}

func TestGenerateTicket_MixBoundaries(t *testing.T) {
	g := newTestGenerator(t, nil)
	w, err := g.ComputeWeights(repeatedHistory([]int{1, 2, 3, 4, 5, 6, 7}, 100))
	require.NoError(t, err)

	hot := func(ticket Ticket) int {
		n := 0
		for _, v := range ticket {
			if v <= 7 {
				n++
			}
		}
		return n
	}

	t.Run("all_weighted_follows_weights", func(t *testing.T) {
		ticket, err := g.GenerateTicket(w, 1.0, fixedSource{})
		require.NoError(t, err)
		assert.Equal(t, Ticket{1, 2, 3, 4, 5, 6, 7}, ticket)

		rng := NewSeededSource(42)
		total := 0
		for range 500 {
			ticket, err := g.GenerateTicket(w, 1.0, rng)
			require.NoError(t, err)
			total += hot(ticket)
		}
		assert.Greater(t, float64(total)/500, 5.0)
	})

	t.Run("all_uniform_ignores_weights", func(t *testing.T) {
		rng := NewSeededSource(42)
		total := 0
		for range 500 {
			ticket, err := g.GenerateTicket(w, 0.0, rng)
			require.NoError(t, err)
			total += hot(ticket)
		}
		// uniform expectation is 7*7/50 = 0.98
		assert.Less(t, float64(total)/500, 1.5)
	})
}

func TestWeightedCount(t *testing.T) {
	assert.Equal(t, 5, weightedCount(7, 0.7))
	assert.Equal(t, 0, weightedCount(7, 0))
	assert.Equal(t, 7, weightedCount(7, 1))
	assert.Equal(t, 4, weightedCount(7, 0.5))
	assert.Equal(t, 2, weightedCount(6, 0.3))
}

func TestGeneratePortfolio(t *testing.T) {
	h := randomHistory(t, 150, 5)

	t.Run("seed_42_reproducible", func(t *testing.T) {
		g := newTestGenerator(t, nil)

		a, err := g.GeneratePortfolio(h, 10, 0.7, NewSeededSource(42))
		require.NoError(t, err)
		b, err := g.GeneratePortfolio(h, 10, 0.7, NewSeededSource(42))
		require.NoError(t, err)

		require.Len(t, a.Tickets, 10)
		assert.Equal(t, a.Tickets, b.Tickets)
		assert.NotEqual(t, a.ID, b.ID)
		assert.Equal(t, 0.7, a.MixRatio)
		assert.False(t, a.EmptyHistory)
		for _, ticket := range a.Tickets {
			assertValidTicket(t, ticket, 50, 7)
		}
	})

	t.Run("different_seeds_differ", func(t *testing.T) {
		g := newTestGenerator(t, nil)
		a, err := g.GeneratePortfolio(h, 10, 0.7, NewSeededSource(42))
		require.NoError(t, err)
		b, err := g.GeneratePortfolio(h, 10, 0.7, NewSeededSource(43))
		require.NoError(t, err)
		assert.NotEqual(t, a.Tickets, b.Tickets)
	})

	t.Run("empty_history_flagged", func(t *testing.T) {
		g := newTestGenerator(t, nil)
		p, err := g.GeneratePortfolio(nil, 5, 0.7, NewSeededSource(1))
		require.NoError(t, err)
		assert.True(t, p.EmptyHistory)
		assert.Len(t, p.Tickets, 5)
	})

	t.Run("invalid_parameters", func(t *testing.T) {
		g := newTestGenerator(t, nil)

		_, err := g.GeneratePortfolio(h, 0, 0.7, NewSeededSource(1))
		assert.ErrorIs(t, err, ErrConfigInvalid)

		_, err = g.GeneratePortfolio(h, 10, 2, NewSeededSource(1))
		assert.ErrorIs(t, err, ErrConfigInvalid)

		_, err = g.GeneratePortfolio(h, 10, 0.7, nil)
		assert.ErrorIs(t, err, ErrInvalidParameters)

		metrics := g.Monitor().GetMetrics()
		assert.Equal(t, int64(0), metrics.TotalPortfolios, "rejected before generation")
	})

	t.Run("metrics_recorded", func(t *testing.T) {
		g := newTestGenerator(t, nil)
		_, err := g.GeneratePortfolio(h, 4, 0.7, NewSeededSource(1))
		require.NoError(t, err)

		m := g.Monitor().GetMetrics()
		assert.Equal(t, int64(1), m.SuccessfulPortfolios)
		assert.Equal(t, int64(4), m.TicketsGenerated)
		assert.Equal(t, 100.0, m.GetSuccessRate())
	})
}

func TestGeneratePortfolio_UniqueTickets(t *testing.T) {
	t.Run("no_duplicates_when_space_allows", func(t *testing.T) {
		g := newTestGenerator(t, func(c *GeneratorConfig) {
			c.MaxNumber = 8
			c.DrawSize = 7
			c.UniqueTickets = true
			c.MaxDuplicateRetries = 200
		})

		// only 8 distinct tickets exist
		p, err := g.GeneratePortfolio(nil, 8, 0.5, NewSeededSource(9))
		require.NoError(t, err)

		seen := map[string]bool{}
		for _, ticket := range p.Tickets {
			assert.False(t, seen[ticket.Key()], "duplicate %v", ticket)
			seen[ticket.Key()] = true
		}
		assert.Equal(t, 0, p.DuplicatesAccepted)
	})

	t.Run("duplicates_accepted_after_retries", func(t *testing.T) {
		g := newTestGenerator(t, func(c *GeneratorConfig) {
			c.MaxNumber = 7
			c.DrawSize = 7
			c.UniqueTickets = true
			c.MaxDuplicateRetries = 3
		})

		// a single ticket is possible
		p, err := g.GeneratePortfolio(nil, 4, 0.7, NewSeededSource(1))
		require.NoError(t, err)
		assert.Len(t, p.Tickets, 4)
		assert.Equal(t, 3, p.DuplicatesAccepted)
	})

	t.Run("duplicates_allowed_by_default", func(t *testing.T) {
		g := newTestGenerator(t, func(c *GeneratorConfig) {
			c.MaxNumber = 7
			c.DrawSize = 7
		})
		p, err := g.GeneratePortfolio(nil, 3, 0.7, NewSeededSource(1))
		require.NoError(t, err)
		assert.Equal(t, 0, p.DuplicatesAccepted)
		assert.Equal(t, p.Tickets[0], p.Tickets[2])
	})
}

func TestGenerator_UpdateConfig(t *testing.T) {
	g := newTestGenerator(t, nil)

	bad := DefaultGeneratorConfig()
	bad.DrawSize = 99
	assert.ErrorIs(t, g.UpdateConfig(bad), ErrConfigInvalid)
	assert.ErrorIs(t, g.UpdateConfig(nil), ErrConfigInvalid)
	assert.Equal(t, DefaultDrawSize, g.GetConfig().DrawSize)

	good := DefaultGeneratorConfig()
	good.MaxNumber = 39
	require.NoError(t, g.UpdateConfig(good))
	assert.Equal(t, 39, g.GetConfig().MaxNumber)

	t.Run("seed is copied", func(t *testing.T) {
		seed := int64(7)
		cfg := DefaultGeneratorConfig()
		cfg.Seed = &seed
		require.NoError(t, g.UpdateConfig(cfg))

		seed = 8
		got := g.GetConfig()
		require.NotNil(t, got.Seed)
		assert.Equal(t, int64(7), *got.Seed)

		*got.Seed = 9
		assert.Equal(t, int64(7), *g.GetConfig().Seed)
	})
}

func TestPortfolio_NumberSet(t *testing.T) {
	p := &Portfolio{Tickets: []Ticket{{1, 2, 3}, {3, 4, 5}, {5, 9, 1}}}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 9}, p.NumberSet())
	assert.Equal(t, "1,2,3", Ticket{1, 2, 3}.Key())
	assert.Equal(t, "10,22,49", Ticket{10, 22, 49}.Key())
}
