package lotto

import (
	"fmt"
	"math"
	"slices"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// PortfolioStats summarises how a portfolio spreads over the number range.
type PortfolioStats struct {
	TotalTickets  int     `json:"total_tickets"`
	UniqueNumbers int     `json:"unique_numbers"`
	CoveragePct   float64 `json:"coverage_pct"`
	AvgOverlap    float64 `json:"avg_overlap"`
	MaxOverlap    int     `json:"max_overlap"`
	MinOverlap    int     `json:"min_overlap"`

	// PairsCovered counts distinct number pairs appearing together in some ticket
	PairsCovered int `json:"pairs_covered"`
}

// PortfolioStatistics computes coverage and pairwise overlap of p over [1, maxNumber].
func PortfolioStatistics(p *Portfolio, maxNumber int) PortfolioStats {
	if p == nil || maxNumber <= 0 {
		return PortfolioStats{}
	}

	stats := PortfolioStats{
		TotalTickets:  len(p.Tickets),
		UniqueNumbers: len(p.NumberSet()),
	}
	stats.CoveragePct = float64(stats.UniqueNumbers) / float64(maxNumber) * 100

	var overlaps []float64
	for i := range p.Tickets {
		for j := i + 1; j < len(p.Tickets); j++ {
			overlaps = append(overlaps, float64(overlap(p.Tickets[i], p.Tickets[j])))
		}
	}
	if len(overlaps) > 0 {
		stats.AvgOverlap = stat.Mean(overlaps, nil)
		stats.MaxOverlap = int(slices.Max(overlaps))
		stats.MinOverlap = int(slices.Min(overlaps))
	}

	pairs := make(map[[2]int]struct{})
	for _, t := range p.Tickets {
		for i := range t {
			for j := i + 1; j < len(t); j++ {
				pairs[[2]int{t[i], t[j]}] = struct{}{}
			}
		}
	}
	stats.PairsCovered = len(pairs)
	return stats
}

// PrizeTable maps a match count to the payout of one ticket.
type PrizeTable struct {
	Prizes     map[int]decimal.Decimal `json:"prizes"`
	TicketCost decimal.Decimal         `json:"ticket_cost"`
}

// DefaultPrizeTable returns the payouts for a 7-number game, in currency units.
func DefaultPrizeTable() PrizeTable {
	return PrizeTable{
		Prizes: map[int]decimal.Decimal{
			3: decimal.NewFromInt(50),
			4: decimal.NewFromInt(500),
			5: decimal.NewFromInt(5_000),
			6: decimal.NewFromInt(100_000),
			7: decimal.NewFromInt(1_000_000),
		},
		TicketCost: decimal.NewFromInt(100),
	}
}

// PrizeFor returns the payout for the given match count, zero when none.
func (t PrizeTable) PrizeFor(matches int) decimal.Decimal {
	if p, ok := t.Prizes[matches]; ok {
		return p
	}
	return decimal.Zero
}

// ExpectedValue is the mean payout of one random ticket in a drawSize-of-maxNumber game.
func (t PrizeTable) ExpectedValue(maxNumber, drawSize int) decimal.Decimal {
	ev := decimal.Zero
	for matches, prize := range t.Prizes {
		p := MatchProbability(matches, maxNumber, drawSize)
		ev = ev.Add(prize.Mul(decimal.NewFromFloat(p)))
	}
	return ev.Round(4)
}

// TicketResult is the outcome of one ticket against a draw.
type TicketResult struct {
	Ticket  Ticket          `json:"ticket"`
	Matched []int           `json:"matched"`
	Matches int             `json:"matches"`
	Prize   decimal.Decimal `json:"prize"`
}

// Evaluation is the outcome of a whole portfolio against a draw.
type Evaluation struct {
	PortfolioID  string          `json:"portfolio_id"`
	Round        int             `json:"round"`
	Results      []TicketResult  `json:"results"`
	BestMatch    int             `json:"best_match"`
	TotalMatches int             `json:"total_matches"`
	Winnings     decimal.Decimal `json:"winnings"`
	Cost         decimal.Decimal `json:"cost"`
	Net          decimal.Decimal `json:"net"`
}

// String renders a one-line summary
func (e *Evaluation) String() string {
	return fmt.Sprintf("round %d: best %d, total %d matches, winnings %s, net %s",
		e.Round, e.BestMatch, e.TotalMatches, e.Winnings.StringFixed(2), e.Net.StringFixed(2))
}

// Evaluate compares every ticket of p with the actual draw.
func Evaluate(p *Portfolio, actual Draw, prizes PrizeTable) (*Evaluation, error) {
	if p == nil {
		return nil, ErrInvalidParameters.WithDetails("portfolio is nil")
	}
	if len(actual.Numbers) == 0 {
		return nil, ErrInvalidDraw.WithDetails("actual draw has no numbers")
	}

	drawn := sortedCopy(actual.Numbers)
	ev := &Evaluation{
		PortfolioID: p.ID,
		Round:       actual.Round,
		Results:     make([]TicketResult, 0, len(p.Tickets)),
		Winnings:    decimal.Zero,
	}

	for _, t := range p.Tickets {
		ticket := sortedCopy(t)
		var matched []int
		for _, n := range ticket {
			if _, found := slices.BinarySearch(drawn, n); found {
				matched = append(matched, n)
			}
		}

		prize := prizes.PrizeFor(len(matched))
		ev.Results = append(ev.Results, TicketResult{
			Ticket:  ticket,
			Matched: matched,
			Matches: len(matched),
			Prize:   prize,
		})
		ev.TotalMatches += len(matched)
		ev.BestMatch = max(ev.BestMatch, len(matched))
		ev.Winnings = ev.Winnings.Add(prize)
	}

	ev.Cost = prizes.TicketCost.Mul(decimal.NewFromInt(int64(len(p.Tickets))))
	ev.Net = ev.Winnings.Sub(ev.Cost)
	return ev, nil
}

// RoundOutcome is how one portfolio did against one held-out draw.
type RoundOutcome struct {
	BestMatch    int             `json:"best_match"`
	TotalMatches int             `json:"total_matches"`
	Winnings     decimal.Decimal `json:"winnings"`
}

// BacktestRound scores both strategies against one draw, using only the draws before it.
type BacktestRound struct {
	Round         int          `json:"round"`
	TrainingDraws int          `json:"training_draws"`
	Strategy      RoundOutcome `json:"strategy"`
	Baseline      RoundOutcome `json:"baseline"`
}

// StrategyResult aggregates one strategy over every tested draw.
type StrategyResult struct {
	Name          string          `json:"name"`
	MixRatio      float64         `json:"mix_ratio"`
	AvgBestMatch  float64         `json:"avg_best_match"`
	MaxBestMatch  int             `json:"max_best_match"`
	ThreePlusRate float64         `json:"three_plus_rate"`
	FourPlusRate  float64         `json:"four_plus_rate"`
	AvgMatches    float64         `json:"avg_matches"`
	Winnings      decimal.Decimal `json:"winnings"`
	Cost          decimal.Decimal `json:"cost"`
	Net           decimal.Decimal `json:"net"`
	ROIPct        decimal.Decimal `json:"roi_pct"`
}

// BacktestReport compares the weighted strategy with pure random tickets.
//
// TStatistic and PValue come from a pooled two-sample t-test on the per-draw
// best match counts; Significant is set when PValue < BacktestSignificance.
type BacktestReport struct {
	TestDraws      int             `json:"test_draws"`
	TicketsPerDraw int             `json:"tickets_per_draw"`
	Seed           int64           `json:"seed"`
	Strategy       StrategyResult  `json:"strategy"`
	Baseline       StrategyResult  `json:"baseline"`
	TStatistic     float64         `json:"t_statistic"`
	PValue         float64         `json:"p_value"`
	Significant    bool            `json:"significant"`
	Rounds         []BacktestRound `json:"rounds"`
}

// Backtest replays the last testDraws draws of history walk-forward: for each
// one, weights are computed from the draws before it, a portfolio of
// ticketsPerDraw tickets is generated at cfg's mix ratio and another at mix 0,
// and both are scored with the default prize table.
//
// At least MinTrainingDraws draws always precede the first tested draw, so
// testDraws is capped at len(history)-MinTrainingDraws. The same seed gives
// the same report.
func Backtest(history HistoricalRecord, cfg *GeneratorConfig, testDraws, ticketsPerDraw int, seed int64) (*BacktestReport, error) {
	g, err := NewGeneratorWithLogger(cfg, NewSilentLogger())
	if err != nil {
		return nil, err
	}
	gc := g.GetConfig()

	if testDraws <= 0 || ticketsPerDraw <= 0 {
		return nil, ErrInvalidParameters.WithDetailsf(
			"test draws and tickets per draw must be positive, got %d and %d", testDraws, ticketsPerDraw)
	}
	if len(history) <= MinTrainingDraws {
		return nil, ErrInvalidParameters.WithDetailsf(
			"backtest needs more than %d draws, have %d", MinTrainingDraws, len(history))
	}
	if err := history.Validate(gc.MaxNumber, gc.DrawSize); err != nil {
		return nil, err
	}
	testDraws = min(testDraws, len(history)-MinTrainingDraws)

	prizes := DefaultPrizeTable()
	strategyRNG, baselineRNG := NewSeededSource(seed), NewSeededSource(seed+1)

	report := &BacktestReport{
		TestDraws:      testDraws,
		TicketsPerDraw: ticketsPerDraw,
		Seed:           seed,
		Rounds:         make([]BacktestRound, 0, testDraws),
	}

	for i := len(history) - testDraws; i < len(history); i++ {
		weights, err := g.ComputeWeights(history[:i])
		if err != nil {
			return nil, err
		}

		actual := history[i]
		strategy, err := backtestStep(g, weights, ticketsPerDraw, gc.MixRatio, strategyRNG, actual, prizes)
		if err != nil {
			return nil, err
		}
		baseline, err := backtestStep(g, weights, ticketsPerDraw, 0, baselineRNG, actual, prizes)
		if err != nil {
			return nil, err
		}

		report.Rounds = append(report.Rounds, BacktestRound{
			Round:         actual.Round,
			TrainingDraws: i,
			Strategy:      strategy,
			Baseline:      baseline,
		})
	}

	strategyBest := make([]float64, len(report.Rounds))
	baselineBest := make([]float64, len(report.Rounds))
	strategyOut := make([]RoundOutcome, len(report.Rounds))
	baselineOut := make([]RoundOutcome, len(report.Rounds))
	for i, r := range report.Rounds {
		strategyOut[i], baselineOut[i] = r.Strategy, r.Baseline
		strategyBest[i], baselineBest[i] = float64(r.Strategy.BestMatch), float64(r.Baseline.BestMatch)
	}

	report.Strategy = summarizeStrategy("weighted", gc.MixRatio, strategyOut, ticketsPerDraw, prizes)
	report.Baseline = summarizeStrategy("random", 0, baselineOut, ticketsPerDraw, prizes)
	report.TStatistic, report.PValue = twoSampleTTest(strategyBest, baselineBest)
	report.Significant = report.PValue < BacktestSignificance
	return report, nil
}

func backtestStep(
	g *Generator, weights *FrequencyWeights, tickets int, mixRatio float64, rng RandomSource, actual Draw, prizes PrizeTable,
) (RoundOutcome, error) {
	p, err := g.portfolioFromWeights(weights, tickets, mixRatio, rng)
	if err != nil {
		return RoundOutcome{}, err
	}
	ev, err := Evaluate(p, actual, prizes)
	if err != nil {
		return RoundOutcome{}, err
	}
	return RoundOutcome{BestMatch: ev.BestMatch, TotalMatches: ev.TotalMatches, Winnings: ev.Winnings}, nil
}

func summarizeStrategy(name string, mixRatio float64, outcomes []RoundOutcome, tickets int, prizes PrizeTable) StrategyResult {
	r := StrategyResult{Name: name, MixRatio: mixRatio, Winnings: decimal.Zero}
	if len(outcomes) == 0 {
		return r
	}

	best := make([]float64, len(outcomes))
	totals := make([]float64, len(outcomes))
	var threePlus, fourPlus int
	for i, o := range outcomes {
		best[i] = float64(o.BestMatch)
		totals[i] = float64(o.TotalMatches)
		r.MaxBestMatch = max(r.MaxBestMatch, o.BestMatch)
		if o.BestMatch >= 3 {
			threePlus++
		}
		if o.BestMatch >= 4 {
			fourPlus++
		}
		r.Winnings = r.Winnings.Add(o.Winnings)
	}

	n := float64(len(outcomes))
	r.AvgBestMatch = stat.Mean(best, nil)
	r.AvgMatches = stat.Mean(totals, nil)
	r.ThreePlusRate = float64(threePlus) / n
	r.FourPlusRate = float64(fourPlus) / n

	r.Cost = prizes.TicketCost.Mul(decimal.NewFromInt(int64(len(outcomes) * tickets)))
	r.Net = r.Winnings.Sub(r.Cost)
	if !r.Cost.IsZero() {
		r.ROIPct = r.Net.Div(r.Cost).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return r
}

// twoSampleTTest is Student's t-test with pooled variance. Samples too small
// or without any spread give t = 0, p = 1.
func twoSampleTTest(a, b []float64) (t, p float64) {
	na, nb := float64(len(a)), float64(len(b))
	if len(a) < 2 || len(b) < 2 {
		return 0, 1
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	dof := na + nb - 2
	pooled := ((na-1)*varA + (nb-1)*varB) / dof
	se := math.Sqrt(pooled * (1/na + 1/nb))
	if se == 0 {
		return 0, 1
	}

	t = (meanA - meanB) / se
	p = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: dof}.Survival(math.Abs(t))
	return t, p
}
