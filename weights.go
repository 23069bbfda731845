package lotto

import (
	"cmp"
	"math"
	"slices"
)

// FrequencyWeights is an immutable selection probability for every number in [1, N].
// A new table is computed whenever the historical record changes.
type FrequencyWeights struct {
	maxNumber    int
	probs        []float64
	emptyHistory bool
	observations int
	fingerprint  uint64
}

// NumberWeight pairs a number with its selection probability.
type NumberWeight struct {
	Number int     `json:"number"`
	Weight float64 `json:"weight"`
}

// MaxNumber returns N.
func (w *FrequencyWeights) MaxNumber() int { return w.maxNumber }

// Weight returns the probability of n, or 0 when n is outside [1, N].
func (w *FrequencyWeights) Weight(n int) float64 {
	if n < 1 || n > w.maxNumber {
		return 0
	}
	return w.probs[n-1]
}

// Probabilities returns a copy of the table indexed by number-1.
func (w *FrequencyWeights) Probabilities() []float64 { return slices.Clone(w.probs) }

// EmptyHistory reports whether the table is the uniform fallback for an empty record.
func (w *FrequencyWeights) EmptyHistory() bool { return w.emptyHistory }

// Observations is the number of draws that contributed to the table.
func (w *FrequencyWeights) Observations() int { return w.observations }

// Fingerprint identifies the historical record the table was computed from.
func (w *FrequencyWeights) Fingerprint() uint64 { return w.fingerprint }

// Sum returns the total probability mass, 1 within floating point tolerance.
func (w *FrequencyWeights) Sum() float64 {
	var s float64
	for _, p := range w.probs {
		s += p
	}
	return s
}

// Validate checks the table invariants: N entries, all non-negative, summing to 1.
func (w *FrequencyWeights) Validate() error {
	if w == nil || w.maxNumber <= 0 || len(w.probs) != w.maxNumber {
		return ErrInvalidWeights.WithDetails("table does not cover [1, N]")
	}
	for i, p := range w.probs {
		if p < 0 || math.IsNaN(p) {
			return ErrInvalidWeights.WithDetailsf("negative weight %v for number %d", p, i+1)
		}
	}
	if s := w.Sum(); math.Abs(s-1) > ProbabilityTolerance {
		return ErrInvalidWeights.WithDetailsf("weights sum to %v", s)
	}
	return nil
}

// Ranked returns all numbers ordered by descending weight, ties by ascending number.
func (w *FrequencyWeights) Ranked() []NumberWeight {
	out := make([]NumberWeight, w.maxNumber)
	for i, p := range w.probs {
		out[i] = NumberWeight{Number: i + 1, Weight: p}
	}
	slices.SortStableFunc(out, func(a, b NumberWeight) int {
		return cmp.Compare(b.Weight, a.Weight)
	})
	return out
}

// uniformWeights is the table used when no history exists.
func uniformWeights(maxNumber int) *FrequencyWeights {
	probs := make([]float64, maxNumber)
	for i := range probs {
		probs[i] = 1 / float64(maxNumber)
	}
	return &FrequencyWeights{
		maxNumber:    maxNumber,
		probs:        probs,
		emptyHistory: true,
		fingerprint:  HistoricalRecord(nil).Fingerprint(),
	}
}

// smoothedWeights computes (count(n) + smoothing) / (total + smoothing*N) over the
// given draws, where each draw contributes decay^age and age 0 is the last draw.
func smoothedWeights(draws HistoricalRecord, maxNumber int, smoothing, decay float64) []float64 {
	counts := make([]float64, maxNumber)
	var total float64

	contribution := 1.0
	for i := len(draws) - 1; i >= 0; i-- {
		for _, n := range draws[i].Numbers {
			counts[n-1] += contribution
			total += contribution
		}
		contribution *= decay
	}

	denom := total + smoothing*float64(maxNumber)
	probs := make([]float64, maxNumber)
	for i, c := range counts {
		probs[i] = (c + smoothing) / denom
	}
	return probs
}
