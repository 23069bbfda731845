package lotto

import (
	"math"
	"math/big"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
	"gonum.org/v1/gonum/stat/distuv"
)

// NumberStatus classifies a number by its recent frequency.
type NumberStatus string

const (
	StatusHot    NumberStatus = "HOT"
	StatusCold   NumberStatus = "COLD"
	StatusNormal NumberStatus = "NORMAL"
)

const (
	hotThreshold  = 1.3
	coldThreshold = 0.7

	// FairnessSignificance is the significance level of FairnessTest
	FairnessSignificance = 0.05
)

// NumberStat describes how often one number has been drawn.
type NumberStat struct {
	Number            int          `json:"number"`
	Appearances       int          `json:"appearances"`
	Frequency         float64      `json:"frequency"`
	RecentFrequency   float64      `json:"recent_frequency"`
	ExpectedFrequency float64      `json:"expected_frequency"`
	Deviation         float64      `json:"deviation"`
	CurrentGap        int          `json:"current_gap"`
	Status            NumberStatus `json:"status"`
}

// NumberStatistics reports per-number appearance statistics over history.
//
// Frequencies are per draw, so the expected frequency is drawSize/maxNumber. A
// number is HOT when its frequency over the last recentWindow draws exceeds 1.3
// times the expected value and COLD below 0.7 times. CurrentGap is the count of
// draws since the number last appeared, or len(history) if it never did.
func NumberStatistics(history HistoricalRecord, maxNumber, drawSize, recentWindow int) []NumberStat {
	if maxNumber <= 0 {
		return nil
	}

	expected := float64(drawSize) / float64(maxNumber)
	recent := history.Window(recentWindow)

	appearances := make([]int, maxNumber)
	recentCount := make([]int, maxNumber)
	lastSeen := make([]int, maxNumber)
	for i := range lastSeen {
		lastSeen[i] = -1
	}

	offset := len(history) - len(recent)
	for i, d := range history {
		for _, n := range d.Numbers {
			if n < 1 || n > maxNumber {
				continue
			}
			appearances[n-1]++
			lastSeen[n-1] = i
			if i >= offset {
				recentCount[n-1]++
			}
		}
	}

	out := make([]NumberStat, maxNumber)
	for i := range out {
		s := NumberStat{
			Number:            i + 1,
			Appearances:       appearances[i],
			ExpectedFrequency: expected,
			CurrentGap:        len(history),
		}
		if len(history) > 0 {
			s.Frequency = float64(appearances[i]) / float64(len(history))
		}
		if len(recent) > 0 {
			s.RecentFrequency = float64(recentCount[i]) / float64(len(recent))
		}
		if lastSeen[i] >= 0 {
			s.CurrentGap = len(history) - 1 - lastSeen[i]
		}
		s.Deviation = s.Frequency - expected

		switch {
		case s.RecentFrequency > expected*hotThreshold:
			s.Status = StatusHot
		case s.RecentFrequency < expected*coldThreshold:
			s.Status = StatusCold
		default:
			s.Status = StatusNormal
		}
		out[i] = s
	}
	return out
}

// TotalCombinations returns C(maxNumber, drawSize), the number of distinct tickets.
// The count is exact up to float64 rounding; it exceeds int64 for large pools.
func TotalCombinations(maxNumber, drawSize int) float64 {
	if drawSize < 0 || drawSize > maxNumber {
		return 0
	}
	exact := new(big.Int).Binomial(int64(maxNumber), int64(drawSize))
	c, _ := new(big.Float).SetInt(exact).Float64()
	return c
}

// MatchProbability is the hypergeometric probability that a random ticket shares
// exactly k numbers with the draw.
func MatchProbability(k, maxNumber, drawSize int) float64 {
	if k < 0 || k > drawSize || drawSize > maxNumber || maxNumber <= 0 {
		return 0
	}
	remaining := maxNumber - drawSize
	needed := drawSize - k
	if needed > remaining {
		return 0
	}

	logP := combin.LogGeneralizedBinomial(float64(drawSize), float64(k)) +
		combin.LogGeneralizedBinomial(float64(remaining), float64(needed)) -
		combin.LogGeneralizedBinomial(float64(maxNumber), float64(drawSize))
	return math.Exp(logP)
}

// MatchProbabilityAtLeast is the probability of matching k or more numbers.
func MatchProbabilityAtLeast(k, maxNumber, drawSize int) float64 {
	var total float64
	for i := max(k, 0); i <= drawSize; i++ {
		total += MatchProbability(i, maxNumber, drawSize)
	}
	return math.Min(total, 1)
}

// FairnessResult is the outcome of a chi-square uniformity test over number counts.
type FairnessResult struct {
	Draws            int     `json:"draws"`
	TotalNumbers     int     `json:"total_numbers"`
	Statistic        float64 `json:"statistic"`
	PValue           float64 `json:"p_value"`
	DegreesOfFreedom int     `json:"degrees_of_freedom"`
	ExpectedCount    float64 `json:"expected_count"`
	Fair             bool    `json:"fair"`
}

// FairnessTest checks whether every number in [1, maxNumber] is drawn equally often.
// The draws are considered fair when the p-value exceeds FairnessSignificance.
func FairnessTest(history HistoricalRecord, maxNumber int) (*FairnessResult, error) {
	if maxNumber < 2 {
		return nil, ErrInvalidParameters.WithDetailsf("max number must be at least 2, got %d", maxNumber)
	}

	observed := make([]float64, maxNumber)
	var total float64
	for _, d := range history {
		for _, n := range d.Numbers {
			if n >= 1 && n <= maxNumber {
				observed[n-1]++
				total++
			}
		}
	}
	if total == 0 {
		return nil, ErrInvalidParameters.WithDetails("fairness test needs at least one draw")
	}

	expectedCount := total / float64(maxNumber)
	expected := make([]float64, maxNumber)
	for i := range expected {
		expected[i] = expectedCount
	}

	chi2 := stat.ChiSquare(observed, expected)
	dof := maxNumber - 1
	p := distuv.ChiSquared{K: float64(dof)}.Survival(chi2)

	return &FairnessResult{
		Draws:            len(history),
		TotalNumbers:     int(total),
		Statistic:        chi2,
		PValue:           p,
		DegreesOfFreedom: dof,
		ExpectedCount:    expectedCount,
		Fair:             p > FairnessSignificance,
	}, nil
}
