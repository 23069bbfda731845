package lotto

import (
	"slices"

	"github.com/google/uuid"
)

// ValidateRange validates a [min, max] integer range
func ValidateRange(min, max int) error {
	if min > max {
		return ErrInvalidParameters.WithDetailsf("invalid range: min %d greater than max %d", min, max)
	}
	return nil
}

// generateLockValue generates a unique lock owner token
func generateLockValue() string {
	return uuid.NewString()
}

// sortedCopy returns an ascending copy of nums.
func sortedCopy(nums []int) []int {
	out := slices.Clone(nums)
	slices.Sort(out)
	return out
}

// validateNumbers checks that nums holds exactly k distinct values in [1, maxNumber].
func validateNumbers(nums []int, maxNumber, k int) error {
	if len(nums) != k {
		return ErrInvalidDraw.WithDetailsf("expected %d numbers, got %d", k, len(nums))
	}
	seen := make(map[int]struct{}, len(nums))
	for _, n := range nums {
		if n < 1 || n > maxNumber {
			return ErrInvalidDraw.WithDetailsf("number %d outside [1, %d]", n, maxNumber)
		}
		if _, dup := seen[n]; dup {
			return ErrInvalidDraw.WithDetailsf("number %d repeated", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

// overlap counts the values present in both sorted slices.
func overlap(a, b []int) int {
	i, j, n := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
