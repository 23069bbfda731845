package lotto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureRandomGenerator(t *testing.T) {
	gen := NewSecureRandomGenerator(100)

	t.Run("范围生成正确性", func(t *testing.T) {
		for range 1000 {
			result, err := gen.GenerateInRange(1, 100)
			require.NoError(t, err)
			require.GreaterOrEqual(t, result, 1)
			require.LessOrEqual(t, result, 100)
		}
	})

	t.Run("浮点生成正确性", func(t *testing.T) {
		for range 1000 {
			result := gen.Float64()
			require.GreaterOrEqual(t, result, 0.0)
			require.Less(t, result, 1.0)
		}
	})

	t.Run("缓存重填充", func(t *testing.T) {
		// 超过缓存大小
		for range 350 {
			v := gen.IntN(7)
			require.GreaterOrEqual(t, v, 0)
			require.Less(t, v, 7)
		}
	})

	t.Run("无效范围", func(t *testing.T) {
		_, err := gen.GenerateInRange(10, 1)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	})

	t.Run("默认缓存大小", func(t *testing.T) {
		assert.Equal(t, DefaultSecureCacheSize, NewSecureRandomGenerator().cacheSize)
	})
}

func TestSeededSource(t *testing.T) {
	a := NewSeededSource(42)
	b := NewSeededSource(42)
	c := NewSeededSource(43)

	seqA := make([]int, 50)
	seqB := make([]int, 50)
	seqC := make([]int, 50)
	for i := range seqA {
		seqA[i] = a.IntN(1000)
		seqB[i] = b.IntN(1000)
		seqC[i] = c.IntN(1000)
	}

	assert.Equal(t, seqA, seqB, "same seed must give same sequence")
	assert.NotEqual(t, seqA, seqC)
	assert.Equal(t, 0, a.IntN(1))
}
