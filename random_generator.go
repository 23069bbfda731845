package lotto

import (
	"crypto/rand"
	"encoding/binary"
	mrand "math/rand/v2"
	"sync"
)

// SecureRandomGenerator implements RandomSource on crypto/rand with a cache of
// pre-generated floats. It is safe for concurrent use.
type SecureRandomGenerator struct {
	cache      []float64
	cacheSize  int
	cacheIndex int
	cacheMtx   sync.Mutex
}

// NewSecureRandomGenerator creates a secure random generator with the given cache size.
//
// If no cache size is provided, DefaultSecureCacheSize is used.
func NewSecureRandomGenerator(cacheSize ...int) *SecureRandomGenerator {
	size := DefaultSecureCacheSize
	if len(cacheSize) > 0 && cacheSize[0] > 0 {
		size = cacheSize[0]
	}

	g := &SecureRandomGenerator{
		cache:     make([]float64, size),
		cacheSize: size,
	}

	// 预填充缓存
	g.refillCache()
	return g
}

// refillCache refills the random number cache. Caller holds cacheMtx.
func (g *SecureRandomGenerator) refillCache() {
	var buf [8]byte
	for i := range g.cacheSize {
		// crypto/rand.Read never returns an error on supported platforms
		_, _ = rand.Read(buf[:])
		g.cache[i] = float64(binary.LittleEndian.Uint64(buf[:])>>11) / (1 << 53)
	}
	g.cacheIndex = 0
}

// Float64 returns a secure random float in [0, 1).
func (g *SecureRandomGenerator) Float64() float64 {
	g.cacheMtx.Lock()
	defer g.cacheMtx.Unlock()

	if g.cacheIndex >= g.cacheSize {
		g.refillCache()
	}

	result := g.cache[g.cacheIndex]
	g.cacheIndex++
	return result
}

// IntN returns a secure random int in [0, n).
func (g *SecureRandomGenerator) IntN(n int) int {
	if n <= 1 {
		return 0
	}
	result := int(g.Float64() * float64(n))
	// floating point precision guard
	if result >= n {
		result = n - 1
	}
	return result
}

// GenerateInRange returns a secure random number in [min, max] (inclusive).
func (g *SecureRandomGenerator) GenerateInRange(min, max int) (int, error) {
	if err := ValidateRange(min, max); err != nil {
		return 0, err
	}
	return min + g.IntN(max-min+1), nil
}

// seededSource is a reproducible RandomSource backed by a PCG generator.
type seededSource struct {
	r *mrand.Rand
}

// NewSeededSource returns a deterministic RandomSource: two sources created with
// the same seed produce the same sequence. Not safe for concurrent use.
func NewSeededSource(seed int64) RandomSource {
	return &seededSource{r: mrand.New(mrand.NewPCG(uint64(seed), 0))}
}

func (s *seededSource) Float64() float64 { return s.r.Float64() }

func (s *seededSource) IntN(n int) int {
	if n <= 1 {
		return 0
	}
	return s.r.IntN(n)
}

// sourceFor returns a seeded source for a non-nil seed and a secure one otherwise.
func sourceFor(seed *int64) RandomSource {
	if seed != nil {
		return NewSeededSource(*seed)
	}
	return NewSecureRandomGenerator()
}
