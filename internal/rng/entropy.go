package rng

import (
	"math/rand/v2"
	"sync"
)

// Entropy supplies fresh seeds at instance-creation time.
// Implementations must never return InvalidSeed.
type Entropy interface {
	NewSeed() int32
}

// globalEntropy draws from the runtime-seeded math/rand/v2 source.
type globalEntropy struct{}

func (globalEntropy) NewSeed() int32 {
	for {
		if seed := rand.Int32(); seed != InvalidSeed {
			return seed
		}
	}
}

// DefaultEntropy returns the process-wide entropy source.
func DefaultEntropy() Entropy {
	return globalEntropy{}
}

// SeededEntropy is a reproducible entropy source, used by simulations and tests.
// Safe for concurrent use.
type SeededEntropy struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewSeededEntropy returns an entropy source whose seed sequence depends only on seed.
func NewSeededEntropy(seed uint64) *SeededEntropy {
	return &SeededEntropy{rnd: rand.New(rand.NewPCG(seed, streamIncrement))}
}

// NewSeed returns the next seed of the sequence.
func (e *SeededEntropy) NewSeed() int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	for {
		// Int32 is non-negative, so InvalidSeed cannot occur; the loop guards
		// against future changes of the draw.
		if seed := e.rnd.Int32(); seed != InvalidSeed {
			return seed
		}
	}
}
