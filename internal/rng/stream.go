// Package rng provides the deterministic random streams embedded in item
// instances and the process-wide entropy source that seeds them.
package rng

import (
	"fmt"
	"math/rand/v2"
)

// InvalidSeed marks an item instance that was never generated or was destroyed.
const InvalidSeed int32 = -1

// streamIncrement is the fixed PCG stream selector; only the seed varies.
const streamIncrement = 0x9e3779b97f4a7c15

// Stream — детерминированный поток случайных чисел, инициализируемый seed'ом.
// Один и тот же seed всегда даёт одну и ту же последовательность.
//
// Stream is a value type: copying it copies the generator state, so two
// copies advance independently. Not safe for concurrent use.
type Stream struct {
	seed int32
	pcg  rand.PCG
}

// NewStream returns a stream initialized with seed.
func NewStream(seed int32) Stream {
	var s Stream
	s.Initialize(seed)
	return s
}

// Initialize resets the stream to the start of the sequence for seed.
func (s *Stream) Initialize(seed int32) {
	s.seed = seed
	s.pcg.Seed(uint64(uint32(seed)), streamIncrement)
}

// Seed returns the seed the stream was initialized with.
func (s *Stream) Seed() int32 {
	return s.seed
}

// FRand returns a float in [0, 1).
func (s *Stream) FRand() float64 {
	return rand.New(&s.pcg).Float64()
}

// RandHelper returns an integer in [0, n). Returns 0 when n <= 0.
func (s *Stream) RandHelper(n int32) int32 {
	if n <= 0 {
		return 0
	}
	return rand.New(&s.pcg).Int32N(n)
}

// RandRange returns an integer in [lo, hi] inclusive.
// When hi < lo the result is lo.
func (s *Stream) RandRange(lo, hi int32) int32 {
	return lo + s.RandHelper(hi-lo+1)
}

// Clone returns an independent copy positioned at the same state.
func (s *Stream) Clone() Stream {
	return *s
}

// MarshalBinary encodes seed and generator state.
func (s *Stream) MarshalBinary() ([]byte, error) {
	state, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshaling pcg state: %w", err)
	}
	buf := make([]byte, 4, 4+len(state))
	u := uint32(s.seed)
	buf[0], buf[1], buf[2], buf[3] = byte(u>>24), byte(u>>16), byte(u>>8), byte(u)
	return append(buf, state...), nil
}

// UnmarshalBinary restores a stream encoded by MarshalBinary.
func (s *Stream) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("stream state too short: %d bytes", len(data))
	}
	seed := int32(uint32(data[0])<<24 | uint32(data[1])<<16 | uint32(data[2])<<8 | uint32(data[3]))
	var pcg rand.PCG
	if err := pcg.UnmarshalBinary(data[4:]); err != nil {
		return fmt.Errorf("unmarshaling pcg state: %w", err)
	}
	s.seed = seed
	s.pcg = pcg
	return nil
}
