// Package rng provides the deterministic random stream that drives battle
// resolution. A battle draws every random value from one Stream, in a fixed
// order, so the full event log is reproducible from the seed alone.
package rng

// Source yields floats in [0, 1). The combat engine threads a single Source
// through every function that consumes randomness; subsystems must never
// instantiate their own.
type Source interface {
	// Float64 returns the next value in [0, 1).
	Float64() float64
}

// Stream is a mulberry32 generator. The mixing schedule is fixed so any
// runtime reproduces identical bit patterns for identical seeds.
//
// Invariant: two Streams created with the same seed produce identical
// sequences. A Stream is restartable only by re-seeding (no reset).
// Not safe for concurrent use; each battle owns exactly one Stream.
type Stream struct {
	state uint32
}

// NewStream creates a Stream seeded with the low 32 bits of seed.
//
// Precondition: seed must be in [0, 2^31-1).
// Postcondition: Returns a non-nil Stream positioned before the first draw.
func NewStream(seed int64) *Stream {
	return &Stream{state: uint32(seed)}
}

// Float64 advances the stream and returns the next value in [0, 1).
func (s *Stream) Float64() float64 {
	s.state += 0x6D2B79F5
	t := s.state
	t = (t ^ (t >> 15)) * (t | 1)
	t ^= t + (t^(t>>7))*(t|61)
	t ^= t >> 14
	return float64(t) / (1 << 32)
}
