package rng

import (
	"crypto/rand"
	"math/big"
)

// maxSeed bounds caller-generated seeds to [0, 2^31-1).
const maxSeed = 1<<31 - 1

// NewSeed returns a uniformly random battle seed in [0, 2^31-1) drawn from
// crypto/rand. The engine itself never calls this: seeds are always supplied
// from outside so retries use a fresh, visible seed.
//
// Panics with "rng: crypto/rand failure: <err>" if the system source fails.
func NewSeed() int64 {
	val, err := rand.Int(rand.Reader, big.NewInt(maxSeed))
	if err != nil {
		panic("rng: crypto/rand failure: " + err.Error())
	}
	return val.Int64()
}
