package source

import "math"

// seedModulus keeps derived seeds inside the positive int32 range.
const seedModulus = math.MaxInt32 - 1

// DeriveSeed returns the seed of the source at index for the given base
// seed. A base of 0 returns 0, which tells the yielder to pick a random seed
// of its own. Any other base gives a deterministic seed that is never 0.
func DeriveSeed(base int64, index int) int64 {
	if base == 0 {
		return 0
	}

	seed := (base + int64(index)) % seedModulus
	if seed < 0 {
		seed += seedModulus
	}
	if seed == 0 {
		seed++
	}
	return seed
}
