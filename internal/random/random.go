package random

import (
	"math/rand"

	"github.com/google/uuid"
)

// Source is the randomness every simulation step draws from.
// *math/rand.Rand satisfies it. Implementations are not expected to be
// safe for concurrent use.
type Source interface {
	Float64() float64
	Intn(n int) int
	Int63() int64
	Read(p []byte) (int, error)
}

// New returns a seeded source.
func New(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// Fork derives an independent source from src, for work that runs on
// another goroutine.
func Fork(src Source) *rand.Rand {
	return New(src.Int63())
}

// Uniform draws a value from [a, b].
func Uniform(src Source, a, b float64) float64 {
	return a + (b-a)*src.Float64()
}

// ID returns a random UUID read from src.
func ID(src Source) string {
	id, err := uuid.NewRandomFromReader(src)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
