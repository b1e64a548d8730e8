package oracle

import (
	"math/rand"

	"github.com/prefopt/maskrank/pkg/encoder"
)

// Random answers uniformly at random. It is pure noise, so any learner
// should perform no better than chance against it; useful as a baseline.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a random oracle driven by rng.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

func (o *Random) Name() string { return "random" }

func (o *Random) Prefer(_, _ encoder.Mask) bool {
	return o.rng.Float64() < 0.5
}
