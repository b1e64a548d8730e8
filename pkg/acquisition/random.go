package acquisition

import "math/rand"

// Random selects pairs uniformly at random from all candidates. It is the
// baseline policy and the bootstrap choice before the model is trained.
type Random struct{}

func NewRandom() *Random { return &Random{} }

func (p *Random) Name() string { return "random" }

// Acquire ignores the posterior entirely.
func (p *Random) Acquire(_ Posterior, candidates []int, _ [][]float64, nPairs int, rng *rand.Rand) ([]Pair, error) {
	return randomPairs(candidates, nPairs, rng)
}
