package acquisition

import "math/rand"

// Thompson implements Thompson sampling: one posterior draw per candidate,
// then random pairs from the top-scoring pool.
type Thompson struct{}

func NewThompson() *Thompson { return &Thompson{} }

func (p *Thompson) Name() string { return "thompson_sampling" }

func (p *Thompson) Acquire(post Posterior, candidates []int, features [][]float64, nPairs int, rng *rand.Rand) ([]Pair, error) {
	samples := make([]float64, len(candidates))
	for i, c := range candidates {
		samples[i] = post.SamplePosterior(features[c], rng)
	}

	return randomPairs(topPool(candidates, samples, nPairs), nPairs, rng)
}
