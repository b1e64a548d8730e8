package acquisition

import "math/rand"

// Variance is the pure-exploration policy: candidates are scored by
// posterior variance alone.
type Variance struct{}

func NewVariance() *Variance { return &Variance{} }

func (p *Variance) Name() string { return "variance" }

func (p *Variance) Acquire(post Posterior, candidates []int, features [][]float64, nPairs int, rng *rand.Rand) ([]Pair, error) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		std := post.PosteriorStd(features[c])
		scores[i] = std * std
	}

	return randomPairs(topPool(candidates, scores, nPairs), nPairs, rng)
}
