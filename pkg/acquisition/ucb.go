package acquisition

import "math/rand"

// DefaultBeta is the UCB exploration weight.
const DefaultBeta = 2.0

// UCB scores each candidate as posterior mean + beta * posterior stddev and
// draws random pairs from the top scorers.
type UCB struct {
	Beta float64
}

func NewUCB() *UCB { return &UCB{Beta: DefaultBeta} }

func (p *UCB) Name() string { return "ucb" }

func (p *UCB) Acquire(post Posterior, candidates []int, features [][]float64, nPairs int, rng *rand.Rand) ([]Pair, error) {
	scores := make([]float64, len(candidates))
	for i, c := range candidates {
		x := features[c]
		scores[i] = post.PosteriorMean(x) + p.Beta*post.PosteriorStd(x)
	}

	return randomPairs(topPool(candidates, scores, nPairs), nPairs, rng)
}
