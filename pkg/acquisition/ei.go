package acquisition

import (
	"math"
	"math/rand"
)

// DefaultXi is the EI exploration margin.
const DefaultXi = 0.01

// EI scores each candidate by the closed-form expected improvement of its
// posterior over the current best posterior mean, under a normal
// approximation.
type EI struct {
	Xi float64
}

func NewEI() *EI { return &EI{Xi: DefaultXi} }

func (p *EI) Name() string { return "ei" }

func (p *EI) Acquire(post Posterior, candidates []int, features [][]float64, nPairs int, rng *rand.Rand) ([]Pair, error) {
	means := make([]float64, len(candidates))
	stds := make([]float64, len(candidates))
	best := math.Inf(-1)
	for i, c := range candidates {
		x := features[c]
		means[i] = post.PosteriorMean(x)
		stds[i] = post.PosteriorStd(x)
		if means[i] > best {
			best = means[i]
		}
	}

	scores := make([]float64, len(candidates))
	for i := range candidates {
		improvement := means[i] - best - p.Xi
		z := improvement / (stds[i] + 1e-8)
		scores[i] = improvement*normCDF(z) + stds[i]*normPDF(z)
	}

	return randomPairs(topPool(candidates, scores, nPairs), nPairs, rng)
}

func normCDF(z float64) float64 {
	return 0.5 * (1 + math.Erf(z/math.Sqrt2))
}

func normPDF(z float64) float64 {
	return math.Exp(-z*z/2) / math.Sqrt(2*math.Pi)
}
