// Package acquisition implements the pair-selection policies used by the
// active learning loop to decide which candidate pairs to query next.
package acquisition

import (
	"fmt"
	"math/rand"
	"sort"
)

// Pair is an ordered candidate pair (i, j) with i != j.
type Pair struct {
	I int `json:"i"`
	J int `json:"j"`
}

// Posterior exposes the trained preference model's per-input posterior.
//
// Policies evaluate it at each candidate's own feature vector even though
// the model is trained on difference vectors between pairs; the model's
// response at a single point is treated as a proxy utility for that
// candidate. This mirrors the behavior of the system this was derived
// from and is intentional.
type Posterior interface {
	// PosteriorMean returns the posterior mean latent value at x.
	PosteriorMean(x []float64) float64

	// PosteriorStd returns the posterior standard deviation at x.
	PosteriorStd(x []float64) float64

	// SamplePosterior draws one sample from the posterior at x.
	SamplePosterior(x []float64, rng *rand.Rand) float64
}

// Policy selects candidate pairs to query next.
type Policy interface {
	// Name returns the policy's registry name.
	Name() string

	// Acquire selects nPairs pairs from candidates. Both members of each
	// pair are distinct; pairs may repeat across the batch. All sampling
	// goes through rng.
	Acquire(post Posterior, candidates []int, features [][]float64, nPairs int, rng *rand.Rand) ([]Pair, error)
}

// randomPairs draws nPairs pairs uniformly from pool, distinct members per
// pair, with replacement across draws.
func randomPairs(pool []int, nPairs int, rng *rand.Rand) ([]Pair, error) {
	if len(pool) < 2 {
		return nil, fmt.Errorf("need at least 2 candidates, have %d", len(pool))
	}

	pairs := make([]Pair, 0, nPairs)
	for len(pairs) < nPairs {
		i := rng.Intn(len(pool))
		j := rng.Intn(len(pool) - 1)
		if j >= i {
			j++
		}
		pairs = append(pairs, Pair{I: pool[i], J: pool[j]})
	}
	return pairs, nil
}

// topPool sorts candidates by score descending (ascending index on ties)
// and returns the top min(2*nPairs, len) of them.
func topPool(candidates []int, scores []float64, nPairs int) []int {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	k := 2 * nPairs
	if k > len(candidates) {
		k = len(candidates)
	}

	pool := make([]int, k)
	for i := 0; i < k; i++ {
		pool[i] = candidates[order[i]]
	}
	return pool
}
