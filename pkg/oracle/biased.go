package oracle

import (
	"math"
	"math/rand"

	"github.com/prefopt/maskrank/pkg/encoder"
)

// Biased is a Bradley-Terry judge with a known latent utility: a weighted
// sum of the encoded features, compared through a logistic link with
// adjustable noise. It gives tests a ground truth the learner should
// recover.
type Biased struct {
	enc     encoder.FeatureEncoder
	weights []float64
	noise   float64
	rng     *rand.Rand
}

// DefaultWeights favors spatially coherent, compact masks: positive weight
// on Moran's I, component coherence and compact boundaries, mild positive
// weight on area, certainty last.
func DefaultWeights() []float64 {
	return []float64{1.5, 2.0, 0.5, 2.0, -0.5}
}

// NewBiased creates a biased oracle. A lower noise makes it more
// deterministic; weights must match the encoder's dimension.
func NewBiased(enc encoder.FeatureEncoder, weights []float64, noise float64, rng *rand.Rand) *Biased {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Biased{enc: enc, weights: weights, noise: noise, rng: rng}
}

func (o *Biased) Name() string { return "biased" }

// LatentUtility is the ground-truth preference score for a mask.
func (o *Biased) LatentUtility(mask encoder.Mask) float64 {
	features := o.enc.Encode(mask)
	var u float64
	for k, w := range o.weights {
		u += w * features[k]
	}
	return u
}

// Prefer samples P(a over b) = sigmoid((U(a) - U(b)) / noise).
func (o *Biased) Prefer(a, b encoder.Mask) bool {
	delta := (o.LatentUtility(a) - o.LatentUtility(b)) / o.noise
	p := 1 / (1 + math.Exp(-delta))
	return o.rng.Float64() < p
}
