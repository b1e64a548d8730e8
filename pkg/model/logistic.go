package model

import (
	"log/slog"
	"math"
	"math/rand"

	"github.com/prefopt/maskrank/pkg/acquisition"
	"github.com/prefopt/maskrank/pkg/encoder"
)

const (
	// maxLogit bounds the link input so saturated probabilities never
	// produce NaN or Inf downstream.
	maxLogit = 30.0

	// priorPrecision is the Gaussian prior precision on the weights.
	priorPrecision = 1.0

	// minLossDelta is the improvement the monitored loss must make to
	// reset early-stopping patience.
	minLossDelta = 1e-9
)

// LogisticStrategy fits a Bayesian logistic regression on feature
// difference vectors with a diagonal Laplace approximation to the weight
// posterior. The posterior mean and variance at any input feed the
// acquisition policies; the Bernoulli link gives P(i over j) for ranking.
type LogisticStrategy struct {
	cfg    TrainConfig
	logger *slog.Logger

	weights []float64
	postVar []float64
	scaler  *encoder.Scaler
	trained bool
}

// NewLogisticStrategy creates an untrained strategy.
func NewLogisticStrategy(cfg TrainConfig, logger *slog.Logger) *LogisticStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogisticStrategy{cfg: cfg, logger: logger}
}

// IsTrained reports whether a successful Train has occurred.
func (m *LogisticStrategy) IsTrained() bool { return m.trained }

// Train fits the model fresh from the entire preference set. Ties are
// filtered first; an empty valid set is an InvalidInputError. On any
// failure the previously trained state is left exactly as it was.
func (m *LogisticStrategy) Train(prefs []Preference, features [][]float64, scaler *encoder.Scaler, rng *rand.Rand) error {
	scaled := scaler.Transform(features)

	var xs [][]float64
	var ys []float64
	for _, p := range prefs {
		if !p.Binary() {
			m.logger.Warn("skipping non-binary preference", "i", p.I, "j", p.J, "label", p.Label)
			continue
		}
		xs = append(xs, diff(scaled[p.I], scaled[p.J]))
		ys = append(ys, float64(p.Label))
	}

	if len(xs) == 0 {
		return InvalidInputError{Reason: "no valid preference data found (all pairs may be ties)"}
	}

	m.logger.Debug("training preference model", "examples", len(xs), "dim", len(xs[0]))

	weights := m.fit(xs, ys, rng)
	postVar := laplaceVariance(weights, xs)

	m.weights = weights
	m.postVar = postVar
	m.scaler = scaler
	m.trained = true

	return nil
}

// fit runs minibatch gradient descent on the regularized Bernoulli
// negative log-likelihood with early stopping: training halts once the
// monitored loss fails to improve for Patience consecutive epochs, bounded
// by MaxEpochs. The best weights seen are returned.
func (m *LogisticStrategy) fit(xs [][]float64, ys []float64, rng *rand.Rand) []float64 {
	n := len(xs)
	dim := len(xs[0])

	weights := make([]float64, dim)
	best := make([]float64, dim)
	bestLoss := math.Inf(1)
	stale := 0

	batchSize := m.cfg.BatchSize
	if batchSize <= 0 || batchSize > n {
		batchSize = n
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < m.cfg.MaxEpochs; epoch++ {
		rng.Shuffle(n, func(a, b int) {
			order[a], order[b] = order[b], order[a]
		})

		for start := 0; start < n; start += batchSize {
			end := start + batchSize
			if end > n {
				end = n
			}
			batch := order[start:end]

			grad := make([]float64, dim)
			for _, idx := range batch {
				p := sigmoid(dot(weights, xs[idx]))
				resid := p - ys[idx]
				for k, v := range xs[idx] {
					grad[k] += resid * v
				}
			}
			scale := m.cfg.LearningRate / float64(len(batch))
			reg := m.cfg.LearningRate * priorPrecision / float64(n)
			for k := range weights {
				weights[k] -= scale*grad[k] + reg*weights[k]
			}
		}

		loss := m.loss(weights, xs, ys)
		if loss < bestLoss-minLossDelta {
			bestLoss = loss
			copy(best, weights)
			stale = 0
		} else {
			stale++
			if stale >= m.cfg.Patience {
				m.logger.Debug("early stopping", "epoch", epoch, "loss", bestLoss)
				break
			}
		}
	}

	return best
}

// loss is the monitored objective: mean Bernoulli NLL plus the prior term.
func (m *LogisticStrategy) loss(weights []float64, xs [][]float64, ys []float64) float64 {
	var nll float64
	for i, x := range xs {
		p := sigmoid(dot(weights, x))
		nll += -ys[i]*math.Log(p) - (1-ys[i])*math.Log(1-p)
	}
	nll /= float64(len(xs))

	var l2 float64
	for _, w := range weights {
		l2 += w * w
	}
	return nll + priorPrecision*l2/(2*float64(len(xs)))
}

// laplaceVariance computes the diagonal Laplace posterior variance at the
// fitted weights: 1 / (prior precision + sum of p(1-p) x_k^2).
func laplaceVariance(weights []float64, xs [][]float64) []float64 {
	dim := len(weights)
	h := make([]float64, dim)
	for k := range h {
		h[k] = priorPrecision
	}
	for _, x := range xs {
		p := sigmoid(dot(weights, x))
		pq := p * (1 - p)
		for k, v := range x {
			h[k] += pq * v * v
		}
	}

	postVar := make([]float64, dim)
	for k := range postVar {
		postVar[k] = 1 / h[k]
	}
	return postVar
}

// GetRanking computes the tournament ranking over all candidates.
func (m *LogisticStrategy) GetRanking(features [][]float64) ([]int, []float64, error) {
	if !m.trained {
		return nil, nil, ErrNotTrained
	}

	scaled := m.scaler.Transform(features)
	return Ranking(len(features), func(i, j int) (float64, error) {
		return m.predictScaled(scaled[i], scaled[j]), nil
	})
}

// SelectPairs delegates to the policy; a policy failure is logged and
// recovered with a uniform-random selection of the same cardinality.
func (m *LogisticStrategy) SelectPairs(features [][]float64, policy acquisition.Policy, nPairs int, rng *rand.Rand) ([]acquisition.Pair, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}

	scaled := m.scaler.Transform(features)
	candidates := make([]int, len(features))
	for i := range candidates {
		candidates[i] = i
	}

	pairs, err := policy.Acquire(m, candidates, scaled, nPairs, rng)
	if err != nil {
		m.logger.Error("acquisition policy failed, falling back to random selection",
			"policy", policy.Name(), "err", err)
		return acquisition.NewRandom().Acquire(m, candidates, scaled, nPairs, rng)
	}

	return pairs, nil
}

// PredictPreference returns P(candidate i preferred over candidate j),
// evaluated at the scaled difference vector features[i] - features[j].
func (m *LogisticStrategy) PredictPreference(i, j int, features [][]float64) (float64, error) {
	if !m.trained {
		return 0, ErrNotTrained
	}
	return m.predictScaled(m.scaler.TransformRow(features[i]), m.scaler.TransformRow(features[j])), nil
}

func (m *LogisticStrategy) predictScaled(xi, xj []float64) float64 {
	return sigmoid(dot(m.weights, diff(xi, xj)))
}

// PosteriorMean implements acquisition.Posterior.
func (m *LogisticStrategy) PosteriorMean(x []float64) float64 {
	return dot(m.weights, x)
}

// PosteriorStd implements acquisition.Posterior.
func (m *LogisticStrategy) PosteriorStd(x []float64) float64 {
	var v float64
	for k, xv := range x {
		v += xv * xv * m.postVar[k]
	}
	return math.Sqrt(v)
}

// SamplePosterior implements acquisition.Posterior with one draw from the
// diagonal Gaussian weight posterior.
func (m *LogisticStrategy) SamplePosterior(x []float64, rng *rand.Rand) float64 {
	var v float64
	for k, xv := range x {
		w := m.weights[k] + rng.NormFloat64()*math.Sqrt(m.postVar[k])
		v += w * xv
	}
	return v
}

func sigmoid(logit float64) float64 {
	if logit > maxLogit {
		logit = maxLogit
	} else if logit < -maxLogit {
		logit = -maxLogit
	}
	return 1 / (1 + math.Exp(-logit))
}

func dot(a, b []float64) float64 {
	var s float64
	for k := range a {
		s += a[k] * b[k]
	}
	return s
}

func diff(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for k := range a {
		out[k] = a[k] - b[k]
	}
	return out
}
