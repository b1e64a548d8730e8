// Package model implements the pairwise preference model trained on feature
// differences and the tournament procedure that turns it into a ranking.
package model

import (
	"math/rand"

	"github.com/prefopt/maskrank/pkg/acquisition"
	"github.com/prefopt/maskrank/pkg/encoder"
)

// TieLabel marks a comparison the judge could not decide. Ties are dropped
// before training but still count as completed interactions upstream.
const TieLabel = -1

// Preference is one pairwise outcome: label 1 means candidate I is
// preferred over J, label 0 the reverse. Any other label is a tie.
type Preference struct {
	I     int `json:"i"`
	J     int `json:"j"`
	Label int `json:"label"`
}

// Binary reports whether the preference carries a usable binary label.
func (p Preference) Binary() bool {
	return p.Label == 0 || p.Label == 1
}

// TrainConfig holds the model training hyperparameters.
type TrainConfig struct {
	MaxEpochs    int     `json:"max_epochs"`
	Patience     int     `json:"patience"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`
}

// DefaultTrainConfig mirrors the loop's configuration defaults.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		MaxEpochs:    100,
		Patience:     10,
		BatchSize:    32,
		LearningRate: 0.01,
	}
}

// Strategy is the preference learning strategy consumed by the active
// learning loop. Implementations are trained fresh from the entire
// accumulated preference set on every Train call; the loop relies on Train
// leaving the previous state untouched when it fails.
type Strategy interface {
	// Train fits the model on valid (non-tie) preferences using
	// features[i] - features[j] difference vectors. Returns an
	// InvalidInputError when no valid records remain after tie filtering.
	Train(prefs []Preference, features [][]float64, scaler *encoder.Scaler, rng *rand.Rand) error

	// GetRanking returns all candidate indices best-first plus their
	// tournament scores. Fails with ErrNotTrained before the first
	// successful Train.
	GetRanking(features [][]float64) (ranking []int, scores []float64, err error)

	// SelectPairs delegates to the policy with the trained model. Any
	// policy failure is recovered with a uniform-random fallback of the
	// same cardinality.
	SelectPairs(features [][]float64, policy acquisition.Policy, nPairs int, rng *rand.Rand) ([]acquisition.Pair, error)

	// PredictPreference returns P(i preferred over j) in [0, 1].
	PredictPreference(i, j int, features [][]float64) (float64, error)

	// SaveCheckpoint / LoadCheckpoint round-trip the trained state so that
	// PredictPreference is identical before and after.
	SaveCheckpoint(path string) error
	LoadCheckpoint(path string) error

	// MarshalState / UnmarshalState round-trip the trained state through
	// bytes, used to embed the model in a persisted session.
	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error

	// IsTrained reports whether a successful Train has occurred.
	IsTrained() bool
}
