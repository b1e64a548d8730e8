package model_test

import (
	"errors"
	"io"
	"log/slog"
	"math/rand"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prefopt/maskrank/pkg/acquisition"
	"github.com/prefopt/maskrank/pkg/encoder"
	"github.com/prefopt/maskrank/pkg/model"
)

func TestModel(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Model Suite")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lineFeatures builds n candidates on a 2D line where a higher first
// feature means a genuinely better candidate.
func lineFeatures(n int) [][]float64 {
	features := make([][]float64, n)
	for i := range features {
		features[i] = []float64{float64(i), float64(n - i)}
	}
	return features
}

// linePreferences labels every adjacent pair consistently with the line:
// the higher-indexed candidate always wins.
func linePreferences(n int) []model.Preference {
	var prefs []model.Preference
	for i := 0; i+1 < n; i++ {
		prefs = append(prefs, model.Preference{I: i + 1, J: i, Label: 1})
		prefs = append(prefs, model.Preference{I: i, J: i + 1, Label: 0})
	}
	return prefs
}

// failingPolicy always errors, exercising the random fallback path.
type failingPolicy struct{}

func (failingPolicy) Name() string { return "failing" }

func (failingPolicy) Acquire(_ acquisition.Posterior, _ []int, _ [][]float64, _ int, _ *rand.Rand) ([]acquisition.Pair, error) {
	return nil, errors.New("degenerate posterior")
}

var _ = Describe("LogisticStrategy", func() {
	var (
		strategy *model.LogisticStrategy
		features [][]float64
		scaler   *encoder.Scaler
		rng      *rand.Rand
	)

	BeforeEach(func() {
		strategy = model.NewLogisticStrategy(model.DefaultTrainConfig(), quietLogger())
		features = lineFeatures(6)
		scaler = encoder.FitScaler(features)
		rng = rand.New(rand.NewSource(42))
	})

	Describe("Train", func() {
		It("learns a consistent preference direction", func() {
			err := strategy.Train(linePreferences(6), features, scaler, rng)
			Expect(err).NotTo(HaveOccurred())
			Expect(strategy.IsTrained()).To(BeTrue())

			p, err := strategy.PredictPreference(5, 0, features)
			Expect(err).NotTo(HaveOccurred())
			Expect(p).To(BeNumerically(">", 0.5))

			q, err := strategy.PredictPreference(0, 5, features)
			Expect(err).NotTo(HaveOccurred())
			Expect(q).To(BeNumerically("<", 0.5))
		})

		It("fails when every label is a tie", func() {
			prefs := []model.Preference{
				{I: 0, J: 1, Label: model.TieLabel},
				{I: 2, J: 3, Label: model.TieLabel},
			}
			err := strategy.Train(prefs, features, scaler, rng)

			var invalid model.InvalidInputError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(strategy.IsTrained()).To(BeFalse())
		})

		It("succeeds with a single valid label among ties", func() {
			prefs := []model.Preference{
				{I: 0, J: 1, Label: model.TieLabel},
				{I: 5, J: 0, Label: 1},
				{I: 2, J: 3, Label: model.TieLabel},
			}
			Expect(strategy.Train(prefs, features, scaler, rng)).To(Succeed())
			Expect(strategy.IsTrained()).To(BeTrue())
		})

		It("keeps the previous state when retraining fails", func() {
			Expect(strategy.Train(linePreferences(6), features, scaler, rng)).To(Succeed())
			before, err := strategy.PredictPreference(5, 0, features)
			Expect(err).NotTo(HaveOccurred())

			ties := []model.Preference{{I: 0, J: 1, Label: model.TieLabel}}
			Expect(strategy.Train(ties, features, scaler, rng)).NotTo(Succeed())

			after, err := strategy.PredictPreference(5, 0, features)
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})

		It("is deterministic for a fixed seed", func() {
			other := model.NewLogisticStrategy(model.DefaultTrainConfig(), quietLogger())

			Expect(strategy.Train(linePreferences(6), features, scaler, rand.New(rand.NewSource(7)))).To(Succeed())
			Expect(other.Train(linePreferences(6), features, scaler, rand.New(rand.NewSource(7)))).To(Succeed())

			a, err := strategy.PredictPreference(4, 1, features)
			Expect(err).NotTo(HaveOccurred())
			b, err := other.PredictPreference(4, 1, features)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
		})
	})

	Describe("before training", func() {
		It("refuses to rank", func() {
			_, _, err := strategy.GetRanking(features)
			Expect(err).To(MatchError(model.ErrNotTrained))
		})

		It("refuses to predict", func() {
			_, err := strategy.PredictPreference(0, 1, features)
			Expect(err).To(MatchError(model.ErrNotTrained))
		})

		It("refuses to select pairs", func() {
			_, err := strategy.SelectPairs(features, acquisition.NewRandom(), 3, rng)
			Expect(err).To(MatchError(model.ErrNotTrained))
		})

		It("refuses to marshal state", func() {
			_, err := strategy.MarshalState()
			Expect(err).To(MatchError(model.ErrNotTrained))
		})
	})

	Describe("GetRanking", func() {
		BeforeEach(func() {
			Expect(strategy.Train(linePreferences(6), features, scaler, rng)).To(Succeed())
		})

		It("returns a permutation of all candidate indices", func() {
			ranking, scores, err := strategy.GetRanking(features)
			Expect(err).NotTo(HaveOccurred())
			Expect(ranking).To(HaveLen(6))
			Expect(scores).To(HaveLen(6))

			seen := make(map[int]bool)
			for _, idx := range ranking {
				Expect(idx).To(BeNumerically(">=", 0))
				Expect(idx).To(BeNumerically("<", 6))
				Expect(seen[idx]).To(BeFalse(), "index %d appears twice", idx)
				seen[idx] = true
			}
		})

		It("recovers the latent order on clean data", func() {
			ranking, scores, err := strategy.GetRanking(features)
			Expect(err).NotTo(HaveOccurred())
			Expect(ranking[0]).To(Equal(5))
			Expect(ranking[5]).To(Equal(0))
			Expect(scores[5]).To(BeNumerically(">", scores[0]))
		})

		It("sorts scores descending along the ranking", func() {
			ranking, scores, err := strategy.GetRanking(features)
			Expect(err).NotTo(HaveOccurred())
			for k := 0; k+1 < len(ranking); k++ {
				Expect(scores[ranking[k]]).To(BeNumerically(">=", scores[ranking[k+1]]))
			}
		})
	})

	Describe("SelectPairs", func() {
		BeforeEach(func() {
			Expect(strategy.Train(linePreferences(6), features, scaler, rng)).To(Succeed())
		})

		It("delegates to the policy", func() {
			pairs, err := strategy.SelectPairs(features, acquisition.NewUCB(), 3, rng)
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(3))
		})

		It("falls back to random selection when the policy fails", func() {
			pairs, err := strategy.SelectPairs(features, failingPolicy{}, 4, rng)
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(4))
			for _, p := range pairs {
				Expect(p.I).NotTo(Equal(p.J))
			}
		})
	})

	Describe("checkpointing", func() {
		BeforeEach(func() {
			Expect(strategy.Train(linePreferences(6), features, scaler, rng)).To(Succeed())
		})

		It("round-trips through a file with identical predictions", func() {
			path := filepath.Join(GinkgoT().TempDir(), "model", "checkpoint.json")
			Expect(strategy.SaveCheckpoint(path)).To(Succeed())

			restored := model.NewLogisticStrategy(model.TrainConfig{}, quietLogger())
			Expect(restored.LoadCheckpoint(path)).To(Succeed())
			Expect(restored.IsTrained()).To(BeTrue())

			for i := 0; i < 6; i++ {
				for j := 0; j < 6; j++ {
					if i == j {
						continue
					}
					want, err := strategy.PredictPreference(i, j, features)
					Expect(err).NotTo(HaveOccurred())
					got, err := restored.PredictPreference(i, j, features)
					Expect(err).NotTo(HaveOccurred())
					Expect(got).To(Equal(want), "P(%d over %d)", i, j)
				}
			}
		})

		It("round-trips through bytes", func() {
			data, err := strategy.MarshalState()
			Expect(err).NotTo(HaveOccurred())

			restored := model.NewLogisticStrategy(model.TrainConfig{}, quietLogger())
			Expect(restored.UnmarshalState(data)).To(Succeed())

			want, err := strategy.PredictPreference(3, 2, features)
			Expect(err).NotTo(HaveOccurred())
			got, err := restored.PredictPreference(3, 2, features)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		})

		It("rejects state without trained weights", func() {
			restored := model.NewLogisticStrategy(model.TrainConfig{}, quietLogger())
			err := restored.UnmarshalState([]byte(`{"weights": []}`))
			var invalid model.InvalidInputError
			Expect(errors.As(err, &invalid)).To(BeTrue())
		})

		It("fails loading a missing file", func() {
			restored := model.NewLogisticStrategy(model.TrainConfig{}, quietLogger())
			err := restored.LoadCheckpoint(filepath.Join(GinkgoT().TempDir(), "absent.json"))
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Ranking", func() {
	It("normalizes win counts by the opponent count", func() {
		// Candidate 0 beats everyone, 1 beats 2, 2 beats nobody.
		predict := func(i, j int) (float64, error) {
			if i < j {
				return 0.9, nil
			}
			return 0.1, nil
		}
		ranking, scores, err := model.Ranking(3, predict)
		Expect(err).NotTo(HaveOccurred())
		Expect(ranking).To(Equal([]int{0, 1, 2}))
		Expect(scores).To(Equal([]float64{1.0, 0.5, 0.0}))
	})

	It("breaks score ties by ascending index", func() {
		// Nobody crosses the 0.5 win threshold.
		predict := func(i, j int) (float64, error) {
			return 0.5, nil
		}
		ranking, scores, err := model.Ranking(4, predict)
		Expect(err).NotTo(HaveOccurred())
		Expect(ranking).To(Equal([]int{0, 1, 2, 3}))
		Expect(scores).To(Equal([]float64{0, 0, 0, 0}))
	})

	It("propagates prediction errors", func() {
		predict := func(i, j int) (float64, error) {
			return 0, errors.New("boom")
		}
		_, _, err := model.Ranking(2, predict)
		Expect(err).To(HaveOccurred())
	})

	It("handles a single candidate", func() {
		ranking, scores, err := model.Ranking(1, func(i, j int) (float64, error) {
			Fail("predict should not be called")
			return 0, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ranking).To(Equal([]int{0}))
		Expect(scores).To(Equal([]float64{0}))
	})
})
