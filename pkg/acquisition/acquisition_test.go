package acquisition_test

import (
	"math/rand"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prefopt/maskrank/pkg/acquisition"
)

func TestAcquisition(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Acquisition Suite")
}

// stubPosterior scores candidates by their first feature: mean is x[0],
// stddev is x[1], and samples are deterministic copies of the mean.
type stubPosterior struct{}

func (stubPosterior) PosteriorMean(x []float64) float64 { return x[0] }

func (stubPosterior) PosteriorStd(x []float64) float64 { return x[1] }

func (stubPosterior) SamplePosterior(x []float64, _ *rand.Rand) float64 { return x[0] }

// featureMatrix builds n candidates where candidate i has mean i and a
// fixed small stddev, so mean-driven policies order them by index.
func featureMatrix(n int) [][]float64 {
	features := make([][]float64, n)
	for i := range features {
		features[i] = []float64{float64(i), 0.1}
	}
	return features
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func membersOf(pairs []acquisition.Pair) map[int]bool {
	members := make(map[int]bool)
	for _, p := range pairs {
		members[p.I] = true
		members[p.J] = true
	}
	return members
}

var _ = Describe("Random", func() {
	var rng *rand.Rand

	BeforeEach(func() {
		rng = rand.New(rand.NewSource(1))
	})

	It("returns the requested number of pairs", func() {
		pairs, err := acquisition.NewRandom().Acquire(nil, indices(10), featureMatrix(10), 5, rng)
		Expect(err).NotTo(HaveOccurred())
		Expect(pairs).To(HaveLen(5))
	})

	It("never pairs a candidate with itself", func() {
		pairs, err := acquisition.NewRandom().Acquire(nil, indices(3), featureMatrix(3), 50, rng)
		Expect(err).NotTo(HaveOccurred())
		for _, p := range pairs {
			Expect(p.I).NotTo(Equal(p.J))
		}
	})

	It("draws only from the given candidate subset", func() {
		subset := []int{2, 5, 7}
		pairs, err := acquisition.NewRandom().Acquire(nil, subset, featureMatrix(10), 20, rng)
		Expect(err).NotTo(HaveOccurred())
		for member := range membersOf(pairs) {
			Expect(subset).To(ContainElement(member))
		}
	})

	It("fails with fewer than two candidates", func() {
		_, err := acquisition.NewRandom().Acquire(nil, []int{0}, featureMatrix(1), 1, rng)
		Expect(err).To(HaveOccurred())
	})

	It("is deterministic for a fixed seed", func() {
		a, err := acquisition.NewRandom().Acquire(nil, indices(10), featureMatrix(10), 5, rand.New(rand.NewSource(7)))
		Expect(err).NotTo(HaveOccurred())
		b, err := acquisition.NewRandom().Acquire(nil, indices(10), featureMatrix(10), 5, rand.New(rand.NewSource(7)))
		Expect(err).NotTo(HaveOccurred())
		Expect(a).To(Equal(b))
	})
})

var _ = Describe("score-driven policies", func() {
	var (
		rng      *rand.Rand
		features [][]float64
	)

	BeforeEach(func() {
		rng = rand.New(rand.NewSource(1))
		features = featureMatrix(20)
	})

	// With 20 candidates scored by index and nPairs=2, the pool is the
	// top 2*2=4 scorers: candidates 16..19.
	DescribeTable("restricts pairs to the top 2*nPairs scorers",
		func(policy acquisition.Policy) {
			pairs, err := policy.Acquire(stubPosterior{}, indices(20), features, 2, rng)
			Expect(err).NotTo(HaveOccurred())
			Expect(pairs).To(HaveLen(2))
			for member := range membersOf(pairs) {
				Expect(member).To(BeNumerically(">=", 16))
			}
		},
		Entry("thompson sampling", acquisition.NewThompson()),
		Entry("ucb", acquisition.NewUCB()),
		Entry("ei", acquisition.NewEI()),
	)

	It("uses the whole pool when 2*nPairs exceeds it", func() {
		pairs, err := acquisition.NewUCB().Acquire(stubPosterior{}, indices(3), featureMatrix(3), 5, rng)
		Expect(err).NotTo(HaveOccurred())
		Expect(pairs).To(HaveLen(5))
	})

	It("scores by variance alone in the variance policy", func() {
		// Candidate 0 has a huge stddev; everyone else is nearly flat.
		features := [][]float64{
			{0, 10}, {5, 0.1}, {4, 0.1}, {3, 0.1}, {2, 0.1}, {1, 0.1},
		}
		pairs, err := acquisition.NewVariance().Acquire(stubPosterior{}, indices(6), features, 1, rng)
		Expect(err).NotTo(HaveOccurred())
		Expect(membersOf(pairs)).To(HaveKey(0))
	})
})

var _ = Describe("Registry", func() {
	var registry *acquisition.Registry

	BeforeEach(func() {
		registry = acquisition.NewRegistry()
	})

	It("resolves all built-in policies", func() {
		for _, name := range []string{"random", "thompson_sampling", "ts", "ucb", "ei", "variance"} {
			policy, err := registry.Get(name)
			Expect(err).NotTo(HaveOccurred(), "policy %q", name)
			Expect(policy).NotTo(BeNil())
		}
	})

	It("aliases ts to thompson_sampling", func() {
		ts, err := registry.Get("ts")
		Expect(err).NotTo(HaveOccurred())
		full, err := registry.Get("thompson_sampling")
		Expect(err).NotTo(HaveOccurred())
		Expect(ts).To(BeIdenticalTo(full))
	})

	It("rejects unknown names", func() {
		_, err := registry.Get("gradient_descent")
		Expect(err).To(HaveOccurred())
	})

	It("allows registering custom policies", func() {
		registry.Register("custom", acquisition.NewRandom())
		policy, err := registry.Get("custom")
		Expect(err).NotTo(HaveOccurred())
		Expect(policy.Name()).To(Equal("random"))
	})
})
