package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/prefopt/maskrank/pkg/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

var _ = Describe("Configer", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("resolves the config file inside the override dir", func() {
		cfger, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.Path()).To(Equal(filepath.Join(tmpDir, "config.toml")))
	})

	It("loads defaults when no file exists", func() {
		cfger, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := cfger.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Loop.Acquisition).To(Equal("thompson_sampling"))
		Expect(cfg.Sessions.Driver).To(Equal("fs"))
		Expect(cfg.API.Listen).To(Equal(":8080"))
	})

	It("round-trips through save and load", func() {
		cfger, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.NewDefaultConfig()
		cfg.Loop.Acquisition = "ucb"
		cfg.Loop.TopK = 3
		cfg.Training.LearningRate = 0.05
		cfg.Sessions.Driver = "sqlite"
		Expect(cfger.Save(cfg)).To(Succeed())

		loaded, err := cfger.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Loop.Acquisition).To(Equal("ucb"))
		Expect(loaded.Loop.TopK).To(Equal(3))
		Expect(loaded.Training.LearningRate).To(Equal(0.05))
		Expect(loaded.Sessions.Driver).To(Equal("sqlite"))
	})

	It("overlays partial files onto defaults", func() {
		path := filepath.Join(tmpDir, "config.toml")
		Expect(os.WriteFile(path, []byte("[loop]\ntop_k = 7\n"), 0o644)).To(Succeed())

		cfger, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg, err := cfger.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Loop.TopK).To(Equal(7))
		Expect(cfg.Loop.Acquisition).To(Equal("thompson_sampling"))
	})

	It("leaves no temp files after save", func() {
		cfger, err := config.NewConfiger(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.Save(config.NewDefaultConfig())).To(Succeed())

		entries, err := os.ReadDir(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Name()).To(Equal("config.toml"))
	})
})

var _ = Describe("dotted keys", func() {
	var cfg *config.Config

	BeforeEach(func() {
		cfg = config.NewDefaultConfig()
	})

	It("gets and sets string keys", func() {
		Expect(config.Set(cfg, "loop.acquisition", "variance")).To(Succeed())
		value, err := config.Get(cfg, "loop.acquisition")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("variance"))
		Expect(cfg.Loop.Acquisition).To(Equal("variance"))
	})

	It("gets and sets integer keys", func() {
		Expect(config.Set(cfg, "loop.max_iterations", "250")).To(Succeed())
		Expect(cfg.Loop.MaxIterations).To(Equal(250))

		value, err := config.Get(cfg, "loop.max_iterations")
		Expect(err).NotTo(HaveOccurred())
		Expect(value).To(Equal("250"))
	})

	It("gets and sets the learning rate", func() {
		Expect(config.Set(cfg, "training.learning_rate", "0.001")).To(Succeed())
		Expect(cfg.Training.LearningRate).To(Equal(0.001))
	})

	It("rejects non-numeric values for numeric keys", func() {
		Expect(config.Set(cfg, "loop.top_k", "many")).NotTo(Succeed())
		Expect(config.Set(cfg, "training.learning_rate", "fast")).NotTo(Succeed())
	})

	It("rejects unknown keys", func() {
		_, err := config.Get(cfg, "loop.momentum")
		Expect(err).To(HaveOccurred())
		Expect(config.Set(cfg, "loop.momentum", "0.9")).NotTo(Succeed())
	})

	It("lists every key, sorted", func() {
		keys := config.Keys()
		Expect(keys).To(ContainElements(
			"loop.acquisition",
			"loop.top_k",
			"training.learning_rate",
			"sessions.driver",
			"api.listen",
		))
		Expect(sortedCopy(keys)).To(Equal(keys))
	})

	It("round-trips every key through get and set", func() {
		for _, key := range config.Keys() {
			value, err := config.Get(cfg, key)
			Expect(err).NotTo(HaveOccurred(), "get %s", key)
			Expect(config.Set(cfg, key, value)).To(Succeed(), "set %s", key)
		}
	})
})

var _ = Describe("LoopConfig", func() {
	It("assembles the loop configuration from both sections", func() {
		cfg := config.NewDefaultConfig()
		cfg.Loop.Acquisition = "ei"
		cfg.Loop.Seed = 99
		cfg.Training.MaxEpochs = 40

		lc := cfg.LoopConfig()
		Expect(lc.Acquisition).To(Equal("ei"))
		Expect(lc.Seed).To(Equal(int64(99)))
		Expect(lc.MaxEpochs).To(Equal(40))
		Expect(lc.TopK).To(Equal(cfg.Loop.TopK))
	})
})

var _ = Describe("viper integration", func() {
	var tmpDir string

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
	})

	It("serves defaults when no file or env is present", func() {
		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Loop.Acquisition).To(Equal("thompson_sampling"))
		Expect(cfg.API.Listen).To(Equal(":8080"))
	})

	It("reads values from config.toml", func() {
		path := filepath.Join(tmpDir, "config.toml")
		Expect(os.WriteFile(path, []byte("[api]\nlisten = \":9999\"\n"), 0o644)).To(Succeed())

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.API.Listen).To(Equal(":9999"))
	})

	It("lets MASKRANK env vars override the file", func() {
		GinkgoT().Setenv("MASKRANK_LOOP_TOP_K", "9")

		v, err := config.InitViper(tmpDir)
		Expect(err).NotTo(HaveOccurred())

		cfg := config.FromViper(v)
		Expect(cfg.Loop.TopK).To(Equal(9))
	})
})

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
