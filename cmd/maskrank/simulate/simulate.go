// Package simulatecmder provides the simulate command: a full active
// learning run against a simulated oracle, end to end in one process.
package simulatecmder

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/prefopt/maskrank/pkg/cliui"
	"github.com/prefopt/maskrank/pkg/config"
	"github.com/prefopt/maskrank/pkg/encoder"
	"github.com/prefopt/maskrank/pkg/logger"
	"github.com/prefopt/maskrank/pkg/loop"
	"github.com/prefopt/maskrank/pkg/oracle"
	"github.com/prefopt/maskrank/pkg/session/drivers"
)

type simulateCommander struct {
	candidates  int
	size        int
	oracleName  string
	noise       float64
	acquisition string
	pairs       int
	iterations  int
	seed        int64
	save        bool
	driver      string
	logFile     string
	debug       bool
	configDir   string
}

const simulateLongDesc string = `Run a full active learning loop against a simulated oracle.

Generates a pool of synthetic segmentation masks, then alternates
between selecting pairs with the configured acquisition policy and
answering them with the oracle until the ranking converges or the
iteration cap is hit.

Oracles:
  biased    Bradley-Terry judge over a known utility (default); the
            learner should recover its ranking
  random    pure noise baseline

Examples:
  maskrank simulate
  maskrank simulate --candidates 50 --acquisition ucb --seed 42
  maskrank simulate --oracle random --iterations 20
  maskrank simulate --save --driver sqlite`

const simulateShortDesc string = "Run a simulated active learning session"

func NewSimulateCmd() *cobra.Command {
	cmder := &simulateCommander{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: simulateShortDesc,
		Long:  simulateLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			return cmder.run()
		},
	}

	cmd.Flags().IntVarP(&cmder.candidates, "candidates", "n", 20, "Number of synthetic masks in the pool")
	cmd.Flags().IntVar(&cmder.size, "size", 64, "Mask width and height in pixels")
	cmd.Flags().StringVarP(&cmder.oracleName, "oracle", "o", "biased", "Oracle answering comparisons (biased, random)")
	cmd.Flags().Float64Var(&cmder.noise, "noise", 0.1, "Oracle decision noise (biased oracle only)")
	cmd.Flags().StringVarP(&cmder.acquisition, "acquisition", "a", "", "Acquisition policy override")
	cmd.Flags().IntVarP(&cmder.pairs, "pairs", "p", 0, "Pairs per iteration override")
	cmd.Flags().IntVarP(&cmder.iterations, "iterations", "i", 0, "Max iterations override")
	cmd.Flags().Int64VarP(&cmder.seed, "seed", "s", 0, "Random seed (0 = time-based)")
	cmd.Flags().BoolVar(&cmder.save, "save", false, "Persist the session to the configured store")
	cmd.Flags().StringVar(&cmder.driver, "driver", "", "Session storage driver override (fs, sqlite, postgres, inmemory)")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also write JSON logs to this file")

	return cmd
}

func (c *simulateCommander) run() error {
	log, closeLog, err := c.newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	fullCfg := config.FromViper(v)
	cfg := fullCfg.LoopConfig()

	if c.acquisition != "" {
		cfg.Acquisition = c.acquisition
	}
	if c.pairs > 0 {
		cfg.NPairsPerIteration = c.pairs
	}
	if c.iterations > 0 {
		cfg.MaxIterations = c.iterations
	}
	if c.seed != 0 {
		cfg.Seed = c.seed
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	enc := encoder.NewHandcrafted()

	var judge oracle.Oracle
	switch c.oracleName {
	case "biased":
		judge = oracle.NewBiased(enc, nil, c.noise, rng)
	case "random":
		judge = oracle.NewRandom(rng)
	default:
		return fmt.Errorf("unknown oracle: %q (want biased or random)", c.oracleName)
	}

	var masks []encoder.Mask
	err = cliui.Step(os.Stdout, fmt.Sprintf("Generating %d synthetic masks", c.candidates), func() error {
		masks = generateMasks(c.candidates, c.size, rng)
		return nil
	})
	if err != nil {
		return err
	}

	opts := []loop.Option{loop.WithLogger(log), loop.WithRand(rng)}
	if c.save {
		ctx := context.Background()
		storeCfg := fullCfg.Sessions
		if c.driver != "" {
			storeCfg.Driver = c.driver
		}
		store, err := drivers.NewStore(ctx, storeCfg)
		if err != nil {
			return fmt.Errorf("creating session store: %w", err)
		}
		defer store.Close()
		opts = append(opts, loop.WithStore(store))
	}

	l, err := loop.New(masks, enc, cfg, opts...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if c.save {
		if _, err := l.SaveSession(ctx, ""); err != nil {
			return err
		}
	}

	log.Info("starting simulation",
		"oracle", judge.Name(), "candidates", c.candidates, "seed", seed)

	for !l.HasConverged() {
		pairs, err := l.GetNextBatch(0)
		if err != nil {
			return fmt.Errorf("selecting batch: %w", err)
		}

		labels := make([]int, len(pairs))
		for k, p := range pairs {
			if judge.Prefer(masks[p.I], masks[p.J]) {
				labels[k] = 1
			}
		}

		msg := fmt.Sprintf("Iteration %d: %d comparisons", l.GetProgress().Iteration+1, len(pairs))
		err = cliui.Step(os.Stdout, msg, func() error {
			return l.AddPreferences(ctx, pairs, labels)
		})
		if err != nil {
			return fmt.Errorf("adding preferences: %w", err)
		}
	}

	progress := l.GetProgress()
	fmt.Printf("\n  %s %s after %d iterations (%d comparisons)\n\n",
		cliui.SuccessMark,
		progress.State,
		progress.Iteration,
		progress.TotalComparisons,
	)

	printRanking(progress, masks, judge)

	if c.save {
		fmt.Printf("  %s Session saved as %s\n\n",
			cliui.SuccessMark, cliui.KeyStyle.Render(l.SessionID()))
	}

	return nil
}

// newLogger builds the command's logger: pretty output on stderr, plus a
// JSON copy to --log-file when given.
func (c *simulateCommander) newLogger() (*slog.Logger, func(), error) {
	pretty := logger.New(logger.WithPretty(true), logger.WithDebug(c.debug))
	if c.logFile == "" {
		return pretty, func() {}, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	file := logger.New(logger.WithJSON(true), logger.WithDebug(c.debug), logger.WithWriter(f))
	return logger.Multi(pretty, file), func() { f.Close() }, nil
}

func printRanking(progress loop.Progress, masks []encoder.Mask, judge oracle.Oracle) {
	n := len(progress.Ranking)
	if n > 10 {
		n = 10
	}
	if n == 0 {
		return
	}

	fmt.Printf("  Top %d candidates:\n", n)
	biased, hasTruth := judge.(*oracle.Biased)
	for rank := 0; rank < n; rank++ {
		idx := progress.Ranking[rank]
		line := fmt.Sprintf("candidate %-4d %s", idx,
			cliui.ScoreStyle.Render(fmt.Sprintf("score %.3f", progress.Scores[idx])))
		if hasTruth {
			line += cliui.DimStyle.Render(fmt.Sprintf("  utility %.3f", biased.LatentUtility(masks[idx])))
		}
		fmt.Printf("    %s %s\n", cliui.RankStyle.Render(fmt.Sprintf("%2d.", rank+1)), line)
	}
	fmt.Println()
}

// generateMasks builds a pool of random blobby binary masks. Each mask is
// a union of one to five noisy discs with per-pixel dropout, so the pool
// spans coherent compact shapes through fragmented speckle.
func generateMasks(n, size int, rng *rand.Rand) []encoder.Mask {
	masks := make([]encoder.Mask, n)
	for k := range masks {
		masks[k] = generateMask(size, rng)
	}
	return masks
}

func generateMask(size int, rng *rand.Rand) encoder.Mask {
	m := encoder.NewMask(size, size)

	blobs := 1 + rng.Intn(5)
	dropout := 0.05 + rng.Float64()*0.3

	for b := 0; b < blobs; b++ {
		cx := rng.Intn(size)
		cy := rng.Intn(size)
		radius := 5 + rng.Intn(15)
		r2 := radius * radius

		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx, dy := x-cx, y-cy
				if dx*dx+dy*dy <= r2 && rng.Float64() >= dropout {
					m.Pixels[y*size+x] = 1
				}
			}
		}
	}

	return m
}
