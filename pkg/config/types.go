package config

import (
	"fmt"
	"strconv"

	"github.com/prefopt/maskrank/pkg/loop"
)

// Config is the persistent maskrank configuration stored as config.toml in
// the config directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version  int            `toml:"version"`
	Loop     LoopConfig     `toml:"loop"`
	Training TrainingConfig `toml:"training"`
	Sessions SessionsConfig `toml:"sessions"`
	API      APIConfig      `toml:"api"`
}

// LoopConfig holds the active learning loop settings.
type LoopConfig struct {
	Acquisition          string `toml:"acquisition,omitempty"`
	MaxIterations        int    `toml:"max_iterations,omitempty"`
	NPairsPerIteration   int    `toml:"n_pairs_per_iteration,omitempty"`
	ConvergenceWindow    int    `toml:"convergence_window,omitempty"`
	ConvergenceThreshold int    `toml:"convergence_threshold,omitempty"`
	TopK                 int    `toml:"top_k,omitempty"`
	BackupInterval       int    `toml:"backup_interval,omitempty"`
	KeepBackups          int    `toml:"keep_backups,omitempty"`
	Seed                 int64  `toml:"seed,omitempty"`
}

// TrainingConfig holds the preference model hyperparameters.
type TrainingConfig struct {
	MaxEpochs    int     `toml:"max_epochs,omitempty"`
	Patience     int     `toml:"patience,omitempty"`
	BatchSize    int     `toml:"batch_size,omitempty"`
	LearningRate float64 `toml:"learning_rate,omitempty"`
}

// SessionsConfig holds session persistence settings.
type SessionsConfig struct {
	Driver      string `toml:"driver,omitempty"`
	Dir         string `toml:"dir,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// LoopConfig assembles the loop package's configuration from the app config.
func (c *Config) LoopConfig() loop.Config {
	return loop.Config{
		Acquisition:          c.Loop.Acquisition,
		MaxIterations:        c.Loop.MaxIterations,
		NPairsPerIteration:   c.Loop.NPairsPerIteration,
		ConvergenceWindow:    c.Loop.ConvergenceWindow,
		ConvergenceThreshold: c.Loop.ConvergenceThreshold,
		TopK:                 c.Loop.TopK,
		BackupInterval:       c.Loop.BackupInterval,
		KeepBackups:          c.Loop.KeepBackups,
		MaxEpochs:            c.Training.MaxEpochs,
		Patience:             c.Training.Patience,
		BatchSize:            c.Training.BatchSize,
		LearningRate:         c.Training.LearningRate,
		Seed:                 c.Loop.Seed,
	}
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func intKey(get func(c *Config) *int) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.Itoa(*get(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid integer value %q: %w", v, err)
			}
			*get(c) = n
			return nil
		},
	}
}

func stringKey(get func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *get(c) },
		set: func(c *Config, v string) error { *get(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"loop.acquisition":           stringKey(func(c *Config) *string { return &c.Loop.Acquisition }),
	"loop.max_iterations":        intKey(func(c *Config) *int { return &c.Loop.MaxIterations }),
	"loop.n_pairs_per_iteration": intKey(func(c *Config) *int { return &c.Loop.NPairsPerIteration }),
	"loop.convergence_window":    intKey(func(c *Config) *int { return &c.Loop.ConvergenceWindow }),
	"loop.convergence_threshold": intKey(func(c *Config) *int { return &c.Loop.ConvergenceThreshold }),
	"loop.top_k":                 intKey(func(c *Config) *int { return &c.Loop.TopK }),
	"loop.backup_interval":       intKey(func(c *Config) *int { return &c.Loop.BackupInterval }),
	"loop.keep_backups":          intKey(func(c *Config) *int { return &c.Loop.KeepBackups }),
	"loop.seed": {
		get: func(c *Config) string { return strconv.FormatInt(c.Loop.Seed, 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for loop.seed: %w", err)
			}
			c.Loop.Seed = n
			return nil
		},
	},
	"training.max_epochs": intKey(func(c *Config) *int { return &c.Training.MaxEpochs }),
	"training.patience":   intKey(func(c *Config) *int { return &c.Training.Patience }),
	"training.batch_size": intKey(func(c *Config) *int { return &c.Training.BatchSize }),
	"training.learning_rate": {
		get: func(c *Config) string { return strconv.FormatFloat(c.Training.LearningRate, 'g', -1, 64) },
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for training.learning_rate: %w", err)
			}
			c.Training.LearningRate = f
			return nil
		},
	},
	"sessions.driver":       stringKey(func(c *Config) *string { return &c.Sessions.Driver }),
	"sessions.dir":          stringKey(func(c *Config) *string { return &c.Sessions.Dir }),
	"sessions.sqlite_path":  stringKey(func(c *Config) *string { return &c.Sessions.SQLitePath }),
	"sessions.postgres_dsn": stringKey(func(c *Config) *string { return &c.Sessions.PostgresDSN }),
	"api.listen":            stringKey(func(c *Config) *string { return &c.API.Listen }),
}
