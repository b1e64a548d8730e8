package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if present in the resolved config directory), and binds environment
// variables with the MASKRANK_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound by the commands)
//  2. Environment variables (MASKRANK_LOOP_ACQUISITION, MASKRANK_API_LISTEN, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	cfger, err := NewConfiger(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(cfger.dir)

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("MASKRANK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("loop.acquisition", d.Loop.Acquisition)
	v.SetDefault("loop.max_iterations", d.Loop.MaxIterations)
	v.SetDefault("loop.n_pairs_per_iteration", d.Loop.NPairsPerIteration)
	v.SetDefault("loop.convergence_window", d.Loop.ConvergenceWindow)
	v.SetDefault("loop.convergence_threshold", d.Loop.ConvergenceThreshold)
	v.SetDefault("loop.top_k", d.Loop.TopK)
	v.SetDefault("loop.backup_interval", d.Loop.BackupInterval)
	v.SetDefault("loop.keep_backups", d.Loop.KeepBackups)
	v.SetDefault("loop.seed", d.Loop.Seed)

	v.SetDefault("training.max_epochs", d.Training.MaxEpochs)
	v.SetDefault("training.patience", d.Training.Patience)
	v.SetDefault("training.batch_size", d.Training.BatchSize)
	v.SetDefault("training.learning_rate", d.Training.LearningRate)

	v.SetDefault("sessions.driver", d.Sessions.Driver)
	v.SetDefault("sessions.dir", d.Sessions.Dir)
	v.SetDefault("sessions.sqlite_path", d.Sessions.SQLitePath)
	v.SetDefault("sessions.postgres_dsn", d.Sessions.PostgresDSN)

	v.SetDefault("api.listen", d.API.Listen)
}

// FromViper materializes a typed Config from a viper instance.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Version: v.GetInt("version"),
		Loop: LoopConfig{
			Acquisition:          v.GetString("loop.acquisition"),
			MaxIterations:        v.GetInt("loop.max_iterations"),
			NPairsPerIteration:   v.GetInt("loop.n_pairs_per_iteration"),
			ConvergenceWindow:    v.GetInt("loop.convergence_window"),
			ConvergenceThreshold: v.GetInt("loop.convergence_threshold"),
			TopK:                 v.GetInt("loop.top_k"),
			BackupInterval:       v.GetInt("loop.backup_interval"),
			KeepBackups:          v.GetInt("loop.keep_backups"),
			Seed:                 v.GetInt64("loop.seed"),
		},
		Training: TrainingConfig{
			MaxEpochs:    v.GetInt("training.max_epochs"),
			Patience:     v.GetInt("training.patience"),
			BatchSize:    v.GetInt("training.batch_size"),
			LearningRate: v.GetFloat64("training.learning_rate"),
		},
		Sessions: SessionsConfig{
			Driver:      v.GetString("sessions.driver"),
			Dir:         v.GetString("sessions.dir"),
			SQLitePath:  v.GetString("sessions.sqlite_path"),
			PostgresDSN: v.GetString("sessions.postgres_dsn"),
		},
		API: APIConfig{
			Listen: v.GetString("api.listen"),
		},
	}
}
