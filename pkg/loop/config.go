package loop

import "github.com/prefopt/maskrank/pkg/model"

// Config holds every option the loop recognizes. Field names mirror the
// persisted session schema.
type Config struct {
	// Acquisition selects the pair-selection policy: random,
	// thompson_sampling (alias ts), ucb, ei or variance.
	Acquisition string `json:"acquisition"`

	// MaxIterations is the hard iteration cap; reaching it forces
	// convergence.
	MaxIterations int `json:"max_iterations"`

	// NPairsPerIteration is the default batch size for GetNextBatch.
	NPairsPerIteration int `json:"n_pairs_per_iteration"`

	// ConvergenceWindow, ConvergenceThreshold and TopK parameterize the
	// top-K stability rule.
	ConvergenceWindow    int `json:"convergence_window"`
	ConvergenceThreshold int `json:"convergence_threshold"`
	TopK                 int `json:"top_k"`

	// BackupInterval triggers an auto-backup whenever the valid-comparison
	// count is an exact multiple of it.
	BackupInterval int `json:"backup_interval"`

	// KeepBackups bounds how many auto-backups are retained per session.
	KeepBackups int `json:"keep_backups"`

	// Model training hyperparameters.
	MaxEpochs    int     `json:"max_epochs"`
	Patience     int     `json:"patience"`
	BatchSize    int     `json:"batch_size"`
	LearningRate float64 `json:"learning_rate"`

	// Seed initializes the loop's random source when no explicit source is
	// injected. Zero means a time-based seed.
	Seed int64 `json:"seed"`
}

// DefaultConfig returns the standard loop configuration.
func DefaultConfig() Config {
	return Config{
		Acquisition:          "thompson_sampling",
		MaxIterations:        100,
		NPairsPerIteration:   10,
		ConvergenceWindow:    5,
		ConvergenceThreshold: 4,
		TopK:                 5,
		BackupInterval:       10,
		KeepBackups:          5,
		MaxEpochs:            100,
		Patience:             10,
		BatchSize:            32,
		LearningRate:         0.01,
	}
}

// TrainConfig extracts the model hyperparameters.
func (c Config) TrainConfig() model.TrainConfig {
	return model.TrainConfig{
		MaxEpochs:    c.MaxEpochs,
		Patience:     c.Patience,
		BatchSize:    c.BatchSize,
		LearningRate: c.LearningRate,
	}
}
