package config

const (
	defaultAcquisition          = "thompson_sampling"
	defaultMaxIterations        = 100
	defaultNPairsPerIteration   = 10
	defaultConvergenceWindow    = 5
	defaultConvergenceThreshold = 4
	defaultTopK                 = 5
	defaultBackupInterval       = 10
	defaultKeepBackups          = 5

	defaultMaxEpochs    = 100
	defaultPatience     = 10
	defaultBatchSize    = 32
	defaultLearningRate = 0.01

	defaultSessionsDriver = "fs"
	defaultSessionsDir    = "data/sessions"

	defaultAPIListen = ":8080"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Loop: LoopConfig{
			Acquisition:          defaultAcquisition,
			MaxIterations:        defaultMaxIterations,
			NPairsPerIteration:   defaultNPairsPerIteration,
			ConvergenceWindow:    defaultConvergenceWindow,
			ConvergenceThreshold: defaultConvergenceThreshold,
			TopK:                 defaultTopK,
			BackupInterval:       defaultBackupInterval,
			KeepBackups:          defaultKeepBackups,
		},
		Training: TrainingConfig{
			MaxEpochs:    defaultMaxEpochs,
			Patience:     defaultPatience,
			BatchSize:    defaultBatchSize,
			LearningRate: defaultLearningRate,
		},
		Sessions: SessionsConfig{
			Driver: defaultSessionsDriver,
			Dir:    defaultSessionsDir,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
	}
}
