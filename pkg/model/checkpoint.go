package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prefopt/maskrank/pkg/encoder"
)

// checkpoint is the serialized trained state. Loading it into a fresh
// strategy yields identical PredictPreference results.
type checkpoint struct {
	Weights []float64       `json:"weights"`
	PostVar []float64       `json:"post_var"`
	Scaler  *encoder.Scaler `json:"scaler"`
	Config  TrainConfig     `json:"config"`
}

// MarshalState serializes the trained state.
func (m *LogisticStrategy) MarshalState() ([]byte, error) {
	if !m.trained {
		return nil, ErrNotTrained
	}

	return json.Marshal(checkpoint{
		Weights: m.weights,
		PostVar: m.postVar,
		Scaler:  m.scaler,
		Config:  m.cfg,
	})
}

// UnmarshalState restores trained state previously produced by MarshalState.
func (m *LogisticStrategy) UnmarshalState(data []byte) error {
	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("unmarshaling model state: %w", err)
	}
	if len(cp.Weights) == 0 || cp.Scaler == nil {
		return InvalidInputError{Reason: "model state has no trained weights"}
	}

	m.weights = cp.Weights
	m.postVar = cp.PostVar
	m.scaler = cp.Scaler
	m.cfg = cp.Config
	m.trained = true

	return nil
}

// SaveCheckpoint writes the trained state as JSON, via a temp file and an
// atomic rename so a crash mid-write cannot truncate an existing checkpoint.
func (m *LogisticStrategy) SaveCheckpoint(path string) error {
	data, err := m.MarshalState()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating checkpoint dir: %w", err)
	}

	return atomicWrite(path, data)
}

// LoadCheckpoint restores trained state from a checkpoint file.
func (m *LogisticStrategy) LoadCheckpoint(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading checkpoint: %w", err)
	}
	return m.UnmarshalState(data)
}

// atomicWrite writes data to a temp file in the target directory and
// renames it into place.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
