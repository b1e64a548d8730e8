package encoder

import "math"

// Scaler standardizes feature columns to zero mean and unit variance.
// It is fitted once on the full candidate batch at loop construction and
// frozen for the lifetime of a session.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// FitScaler computes per-column mean and standard deviation from the
// feature matrix. Zero-variance columns get a unit std so transforming
// them is a no-op shift rather than a division by zero.
func FitScaler(features [][]float64) *Scaler {
	if len(features) == 0 {
		return &Scaler{}
	}

	dim := len(features[0])
	mean := make([]float64, dim)
	std := make([]float64, dim)

	for _, row := range features {
		for c, v := range row {
			mean[c] += v
		}
	}
	n := float64(len(features))
	for c := range mean {
		mean[c] /= n
	}

	for _, row := range features {
		for c, v := range row {
			d := v - mean[c]
			std[c] += d * d
		}
	}
	for c := range std {
		std[c] = math.Sqrt(std[c] / n)
		if std[c] == 0 {
			std[c] = 1
		}
	}

	return &Scaler{Mean: mean, Std: std}
}

// Transform returns a standardized copy of the feature matrix.
func (s *Scaler) Transform(features [][]float64) [][]float64 {
	out := make([][]float64, len(features))
	for i, row := range features {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow returns a standardized copy of a single feature vector.
func (s *Scaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for c, v := range row {
		out[c] = (v - s.Mean[c]) / s.Std[c]
	}
	return out
}
