// Package oracle provides simulated judges for exercising the active
// learning loop in tests and the simulate command.
package oracle

import "github.com/prefopt/maskrank/pkg/encoder"

// Oracle answers pairwise preference queries between masks.
type Oracle interface {
	// Name returns a human-readable name.
	Name() string

	// Prefer reports whether mask a is preferred over mask b.
	Prefer(a, b encoder.Mask) bool
}
