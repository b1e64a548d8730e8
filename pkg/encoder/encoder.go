// Package encoder turns segmentation masks into fixed-length feature vectors
// and provides the column standardization applied before preference learning.
package encoder

// Mask is a binary segmentation mask stored row-major. Pixels holds
// Width*Height values of 0 or 1.
type Mask struct {
	Width  int
	Height int
	Pixels []uint8
}

// At returns the pixel at column x, row y.
func (m Mask) At(x, y int) uint8 {
	return m.Pixels[y*m.Width+x]
}

// NewMask allocates an all-background mask of the given size.
func NewMask(width, height int) Mask {
	return Mask{
		Width:  width,
		Height: height,
		Pixels: make([]uint8, width*height),
	}
}

// FeatureEncoder encodes candidate masks into fixed-dimension feature vectors.
type FeatureEncoder interface {
	// Encode returns the feature vector for a single mask.
	Encode(mask Mask) []float64

	// EncodeBatch encodes all masks into a feature matrix, one row per mask.
	EncodeBatch(masks []Mask) [][]float64

	// Dim returns the dimensionality of the feature vectors.
	Dim() int
}
