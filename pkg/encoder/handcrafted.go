package encoder

import "math"

// Handcrafted extracts five surface statistics from a binary mask, each
// normalized to [0, 1]:
//
//  1. Moran's I (spatial autocorrelation, one-pixel vertical lag)
//  2. connected component count (log scale, inverted: fewer is higher)
//  3. mean component area (log scale)
//  4. perimeter / sqrt(area) of components (log scale, inverted)
//  5. foreground entropy (inverted: more certain is higher)
type Handcrafted struct{}

// NewHandcrafted returns the default mask encoder.
func NewHandcrafted() *Handcrafted {
	return &Handcrafted{}
}

// Normalization bounds for the log-scaled morphological features.
const (
	maxLogComponents = 10.82 // ln(50000)
	maxLogArea       = 9.21  // ln(10000)
	maxLogPerimeter  = 1.61  // ln(5)
	maxEntropy       = 0.7
)

// Dim returns 5.
func (e *Handcrafted) Dim() int { return 5 }

// Encode returns the 5-dimensional feature vector for mask.
func (e *Handcrafted) Encode(mask Mask) []float64 {
	areas, perimeter := componentStats(mask)

	return []float64{
		moransI(mask),
		componentScore(len(areas)),
		areaScore(areas),
		perimeterScore(areas, perimeter),
		entropyScore(mask),
	}
}

// EncodeBatch encodes every mask into one row of the returned matrix.
func (e *Handcrafted) EncodeBatch(masks []Mask) [][]float64 {
	features := make([][]float64, len(masks))
	for i, m := range masks {
		features[i] = e.Encode(m)
	}
	return features
}

// moransI computes spatial autocorrelation against a one-pixel vertical
// shift and maps the [-1, 1] result to [0, 1]. A flat mask scores the
// midpoint 0.5.
func moransI(mask Mask) float64 {
	n := float64(len(mask.Pixels))
	if n == 0 {
		return 0.5
	}

	var sum float64
	for _, p := range mask.Pixels {
		sum += float64(p)
	}
	mean := sum / n

	var num, den float64
	for y := 0; y < mask.Height; y++ {
		// Vertical lag wraps around, matching a roll by one row.
		prev := (y - 1 + mask.Height) % mask.Height
		for x := 0; x < mask.Width; x++ {
			d := float64(mask.At(x, y)) - mean
			ds := float64(mask.At(x, prev)) - mean
			num += d * ds
			den += d * d
		}
	}

	if den == 0 {
		return 0.5
	}

	i := clamp(num/den, -1, 1)
	return (i + 1) / 2
}

// componentStats labels 8-connected foreground components and returns the
// area of each plus the total boundary-edge perimeter.
func componentStats(mask Mask) (areas []int, perimeter float64) {
	w, h := mask.Width, mask.Height
	visited := make([]bool, w*h)

	var neighbors = [8][2]int{
		{-1, -1}, {0, -1}, {1, -1},
		{-1, 0}, {1, 0},
		{-1, 1}, {0, 1}, {1, 1},
	}

	for start := 0; start < w*h; start++ {
		if mask.Pixels[start] == 0 || visited[start] {
			continue
		}

		// Flood fill one component.
		area := 0
		stack := []int{start}
		visited[start] = true
		for len(stack) > 0 {
			idx := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			area++

			x, y := idx%w, idx/w
			for _, nb := range neighbors {
				nx, ny := x+nb[0], y+nb[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h {
					continue
				}
				ni := ny*w + nx
				if mask.Pixels[ni] == 1 && !visited[ni] {
					visited[ni] = true
					stack = append(stack, ni)
				}
			}
		}
		areas = append(areas, area)
	}

	// Perimeter: count 4-neighbour transitions from foreground to
	// background or the image border.
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if mask.At(x, y) == 0 {
				continue
			}
			for _, nb := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
				nx, ny := x+nb[0], y+nb[1]
				if nx < 0 || ny < 0 || nx >= w || ny >= h || mask.At(nx, ny) == 0 {
					perimeter++
				}
			}
		}
	}

	return areas, perimeter
}

func componentScore(n int) float64 {
	if n <= 1 {
		return 1.0
	}
	norm := clamp(math.Log(float64(n))/maxLogComponents, 0, 1)
	return 1 - norm
}

func areaScore(areas []int) float64 {
	if len(areas) == 0 {
		return 0.0
	}
	var total float64
	for _, a := range areas {
		total += float64(a)
	}
	meanArea := total / float64(len(areas))
	return clamp(math.Log(meanArea+1)/maxLogArea, 0, 1)
}

func perimeterScore(areas []int, perimeter float64) float64 {
	if len(areas) == 0 {
		return 0.0
	}
	var total float64
	for _, a := range areas {
		total += float64(a)
	}
	ratio := perimeter / math.Sqrt(total+1e-6)
	norm := clamp(math.Log(ratio+1)/maxLogPerimeter, 0, 1)
	return 1 - norm
}

// entropyScore treats the foreground fraction as a pixel-wise confidence
// and returns 1 - normalized mean entropy, so certain masks score high.
func entropyScore(mask Mask) float64 {
	n := float64(len(mask.Pixels))
	if n == 0 {
		return 1.0
	}

	var sum float64
	for _, p := range mask.Pixels {
		q := clamp(float64(p), 1e-10, 1-1e-10)
		sum += -q * math.Log(q)
	}
	mean := sum / n

	return 1 - clamp(mean/maxEntropy, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
