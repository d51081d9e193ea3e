package terrain

import (
	"fmt"
	"math"
)

// NewHeightmap builds a heightmap from row-major samples. size is the edge
// length of the input and must equal HeightmapSize. The samples are copied.
func NewHeightmap(size int, samples []float32) (*Heightmap, error) {
	if size != HeightmapSize {
		return nil, fmt.Errorf("%w: heightmap is %dx%d, want %dx%d",
			ErrInputShape, size, size, HeightmapSize, HeightmapSize)
	}
	if len(samples) != size*size {
		return nil, fmt.Errorf("%w: heightmap has %d samples, want %d",
			ErrInputShape, len(samples), size*size)
	}
	if err := checkFinite(samples); err != nil {
		return nil, err
	}
	hm := &Heightmap{samples: make([]float32, len(samples))}
	copy(hm.samples, samples)
	return hm, nil
}

// FlatHeightmap returns a heightmap with every sample set to h.
func FlatHeightmap(h float32) *Heightmap {
	hm := &Heightmap{samples: make([]float32, HeightmapSize*HeightmapSize)}
	for i := range hm.samples {
		hm.samples[i] = h
	}
	return hm
}

// HeightmapFunc builds a heightmap by evaluating fn at every (row, col).
// Non-finite results are caught by Validate.
func HeightmapFunc(fn func(row, col int) float32) *Heightmap {
	hm := &Heightmap{samples: make([]float32, HeightmapSize*HeightmapSize)}
	for row := range HeightmapSize {
		for col := range HeightmapSize {
			hm.samples[row*HeightmapSize+col] = fn(row, col)
		}
	}
	return hm
}

// Validate reports ErrInputShape for a nil or zero-value heightmap and for
// NaN or infinite samples.
func (h *Heightmap) Validate() error {
	if h == nil || len(h.samples) != HeightmapSize*HeightmapSize {
		return fmt.Errorf("%w: heightmap is not %dx%d", ErrInputShape, HeightmapSize, HeightmapSize)
	}
	return checkFinite(h.samples)
}

func checkFinite(samples []float32) error {
	for i, s := range samples {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: heightmap sample at (%d, %d) is %v",
				ErrInputShape, i/HeightmapSize, i%HeightmapSize, s)
		}
	}
	return nil
}

// At returns the sample at (row, col). Coordinates are clamped to the grid.
func (h *Heightmap) At(row, col int) float32 {
	row = clampIndex(row, HeightmapSize-1)
	col = clampIndex(col, HeightmapSize-1)
	return h.samples[row*HeightmapSize+col]
}

// Samples returns a copy of the row-major samples.
func (h *Heightmap) Samples() []float32 {
	out := make([]float32, len(h.samples))
	copy(out, h.samples)
	return out
}

// Range returns the minimum and maximum sample.
func (h *Heightmap) Range() (min, max float32) {
	if len(h.samples) == 0 {
		return 0, 0
	}
	min, max = h.samples[0], h.samples[0]
	for _, s := range h.samples {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return min, max
}

// sampleHalf returns the elevation at half-step grid coordinates (hr, hc),
// where the full-step sample (r, c) sits at (2r, 2c). Points between samples
// are bilinearly interpolated; at half steps that is the mean of the two or
// four surrounding samples. Coordinates outside the tile are clamped to the
// edge.
func (h *Heightmap) sampleHalf(hr, hc int) float32 {
	hr = clampIndex(hr, 2*(HeightmapSize-1))
	hc = clampIndex(hc, 2*(HeightmapSize-1))

	r, c := hr/2, hc/2
	oddR, oddC := hr%2 == 1, hc%2 == 1

	switch {
	case !oddR && !oddC:
		return h.At(r, c)
	case oddR && oddC:
		// Fixed summation order keeps the result reproducible.
		return ((h.At(r, c) + h.At(r, c+1)) + (h.At(r+1, c) + h.At(r+1, c+1))) / 4
	case oddR:
		return (h.At(r, c) + h.At(r+1, c)) / 2
	default:
		return (h.At(r, c) + h.At(r, c+1)) / 2
	}
}

func clampIndex(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
