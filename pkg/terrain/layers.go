package terrain

import "fmt"

// NewAlphaMap copies a 4096-byte row-major grid into an AlphaMap.
func NewAlphaMap(data []byte) (*AlphaMap, error) {
	if len(data) != AlphaBytes {
		return nil, fmt.Errorf("%w: alpha map has %d bytes, want %d", ErrInputShape, len(data), AlphaBytes)
	}
	var m AlphaMap
	copy(m[:], data)
	return &m, nil
}

// FilledAlphaMap returns a grid with every weight set to v.
func FilledAlphaMap(v byte) *AlphaMap {
	var m AlphaMap
	for i := range m {
		m[i] = v
	}
	return &m
}

// At returns the weight at (row, col).
func (m *AlphaMap) At(row, col int) byte {
	return m[row*AlphaSide+col]
}

func (f AlphaFallback) grid() *AlphaMap {
	if f == AlphaTransparent {
		return FilledAlphaMap(0)
	}
	return FilledAlphaMap(255)
}

// PackLayers builds the layer records and alpha grids of one sub-chunk.
// textureIDs lists the layer textures bottom to top; the first is the opaque
// base and never consumes an alpha grid even when splat has one for it.
// Every other layer takes its grid from splat, or the fallback grid when the
// texture has none. Grids are copied, never aliased.
func PackLayers(textureIDs []uint32, splat map[uint32]*AlphaMap, fallback AlphaFallback) ([]LayerRecord, []AlphaMap, error) {
	if len(textureIDs) > MaxLayers {
		return nil, nil, fmt.Errorf("%w: %d texture layers, at most %d allowed",
			ErrInputShape, len(textureIDs), MaxLayers)
	}
	if len(textureIDs) == 0 {
		return nil, nil, nil
	}

	records := make([]LayerRecord, len(textureIDs))
	alphas := make([]AlphaMap, 0, len(textureIDs)-1)

	for i, id := range textureIDs {
		records[i].TextureID = id
		if i == 0 {
			continue
		}

		grid := splat[id]
		if grid == nil {
			grid = fallback.grid()
		}
		records[i].Flags = LayerUseAlpha
		records[i].AlphaOffset = uint32(len(alphas) * AlphaBytes)
		alphas = append(alphas, *grid)
	}

	if len(alphas) != len(textureIDs)-1 {
		return nil, nil, fmt.Errorf("%w: %d alpha grids for %d layers", ErrSizeInvariant, len(alphas), len(textureIDs))
	}
	return records, alphas, nil
}

// SplitSplat cuts a tile-wide SplatSide x SplatSide weight image into the
// per-sub-chunk alpha maps, indexed row-major by sub-chunk.
func SplitSplat(pixels []byte, width, height int) ([ChunkCount]AlphaMap, error) {
	var out [ChunkCount]AlphaMap
	if width != SplatSide || height != SplatSide || len(pixels) != width*height {
		return out, fmt.Errorf("%w: splat image is %dx%d (%d bytes), want %dx%d",
			ErrInputShape, width, height, len(pixels), SplatSide, SplatSide)
	}
	for cy := range ChunksPerSide {
		for cx := range ChunksPerSide {
			m := &out[cy*ChunksPerSide+cx]
			for row := range AlphaSide {
				src := (cy*AlphaSide+row)*SplatSide + cx*AlphaSide
				copy(m[row*AlphaSide:(row+1)*AlphaSide], pixels[src:src+AlphaSide])
			}
		}
	}
	return out, nil
}
