// Package terrain implements the numeric side of tile authoring: heightmap
// resampling into the interleaved 145-vertex layout, normal estimation and
// texture layer packing.
package terrain

import "errors"

// Grid dimensions of one tile.
const (
	ChunksPerSide  = 16                            // sub-chunks per tile edge
	ChunkCount     = ChunksPerSide * ChunksPerSide // sub-chunks per tile
	CellsPerChunk  = 8                             // height cells per sub-chunk edge
	HeightmapSize  = ChunksPerSide*CellsPerChunk + 1
	OuterPerRow    = CellsPerChunk + 1
	InnerPerRow    = CellsPerChunk
	OuterCount     = OuterPerRow * OuterPerRow
	InnerCount     = InnerPerRow * InnerPerRow
	VertexCount    = OuterCount + InnerCount
	InterleaveRows = OuterPerRow + InnerPerRow
)

// World-space sizes in client units.
const (
	TileSize  float32 = 1600.0 / 3.0
	ChunkSize         = TileSize / ChunksPerSide
	UnitSize          = ChunkSize / CellsPerChunk
)

// Alpha and layer limits.
const (
	AlphaSide  = 64
	AlphaBytes = AlphaSide * AlphaSide
	MaxLayers  = 4
	SplatSide  = AlphaSide * ChunksPerSide
)

// Error classes shared by the terrain and format encoders.
var (
	// ErrInputShape reports caller input with the wrong shape or range.
	ErrInputShape = errors.New("input shape error")
	// ErrReference reports a layer referencing a texture outside the table.
	ErrReference = errors.New("texture reference error")
	// ErrSizeInvariant reports an encoder defect: a produced block does not
	// match its fixed size. It never results from bad input.
	ErrSizeInvariant = errors.New("size invariant violation")
)

// Heightmap is a dense HeightmapSize x HeightmapSize grid of elevations
// covering one tile, stored row-major. Values are relative to the tile's
// base height.
type Heightmap struct {
	samples []float32
}

// Position is one entry of the interleaved vertex layout. Row and Col are
// in half grid steps relative to the sub-chunk origin, so outer vertices have
// even coordinates and inner vertices odd ones.
type Position struct {
	Row   int
	Col   int
	Outer bool
}

// AlphaMap is a 64x64 grid of blend weights, row-major.
type AlphaMap [AlphaBytes]byte

// LayerRecord is one texture layer definition of a sub-chunk.
type LayerRecord struct {
	TextureID   uint32
	Flags       uint32
	AlphaOffset uint32
	EffectID    uint32
}

// Layer flags.
const (
	LayerUseAlpha uint32 = 0x100
)

// AlphaFallback selects the blend grid used when a layer has no splat data.
type AlphaFallback int

const (
	// AlphaOpaque paints the layer fully over the region.
	AlphaOpaque AlphaFallback = iota
	// AlphaTransparent leaves the region showing the layers below.
	AlphaTransparent
)

// String returns the config spelling of the fallback.
func (f AlphaFallback) String() string {
	switch f {
	case AlphaOpaque:
		return "opaque"
	case AlphaTransparent:
		return "transparent"
	default:
		return "unknown"
	}
}

// ParseAlphaFallback parses "opaque" or "transparent". Empty means opaque.
func ParseAlphaFallback(s string) (AlphaFallback, error) {
	switch s {
	case "", "opaque":
		return AlphaOpaque, nil
	case "transparent":
		return AlphaTransparent, nil
	default:
		return AlphaOpaque, errors.New("unknown alpha fallback: " + s)
	}
}
