package formats

import (
	"errors"
	"fmt"

	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// Encoder error classes. They alias the terrain errors so errors.Is works
// across both packages.
var (
	ErrInputShape    = terrain.ErrInputShape
	ErrReference     = terrain.ErrReference
	ErrSizeInvariant = terrain.ErrSizeInvariant
)

// Decoder errors.
var (
	ErrInvalidChunkMagic  = errors.New("invalid chunk magic")
	ErrUnsupportedVersion = errors.New("unsupported version")
	ErrTruncatedData      = errors.New("truncated data")
)

// ChunkError locates an encode failure inside a tile. Chunk is -1 when the
// failure is not tied to one sub-chunk.
type ChunkError struct {
	Tile  TileCoord
	Chunk int
	Err   error
}

func (e *ChunkError) Error() string {
	if e.Chunk < 0 {
		return fmt.Sprintf("tile %s: %v", e.Tile, e.Err)
	}
	return fmt.Sprintf("tile %s sub-chunk %d (%d, %d): %v",
		e.Tile, e.Chunk, e.Chunk%terrain.ChunksPerSide, e.Chunk/terrain.ChunksPerSide, e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

func tileError(coord TileCoord, err error) error {
	return &ChunkError{Tile: coord, Chunk: -1, Err: err}
}

func chunkError(coord TileCoord, chunk int, err error) error {
	return &ChunkError{Tile: coord, Chunk: chunk, Err: err}
}
