package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

// GridSize is the number of tiles along each edge of the world grid.
const GridSize = 64

// GridEntries is the number of entries in the MAIN table.
const GridEntries = GridSize * GridSize

// Sizes of the grid descriptor blocks.
const (
	mphdSize      = 32
	mainEntrySize = 8
	mainSize      = GridEntries * mainEntrySize

	// WDTSize is the size of every encoded grid descriptor.
	WDTSize = (chunkHeaderSize + 4) + (chunkHeaderSize + mphdSize) + (chunkHeaderSize + mainSize) + chunkHeaderSize
)

// MPHD global flags.
const (
	MPHDUseGlobalMapObj  uint32 = 0x1
	MPHDVertexShading    uint32 = 0x2
	MPHDBigAlpha         uint32 = 0x4
	MPHDDoodadRefsSorted uint32 = 0x8
)

// mainTilePresent marks a MAIN entry whose tile has a payload.
const mainTilePresent uint32 = 0x1

// TileCoord is a tile position on the world grid.
type TileCoord struct {
	X, Y int
}

// String returns the coordinate as "(x, y)".
func (c TileCoord) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// Valid reports whether the coordinate lies on the grid.
func (c TileCoord) Valid() bool {
	return c.X >= 0 && c.Y >= 0 && c.X < GridSize && c.Y < GridSize
}

// Index returns the MAIN entry index of the coordinate.
func (c TileCoord) Index() int {
	return c.Y*GridSize + c.X
}

// WorldGrid is the set of active tiles of one map and its global flags.
type WorldGrid struct {
	Flags uint32
	Tiles []TileCoord
}

// Has reports whether the coordinate is active.
func (g *WorldGrid) Has(c TileCoord) bool {
	for _, t := range g.Tiles {
		if t == c {
			return true
		}
	}
	return false
}

// Sorted returns the active coordinates deduplicated in MAIN order.
func (g *WorldGrid) Sorted() []TileCoord {
	seen := make(map[TileCoord]bool, len(g.Tiles))
	out := make([]TileCoord, 0, len(g.Tiles))
	for _, t := range g.Tiles {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Index() < out[j].Index()
	})
	return out
}

type mphdBlock struct {
	Flags    uint32
	Reserved [7]uint32
}

type mainEntry struct {
	Flags    uint32
	Reserved uint32
}

// EncodeWDT encodes the grid descriptor. Every coordinate must lie on the
// grid; duplicates are harmless. The output is always WDTSize bytes.
func EncodeWDT(grid WorldGrid) ([]byte, error) {
	var entries [GridEntries]mainEntry
	for _, t := range grid.Tiles {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: tile %s outside %dx%d grid", ErrInputShape, t, GridSize, GridSize)
		}
		entries[t.Index()].Flags = mainTilePresent
	}

	var buf bytes.Buffer
	buf.Grow(WDTSize)

	if err := writeStructChunk(&buf, chunkMVER, uint32(FormatVersion), 4); err != nil {
		return nil, err
	}
	if err := writeStructChunk(&buf, chunkMPHD, mphdBlock{Flags: grid.Flags}, mphdSize); err != nil {
		return nil, err
	}
	if err := writeStructChunk(&buf, chunkMAIN, entries[:], mainSize); err != nil {
		return nil, err
	}
	// The client expects an MWMO chunk even when the map has no global object.
	writeChunk(&buf, chunkMWMO, nil)

	if buf.Len() != WDTSize {
		return nil, fmt.Errorf("%w: grid descriptor is %d bytes, want %d", ErrSizeInvariant, buf.Len(), WDTSize)
	}
	return buf.Bytes(), nil
}

// ParseWDT decodes a grid descriptor. Tiles are returned in MAIN order.
func ParseWDT(data []byte) (*WorldGrid, error) {
	mver, err := expectChunk(data, 0, chunkMVER)
	if err != nil {
		return nil, err
	}
	if len(mver.Data) < 4 {
		return nil, fmt.Errorf("%w: reading version", ErrTruncatedData)
	}
	if v := binary.LittleEndian.Uint32(mver.Data); v != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}

	mphd, err := expectChunk(data, mver.end(), chunkMPHD)
	if err != nil {
		return nil, err
	}
	if len(mphd.Data) < 4 {
		return nil, fmt.Errorf("%w: reading flags", ErrTruncatedData)
	}

	mainChunk, err := expectChunk(data, mphd.end(), chunkMAIN)
	if err != nil {
		return nil, err
	}
	if len(mainChunk.Data) != mainSize {
		return nil, fmt.Errorf("%w: MAIN is %d bytes, want %d", ErrTruncatedData, len(mainChunk.Data), mainSize)
	}

	if _, err := expectChunk(data, mainChunk.end(), chunkMWMO); err != nil {
		return nil, err
	}

	grid := &WorldGrid{Flags: binary.LittleEndian.Uint32(mphd.Data)}
	for i := 0; i < GridEntries; i++ {
		if binary.LittleEndian.Uint32(mainChunk.Data[i*mainEntrySize:])&mainTilePresent != 0 {
			grid.Tiles = append(grid.Tiles, TileCoord{X: i % GridSize, Y: i / GridSize})
		}
	}
	return grid, nil
}

// ParseWDTFile parses a grid descriptor from disk.
func ParseWDTFile(path string) (*WorldGrid, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading WDT file: %w", err)
	}
	return ParseWDT(data)
}
