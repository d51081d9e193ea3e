package formats

import (
	"fmt"
	"strings"

	gmath "github.com/Faultbox/midgard-forge/pkg/math"
	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// mapOrigin is the world coordinate of the grid's north-west corner. World
// axes run opposite to tile indices.
const mapOrigin = GridSize / 2 * terrain.TileSize

// Doodad is a small model placement. Fields are written verbatim; Position
// uses placement space, where X and Z are horizontal and Y is elevation.
type Doodad struct {
	Model    string
	UniqueID uint32
	Position [3]float32
	Rotation [3]float32
	Scale    uint16 // 1024 = 1.0
	Flags    uint16
}

// Structure is a large map object placement, written verbatim.
type Structure struct {
	Model     string
	UniqueID  uint32
	Position  [3]float32
	Rotation  [3]float32
	Extents   [2][3]float32
	Flags     uint16
	DoodadSet uint16
	NameSet   uint16
	Scale     uint16
}

// TileInput is everything needed to encode one tile payload.
type TileInput struct {
	Coord      TileCoord
	BaseHeight float32 // elevation of the tile's heightmap zero
	AreaID     uint32
	Heightmap  *terrain.Heightmap

	// Textures lists texture paths. Duplicates are folded into one table
	// entry; layer and splat references use indices into this list.
	Textures []string

	// DefaultLayers is the layer list of sub-chunks without an entry in
	// ChunkLayers. Nil means every texture in order.
	DefaultLayers []int
	ChunkLayers   map[int][]int

	// Splat holds alpha grids keyed by sub-chunk index, then texture index.
	Splat map[int]map[int]*terrain.AlphaMap

	Doodads    []Doodad
	Structures []Structure
}

// EncodeOptions tunes tile encoding.
type EncodeOptions struct {
	MissingAlpha terrain.AlphaFallback
	HeaderFlags  uint32
}

// layersFor returns the texture indices layered on sub-chunk i.
func (in *TileInput) layersFor(i int) []int {
	if l, ok := in.ChunkLayers[i]; ok {
		return l
	}
	if in.DefaultLayers != nil {
		return in.DefaultLayers
	}
	all := make([]int, len(in.Textures))
	for j := range all {
		all[j] = j
	}
	return all
}

// Validate checks the whole input. Encoding never starts on invalid input.
func (in *TileInput) Validate() error {
	if in == nil {
		return fmt.Errorf("%w: nil tile input", ErrInputShape)
	}
	if !in.Coord.Valid() {
		return tileError(in.Coord, fmt.Errorf("%w: tile outside %dx%d grid", ErrInputShape, GridSize, GridSize))
	}
	if err := in.Heightmap.Validate(); err != nil {
		return tileError(in.Coord, err)
	}
	for i, name := range in.Textures {
		if name == "" {
			return tileError(in.Coord, fmt.Errorf("%w: texture %d has an empty name", ErrInputShape, i))
		}
	}

	for i := range in.ChunkLayers {
		if i < 0 || i >= terrain.ChunkCount {
			return tileError(in.Coord, fmt.Errorf("%w: layer override for sub-chunk %d", ErrInputShape, i))
		}
	}
	for i := 0; i < terrain.ChunkCount; i++ {
		layers := in.layersFor(i)
		if len(layers) > terrain.MaxLayers {
			return chunkError(in.Coord, i, fmt.Errorf("%w: %d texture layers, at most %d allowed",
				ErrInputShape, len(layers), terrain.MaxLayers))
		}
		for _, t := range layers {
			if t < 0 || t >= len(in.Textures) {
				return chunkError(in.Coord, i, fmt.Errorf("%w: layer texture %d not in table of %d",
					ErrReference, t, len(in.Textures)))
			}
		}
	}

	for i, bySplat := range in.Splat {
		if i < 0 || i >= terrain.ChunkCount {
			return tileError(in.Coord, fmt.Errorf("%w: splat for sub-chunk %d", ErrInputShape, i))
		}
		for t := range bySplat {
			if t < 0 || t >= len(in.Textures) {
				return chunkError(in.Coord, i, fmt.Errorf("%w: splat texture %d not in table of %d",
					ErrReference, t, len(in.Textures)))
			}
		}
	}

	for i, d := range in.Doodads {
		if d.Model == "" {
			return tileError(in.Coord, fmt.Errorf("%w: doodad %d has no model", ErrInputShape, i))
		}
	}
	for i, s := range in.Structures {
		if s.Model == "" {
			return tileError(in.Coord, fmt.Errorf("%w: structure %d has no model", ErrInputShape, i))
		}
	}
	return nil
}

// textureKey folds the spellings the client treats as the same file.
func textureKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "/", "\\"))
}

// DedupTextures folds duplicate texture names. It returns the table, keeping
// the first spelling of each name, and the table index of every input name.
func DedupTextures(names []string) ([]string, []uint32) {
	table := make([]string, 0, len(names))
	remap := make([]uint32, len(names))
	seen := make(map[string]uint32, len(names))
	for i, name := range names {
		key := textureKey(name)
		idx, ok := seen[key]
		if !ok {
			idx = uint32(len(table))
			seen[key] = idx
			table = append(table, name)
		}
		remap[i] = idx
	}
	return table, remap
}

// modelTable deduplicates model names, returning the names in first-use order
// and each placement's name index.
func modelTable(models []string) ([]string, []uint32) {
	table := make([]string, 0, len(models))
	ids := make([]uint32, len(models))
	seen := make(map[string]uint32, len(models))
	for i, m := range models {
		idx, ok := seen[m]
		if !ok {
			idx = uint32(len(table))
			seen[m] = idx
			table = append(table, m)
		}
		ids[i] = idx
	}
	return table, ids
}

// placementChunk returns the sub-chunk index holding a placement-space
// position of the given tile. Positions outside the tile land on its border.
func placementChunk(coord TileCoord, pos [3]float32) int {
	local := gmath.Vec2{
		X: pos[0] - float32(coord.X)*terrain.TileSize,
		Y: pos[2] - float32(coord.Y)*terrain.TileSize,
	}
	cx, cy := local.Cell(terrain.ChunkSize, terrain.ChunksPerSide)
	return cy*terrain.ChunksPerSide + cx
}

// chunkPosition returns the world position of a sub-chunk's first vertex.
func chunkPosition(coord TileCoord, cx, cy int, base float32) [3]float32 {
	return [3]float32{
		mapOrigin - (float32(coord.Y)*terrain.TileSize + float32(cy)*terrain.ChunkSize),
		mapOrigin - (float32(coord.X)*terrain.TileSize + float32(cx)*terrain.ChunkSize),
		base,
	}
}
