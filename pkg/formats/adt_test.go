package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// flatTile returns a tile input with a flat heightmap and the given textures.
func flatTile(coord TileCoord, height float32, textures ...string) *TileInput {
	return &TileInput{
		Coord:     coord,
		Heightmap: terrain.FlatHeightmap(height),
		Textures:  textures,
	}
}

func checkerboard() *terrain.AlphaMap {
	var m terrain.AlphaMap
	for row := 0; row < terrain.AlphaSide; row++ {
		for col := 0; col < terrain.AlphaSide; col++ {
			if (row+col)%2 == 0 {
				m[row*terrain.AlphaSide+col] = 255
			}
		}
	}
	return &m
}

func mustEncode(t *testing.T, in *TileInput, opts EncodeOptions) (*ADT, []byte) {
	t.Helper()
	data, err := EncodeADT(in, opts)
	if err != nil {
		t.Fatalf("EncodeADT failed: %v", err)
	}
	adt, err := ParseADT(data)
	if err != nil {
		t.Fatalf("ParseADT failed: %v", err)
	}
	return adt, data
}

func TestEncodeADT_FlatMap(t *testing.T) {
	coords := []TileCoord{{32, 32}, {32, 33}}

	gridData, err := EncodeWDT(WorldGrid{Flags: MPHDBigAlpha, Tiles: coords})
	if err != nil {
		t.Fatalf("EncodeWDT failed: %v", err)
	}
	grid, err := ParseWDT(gridData)
	if err != nil {
		t.Fatalf("ParseWDT failed: %v", err)
	}
	if len(grid.Tiles) != 2 || grid.Tiles[0] != coords[0] || grid.Tiles[1] != coords[1] {
		t.Fatalf("expected exactly %v present, got %v", coords, grid.Tiles)
	}

	for _, c := range coords {
		adt, _ := mustEncode(t, flatTile(c, 100, "tileset\\grass.blp"), EncodeOptions{})

		if len(adt.Chunks) != terrain.ChunkCount {
			t.Fatalf("tile %s: expected %d sub-chunks, got %d", c, terrain.ChunkCount, len(adt.Chunks))
		}
		for i, chunk := range adt.Chunks {
			if len(chunk.Layers) != 1 || len(chunk.Alpha) != 0 {
				t.Fatalf("tile %s sub-chunk %d: %d layers, %d alpha", c, i, len(chunk.Layers), len(chunk.Alpha))
			}
			if chunk.Layers[0].Flags != 0 || chunk.Layers[0].AlphaOffset != 0 {
				t.Errorf("tile %s sub-chunk %d: base layer %+v", c, i, chunk.Layers[0])
			}
			for v, h := range chunk.Heights {
				if h != 100 {
					t.Fatalf("tile %s sub-chunk %d vertex %d: height %f", c, i, v, h)
				}
			}
			for v, n := range chunk.Normals {
				if n[0] != 0 || n[1] != 0 || n[2] != 127 {
					t.Fatalf("tile %s sub-chunk %d vertex %d: normal %v", c, i, v, n)
				}
			}
			if int(chunk.IndexX) != i%16 || int(chunk.IndexY) != i/16 {
				t.Errorf("sub-chunk %d has index (%d, %d)", i, chunk.IndexX, chunk.IndexY)
			}
		}
	}
}

func TestEncodeADT_CheckerboardSplat(t *testing.T) {
	const painted = 37
	in := flatTile(TileCoord{32, 32}, 100, "tileset\\grass.blp", "tileset\\dirt.blp")
	in.Splat = map[int]map[int]*terrain.AlphaMap{
		painted: {1: checkerboard()},
	}

	adt, _ := mustEncode(t, in, EncodeOptions{MissingAlpha: terrain.AlphaOpaque})

	opaque := *terrain.FilledAlphaMap(255)
	for i, chunk := range adt.Chunks {
		if len(chunk.Layers) != 2 || len(chunk.Alpha) != 1 {
			t.Fatalf("sub-chunk %d: %d layers, %d alpha", i, len(chunk.Layers), len(chunk.Alpha))
		}
		if chunk.Layers[1].Flags&terrain.LayerUseAlpha == 0 {
			t.Errorf("sub-chunk %d: layer 1 missing alpha flag", i)
		}
		want := opaque
		if i == painted {
			want = *checkerboard()
		}
		if chunk.Alpha[0] != want {
			t.Errorf("sub-chunk %d: unexpected alpha contents", i)
		}
	}
}

func TestEncodeADT_TransparentFallback(t *testing.T) {
	in := flatTile(TileCoord{1, 1}, 0, "a.blp", "b.blp")
	in.Splat = map[int]map[int]*terrain.AlphaMap{0: {1: checkerboard()}}

	adt, _ := mustEncode(t, in, EncodeOptions{MissingAlpha: terrain.AlphaTransparent})
	if adt.Chunks[0].Alpha[0] != *checkerboard() {
		t.Error("painted sub-chunk lost its splat")
	}
	if adt.Chunks[1].Alpha[0] != *terrain.FilledAlphaMap(0) {
		t.Error("unpainted sub-chunk should use the transparent fallback")
	}
}

func TestEncodeADT_Layout(t *testing.T) {
	in := flatTile(TileCoord{10, 20}, 5, "a.blp")
	data, err := EncodeADT(in, EncodeOptions{})
	if err != nil {
		t.Fatalf("EncodeADT failed: %v", err)
	}

	const mcnkSize = 8 + 128 + (8 + 580) + (8 + 448) + (8 + 16) + 8 + 8
	mtexSize := chunkHeaderSize + len("a.blp") + 1
	want := 12 + (8 + 64) + (8 + 4096) + mtexSize + 6*chunkHeaderSize + terrain.ChunkCount*mcnkSize
	if len(data) != want {
		t.Errorf("expected %d bytes, got %d", want, len(data))
	}

	// Every MCIN entry points at an MCNK of the recorded size.
	mcin := 12 + 8 + 64 + 8
	for i := 0; i < terrain.ChunkCount; i++ {
		off := binary.LittleEndian.Uint32(data[mcin+16*i:])
		size := binary.LittleEndian.Uint32(data[mcin+16*i+4:])
		if string(data[off:off+4]) != "KNCM" {
			t.Fatalf("MCIN entry %d points at %q", i, data[off:off+4])
		}
		if size != mcnkSize {
			t.Errorf("MCIN entry %d size %d, want %d", i, size, mcnkSize)
		}
	}

	// MHDR offsets are relative to the MHDR payload.
	ofsMCIN := binary.LittleEndian.Uint32(data[20+4:])
	if string(data[20+ofsMCIN:20+ofsMCIN+4]) != "NICM" {
		t.Errorf("MHDR MCIN offset %d does not point at MCIN", ofsMCIN)
	}
}

func TestEncodeADT_MixedLayerCounts(t *testing.T) {
	in := flatTile(TileCoord{2, 3}, 0, "a.blp", "b.blp", "c.blp", "d.blp")
	in.DefaultLayers = []int{0}
	in.ChunkLayers = map[int][]int{
		5:   {0, 1, 2, 3},
		200: {2, 1},
		255: {},
	}

	adt, _ := mustEncode(t, in, EncodeOptions{})
	counts := adt.CountLayers()
	if counts[1] != 253 || counts[4] != 1 || counts[2] != 1 || counts[0] != 1 {
		t.Errorf("unexpected layer counts %v", counts)
	}
	if len(adt.Chunks[5].Alpha) != 3 {
		t.Errorf("expected 3 alpha maps, got %d", len(adt.Chunks[5].Alpha))
	}
	if adt.Chunks[200].Layers[0].TextureID != 2 || adt.Chunks[200].Layers[1].TextureID != 1 {
		t.Errorf("unexpected layers %+v", adt.Chunks[200].Layers)
	}
}

func TestEncodeADT_DedupTextures(t *testing.T) {
	in := flatTile(TileCoord{0, 0}, 0, "Tileset\\Grass.blp", "tileset/grass.BLP", "tileset\\rock.blp")

	adt, _ := mustEncode(t, in, EncodeOptions{})
	if len(adt.Textures) != 2 || adt.Textures[0] != "Tileset\\Grass.blp" || adt.Textures[1] != "tileset\\rock.blp" {
		t.Fatalf("unexpected texture table %q", adt.Textures)
	}
	layers := adt.Chunks[0].Layers
	if layers[0].TextureID != 0 || layers[1].TextureID != 0 || layers[2].TextureID != 1 {
		t.Errorf("unexpected layer texture IDs %+v", layers)
	}
}

func TestEncodeADT_Objects(t *testing.T) {
	coord := TileCoord{30, 40}
	origin := [2]float32{float32(coord.X) * terrain.TileSize, float32(coord.Y) * terrain.TileSize}

	in := flatTile(coord, 0, "a.blp")
	in.Doodads = []Doodad{
		{Model: "world\\tree.m2", UniqueID: 11, Scale: 1024,
			Position: [3]float32{origin[0] + 3.5*terrain.ChunkSize, 12, origin[1] + 5.5*terrain.ChunkSize}},
		{Model: "world\\tree.m2", UniqueID: 12, Scale: 512,
			Position: [3]float32{origin[0] + 3.2*terrain.ChunkSize, 12, origin[1] + 5.9*terrain.ChunkSize}},
	}
	in.Structures = []Structure{
		{Model: "world\\keep.wmo", UniqueID: 99, Position: [3]float32{origin[0] + 1, 0, origin[1] + 1}},
	}

	adt, _ := mustEncode(t, in, EncodeOptions{})

	if len(adt.Doodads) != 2 || adt.Doodads[1].Model != "world\\tree.m2" || adt.Doodads[1].Scale != 512 {
		t.Errorf("unexpected doodads %+v", adt.Doodads)
	}
	if len(adt.Structures) != 1 || adt.Structures[0].UniqueID != 99 {
		t.Errorf("unexpected structures %+v", adt.Structures)
	}

	chunk := adt.Chunks[5*16+3]
	if len(chunk.DoodadRefs) != 2 || chunk.DoodadRefs[0] != 0 || chunk.DoodadRefs[1] != 1 {
		t.Errorf("expected doodad refs [0 1], got %v", chunk.DoodadRefs)
	}
	if len(adt.Chunks[0].StructureRefs) != 1 {
		t.Errorf("expected structure ref in sub-chunk 0, got %v", adt.Chunks[0].StructureRefs)
	}
}

func TestEncodeADT_Errors(t *testing.T) {
	five := flatTile(TileCoord{1, 1}, 0, "a", "b", "c", "d", "e")

	badRef := flatTile(TileCoord{1, 1}, 0, "a", "b")
	badRef.ChunkLayers = map[int][]int{77: {0, 2}}

	badSplat := flatTile(TileCoord{1, 1}, 0, "a", "b")
	badSplat.Splat = map[int]map[int]*terrain.AlphaMap{3: {9: checkerboard()}}

	noHeight := flatTile(TileCoord{1, 1}, 0, "a")
	noHeight.Heightmap = nil

	nanHeight := flatTile(TileCoord{1, 1}, 0, "a")
	nanHeight.Heightmap = terrain.HeightmapFunc(func(row, col int) float32 {
		if row == 5 && col == 5 {
			return float32(math.NaN())
		}
		return 0
	})

	tests := []struct {
		name      string
		in        *TileInput
		want      error
		wantChunk int
	}{
		{"five layers", five, ErrInputShape, 0},
		{"bad layer reference", badRef, ErrReference, 77},
		{"bad splat reference", badSplat, ErrReference, 3},
		{"no heightmap", noHeight, ErrInputShape, -1},
		{"out of range tile", flatTile(TileCoord{64, 0}, 0), ErrInputShape, -1},
		{"zero heightmap", &TileInput{Coord: TileCoord{1, 1}, Heightmap: &terrain.Heightmap{}}, ErrInputShape, -1},
		{"non-finite height", nanHeight, ErrInputShape, -1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeADT(tc.in, EncodeOptions{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if data != nil {
				t.Error("expected no output on error")
			}
			var ce *ChunkError
			if !errors.As(err, &ce) {
				t.Fatalf("expected *ChunkError, got %T", err)
			}
			if ce.Chunk != tc.wantChunk {
				t.Errorf("expected sub-chunk %d, got %d", tc.wantChunk, ce.Chunk)
			}
		})
	}
}

func TestEncodeADT_DoesNotMutateInput(t *testing.T) {
	hm := terrain.HeightmapFunc(func(row, col int) float32 { return float32(row + col) })
	before := hm.Samples()
	grid := checkerboard()

	in := &TileInput{
		Coord:     TileCoord{4, 4},
		Heightmap: hm,
		Textures:  []string{"a", "b"},
		Splat:     map[int]map[int]*terrain.AlphaMap{0: {1: grid}},
	}
	if _, err := EncodeADT(in, EncodeOptions{}); err != nil {
		t.Fatalf("EncodeADT failed: %v", err)
	}

	after := hm.Samples()
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("heightmap sample %d changed", i)
		}
	}
	if *grid != *checkerboard() {
		t.Error("splat grid changed")
	}
}

func TestEncodeADT_Deterministic(t *testing.T) {
	hm := terrain.HeightmapFunc(func(row, col int) float32 {
		return float32(row*col%17) * 0.33
	})
	in := &TileInput{Coord: TileCoord{8, 9}, BaseHeight: 40, Heightmap: hm, Textures: []string{"a", "b", "c"}}

	a, err := EncodeADT(in, EncodeOptions{})
	if err != nil {
		t.Fatalf("EncodeADT failed: %v", err)
	}
	b, _ := EncodeADT(in, EncodeOptions{})
	if !bytes.Equal(a, b) {
		t.Error("EncodeADT output differs between calls")
	}

	adt, err := ParseADT(a)
	if err != nil {
		t.Fatalf("ParseADT failed: %v", err)
	}
	if adt.Chunks[0].Position[2] != 40 {
		t.Errorf("expected base height 40 in position, got %v", adt.Chunks[0].Position)
	}
	for i := range adt.Chunks {
		want, _ := terrain.InterleaveHeights(hm, i%16, i/16)
		if adt.Chunks[i].Heights != want {
			t.Fatalf("sub-chunk %d heights differ from interleaved heightmap", i)
		}
	}
}

func TestADTWriter_PhaseOrder(t *testing.T) {
	var w adtWriter
	if err := w.writeTextures(nil); !errors.Is(err, ErrSizeInvariant) {
		t.Errorf("writeTextures before reserveHeader: expected ErrSizeInvariant, got %v", err)
	}
	if err := w.reserveHeader(0); err != nil {
		t.Fatalf("reserveHeader failed: %v", err)
	}
	if err := w.writeTextures(nil); err != nil {
		t.Fatalf("writeTextures failed: %v", err)
	}
	if err := w.writeObjects(nil, nil); err != nil {
		t.Fatalf("writeObjects failed: %v", err)
	}
	if err := w.writeChunk(1, nil); !errors.Is(err, ErrSizeInvariant) {
		t.Errorf("out-of-order sub-chunk: expected ErrSizeInvariant, got %v", err)
	}
	if err := w.writeChunk(0, nil); err != nil {
		t.Fatalf("writeChunk failed: %v", err)
	}
	if _, err := w.finalize(); !errors.Is(err, ErrSizeInvariant) {
		t.Errorf("finalize with 1 sub-chunk: expected ErrSizeInvariant, got %v", err)
	}
}

func TestDedupTextures(t *testing.T) {
	table, remap := DedupTextures([]string{"A.blp", "b.blp", "a.BLP", "B.blp"})
	if len(table) != 2 || table[0] != "A.blp" || table[1] != "b.blp" {
		t.Errorf("unexpected table %q", table)
	}
	want := []uint32{0, 1, 0, 1}
	for i := range want {
		if remap[i] != want[i] {
			t.Errorf("remap[%d] = %d, want %d", i, remap[i], want[i])
		}
	}
}

func TestChunkError_Message(t *testing.T) {
	err := chunkError(TileCoord{3, 4}, 17, ErrReference)
	if err.Error() != "tile (3, 4) sub-chunk 17 (1, 1): texture reference error" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
