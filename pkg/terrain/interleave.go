package terrain

import "fmt"

// Positions is the interleaved vertex layout shared by every sub-chunk:
// 17 rows alternating 9 outer vertices and 8 inner vertices offset by half a
// grid step.
var Positions = buildPositions()

func buildPositions() [VertexCount]Position {
	var out [VertexCount]Position
	i := 0
	for row := range InterleaveRows {
		if row%2 == 0 {
			for col := range OuterPerRow {
				out[i] = Position{Row: row, Col: 2 * col, Outer: true}
				i++
			}
			continue
		}
		for col := range InnerPerRow {
			out[i] = Position{Row: row, Col: 2*col + 1}
			i++
		}
	}
	return out
}

// checkChunk validates sub-chunk coordinates.
func checkChunk(chunkX, chunkY int) error {
	if chunkX < 0 || chunkY < 0 || chunkX >= ChunksPerSide || chunkY >= ChunksPerSide {
		return fmt.Errorf("%w: sub-chunk (%d, %d) outside %dx%d tile",
			ErrInputShape, chunkX, chunkY, ChunksPerSide, ChunksPerSide)
	}
	return nil
}

// origin returns the half-step coordinates of a sub-chunk's first vertex.
func origin(chunkX, chunkY int) (int, int) {
	return 2 * chunkY * CellsPerChunk, 2 * chunkX * CellsPerChunk
}

// InterleaveHeights resamples the heightmap at the 145 vertex positions of
// sub-chunk (chunkX, chunkY). Outer vertices copy heightmap samples exactly;
// inner vertices interpolate the four surrounding samples.
func InterleaveHeights(hm *Heightmap, chunkX, chunkY int) ([VertexCount]float32, error) {
	var out [VertexCount]float32
	if err := hm.Validate(); err != nil {
		return out, err
	}
	if err := checkChunk(chunkX, chunkY); err != nil {
		return out, err
	}

	r0, c0 := origin(chunkX, chunkY)
	for i, p := range Positions {
		out[i] = hm.sampleHalf(r0+p.Row, c0+p.Col)
	}
	return out, nil
}
