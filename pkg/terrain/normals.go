package terrain

import (
	"math"

	gmath "github.com/Faultbox/midgard-forge/pkg/math"
)

// normalLimit is the largest quantized component magnitude. -128 is never
// written.
const normalLimit = 127

// EstimateNormals computes a unit normal for each of the 145 vertices of
// sub-chunk (chunkX, chunkY) from central differences one grid step either
// side of the vertex. Samples come from the whole tile heightmap, so vertices
// on a sub-chunk border see their neighbours; at the tile edge the nearest
// sample is duplicated and the shorter step is used.
func EstimateNormals(hm *Heightmap, chunkX, chunkY int) ([VertexCount]gmath.Vec3, error) {
	var out [VertexCount]gmath.Vec3
	if err := hm.Validate(); err != nil {
		return out, err
	}
	if err := checkChunk(chunkX, chunkY); err != nil {
		return out, err
	}

	const limit = 2 * (HeightmapSize - 1)
	r0, c0 := origin(chunkX, chunkY)
	for i, p := range Positions {
		r, c := r0+p.Row, c0+p.Col

		left, right := clampIndex(c-2, limit), clampIndex(c+2, limit)
		up, down := clampIndex(r-2, limit), clampIndex(r+2, limit)

		dx := float32(right-left) * (UnitSize / 2)
		dy := float32(down-up) * (UnitSize / 2)

		tx := gmath.Vec3{X: dx, Z: hm.sampleHalf(r, right) - hm.sampleHalf(r, left)}
		ty := gmath.Vec3{Y: dy, Z: hm.sampleHalf(down, c) - hm.sampleHalf(up, c)}

		out[i] = tx.Cross(ty).Normalize()
	}
	return out, nil
}

// QuantizeNormal maps each component of a unit vector to a signed byte in
// [-127, 127].
func QuantizeNormal(v gmath.Vec3) [3]int8 {
	return [3]int8{quantize(v.X), quantize(v.Y), quantize(v.Z)}
}

// QuantizeNormals quantizes a full vertex set.
func QuantizeNormals(normals [VertexCount]gmath.Vec3) [VertexCount][3]int8 {
	var out [VertexCount][3]int8
	for i, n := range normals {
		out[i] = QuantizeNormal(n)
	}
	return out
}

func quantize(c float32) int8 {
	q := math.Round(float64(c) * normalLimit)
	if q > normalLimit {
		q = normalLimit
	}
	if q < -normalLimit {
		q = -normalLimit
	}
	return int8(q)
}
