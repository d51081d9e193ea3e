package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// Fixed sub-chunk block sizes.
const (
	mcnkHeaderSize = 128
	mcvtSize       = terrain.VertexCount * 4
	mcnrNormalSize = terrain.VertexCount * 3
	mcnrPadding    = 13
	mcnrSize       = mcnrNormalSize + mcnrPadding
	mclyEntrySize  = 16
)

// mcnkHeader is the 128-byte sub-chunk header. Offsets are relative to the
// start of the MCNK chunk header.
type mcnkHeader struct {
	Flags             uint32
	IndexX            uint32
	IndexY            uint32
	NumLayers         uint32
	NumDoodadRefs     uint32
	OfsHeight         uint32
	OfsNormal         uint32
	OfsLayer          uint32
	OfsRefs           uint32
	OfsAlpha          uint32
	SizeAlpha         uint32
	OfsShadow         uint32
	SizeShadow        uint32
	AreaID            uint32
	NumMapObjRefs     uint32
	Holes             uint16
	Pad               uint16
	LowQualityTexture [8]uint16
	PredTex           uint32
	NoEffectDoodad    uint32
	OfsSoundEmitters  uint32
	NumSoundEmitters  uint32
	OfsLiquid         uint32
	SizeLiquid        uint32
	Position          [3]float32
	OfsVertexColors   uint32
	Unused            [2]uint32
}

// chunkJob carries one sub-chunk's share of a tile input.
type chunkJob struct {
	coord     TileCoord
	index     int
	heightmap *terrain.Heightmap
	base      float32
	areaID    uint32

	layers   []int    // indices into the caller's texture list
	remap    []uint32 // caller texture index to table index
	splat    map[int]*terrain.AlphaMap
	fallback terrain.AlphaFallback

	doodadRefs    []uint32
	structureRefs []uint32
}

// encodeChunk encodes one complete MCNK chunk, header included.
func encodeChunk(job chunkJob) ([]byte, error) {
	cx, cy := job.index%terrain.ChunksPerSide, job.index/terrain.ChunksPerSide

	heights, err := terrain.InterleaveHeights(job.heightmap, cx, cy)
	if err != nil {
		return nil, err
	}
	normals, err := terrain.EstimateNormals(job.heightmap, cx, cy)
	if err != nil {
		return nil, err
	}

	ids := make([]uint32, len(job.layers))
	splat := make(map[uint32]*terrain.AlphaMap, len(job.splat))
	for i, t := range job.layers {
		ids[i] = uint32(t)
	}
	for t, grid := range job.splat {
		splat[uint32(t)] = grid
	}
	records, alphas, err := terrain.PackLayers(ids, splat, job.fallback)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].TextureID = job.remap[records[i].TextureID]
	}

	hdr := mcnkHeader{
		IndexX:        uint32(cx),
		IndexY:        uint32(cy),
		NumLayers:     uint32(len(records)),
		NumDoodadRefs: uint32(len(job.doodadRefs)),
		AreaID:        job.areaID,
		NumMapObjRefs: uint32(len(job.structureRefs)),
		Position:      chunkPosition(job.coord, cx, cy, job.base),
	}

	var body bytes.Buffer
	offset := func() uint32 {
		return uint32(chunkHeaderSize + mcnkHeaderSize + body.Len())
	}

	hdr.OfsHeight = offset()
	if err := writeStructChunk(&body, chunkMCVT, heights, mcvtSize); err != nil {
		return nil, err
	}

	hdr.OfsNormal = offset()
	writeChunk(&body, chunkMCNR, packNormals(terrain.QuantizeNormals(normals)))

	hdr.OfsLayer = offset()
	if err := writeStructChunk(&body, chunkMCLY, records, len(records)*mclyEntrySize); err != nil {
		return nil, err
	}

	hdr.OfsAlpha = offset()
	alphaPayload := make([]byte, 0, len(alphas)*terrain.AlphaBytes)
	for i := range alphas {
		alphaPayload = append(alphaPayload, alphas[i][:]...)
	}
	if want := len(job.layers) - 1; want > 0 && len(alphaPayload) != want*terrain.AlphaBytes {
		return nil, fmt.Errorf("%w: MCAL is %d bytes for %d layers", ErrSizeInvariant, len(alphaPayload), len(job.layers))
	}
	writeChunk(&body, chunkMCAL, alphaPayload)
	hdr.SizeAlpha = uint32(chunkHeaderSize + len(alphaPayload))

	hdr.OfsRefs = offset()
	refs := make([]byte, 4*(len(job.doodadRefs)+len(job.structureRefs)))
	for i, r := range append(append([]uint32(nil), job.doodadRefs...), job.structureRefs...) {
		binary.LittleEndian.PutUint32(refs[4*i:], r)
	}
	writeChunk(&body, chunkMCRF, refs)

	var out bytes.Buffer
	out.Grow(chunkHeaderSize + mcnkHeaderSize + body.Len())
	var payload bytes.Buffer
	if err := binary.Write(&payload, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: encoding MCNK header: %v", ErrSizeInvariant, err)
	}
	if payload.Len() != mcnkHeaderSize {
		return nil, fmt.Errorf("%w: MCNK header is %d bytes, want %d", ErrSizeInvariant, payload.Len(), mcnkHeaderSize)
	}
	payload.Write(body.Bytes())
	writeChunk(&out, chunkMCNK, payload.Bytes())

	want := chunkHeaderSize + mcnkHeaderSize +
		chunkHeaderSize + mcvtSize +
		chunkHeaderSize + mcnrSize +
		chunkHeaderSize + len(records)*mclyEntrySize +
		chunkHeaderSize + len(alphaPayload) +
		chunkHeaderSize + len(refs)
	if out.Len() != want {
		return nil, fmt.Errorf("%w: MCNK is %d bytes, want %d", ErrSizeInvariant, out.Len(), want)
	}
	return out.Bytes(), nil
}

// packNormals lays out the quantized normals followed by the zero tail.
func packNormals(normals [terrain.VertexCount][3]int8) []byte {
	out := make([]byte, mcnrSize)
	for i, n := range normals {
		out[3*i] = byte(n[0])
		out[3*i+1] = byte(n[1])
		out[3*i+2] = byte(n[2])
	}
	return out
}
