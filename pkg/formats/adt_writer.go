package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// Top-level block sizes.
const (
	mhdrSize      = 64
	mcinEntrySize = 16
	mcinSize      = terrain.ChunkCount * mcinEntrySize
	mddfEntrySize = 36
	modfEntrySize = 64
)

// MHDR field order. Offsets are relative to the start of the MHDR payload.
const (
	mhdrFlags = iota
	mhdrMCIN
	mhdrMTEX
	mhdrMMDX
	mhdrMMID
	mhdrMWMO
	mhdrMWID
	mhdrMDDF
	mhdrMODF
	mhdrMFBO
	mhdrMH2O
	mhdrMTXF
)

type mddfEntry struct {
	NameID   uint32
	UniqueID uint32
	Position [3]float32
	Rotation [3]float32
	Scale    uint16
	Flags    uint16
}

type modfEntry struct {
	NameID    uint32
	UniqueID  uint32
	Position  [3]float32
	Rotation  [3]float32
	Extents   [2][3]float32
	Flags     uint16
	DoodadSet uint16
	NameSet   uint16
	Scale     uint16
}

// adtPhase is the assembler's progress through a tile.
type adtPhase int

const (
	phaseInit adtPhase = iota
	phaseHeaderReserved
	phaseTexturesWritten
	phaseObjectsWritten
	phaseChunksWritten
	phaseFinalized
)

func (p adtPhase) String() string {
	switch p {
	case phaseInit:
		return "Init"
	case phaseHeaderReserved:
		return "HeaderReserved"
	case phaseTexturesWritten:
		return "TextureTableWritten"
	case phaseObjectsWritten:
		return "ObjectTablesWritten"
	case phaseChunksWritten:
		return "SubChunksWritten"
	case phaseFinalized:
		return "Finalized"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// adtWriter assembles a tile payload. Each step must run in order; the MHDR
// and MCIN tables are backpatched once every sub-chunk is written.
type adtWriter struct {
	buf    bytes.Buffer
	phase  adtPhase
	chunks int // sub-chunks written so far

	mhdrData int // absolute offset of the MHDR payload
	mcinData int // absolute offset of the MCIN payload
	fields   [12]uint32
	index    [terrain.ChunkCount][2]uint32 // absolute offset and size of each MCNK
}

func (w *adtWriter) expect(p adtPhase, step string) error {
	if w.phase != p {
		return fmt.Errorf("%w: %s in phase %s, want %s", ErrSizeInvariant, step, w.phase, p)
	}
	return nil
}

// mark records the MHDR offset field for a chunk about to be written.
func (w *adtWriter) mark(field int) {
	w.fields[field] = uint32(w.buf.Len() - w.mhdrData)
}

// reserveHeader writes MVER and placeholder MHDR and MCIN chunks.
func (w *adtWriter) reserveHeader(flags uint32) error {
	if err := w.expect(phaseInit, "reserveHeader"); err != nil {
		return err
	}
	if err := writeStructChunk(&w.buf, chunkMVER, uint32(FormatVersion), 4); err != nil {
		return err
	}

	w.mhdrData = w.buf.Len() + chunkHeaderSize
	writeChunk(&w.buf, chunkMHDR, make([]byte, mhdrSize))
	w.fields[mhdrFlags] = flags

	w.mark(mhdrMCIN)
	w.mcinData = w.buf.Len() + chunkHeaderSize
	writeChunk(&w.buf, chunkMCIN, make([]byte, mcinSize))

	w.phase = phaseHeaderReserved
	return nil
}

// writeTextures writes the MTEX name table.
func (w *adtWriter) writeTextures(table []string) error {
	if err := w.expect(phaseHeaderReserved, "writeTextures"); err != nil {
		return err
	}
	names, _ := stringTable(table)
	w.mark(mhdrMTEX)
	writeChunk(&w.buf, chunkMTEX, names)
	w.phase = phaseTexturesWritten
	return nil
}

// writeObjects writes the model name tables and placement records.
func (w *adtWriter) writeObjects(doodads []Doodad, structures []Structure) error {
	if err := w.expect(phaseTexturesWritten, "writeObjects"); err != nil {
		return err
	}

	doodadModels := make([]string, len(doodads))
	for i, d := range doodads {
		doodadModels[i] = d.Model
	}
	structureModels := make([]string, len(structures))
	for i, s := range structures {
		structureModels[i] = s.Model
	}
	mmdx, doodadNames := modelTable(doodadModels)
	mwmo, structureNames := modelTable(structureModels)

	mmdxData, mmid := stringTable(mmdx)
	w.mark(mhdrMMDX)
	writeChunk(&w.buf, chunkMMDX, mmdxData)
	w.mark(mhdrMMID)
	if err := writeStructChunk(&w.buf, chunkMMID, mmid, 4*len(mmid)); err != nil {
		return err
	}

	mwmoData, mwid := stringTable(mwmo)
	w.mark(mhdrMWMO)
	writeChunk(&w.buf, chunkMWMO, mwmoData)
	w.mark(mhdrMWID)
	if err := writeStructChunk(&w.buf, chunkMWID, mwid, 4*len(mwid)); err != nil {
		return err
	}

	mddf := make([]mddfEntry, len(doodads))
	for i, d := range doodads {
		mddf[i] = mddfEntry{
			NameID:   doodadNames[i],
			UniqueID: d.UniqueID,
			Position: d.Position,
			Rotation: d.Rotation,
			Scale:    d.Scale,
			Flags:    d.Flags,
		}
	}
	w.mark(mhdrMDDF)
	if err := writeStructChunk(&w.buf, chunkMDDF, mddf, len(mddf)*mddfEntrySize); err != nil {
		return err
	}

	modf := make([]modfEntry, len(structures))
	for i, s := range structures {
		modf[i] = modfEntry{
			NameID:    structureNames[i],
			UniqueID:  s.UniqueID,
			Position:  s.Position,
			Rotation:  s.Rotation,
			Extents:   s.Extents,
			Flags:     s.Flags,
			DoodadSet: s.DoodadSet,
			NameSet:   s.NameSet,
			Scale:     s.Scale,
		}
	}
	w.mark(mhdrMODF)
	if err := writeStructChunk(&w.buf, chunkMODF, modf, len(modf)*modfEntrySize); err != nil {
		return err
	}

	w.phase = phaseObjectsWritten
	return nil
}

// writeChunk appends the encoded MCNK for sub-chunk i. Sub-chunks must
// arrive in row-major order.
func (w *adtWriter) writeChunk(i int, mcnk []byte) error {
	want := phaseChunksWritten
	if w.chunks == 0 {
		want = phaseObjectsWritten
	}
	if err := w.expect(want, "writeChunk"); err != nil {
		return err
	}
	if i != w.chunks {
		return fmt.Errorf("%w: sub-chunk %d written at position %d", ErrSizeInvariant, i, w.chunks)
	}
	w.phase = phaseChunksWritten

	w.index[i] = [2]uint32{uint32(w.buf.Len()), uint32(len(mcnk))}
	w.buf.Write(mcnk)
	w.chunks++
	return nil
}

// finalize backpatches MHDR and MCIN and returns the payload.
func (w *adtWriter) finalize() ([]byte, error) {
	if err := w.expect(phaseChunksWritten, "finalize"); err != nil {
		return nil, err
	}
	if w.chunks != terrain.ChunkCount {
		return nil, fmt.Errorf("%w: %d sub-chunks written, want %d", ErrSizeInvariant, w.chunks, terrain.ChunkCount)
	}

	data := w.buf.Bytes()
	for f, v := range w.fields {
		binary.LittleEndian.PutUint32(data[w.mhdrData+4*f:], v)
	}
	for i, e := range w.index {
		entry := data[w.mcinData+i*mcinEntrySize:]
		binary.LittleEndian.PutUint32(entry, e[0])
		binary.LittleEndian.PutUint32(entry[4:], e[1])
	}

	w.phase = phaseFinalized
	return data, nil
}

// EncodeADT encodes one tile payload. The input is validated in full before
// any encoding happens; on error no bytes are returned.
func EncodeADT(in *TileInput, opts EncodeOptions) ([]byte, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	table, remap := DedupTextures(in.Textures)
	doodadRefs, structureRefs := chunkRefs(in)

	var w adtWriter
	if err := w.reserveHeader(opts.HeaderFlags); err != nil {
		return nil, tileError(in.Coord, err)
	}
	if err := w.writeTextures(table); err != nil {
		return nil, tileError(in.Coord, err)
	}
	if err := w.writeObjects(in.Doodads, in.Structures); err != nil {
		return nil, tileError(in.Coord, err)
	}

	for i := 0; i < terrain.ChunkCount; i++ {
		mcnk, err := encodeChunk(chunkJob{
			coord:         in.Coord,
			index:         i,
			heightmap:     in.Heightmap,
			base:          in.BaseHeight,
			areaID:        in.AreaID,
			layers:        in.layersFor(i),
			remap:         remap,
			splat:         in.Splat[i],
			fallback:      opts.MissingAlpha,
			doodadRefs:    doodadRefs[i],
			structureRefs: structureRefs[i],
		})
		if err != nil {
			return nil, chunkError(in.Coord, i, err)
		}
		if err := w.writeChunk(i, mcnk); err != nil {
			return nil, chunkError(in.Coord, i, err)
		}
	}

	data, err := w.finalize()
	if err != nil {
		return nil, tileError(in.Coord, err)
	}
	return data, nil
}

// chunkRefs assigns every placement to the sub-chunk holding its position.
func chunkRefs(in *TileInput) (doodads, structures [terrain.ChunkCount][]uint32) {
	for i, d := range in.Doodads {
		c := placementChunk(in.Coord, d.Position)
		doodads[c] = append(doodads[c], uint32(i))
	}
	for i, s := range in.Structures {
		c := placementChunk(in.Coord, s.Position)
		structures[c] = append(structures[c], uint32(i))
	}
	return doodads, structures
}

// WriteADTFile encodes a tile and writes it to path.
func WriteADTFile(path string, in *TileInput, opts EncodeOptions) error {
	data, err := EncodeADT(in, opts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing ADT file: %w", err)
	}
	return nil
}
