package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// ADTChunk is a decoded sub-chunk.
type ADTChunk struct {
	IndexX        uint32
	IndexY        uint32
	AreaID        uint32
	Position      [3]float32
	Heights       [terrain.VertexCount]float32
	Normals       [terrain.VertexCount][3]int8
	Layers        []terrain.LayerRecord
	Alpha         []terrain.AlphaMap
	DoodadRefs    []uint32
	StructureRefs []uint32
}

// ADT is a decoded tile payload.
type ADT struct {
	Version    uint32
	Flags      uint32
	Textures   []string
	Doodads    []Doodad
	Structures []Structure
	Chunks     []ADTChunk
}

// ParseADT decodes a tile payload. Sub-chunks are located through MCIN.
func ParseADT(data []byte) (*ADT, error) {
	mver, err := expectChunk(data, 0, chunkMVER)
	if err != nil {
		return nil, err
	}
	if len(mver.Data) < 4 {
		return nil, fmt.Errorf("%w: reading version", ErrTruncatedData)
	}
	adt := &ADT{Version: binary.LittleEndian.Uint32(mver.Data)}
	if adt.Version != FormatVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, adt.Version)
	}

	mhdr, err := expectChunk(data, mver.end(), chunkMHDR)
	if err != nil {
		return nil, err
	}
	if len(mhdr.Data) != mhdrSize {
		return nil, fmt.Errorf("%w: MHDR is %d bytes, want %d", ErrTruncatedData, len(mhdr.Data), mhdrSize)
	}
	base := mhdr.Offset + chunkHeaderSize
	field := func(f int) int {
		return int(binary.LittleEndian.Uint32(mhdr.Data[4*f:]))
	}
	at := func(f int, id string) (chunkRef, error) {
		return expectChunk(data, base+field(f), id)
	}
	adt.Flags = uint32(field(mhdrFlags))

	mtex, err := at(mhdrMTEX, chunkMTEX)
	if err != nil {
		return nil, err
	}
	adt.Textures, _ = parseStringTable(mtex.Data)

	if adt.Doodads, err = parseDoodads(at); err != nil {
		return nil, err
	}
	if adt.Structures, err = parseStructures(at); err != nil {
		return nil, err
	}

	mcin, err := at(mhdrMCIN, chunkMCIN)
	if err != nil {
		return nil, err
	}
	if len(mcin.Data) != mcinSize {
		return nil, fmt.Errorf("%w: MCIN is %d bytes, want %d", ErrTruncatedData, len(mcin.Data), mcinSize)
	}

	adt.Chunks = make([]ADTChunk, terrain.ChunkCount)
	for i := range adt.Chunks {
		entry := mcin.Data[i*mcinEntrySize:]
		off := int(binary.LittleEndian.Uint32(entry))
		size := int(binary.LittleEndian.Uint32(entry[4:]))

		mcnk, err := expectChunk(data, off, chunkMCNK)
		if err != nil {
			return nil, fmt.Errorf("sub-chunk %d: %w", i, err)
		}
		if mcnk.end()-mcnk.Offset != size {
			return nil, fmt.Errorf("%w: sub-chunk %d is %d bytes, MCIN says %d", ErrTruncatedData, i, mcnk.end()-mcnk.Offset, size)
		}
		chunk, err := parseChunk(data[off : off+size])
		if err != nil {
			return nil, fmt.Errorf("parsing sub-chunk %d: %w", i, err)
		}
		adt.Chunks[i] = chunk
	}
	return adt, nil
}

func parseNameIndex(at func(int, string) (chunkRef, error), namesField int, namesID string, idsField int, idsID string) (map[uint32]string, []uint32, error) {
	names, err := at(namesField, namesID)
	if err != nil {
		return nil, nil, err
	}
	ids, err := at(idsField, idsID)
	if err != nil {
		return nil, nil, err
	}
	_, byOffset := parseStringTable(names.Data)
	offsets := make([]uint32, len(ids.Data)/4)
	if err := binary.Read(bytes.NewReader(ids.Data), binary.LittleEndian, offsets); err != nil {
		return nil, nil, fmt.Errorf("%w: reading %s", ErrTruncatedData, idsID)
	}
	return byOffset, offsets, nil
}

func parseDoodads(at func(int, string) (chunkRef, error)) ([]Doodad, error) {
	names, offsets, err := parseNameIndex(at, mhdrMMDX, chunkMMDX, mhdrMMID, chunkMMID)
	if err != nil {
		return nil, err
	}
	mddf, err := at(mhdrMDDF, chunkMDDF)
	if err != nil {
		return nil, err
	}
	entries := make([]mddfEntry, len(mddf.Data)/mddfEntrySize)
	if err := binary.Read(bytes.NewReader(mddf.Data), binary.LittleEndian, entries); err != nil {
		return nil, fmt.Errorf("%w: reading MDDF", ErrTruncatedData)
	}

	doodads := make([]Doodad, len(entries))
	for i, e := range entries {
		if int(e.NameID) >= len(offsets) {
			return nil, fmt.Errorf("%w: doodad %d name %d", ErrTruncatedData, i, e.NameID)
		}
		doodads[i] = Doodad{
			Model:    names[offsets[e.NameID]],
			UniqueID: e.UniqueID,
			Position: e.Position,
			Rotation: e.Rotation,
			Scale:    e.Scale,
			Flags:    e.Flags,
		}
	}
	return doodads, nil
}

func parseStructures(at func(int, string) (chunkRef, error)) ([]Structure, error) {
	names, offsets, err := parseNameIndex(at, mhdrMWMO, chunkMWMO, mhdrMWID, chunkMWID)
	if err != nil {
		return nil, err
	}
	modf, err := at(mhdrMODF, chunkMODF)
	if err != nil {
		return nil, err
	}
	entries := make([]modfEntry, len(modf.Data)/modfEntrySize)
	if err := binary.Read(bytes.NewReader(modf.Data), binary.LittleEndian, entries); err != nil {
		return nil, fmt.Errorf("%w: reading MODF", ErrTruncatedData)
	}

	structures := make([]Structure, len(entries))
	for i, e := range entries {
		if int(e.NameID) >= len(offsets) {
			return nil, fmt.Errorf("%w: structure %d name %d", ErrTruncatedData, i, e.NameID)
		}
		structures[i] = Structure{
			Model:     names[offsets[e.NameID]],
			UniqueID:  e.UniqueID,
			Position:  e.Position,
			Rotation:  e.Rotation,
			Extents:   e.Extents,
			Flags:     e.Flags,
			DoodadSet: e.DoodadSet,
			NameSet:   e.NameSet,
			Scale:     e.Scale,
		}
	}
	return structures, nil
}

// parseChunk decodes one MCNK chunk, header included.
func parseChunk(data []byte) (ADTChunk, error) {
	if len(data) < chunkHeaderSize+mcnkHeaderSize {
		return ADTChunk{}, fmt.Errorf("%w: reading MCNK header", ErrTruncatedData)
	}
	var hdr mcnkHeader
	if err := binary.Read(bytes.NewReader(data[chunkHeaderSize:]), binary.LittleEndian, &hdr); err != nil {
		return ADTChunk{}, fmt.Errorf("%w: reading MCNK header", ErrTruncatedData)
	}

	chunk := ADTChunk{
		IndexX:   hdr.IndexX,
		IndexY:   hdr.IndexY,
		AreaID:   hdr.AreaID,
		Position: hdr.Position,
	}

	mcvt, err := expectChunk(data, int(hdr.OfsHeight), chunkMCVT)
	if err != nil {
		return ADTChunk{}, err
	}
	if len(mcvt.Data) != mcvtSize {
		return ADTChunk{}, fmt.Errorf("%w: MCVT is %d bytes", ErrTruncatedData, len(mcvt.Data))
	}
	for i := range chunk.Heights {
		chunk.Heights[i] = math.Float32frombits(binary.LittleEndian.Uint32(mcvt.Data[4*i:]))
	}

	mcnr, err := expectChunk(data, int(hdr.OfsNormal), chunkMCNR)
	if err != nil {
		return ADTChunk{}, err
	}
	if len(mcnr.Data) != mcnrSize {
		return ADTChunk{}, fmt.Errorf("%w: MCNR is %d bytes", ErrTruncatedData, len(mcnr.Data))
	}
	for i := range chunk.Normals {
		chunk.Normals[i] = [3]int8{int8(mcnr.Data[3*i]), int8(mcnr.Data[3*i+1]), int8(mcnr.Data[3*i+2])}
	}

	mcly, err := expectChunk(data, int(hdr.OfsLayer), chunkMCLY)
	if err != nil {
		return ADTChunk{}, err
	}
	if len(mcly.Data) != int(hdr.NumLayers)*mclyEntrySize {
		return ADTChunk{}, fmt.Errorf("%w: MCLY is %d bytes for %d layers", ErrTruncatedData, len(mcly.Data), hdr.NumLayers)
	}
	chunk.Layers = make([]terrain.LayerRecord, hdr.NumLayers)
	if err := binary.Read(bytes.NewReader(mcly.Data), binary.LittleEndian, chunk.Layers); err != nil {
		return ADTChunk{}, fmt.Errorf("%w: reading MCLY", ErrTruncatedData)
	}

	mcal, err := expectChunk(data, int(hdr.OfsAlpha), chunkMCAL)
	if err != nil {
		return ADTChunk{}, err
	}
	for _, layer := range chunk.Layers {
		if layer.Flags&terrain.LayerUseAlpha == 0 {
			continue
		}
		start := int(layer.AlphaOffset)
		if start+terrain.AlphaBytes > len(mcal.Data) {
			return ADTChunk{}, fmt.Errorf("%w: alpha at %d", ErrTruncatedData, start)
		}
		var m terrain.AlphaMap
		copy(m[:], mcal.Data[start:])
		chunk.Alpha = append(chunk.Alpha, m)
	}

	mcrf, err := expectChunk(data, int(hdr.OfsRefs), chunkMCRF)
	if err != nil {
		return ADTChunk{}, err
	}
	total := int(hdr.NumDoodadRefs + hdr.NumMapObjRefs)
	if len(mcrf.Data) != 4*total {
		return ADTChunk{}, fmt.Errorf("%w: MCRF is %d bytes for %d refs", ErrTruncatedData, len(mcrf.Data), total)
	}
	for i := 0; i < total; i++ {
		ref := binary.LittleEndian.Uint32(mcrf.Data[4*i:])
		if i < int(hdr.NumDoodadRefs) {
			chunk.DoodadRefs = append(chunk.DoodadRefs, ref)
		} else {
			chunk.StructureRefs = append(chunk.StructureRefs, ref)
		}
	}
	return chunk, nil
}

// ParseADTFile parses a tile payload from disk.
func ParseADTFile(path string) (*ADT, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading ADT file: %w", err)
	}
	return ParseADT(data)
}

// CountLayers returns how many sub-chunks carry each layer count.
func (a *ADT) CountLayers() map[int]int {
	counts := make(map[int]int)
	for _, c := range a.Chunks {
		counts[len(c.Layers)]++
	}
	return counts
}

// HeightRange returns the minimum and maximum stored vertex height.
func (a *ADT) HeightRange() (min, max float32) {
	if len(a.Chunks) == 0 {
		return 0, 0
	}
	min, max = a.Chunks[0].Heights[0], a.Chunks[0].Heights[0]
	for _, c := range a.Chunks {
		for _, h := range c.Heights {
			if h < min {
				min = h
			}
			if h > max {
				max = h
			}
		}
	}
	return min, max
}
