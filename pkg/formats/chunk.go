package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Chunk identifiers. On disk the four characters are stored reversed.
const (
	chunkMVER = "MVER"
	chunkMPHD = "MPHD"
	chunkMAIN = "MAIN"
	chunkMWMO = "MWMO"
	chunkMHDR = "MHDR"
	chunkMCIN = "MCIN"
	chunkMTEX = "MTEX"
	chunkMMDX = "MMDX"
	chunkMMID = "MMID"
	chunkMWID = "MWID"
	chunkMDDF = "MDDF"
	chunkMODF = "MODF"
	chunkMCNK = "MCNK"
	chunkMCVT = "MCVT"
	chunkMCNR = "MCNR"
	chunkMCLY = "MCLY"
	chunkMCRF = "MCRF"
	chunkMCAL = "MCAL"
)

// chunkHeaderSize is the magic plus the u32 payload size.
const chunkHeaderSize = 8

// FormatVersion is the MVER value of both file kinds.
const FormatVersion = 18

func putMagic(dst []byte, id string) {
	for i := 0; i < 4; i++ {
		dst[i] = id[3-i]
	}
}

func magicString(src []byte) string {
	return string([]byte{src[3], src[2], src[1], src[0]})
}

// writeChunk appends a complete chunk.
func writeChunk(buf *bytes.Buffer, id string, payload []byte) {
	var hdr [chunkHeaderSize]byte
	putMagic(hdr[:4], id)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(payload)))
	buf.Write(hdr[:])
	buf.Write(payload)
}

// writeStructChunk appends a chunk whose payload is v encoded little-endian.
// The encoded size must equal want.
func writeStructChunk(buf *bytes.Buffer, id string, v any, want int) error {
	var payload bytes.Buffer
	if err := binary.Write(&payload, binary.LittleEndian, v); err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrSizeInvariant, id, err)
	}
	if payload.Len() != want {
		return fmt.Errorf("%w: %s payload is %d bytes, want %d", ErrSizeInvariant, id, payload.Len(), want)
	}
	writeChunk(buf, id, payload.Bytes())
	return nil
}

// chunkRef is a chunk located inside a byte slice.
type chunkRef struct {
	ID     string
	Offset int // offset of the chunk header
	Data   []byte
}

// readChunk reads the chunk starting at off.
func readChunk(data []byte, off int) (chunkRef, error) {
	if off < 0 || off+chunkHeaderSize > len(data) {
		return chunkRef{}, fmt.Errorf("%w: chunk header at %d", ErrTruncatedData, off)
	}
	id := magicString(data[off : off+4])
	size := int(binary.LittleEndian.Uint32(data[off+4:]))
	start := off + chunkHeaderSize
	if size < 0 || start+size > len(data) {
		return chunkRef{}, fmt.Errorf("%w: %s chunk at %d declares %d bytes", ErrTruncatedData, id, off, size)
	}
	return chunkRef{ID: id, Offset: off, Data: data[start : start+size]}, nil
}

// expectChunk reads the chunk at off and checks its identifier.
func expectChunk(data []byte, off int, id string) (chunkRef, error) {
	c, err := readChunk(data, off)
	if err != nil {
		return chunkRef{}, err
	}
	if c.ID != id {
		return chunkRef{}, fmt.Errorf("%w: expected %s at %d, got %q", ErrInvalidChunkMagic, id, off, c.ID)
	}
	return c, nil
}

// end returns the offset just past the chunk.
func (c chunkRef) end() int {
	return c.Offset + chunkHeaderSize + len(c.Data)
}

// stringTable encodes null-terminated names and returns each name's offset.
func stringTable(names []string) ([]byte, []uint32) {
	var buf bytes.Buffer
	offsets := make([]uint32, len(names))
	for i, name := range names {
		offsets[i] = uint32(buf.Len())
		buf.WriteString(name)
		buf.WriteByte(0)
	}
	return buf.Bytes(), offsets
}

// parseStringTable splits a block of null-terminated names, returning each
// name keyed by its offset as well as in order.
func parseStringTable(data []byte) ([]string, map[uint32]string) {
	var names []string
	byOffset := make(map[uint32]string)
	start := 0
	for start < len(data) {
		end := bytes.IndexByte(data[start:], 0)
		if end < 0 {
			end = len(data) - start
		}
		name := string(data[start : start+end])
		names = append(names, name)
		byOffset[uint32(start)] = name
		start += end + 1
	}
	return names, byOffset
}
