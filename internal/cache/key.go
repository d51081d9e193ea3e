package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sort"

	"github.com/Faultbox/midgard-forge/pkg/formats"
)

// keyVersion changes whenever encoder output for the same input changes.
const keyVersion = 1

type hasher struct {
	h   hash.Hash
	buf [8]byte
}

func (w *hasher) u32(v uint32) {
	binary.LittleEndian.PutUint32(w.buf[:4], v)
	w.h.Write(w.buf[:4])
}

func (w *hasher) int(v int)     { w.u32(uint32(int32(v))) }
func (w *hasher) f32(v float32) { w.u32(math.Float32bits(v)) }

func (w *hasher) str(s string) {
	w.int(len(s))
	w.h.Write([]byte(s))
}

func (w *hasher) ints(v []int) {
	w.int(len(v))
	for _, x := range v {
		w.int(x)
	}
}

func (w *hasher) vec(v [3]float32) {
	w.f32(v[0])
	w.f32(v[1])
	w.f32(v[2])
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// Key returns a digest of everything that affects the encoded tile.
func Key(in *formats.TileInput, opts formats.EncodeOptions) string {
	w := &hasher{h: sha256.New()}
	w.u32(keyVersion)
	w.u32(uint32(opts.MissingAlpha))
	w.u32(opts.HeaderFlags)

	w.int(in.Coord.X)
	w.int(in.Coord.Y)
	w.f32(in.BaseHeight)
	w.u32(in.AreaID)
	if in.Heightmap != nil {
		for _, s := range in.Heightmap.Samples() {
			w.f32(s)
		}
	}

	w.int(len(in.Textures))
	for _, t := range in.Textures {
		w.str(t)
	}
	if in.DefaultLayers == nil {
		w.int(-1)
	} else {
		w.ints(in.DefaultLayers)
	}
	w.int(len(in.ChunkLayers))
	for _, k := range sortedKeys(in.ChunkLayers) {
		w.int(k)
		w.ints(in.ChunkLayers[k])
	}

	w.int(len(in.Splat))
	for _, k := range sortedKeys(in.Splat) {
		w.int(k)
		byTex := in.Splat[k]
		w.int(len(byTex))
		for _, t := range sortedKeys(byTex) {
			w.int(t)
			if a := byTex[t]; a != nil {
				w.h.Write(a[:])
			}
		}
	}

	w.int(len(in.Doodads))
	for _, d := range in.Doodads {
		w.str(d.Model)
		w.u32(d.UniqueID)
		w.vec(d.Position)
		w.vec(d.Rotation)
		w.u32(uint32(d.Scale)<<16 | uint32(d.Flags))
	}
	w.int(len(in.Structures))
	for _, s := range in.Structures {
		w.str(s.Model)
		w.u32(s.UniqueID)
		w.vec(s.Position)
		w.vec(s.Rotation)
		w.vec(s.Extents[0])
		w.vec(s.Extents[1])
		w.u32(uint32(s.Flags)<<16 | uint32(s.DoodadSet))
		w.u32(uint32(s.NameSet)<<16 | uint32(s.Scale))
	}

	return hex.EncodeToString(w.h.Sum(nil))
}
