package project

import (
	"fmt"

	"github.com/Faultbox/midgard-forge/pkg/encoding"
	"github.com/Faultbox/midgard-forge/pkg/formats"
	"github.com/Faultbox/midgard-forge/pkg/terrain"
)

// scale16 converts a manifest scale factor to the placement encoding.
func scale16(s float32) uint16 {
	if s <= 0 {
		s = 1
	}
	v := s*1024 + 0.5
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}

// placement converts a tile-local position to placement space.
func placement(c formats.TileCoord, local [3]float32) [3]float32 {
	return [3]float32{
		float32(c.X)*terrain.TileSize + local[0],
		local[2],
		float32(c.Y)*terrain.TileSize + local[1],
	}
}

func (m *Manifest) clientName(name string) (string, error) {
	cs := m.Charset
	if cs == nil {
		cs = encoding.Windows1252
	}
	return cs.ClientPath(name)
}

// TileInput loads tile i: it decodes the heightmap and splat images and
// converts placements. Unique IDs are left zero for the build to assign.
func (m *Manifest) TileInput(i int) (*formats.TileInput, error) {
	if i < 0 || i >= len(m.Tiles) {
		return nil, fmt.Errorf("tile index %d out of range", i)
	}
	t := &m.Tiles[i]
	c := t.Coord()

	in := &formats.TileInput{
		Coord:         c,
		BaseHeight:    t.BaseHeight,
		AreaID:        m.AreaID,
		DefaultLayers: t.DefaultLayers,
	}
	if t.AreaID != nil {
		in.AreaID = *t.AreaID
	}

	if t.Heightmap == "" {
		in.Heightmap = terrain.FlatHeightmap(t.Height)
	} else {
		img, err := DecodeImage(m.resolve(t.Heightmap))
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", c, err)
		}
		scale := float32(DefaultHeightScale)
		if t.HeightScale != nil {
			scale = *t.HeightScale
		}
		hm, err := heightmapFromImage(img, scale, t.Height)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", c, err)
		}
		in.Heightmap = hm
	}

	for ti, tex := range t.Textures {
		name, err := m.clientName(tex.Name)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", c, err)
		}
		in.Textures = append(in.Textures, name)
		if tex.Splat == "" {
			continue
		}
		img, err := DecodeImage(m.resolve(tex.Splat))
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", c, err)
		}
		maps, err := splatFromImage(img)
		if err != nil {
			return nil, fmt.Errorf("tile %s texture %s: %w", c, tex.Name, err)
		}
		if in.Splat == nil {
			in.Splat = make(map[int]map[int]*terrain.AlphaMap)
		}
		for ci := range maps {
			if in.Splat[ci] == nil {
				in.Splat[ci] = make(map[int]*terrain.AlphaMap)
			}
			in.Splat[ci][ti] = &maps[ci]
		}
	}

	if len(t.Chunks) > 0 {
		in.ChunkLayers = make(map[int][]int, len(t.Chunks))
		for _, ch := range t.Chunks {
			in.ChunkLayers[ch.Y*terrain.ChunksPerSide+ch.X] = ch.Layers
		}
	}

	for _, d := range t.Doodads {
		model, err := m.clientName(d.Model)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", c, err)
		}
		in.Doodads = append(in.Doodads, formats.Doodad{
			Model:    model,
			Position: placement(c, d.Position),
			Rotation: d.Rotation,
			Scale:    scale16(d.Scale),
			Flags:    d.Flags,
		})
	}
	for _, s := range t.Structures {
		model, err := m.clientName(s.Model)
		if err != nil {
			return nil, fmt.Errorf("tile %s: %w", c, err)
		}
		in.Structures = append(in.Structures, formats.Structure{
			Model:     model,
			Position:  placement(c, s.Position),
			Rotation:  s.Rotation,
			Extents:   [2][3]float32{placement(c, s.Extents[0]), placement(c, s.Extents[1])},
			Flags:     s.Flags,
			DoodadSet: s.DoodadSet,
			NameSet:   s.NameSet,
			Scale:     scale16(s.Scale),
		})
	}
	return in, nil
}
