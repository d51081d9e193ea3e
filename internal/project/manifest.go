// Package project loads map manifests: the YAML description of a map's tiles,
// their heightmaps, textures and object placements.
package project

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/Faultbox/midgard-forge/pkg/encoding"
	"github.com/Faultbox/midgard-forge/pkg/formats"
)

//go:embed manifest.schema.json
var schemaJSON string

// ErrManifest is returned for manifests that fail validation.
var ErrManifest = errors.New("invalid manifest")

// DefaultHeightScale maps a full-range heightmap sample to world units.
const DefaultHeightScale = 100

// Manifest describes one map.
type Manifest struct {
	Name      string  `yaml:"name"`
	MapID     uint32  `yaml:"map_id"`
	GridFlags *uint32 `yaml:"grid_flags"`
	AreaID    uint32  `yaml:"area_id"`
	Tiles     []Tile  `yaml:"tiles"`

	// Dir resolves relative image paths. Load sets it to the manifest's directory.
	Dir string `yaml:"-"`
	// Charset encodes texture and model names. Nil means Windows-1252.
	Charset *encoding.Charset `yaml:"-"`
}

// Tile describes one tile. Height is the flat height, or the offset added to
// scaled heightmap samples when Heightmap is set.
type Tile struct {
	X             int             `yaml:"x"`
	Y             int             `yaml:"y"`
	AreaID        *uint32         `yaml:"area_id"`
	BaseHeight    float32         `yaml:"base_height"`
	Height        float32         `yaml:"height"`
	Heightmap     string          `yaml:"heightmap"`
	HeightScale   *float32        `yaml:"height_scale"`
	Textures      []Texture       `yaml:"textures"`
	DefaultLayers []int           `yaml:"default_layers"`
	Chunks        []ChunkOverride `yaml:"chunks"`
	Doodads       []Doodad        `yaml:"doodads"`
	Structures    []Structure     `yaml:"structures"`
}

// Texture is a tile texture. Name is the client path written to the tile;
// Source is an optional image converted into that path; Splat is an optional
// 1024×1024 grayscale alpha image spanning the whole tile.
type Texture struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	Splat  string `yaml:"splat"`
}

// ChunkOverride replaces the layer list of sub-chunk (X, Y).
type ChunkOverride struct {
	X      int   `yaml:"x"`
	Y      int   `yaml:"y"`
	Layers []int `yaml:"layers"`
}

// Doodad is a small model placement. Position is tile-local: X and Y within
// the tile, Z the elevation.
type Doodad struct {
	Model    string     `yaml:"model"`
	Position [3]float32 `yaml:"position"`
	Rotation [3]float32 `yaml:"rotation"`
	Scale    float32    `yaml:"scale"`
	Flags    uint16     `yaml:"flags"`
}

// Structure is a map object placement. Position is tile-local like Doodad.
type Structure struct {
	Model     string        `yaml:"model"`
	Position  [3]float32    `yaml:"position"`
	Rotation  [3]float32    `yaml:"rotation"`
	Extents   [2][3]float32 `yaml:"extents"`
	Flags     uint16        `yaml:"flags"`
	DoodadSet uint16        `yaml:"doodad_set"`
	NameSet   uint16        `yaml:"name_set"`
	Scale     float32       `yaml:"scale"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func manifestSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("manifest.schema.json", schemaJSON)
	})
	return schema, schemaErr
}

// Load reads and validates a manifest file.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.Dir = filepath.Dir(path)
	return m, nil
}

// Parse validates YAML manifest data against the schema and decodes it.
func Parse(data []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}

	// The validator works on JSON values; round-trip the YAML tree.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	var jsonDoc any
	if err := json.Unmarshal(raw, &jsonDoc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}

	s, err := manifestSchema()
	if err != nil {
		return nil, fmt.Errorf("compile manifest schema: %w", err)
	}
	if err := s.Validate(jsonDoc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if err := m.check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// check enforces rules the schema cannot express.
func (m *Manifest) check() error {
	seen := make(map[formats.TileCoord]bool, len(m.Tiles))
	for _, t := range m.Tiles {
		c := t.Coord()
		if seen[c] {
			return fmt.Errorf("%w: tile %s listed twice", ErrManifest, c)
		}
		seen[c] = true

		for _, ch := range t.Chunks {
			for _, l := range ch.Layers {
				if l >= len(t.Textures) {
					return fmt.Errorf("%w: tile %s chunk (%d,%d) uses texture %d of %d",
						ErrManifest, c, ch.X, ch.Y, l, len(t.Textures))
				}
			}
		}
		for _, l := range t.DefaultLayers {
			if l >= len(t.Textures) {
				return fmt.Errorf("%w: tile %s default layer uses texture %d of %d",
					ErrManifest, c, l, len(t.Textures))
			}
		}
	}
	return nil
}

// Coord returns the tile's grid coordinate.
func (t *Tile) Coord() formats.TileCoord {
	return formats.TileCoord{X: t.X, Y: t.Y}
}

// Grid returns the world grid for the manifest. flags is used unless the
// manifest sets grid_flags.
func (m *Manifest) Grid(flags uint32) formats.WorldGrid {
	if m.GridFlags != nil {
		flags = *m.GridFlags
	}
	g := formats.WorldGrid{Flags: flags}
	for _, t := range m.Tiles {
		g.Tiles = append(g.Tiles, t.Coord())
	}
	return g
}

// resolve turns a manifest-relative path into a filesystem path.
func (m *Manifest) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, filepath.FromSlash(p))
}

// Files lists every file the manifest references, for change watching.
func (m *Manifest) Files() []string {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if p == "" {
			return
		}
		p = m.resolve(p)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, t := range m.Tiles {
		add(t.Heightmap)
		for _, tex := range t.Textures {
			add(tex.Source)
			add(tex.Splat)
		}
	}
	return out
}

// TextureSources maps client texture names to the source images they are
// converted from. A name seen with two different sources is an error.
func (m *Manifest) TextureSources() (map[string]string, error) {
	out := make(map[string]string)
	keys := make(map[string]string)
	for _, t := range m.Tiles {
		for _, tex := range t.Textures {
			if tex.Source == "" {
				continue
			}
			key := strings.ToLower(strings.ReplaceAll(tex.Name, "/", "\\"))
			src := m.resolve(tex.Source)
			if prev, ok := keys[key]; ok {
				if prev != src {
					return nil, fmt.Errorf("%w: texture %s has sources %s and %s", ErrManifest, tex.Name, prev, src)
				}
				continue
			}
			keys[key] = src
			out[tex.Name] = src
		}
	}
	return out, nil
}
