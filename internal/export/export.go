// Package export places encoded map files where the client expects them.
package export

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Faultbox/midgard-forge/pkg/formats"
)

// Sink receives finished files keyed by their client-relative path.
// Implementations must be safe for concurrent use.
type Sink interface {
	Put(name string, data []byte) error
}

// WDTPath returns the client path of a map's grid file.
func WDTPath(mapName string) string {
	return path.Join("World", "Maps", mapName, mapName+".wdt")
}

// ADTPath returns the client path of one tile.
func ADTPath(mapName string, c formats.TileCoord) string {
	return path.Join("World", "Maps", mapName, fmt.Sprintf("%s_%d_%d.adt", mapName, c.X, c.Y))
}

// TexturePath converts an MTEX name ("tileset\grass.blp") into a sink path.
func TexturePath(name string) string {
	return path.Clean(strings.ReplaceAll(name, "\\", "/"))
}

// DirSink writes files under Root.
type DirSink struct {
	Root string
}

// Put implements Sink. The file is written to a temporary name and renamed
// so readers never see a partial tile.
func (d DirSink) Put(name string, data []byte) error {
	clean := path.Clean("/" + filepath.ToSlash(name))[1:]
	if clean == "" {
		return fmt.Errorf("export: empty path %q", name)
	}
	full := filepath.Join(d.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}

	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, full)
}

// MemSink keeps files in memory. The zero value is ready to use.
type MemSink struct {
	mu    sync.Mutex
	files map[string][]byte
}

// Put implements Sink.
func (m *MemSink) Put(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.files == nil {
		m.files = make(map[string][]byte)
	}
	m.files[name] = append([]byte(nil), data...)
	return nil
}

// Get returns the file stored under name.
func (m *MemSink) Get(name string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	return data, ok
}

// Files returns a snapshot of every stored file.
func (m *MemSink) Files() map[string][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(m.files))
	for name, data := range m.files {
		out[name] = data
	}
	return out
}
