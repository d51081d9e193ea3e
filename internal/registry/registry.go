// Package registry allocates the IDs a map build needs: a map ID per map
// name and unique IDs for object placements.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Faultbox/midgard-forge/pkg/formats"
)

// FirstMapID is the first ID handed out to a new map.
const FirstMapID uint32 = 1

// FirstUniqueID is the first placement unique ID.
const FirstUniqueID uint32 = 1

// ErrClosed is returned by allocators used after Close.
var ErrClosed = errors.New("registry closed")

// Allocator hands out IDs. IDs are stable: asking again for the same map, or
// for a tile block no larger than before, returns the same values.
type Allocator interface {
	// MapID returns the ID of the named map, allocating one on first use.
	MapID(ctx context.Context, name string) (uint32, error)
	// UniqueIDs reserves n consecutive placement IDs for one tile and
	// returns the first.
	UniqueIDs(ctx context.Context, mapName string, tile formats.TileCoord, n int) (uint32, error)
	Close() error
}

type blockKey struct {
	mapName string
	tile    formats.TileCoord
}

type block struct {
	first uint32
	count int
}

// Memory is an in-process Allocator. Its state lasts for one run.
type Memory struct {
	mu         sync.Mutex
	maps       map[string]uint32
	blocks     map[blockKey]block
	nextMap    uint32
	nextUnique uint32
	closed     bool
}

// NewMemory creates an empty in-memory allocator.
func NewMemory() *Memory {
	return &Memory{
		maps:       make(map[string]uint32),
		blocks:     make(map[blockKey]block),
		nextMap:    FirstMapID,
		nextUnique: FirstUniqueID,
	}
}

// MapID implements Allocator.
func (m *Memory) MapID(_ context.Context, name string) (uint32, error) {
	if name == "" {
		return 0, fmt.Errorf("registry: empty map name")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	if id, ok := m.maps[name]; ok {
		return id, nil
	}
	id := m.nextMap
	m.nextMap++
	m.maps[name] = id
	return id, nil
}

// UniqueIDs implements Allocator.
func (m *Memory) UniqueIDs(_ context.Context, mapName string, tile formats.TileCoord, n int) (uint32, error) {
	if n < 0 {
		return 0, fmt.Errorf("registry: negative block size %d", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	key := blockKey{mapName, tile}
	if b, ok := m.blocks[key]; ok && b.count >= n {
		return b.first, nil
	}
	b := block{first: m.nextUnique, count: n}
	m.nextUnique += uint32(n)
	m.blocks[key] = b
	return b.first, nil
}

// Close implements Allocator.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Open returns a SQLite allocator for path, or a Memory allocator when path
// is empty.
func Open(path string) (Allocator, error) {
	if path == "" {
		return NewMemory(), nil
	}
	s, err := OpenSQLite(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}
