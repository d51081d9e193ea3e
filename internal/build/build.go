// Package build turns a map manifest into the files a client loads: one grid
// file and one payload per active tile, plus converted textures.
package build

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/midgard-forge/internal/cache"
	"github.com/Faultbox/midgard-forge/internal/export"
	"github.com/Faultbox/midgard-forge/internal/logger"
	"github.com/Faultbox/midgard-forge/internal/project"
	"github.com/Faultbox/midgard-forge/internal/registry"
	"github.com/Faultbox/midgard-forge/pkg/formats"
	"github.com/Faultbox/midgard-forge/pkg/texconv"
)

// Options configures a build. Sink and Registry are required.
type Options struct {
	Workers   int
	GridFlags uint32
	Encode    formats.EncodeOptions

	Sink     export.Sink
	Registry registry.Allocator
	Cache    *cache.Cache    // nil disables caching
	Textures texconv.Encoder // nil skips texture conversion
	Log      *zap.Logger
}

// Result summarizes a finished build.
type Result struct {
	Map      string
	MapID    uint32
	Grid     formats.WorldGrid
	Tiles    []formats.TileCoord
	Encoded  int
	Cached   int
	Textures int
	Elapsed  time.Duration
}

// Run builds every tile of m and writes the results to opts.Sink. Tiles and
// textures are encoded in parallel and held in memory; nothing reaches the
// sink until every tile and texture succeeded and the tile set matches the
// grid. The grid file is written last. A sink error part way through can
// still leave a partial set of files, but never a grid without its tiles.
func Run(ctx context.Context, m *project.Manifest, opts Options) (*Result, error) {
	if opts.Sink == nil || opts.Registry == nil {
		return nil, fmt.Errorf("build: sink and registry are required")
	}
	log := opts.Log
	if log == nil {
		log = logger.Named("build")
	}
	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	start := time.Now()
	res := &Result{Map: m.Name}

	res.MapID = m.MapID
	if res.MapID == 0 {
		id, err := opts.Registry.MapID(ctx, m.Name)
		if err != nil {
			return nil, fmt.Errorf("allocate map id: %w", err)
		}
		res.MapID = id
	}

	res.Grid = m.Grid(opts.GridFlags)
	wdt, err := formats.EncodeWDT(res.Grid)
	if err != nil {
		return nil, err
	}

	log.Info("building map",
		zap.String("map", m.Name),
		zap.Uint32("map_id", res.MapID),
		zap.Int("tiles", len(m.Tiles)),
		zap.Int("workers", workers))

	var (
		mu       sync.Mutex
		built    []formats.TileCoord
		payloads = make(map[formats.TileCoord][]byte, len(m.Tiles))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range m.Tiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			coord, data, cached, err := buildTile(gctx, m, i, opts, log)
			if err != nil {
				return err
			}
			mu.Lock()
			built = append(built, coord)
			payloads[coord] = data
			if cached {
				res.Cached++
			} else {
				res.Encoded++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := CheckConsistency(res.Grid, built); err != nil {
		return nil, err
	}
	sort.Slice(built, func(i, j int) bool { return built[i].Index() < built[j].Index() })
	res.Tiles = built

	var textures map[string][]byte
	if opts.Textures != nil {
		textures, err = convertTextures(ctx, m, opts.Textures, workers, log)
		if err != nil {
			return nil, err
		}
		res.Textures = len(textures)
	}

	for _, c := range built {
		if err := opts.Sink.Put(export.ADTPath(m.Name, c), payloads[c]); err != nil {
			return nil, fmt.Errorf("write tile %s: %w", c, err)
		}
	}
	names := make([]string, 0, len(textures))
	for name := range textures {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := opts.Sink.Put(export.TexturePath(name), textures[name]); err != nil {
			return nil, fmt.Errorf("write texture %s: %w", name, err)
		}
	}

	if err := opts.Sink.Put(export.WDTPath(m.Name), wdt); err != nil {
		return nil, fmt.Errorf("write grid: %w", err)
	}

	res.Elapsed = time.Since(start)
	log.Info("map built",
		zap.String("map", m.Name),
		zap.Int("encoded", res.Encoded),
		zap.Int("cached", res.Cached),
		zap.Int("textures", res.Textures),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// buildTile loads and encodes tile i. It reports whether the payload came
// from the cache.
func buildTile(ctx context.Context, m *project.Manifest, i int, opts Options, log *zap.Logger) (formats.TileCoord, []byte, bool, error) {
	start := time.Now()

	in, err := m.TileInput(i)
	if err != nil {
		return formats.TileCoord{}, nil, false, err
	}
	if err := assignUniqueIDs(ctx, opts.Registry, m.Name, in); err != nil {
		return in.Coord, nil, false, err
	}

	var (
		data   []byte
		cached bool
		key    string
	)
	if opts.Cache != nil {
		key = cache.Key(in, opts.Encode)
		data, cached, err = opts.Cache.Get(key)
		if err != nil {
			log.Warn("cache read failed", zap.Stringer("tile", in.Coord), zap.Error(err))
		}
	}

	if !cached {
		data, err = formats.EncodeADT(in, opts.Encode)
		if err != nil {
			return in.Coord, nil, false, err
		}
		if opts.Cache != nil {
			if err := opts.Cache.Put(key, data); err != nil {
				log.Warn("cache write failed", zap.Stringer("tile", in.Coord), zap.Error(err))
			}
		}
	}

	log.Debug("tile done",
		zap.Int("x", in.Coord.X),
		zap.Int("y", in.Coord.Y),
		zap.Int("bytes", len(data)),
		zap.Bool("cached", cached),
		zap.Duration("elapsed", time.Since(start)))
	return in.Coord, data, cached, nil
}

// assignUniqueIDs gives every placement of the tile a registry-backed ID.
func assignUniqueIDs(ctx context.Context, reg registry.Allocator, mapName string, in *formats.TileInput) error {
	n := len(in.Doodads) + len(in.Structures)
	if n == 0 {
		return nil
	}
	first, err := reg.UniqueIDs(ctx, mapName, in.Coord, n)
	if err != nil {
		return fmt.Errorf("tile %s: allocate unique ids: %w", in.Coord, err)
	}
	for i := range in.Doodads {
		in.Doodads[i].UniqueID = first + uint32(i)
	}
	for i := range in.Structures {
		in.Structures[i].UniqueID = first + uint32(len(in.Doodads)+i)
	}
	return nil
}

// convertTextures converts every texture with a source image. The result is
// keyed by client name.
func convertTextures(ctx context.Context, m *project.Manifest, enc texconv.Encoder, workers int, log *zap.Logger) (map[string][]byte, error) {
	sources, err := m.TextureSources()
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		out = make(map[string][]byte, len(sources))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for name, src := range sources {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := project.DecodeImage(src)
			if err != nil {
				return fmt.Errorf("texture %s: %w", name, err)
			}
			data, err := enc.Encode(img)
			if err != nil {
				return fmt.Errorf("texture %s: %w", name, err)
			}
			mu.Lock()
			out[name] = data
			mu.Unlock()
			log.Debug("texture converted", zap.String("name", name), zap.String("source", src))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
