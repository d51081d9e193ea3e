// forgetool builds terrain tiles and grid files for the world client from a
// map manifest.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-forge/internal/build"
	"github.com/Faultbox/midgard-forge/internal/cache"
	"github.com/Faultbox/midgard-forge/internal/config"
	"github.com/Faultbox/midgard-forge/internal/export"
	"github.com/Faultbox/midgard-forge/internal/logger"
	"github.com/Faultbox/midgard-forge/internal/project"
	"github.com/Faultbox/midgard-forge/internal/registry"
	"github.com/Faultbox/midgard-forge/pkg/encoding"
	"github.com/Faultbox/midgard-forge/pkg/formats"
	"github.com/Faultbox/midgard-forge/pkg/texconv"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	var err error
	switch command {
	case "build", "b":
		err = cmdBuild(args)
	case "watch", "w":
		err = cmdWatch(args)
	case "grid":
		err = cmdGrid(args)
	case "info":
		err = cmdInfo(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`forgetool - terrain tile builder

Usage:
  forgetool <command> [options]

Commands:
  build <map.yaml>         Build grid, tiles and textures for a map
  watch <map.yaml>         Build, then rebuild whenever inputs change
  grid <map.yaml|file.wdt> Show which tiles of the 64x64 grid are active
  info <file.adt|file.wdt> Show the contents of an encoded file

Build options:
  -config <file>          Config file (default ./forge.yaml)
  -o <dir>                Output directory
  -workers <n>            Parallel tile encoders
  -cache <dir>            Reuse unchanged tiles from this cache
  -missing-alpha <mode>   opaque or transparent (default opaque)
  -registry <file>        Persist map and placement IDs in this database
  -log <file>             Also write JSON logs to this file
  -debug                  Debug logging

Examples:
  forgetool build -o ./client/Data maps/testland.yaml
  forgetool watch -cache .forge-cache maps/testland.yaml
  forgetool info ./client/Data/World/Maps/Testland/Testland_32_32.adt`)
}

// session holds everything a build needs, opened from config.
type session struct {
	cfg     *config.Config
	opts    build.Options
	reg     registry.Allocator
	tc      *cache.Cache
	charset *encoding.Charset
}

func openSession(cfg *config.Config) (*session, error) {
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return nil, err
	}

	fallback, err := cfg.AlphaFallback()
	if err != nil {
		return nil, err
	}

	charset, err := encoding.Lookup(cfg.Terrain.Charset)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Open(cfg.Registry.Path)
	if err != nil {
		return nil, fmt.Errorf("open registry: %w", err)
	}

	s := &session{cfg: cfg, reg: reg, charset: charset}
	if cfg.Build.CacheDir != "" {
		s.tc, err = cache.Open(cfg.Build.CacheDir)
		if err != nil {
			reg.Close()
			return nil, fmt.Errorf("open cache: %w", err)
		}
	}

	enc := texconv.Select(cfg.Textures.Converter, cfg.Textures.ConverterArgs)
	if cfg.Textures.Converter != "" {
		if _, ok := enc.(texconv.BLP); ok {
			logger.Warn("texture converter not found, using built-in encoder",
				zap.String("converter", cfg.Textures.Converter))
		}
	}

	s.opts = build.Options{
		Workers:   cfg.Build.Workers,
		GridFlags: cfg.Terrain.GridFlags,
		Encode: formats.EncodeOptions{
			MissingAlpha: fallback,
			HeaderFlags:  cfg.Terrain.HeaderFlags,
		},
		Sink:     export.DirSink{Root: cfg.Build.OutputDir},
		Registry: reg,
		Cache:    s.tc,
		Textures: enc,
		Log:      logger.Named("build"),
	}
	return s, nil
}

func (s *session) Close() {
	if s.tc != nil {
		s.tc.Close()
	}
	if err := s.reg.Close(); err != nil {
		logger.Warn("closing registry", zap.Error(err))
	}
}

func (s *session) run(ctx context.Context, manifestPath string) (*project.Manifest, error) {
	m, err := project.Load(manifestPath)
	if err != nil {
		return nil, err
	}
	m.Charset = s.charset
	if s.cfg.Registry.MapID != 0 && m.MapID == 0 {
		m.MapID = s.cfg.Registry.MapID
	}
	res, err := build.Run(ctx, m, s.opts)
	if err != nil {
		return m, err
	}
	fmt.Printf("%s (map %d): %d tiles, %d encoded, %d cached, %d textures in %v -> %s\n",
		res.Map, res.MapID, len(res.Tiles), res.Encoded, res.Cached, res.Textures,
		res.Elapsed.Round(time.Millisecond), s.cfg.Build.OutputDir)
	return m, nil
}

// parseBuildFlags parses the shared flags and returns the config and the
// manifest path.
func parseBuildFlags(name string, args []string) (*config.Config, string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	flags := config.RegisterFlags(fs)
	fs.Parse(args)

	if fs.NArg() < 1 {
		return nil, "", fmt.Errorf("usage: forgetool %s [options] <map.yaml>", name)
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return nil, "", err
	}
	return cfg, fs.Arg(0), nil
}

func cmdBuild(args []string) error {
	cfg, manifest, err := parseBuildFlags("build", args)
	if err != nil {
		return err
	}
	s, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = s.run(ctx, manifest)
	return err
}

func cmdGrid(args []string) error {
	if len(args) < 1 {
		return errors.New("usage: forgetool grid <map.yaml|file.wdt>")
	}

	var grid *formats.WorldGrid
	if strings.EqualFold(filepath.Ext(args[0]), ".wdt") {
		g, err := formats.ParseWDTFile(args[0])
		if err != nil {
			return err
		}
		grid = g
	} else {
		m, err := project.Load(args[0])
		if err != nil {
			return err
		}
		g := m.Grid(config.Default().Terrain.GridFlags)
		grid = &g
	}

	tiles := grid.Sorted()
	fmt.Printf("Flags: 0x%x\n", grid.Flags)
	fmt.Printf("Tiles: %d\n", len(tiles))
	if len(tiles) == 0 {
		return nil
	}

	minX, maxX, minY, maxY := tiles[0].X, tiles[0].X, tiles[0].Y, tiles[0].Y
	for _, c := range tiles {
		minX, maxX = min(minX, c.X), max(maxX, c.X)
		minY, maxY = min(minY, c.Y), max(maxY, c.Y)
	}

	fmt.Printf("Bounds: x %d..%d, y %d..%d\n\n", minX, maxX, minY, maxY)
	for y := minY; y <= maxY; y++ {
		var row strings.Builder
		fmt.Fprintf(&row, "%3d ", y)
		for x := minX; x <= maxX; x++ {
			if grid.Has(formats.TileCoord{X: x, Y: y}) {
				row.WriteByte('#')
			} else {
				row.WriteByte('.')
			}
		}
		fmt.Println(row.String())
	}
	return nil
}

func cmdInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	charsetName := fs.String("charset", "", "Client charset of stored names")
	fs.Parse(args)

	if fs.NArg() < 1 {
		return errors.New("usage: forgetool info [-charset name] <file.adt|file.wdt>")
	}
	path := fs.Arg(0)
	charset, err := encoding.Lookup(*charsetName)
	if err != nil {
		return err
	}

	if strings.EqualFold(filepath.Ext(path), ".wdt") {
		g, err := formats.ParseWDTFile(path)
		if err != nil {
			return err
		}
		fmt.Printf("Grid:  %s\n", path)
		fmt.Printf("Flags: 0x%x\n", g.Flags)
		fmt.Printf("Tiles: %d\n", len(g.Tiles))
		return nil
	}

	adt, err := formats.ParseADTFile(path)
	if err != nil {
		return err
	}
	lo, hi := adt.HeightRange()

	fmt.Printf("Tile:       %s\n", path)
	fmt.Printf("Version:    %d\n", adt.Version)
	fmt.Printf("Flags:      0x%x\n", adt.Flags)
	fmt.Printf("Sub-chunks: %d\n", len(adt.Chunks))
	fmt.Printf("Heights:    %.2f .. %.2f\n", lo, hi)
	fmt.Printf("Doodads:    %d\n", len(adt.Doodads))
	fmt.Printf("Structures: %d\n", len(adt.Structures))
	fmt.Println()
	fmt.Println("Textures:")
	for i, t := range adt.Textures {
		fmt.Printf("  %2d %s\n", i, charset.Decode(t))
	}

	fmt.Println()
	fmt.Println("Sub-chunks by layer count:")
	counts := adt.CountLayers()
	layers := make([]int, 0, len(counts))
	for n := range counts {
		layers = append(layers, n)
	}
	sort.Ints(layers)
	for _, n := range layers {
		fmt.Printf("  %d layers: %d\n", n, counts[n])
	}
	return nil
}
