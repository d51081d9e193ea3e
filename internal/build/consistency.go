package build

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"

	"github.com/Faultbox/midgard-forge/pkg/formats"
)

// ErrInconsistent marks a grid and tile set that disagree.
var ErrInconsistent = errors.New("grid and tiles disagree")

// CheckConsistency verifies that every active grid cell has exactly one tile
// payload and every payload has an active cell. All violations are reported.
func CheckConsistency(grid formats.WorldGrid, tiles []formats.TileCoord) error {
	var err error

	count := make(map[formats.TileCoord]int, len(tiles))
	for _, c := range tiles {
		count[c]++
	}

	active := make(map[formats.TileCoord]bool, len(grid.Tiles))
	for _, c := range grid.Tiles {
		if active[c] {
			continue
		}
		active[c] = true
		if count[c] == 0 {
			err = multierr.Append(err, fmt.Errorf("%w: active cell %s has no tile", ErrInconsistent, c))
		}
	}

	for _, c := range sortedCoords(count) {
		if !active[c] {
			err = multierr.Append(err, fmt.Errorf("%w: tile %s is not active in the grid", ErrInconsistent, c))
		}
		if n := count[c]; n > 1 {
			err = multierr.Append(err, fmt.Errorf("%w: tile %s produced %d payloads", ErrInconsistent, c, n))
		}
	}
	return err
}

func sortedCoords[V any](m map[formats.TileCoord]V) []formats.TileCoord {
	out := make([]formats.TileCoord, 0, len(m))
	for c := range m {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}
