package math

// Vec2 is a 2D vector on the horizontal plane.
type Vec2 struct {
	X, Y float32
}

// Cell returns the integer cell containing v on a grid of the given cell size,
// clamped to [0, cells).
func (v Vec2) Cell(size float32, cells int) (int, int) {
	return clampCell(v.X/size, cells), clampCell(v.Y/size, cells)
}

func clampCell(f float32, cells int) int {
	if f < 0 {
		return 0
	}
	i := int(f)
	if i >= cells {
		return cells - 1
	}
	return i
}
