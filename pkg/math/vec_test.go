package math

import (
	"testing"
)

func TestVec2Cell(t *testing.T) {
	tests := []struct {
		v            Vec2
		wantX, wantY int
	}{
		{Vec2{0, 0}, 0, 0},
		{Vec2{10, 25}, 1, 2},
		{Vec2{-5, 3}, 0, 0},
		{Vec2{1000, 159.9}, 15, 15},
	}
	for _, tc := range tests {
		x, y := tc.v.Cell(10, 16)
		if x != tc.wantX || y != tc.wantY {
			t.Errorf("%v.Cell(10, 16) = (%d, %d), want (%d, %d)", tc.v, x, y, tc.wantX, tc.wantY)
		}
	}
}

func TestVec3Cross(t *testing.T) {
	x := Vec3{1, 0, 0}
	y := Vec3{0, 1, 0}
	got := x.Cross(y)
	want := Vec3{0, 0, 1}
	if got != want {
		t.Errorf("Vec3.Cross() = %v, want %v", got, want)
	}
}

func TestVec3Normalize(t *testing.T) {
	v := Vec3{3, 0, 4}
	n := v.Normalize()
	l := n.Length()
	if l < 0.999 || l > 1.001 {
		t.Errorf("Vec3.Normalize().Length() = %v, want ~1", l)
	}
	if got := (Vec3{}).Normalize(); got != Up {
		t.Errorf("zero vector normalized to %v, want %v", got, Up)
	}
}
