// Package math provides the small vector types used by the terrain transform.
package math

import "math"

// Vec3 is a 3D vector. Z is up.
type Vec3 struct {
	X, Y, Z float32
}

// Up is the unit vector pointing straight up.
var Up = Vec3{0, 0, 1}

// Dot returns the dot product.
func (v Vec3) Dot(other Vec3) float32 {
	return float32(v.X*other.X) + float32(v.Y*other.Y) + float32(v.Z*other.Z)
}

// Cross returns the cross product.
// The float32 conversions round every product so the compiler cannot fuse
// them into FMA instructions; results are identical on every architecture.
func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		float32(v.Y*other.Z) - float32(v.Z*other.Y),
		float32(v.Z*other.X) - float32(v.X*other.Z),
		float32(v.X*other.Y) - float32(v.Y*other.X),
	}
}

// Length returns the magnitude.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v.Dot(v))))
}

// Normalize returns a unit vector. The zero vector normalizes to Up.
func (v Vec3) Normalize() Vec3 {
	l := v.Length()
	if l == 0 {
		return Up
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}
