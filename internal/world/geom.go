package world

import "math"

// PlanarDist is the XZ-plane distance used for movement validation and
// proximity checks; the world treats height as decorative for range rules.
func PlanarDist(x1, z1, x2, z2 float64) float64 {
	dx := x2 - x1
	dz := z2 - z1
	return math.Sqrt(dx*dx + dz*dz)
}

// Dist3 is the full Euclidean distance, used for precise collision checks.
func Dist3(x1, y1, z1, x2, y2, z2 float64) float64 {
	dx := x2 - x1
	dy := y2 - y1
	dz := z2 - z1
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// HeadingTo returns the atan2(dx, dz) heading from one point to another.
// This matches the client convention dirX = sin(rot), dirZ = cos(rot).
func HeadingTo(fromX, fromZ, toX, toZ float64) float64 {
	return math.Atan2(toX-fromX, toZ-fromZ)
}

// DirFromRotation converts a rotation into a planar unit direction under the
// same sin/cos convention as HeadingTo.
func DirFromRotation(rot float64) (dirX, dirZ float64) {
	return math.Sin(rot), math.Cos(rot)
}
