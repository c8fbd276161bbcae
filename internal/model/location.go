package model

// Location — точка в мире, где лежит предмет.
type Location struct {
	X int32
	Y int32
	Z int32
}

// NewLocation создаёт Location.
func NewLocation(x, y, z int32) Location {
	return Location{X: x, Y: y, Z: z}
}

// DistanceSquared returns the squared distance to other.
func (l Location) DistanceSquared(other Location) int64 {
	dx := int64(l.X) - int64(other.X)
	dy := int64(l.Y) - int64(other.Y)
	dz := int64(l.Z) - int64(other.Z)
	return dx*dx + dy*dy + dz*dz
}

// WithinRadius reports whether other lies within radius of l.
func (l Location) WithinRadius(other Location, radius int32) bool {
	r := int64(radius)
	return l.DistanceSquared(other) <= r*r
}
