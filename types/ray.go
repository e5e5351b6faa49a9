package types

// PacketDim is the side of a square ray packet.
const PacketDim = 4

// PacketSize is the number of rays in a packet.
const PacketSize = PacketDim * PacketDim

// A ray with a precomputed inverse direction for slab tests.
type Ray struct {
	Origin Vec3
	Dir    Vec3
	InvDir Vec3

	// True if the corresponding direction component is negative.
	DirIsNeg [3]bool
}

// Create a ray. The direction is normalized.
func NewRay(origin, dir Vec3) Ray {
	r := Ray{Origin: origin}
	r.SetDir(dir)
	return r
}

// Create a ray from origin towards target.
func RayTowards(origin, target Vec3) Ray {
	return NewRay(origin, target.Sub(origin))
}

// Set and normalize the ray direction.
func (r *Ray) SetDir(dir Vec3) {
	r.Dir = dir.Normalize()
	for axis := 0; axis < 3; axis++ {
		r.InvDir[axis] = 1.0 / r.Dir[axis]
		r.DirIsNeg[axis] = r.Dir[axis] < 0
	}
}

// Get the point at distance t along the ray.
func (r *Ray) At(t float32) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// A group of coherent rays traversed together.
type RayPacket struct {
	Rays [PacketSize]Ray
}

// Build a packet bounding box enclosing all ray origins.
func (p *RayPacket) OriginBounds() BBox {
	b := EmptyBBox()
	for i := range p.Rays {
		b.Extend(p.Rays[i].Origin)
	}
	return b
}
