package types

import "math"

// An axis aligned bounding box.
type BBox struct {
	Min Vec3
	Max Vec3
}

// Create an empty (inverted) bounding box that any Extend/Union call will reset.
func EmptyBBox() BBox {
	return BBox{
		Min: Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Create a bounding box from two arbitrary corners.
func NewBBox(p0, p1 Vec3) BBox {
	return BBox{Min: MinVec3(p0, p1), Max: MaxVec3(p0, p1)}
}

// Returns true if the box encloses at least a single point.
func (b BBox) IsValid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Grow box to include point p.
func (b *BBox) Extend(p Vec3) {
	b.Min = MinVec3(b.Min, p)
	b.Max = MaxVec3(b.Max, p)
}

// Grow box to include another box.
func (b *BBox) Union(o BBox) {
	if !o.IsValid() {
		return
	}
	b.Min = MinVec3(b.Min, o.Min)
	b.Max = MaxVec3(b.Max, o.Max)
}

// Grow the box by d on every side.
func (b BBox) Inflate(d float32) BBox {
	return BBox{Min: b.Min.Sub(Splat3(d)), Max: b.Max.Add(Splat3(d))}
}

// Get the box center.
func (b BBox) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Get the box side lengths.
func (b BBox) Extent() Vec3 {
	return b.Max.Sub(b.Min)
}

// Get the index of the longest axis.
func (b BBox) MaxAxis() int {
	e := b.Extent()
	if e[0] >= e[1] && e[0] >= e[2] {
		return 0
	}
	if e[1] >= e[2] {
		return 1
	}
	return 2
}

// Get the surface area.
func (b BBox) SurfaceArea() float32 {
	if !b.IsValid() {
		return 0
	}
	e := b.Extent()
	return 2 * (e[0]*e[1] + e[1]*e[2] + e[0]*e[2])
}

// Returns true if p lies inside the box (boundary included).
func (b BBox) Inside(p Vec3) bool {
	return p[0] >= b.Min[0] && p[0] <= b.Max[0] &&
		p[1] >= b.Min[1] && p[1] <= b.Max[1] &&
		p[2] >= b.Min[2] && p[2] <= b.Max[2]
}

// Returns true if o is fully enclosed by b.
func (b BBox) Encloses(o BBox) bool {
	return b.Inside(o.Min) && b.Inside(o.Max)
}

// Intersect ray with the box using the slab method. Returns the entry and
// exit distances. Rays starting inside the box report a negative entry.
func (b BBox) Intersect(r *Ray) (t0, t1 float32, hit bool) {
	t0 = -math.MaxFloat32
	t1 = math.MaxFloat32
	for axis := 0; axis < 3; axis++ {
		if r.Dir[axis] == 0 {
			if r.Origin[axis] < b.Min[axis] || r.Origin[axis] > b.Max[axis] {
				return 0, 0, false
			}
			continue
		}
		tNear := (b.Min[axis] - r.Origin[axis]) * r.InvDir[axis]
		tFar := (b.Max[axis] - r.Origin[axis]) * r.InvDir[axis]
		if tNear > tFar {
			tNear, tFar = tFar, tNear
		}
		if tNear > t0 {
			t0 = tNear
		}
		if tFar < t1 {
			t1 = tFar
		}
		if t0 > t1 {
			return 0, 0, false
		}
	}
	return t0, t1, t1 >= 0
}

// Returns true if the ray crosses the box anywhere in [0, tMax].
func (b BBox) IntersectRange(r *Ray, tMax float32) bool {
	t0, _, hit := b.Intersect(r)
	return hit && t0 <= tMax
}
