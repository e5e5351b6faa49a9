package scene

import (
	"math"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/types"
)

// Primitive extends the geometric contract with shading information and a
// back-reference to the originating board item.
type Primitive interface {
	accel.Primitive

	Material() *Material
	Color(p types.Vec3) types.Vec3
	Item() board.Item
}

// Kind identifies the concrete primitive type; used for statistics.
type Kind uint8

const (
	KindTriangle Kind = iota
	KindRoundSegment
	KindCylinder
	KindRing
	KindExtrudedPolygon
	KindDummyBlock
	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindTriangle:
		return "triangle"
	case KindRoundSegment:
		return "round segment"
	case KindCylinder:
		return "cylinder"
	case KindRing:
		return "ring"
	case KindExtrudedPolygon:
		return "extruded polygon"
	case KindDummyBlock:
		return "dummy block"
	}
	return "unknown"
}

// Shared primitive state.
type base struct {
	bbox     types.BBox
	center   types.Vec3
	material *Material
	color    types.Vec3
	item     board.Item
}

func (b *base) BBox() types.BBox {
	return b.bbox
}

func (b *base) Center() types.Vec3 {
	return b.center
}

func (b *base) Material() *Material {
	return b.material
}

func (b *base) Color(types.Vec3) types.Vec3 {
	return b.color
}

func (b *base) Item() board.Item {
	return b.item
}

func (b *base) setBBox(bbox types.BBox) {
	b.bbox = bbox
	b.center = bbox.Center()
}

// A triangle with optional per-vertex normals.
type Triangle struct {
	base

	v      [3]types.Vec3
	n      [3]types.Vec3
	normal types.Vec3
	smooth bool
}

// Create a new triangle. If normals is nil the geometric normal is used.
// Returns nil for degenerate (zero area) triangles.
func NewTriangle(v0, v1, v2 types.Vec3, normals []types.Vec3, mat *Material, color types.Vec3, item board.Item) *Triangle {
	normal := v1.Sub(v0).Cross(v2.Sub(v0))
	if normal.Len() < 1e-9 {
		return nil
	}

	t := &Triangle{
		base:   base{material: mat, color: color, item: item},
		v:      [3]types.Vec3{v0, v1, v2},
		normal: normal.Normalize(),
	}
	if len(normals) == 3 {
		t.smooth = true
		for i := range normals {
			t.n[i] = normals[i].Normalize()
		}
	}

	bbox := types.NewBBox(v0, v1)
	bbox.Extend(v2)
	t.setBBox(bbox)
	t.center = v0.Add(v1).Add(v2).Mul(1.0 / 3.0)
	return t
}

// Get the triangle vertices.
func (t *Triangle) Vertices() [3]types.Vec3 {
	return t.v
}

// Moller-Trumbore intersection. Returns distance and barycentric coordinates.
func (t *Triangle) distance(r *types.Ray) (dist, u, v float32, ok bool) {
	const tolerance = 1e-7

	e1 := t.v[1].Sub(t.v[0])
	e2 := t.v[2].Sub(t.v[0])
	p := r.Dir.Cross(e2)
	det := e1.Dot(p)
	if det > -tolerance && det < tolerance {
		return 0, 0, 0, false
	}
	invDet := 1.0 / det

	s := r.Origin.Sub(t.v[0])
	u = s.Dot(p) * invDet
	if u < -tolerance || u > 1+tolerance {
		return 0, 0, 0, false
	}

	q := s.Cross(e1)
	v = r.Dir.Dot(q) * invDet
	if v < -tolerance || u+v > 1+tolerance {
		return 0, 0, 0, false
	}

	dist = e2.Dot(q) * invDet
	return dist, u, v, dist > accel.Epsilon
}

func (t *Triangle) Intersect(r *types.Ray, hit *accel.HitInfo) bool {
	dist, u, v, ok := t.distance(r)
	if !ok || dist >= hit.T {
		return false
	}

	hit.T = dist
	hit.Point = r.At(dist)
	hit.Normal = t.normal
	if t.smooth {
		hit.Normal = t.n[0].Mul(1 - u - v).Add(t.n[1].Mul(u)).Add(t.n[2].Mul(v)).Normalize()
	}
	hit.Inside = r.Dir.Dot(t.normal) > 0
	return true
}

func (t *Triangle) IntersectP(r *types.Ray, maxDistance float32) bool {
	dist, _, _, ok := t.distance(r)
	return ok && dist < maxDistance
}

// An axis aligned box used as a board placeholder when no usable outline is
// available.
type DummyBlock struct {
	base
}

// Create a new block.
func NewDummyBlock(bbox types.BBox, mat *Material, color types.Vec3, item board.Item) *DummyBlock {
	if !bbox.IsValid() {
		return nil
	}
	b := &DummyBlock{base: base{material: mat, color: color, item: item}}
	b.setBBox(bbox)
	return b
}

func (b *DummyBlock) Intersect(r *types.Ray, hit *accel.HitInfo) bool {
	t0, t1, ok := b.bbox.Intersect(r)
	if !ok {
		return false
	}

	t, inside := t0, false
	if t0 <= accel.Epsilon {
		t, inside = t1, true
	}
	if t <= accel.Epsilon || t >= hit.T {
		return false
	}

	hit.T = t
	hit.Point = r.At(t)
	hit.Normal = b.faceNormal(hit.Point)
	hit.Inside = inside
	return true
}

func (b *DummyBlock) IntersectP(r *types.Ray, maxDistance float32) bool {
	t0, t1, ok := b.bbox.Intersect(r)
	if !ok {
		return false
	}
	if t0 > accel.Epsilon {
		return t0 < maxDistance
	}
	return t1 > accel.Epsilon && t1 < maxDistance
}

// Get the outward normal of the face closest to p.
func (b *DummyBlock) faceNormal(p types.Vec3) types.Vec3 {
	var n types.Vec3
	best := float32(math.MaxFloat32)
	for axis := 0; axis < 3; axis++ {
		if d := float32(math.Abs(float64(p[axis] - b.bbox.Min[axis]))); d < best {
			best = d
			n = types.Vec3{}
			n[axis] = -1
		}
		if d := float32(math.Abs(float64(p[axis] - b.bbox.Max[axis]))); d < best {
			best = d
			n = types.Vec3{}
			n[axis] = 1
		}
	}
	return n
}
