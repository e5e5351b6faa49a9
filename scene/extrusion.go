package scene

import (
	"math"
	"sort"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/types"
)

var (
	negInf = float32(math.Inf(-1))
	posInf = float32(math.Inf(1))
)

// A parametric interval along a ray where it is inside a 2D shape. The
// normals are the (unsigned) boundary normals at both ends.
type span struct {
	t0, t1 float32
	n0, n1 types.Vec2
}

// A closed 2D region that can be extruded along Z.
type shape2D interface {
	// Append to out the sorted, disjoint intervals where the line o + t*d
	// lies inside the shape. The direction d is not normalized and never zero.
	spans(o, d types.Vec2, out []span) []span

	contains(p types.Vec2) bool
}

// A 2D shape extruded between two Z values.
type extrusion struct {
	base

	shape      shape2D
	zMin, zMax float32
}

func (e *extrusion) init(shape shape2D, min, max types.Vec2, zMin, zMax float32) {
	e.shape = shape
	e.zMin, e.zMax = zMin, zMax
	e.setBBox(types.BBox{Min: min.Vec3(zMin), Max: max.Vec3(zMax)})
}

// Find the nearest boundary crossing with a distance in (Epsilon, tMax).
func (e *extrusion) hit(r *types.Ray, tMax float32) (t float32, n types.Vec3, inside, ok bool) {
	// Z slab
	tz0, tz1 := negInf, posInf
	var nz0, nz1 types.Vec3
	if r.Dir[2] > -1e-9 && r.Dir[2] < 1e-9 {
		if r.Origin[2] < e.zMin || r.Origin[2] > e.zMax {
			return 0, n, false, false
		}
	} else {
		ta := (e.zMin - r.Origin[2]) * r.InvDir[2]
		tb := (e.zMax - r.Origin[2]) * r.InvDir[2]
		tz0, nz0, tz1, nz1 = ta, types.Vec3{0, 0, -1}, tb, types.Vec3{0, 0, 1}
		if ta > tb {
			tz0, nz0, tz1, nz1 = tb, types.Vec3{0, 0, 1}, ta, types.Vec3{0, 0, -1}
		}
	}
	if tz1 <= accel.Epsilon || tz0 >= tMax {
		return 0, n, false, false
	}

	// 2D intervals
	var buf [8]span
	var spans []span
	o, d := r.Origin.XY(), r.Dir.XY()
	if d.Dot(d) < 1e-12 {
		if !e.shape.contains(o) {
			return 0, n, false, false
		}
		spans = append(buf[:0], span{t0: negInf, t1: posInf})
	} else {
		spans = e.shape.spans(o, d, buf[:0])
	}

	t = tMax
	for _, s := range spans {
		enter, enterN := s.t0, s.n0.Vec3(0)
		if tz0 > enter {
			enter, enterN = tz0, nz0
		}
		exit, exitN := s.t1, s.n1.Vec3(0)
		if tz1 < exit {
			exit, exitN = tz1, nz1
		}
		if enter > exit {
			continue
		}

		switch {
		case enter > accel.Epsilon:
			if enter < t {
				t, n, inside, ok = enter, orient(enterN, r.Dir, true), false, true
			}
		case exit > accel.Epsilon:
			if exit < t {
				t, n, inside, ok = exit, orient(exitN, r.Dir, false), true, true
			}
		}
	}
	return t, n, inside, ok
}

func (e *extrusion) Intersect(r *types.Ray, hitInfo *accel.HitInfo) bool {
	t, n, inside, ok := e.hit(r, hitInfo.T)
	if !ok {
		return false
	}
	hitInfo.T = t
	hitInfo.Point = r.At(t)
	hitInfo.Normal = n
	hitInfo.Inside = inside
	return true
}

func (e *extrusion) IntersectP(r *types.Ray, maxDistance float32) bool {
	_, _, _, ok := e.hit(r, maxDistance)
	return ok
}

// Orient a boundary normal so it points outwards: against the ray when
// entering and along the ray when exiting.
func orient(n, dir types.Vec3, entering bool) types.Vec3 {
	if (n.Dot(dir) > 0) == entering {
		return n.Neg()
	}
	return n
}

// Intersect a line with a circle.
func circleSpan(c types.Vec2, radius float32, o, d types.Vec2) (span, bool) {
	oc := o.Sub(c)
	a := d.Dot(d)
	b := oc.Dot(d)
	cc := oc.Dot(oc) - radius*radius
	disc := b*b - a*cc
	if disc <= 0 {
		return span{}, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	t0 := (-b - sq) / a
	t1 := (-b + sq) / a
	return span{
		t0: t0, t1: t1,
		n0: o.Add(d.Mul(t0)).Sub(c).Normalize(),
		n1: o.Add(d.Mul(t1)).Sub(c).Normalize(),
	}, true
}

// Remove the interval covered by cut from the spans, keeping the order.
func subtractSpan(spans []span, cut span) []span {
	out := spans[:0:0]
	for _, s := range spans {
		if cut.t1 <= s.t0 || cut.t0 >= s.t1 {
			out = append(out, s)
			continue
		}
		if cut.t0 > s.t0 {
			out = append(out, span{t0: s.t0, t1: cut.t0, n0: s.n0, n1: cut.n0})
		}
		if cut.t1 < s.t1 {
			out = append(out, span{t0: cut.t1, t1: s.t1, n0: cut.n1, n1: s.n1})
		}
	}
	return out
}

type circleShape struct {
	center types.Vec2
	radius float32
}

func (c *circleShape) spans(o, d types.Vec2, out []span) []span {
	if s, ok := circleSpan(c.center, c.radius, o, d); ok {
		out = append(out, s)
	}
	return out
}

func (c *circleShape) contains(p types.Vec2) bool {
	return p.Sub(c.center).Dot(p.Sub(c.center)) <= c.radius*c.radius
}

// The set of points within radius of the segment a-b (a stadium).
type stadiumShape struct {
	a, b   types.Vec2
	radius float32
}

func (s *stadiumShape) spans(o, d types.Vec2, out []span) []span {
	// Convex union of two end caps and the body rectangle; the interval
	// is the union of the interval of each piece.
	best := span{t0: posInf, t1: negInf}
	merge := func(p span) {
		if p.t0 < best.t0 {
			best.t0, best.n0 = p.t0, p.n0
		}
		if p.t1 > best.t1 {
			best.t1, best.n1 = p.t1, p.n1
		}
	}

	if p, ok := circleSpan(s.a, s.radius, o, d); ok {
		merge(p)
	}
	if p, ok := circleSpan(s.b, s.radius, o, d); ok {
		merge(p)
	}
	if p, ok := s.bodySpan(o, d); ok {
		merge(p)
	}

	if best.t0 < best.t1 {
		out = append(out, best)
	}
	return out
}

// Intersect the line with the rectangle spanned by the segment.
func (s *stadiumShape) bodySpan(o, d types.Vec2) (span, bool) {
	axis := s.b.Sub(s.a)
	length := axis.Len()
	if length < 1e-9 {
		return span{}, false
	}
	u := axis.Mul(1 / length)
	v := types.Vec2{-u[1], u[0]}

	rel := o.Sub(s.a)
	res := span{t0: negInf, t1: posInf}
	slabs := [2]struct {
		dir      types.Vec2
		min, max float32
	}{
		{u, 0, length},
		{v, -s.radius, s.radius},
	}
	for _, slab := range slabs {
		op := rel.Dot(slab.dir)
		dp := d.Dot(slab.dir)
		if dp > -1e-12 && dp < 1e-12 {
			if op < slab.min || op > slab.max {
				return span{}, false
			}
			continue
		}
		ta := (slab.min - op) / dp
		tb := (slab.max - op) / dp
		if ta > tb {
			ta, tb = tb, ta
		}
		if ta > res.t0 {
			res.t0, res.n0 = ta, slab.dir
		}
		if tb < res.t1 {
			res.t1, res.n1 = tb, slab.dir
		}
		if res.t0 >= res.t1 {
			return span{}, false
		}
	}
	return res, true
}

func (s *stadiumShape) contains(p types.Vec2) bool {
	ab := s.b.Sub(s.a)
	t := float32(0)
	if l := ab.Dot(ab); l > 0 {
		t = types.Clamp(p.Sub(s.a).Dot(ab)/l, 0, 1)
	}
	q := s.a.Add(ab.Mul(t))
	return p.Sub(q).Dot(p.Sub(q)) <= s.radius*s.radius
}

type ringShape struct {
	center       types.Vec2
	inner, outer float32
}

func (s *ringShape) spans(o, d types.Vec2, out []span) []span {
	outer, ok := circleSpan(s.center, s.outer, o, d)
	if !ok {
		return out
	}
	inner, ok := circleSpan(s.center, s.inner, o, d)
	if !ok {
		return append(out, outer)
	}
	return append(out, subtractSpan([]span{outer}, inner)...)
}

func (s *ringShape) contains(p types.Vec2) bool {
	d := p.Sub(s.center).Dot(p.Sub(s.center))
	return d <= s.outer*s.outer && d >= s.inner*s.inner
}

// A simple polygon with circular holes. Points are inside according to the
// even-odd rule.
type polygonShape struct {
	outline []types.Vec2
	holes   []circleShape
}

func (s *polygonShape) spans(o, d types.Vec2, out []span) []span {
	type crossing struct {
		t float32
		n types.Vec2
	}

	var buf [16]crossing
	crossings := buf[:0]
	count := len(s.outline)
	for i := 0; i < count; i++ {
		p0 := s.outline[i]
		p1 := s.outline[(i+1)%count]
		e := p1.Sub(p0)
		denom := d.Cross(e)
		if denom > -1e-12 && denom < 1e-12 {
			continue
		}
		w := p0.Sub(o)
		t := w.Cross(e) / denom
		u := w.Cross(d) / denom
		// Half-open edge test so shared vertices are counted once
		if u < 0 || u >= 1 {
			continue
		}
		crossings = append(crossings, crossing{t: t, n: types.Vec2{e[1], -e[0]}.Normalize()})
	}
	sort.Slice(crossings, func(i, j int) bool { return crossings[i].t < crossings[j].t })

	spans := out[len(out):]
	for i := 0; i+1 < len(crossings); i += 2 {
		spans = append(spans, span{t0: crossings[i].t, t1: crossings[i+1].t, n0: crossings[i].n, n1: crossings[i+1].n})
	}

	for i := range s.holes {
		if cut, ok := circleSpan(s.holes[i].center, s.holes[i].radius, o, d); ok {
			spans = subtractSpan(spans, cut)
		}
	}
	return append(out, spans...)
}

func (s *polygonShape) contains(p types.Vec2) bool {
	for i := range s.holes {
		if s.holes[i].contains(p) {
			return false
		}
	}
	return pointInPolygon(s.outline, p)
}

// Even-odd point in polygon test.
func pointInPolygon(poly []types.Vec2, p types.Vec2) bool {
	inside := false
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		pi, pj := poly[i], poly[j]
		if (pi[1] > p[1]) != (pj[1] > p[1]) &&
			p[0] < (pj[0]-pi[0])*(p[1]-pi[1])/(pj[1]-pi[1])+pi[0] {
			inside = !inside
		}
	}
	return inside
}

// RoundSegment is a track segment with round ends extruded along Z.
type RoundSegment struct {
	extrusion
	shape stadiumShape
}

// Create a round segment. Returns nil for zero width segments.
func NewRoundSegment(start, end types.Vec2, width, zMin, zMax float32, mat *Material, color types.Vec3, item board.Item) *RoundSegment {
	radius := width / 2
	if radius <= 0 || zMax <= zMin {
		return nil
	}
	s := &RoundSegment{
		extrusion: extrusion{base: base{material: mat, color: color, item: item}},
		shape:     stadiumShape{a: start, b: end, radius: radius},
	}
	r := types.Vec2{radius, radius}
	min := types.Vec2{minf(start[0], end[0]), minf(start[1], end[1])}.Sub(r)
	max := types.Vec2{maxf(start[0], end[0]), maxf(start[1], end[1])}.Add(r)
	s.init(&s.shape, min, max, zMin, zMax)
	return s
}

// Cylinder is a disc extruded along Z.
type Cylinder struct {
	extrusion
	shape circleShape
}

// Create a cylinder. Returns nil for a zero radius.
func NewCylinder(center types.Vec2, radius, zMin, zMax float32, mat *Material, color types.Vec3, item board.Item) *Cylinder {
	if radius <= 0 || zMax <= zMin {
		return nil
	}
	c := &Cylinder{
		extrusion: extrusion{base: base{material: mat, color: color, item: item}},
		shape:     circleShape{center: center, radius: radius},
	}
	r := types.Vec2{radius, radius}
	c.init(&c.shape, center.Sub(r), center.Add(r), zMin, zMax)
	return c
}

// Ring is an annulus extruded along Z.
type Ring struct {
	extrusion
	shape ringShape
}

// Create a ring. Returns nil if the outer radius does not exceed the inner.
func NewRing(center types.Vec2, inner, outer, zMin, zMax float32, mat *Material, color types.Vec3, item board.Item) *Ring {
	if outer <= inner || inner < 0 || zMax <= zMin {
		return nil
	}
	rg := &Ring{
		extrusion: extrusion{base: base{material: mat, color: color, item: item}},
		shape:     ringShape{center: center, inner: inner, outer: outer},
	}
	r := types.Vec2{outer, outer}
	rg.init(&rg.shape, center.Sub(r), center.Add(r), zMin, zMax)
	return rg
}

// A circular cut-out.
type Hole struct {
	Center types.Vec2
	Radius float32
}

// ExtrudedPolygon is a polygon with circular holes extruded along Z.
type ExtrudedPolygon struct {
	extrusion
	shape polygonShape
}

// Create an extruded polygon. Returns nil for polygons with less than three
// vertices or no area.
func NewExtrudedPolygon(outline []types.Vec2, holes []Hole, zMin, zMax float32, mat *Material, color types.Vec3, item board.Item) *ExtrudedPolygon {
	if len(outline) < 3 || zMax <= zMin || math.Abs(float64(polygonArea(outline))) < 1e-9 {
		return nil
	}

	p := &ExtrudedPolygon{
		extrusion: extrusion{base: base{material: mat, color: color, item: item}},
		shape:     polygonShape{outline: outline},
	}
	for _, h := range holes {
		if h.Radius > 0 {
			p.shape.holes = append(p.shape.holes, circleShape{center: h.Center, radius: h.Radius})
		}
	}

	min := types.Vec2{math.MaxFloat32, math.MaxFloat32}
	max := types.Vec2{-math.MaxFloat32, -math.MaxFloat32}
	for _, v := range outline {
		min = types.Vec2{minf(min[0], v[0]), minf(min[1], v[1])}
		max = types.Vec2{maxf(max[0], v[0]), maxf(max[1], v[1])}
	}
	p.init(&p.shape, min, max, zMin, zMax)
	return p
}

// Signed polygon area; positive for counter-clockwise winding.
func polygonArea(poly []types.Vec2) float32 {
	var area float32
	for i, j := 0, len(poly)-1; i < len(poly); j, i = i, i+1 {
		area += poly[j].Cross(poly[i])
	}
	return area / 2
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
