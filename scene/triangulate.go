package scene

import (
	"math"
	"sort"

	"github.com/board3d/board3d/types"
)

// Triangulate a simple polygon with holes by bridging the holes into the
// outline and ear clipping the result. The returned indices reference the
// returned vertex list and describe counter-clockwise triangles.
func triangulate(outline []types.Vec2, holes [][]types.Vec2) ([]types.Vec2, []uint32) {
	poly := append([]types.Vec2(nil), outline...)
	if polygonArea(poly) < 0 {
		reverse(poly)
	}

	pending := make([][]types.Vec2, 0, len(holes))
	for _, h := range holes {
		if len(h) < 3 {
			continue
		}
		h = append([]types.Vec2(nil), h...)
		if polygonArea(h) > 0 {
			reverse(h)
		}
		pending = append(pending, h)
	}

	// Merge holes from right to left
	sort.Slice(pending, func(i, j int) bool {
		return pending[i][maxXIndex(pending[i])][0] > pending[j][maxXIndex(pending[j])][0]
	})
	for i, h := range pending {
		poly = bridgeHole(poly, h, pending[i+1:])
	}

	return poly, earClip(poly)
}

// Connect hole to poly through the closest mutually visible vertex pair.
func bridgeHole(poly, hole []types.Vec2, others [][]types.Vec2) []types.Vec2 {
	mi := maxXIndex(hole)
	m := hole[mi]

	order := make([]int, len(poly))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		da := poly[order[a]].Sub(m)
		db := poly[order[b]].Sub(m)
		return da.Dot(da) < db.Dot(db)
	})

	target := order[0]
	for _, candidate := range order {
		v := poly[candidate]
		if segmentVisible(m, v, poly) && segmentVisible(m, v, hole) && visibleFromAll(m, v, others) {
			target = candidate
			break
		}
	}

	merged := make([]types.Vec2, 0, len(poly)+len(hole)+2)
	merged = append(merged, poly[:target+1]...)
	for i := 0; i <= len(hole); i++ {
		merged = append(merged, hole[(mi+i)%len(hole)])
	}
	merged = append(merged, poly[target])
	merged = append(merged, poly[target+1:]...)
	return merged
}

func visibleFromAll(a, b types.Vec2, polys [][]types.Vec2) bool {
	for _, p := range polys {
		if !segmentVisible(a, b, p) {
			return false
		}
	}
	return true
}

// Returns true if segment a-b does not properly cross any polygon edge.
func segmentVisible(a, b types.Vec2, poly []types.Vec2) bool {
	for i := range poly {
		p0 := poly[i]
		p1 := poly[(i+1)%len(poly)]
		if p0 == a || p0 == b || p1 == a || p1 == b {
			continue
		}
		if segmentsCross(a, b, p0, p1) {
			return false
		}
	}
	return true
}

func segmentsCross(a, b, c, d types.Vec2) bool {
	d1 := b.Sub(a).Cross(c.Sub(a))
	d2 := b.Sub(a).Cross(d.Sub(a))
	d3 := d.Sub(c).Cross(a.Sub(c))
	d4 := d.Sub(c).Cross(b.Sub(c))
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// Ear clipping for a counter-clockwise polygon.
func earClip(poly []types.Vec2) []uint32 {
	n := len(poly)
	if n < 3 {
		return nil
	}

	remaining := make([]uint32, n)
	for i := range remaining {
		remaining[i] = uint32(i)
	}
	indices := make([]uint32, 0, 3*(n-2))

	for len(remaining) > 3 {
		count := len(remaining)
		clipped := false
		for i := 0; i < count; i++ {
			prev := remaining[(i+count-1)%count]
			cur := remaining[i]
			next := remaining[(i+1)%count]
			if !isEar(poly, remaining, prev, cur, next) {
				continue
			}
			indices = append(indices, prev, cur, next)
			remaining = append(remaining[:i], remaining[i+1:]...)
			clipped = true
			break
		}

		// Numerically degenerate input; finish with a fan
		if !clipped {
			for i := 1; i+1 < len(remaining); i++ {
				indices = append(indices, remaining[0], remaining[i], remaining[i+1])
			}
			return indices
		}
	}

	return append(indices, remaining[0], remaining[1], remaining[2])
}

func isEar(poly []types.Vec2, remaining []uint32, prev, cur, next uint32) bool {
	a, b, c := poly[prev], poly[cur], poly[next]
	if b.Sub(a).Cross(c.Sub(b)) <= 0 {
		return false
	}
	for _, idx := range remaining {
		if idx == prev || idx == cur || idx == next {
			continue
		}
		p := poly[idx]
		if p == a || p == b || p == c {
			continue
		}
		if pointInTriangle(p, a, b, c) {
			return false
		}
	}
	return true
}

func pointInTriangle(p, a, b, c types.Vec2) bool {
	d1 := b.Sub(a).Cross(p.Sub(a))
	d2 := c.Sub(b).Cross(p.Sub(b))
	d3 := a.Sub(c).Cross(p.Sub(c))
	return d1 >= 0 && d2 >= 0 && d3 >= 0
}

func maxXIndex(poly []types.Vec2) int {
	best := 0
	for i := range poly {
		if poly[i][0] > poly[best][0] {
			best = i
		}
	}
	return best
}

func reverse(poly []types.Vec2) {
	for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
		poly[i], poly[j] = poly[j], poly[i]
	}
}

// Approximate a circle with a counter-clockwise polygon.
func circlePolygon(center types.Vec2, radius float32, segments int) []types.Vec2 {
	out := make([]types.Vec2, segments)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(segments)
		out[i] = center.Add(types.Vec2{float32(math.Cos(a)), float32(math.Sin(a))}.Mul(radius))
	}
	return out
}

// Approximate a stadium with a counter-clockwise polygon.
func stadiumPolygon(a, b types.Vec2, radius float32, segments int) []types.Vec2 {
	axis := b.Sub(a)
	if axis.Len() < 1e-9 {
		return circlePolygon(a, radius, 2*segments)
	}
	base := math.Atan2(float64(axis[1]), float64(axis[0]))

	out := make([]types.Vec2, 0, 2*(segments+1))
	// Cap around b from -90 to +90 degrees, then around a from +90 to +270
	for i := 0; i <= segments; i++ {
		ang := base - math.Pi/2 + math.Pi*float64(i)/float64(segments)
		out = append(out, b.Add(types.Vec2{float32(math.Cos(ang)), float32(math.Sin(ang))}.Mul(radius)))
	}
	for i := 0; i <= segments; i++ {
		ang := base + math.Pi/2 + math.Pi*float64(i)/float64(segments)
		out = append(out, a.Add(types.Vec2{float32(math.Cos(ang)), float32(math.Sin(ang))}.Mul(radius)))
	}
	return out
}

// Get the corners of a rotated rectangle in counter-clockwise order.
func rectPolygon(center, size types.Vec2, rotationDeg float32) []types.Vec2 {
	hx, hy := size[0]/2, size[1]/2
	corners := []types.Vec2{{-hx, -hy}, {hx, -hy}, {hx, hy}, {-hx, hy}}
	for i := range corners {
		corners[i] = rotate2D(corners[i], rotationDeg).Add(center)
	}
	return corners
}

func rotate2D(v types.Vec2, deg float32) types.Vec2 {
	if deg == 0 {
		return v
	}
	rad := float64(deg) * math.Pi / 180
	s, c := float32(math.Sin(rad)), float32(math.Cos(rad))
	return types.Vec2{v[0]*c - v[1]*s, v[0]*s + v[1]*c}
}
