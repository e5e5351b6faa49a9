package accel

import "github.com/board3d/board3d/types"

// Container is implemented by primitive collections that answer ray queries.
// Containers are immutable once built and safe for concurrent queries.
type Container interface {
	// Get the aggregate bounding box. It encloses every primitive bbox.
	BBox() types.BBox

	// Get the number of primitives.
	Len() int

	// Get the primitive at index.
	Primitive(index int) Primitive

	// Find the nearest hit with a distance below hit.T.
	Intersect(r *types.Ray, hit *HitInfo) bool

	// Like Intersect but only considers the primitives stored in the given
	// node (as reported by HitInfo.AccNodeInfo).
	IntersectNode(r *types.Ray, hit *HitInfo, node uint32) bool

	// Returns true if any primitive is hit at a distance below maxDistance.
	IntersectP(r *types.Ray, maxDistance float32) bool

	// Find the nearest hit for each ray in a packet. Returns true if at
	// least one ray hit a primitive.
	IntersectPacket(p *types.RayPacket, hits *HitInfoPacket) bool
}

// List is a container that tests rays against every primitive.
type List struct {
	prims []Primitive
	bbox  types.BBox
}

// Create a new list container.
func NewList(prims []Primitive) *List {
	l := &List{
		prims: prims,
		bbox:  types.EmptyBBox(),
	}
	for _, p := range prims {
		l.bbox.Union(p.BBox())
	}
	return l
}

func (l *List) BBox() types.BBox {
	return l.bbox
}

func (l *List) Len() int {
	return len(l.prims)
}

func (l *List) Primitive(index int) Primitive {
	return l.prims[index]
}

func (l *List) Intersect(r *types.Ray, hit *HitInfo) bool {
	if len(l.prims) == 0 {
		return false
	}
	if t0, _, ok := l.bbox.Intersect(r); !ok || t0 > hit.T {
		return false
	}

	found := false
	for i, p := range l.prims {
		if testPrimitive(p, i, 0, r, hit) {
			found = true
		}
	}
	return found
}

// Lists have a single implicit node.
func (l *List) IntersectNode(r *types.Ray, hit *HitInfo, node uint32) bool {
	return l.Intersect(r, hit)
}

func (l *List) IntersectP(r *types.Ray, maxDistance float32) bool {
	if !l.bbox.IsValid() || !l.bbox.IntersectRange(r, maxDistance) {
		return false
	}
	for _, p := range l.prims {
		if p.IntersectP(r, maxDistance) {
			return true
		}
	}
	return false
}

func (l *List) IntersectPacket(p *types.RayPacket, hits *HitInfoPacket) bool {
	found := false
	for i := range p.Rays {
		if l.Intersect(&p.Rays[i], &hits.Hits[i]) {
			found = true
		}
	}
	return found
}
